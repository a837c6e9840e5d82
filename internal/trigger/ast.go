package trigger

import (
	"fmt"
	"strings"
)

// ActorKind identifies which action a compiled trigger drives.
type ActorKind string

const (
	ActorOn  ActorKind = "on"
	ActorOff ActorKind = "off"
)

func (k ActorKind) String() string { return string(k) }

// Op is a comparison operator.
type Op string

const (
	OpEq  Op = "="
	OpNe  Op = "!="
	OpLt  Op = "<"
	OpGt  Op = ">"
	OpLte Op = "<="
	OpGte Op = ">="
)

// Expr is a parsed trigger expression. Expressions are immutable once
// built; all evaluation state lives in the TimerTable, addressed by
// (schedule, actor) identity carried in the evaluation Env.
type Expr interface {
	fmt.Stringer
	isExpr()
}

// NumberLit is a bare numeric constant.
type NumberLit struct {
	Value float64
}

// DeviceOn reads a device's on/off state by name.
type DeviceOn struct {
	Device string
}

// DeviceProp reads a property from a device record. When the stored
// value looks like an "HH:MM" time the trigger becomes "is it currently
// that time" (with AdjustRaw appended before resolution); a numeric
// value is shifted by Adjust.
type DeviceProp struct {
	Device string
	Prop   string

	// Adjust is the signed minute/unit offset; AdjustRaw keeps the
	// original "+N"/"-N" text for time reinterpretation. Both are zero
	// values when no adjustment was written.
	Adjust    int
	AdjustRaw string
}

// TimeTrigger fires during the minute the spec resolves to. The spec
// is re-resolved on every evaluation so sun-relative times track the
// calendar day.
type TimeTrigger struct {
	Spec string
}

// Compare evaluates both operands and compares the results.
type Compare struct {
	Op    Op
	Left  Expr
	Right Expr
}

// And is a conjunction of two or three operands. All operands are
// evaluated, in order, every tick: countdown operands carry timer side
// effects that must advance deterministically.
type And struct {
	Operands []Expr
}

// Or is a disjunction of two or three operands. Like And, every
// operand is evaluated each tick regardless of earlier results.
type Or struct {
	Operands []Expr
}

// Not negates its operand's truthiness.
type Not struct {
	Operand Expr
}

// Countdown fires an "off" action once its condition has held for
// Minutes consecutive ticks. The plain form watches the device's on
// state; the power form watches power draw against the fixed
// threshold. It is inert for "on" actors.
type Countdown struct {
	Minutes int
	Power   bool
}

// RangeRef resolves a declared named range's current active state.
type RangeRef struct {
	Name string
}

// Ping is a presence check against a host given as a dotted-quad
// address.
type Ping struct {
	Host string
}

// NamedValue looks up a quoted key in the auxiliary value store.
type NamedValue struct {
	Key string
}

func (NumberLit) isExpr()   {}
func (DeviceOn) isExpr()    {}
func (DeviceProp) isExpr()  {}
func (TimeTrigger) isExpr() {}
func (Compare) isExpr()     {}
func (And) isExpr()         {}
func (Or) isExpr()          {}
func (Not) isExpr()         {}
func (Countdown) isExpr()   {}
func (RangeRef) isExpr()    {}
func (Ping) isExpr()        {}
func (NamedValue) isExpr()  {}

func (e NumberLit) String() string { return fmt.Sprintf("%g", e.Value) }
func (e DeviceOn) String() string  { return e.Device }

func (e DeviceProp) String() string {
	return e.Device + "." + e.Prop + e.AdjustRaw
}

func (e TimeTrigger) String() string { return e.Spec }

func (e Compare) String() string {
	return fmt.Sprintf("%s %s %s", e.Left, e.Op, e.Right)
}

func (e And) String() string { return joinOperands(e.Operands, " & ") }
func (e Or) String() string  { return joinOperands(e.Operands, " | ") }

func (e Not) String() string { return "!" + e.Operand.String() }

func (e Countdown) String() string {
	if e.Power {
		return fmt.Sprintf("~%d", e.Minutes)
	}
	return fmt.Sprintf("/%d", e.Minutes)
}

func (e RangeRef) String() string   { return e.Name }
func (e Ping) String() string       { return e.Host }
func (e NamedValue) String() string { return "'" + e.Key + "'" }

func joinOperands(operands []Expr, sep string) string {
	parts := make([]string, len(operands))
	for i, op := range operands {
		parts[i] = op.String()
	}
	return strings.Join(parts, sep)
}
