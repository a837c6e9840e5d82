package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/hearth-automation/hearth-core/internal/timespec"
)

// powerThreshold is the watt level above which a device counts as
// actively drawing power for the "~N" countdown form. Standby draw on
// the plugs this grammar grew up with sits well below it.
const powerThreshold = 7.0

// PingFunc checks whether a host answers a presence probe.
type PingFunc func(ctx context.Context, host string) (bool, error)

// RangeFunc resolves a declared range's current active state.
type RangeFunc func(name string) (bool, error)

// ValueFunc looks up a key in the auxiliary named-value store.
type ValueFunc func(key string) (Value, bool)

// Logger is the minimal logging surface the evaluator needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Env is the per-evaluation context. The scheduler builds one per
// schedule per tick; expressions stay pure and thread all mutable
// state (the timer table) through here.
type Env struct {
	// Schedule and Actor identify the owning trigger for timer-table
	// addressing.
	Schedule string
	Actor    ActorKind

	// Snapshot is this tick's aggregate device state.
	Snapshot Snapshot

	// Now is the tick timestamp; time triggers match against it.
	Now time.Time

	Timers   *TimerTable
	Resolver *timespec.Resolver

	// Collaborators; any may be nil, in which case the corresponding
	// leaf evaluates to Absent (range, value) or false (ping).
	RangeActive RangeFunc
	LookupValue ValueFunc
	Ping        PingFunc

	Logger Logger
}

func (env *Env) log() Logger {
	if env.Logger != nil {
		return env.Logger
	}
	return noopLogger{}
}

// Eval walks the expression against the environment. It returns a
// Value because leaves are not all boolean: device properties and
// numeric constants surface as numbers so comparisons can order them.
// Errors mean "could not evaluate"; callers treat them as a trigger
// that did not fire.
func Eval(ctx context.Context, e Expr, env *Env) (Value, error) {
	switch node := e.(type) {
	case NumberLit:
		return Number(node.Value), nil
	case DeviceOn:
		return evalDeviceOn(node, env), nil
	case DeviceProp:
		return evalDeviceProp(node, env), nil
	case TimeTrigger:
		return evalTime(node, env), nil
	case Compare:
		return evalCompare(ctx, node, env)
	case And:
		return evalAnd(ctx, node, env)
	case Or:
		return evalOr(ctx, node, env)
	case Not:
		v, err := Eval(ctx, node.Operand, env)
		if err != nil {
			return Absent(), err
		}
		return Bool(!v.Truthy()), nil
	case Countdown:
		return evalCountdown(node, env), nil
	case RangeRef:
		return evalRange(node, env)
	case Ping:
		return evalPing(ctx, node, env), nil
	case NamedValue:
		if env.LookupValue == nil {
			return Absent(), nil
		}
		v, ok := env.LookupValue(node.Key)
		if !ok {
			return Absent(), nil
		}
		return v, nil
	default:
		return Absent(), fmt.Errorf("%w: unhandled expression %T", ErrUnknownTrigger, e)
	}
}

func evalDeviceOn(node DeviceOn, env *Env) Value {
	dev, ok := env.Snapshot[node.Device]
	if !ok {
		env.log().Debug("trigger references unknown device", "device", node.Device)
		return Absent()
	}
	return Bool(dev.On())
}

func evalDeviceProp(node DeviceProp, env *Env) Value {
	dev, ok := env.Snapshot[node.Device]
	if !ok {
		env.log().Debug("property trigger references unknown device",
			"device", node.Device, "property", node.Prop)
		return Absent()
	}

	val := dev.Get(node.Prop)
	if val.IsAbsent() {
		env.log().Debug("property not found on device",
			"device", node.Device, "property", node.Prop)
		return Absent()
	}

	if !val.Truthy() && val.Kind() != KindNumber {
		return Bool(false)
	}

	// A property holding an "HH:MM"-shaped value is a stored time:
	// the trigger becomes "is it currently that time", with any
	// adjustment applied before the match.
	if val.Kind() == KindString {
		if t, ok := env.Resolver.Resolve(val.AsString() + node.AdjustRaw); ok {
			return Bool(t.Matches(env.Now))
		}
	}

	if node.AdjustRaw != "" {
		if n, ok := val.AsNumber(); ok {
			return Number(n + float64(node.Adjust))
		}
	}

	return val
}

func evalTime(node TimeTrigger, env *Env) Value {
	t, ok := env.Resolver.Resolve(node.Spec)
	if !ok {
		// Compiled fine but no longer resolvable (a named time the sun
		// source stopped producing). Never fires.
		env.log().Warn("time trigger no longer resolves", "spec", node.Spec)
		return Absent()
	}
	return Bool(t.Matches(env.Now))
}

func evalCompare(ctx context.Context, node Compare, env *Env) (Value, error) {
	// Both sides always evaluate so countdown operands keep ticking.
	left, lerr := Eval(ctx, node.Left, env)
	right, rerr := Eval(ctx, node.Right, env)
	if lerr != nil {
		return Absent(), lerr
	}
	if rerr != nil {
		return Absent(), rerr
	}

	var res bool
	var err error
	switch node.Op {
	case OpEq:
		res = left.Equal(right)
	case OpNe:
		res = !left.Equal(right)
	case OpLt:
		res, err = left.Less(right)
	case OpGt:
		res, err = right.Less(left)
	case OpLte:
		var gt bool
		gt, err = right.Less(left)
		res = !gt
	case OpGte:
		var lt bool
		lt, err = left.Less(right)
		res = !lt
	default:
		err = fmt.Errorf("%w: operator %q", ErrUnknownTrigger, node.Op)
	}
	if err != nil {
		return Absent(), err
	}

	if res {
		env.log().Debug("comparison passed",
			"left", fmt.Sprintf("%s (%s)", node.Left, left),
			"op", string(node.Op),
			"right", fmt.Sprintf("%s (%s)", node.Right, right),
		)
	}
	return Bool(res), nil
}

func evalAnd(ctx context.Context, node And, env *Env) (Value, error) {
	result := true
	var firstErr error
	for _, operand := range node.Operands {
		v, err := Eval(ctx, operand, env)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if !v.Truthy() {
			result = false
		}
	}
	if firstErr != nil {
		return Absent(), firstErr
	}
	return Bool(result), nil
}

func evalOr(ctx context.Context, node Or, env *Env) (Value, error) {
	result := false
	var firstErr error
	for _, operand := range node.Operands {
		v, err := Eval(ctx, operand, env)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if v.Truthy() {
			result = true
		}
	}
	if result {
		// Any true operand wins even if a sibling failed to evaluate.
		return Bool(true), nil
	}
	if firstErr != nil {
		return Absent(), firstErr
	}
	return Bool(false), nil
}

func evalCountdown(node Countdown, env *Env) Value {
	// Countdowns only drive shutoff; an "on" actor never counts down.
	if env.Actor != ActorOff {
		return Bool(false)
	}
	if env.Timers == nil {
		return Bool(false)
	}

	key := TimerKey{Schedule: env.Schedule, Actor: env.Actor}
	dev := env.Snapshot[env.Schedule]

	holding := false
	if node.Power {
		if power, ok := dev.Power(); ok {
			holding = power > powerThreshold
		}
	} else {
		holding = dev.On()
	}

	if !holding {
		if env.Timers.Clear(key) {
			env.log().Debug("removing unexpired countdown timer",
				"schedule", env.Schedule, "trigger", node.String())
		}
		return Bool(false)
	}

	rem := env.Timers.Ensure(key, node.Minutes)
	if rem <= 0 {
		env.Timers.Clear(key)
		env.log().Debug("countdown reached zero",
			"schedule", env.Schedule, "trigger", node.String())
		return Bool(true)
	}

	env.Timers.Decrement(key)
	env.log().Debug("countdown ticking",
		"schedule", env.Schedule, "trigger", node.String(), "minutes_left", rem)
	return Bool(false)
}

func evalRange(node RangeRef, env *Env) (Value, error) {
	if env.RangeActive == nil {
		return Absent(), fmt.Errorf("%w: %q", ErrBadRange, node.Name)
	}
	active, err := env.RangeActive(node.Name)
	if err != nil {
		return Absent(), fmt.Errorf("%w: %q: %w", ErrBadRange, node.Name, err)
	}
	return Bool(active), nil
}

func evalPing(ctx context.Context, node Ping, env *Env) Value {
	if env.Ping == nil {
		return Bool(false)
	}
	up, err := env.Ping(ctx, node.Host)
	if err != nil {
		env.log().Debug("ping failed", "host", node.Host, "error", err)
		return Bool(false)
	}
	return Bool(up)
}
