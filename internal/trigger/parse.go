package trigger

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hearth-automation/hearth-core/internal/timespec"
)

// CompileEnv supplies the compile-time context: the names of declared
// ranges and a time resolver for validating time specs. Parsing needs
// no device knowledge; device references bind at evaluation time.
type CompileEnv struct {
	RangeNames map[string]struct{}
	Resolver   *timespec.Resolver
}

// HasRange reports whether name is a declared range.
func (e CompileEnv) HasRange(name string) bool {
	_, ok := e.RangeNames[name]
	return ok
}

// The trigger grammar, one recogniser per rule, tried strictly in this
// order. Descending specificity is fixed here rather than emerging
// from registration order, so adding a rule cannot silently shadow an
// existing one.
var (
	comparisonRe = regexp.MustCompile(`^([A-Za-z0-9_.'+-]+) *(!=|<=|>=|=|<|>) *([A-Za-z0-9_.'+-]+)$`)
	powerCountRe = regexp.MustCompile(`^~([0-9]+)$`)
	plainCountRe = regexp.MustCompile(`^/([0-9]+)$`)
	tripleAndRe  = regexp.MustCompile(`^([^&]+)&([^&]+)&([^&]+)$`)
	doubleAndRe  = regexp.MustCompile(`^([^&]+)&([^&]+)$`)
	tripleOrRe   = regexp.MustCompile(`^([^|]+)\|([^|]+)\|([^|]+)$`)
	doubleOrRe   = regexp.MustCompile(`^([^|]+)\|([^|]+)$`)
	devicePropRe = regexp.MustCompile(`^([A-Za-z0-9_]+)\.([A-Za-z0-9_]+)([+-][0-9]+)?$`)
	notRe        = regexp.MustCompile(`^!(.+)$`)
	dottedQuadRe = regexp.MustCompile(`^[0-9]+\.[0-9]+\.[0-9]+\.[0-9]+$`)
	quotedRe     = regexp.MustCompile(`^'([^']+)'$`)
	bareNameRe   = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	bareDigitsRe = regexp.MustCompile(`^[0-9]+$`)
)

// parseRule pairs a recogniser with its AST constructor.
type parseRule struct {
	re    *regexp.Regexp
	build func(env CompileEnv, m []string) (Expr, error)
}

// patternTable is ordered by the grammar's fixed precedence; first
// match wins. Populated in init because the comparison and operator
// builders recurse into Parse, which walks this table.
var patternTable []parseRule

func init() {
	patternTable = []parseRule{
		{comparisonRe, buildComparison},
		{powerCountRe, buildPowerCountdown},
		{plainCountRe, buildPlainCountdown},
		{tripleAndRe, buildAnd},
		{doubleAndRe, buildAnd},
		{tripleOrRe, buildOr},
		{doubleOrRe, buildOr},
		{devicePropRe, buildDeviceProp},
		{notRe, buildNot},
		{dottedQuadRe, buildPing},
		{quotedRe, buildNamedValue},
	}
}

// Parse compiles a trigger specification into an expression tree.
// Unknown grammar is a compile-time error so broken configuration is
// rejected at (re)load rather than discovered as a trigger that never
// fires.
func Parse(text string, env CompileEnv) (Expr, error) {
	spec := strings.TrimSpace(text)
	if spec == "" {
		return nil, fmt.Errorf("%w: empty spec", ErrUnknownTrigger)
	}

	for _, rule := range patternTable {
		if m := rule.re.FindStringSubmatch(spec); m != nil {
			return rule.build(env, m)
		}
	}

	// Declared range names take precedence over everything the pattern
	// table missed, including named times.
	if env.HasRange(spec) {
		return RangeRef{Name: spec}, nil
	}

	// A spec the time resolver understands means "fires during that
	// minute".
	if _, ok := env.Resolver.Resolve(spec); ok {
		return TimeTrigger{Spec: spec}, nil
	}

	// Bare identifier: a numeric constant, or a device whose on state
	// is the trigger value.
	if bareNameRe.MatchString(spec) {
		if bareDigitsRe.MatchString(spec) {
			n, err := strconv.ParseFloat(spec, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrUnknownTrigger, text)
			}
			return NumberLit{Value: n}, nil
		}
		return DeviceOn{Device: spec}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownTrigger, text)
}

func buildComparison(env CompileEnv, m []string) (Expr, error) {
	left, err := Parse(m[1], env)
	if err != nil {
		return nil, err
	}
	right, err := Parse(m[3], env)
	if err != nil {
		return nil, err
	}
	return Compare{Op: Op(m[2]), Left: left, Right: right}, nil
}

func buildPowerCountdown(_ CompileEnv, m []string) (Expr, error) {
	return buildCountdown(m[1], true)
}

func buildPlainCountdown(_ CompileEnv, m []string) (Expr, error) {
	return buildCountdown(m[1], false)
}

func buildCountdown(digits string, power bool) (Expr, error) {
	minutes, err := strconv.Atoi(digits)
	if err != nil || minutes <= 0 {
		return nil, fmt.Errorf("%w: countdown of %q minutes", ErrUnknownTrigger, digits)
	}
	return Countdown{Minutes: minutes, Power: power}, nil
}

func buildAnd(env CompileEnv, m []string) (Expr, error) {
	operands, err := parseOperands(env, m[1:])
	if err != nil {
		return nil, err
	}
	return And{Operands: operands}, nil
}

func buildOr(env CompileEnv, m []string) (Expr, error) {
	operands, err := parseOperands(env, m[1:])
	if err != nil {
		return nil, err
	}
	return Or{Operands: operands}, nil
}

func parseOperands(env CompileEnv, parts []string) ([]Expr, error) {
	operands := make([]Expr, 0, len(parts))
	for _, part := range parts {
		expr, err := Parse(part, env)
		if err != nil {
			return nil, err
		}
		operands = append(operands, expr)
	}
	return operands, nil
}

func buildDeviceProp(_ CompileEnv, m []string) (Expr, error) {
	prop := DeviceProp{Device: m[1], Prop: m[2]}
	if m[3] != "" {
		n, err := strconv.Atoi(m[3][1:])
		if err != nil {
			return nil, fmt.Errorf("%w: adjustment %q", ErrUnknownTrigger, m[3])
		}
		if m[3][0] == '-' {
			n = -n
		}
		prop.Adjust = n
		prop.AdjustRaw = m[3]
	}
	return prop, nil
}

func buildNot(env CompileEnv, m []string) (Expr, error) {
	operand, err := Parse(m[1], env)
	if err != nil {
		return nil, err
	}
	return Not{Operand: operand}, nil
}

func buildPing(_ CompileEnv, m []string) (Expr, error) {
	return Ping{Host: m[0]}, nil
}

func buildNamedValue(_ CompileEnv, m []string) (Expr, error) {
	return NamedValue{Key: m[1]}, nil
}
