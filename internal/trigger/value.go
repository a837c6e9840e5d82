package trigger

import (
	"fmt"
	"strconv"
)

// Kind enumerates the closed set of property value variants. Every
// trigger leaf branches exhaustively over these; there are no implicit
// coercions beyond the ones spelled out in Equal and Less.
type Kind int

const (
	KindAbsent Kind = iota
	KindBool
	KindNumber
	KindString
)

// Value is a device property or trigger result: a boolean, a number, a
// string (possibly an "HH:MM" time), or absent. The zero Value is
// Absent.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
}

// Absent returns the absent value.
func Absent() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a float64.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// FromAny converts a decoded JSON/YAML scalar into a Value. Unsupported
// shapes (maps, slices, nil) become Absent.
func FromAny(v any) Value {
	switch val := v.(type) {
	case bool:
		return Bool(val)
	case float64:
		return Number(val)
	case int:
		return Number(float64(val))
	case int64:
		return Number(float64(val))
	case string:
		return String(val)
	default:
		return Absent()
	}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// Any returns the underlying Go value, nil when absent. Used when
// rendering values back out as JSON.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindAbsent:
		return nil
	}
	return nil
}

// IsAbsent reports whether the value is absent.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// AsBool returns the boolean payload; false unless KindBool.
func (v Value) AsBool() bool { return v.kind == KindBool && v.b }

// AsNumber returns the numeric payload and whether the value is (or
// parses as) a number. Numeric strings count, matching the loose
// comparisons device properties historically relied on.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.n, true
	case KindString:
		n, err := strconv.ParseFloat(v.s, 64)
		return n, err == nil
	case KindBool, KindAbsent:
		return 0, false
	}
	return 0, false
}

// AsString returns the string payload; empty unless KindString.
func (v Value) AsString() string {
	if v.kind == KindString {
		return v.s
	}
	return ""
}

// Truthy reports whether the value counts as "fired". The string
// "false" is falsy: device feeds serialise booleans loosely and a
// stored "false" must not trigger anything.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n != 0
	case KindString:
		return v.s != "" && v.s != "false"
	case KindAbsent:
		return false
	}
	return false
}

// Equal compares two values. Numbers compare with numeric strings;
// everything else compares within its own kind. Absent equals nothing,
// including another Absent.
func (v Value) Equal(o Value) bool {
	if v.kind == KindAbsent || o.kind == KindAbsent {
		return false
	}
	if v.kind == o.kind {
		switch v.kind {
		case KindBool:
			return v.b == o.b
		case KindNumber:
			return v.n == o.n
		case KindString:
			return v.s == o.s
		case KindAbsent: // unreachable, handled above
			return false
		}
	}
	if a, ok := v.AsNumber(); ok {
		if b, ok2 := o.AsNumber(); ok2 {
			return a == b
		}
	}
	return false
}

// Less orders two values. Numeric ordering applies when both sides are
// numbers or numeric strings; plain strings order lexicographically.
// Mixed or boolean operands are incomparable.
func (v Value) Less(o Value) (bool, error) {
	if a, ok := v.AsNumber(); ok {
		if b, ok2 := o.AsNumber(); ok2 {
			return a < b, nil
		}
	}
	if v.kind == KindString && o.kind == KindString {
		return v.s < o.s, nil
	}
	return false, fmt.Errorf("%w: %s vs %s", ErrIncomparable, v, o)
}

// String renders the value for logs.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindAbsent:
		return "<absent>"
	}
	return "<absent>"
}
