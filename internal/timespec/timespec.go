package timespec

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// minutesPerDay is used to wrap offset arithmetic around midnight.
const minutesPerDay = 24 * 60

// TimeOfDay is a resolved wall-clock time with minute resolution.
type TimeOfDay struct {
	Hour   int
	Minute int

	// NextDay marks a "+HH:MM" spec, which refers to tomorrow. Matching
	// only compares hour and minute; the flag is informational and
	// surfaces in listings.
	NextDay bool
}

// String formats the time as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// AddMinutes shifts the time by n minutes (n may be negative), wrapping
// around midnight.
func (t TimeOfDay) AddMinutes(n int) TimeOfDay {
	total := t.Hour*60 + t.Minute + n
	total = ((total % minutesPerDay) + minutesPerDay) % minutesPerDay
	return TimeOfDay{Hour: total / 60, Minute: total % 60, NextDay: t.NextDay}
}

// Matches reports whether now falls in the same minute as t. The
// scheduler evaluates once per minute, so an exact hour+minute match is
// the "current time equals this time" test.
func (t TimeOfDay) Matches(now time.Time) bool {
	return now.Hour() == t.Hour && now.Minute() == t.Minute
}

// FromTime extracts the time of day from a time.Time.
func FromTime(at time.Time) TimeOfDay {
	return TimeOfDay{Hour: at.Hour(), Minute: at.Minute()}
}

// NamedTimes maps spec names such as "sunrise" or "lampOn" to resolved
// times of day.
type NamedTimes map[string]TimeOfDay

// SunSource supplies the named sun-relative times for a given day.
type SunSource interface {
	Times(now time.Time) NamedTimes
}

// Spec recognisers, in resolution priority order.
var (
	simpleTimeRe    = regexp.MustCompile(`^([0-9]{1,2}):([0-9]{2})$`)
	tomorrowTimeRe  = regexp.MustCompile(`^\+([0-9]{1,2}):([0-9]{2})$`)
	modifiedTimeRe  = regexp.MustCompile(`^([0-9]{1,2}):([0-9]{2})([+-])([0-9]+)$`)
	namedTimeRe     = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*)$`)
	modifiedNamedRe = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*)([+-])([0-9]+)$`)

	hhmmRe = regexp.MustCompile(`^([0-9]{1,2}):([0-9]{2})$`)
)

// Resolver turns time specifications into TimeOfDay values. Sun may be
// nil, in which case named specs never resolve. Now is overridable for
// tests and defaults to time.Now.
type Resolver struct {
	Sun SunSource
	Now func() time.Time
}

func (r *Resolver) now() time.Time {
	if r != nil && r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Resolve parses a time spec. The second return is false when the spec
// is not a recognisable time, including named times unknown to the sun
// source.
func (r *Resolver) Resolve(spec string) (TimeOfDay, bool) {
	if spec == "" {
		return TimeOfDay{}, false
	}

	if m := simpleTimeRe.FindStringSubmatch(spec); m != nil {
		return makeTimeOfDay(m[1], m[2], false)
	}
	if m := tomorrowTimeRe.FindStringSubmatch(spec); m != nil {
		return makeTimeOfDay(m[1], m[2], true)
	}
	if m := modifiedTimeRe.FindStringSubmatch(spec); m != nil {
		t, ok := makeTimeOfDay(m[1], m[2], false)
		if !ok {
			return TimeOfDay{}, false
		}
		return t.AddMinutes(signedMinutes(m[3], m[4])), true
	}
	if m := namedTimeRe.FindStringSubmatch(spec); m != nil {
		return r.named(m[1])
	}
	if m := modifiedNamedRe.FindStringSubmatch(spec); m != nil {
		t, ok := r.named(m[1])
		if !ok {
			return TimeOfDay{}, false
		}
		return t.AddMinutes(signedMinutes(m[2], m[3])), true
	}

	return TimeOfDay{}, false
}

// MatchesNow resolves spec and reports whether the current minute
// matches it. An unresolvable spec never matches.
func (r *Resolver) MatchesNow(spec string) bool {
	t, ok := r.Resolve(spec)
	return ok && t.Matches(r.now())
}

func (r *Resolver) named(name string) (TimeOfDay, bool) {
	if r == nil || r.Sun == nil {
		return TimeOfDay{}, false
	}
	t, ok := r.Sun.Times(r.now())[name]
	return t, ok
}

func makeTimeOfDay(hour, minute string, nextDay bool) (TimeOfDay, bool) {
	h, _ := strconv.Atoi(hour)
	m, _ := strconv.Atoi(minute)
	if h > 23 || m > 59 {
		return TimeOfDay{}, false
	}
	return TimeOfDay{Hour: h, Minute: m, NextDay: nextDay}, true
}

func signedMinutes(sign, digits string) int {
	n, _ := strconv.Atoi(digits)
	if sign == "-" {
		return -n
	}
	return n
}

// IsBetween reports whether the "HH:MM" time at lies inside the range
// [start, end). When start is later than end the range crosses
// midnight and membership becomes disjunctive: after start OR before
// end. All three arguments must be "HH:MM" strings.
func IsBetween(start, end, at string) (bool, error) {
	sh, sm, err := splitHHMM("start", start)
	if err != nil {
		return false, err
	}
	eh, em, err := splitHHMM("end", end)
	if err != nil {
		return false, err
	}
	h, m, err := splitHHMM("time", at)
	if err != nil {
		return false, err
	}

	afterStart := sh*60+sm <= h*60+m
	beforeEnd := h*60+m < eh*60+em

	if sh*60+sm > eh*60+em {
		// Range crosses midnight, e.g. 22:00-06:00.
		return afterStart || beforeEnd, nil
	}
	return afterStart && beforeEnd, nil
}

func splitHHMM(label, value string) (hour, minute int, err error) {
	m := hhmmRe.FindStringSubmatch(value)
	if m == nil {
		return 0, 0, fmt.Errorf("%s %q must be of the form HH:MM", label, value)
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("%s %q is out of range", label, value)
	}
	return hour, minute, nil
}
