package schedule

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hearth-automation/hearth-core/internal/infrastructure/logging"
	"github.com/hearth-automation/hearth-core/internal/timespec"
	"github.com/hearth-automation/hearth-core/internal/trigger"
)

// compiled is one validated generation of the schedules file. A reload
// builds a complete new generation before the store exposes any of it,
// so readers never observe a half-applied document.
type compiled struct {
	reset     string
	schedules map[string]*Schedule
	ranges    map[string]RangeSpec
	values    map[string]trigger.Value
}

// Store owns the loaded schedule document and the manual override
// flags. All methods are safe for concurrent use; the scheduler reads
// while the API mutates overrides and requests reloads.
type Store struct {
	path     string
	resolver *timespec.Resolver
	logger   *logging.Logger

	mu      sync.RWMutex
	current *compiled
}

// NewStore creates a store for the schedules file at path. Nothing is
// read until Load is called.
func NewStore(path string, resolver *timespec.Resolver, logger *logging.Logger) *Store {
	return &Store{
		path:     path,
		resolver: resolver,
		logger:   logger.With("component", "schedule"),
	}
}

// Load reads, parses, and compiles the schedules file, then swaps it
// in atomically. On any error the previously loaded generation stays
// active untouched; a daemon mid-flight keeps running on known-good
// schedules rather than adopting a broken edit.
func (s *Store) Load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadDocument, err)
	}

	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %w", ErrBadDocument, err)
	}

	next, err := s.compile(&doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()

	s.logger.Info("schedules loaded",
		"path", s.path,
		"schedules", len(next.schedules),
		"ranges", len(next.ranges),
		"values", len(next.values),
	)
	return nil
}

// compile validates the whole document. Every trigger must parse; a
// single bad spec rejects the file so a typo cannot silently disable
// one schedule while the rest apply.
func (s *Store) compile(doc *Document) (*compiled, error) {
	if doc.Reset != "" {
		if _, ok := s.resolver.Resolve(doc.Reset); !ok {
			return nil, fmt.Errorf("%w: reset time %q is not a valid time spec", ErrBadDocument, doc.Reset)
		}
	}

	rangeNames := make(map[string]struct{}, len(doc.Ranges))
	for name, spec := range doc.Ranges {
		if spec.Start.Spec == "" || spec.End.Spec == "" {
			return nil, fmt.Errorf("%w: range %q is missing a bound", ErrBadDocument, name)
		}
		rangeNames[name] = struct{}{}
	}

	env := trigger.CompileEnv{RangeNames: rangeNames, Resolver: s.resolver}

	schedules := make(map[string]*Schedule, len(doc.Schedules))
	for name, spec := range doc.Schedules {
		sched := &Schedule{Name: name, Spec: spec}

		if spec.On != "" {
			expr, err := trigger.Parse(spec.On, env)
			if err != nil {
				return nil, fmt.Errorf("%w: schedule %q on trigger: %w", ErrBadDocument, name, err)
			}
			sched.onTrigger = expr
		}
		if spec.Off != "" {
			expr, err := trigger.Parse(spec.Off, env)
			if err != nil {
				return nil, fmt.Errorf("%w: schedule %q off trigger: %w", ErrBadDocument, name, err)
			}
			sched.offTrigger = expr
		}
		if spec.Delay < 0 {
			return nil, fmt.Errorf("%w: schedule %q has a negative delay", ErrBadDocument, name)
		}

		schedules[name] = sched
	}

	values := make(map[string]trigger.Value, len(doc.Values))
	for key, raw := range doc.Values {
		values[key] = trigger.FromAny(raw)
	}

	return &compiled{
		reset:     doc.Reset,
		schedules: schedules,
		ranges:    doc.Ranges,
		values:    values,
	}, nil
}

// ResetSpec returns the document's daily reset time spec, empty when
// none is configured.
func (s *Store) ResetSpec() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.reset
}

// Names returns the loaded schedule names in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	names := make([]string, 0, len(s.current.schedules))
	for name := range s.current.schedules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the named schedule, nil when unknown.
func (s *Store) Get(name string) *Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	return s.current.schedules[name]
}

// SetOverride marks a schedule as manually overridden so the scheduler
// skips it. It reports whether the schedule exists; a schedule
// declared doNotOverride is acknowledged but left unflagged, so a
// caller cannot tell a pinned schedule from a successful override by
// the return value alone.
func (s *Store) SetOverride(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return false
	}
	sched, ok := s.current.schedules[name]
	if !ok {
		return false
	}
	if sched.Spec.DoNotOverride {
		s.logger.Debug("override refused for pinned schedule", "schedule", name)
		return true
	}
	sched.overridden = true
	s.logger.Info("schedule overridden", "schedule", name)
	return true
}

// RemoveOverride clears a schedule's override flag, reporting whether
// the schedule exists.
func (s *Store) RemoveOverride(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return false
	}
	sched, ok := s.current.schedules[name]
	if !ok {
		return false
	}
	if sched.overridden {
		s.logger.Info("schedule override removed", "schedule", name)
	}
	sched.overridden = false
	return true
}

// IsOverridden reports whether a schedule is currently overridden.
// Unknown schedules are never overridden.
func (s *Store) IsOverridden(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return false
	}
	sched, ok := s.current.schedules[name]
	return ok && sched.overridden
}

// Value looks up a key in the document's auxiliary value store.
func (s *Store) Value(key string) (trigger.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return trigger.Absent(), false
	}
	v, ok := s.current.values[key]
	return v, ok
}

// RangeActive reports whether the named range contains the given time.
// Device-backed bounds are looked up in the snapshot and fall back to
// their declared default when the device doesn't report the property.
func (s *Store) RangeActive(name string, snap trigger.Snapshot, at time.Time) (bool, error) {
	s.mu.RLock()
	spec, ok := func() (RangeSpec, bool) {
		if s.current == nil {
			return RangeSpec{}, false
		}
		r, ok := s.current.ranges[name]
		return r, ok
	}()
	s.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("range %q is not declared", name)
	}

	start, err := s.resolveBound(name, "start", spec.Start, snap)
	if err != nil {
		return false, err
	}
	end, err := s.resolveBound(name, "end", spec.End, snap)
	if err != nil {
		return false, err
	}

	return timespec.IsBetween(start, end, timespec.FromTime(at).String())
}

// resolveBound turns one range bound into an "HH:MM" string.
func (s *Store) resolveBound(rangeName, which string, bound RangeBound, snap trigger.Snapshot) (string, error) {
	spec := bound.Spec

	if bound.Default != "" {
		device, prop, ok := strings.Cut(bound.Spec, ".")
		if !ok {
			return "", fmt.Errorf("range %q %s: device reference %q must be device.property", rangeName, which, bound.Spec)
		}
		spec = bound.Default
		if dev, found := snap[device]; found {
			if v := dev.Get(prop); v.Kind() == trigger.KindString {
				if _, resolvable := s.resolver.Resolve(v.AsString()); resolvable {
					spec = v.AsString()
				}
			}
		}
	}

	t, ok := s.resolver.Resolve(spec)
	if !ok {
		return "", fmt.Errorf("range %q %s: %q is not a valid time spec", rangeName, which, spec)
	}
	return t.String(), nil
}

// Listings returns the outward-facing view of every schedule, with
// plain time triggers resolved to today's clock times. Keys are
// schedule names.
func (s *Store) Listings() map[string]Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return map[string]Listing{}
	}

	out := make(map[string]Listing, len(s.current.schedules))
	for name, sched := range s.current.schedules {
		out[name] = Listing{
			On:            s.actorListing(sched.Spec.On),
			Off:           s.actorListing(sched.Spec.Off),
			Delay:         sched.Spec.Delay,
			DoNotOverride: sched.Spec.DoNotOverride,
			Overridden:    sched.overridden,
		}
	}
	return out
}

func (s *Store) actorListing(spec string) *ActorListing {
	if spec == "" {
		return nil
	}
	listing := &ActorListing{Spec: spec}
	if t, ok := s.resolver.Resolve(spec); ok {
		listing.At = t.String()
	}
	return listing
}
