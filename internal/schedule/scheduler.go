package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/hearth-automation/hearth-core/internal/infrastructure/logging"
	"github.com/hearth-automation/hearth-core/internal/timespec"
	"github.com/hearth-automation/hearth-core/internal/trigger"
)

// StateSource supplies the aggregate device state for a tick.
type StateSource interface {
	AggregateState(ctx context.Context) (trigger.Snapshot, error)
}

// Actuator issues on/off commands to devices.
type Actuator interface {
	TurnOn(ctx context.Context, device string) error
	TurnOff(ctx context.Context, device string) error
}

// Action is one fired actuation, delivered to sinks for audit and
// event fan-out.
type Action struct {
	Schedule string
	Actor    trigger.ActorKind
	Trigger  string
	At       time.Time
}

// ActionSink receives fired actions. Sinks must not block; slow
// consumers buffer or drop on their side of the interface.
type ActionSink interface {
	RecordAction(ctx context.Context, action Action)
}

// Config tunes the scheduler loop. Zero values take defaults.
type Config struct {
	// Interval between evaluation ticks.
	Interval time.Duration

	// FetchTimeout bounds the aggregate state fetch; a tick whose
	// fetch fails or times out is skipped whole.
	FetchTimeout time.Duration

	// ActuateTimeout bounds each on/off command.
	ActuateTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
	if c.ActuateTimeout <= 0 {
		c.ActuateTimeout = 5 * time.Second
	}
	return c
}

// delayKey addresses one actor's consecutive-tick delay counter.
type delayKey struct {
	schedule string
	actor    trigger.ActorKind
}

// Scheduler drives the evaluation loop: once per interval it takes a
// state snapshot, walks every schedule, and actuates the ones whose
// triggers fire. All countdown and delay state lives here and in the
// timer table; the store and the compiled triggers stay immutable.
type Scheduler struct {
	store    *Store
	state    StateSource
	actuator Actuator
	resolver *timespec.Resolver
	ping     trigger.PingFunc
	timers   *trigger.TimerTable
	sinks    []ActionSink
	logger   *logging.Logger
	cfg      Config

	// now is overridable for tests.
	now func() time.Time

	// tickMu serialises ticks against externally requested reloads.
	tickMu sync.Mutex
	delays map[delayKey]int
}

// NewScheduler wires a scheduler. Sinks are optional and added with
// AddSink before Run.
func NewScheduler(store *Store, state StateSource, actuator Actuator, resolver *timespec.Resolver, ping trigger.PingFunc, cfg Config, logger *logging.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		state:    state,
		actuator: actuator,
		resolver: resolver,
		ping:     ping,
		timers:   trigger.NewTimerTable(),
		logger:   logger.With("component", "scheduler"),
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		delays:   make(map[delayKey]int),
	}
}

// AddSink registers an action sink. Not safe to call after Run starts.
func (s *Scheduler) AddSink(sink ActionSink) {
	s.sinks = append(s.sinks, sink)
}

// Run evaluates immediately, then on every interval tick until the
// context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", "interval", s.cfg.Interval.String())

	s.Tick(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Reload re-reads the schedules file and, on success, discards all
// countdown timers and delay counters. Stale timers keyed to vanished
// or renamed schedules would otherwise fire against the new document.
func (s *Scheduler) Reload() error {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	return s.reloadLocked()
}

func (s *Scheduler) reloadLocked() error {
	if err := s.store.Load(); err != nil {
		s.logger.Error("schedule reload failed, keeping previous document", "error", err)
		return err
	}
	s.timers.Reset()
	s.delays = make(map[delayKey]int)
	return nil
}

// Tick runs one full evaluation pass.
func (s *Scheduler) Tick(ctx context.Context) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	now := s.now()

	// Daily reset: reload at the configured minute so sun-relative
	// times pick up the new day and lingering overrides clear with the
	// rest of the runtime state.
	if reset := s.store.ResetSpec(); reset != "" {
		if t, ok := s.resolver.Resolve(reset); ok && t.Matches(now) {
			s.logger.Info("daily reset", "at", reset)
			_ = s.reloadLocked()
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	snap, err := s.state.AggregateState(fetchCtx)
	cancel()
	if err != nil {
		// Evaluating against stale or empty state would misfire
		// countdowns and comparisons, so the whole tick is skipped and
		// timers stay exactly where they were.
		s.logger.Warn("state fetch failed, skipping tick", "error", err)
		return
	}

	for _, name := range s.store.Names() {
		s.evalSchedule(ctx, name, snap, now)
	}
}

func (s *Scheduler) evalSchedule(ctx context.Context, name string, snap trigger.Snapshot, now time.Time) {
	sched := s.store.Get(name)
	if sched == nil || !sched.HasActors() {
		return
	}
	if s.store.IsOverridden(name) {
		s.logger.Debug("schedule overridden, skipping", "schedule", name)
		return
	}

	dev, present := snap[name]
	if !present {
		s.logger.Debug("schedule device absent from state, skipping", "schedule", name)
		return
	}

	if !dev.On() {
		// Entering the off-state branch abandons any off-actor delay
		// progress; the device would have to hold on again from scratch.
		delete(s.delays, delayKey{schedule: name, actor: trigger.ActorOff})
		s.evalActor(ctx, sched, trigger.ActorOn, snap, now)
		return
	}

	delete(s.delays, delayKey{schedule: name, actor: trigger.ActorOn})
	s.evalActor(ctx, sched, trigger.ActorOff, snap, now)
}

func (s *Scheduler) evalActor(ctx context.Context, sched *Schedule, actor trigger.ActorKind, snap trigger.Snapshot, now time.Time) {
	var expr trigger.Expr
	if actor == trigger.ActorOn {
		expr = sched.OnTrigger()
	} else {
		expr = sched.OffTrigger()
	}
	if expr == nil {
		return
	}

	key := delayKey{schedule: sched.Name, actor: actor}
	if sched.Spec.Delay > 0 {
		s.delays[key]++
		if s.delays[key] <= sched.Spec.Delay {
			s.logger.Debug("delaying trigger evaluation",
				"schedule", sched.Name, "actor", actor.String(),
				"held", s.delays[key], "delay", sched.Spec.Delay)
			return
		}
	}

	env := &trigger.Env{
		Schedule: sched.Name,
		Actor:    actor,
		Snapshot: snap,
		Now:      now,
		Timers:   s.timers,
		Resolver: s.resolver,
		RangeActive: func(rangeName string) (bool, error) {
			return s.store.RangeActive(rangeName, snap, now)
		},
		LookupValue: s.store.Value,
		Ping:        s.ping,
		Logger:      s.logger,
	}

	v, err := trigger.Eval(ctx, expr, env)
	if err != nil {
		s.logger.Warn("trigger evaluation failed",
			"schedule", sched.Name, "actor", actor.String(), "error", err)
		return
	}
	if !v.Truthy() {
		return
	}

	actCtx, cancel := context.WithTimeout(ctx, s.cfg.ActuateTimeout)
	defer cancel()

	if actor == trigger.ActorOn {
		err = s.actuator.TurnOn(actCtx, sched.Name)
	} else {
		err = s.actuator.TurnOff(actCtx, sched.Name)
	}
	if err != nil {
		// Leave timers and delay counters alone so the trigger retries
		// next tick against honest state.
		s.logger.Warn("actuation failed",
			"schedule", sched.Name, "actor", actor.String(), "error", err)
		return
	}

	// Optimistic state flip keeps later schedules this tick from
	// reacting to the pre-command state of this device.
	snap.SetOn(sched.Name, actor == trigger.ActorOn)
	s.timers.Clear(trigger.TimerKey{Schedule: sched.Name, Actor: actor})
	delete(s.delays, key)

	s.logger.Info("schedule fired",
		"schedule", sched.Name, "actor", actor.String(), "trigger", expr.String())

	action := Action{Schedule: sched.Name, Actor: actor, Trigger: expr.String(), At: now}
	for _, sink := range s.sinks {
		sink.RecordAction(ctx, action)
	}
}
