package trigger

import "sync"

// TimerKey addresses a countdown timer by the schedule and actor that
// own it. Keys never alias across schedules, and a reload clears the
// whole table rather than letting a redefined schedule inherit a
// half-run countdown.
type TimerKey struct {
	Schedule string
	Actor    ActorKind
}

// TimerTable holds the remaining-minutes countdown state shared by all
// evaluations. Entries are created lazily when a countdown condition
// first holds, decremented once per tick while it keeps holding, and
// removed on expiry or when the condition lapses.
//
// The scheduler evaluates schedules sequentially within a tick; the
// mutex exists so API reads (and any future parallel evaluation) stay
// safe.
type TimerTable struct {
	mu        sync.Mutex
	remaining map[TimerKey]int
}

// NewTimerTable creates an empty table.
func NewTimerTable() *TimerTable {
	return &TimerTable{remaining: make(map[TimerKey]int)}
}

// Ensure creates the timer with the given countdown if it does not
// exist, and returns the remaining minutes either way.
func (t *TimerTable) Ensure(key TimerKey, minutes int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rem, ok := t.remaining[key]; ok {
		return rem
	}
	t.remaining[key] = minutes
	return minutes
}

// Remaining returns the countdown state for a key.
func (t *TimerTable) Remaining(key TimerKey) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rem, ok := t.remaining[key]
	return rem, ok
}

// Decrement ticks a timer down by one minute. Missing keys are
// ignored.
func (t *TimerTable) Decrement(key TimerKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rem, ok := t.remaining[key]; ok {
		t.remaining[key] = rem - 1
	}
}

// Clear removes a single timer, reporting whether it existed.
func (t *TimerTable) Clear(key TimerKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.remaining[key]
	delete(t.remaining, key)
	return ok
}

// Reset drops every timer. Called on schedule reload: the new table is
// a wholesale replacement and half-run countdowns must not survive it.
func (t *TimerTable) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remaining = make(map[TimerKey]int)
}

// Len returns the number of live timers.
func (t *TimerTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.remaining)
}
