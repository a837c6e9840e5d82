// Package schedule owns the schedules document and the evaluation
// loop that drives it.
//
// The Store loads the YAML schedules file, compiles every trigger up
// front, and swaps generations atomically so a broken edit never
// replaces a known-good document. It also carries the runtime-only
// override flags and resolves named time ranges and auxiliary values
// for the trigger evaluator.
//
// The Scheduler runs a fixed-interval loop: snapshot the aggregate
// device state, walk every schedule, evaluate the actor matching the
// device's current state, and issue on/off commands for triggers that
// fire. Consecutive-tick delay counters and countdown timers live in
// the scheduler and its timer table; compiled schedules stay
// immutable between reloads.
package schedule
