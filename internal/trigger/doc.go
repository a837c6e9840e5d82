// Package trigger compiles textual trigger specifications into
// expression trees and evaluates them against device state snapshots.
//
// Grammar, in fixed priority order (first match wins):
//
//	A op B          comparison, op in = != < > <= >= (recursive operands)
//	~N              power countdown: power above threshold for N minutes
//	/N              plain countdown: device on for N minutes
//	X & Y [& Z]     conjunction (all operands evaluated each tick)
//	X | Y [| Z]     disjunction (all operands evaluated each tick)
//	dev.prop[±N]    device property, time-valued properties match the clock
//	!X              negation
//	a.b.c.d         dotted-quad host, presence ping
//	'key'           auxiliary named value
//	name            a declared range, else a resolvable time spec,
//	                else a number, else a device's on state
//
// Compilation (Parse) happens once per configuration load; anything
// unmatched is an ErrUnknownTrigger then and there. Evaluation (Eval)
// is a pure tree walk over a Snapshot, with one exception: countdown
// nodes thread persistent state through a TimerTable keyed by
// (schedule, actor) so the same expression re-evaluated on successive
// ticks advances its countdown deterministically.
//
// # Thread Safety
//
// Expressions are immutable and safe to share. TimerTable serialises
// its own access; Env values are per-evaluation and must not be shared
// across concurrent evaluations of the same schedule.
package trigger
