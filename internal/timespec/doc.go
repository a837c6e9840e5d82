// Package timespec resolves textual time specifications into concrete
// times of day.
//
// A specification is one of, tried in this order:
//
//  1. "HH:MM"    - a plain time today
//  2. "+HH:MM"   - the same time tomorrow
//  3. "HH:MM±N"  - a plain time shifted by N minutes
//  4. "name"     - a named time (sunrise, sunset, lampOn, ...) supplied
//     by a SunSource
//  5. "name±N"   - a named time shifted by N minutes
//
// Anything else does not resolve; callers treat an unresolvable spec as
// a trigger that never fires. Range membership (IsBetween) operates on
// "HH:MM" strings and treats a start later than its end as a range that
// crosses midnight.
package timespec
