package schedule

import "errors"

// Domain errors for the schedule package. Check with errors.Is().
var (
	// ErrBadDocument is returned when the schedules file cannot be
	// read, parsed, or compiled. A failed reload keeps the previous
	// schedule set running.
	ErrBadDocument = errors.New("schedule: bad schedules document")

	// ErrNotFound is returned when a named schedule does not exist.
	ErrNotFound = errors.New("schedule: not found")
)
