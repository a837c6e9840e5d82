package trigger

import "errors"

// Domain errors for the trigger package. Check with errors.Is().
var (
	// ErrUnknownTrigger is returned when no grammar rule matches a
	// trigger specification. It surfaces at compile (load) time so a
	// broken configuration is caught on reload rather than silently
	// never firing.
	ErrUnknownTrigger = errors.New("trigger: unknown trigger format")

	// ErrIncomparable is returned when a comparison is evaluated
	// against operands with no common ordering. The scheduler treats
	// it as "trigger did not fire".
	ErrIncomparable = errors.New("trigger: incomparable operands")

	// ErrBadRange is returned when a range reference cannot be
	// resolved during evaluation.
	ErrBadRange = errors.New("trigger: range not resolvable")
)
