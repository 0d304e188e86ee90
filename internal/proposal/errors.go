package proposal

import "errors"

var (
	// ErrUnknownVariant is returned when a row names a variant tag that was
	// never registered. Construction fails loudly: defaulting to STANDARD
	// would corrupt tallies for approval and optimistic proposals.
	ErrUnknownVariant = errors.New("unknown proposal variant")

	// ErrRegistryNotReady is returned when a variant is resolved before the
	// registry has been frozen.
	ErrRegistryNotReady = errors.New("proposal type registry not ready")

	// ErrRegistryConflict is returned when a variant tag is re-registered
	// with different rules.
	ErrRegistryConflict = errors.New("conflicting proposal variant registration")

	// ErrInvalidData is returned when a variant payload fails parsing or
	// validation.
	ErrInvalidData = errors.New("invalid proposal data")
)
