package entitlement

import "errors"

var (
	// ErrUnknownCapability is returned when a check names a capability the
	// guard does not recognize.
	ErrUnknownCapability = errors.New("unknown capability")

	// ErrResourceRequired is returned when a metered check is missing the
	// resource identifier needed for revisit tracking.
	ErrResourceRequired = errors.New("resource id is required for metered capabilities")
)
