package mixer

import "errors"

var (
	// ErrCatalogUnavailable is returned when the catalog store cannot be reached.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrInvalidInput is returned for an empty name or an unresolvable source.
	ErrInvalidInput = errors.New("invalid input")
	// ErrForbidden is returned when removing a built-in or foreign track.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned for unknown track ids.
	ErrNotFound = errors.New("not found")
	// ErrOutOfRange is returned for volumes outside [0, 1].
	ErrOutOfRange = errors.New("volume out of range")
	// ErrHandleFault wraps failed handle calls. It is logged, never returned.
	ErrHandleFault = errors.New("handle fault")
	// ErrStopped is returned by commands issued after the event loop exited.
	ErrStopped = errors.New("mixer stopped")
)
