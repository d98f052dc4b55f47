package smoke

import "errors"

var (
	// ErrCheckFailed wraps the first failing step of a run.
	ErrCheckFailed = errors.New("smoke check failed")
	// ErrUnexpectedStatus is returned when the server answers with the wrong code.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrInvalidConfig is returned for an unusable run configuration.
	ErrInvalidConfig = errors.New("invalid smoke config")
)
