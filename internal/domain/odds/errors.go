package odds

import "errors"

var (
	// ErrUnknownSport is returned when a sport name or key is not tracked.
	ErrUnknownSport = errors.New("unknown sport")
)
