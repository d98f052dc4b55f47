package queue

import "errors"

var (
	// ErrClosed is returned when an operation targets a closed queue.
	ErrClosed = errors.New("queue closed")
)
