package repository

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidLimit = errors.New("invalid limit")
	ErrUnknownSport = errors.New("sport not tracked")
)
