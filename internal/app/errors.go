package service

import "errors"

var (
	ErrNotStarted   = errors.New("service not started")
	ErrInvalidEmail = errors.New("invalid email")
	ErrGameNotFound = errors.New("game not found")
)
