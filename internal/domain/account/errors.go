package account

import "errors"

var (
	ErrInvalidAccessCode  = errors.New("invalid access code")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUserExists         = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("not authenticated")
	// ErrNotFound is returned by a Store for a missing user or session.
	ErrNotFound = errors.New("not found")
)
