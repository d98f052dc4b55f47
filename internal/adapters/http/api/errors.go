package api

import (
	"errors"
	"net/http"

	service "github.com/okian/betedge/internal/app"
	"github.com/okian/betedge/internal/adapters/repository"
	"github.com/okian/betedge/internal/domain/account"
	"github.com/okian/betedge/internal/domain/ledger"
	"github.com/okian/betedge/internal/domain/odds"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("not authenticated")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("service unavailable")
)

// opError ties an error to the handler operation and an API kind.
type opError struct {
	op   string
	kind error
	err  error
}

func (e *opError) Error() string {
	switch {
	case e.err != nil && e.kind != nil:
		return e.kind.Error() + ": " + e.err.Error()
	case e.err != nil:
		return e.err.Error()
	case e.kind != nil:
		return e.kind.Error()
	default:
		return e.op
	}
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *opError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.kind != nil {
		out = append(out, e.kind)
	}
	if e.err != nil {
		out = append(out, e.err)
	}
	return out
}

// Op returns the operation that failed.
func (e *opError) Op() string { return e.op }

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return &opError{op: op, kind: kind}
}

// Wrap attaches op to err without a kind.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &opError{op: op, err: err}
}

// WrapKind attaches op and kind to err.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return NewKind(op, kind)
	}
	return &opError{op: op, kind: kind, err: err}
}

// statusFor maps an error to an HTTP status and an error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrUnauthorized), errors.Is(err, account.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, account.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, account.ErrUserExists):
		return http.StatusConflict, "user_exists"
	case errors.Is(err, ErrNotFound), errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrGameNotFound), errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ledger.ErrAlreadySettled):
		return http.StatusConflict, "already_settled"
	case errors.Is(err, ErrBadRequest), errors.Is(err, odds.ErrUnknownSport),
		errors.Is(err, repository.ErrInvalidLimit), errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, account.ErrInvalidInput), errors.Is(err, account.ErrInvalidAccessCode),
		errors.Is(err, ledger.ErrInvalidBet), errors.Is(err, ledger.ErrInvalidResult):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrUnavailable), errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
