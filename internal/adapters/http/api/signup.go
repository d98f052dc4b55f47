package api

import (
	"context"
	"errors"
	"net/http"
)

// SignupDependencies records and counts waitlist emails.
type SignupDependencies interface {
	Signup(ctx context.Context, email string) (created bool, err error)
	SignupCounter
}

// SignupHandler handles POST /signup and POST /api/subscribe.
type SignupHandler struct {
	deps SignupDependencies
}

// NewSignupHandler creates a new signup handler.
func NewSignupHandler(deps SignupDependencies) *SignupHandler {
	return &SignupHandler{deps: deps}
}

type signupRequest struct {
	Email string `json:"email"`
}

type signupResponse struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	AlreadyRegistered bool   `json:"already_registered"`
}

// HandleSignup accepts a JSON or form email.
func (h *SignupHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	const op = "api.signup"
	var req signupRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, signupResponse{Message: "Invalid email"})
		return
	}

	created, err := h.deps.Signup(r.Context(), req.Email)
	if err != nil {
		status, _ := statusFor(err)
		if status == http.StatusBadRequest {
			writeJSON(w, http.StatusBadRequest, signupResponse{Message: "Invalid email"})
			return
		}
		writeErr(w, Wrap(op, err))
		return
	}

	msg := "Welcome to BetEdge AI Beta!"
	if !created {
		msg = "You're already on the list."
	}
	writeJSON(w, http.StatusOK, signupResponse{Success: true, Message: msg, AlreadyRegistered: !created})
}

var errMissingField = errors.New("missing required field")
