package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/okian/betedge/internal/domain/account"
)

// SessionCookie names the cookie holding the session token.
const SessionCookie = "session_id"

// Authenticator resolves session tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// AccountDependencies manages accounts and sessions.
type AccountDependencies interface {
	Authenticator
	Register(ctx context.Context, username, email, password, accessCode string) (account.Session, error)
	Login(ctx context.Context, username, password string) (account.Session, error)
	Logout(ctx context.Context, token string) error
}

// SessionToken returns the session token carried by r, if any.
func SessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// authenticate resolves the request's session to a username.
func authenticate(r *http.Request, deps Authenticator) (string, error) {
	token := SessionToken(r)
	if token == "" {
		return "", ErrUnauthorized
	}
	return deps.Authenticate(r.Context(), token)
}

// AuthHandler handles the register, login and logout form posts.
type AuthHandler struct {
	deps   AccountDependencies
	secure bool
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(deps AccountDependencies, secureCookies bool) *AuthHandler {
	return &AuthHandler{deps: deps, secure: secureCookies}
}

type registerRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	AccessCode string `json:"access_code"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleRegister handles POST /register.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	const op = "api.register"
	var req registerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	sess, err := h.deps.Register(r.Context(), req.Username, req.Email, req.Password, req.AccessCode)
	if err != nil {
		h.formError(w, op, err)
		return
	}
	h.startSession(w, r, sess)
}

// HandleLogin handles POST /login.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	const op = "api.login"
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errMissingField))
		return
	}
	sess, err := h.deps.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.formError(w, op, err)
		return
	}
	h.startSession(w, r, sess)
}

// HandleLogout handles POST /logout.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	const op = "api.logout"
	if err := h.deps.Logout(r.Context(), SessionToken(r)); err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, sess account.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// formError reports every client-side failure of a form post as 400.
func (h *AuthHandler) formError(w http.ResponseWriter, op string, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		writeErr(w, Wrap(op, err))
		return
	}
	writeError(w, http.StatusBadRequest, code, Wrap(op, err))
}
