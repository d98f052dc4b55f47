// Package account handles beta registration, login and cookie sessions.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLen = 6
	// bcrypt rejects longer inputs.
	maxPasswordLen = 72
	defaultTTL     = 7 * 24 * time.Hour
)

// DefaultAccessCodes are the beta invitation codes.
var DefaultAccessCodes = []string{"BETA2024", "EARLY2024", "VIP2024", "ML2024"}

// User is a registered account.
type User struct {
	Username     string
	Email        string
	PasswordHash string
	AccessCode   string
	CreatedAt    time.Time
}

// Session binds a cookie token to a user until it expires.
type Session struct {
	Token     string
	Username  string
	ExpiresAt time.Time
}

// Store persists users and sessions.
type Store interface {
	// CreateUser returns ErrUserExists for a taken username.
	CreateUser(ctx context.Context, u User) error
	// GetUser returns ErrNotFound for an unknown username.
	GetUser(ctx context.Context, username string) (User, error)
	CreateSession(ctx context.Context, s Session) error
	// GetSession returns ErrNotFound for an unknown token.
	GetSession(ctx context.Context, token string) (Session, error)
	DeleteSession(ctx context.Context, token string) error
}

// Service implements the account operations on top of a Store.
type Service struct {
	store Store
	codes map[string]struct{}
	ttl   time.Duration
	cost  int
	now   func() time.Time
}

// NewService returns a Service with the default access codes and a one week TTL.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		ttl:   defaultTTL,
		cost:  bcrypt.DefaultCost,
		now:   time.Now,
	}
	WithAccessCodes(DefaultAccessCodes)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates and stores a new user, then opens a session.
func (s *Service) Register(ctx context.Context, username, email, password, accessCode string) (Session, error) {
	if _, ok := s.codes[strings.TrimSpace(accessCode)]; !ok {
		return Session{}, ErrInvalidAccessCode
	}
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	switch {
	case username == "":
		return Session{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	case !strings.Contains(email, "@"):
		return Session{}, fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	case len(password) < minPasswordLen:
		return Session{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	case len(password) > maxPasswordLen:
		return Session{}, fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, maxPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	u := User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		AccessCode:   strings.TrimSpace(accessCode),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return Session{}, fmt.Errorf("register %s: %w", username, err)
	}
	return s.openSession(ctx, username)
}

// Login checks credentials and opens a session.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	u, err := s.store.GetUser(ctx, strings.TrimSpace(username))
	if errors.Is(err, ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("login: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.openSession(ctx, u.Username)
}

// Logout ends a session. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.store.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Authenticate resolves a session token to its username. Expired sessions
// are deleted.
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthenticated
	}
	sess, err := s.store.GetSession(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return "", ErrUnauthenticated
	}
	if err != nil {
		return "", fmt.Errorf("authenticate: %w", err)
	}
	if !s.now().Before(sess.ExpiresAt) {
		_ = s.store.DeleteSession(ctx, token)
		return "", ErrUnauthenticated
	}
	return sess.Username, nil
}

// SessionTTL returns the configured session lifetime.
func (s *Service) SessionTTL() time.Duration {
	return s.ttl
}

func (s *Service) openSession(ctx context.Context, username string) (Session, error) {
	sess := Session{
		Token:     uuid.NewString(),
		Username:  username,
		ExpiresAt: s.now().Add(s.ttl).UTC(),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}
