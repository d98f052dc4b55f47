// Package sqlstore persists signups, accounts, sessions and tracked bets in SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite" // registers the "sqlite" driver

	"github.com/google/uuid"

	"github.com/okian/betedge/internal/domain/account"
	"github.com/okian/betedge/internal/domain/ledger"
)

const timeLayout = time.RFC3339Nano

// Store is a SQLite-backed store. It satisfies account.Store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ account.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and migrates the schema.
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := ":memory:?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Every connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(time.Hour)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AddSignup records an email for the beta list. created is false when the
// address was already on the list.
func (s *Store) AddSignup(ctx context.Context, email string) (created bool, err error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO signups (email, created_at) VALUES (?, ?) ON CONFLICT(email) DO NOTHING`,
		NormalizeEmail(email), s.now().UTC().Format(timeLayout))
	if err != nil {
		return false, fmt.Errorf("add signup: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add signup: %w", err)
	}
	return n == 1, nil
}

// CountSignups returns the number of distinct signups.
func (s *Store) CountSignups(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM signups`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count signups: %w", err)
	}
	return n, nil
}

// CreateUser implements account.Store.
func (s *Store) CreateUser(ctx context.Context, u account.User) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, access_code, created_at)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT(username) DO NOTHING`,
		u.Username, u.Email, u.PasswordHash, u.AccessCode, u.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("create user: %w", err)
	} else if n == 0 {
		return account.ErrUserExists
	}
	return nil
}

// GetUser implements account.Store.
func (s *Store) GetUser(ctx context.Context, username string) (account.User, error) {
	var (
		u       account.User
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT username, email, password_hash, access_code, created_at FROM users WHERE username = ?`,
		username).Scan(&u.Username, &u.Email, &u.PasswordHash, &u.AccessCode, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return account.User{}, account.ErrNotFound
	}
	if err != nil {
		return account.User{}, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = parseTime(created)
	return u, nil
}

// CreateSession implements account.Store.
func (s *Store) CreateSession(ctx context.Context, sess account.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (token, username, expires_at) VALUES (?, ?, ?)`,
		sess.Token, sess.Username, sess.ExpiresAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession implements account.Store.
func (s *Store) GetSession(ctx context.Context, token string) (account.Session, error) {
	var (
		sess    account.Session
		expires int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT token, username, expires_at FROM sessions WHERE token = ?`, token).
		Scan(&sess.Token, &sess.Username, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return account.Session{}, account.ErrNotFound
	}
	if err != nil {
		return account.Session{}, fmt.Errorf("get session: %w", err)
	}
	sess.ExpiresAt = time.UnixMilli(expires).UTC()
	return sess, nil
}

// DeleteSession implements account.Store.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions that expired at or before now.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

// PlaceBet stores a pending bet. A repeated (username, request id) returns the
// first bet with duplicate set.
func (s *Store) PlaceBet(ctx context.Context, b ledger.Bet) (stored ledger.Bet, duplicate bool, err error) {
	if err := b.Validate(); err != nil {
		return ledger.Bet{}, false, err
	}
	b.ID = uuid.NewString()
	b.Status = ledger.Pending
	if b.PlacedAt.IsZero() {
		b.PlacedAt = s.now()
	}
	b.PlacedAt = b.PlacedAt.UTC()
	b.SettledAt = nil

	var requestID any
	if b.RequestID != "" {
		requestID = b.RequestID
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO bets (id, username, request_id, game_id, pick, bet_type, price, units, status, placed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(username, request_id) DO NOTHING`,
		b.ID, b.Username, requestID, b.GameID, b.Pick, b.Type, b.Price, b.Units, string(b.Status),
		b.PlacedAt.Format(timeLayout))
	if err != nil {
		return ledger.Bet{}, false, fmt.Errorf("place bet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ledger.Bet{}, false, fmt.Errorf("place bet: %w", err)
	}
	if n == 1 {
		return b, false, nil
	}

	existing, err := s.scanBet(s.db.QueryRowContext(ctx,
		selectBet+` WHERE username = ? AND request_id = ?`, b.Username, b.RequestID))
	if err != nil {
		return ledger.Bet{}, false, fmt.Errorf("load duplicate bet: %w", err)
	}
	return existing, true, nil
}

// GetBet loads a bet by id.
func (s *Store) GetBet(ctx context.Context, id string) (ledger.Bet, error) {
	b, err := s.scanBet(s.db.QueryRowContext(ctx, selectBet+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Bet{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Bet{}, fmt.Errorf("get bet: %w", err)
	}
	return b, nil
}

// ListBets returns a user's bets, newest first.
func (s *Store) ListBets(ctx context.Context, username string) ([]ledger.Bet, error) {
	rows, err := s.db.QueryContext(ctx, selectBet+` WHERE username = ? ORDER BY placed_at DESC, id`, username)
	if err != nil {
		return nil, fmt.Errorf("list bets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	bets := []ledger.Bet{}
	for rows.Next() {
		b, err := s.scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("list bets: %w", err)
		}
		bets = append(bets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list bets: %w", err)
	}
	return bets, nil
}

// SettleBet records the result of a pending bet. A bet settles once.
func (s *Store) SettleBet(ctx context.Context, id string, result ledger.Result) (ledger.Bet, error) {
	if result != ledger.Win && result != ledger.Loss && result != ledger.Push {
		return ledger.Bet{}, fmt.Errorf("%w: %q", ledger.ErrInvalidResult, result)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE bets SET status = ?, settled_at = ? WHERE id = ? AND status = ?`,
		string(result), s.now().UTC().Format(timeLayout), id, string(ledger.Pending))
	if err != nil {
		return ledger.Bet{}, fmt.Errorf("settle bet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ledger.Bet{}, fmt.Errorf("settle bet: %w", err)
	}

	b, err := s.GetBet(ctx, id)
	if err != nil {
		return ledger.Bet{}, err
	}
	if n == 0 {
		return b, ledger.ErrAlreadySettled
	}
	return b, nil
}

// Performance summarises a user's bets.
func (s *Store) Performance(ctx context.Context, username string) (ledger.Performance, error) {
	bets, err := s.ListBets(ctx, username)
	if err != nil {
		return ledger.Performance{}, err
	}
	return ledger.Summarize(bets), nil
}

const selectBet = `SELECT id, username, COALESCE(request_id, ''), game_id, pick, bet_type, price, units, status, placed_at, settled_at FROM bets`

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanBet(row scanner) (ledger.Bet, error) {
	var (
		b       ledger.Bet
		status  string
		placed  string
		settled sql.NullString
	)
	if err := row.Scan(&b.ID, &b.Username, &b.RequestID, &b.GameID, &b.Pick, &b.Type,
		&b.Price, &b.Units, &status, &placed, &settled); err != nil {
		return ledger.Bet{}, err
	}
	b.Status = ledger.Result(status)
	b.PlacedAt = parseTime(placed)
	if settled.Valid {
		t := parseTime(settled.String)
		b.SettledAt = &t
	}
	return b, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
