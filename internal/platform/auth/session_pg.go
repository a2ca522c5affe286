package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSessionNotFound is returned when a session does not exist or has expired.
var ErrSessionNotFound = errors.New("session not found")

// ---------------------------------------------------------------------------
// pgRow / pgConn abstractions (allow unit testing without a real DB)
// ---------------------------------------------------------------------------

// pgRow represents a single row returned by QueryRow.
type pgRow interface {
	Scan(dest ...any) error
}

// pgConn is the minimal database interface required by PGSessionStore. Both
// *pgxpool.Pool (via a thin adapter) and test mocks implement this.
type pgConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgRow
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
}

// ---------------------------------------------------------------------------
// PGSessionStore
// ---------------------------------------------------------------------------

// PGSessionStore is a PostgreSQL-backed SessionStore. Sessions live in the
// staff_sessions table with an explicit expires_at column the database uses
// for filtering, so an expired session is indistinguishable from a missing
// one.
type PGSessionStore struct {
	db pgConn
}

// NewPGSessionStore creates a PG-backed store. The db parameter must satisfy
// the pgConn interface. Use NewPGSessionStoreFromPool to wrap a
// *pgxpool.Pool, or pass a mock in tests.
func NewPGSessionStore(db pgConn) *PGSessionStore {
	return &PGSessionStore{db: db}
}

func (s *PGSessionStore) Create(ctx context.Context, sess *Session) error {
	const query = `INSERT INTO staff_sessions (id, staff_id, roles, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5)`

	if _, err := s.db.Exec(ctx, query, sess.ID, sess.StaffID, sess.Roles, sess.CreatedAt, sess.ExpiresAt); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *PGSessionStore) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	const query = `SELECT id, staff_id, roles, created_at, expires_at
FROM staff_sessions
WHERE id = $1 AND expires_at > now()`

	sess := &Session{}
	err := s.db.QueryRow(ctx, query, id).Scan(
		&sess.ID, &sess.StaffID, &sess.Roles, &sess.CreatedAt, &sess.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *PGSessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM staff_sessions WHERE id = $1`
	if _, err := s.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteForStaff removes every session for a staff member. Used when an
// account is deactivated or the password changes.
func (s *PGSessionStore) DeleteForStaff(ctx context.Context, staffID uuid.UUID) (int64, error) {
	const query = `DELETE FROM staff_sessions WHERE staff_id = $1`
	n, err := s.db.Exec(ctx, query, staffID)
	if err != nil {
		return 0, fmt.Errorf("delete sessions for staff: %w", err)
	}
	return n, nil
}

// DeleteExpired removes sessions past their expiry. The reminder worker calls
// this on its sweep schedule.
func (s *PGSessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM staff_sessions WHERE expires_at <= now()`
	n, err := s.db.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// pgxPoolWrapper adapts *pgxpool.Pool to the pgConn interface
// ---------------------------------------------------------------------------

// pgxPoolWrapper wraps a *pgxpool.Pool so it satisfies the pgConn interface.
// The adapter is necessary because pgxpool.Pool.Exec returns
// (pgconn.CommandTag, error) whereas pgConn.Exec returns (int64, error).
type pgxPoolWrapper struct {
	pool *pgxpool.Pool
}

func (w *pgxPoolWrapper) QueryRow(ctx context.Context, sql string, args ...any) pgRow {
	return w.pool.QueryRow(ctx, sql, args...)
}

func (w *pgxPoolWrapper) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := w.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// NewPGSessionStoreFromPool creates a PG-backed store directly from a
// *pgxpool.Pool. This is the constructor for production use.
func NewPGSessionStoreFromPool(pool *pgxpool.Pool) *PGSessionStore {
	return &PGSessionStore{db: &pgxPoolWrapper{pool: pool}}
}
