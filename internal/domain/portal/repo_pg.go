package portal

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetpms/vetpms/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) CreateInvite(ctx context.Context, inv *Invite) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO portal_invites (code, client_id, expires_at)
		VALUES ($1,$2,$3)`,
		inv.Code, inv.ClientID, inv.ExpiresAt,
	)
	return err
}

func (r *repoPG) GetInvite(ctx context.Context, code string) (*Invite, error) {
	var inv Invite
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT code, client_id, expires_at, used_at, created_at
		FROM portal_invites WHERE code = $1`, code).
		Scan(&inv.Code, &inv.ClientID, &inv.ExpiresAt, &inv.UsedAt, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidInvite
		}
		return nil, err
	}
	return &inv, nil
}

func (r *repoPG) MarkInviteUsed(ctx context.Context, code string, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE portal_invites SET used_at = $2 WHERE code = $1 AND used_at IS NULL`,
		code, at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidInvite
	}
	return nil
}

const accountCols = `id, client_id, email, password_hash, active, failed_logins,
	locked_until, last_login_at, created_at, updated_at`

func (r *repoPG) CreateAccount(ctx context.Context, a *Account) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO portal_accounts (id, client_id, email, password_hash, active)
		VALUES ($1,$2,$3,$4,$5)`,
		a.ID, a.ClientID, strings.ToLower(a.Email), a.PasswordHash, a.Active,
	)
	if isUniqueViolation(err) {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && strings.Contains(pgErr.ConstraintName, "client_id") {
			return ErrAccountExists
		}
		return ErrDuplicateEmail
	}
	return err
}

func (r *repoPG) GetAccountByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return r.getAccount(ctx, `SELECT `+accountCols+` FROM portal_accounts WHERE id = $1`, id)
}

func (r *repoPG) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	return r.getAccount(ctx,
		`SELECT `+accountCols+` FROM portal_accounts WHERE email = $1`,
		strings.ToLower(email))
}

func (r *repoPG) getAccount(ctx context.Context, query string, arg interface{}) (*Account, error) {
	var a Account
	err := r.conn(ctx).QueryRow(ctx, query, arg).Scan(
		&a.ID, &a.ClientID, &a.Email, &a.PasswordHash, &a.Active, &a.FailedLogins,
		&a.LockedUntil, &a.LastLoginAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) UpdateAccount(ctx context.Context, a *Account) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE portal_accounts SET
			email=$2, password_hash=$3, active=$4, failed_logins=$5,
			locked_until=$6, last_login_at=$7, updated_at=now()
		WHERE id = $1`,
		a.ID, strings.ToLower(a.Email), a.PasswordHash, a.Active, a.FailedLogins,
		a.LockedUntil, a.LastLoginAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const requestCols = `id, client_id, patient_id, preferred_start, reason, status,
	appointment_id, staff_note, created_at, updated_at`

func (r *repoPG) CreateRequest(ctx context.Context, req *AppointmentRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO portal_appointment_requests (
			id, client_id, patient_id, preferred_start, reason, status
		) VALUES ($1,$2,$3,$4,$5,$6)`,
		req.ID, req.ClientID, req.PatientID, req.PreferredStart, req.Reason, req.Status,
	)
	return err
}

func (r *repoPG) GetRequest(ctx context.Context, id uuid.UUID) (*AppointmentRequest, error) {
	req, err := scanRequest(r.conn(ctx).QueryRow(ctx,
		`SELECT `+requestCols+` FROM portal_appointment_requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return req, nil
}

func (r *repoPG) UpdateRequest(ctx context.Context, req *AppointmentRequest) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE portal_appointment_requests SET
			status=$2, appointment_id=$3, staff_note=$4, updated_at=now()
		WHERE id = $1`,
		req.ID, req.Status, req.AppointmentID, req.StaffNote,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListRequests(ctx context.Context, filter RequestFilter, limit, offset int) ([]*AppointmentRequest, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	n := 0

	if filter.ClientID != uuid.Nil {
		n++
		where = append(where, "client_id = $"+strconv.Itoa(n))
		args = append(args, filter.ClientID)
	}
	if filter.Status != "" {
		n++
		where = append(where, "status = $"+strconv.Itoa(n))
		args = append(args, filter.Status)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM portal_appointment_requests WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+requestCols+` FROM portal_appointment_requests WHERE `+cond+
			` ORDER BY created_at DESC LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var reqs []*AppointmentRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		reqs = append(reqs, req)
	}
	return reqs, total, rows.Err()
}

func scanRequest(row pgx.Row) (*AppointmentRequest, error) {
	var req AppointmentRequest
	err := row.Scan(
		&req.ID, &req.ClientID, &req.PatientID, &req.PreferredStart, &req.Reason,
		&req.Status, &req.AppointmentID, &req.StaffNote, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
