package client

import (
	"context"
	"errors"
	"strconv"
	"strings"

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

const clientCols = `id, first_name, last_name, email, phone, alt_phone,
	address_line1, address_line2, city, state, postal_code, notes, status,
	created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, c *Client) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO clients (
			id, first_name, last_name, email, phone, alt_phone,
			address_line1, address_line2, city, state, postal_code, notes, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		c.ID, c.FirstName, c.LastName, strings.ToLower(c.Email), c.Phone, c.AltPhone,
		c.AddressLine1, c.AddressLine2, c.City, c.State, c.PostalCode, c.Notes, c.Status,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Client, error) {
	return scanClient(r.conn(ctx).QueryRow(ctx, `SELECT `+clientCols+` FROM clients WHERE id = $1`, id))
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*Client, error) {
	return scanClient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+clientCols+` FROM clients WHERE email = $1`, strings.ToLower(email)))
}

func (r *repoPG) Update(ctx context.Context, c *Client) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE clients SET
			first_name=$2, last_name=$3, email=$4, phone=$5, alt_phone=$6,
			address_line1=$7, address_line2=$8, city=$9, state=$10,
			postal_code=$11, notes=$12, status=$13, updated_at=now()
		WHERE id = $1`,
		c.ID, c.FirstName, c.LastName, strings.ToLower(c.Email), c.Phone, c.AltPhone,
		c.AddressLine1, c.AddressLine2, c.City, c.State, c.PostalCode, c.Notes, c.Status,
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

func (r *repoPG) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE clients SET status=$2, updated_at=now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Client, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	n := 0

	switch filter.Status {
	case "all":
	case "":
		where = append(where, "status = 'active'")
	default:
		n++
		where = append(where, "status = $"+strconv.Itoa(n))
		args = append(args, filter.Status)
	}

	if q := strings.TrimSpace(filter.Query); q != "" {
		n++
		p := "$" + strconv.Itoa(n)
		where = append(where, `(first_name ILIKE `+p+` OR last_name ILIKE `+p+
			` OR email ILIKE `+p+` OR phone LIKE `+p+`)`)
		args = append(args, q+"%")
	}

	cond := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM clients WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+clientCols+` FROM clients WHERE `+cond+
			` ORDER BY last_name, first_name LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var clients []*Client
	for rows.Next() {
		c, err := scanClientRow(rows)
		if err != nil {
			return nil, 0, err
		}
		clients = append(clients, c)
	}
	return clients, total, rows.Err()
}

func (r *repoPG) HasPatients(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE client_id = $1)`, id).Scan(&exists)
	return exists, err
}

func scanClient(row pgx.Row) (*Client, error) {
	c, err := scanClientRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func scanClientRow(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.AltPhone,
		&c.AddressLine1, &c.AddressLine2, &c.City, &c.State, &c.PostalCode,
		&c.Notes, &c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
