package prescription

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

func (r *repoPG) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.TxFromContext(ctx) != nil {
		return fn(ctx)
	}
	return db.WithTx(ctx, r.pool, fn)
}

const rxCols = `id, patient_id, vet_id, product_id, dosage, quantity,
	refills_authorized, refills_remaining, expires_at, status, notes,
	last_filled_at, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Prescription) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO prescriptions (
			id, patient_id, vet_id, product_id, dosage, quantity,
			refills_authorized, refills_remaining, expires_at, status, notes,
			last_filled_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		p.ID, p.PatientID, p.VetID, p.ProductID, p.Dosage, p.Quantity,
		p.RefillsAuthorized, p.RefillsRemaining, p.ExpiresAt, p.Status, p.Notes,
		p.LastFilledAt,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx,
		`SELECT `+rxCols+` FROM prescriptions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *repoPG) Update(ctx context.Context, p *Prescription) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescriptions SET
			dosage=$2, quantity=$3, refills_authorized=$4, refills_remaining=$5,
			expires_at=$6, status=$7, notes=$8, last_filled_at=$9, updated_at=now()
		WHERE id = $1`,
		p.ID, p.Dosage, p.Quantity, p.RefillsAuthorized, p.RefillsRemaining,
		p.ExpiresAt, p.Status, p.Notes, p.LastFilledAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Prescription, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	n := 0

	if filter.PatientID != uuid.Nil {
		n++
		where = append(where, "patient_id = $"+strconv.Itoa(n))
		args = append(args, filter.PatientID)
	}
	if filter.VetID != uuid.Nil {
		n++
		where = append(where, "vet_id = $"+strconv.Itoa(n))
		args = append(args, filter.VetID)
	}
	if filter.Status != "" {
		n++
		where = append(where, "status = $"+strconv.Itoa(n))
		args = append(args, filter.Status)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM prescriptions WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+rxCols+` FROM prescriptions WHERE `+cond+
			` ORDER BY created_at DESC LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var rxs []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, 0, err
		}
		rxs = append(rxs, p)
	}
	return rxs, total, rows.Err()
}

func (r *repoPG) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescriptions SET status = 'expired', updated_at = now()
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(
		&p.ID, &p.PatientID, &p.VetID, &p.ProductID, &p.Dosage, &p.Quantity,
		&p.RefillsAuthorized, &p.RefillsRemaining, &p.ExpiresAt, &p.Status,
		&p.Notes, &p.LastFilledAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
