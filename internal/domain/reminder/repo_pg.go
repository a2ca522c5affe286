package reminder

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

const reminderCols = `id, patient_id, type, title, notes, due_date, status,
	resolved_at, resolved_by, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, rem *Reminder) error {
	if rem.ID == uuid.Nil {
		rem.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO reminders (id, patient_id, type, title, notes, due_date, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		rem.ID, rem.PatientID, rem.Type, rem.Title, rem.Notes, rem.DueDate, rem.Status,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Reminder, error) {
	rem, err := scanReminder(r.conn(ctx).QueryRow(ctx,
		`SELECT `+reminderCols+` FROM reminders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rem, nil
}

func (r *repoPG) Update(ctx context.Context, rem *Reminder) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE reminders SET
			type=$2, title=$3, notes=$4, due_date=$5, status=$6,
			resolved_at=$7, resolved_by=$8, updated_at=now()
		WHERE id = $1`,
		rem.ID, rem.Type, rem.Title, rem.Notes, rem.DueDate, rem.Status,
		rem.ResolvedAt, rem.ResolvedBy,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Reminder, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	n := 0

	if filter.PatientID != uuid.Nil {
		n++
		where = append(where, "patient_id = $"+strconv.Itoa(n))
		args = append(args, filter.PatientID)
	}
	if filter.Type != "" {
		n++
		where = append(where, "type = $"+strconv.Itoa(n))
		args = append(args, filter.Type)
	}
	if filter.Status != "" {
		n++
		where = append(where, "status = $"+strconv.Itoa(n))
		args = append(args, filter.Status)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM reminders WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+reminderCols+` FROM reminders WHERE `+cond+
			` ORDER BY due_date LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var rems []*Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, 0, err
		}
		rems = append(rems, rem)
	}
	return rems, total, rows.Err()
}

func (r *repoPG) MarkDue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE reminders SET status = 'due', updated_at = now()
		WHERE status = 'pending' AND due_date <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repoPG) DueOn(ctx context.Context, day time.Time) ([]*Reminder, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+reminderCols+` FROM reminders
		WHERE status IN ('pending','due') AND due_date >= $1 AND due_date < $2
		ORDER BY due_date`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rems []*Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		rems = append(rems, rem)
	}
	return rems, rows.Err()
}

func scanReminder(row pgx.Row) (*Reminder, error) {
	var rem Reminder
	err := row.Scan(
		&rem.ID, &rem.PatientID, &rem.Type, &rem.Title, &rem.Notes, &rem.DueDate,
		&rem.Status, &rem.ResolvedAt, &rem.ResolvedBy, &rem.CreatedAt, &rem.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rem, nil
}
