package appointment

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

const apptCols = `id, client_id, patient_id, vet_id, type, status,
	scheduled_start, scheduled_end, reason, room,
	confirmed_at, checked_in_at, started_at, completed_at, cancelled_at,
	created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointments (
			id, client_id, patient_id, vet_id, type, status,
			scheduled_start, scheduled_end, reason, room
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.ClientID, a.PatientID, a.VetID, a.Type, a.Status,
		a.ScheduledStart, a.ScheduledEnd, a.Reason, a.Room,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET
			client_id=$2, patient_id=$3, vet_id=$4, type=$5, status=$6,
			scheduled_start=$7, scheduled_end=$8, reason=$9, room=$10,
			confirmed_at=$11, checked_in_at=$12, started_at=$13,
			completed_at=$14, cancelled_at=$15, updated_at=now()
		WHERE id = $1`,
		a.ID, a.ClientID, a.PatientID, a.VetID, a.Type, a.Status,
		a.ScheduledStart, a.ScheduledEnd, a.Reason, a.Room,
		a.ConfirmedAt, a.CheckedInAt, a.StartedAt, a.CompletedAt, a.CancelledAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Appointment, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	n := 0

	if filter.Day != nil {
		day := time.Date(filter.Day.Year(), filter.Day.Month(), filter.Day.Day(), 0, 0, 0, 0, filter.Day.Location())
		where = append(where,
			"scheduled_start >= $"+strconv.Itoa(n+1),
			"scheduled_start < $"+strconv.Itoa(n+2))
		args = append(args, day, day.Add(24*time.Hour))
		n += 2
	}
	if filter.VetID != uuid.Nil {
		n++
		where = append(where, "vet_id = $"+strconv.Itoa(n))
		args = append(args, filter.VetID)
	}
	if filter.PatientID != uuid.Nil {
		n++
		where = append(where, "patient_id = $"+strconv.Itoa(n))
		args = append(args, filter.PatientID)
	}
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
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE `+cond+
			` ORDER BY scheduled_start LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var appts []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		appts = append(appts, a)
	}
	return appts, total, rows.Err()
}

func (r *repoPG) Transition(ctx context.Context, a *Appointment, ch *StatusChange) error {
	run := func(ctx context.Context) error {
		if err := r.Update(ctx, a); err != nil {
			return err
		}
		if ch.ID == uuid.Nil {
			ch.ID = uuid.New()
		}
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO appointment_status_changes (
				id, appointment_id, from_status, to_status, actor_id, note
			) VALUES ($1,$2,$3,$4,$5,$6)`,
			ch.ID, ch.AppointmentID, ch.FromStatus, ch.ToStatus, ch.ActorID, ch.Note,
		)
		return err
	}
	if db.TxFromContext(ctx) != nil {
		return run(ctx)
	}
	return db.WithTx(ctx, r.pool, run)
}

func (r *repoPG) ListStatusChanges(ctx context.Context, appointmentID uuid.UUID) ([]*StatusChange, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, appointment_id, from_status, to_status, actor_id, note, created_at
		FROM appointment_status_changes
		WHERE appointment_id = $1
		ORDER BY created_at`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []*StatusChange
	for rows.Next() {
		var ch StatusChange
		if err := rows.Scan(&ch.ID, &ch.AppointmentID, &ch.FromStatus, &ch.ToStatus,
			&ch.ActorID, &ch.Note, &ch.CreatedAt); err != nil {
			return nil, err
		}
		changes = append(changes, &ch)
	}
	return changes, rows.Err()
}

func (r *repoPG) CountOverlapping(ctx context.Context, vetID uuid.UUID, start, end time.Time, excludeID uuid.UUID) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE vet_id = $1
		  AND id <> $2
		  AND status NOT IN ('completed', 'cancelled', 'no_show')
		  AND scheduled_start < $4
		  AND scheduled_end > $3`,
		vetID, excludeID, start, end,
	).Scan(&count)
	return count, err
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.ClientID, &a.PatientID, &a.VetID, &a.Type, &a.Status,
		&a.ScheduledStart, &a.ScheduledEnd, &a.Reason, &a.Room,
		&a.ConfirmedAt, &a.CheckedInAt, &a.StartedAt, &a.CompletedAt, &a.CancelledAt,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
