package protocol

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

func (r *repoPG) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.TxFromContext(ctx) != nil {
		return fn(ctx)
	}
	return db.WithTx(ctx, r.pool, fn)
}

func (r *repoPG) CreateProtocol(ctx context.Context, p *Protocol) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return r.inTx(ctx, func(ctx context.Context) error {
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO protocols (id, name, species, description, active)
			VALUES ($1,$2,$3,$4,$5)`,
			p.ID, p.Name, p.Species, p.Description, p.Active,
		)
		if err != nil {
			return err
		}
		return r.insertSteps(ctx, p)
	})
}

func (r *repoPG) UpdateProtocol(ctx context.Context, p *Protocol) error {
	return r.inTx(ctx, func(ctx context.Context) error {
		tag, err := r.conn(ctx).Exec(ctx, `
			UPDATE protocols SET name=$2, species=$3, description=$4, active=$5, updated_at=now()
			WHERE id = $1`,
			p.ID, p.Name, p.Species, p.Description, p.Active,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM protocol_steps WHERE protocol_id = $1`, p.ID); err != nil {
			return err
		}
		return r.insertSteps(ctx, p)
	})
}

func (r *repoPG) insertSteps(ctx context.Context, p *Protocol) error {
	for i, s := range p.Steps {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		s.ProtocolID = p.ID
		s.Position = i + 1
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO protocol_steps (id, protocol_id, position, name, day_offset, product_id, dose, instructions)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			s.ID, s.ProtocolID, s.Position, s.Name, s.DayOffset, s.ProductID, s.Dose, s.Instructions,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) GetProtocol(ctx context.Context, id uuid.UUID) (*Protocol, error) {
	var p Protocol
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, name, species, description, active, created_at, updated_at
		FROM protocols WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Species, &p.Description, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, protocol_id, position, name, day_offset, product_id, dose, instructions
		FROM protocol_steps WHERE protocol_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var s Step
		if err := rows.Scan(&s.ID, &s.ProtocolID, &s.Position, &s.Name, &s.DayOffset, &s.ProductID, &s.Dose, &s.Instructions); err != nil {
			return nil, err
		}
		p.Steps = append(p.Steps, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) ListProtocols(ctx context.Context, filter ProtocolFilter, limit, offset int) ([]*Protocol, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	n := 0

	if filter.Species != "" {
		n++
		where = append(where, "(species IS NULL OR species = $"+strconv.Itoa(n)+")")
		args = append(args, filter.Species)
	}
	if filter.ActiveOnly {
		where = append(where, "active")
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM protocols WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, name, species, description, active, created_at, updated_at
		FROM protocols WHERE `+cond+
		` ORDER BY name LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Protocol
	for rows.Next() {
		var p Protocol
		if err := rows.Scan(&p.ID, &p.Name, &p.Species, &p.Description, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &p)
	}
	return out, total, rows.Err()
}

func (r *repoPG) CreatePlan(ctx context.Context, p *TreatmentPlan) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return r.inTx(ctx, func(ctx context.Context) error {
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO treatment_plans (id, patient_id, protocol_id, name, start_date, status, created_by)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			p.ID, p.PatientID, p.ProtocolID, p.Name, p.StartDate, p.Status, p.CreatedBy,
		)
		if err != nil {
			return err
		}
		for i, s := range p.Steps {
			if s.ID == uuid.Nil {
				s.ID = uuid.New()
			}
			s.PlanID = p.ID
			s.Position = i + 1
			_, err := r.conn(ctx).Exec(ctx, `
				INSERT INTO treatment_plan_steps (
					id, plan_id, position, name, scheduled_date, product_id, dose,
					instructions, status
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
				s.ID, s.PlanID, s.Position, s.Name, s.ScheduledDate, s.ProductID, s.Dose,
				s.Instructions, s.Status,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repoPG) GetPlan(ctx context.Context, id uuid.UUID) (*TreatmentPlan, error) {
	var p TreatmentPlan
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, protocol_id, name, start_date, status, created_by, created_at, updated_at
		FROM treatment_plans WHERE id = $1`, id).
		Scan(&p.ID, &p.PatientID, &p.ProtocolID, &p.Name, &p.StartDate, &p.Status, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, plan_id, position, name, scheduled_date, product_id, dose,
			instructions, status, resolved_at, resolved_by, notes
		FROM treatment_plan_steps WHERE plan_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var s PlanStep
		if err := rows.Scan(
			&s.ID, &s.PlanID, &s.Position, &s.Name, &s.ScheduledDate, &s.ProductID,
			&s.Dose, &s.Instructions, &s.Status, &s.ResolvedAt, &s.ResolvedBy, &s.Notes,
		); err != nil {
			return nil, err
		}
		p.Steps = append(p.Steps, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) UpdatePlanStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE treatment_plans SET status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPlanNotFound
	}
	return nil
}

func (r *repoPG) ListPlans(ctx context.Context, filter PlanFilter, limit, offset int) ([]*TreatmentPlan, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	n := 0

	if filter.PatientID != uuid.Nil {
		n++
		where = append(where, "patient_id = $"+strconv.Itoa(n))
		args = append(args, filter.PatientID)
	}
	if filter.Status != "" {
		n++
		where = append(where, "status = $"+strconv.Itoa(n))
		args = append(args, filter.Status)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM treatment_plans WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, protocol_id, name, start_date, status, created_by, created_at, updated_at
		FROM treatment_plans WHERE `+cond+
		` ORDER BY created_at DESC LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*TreatmentPlan
	for rows.Next() {
		var p TreatmentPlan
		if err := rows.Scan(&p.ID, &p.PatientID, &p.ProtocolID, &p.Name, &p.StartDate, &p.Status, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &p)
	}
	return out, total, rows.Err()
}

func (r *repoPG) UpdateStep(ctx context.Context, s *PlanStep) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE treatment_plan_steps SET
			status=$2, resolved_at=$3, resolved_by=$4, notes=$5
		WHERE id = $1`,
		s.ID, s.Status, s.ResolvedAt, s.ResolvedBy, s.Notes,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStepNotFound
	}
	return nil
}
