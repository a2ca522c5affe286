package visit

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

func (r *repoPG) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.TxFromContext(ctx) != nil {
		return fn(ctx)
	}
	return db.WithTx(ctx, r.pool, fn)
}

const visitCols = `id, patient_id, client_id, vet_id, appointment_id, status,
	subjective, objective, assessment, plan, diagnoses,
	weight_kg, temperature_c, pulse_bpm, respiration_rpm,
	invoice_id, started_at, completed_at, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, v *Visit) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO visits (
			id, patient_id, client_id, vet_id, appointment_id, status,
			subjective, objective, assessment, plan, diagnoses,
			weight_kg, temperature_c, pulse_bpm, respiration_rpm, started_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		v.ID, v.PatientID, v.ClientID, v.VetID, v.AppointmentID, v.Status,
		v.Subjective, v.Objective, v.Assessment, v.Plan, v.Diagnoses,
		v.WeightKg, v.TemperatureC, v.PulseBpm, v.RespirationRpm, v.StartedAt,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	v, err := scanVisit(r.conn(ctx).QueryRow(ctx, `SELECT `+visitCols+` FROM visits WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (r *repoPG) Update(ctx context.Context, v *Visit) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE visits SET
			status=$2, subjective=$3, objective=$4, assessment=$5, plan=$6,
			diagnoses=$7, weight_kg=$8, temperature_c=$9, pulse_bpm=$10,
			respiration_rpm=$11, invoice_id=$12, completed_at=$13, updated_at=now()
		WHERE id = $1`,
		v.ID, v.Status, v.Subjective, v.Objective, v.Assessment, v.Plan,
		v.Diagnoses, v.WeightKg, v.TemperatureC, v.PulseBpm,
		v.RespirationRpm, v.InvoiceID, v.CompletedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Visit, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	n := 0

	addUUID := func(col string, id uuid.UUID) {
		if id == uuid.Nil {
			return
		}
		n++
		where = append(where, col+" = $"+strconv.Itoa(n))
		args = append(args, id)
	}
	addUUID("patient_id", filter.PatientID)
	addUUID("client_id", filter.ClientID)
	addUUID("vet_id", filter.VetID)
	addUUID("appointment_id", filter.AppointmentID)
	if filter.Status != "" {
		n++
		where = append(where, "status = $"+strconv.Itoa(n))
		args = append(args, filter.Status)
	}

	cond := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM visits WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+visitCols+` FROM visits WHERE `+cond+
			` ORDER BY started_at DESC LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var visits []*Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, 0, err
		}
		visits = append(visits, v)
	}
	return visits, total, rows.Err()
}

func (r *repoPG) AddTreatment(ctx context.Context, t *Treatment) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO visit_treatments (
			id, visit_id, product_id, description, quantity,
			unit_price_cents, taxable, performed_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		t.ID, t.VisitID, t.ProductID, t.Description, t.Quantity,
		t.UnitPriceCents, t.Taxable, t.PerformedBy,
	)
	return err
}

func (r *repoPG) ListTreatments(ctx context.Context, visitID uuid.UUID) ([]*Treatment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, visit_id, product_id, description, quantity,
			unit_price_cents, taxable, performed_by, created_at
		FROM visit_treatments WHERE visit_id = $1
		ORDER BY created_at`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var treatments []*Treatment
	for rows.Next() {
		t, err := scanTreatment(rows)
		if err != nil {
			return nil, err
		}
		treatments = append(treatments, t)
	}
	return treatments, rows.Err()
}

func (r *repoPG) GetTreatment(ctx context.Context, id uuid.UUID) (*Treatment, error) {
	t, err := scanTreatment(r.conn(ctx).QueryRow(ctx, `
		SELECT id, visit_id, product_id, description, quantity,
			unit_price_cents, taxable, performed_by, created_at
		FROM visit_treatments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTreatmentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *repoPG) RemoveTreatment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM visit_treatments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTreatmentNotFound
	}
	return nil
}

func scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit
	err := row.Scan(
		&v.ID, &v.PatientID, &v.ClientID, &v.VetID, &v.AppointmentID, &v.Status,
		&v.Subjective, &v.Objective, &v.Assessment, &v.Plan, &v.Diagnoses,
		&v.WeightKg, &v.TemperatureC, &v.PulseBpm, &v.RespirationRpm,
		&v.InvoiceID, &v.StartedAt, &v.CompletedAt, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func scanTreatment(row pgx.Row) (*Treatment, error) {
	var t Treatment
	err := row.Scan(
		&t.ID, &t.VisitID, &t.ProductID, &t.Description, &t.Quantity,
		&t.UnitPriceCents, &t.Taxable, &t.PerformedBy, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
