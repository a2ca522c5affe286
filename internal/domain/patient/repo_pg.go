package patient

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

const patientCols = `id, client_id, name, species, breed, sex, color, birth_date,
	microchip_number, deceased, deceased_date, alerts, notes, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (
			id, client_id, name, species, breed, sex, color, birth_date,
			microchip_number, deceased, deceased_date, alerts, notes
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		p.ID, p.ClientID, p.Name, p.Species, p.Breed, p.Sex, p.Color, p.BirthDate,
		p.MicrochipNumber, p.Deceased, p.DeceasedDate, p.Alerts, p.Notes,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateMicrochip
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET
			client_id=$2, name=$3, species=$4, breed=$5, sex=$6, color=$7,
			birth_date=$8, microchip_number=$9, deceased=$10, deceased_date=$11,
			alerts=$12, notes=$13, updated_at=now()
		WHERE id = $1`,
		p.ID, p.ClientID, p.Name, p.Species, p.Breed, p.Sex, p.Color,
		p.BirthDate, p.MicrochipNumber, p.Deceased, p.DeceasedDate,
		p.Alerts, p.Notes,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateMicrochip
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Patient, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	n := 0

	if !filter.IncludeDeceased {
		where = append(where, "deceased = false")
	}
	if filter.ClientID != uuid.Nil {
		n++
		where = append(where, "client_id = $"+strconv.Itoa(n))
		args = append(args, filter.ClientID)
	}
	if filter.Species != "" {
		n++
		where = append(where, "species = $"+strconv.Itoa(n))
		args = append(args, filter.Species)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		n++
		p := "$" + strconv.Itoa(n)
		where = append(where, `(name ILIKE `+p+` OR microchip_number LIKE `+p+`)`)
		args = append(args, q+"%")
	}

	cond := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patients WHERE `+cond+
			` ORDER BY name LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

func (r *repoPG) AddVaccination(ctx context.Context, v *Vaccination) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_vaccinations (
			id, patient_id, vaccine_name, administered_at, expires_at,
			administered_by, lot_number, notes
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		v.ID, v.PatientID, v.VaccineName, v.AdministeredAt, v.ExpiresAt,
		v.AdministeredBy, v.LotNumber, v.Notes,
	)
	return err
}

func (r *repoPG) ListVaccinations(ctx context.Context, patientID uuid.UUID) ([]*Vaccination, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, vaccine_name, administered_at, expires_at,
			administered_by, lot_number, notes, created_at
		FROM patient_vaccinations WHERE patient_id = $1
		ORDER BY administered_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vaccs []*Vaccination
	for rows.Next() {
		var v Vaccination
		if err := rows.Scan(&v.ID, &v.PatientID, &v.VaccineName, &v.AdministeredAt,
			&v.ExpiresAt, &v.AdministeredBy, &v.LotNumber, &v.Notes, &v.CreatedAt); err != nil {
			return nil, err
		}
		vaccs = append(vaccs, &v)
	}
	return vaccs, rows.Err()
}

func (r *repoPG) RemoveVaccination(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient_vaccinations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) AddWeight(ctx context.Context, w *WeightEntry) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_weights (id, patient_id, weight_kg, recorded_at, recorded_by, note)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		w.ID, w.PatientID, w.WeightKg, w.RecordedAt, w.RecordedBy, w.Note,
	)
	return err
}

func (r *repoPG) ListWeights(ctx context.Context, patientID uuid.UUID) ([]*WeightEntry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, weight_kg, recorded_at, recorded_by, note
		FROM patient_weights WHERE patient_id = $1
		ORDER BY recorded_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var weights []*WeightEntry
	for rows.Next() {
		var w WeightEntry
		if err := rows.Scan(&w.ID, &w.PatientID, &w.WeightKg, &w.RecordedAt, &w.RecordedBy, &w.Note); err != nil {
			return nil, err
		}
		weights = append(weights, &w)
	}
	return weights, rows.Err()
}

func (r *repoPG) RemoveWeight(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient_weights WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.ClientID, &p.Name, &p.Species, &p.Breed, &p.Sex, &p.Color,
		&p.BirthDate, &p.MicrochipNumber, &p.Deceased, &p.DeceasedDate,
		&p.Alerts, &p.Notes, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
