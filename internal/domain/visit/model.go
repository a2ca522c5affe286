package visit

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("visit not found")
	ErrTreatmentNotFound = errors.New("treatment not found")
	ErrValidation        = errors.New("validation failed")
	ErrVisitCompleted    = errors.New("visit is already completed")
)

const (
	StatusOpen      = "open"
	StatusCompleted = "completed"
)

// Visit is the clinical record of an exam, tied to an appointment or created
// standalone for walk-ins. SOAP fields and vitals are filled in as the exam
// progresses; completion locks the record.
type Visit struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	ClientID      uuid.UUID  `db:"client_id" json:"client_id"`
	VetID         uuid.UUID  `db:"vet_id" json:"vet_id"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	Status        string     `db:"status" json:"status"`

	Subjective *string `db:"subjective" json:"subjective,omitempty"`
	Objective  *string `db:"objective" json:"objective,omitempty"`
	Assessment *string `db:"assessment" json:"assessment,omitempty"`
	Plan       *string `db:"plan" json:"plan,omitempty"`
	Diagnoses  *string `db:"diagnoses" json:"diagnoses,omitempty"`

	WeightKg       *float64 `db:"weight_kg" json:"weight_kg,omitempty"`
	TemperatureC   *float64 `db:"temperature_c" json:"temperature_c,omitempty"`
	PulseBpm       *int     `db:"pulse_bpm" json:"pulse_bpm,omitempty"`
	RespirationRpm *int     `db:"respiration_rpm" json:"respiration_rpm,omitempty"`

	InvoiceID   *uuid.UUID `db:"invoice_id" json:"invoice_id,omitempty"`
	StartedAt   time.Time  `db:"started_at" json:"started_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

func (v *Visit) Validate() error {
	if v.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient_id is required", ErrValidation)
	}
	if v.ClientID == uuid.Nil {
		return fmt.Errorf("%w: client_id is required", ErrValidation)
	}
	if v.VetID == uuid.Nil {
		return fmt.Errorf("%w: vet_id is required", ErrValidation)
	}
	if v.WeightKg != nil && *v.WeightKg <= 0 {
		return fmt.Errorf("%w: weight_kg must be positive", ErrValidation)
	}
	if v.TemperatureC != nil && (*v.TemperatureC < 20 || *v.TemperatureC > 45) {
		return fmt.Errorf("%w: temperature_c out of range", ErrValidation)
	}
	if v.PulseBpm != nil && *v.PulseBpm <= 0 {
		return fmt.Errorf("%w: pulse_bpm must be positive", ErrValidation)
	}
	if v.RespirationRpm != nil && *v.RespirationRpm <= 0 {
		return fmt.Errorf("%w: respiration_rpm must be positive", ErrValidation)
	}
	return nil
}

// Treatment is a performed procedure or dispensed product recorded against a
// visit. Lines with a product reference decrement stock when invoiced.
type Treatment struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	VisitID        uuid.UUID  `db:"visit_id" json:"visit_id"`
	ProductID      *uuid.UUID `db:"product_id" json:"product_id,omitempty"`
	Description    string     `db:"description" json:"description"`
	Quantity       float64    `db:"quantity" json:"quantity"`
	UnitPriceCents int64      `db:"unit_price_cents" json:"unit_price_cents"`
	Taxable        bool       `db:"taxable" json:"taxable"`
	PerformedBy    *uuid.UUID `db:"performed_by" json:"performed_by,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

func (t *Treatment) Validate() error {
	if t.Description == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	if t.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if t.UnitPriceCents < 0 {
		return fmt.Errorf("%w: unit_price_cents cannot be negative", ErrValidation)
	}
	return nil
}
