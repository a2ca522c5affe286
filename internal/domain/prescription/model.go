package prescription

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("prescription not found")
	ErrValidation     = errors.New("validation failed")
	ErrNotDispensable = errors.New("product is not dispensable")
	ErrNoRefills      = errors.New("no refills remaining")
	ErrExpired        = errors.New("prescription has expired")
	ErrState          = errors.New("prescription state does not allow this operation")
	// ErrInsufficientStock mirrors the inventory shortage when a fill
	// cannot be dispensed.
	ErrInsufficientStock = errors.New("insufficient stock on hand")
)

const (
	StatusActive    = "active"
	StatusFilled    = "filled"
	StatusExpired   = "expired"
	StatusCancelled = "cancelled"
)

// Prescription maps to the prescriptions table. Quantity is the amount
// dispensed per fill; RefillsRemaining counts refills after the initial fill
// taken at creation.
type Prescription struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	PatientID         uuid.UUID  `db:"patient_id" json:"patient_id"`
	VetID             uuid.UUID  `db:"vet_id" json:"vet_id"`
	ProductID         uuid.UUID  `db:"product_id" json:"product_id"`
	Dosage            string     `db:"dosage" json:"dosage"`
	Quantity          float64    `db:"quantity" json:"quantity"`
	RefillsAuthorized int        `db:"refills_authorized" json:"refills_authorized"`
	RefillsRemaining  int        `db:"refills_remaining" json:"refills_remaining"`
	ExpiresAt         *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	Status            string     `db:"status" json:"status"`
	Notes             *string    `db:"notes" json:"notes,omitempty"`
	LastFilledAt      *time.Time `db:"last_filled_at" json:"last_filled_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

func (p *Prescription) Validate() error {
	if p.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient_id is required", ErrValidation)
	}
	if p.VetID == uuid.Nil {
		return fmt.Errorf("%w: vet_id is required", ErrValidation)
	}
	if p.ProductID == uuid.Nil {
		return fmt.Errorf("%w: product_id is required", ErrValidation)
	}
	if strings.TrimSpace(p.Dosage) == "" {
		return fmt.Errorf("%w: dosage is required", ErrValidation)
	}
	if p.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if p.RefillsAuthorized < 0 {
		return fmt.Errorf("%w: refills_authorized cannot be negative", ErrValidation)
	}
	if p.ExpiresAt != nil && !p.ExpiresAt.After(time.Now()) {
		return fmt.Errorf("%w: expires_at must be in the future", ErrValidation)
	}
	return nil
}

func (p *Prescription) expired(now time.Time) bool {
	return p.ExpiresAt != nil && p.ExpiresAt.Before(now)
}
