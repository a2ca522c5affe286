package reminder

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("reminder not found")
	ErrValidation = errors.New("validation failed")
	ErrResolved   = errors.New("reminder is already resolved")
)

const (
	TypeVaccination      = "vaccination"
	TypeFollowup         = "followup"
	TypeMedicationRefill = "medication_refill"
	TypeOther            = "other"
)

var validTypes = map[string]bool{
	TypeVaccination:      true,
	TypeFollowup:         true,
	TypeMedicationRefill: true,
	TypeOther:            true,
}

// Reminder lifecycle: pending until the due date arrives, then the worker
// flips it to due; the front desk completes or dismisses it.
const (
	StatusPending   = "pending"
	StatusDue       = "due"
	StatusCompleted = "completed"
	StatusDismissed = "dismissed"
)

type Reminder struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	PatientID  uuid.UUID  `db:"patient_id" json:"patient_id"`
	Type       string     `db:"type" json:"type"`
	Title      string     `db:"title" json:"title"`
	Notes      *string    `db:"notes" json:"notes,omitempty"`
	DueDate    time.Time  `db:"due_date" json:"due_date"`
	Status     string     `db:"status" json:"status"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedBy *uuid.UUID `db:"resolved_by" json:"resolved_by,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

func (r *Reminder) Validate() error {
	if r.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient_id is required", ErrValidation)
	}
	if !validTypes[r.Type] {
		return fmt.Errorf("%w: unknown type %q", ErrValidation, r.Type)
	}
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if r.DueDate.IsZero() {
		return fmt.Errorf("%w: due_date is required", ErrValidation)
	}
	return nil
}

func (r *Reminder) resolved() bool {
	return r.Status == StatusCompleted || r.Status == StatusDismissed
}
