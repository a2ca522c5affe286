package appointment

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("appointment not found")
	ErrValidation        = errors.New("validation failed")
	ErrTerminalState     = errors.New("appointment is in a terminal state")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrVetConflict       = errors.New("veterinarian already booked for this time")
)

const (
	StatusScheduled  = "scheduled"
	StatusConfirmed  = "confirmed"
	StatusCheckedIn  = "checked_in"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusNoShow     = "no_show"
)

var ValidTypes = map[string]bool{
	"wellness":   true,
	"sick":       true,
	"surgery":    true,
	"dental":     true,
	"grooming":   true,
	"boarding":   true,
	"euthanasia": true,
	"followup":   true,
}

// transitions maps each status to the statuses reachable from it. Terminal
// statuses have no entries.
var transitions = map[string][]string{
	StatusScheduled:  {StatusConfirmed, StatusCheckedIn, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusCheckedIn, StatusCancelled, StatusNoShow},
	StatusCheckedIn:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

func validStatus(status string) bool {
	switch status {
	case StatusScheduled, StatusConfirmed, StatusCheckedIn,
		StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

func canTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Appointment maps to the appointments table. The *_at columns are stamped by
// the service on the first entry into each status and never overwritten.
type Appointment struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ClientID       uuid.UUID  `db:"client_id" json:"client_id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	VetID          uuid.UUID  `db:"vet_id" json:"vet_id"`
	Type           string     `db:"type" json:"type"`
	Status         string     `db:"status" json:"status"`
	ScheduledStart time.Time  `db:"scheduled_start" json:"scheduled_start"`
	ScheduledEnd   time.Time  `db:"scheduled_end" json:"scheduled_end"`
	Reason         *string    `db:"reason" json:"reason,omitempty"`
	Room           *string    `db:"room" json:"room,omitempty"`
	ConfirmedAt    *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CheckedInAt    *time.Time `db:"checked_in_at" json:"checked_in_at,omitempty"`
	StartedAt      *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt    *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

func (a *Appointment) Validate() error {
	if a.ClientID == uuid.Nil {
		return fmt.Errorf("%w: client_id is required", ErrValidation)
	}
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient_id is required", ErrValidation)
	}
	if a.VetID == uuid.Nil {
		return fmt.Errorf("%w: vet_id is required", ErrValidation)
	}
	if !ValidTypes[a.Type] {
		return fmt.Errorf("%w: unknown appointment type %q", ErrValidation, a.Type)
	}
	if a.ScheduledStart.IsZero() || a.ScheduledEnd.IsZero() {
		return fmt.Errorf("%w: scheduled_start and scheduled_end are required", ErrValidation)
	}
	if !a.ScheduledEnd.After(a.ScheduledStart) {
		return fmt.Errorf("%w: scheduled_end must be after scheduled_start", ErrValidation)
	}
	return nil
}

// StatusChange maps to the appointment_status_changes table, one row per
// transition.
type StatusChange struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	AppointmentID uuid.UUID  `db:"appointment_id" json:"appointment_id"`
	FromStatus    string     `db:"from_status" json:"from_status"`
	ToStatus      string     `db:"to_status" json:"to_status"`
	ActorID       *uuid.UUID `db:"actor_id" json:"actor_id,omitempty"`
	Note          *string    `db:"note" json:"note,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}
