package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows List results. Day selects appointments whose
// scheduled_start falls on that calendar day.
type ListFilter struct {
	Day       *time.Time
	VetID     uuid.UUID
	PatientID uuid.UUID
	ClientID  uuid.UUID
	Status    string
}

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Appointment, int, error)

	// Transition persists the appointment and its history row atomically.
	Transition(ctx context.Context, a *Appointment, ch *StatusChange) error
	ListStatusChanges(ctx context.Context, appointmentID uuid.UUID) ([]*StatusChange, error)

	// CountOverlapping counts active appointments for the vet whose window
	// intersects [start, end), excluding excludeID.
	CountOverlapping(ctx context.Context, vetID uuid.UUID, start, end time.Time, excludeID uuid.UUID) (int, error)
}
