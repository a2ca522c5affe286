package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ListFilter struct {
	PatientID uuid.UUID
	Type      string
	Status    string
}

type Repository interface {
	Create(ctx context.Context, r *Reminder) error
	GetByID(ctx context.Context, id uuid.UUID) (*Reminder, error)
	Update(ctx context.Context, r *Reminder) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Reminder, int, error)

	// MarkDue flips pending reminders whose due date has arrived to due and
	// reports how many changed. The background worker calls it on a schedule.
	MarkDue(ctx context.Context, now time.Time) (int64, error)

	// DueOn lists reminders due on the given calendar day that are still
	// unresolved, for the front desk's daily call list.
	DueOn(ctx context.Context, day time.Time) ([]*Reminder, error)
}
