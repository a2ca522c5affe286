package prescription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ListFilter struct {
	PatientID uuid.UUID
	VetID     uuid.UUID
	Status    string
}

type Repository interface {
	// InTx runs fn inside a single database transaction; every repository
	// call fn makes joins it.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	Update(ctx context.Context, p *Prescription) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Prescription, int, error)

	// MarkExpired flips active prescriptions whose expiry has passed,
	// returning how many rows changed. The background worker calls it.
	MarkExpired(ctx context.Context, now time.Time) (int64, error)
}
