package visit

import (
	"context"

	"github.com/google/uuid"
)

type ListFilter struct {
	PatientID     uuid.UUID
	ClientID      uuid.UUID
	VetID         uuid.UUID
	AppointmentID uuid.UUID
	Status        string
}

type Repository interface {
	// InTx runs fn inside a single database transaction; every repository
	// call fn makes joins it.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)
	Update(ctx context.Context, v *Visit) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Visit, int, error)

	AddTreatment(ctx context.Context, t *Treatment) error
	ListTreatments(ctx context.Context, visitID uuid.UUID) ([]*Treatment, error)
	RemoveTreatment(ctx context.Context, id uuid.UUID) error
	GetTreatment(ctx context.Context, id uuid.UUID) (*Treatment, error)
}
