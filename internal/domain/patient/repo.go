package patient

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows List results. Deceased patients are excluded unless
// IncludeDeceased is set.
type ListFilter struct {
	ClientID        uuid.UUID
	Species         string
	Query           string
	IncludeDeceased bool
}

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Patient, int, error)

	// Vaccinations
	AddVaccination(ctx context.Context, v *Vaccination) error
	ListVaccinations(ctx context.Context, patientID uuid.UUID) ([]*Vaccination, error)
	RemoveVaccination(ctx context.Context, id uuid.UUID) error

	// Weight log
	AddWeight(ctx context.Context, w *WeightEntry) error
	ListWeights(ctx context.Context, patientID uuid.UUID) ([]*WeightEntry, error)
	RemoveWeight(ctx context.Context, id uuid.UUID) error
}
