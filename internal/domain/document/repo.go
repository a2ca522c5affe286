package document

import (
	"context"

	"github.com/google/uuid"
)

type ListFilter struct {
	PatientID uuid.UUID
	ClientID  uuid.UUID
	Category  string
}

type Repository interface {
	Create(ctx context.Context, d *Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Document, int, error)
}
