package invoice

import (
	"context"

	"github.com/google/uuid"
)

type ListFilter struct {
	ClientID uuid.UUID
	VisitID  uuid.UUID
	Status   string
}

type Repository interface {
	// InTx runs fn inside a single database transaction; every repository
	// call fn makes joins it.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	NextNumber(ctx context.Context) (string, error)

	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Invoice, int, error)

	AddItem(ctx context.Context, item *Item) error
	UpdateItem(ctx context.Context, item *Item) error
	RemoveItem(ctx context.Context, id uuid.UUID) error
	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)

	AddPayment(ctx context.Context, p *Payment) error
	UpdatePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error)
}
