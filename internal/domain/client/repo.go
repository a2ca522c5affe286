package client

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows List results. Query matches name, email, and phone
// prefixes. An empty Status means active only; "all" includes inactive.
type ListFilter struct {
	Query  string
	Status string
}

type Repository interface {
	Create(ctx context.Context, c *Client) error
	GetByID(ctx context.Context, id uuid.UUID) (*Client, error)
	GetByEmail(ctx context.Context, email string) (*Client, error)
	Update(ctx context.Context, c *Client) error
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Client, int, error)
	HasPatients(ctx context.Context, id uuid.UUID) (bool, error)
}
