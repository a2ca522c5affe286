package portal

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RequestFilter struct {
	ClientID uuid.UUID
	Status   string
}

type Repository interface {
	CreateInvite(ctx context.Context, inv *Invite) error
	GetInvite(ctx context.Context, code string) (*Invite, error)
	MarkInviteUsed(ctx context.Context, code string, at time.Time) error

	CreateAccount(ctx context.Context, a *Account) error
	GetAccountByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	UpdateAccount(ctx context.Context, a *Account) error

	CreateRequest(ctx context.Context, r *AppointmentRequest) error
	GetRequest(ctx context.Context, id uuid.UUID) (*AppointmentRequest, error)
	UpdateRequest(ctx context.Context, r *AppointmentRequest) error
	ListRequests(ctx context.Context, filter RequestFilter, limit, offset int) ([]*AppointmentRequest, int, error)
}
