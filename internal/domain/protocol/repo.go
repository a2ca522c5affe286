package protocol

import (
	"context"

	"github.com/google/uuid"
)

type ProtocolFilter struct {
	Species    string
	ActiveOnly bool
}

type PlanFilter struct {
	PatientID uuid.UUID
	Status    string
}

type Repository interface {
	// Protocol templates. Create and Update write the protocol and its steps
	// in one transaction; Update replaces the step list wholesale.
	CreateProtocol(ctx context.Context, p *Protocol) error
	GetProtocol(ctx context.Context, id uuid.UUID) (*Protocol, error)
	UpdateProtocol(ctx context.Context, p *Protocol) error
	ListProtocols(ctx context.Context, filter ProtocolFilter, limit, offset int) ([]*Protocol, int, error)

	// Treatment plans. CreatePlan writes the plan and all its steps in one
	// transaction so a half-copied plan never survives.
	CreatePlan(ctx context.Context, p *TreatmentPlan) error
	GetPlan(ctx context.Context, id uuid.UUID) (*TreatmentPlan, error)
	UpdatePlanStatus(ctx context.Context, id uuid.UUID, status string) error
	ListPlans(ctx context.Context, filter PlanFilter, limit, offset int) ([]*TreatmentPlan, int, error)
	UpdateStep(ctx context.Context, s *PlanStep) error
}
