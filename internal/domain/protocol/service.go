package protocol

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateProtocol(ctx context.Context, p *Protocol) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.Active = true
	return s.repo.CreateProtocol(ctx, p)
}

func (s *Service) GetProtocol(ctx context.Context, id uuid.UUID) (*Protocol, error) {
	return s.repo.GetProtocol(ctx, id)
}

func (s *Service) ListProtocols(ctx context.Context, filter ProtocolFilter, limit, offset int) ([]*Protocol, int, error) {
	return s.repo.ListProtocols(ctx, filter, limit, offset)
}

// UpdateProtocol replaces the protocol's metadata and step list. Plans
// already built from it keep their copied steps untouched.
func (s *Service) UpdateProtocol(ctx context.Context, id uuid.UUID, p *Protocol) (*Protocol, error) {
	existing, err := s.repo.GetProtocol(ctx, id)
	if err != nil {
		return nil, err
	}
	p.ID = existing.ID
	p.Active = existing.Active
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateProtocol(ctx, p); err != nil {
		return nil, err
	}
	return s.repo.GetProtocol(ctx, id)
}

// DeactivateProtocol hides the protocol from new-plan pickers without
// touching plans already running.
func (s *Service) DeactivateProtocol(ctx context.Context, id uuid.UUID) (*Protocol, error) {
	p, err := s.repo.GetProtocol(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Active = false
	if err := s.repo.UpdateProtocol(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CreatePlanFromProtocol copies every protocol step into a concrete plan
// step, scheduling each at startDate plus the step's day offset. The copy is
// written atomically.
func (s *Service) CreatePlanFromProtocol(ctx context.Context, patientID, protocolID uuid.UUID, startDate time.Time, createdBy *uuid.UUID) (*TreatmentPlan, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id is required", ErrValidation)
	}
	proto, err := s.repo.GetProtocol(ctx, protocolID)
	if err != nil {
		return nil, err
	}
	if !proto.Active {
		return nil, fmt.Errorf("%w: protocol %q is inactive", ErrValidation, proto.Name)
	}

	plan := &TreatmentPlan{
		PatientID:  patientID,
		ProtocolID: &proto.ID,
		Name:       proto.Name,
		StartDate:  startDate,
		Status:     PlanActive,
		CreatedBy:  createdBy,
	}
	for _, ps := range proto.Steps {
		plan.Steps = append(plan.Steps, &PlanStep{
			Name:          ps.Name,
			ScheduledDate: startDate.AddDate(0, 0, ps.DayOffset),
			ProductID:     ps.ProductID,
			Dose:          ps.Dose,
			Instructions:  ps.Instructions,
			Status:        StepPending,
		})
	}
	if err := s.repo.CreatePlan(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// AdHocStep is a request-shaped step for plans built without a protocol.
type AdHocStep struct {
	Name         string     `json:"name"`
	DayOffset    int        `json:"day_offset"`
	ProductID    *uuid.UUID `json:"product_id,omitempty"`
	Dose         *string    `json:"dose,omitempty"`
	Instructions *string    `json:"instructions,omitempty"`
}

// CreateAdHocPlan builds a plan straight from caller-supplied steps.
func (s *Service) CreateAdHocPlan(ctx context.Context, patientID uuid.UUID, name string, startDate time.Time, steps []AdHocStep, createdBy *uuid.UUID) (*TreatmentPlan, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id is required", ErrValidation)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: at least one step is required", ErrValidation)
	}

	plan := &TreatmentPlan{
		PatientID: patientID,
		Name:      name,
		StartDate: startDate,
		Status:    PlanActive,
		CreatedBy: createdBy,
	}
	for i, st := range steps {
		if strings.TrimSpace(st.Name) == "" {
			return nil, fmt.Errorf("%w: step %d name is required", ErrValidation, i+1)
		}
		if st.DayOffset < 0 {
			return nil, fmt.Errorf("%w: step %d day_offset must not be negative", ErrValidation, i+1)
		}
		plan.Steps = append(plan.Steps, &PlanStep{
			Name:          st.Name,
			ScheduledDate: startDate.AddDate(0, 0, st.DayOffset),
			ProductID:     st.ProductID,
			Dose:          st.Dose,
			Instructions:  st.Instructions,
			Status:        StepPending,
		})
	}
	if err := s.repo.CreatePlan(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *Service) GetPlan(ctx context.Context, id uuid.UUID) (*TreatmentPlan, error) {
	return s.repo.GetPlan(ctx, id)
}

func (s *Service) ListPlans(ctx context.Context, filter PlanFilter, limit, offset int) ([]*TreatmentPlan, int, error) {
	return s.repo.ListPlans(ctx, filter, limit, offset)
}

// CompleteStep marks a pending step done. When no pending steps remain the
// plan itself moves to completed.
func (s *Service) CompleteStep(ctx context.Context, planID, stepID uuid.UUID, resolvedBy *uuid.UUID, notes *string) (*TreatmentPlan, error) {
	return s.resolveStep(ctx, planID, stepID, StepCompleted, resolvedBy, notes)
}

// SkipStep marks a pending step skipped, with optional notes on why.
func (s *Service) SkipStep(ctx context.Context, planID, stepID uuid.UUID, resolvedBy *uuid.UUID, notes *string) (*TreatmentPlan, error) {
	return s.resolveStep(ctx, planID, stepID, StepSkipped, resolvedBy, notes)
}

func (s *Service) resolveStep(ctx context.Context, planID, stepID uuid.UUID, status string, resolvedBy *uuid.UUID, notes *string) (*TreatmentPlan, error) {
	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status != PlanActive {
		return nil, ErrPlanState
	}

	var step *PlanStep
	for _, st := range plan.Steps {
		if st.ID == stepID {
			step = st
			break
		}
	}
	if step == nil {
		return nil, ErrStepNotFound
	}
	if step.Status != StepPending {
		return nil, ErrStepState
	}

	now := time.Now().UTC()
	step.Status = status
	step.ResolvedAt = &now
	step.ResolvedBy = resolvedBy
	step.Notes = notes
	if err := s.repo.UpdateStep(ctx, step); err != nil {
		return nil, err
	}

	if plan.pendingSteps() == 0 {
		plan.Status = PlanCompleted
		if err := s.repo.UpdatePlanStatus(ctx, plan.ID, PlanCompleted); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// CancelPlan abandons an active plan; its pending steps stay pending for the
// record but the plan no longer accepts step updates.
func (s *Service) CancelPlan(ctx context.Context, id uuid.UUID) (*TreatmentPlan, error) {
	plan, err := s.repo.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan.Status != PlanActive {
		return nil, ErrPlanState
	}
	plan.Status = PlanCancelled
	if err := s.repo.UpdatePlanStatus(ctx, id, PlanCancelled); err != nil {
		return nil, err
	}
	return plan, nil
}
