package protocol

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockRepo struct {
	protocols map[uuid.UUID]*Protocol
	plans     map[uuid.UUID]*TreatmentPlan
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		protocols: make(map[uuid.UUID]*Protocol),
		plans:     make(map[uuid.UUID]*TreatmentPlan),
	}
}

func (m *mockRepo) CreateProtocol(_ context.Context, p *Protocol) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	for i, s := range p.Steps {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		s.Position = i + 1
	}
	m.protocols[p.ID] = p
	return nil
}

func (m *mockRepo) GetProtocol(_ context.Context, id uuid.UUID) (*Protocol, error) {
	p, ok := m.protocols[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) UpdateProtocol(_ context.Context, p *Protocol) error {
	if _, ok := m.protocols[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	m.protocols[p.ID] = &cp
	return nil
}

func (m *mockRepo) ListProtocols(_ context.Context, filter ProtocolFilter, limit, offset int) ([]*Protocol, int, error) {
	var out []*Protocol
	for _, p := range m.protocols {
		if filter.ActiveOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockRepo) CreatePlan(_ context.Context, p *TreatmentPlan) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	for i, s := range p.Steps {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		s.PlanID = p.ID
		s.Position = i + 1
	}
	m.plans[p.ID] = p
	return nil
}

func (m *mockRepo) GetPlan(_ context.Context, id uuid.UUID) (*TreatmentPlan, error) {
	p, ok := m.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	cp := *p
	cp.Steps = make([]*PlanStep, len(p.Steps))
	for i, s := range p.Steps {
		sc := *s
		cp.Steps[i] = &sc
	}
	return &cp, nil
}

func (m *mockRepo) UpdatePlanStatus(_ context.Context, id uuid.UUID, status string) error {
	p, ok := m.plans[id]
	if !ok {
		return ErrPlanNotFound
	}
	p.Status = status
	return nil
}

func (m *mockRepo) ListPlans(_ context.Context, filter PlanFilter, limit, offset int) ([]*TreatmentPlan, int, error) {
	var out []*TreatmentPlan
	for _, p := range m.plans {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockRepo) UpdateStep(_ context.Context, s *PlanStep) error {
	for _, p := range m.plans {
		for i, existing := range p.Steps {
			if existing.ID == s.ID {
				sc := *s
				p.Steps[i] = &sc
				return nil
			}
		}
	}
	return ErrStepNotFound
}

func str(s string) *string { return &s }

func vaccinationSeries() *Protocol {
	return &Protocol{
		Name:    "Canine vaccination series",
		Species: str("dog"),
		Steps: []*Step{
			{Name: "DHPP first dose", DayOffset: 0, Dose: str("1ml SQ")},
			{Name: "DHPP booster", DayOffset: 21, Dose: str("1ml SQ")},
			{Name: "Rabies", DayOffset: 28},
		},
	}
}

func TestCreateProtocol_Validation(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	if err := svc.CreateProtocol(ctx, &Protocol{Steps: []*Step{{Name: "x"}}}); !errors.Is(err, ErrValidation) {
		t.Errorf("missing name: expected ErrValidation, got %v", err)
	}
	if err := svc.CreateProtocol(ctx, &Protocol{Name: "Empty"}); !errors.Is(err, ErrValidation) {
		t.Errorf("no steps: expected ErrValidation, got %v", err)
	}
	bad := vaccinationSeries()
	bad.Steps[1].DayOffset = -3
	if err := svc.CreateProtocol(ctx, bad); !errors.Is(err, ErrValidation) {
		t.Errorf("negative offset: expected ErrValidation, got %v", err)
	}
}

func TestCreatePlanFromProtocol_CopiesStepsWithDates(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	proto := vaccinationSeries()
	if err := svc.CreateProtocol(ctx, proto); err != nil {
		t.Fatalf("CreateProtocol failed: %v", err)
	}

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	plan, err := svc.CreatePlanFromProtocol(ctx, uuid.New(), proto.ID, start, nil)
	if err != nil {
		t.Fatalf("CreatePlanFromProtocol failed: %v", err)
	}
	if plan.Status != PlanActive {
		t.Errorf("expected active, got %q", plan.Status)
	}
	if len(plan.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(plan.Steps))
	}
	wantDates := []time.Time{
		start,
		start.AddDate(0, 0, 21),
		start.AddDate(0, 0, 28),
	}
	for i, step := range plan.Steps {
		if !step.ScheduledDate.Equal(wantDates[i]) {
			t.Errorf("step %d: expected %v, got %v", i+1, wantDates[i], step.ScheduledDate)
		}
		if step.Status != StepPending {
			t.Errorf("step %d: expected pending, got %q", i+1, step.Status)
		}
		if step.Name != proto.Steps[i].Name {
			t.Errorf("step %d: order not preserved: %q", i+1, step.Name)
		}
	}
}

func TestCreatePlanFromProtocol_InactiveProtocolRejected(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	proto := vaccinationSeries()
	if err := svc.CreateProtocol(ctx, proto); err != nil {
		t.Fatalf("CreateProtocol failed: %v", err)
	}
	if _, err := svc.DeactivateProtocol(ctx, proto.ID); err != nil {
		t.Fatalf("DeactivateProtocol failed: %v", err)
	}

	if _, err := svc.CreatePlanFromProtocol(ctx, uuid.New(), proto.ID, time.Now(), nil); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestCreateAdHocPlan(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	start := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	plan, err := svc.CreateAdHocPlan(ctx, uuid.New(), "Post-op laceration checks", start, []AdHocStep{
		{Name: "Bandage change", DayOffset: 2},
		{Name: "Suture removal", DayOffset: 10},
	}, nil)
	if err != nil {
		t.Fatalf("CreateAdHocPlan failed: %v", err)
	}
	if plan.ProtocolID != nil {
		t.Error("ad hoc plan must not reference a protocol")
	}
	if !plan.Steps[1].ScheduledDate.Equal(start.AddDate(0, 0, 10)) {
		t.Errorf("unexpected second step date %v", plan.Steps[1].ScheduledDate)
	}

	if _, err := svc.CreateAdHocPlan(ctx, uuid.New(), "Empty", start, nil, nil); !errors.Is(err, ErrValidation) {
		t.Errorf("no steps: expected ErrValidation, got %v", err)
	}
}

func TestCompleteStep_ProgressAndAutoComplete(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	proto := vaccinationSeries()
	if err := svc.CreateProtocol(ctx, proto); err != nil {
		t.Fatalf("CreateProtocol failed: %v", err)
	}
	plan, err := svc.CreatePlanFromProtocol(ctx, uuid.New(), proto.ID, time.Now(), nil)
	if err != nil {
		t.Fatalf("CreatePlanFromProtocol failed: %v", err)
	}

	plan, err = svc.CompleteStep(ctx, plan.ID, plan.Steps[0].ID, nil, nil)
	if err != nil {
		t.Fatalf("CompleteStep failed: %v", err)
	}
	if pr := plan.Progress(); pr.Completed != 1 || pr.Total != 3 {
		t.Errorf("expected 1/3, got %d/%d", pr.Completed, pr.Total)
	}
	if plan.Status != PlanActive {
		t.Errorf("plan must stay active with pending steps, got %q", plan.Status)
	}

	if plan, err = svc.CompleteStep(ctx, plan.ID, plan.Steps[1].ID, nil, nil); err != nil {
		t.Fatalf("CompleteStep failed: %v", err)
	}
	notes := "owner declined rabies"
	if plan, err = svc.SkipStep(ctx, plan.ID, plan.Steps[2].ID, nil, &notes); err != nil {
		t.Fatalf("SkipStep failed: %v", err)
	}
	if plan.Status != PlanCompleted {
		t.Errorf("expected plan auto-completed, got %q", plan.Status)
	}
	if pr := plan.Progress(); pr.Completed != 2 || pr.Skipped != 1 {
		t.Errorf("expected 2 completed / 1 skipped, got %d/%d", pr.Completed, pr.Skipped)
	}
}

func TestCompleteStep_ResolvedStepRejected(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	proto := vaccinationSeries()
	if err := svc.CreateProtocol(ctx, proto); err != nil {
		t.Fatalf("CreateProtocol failed: %v", err)
	}
	plan, err := svc.CreatePlanFromProtocol(ctx, uuid.New(), proto.ID, time.Now(), nil)
	if err != nil {
		t.Fatalf("CreatePlanFromProtocol failed: %v", err)
	}

	if _, err := svc.CompleteStep(ctx, plan.ID, plan.Steps[0].ID, nil, nil); err != nil {
		t.Fatalf("CompleteStep failed: %v", err)
	}
	if _, err := svc.CompleteStep(ctx, plan.ID, plan.Steps[0].ID, nil, nil); !errors.Is(err, ErrStepState) {
		t.Errorf("expected ErrStepState, got %v", err)
	}
	if _, err := svc.SkipStep(ctx, plan.ID, plan.Steps[0].ID, nil, nil); !errors.Is(err, ErrStepState) {
		t.Errorf("expected ErrStepState, got %v", err)
	}
}

func TestCancelPlan_BlocksStepUpdates(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	proto := vaccinationSeries()
	if err := svc.CreateProtocol(ctx, proto); err != nil {
		t.Fatalf("CreateProtocol failed: %v", err)
	}
	plan, err := svc.CreatePlanFromProtocol(ctx, uuid.New(), proto.ID, time.Now(), nil)
	if err != nil {
		t.Fatalf("CreatePlanFromProtocol failed: %v", err)
	}

	if _, err := svc.CancelPlan(ctx, plan.ID); err != nil {
		t.Fatalf("CancelPlan failed: %v", err)
	}
	if _, err := svc.CompleteStep(ctx, plan.ID, plan.Steps[0].ID, nil, nil); !errors.Is(err, ErrPlanState) {
		t.Errorf("expected ErrPlanState, got %v", err)
	}
	if _, err := svc.CancelPlan(ctx, plan.ID); !errors.Is(err, ErrPlanState) {
		t.Errorf("double cancel: expected ErrPlanState, got %v", err)
	}
}

func TestUpdateProtocol_ReplacesSteps(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	proto := vaccinationSeries()
	if err := svc.CreateProtocol(ctx, proto); err != nil {
		t.Fatalf("CreateProtocol failed: %v", err)
	}

	updated, err := svc.UpdateProtocol(ctx, proto.ID, &Protocol{
		Name:    "Canine vaccination series v2",
		Species: str("dog"),
		Steps: []*Step{
			{Name: "DHPP combined", DayOffset: 0},
			{Name: "Rabies", DayOffset: 21},
		},
	})
	if err != nil {
		t.Fatalf("UpdateProtocol failed: %v", err)
	}
	if updated.Name != "Canine vaccination series v2" {
		t.Errorf("unexpected name %q", updated.Name)
	}
	if !updated.Active {
		t.Error("update must not flip the active flag")
	}
}
