package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, r *Reminder) error {
	if err := r.Validate(); err != nil {
		return err
	}
	r.Status = StatusPending
	if !r.DueDate.After(time.Now()) {
		r.Status = StatusDue
	}
	return s.repo.Create(ctx, r)
}

// ScheduleVaccinationReminder satisfies the patient domain's scheduler hook:
// adding a vaccination with an expiry date books the booster reminder here.
func (s *Service) ScheduleVaccinationReminder(ctx context.Context, patientID uuid.UUID, vaccineName string, due time.Time) error {
	return s.Create(ctx, &Reminder{
		PatientID: patientID,
		Type:      TypeVaccination,
		Title:     vaccineName + " booster due",
		DueDate:   due,
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Reminder, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Reminder, int, error) {
	return s.repo.List(ctx, filter, limit, offset)
}

// DueToday is the front desk's daily call list.
func (s *Service) DueToday(ctx context.Context) ([]*Reminder, error) {
	return s.repo.DueOn(ctx, time.Now())
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID, resolvedBy *uuid.UUID) (*Reminder, error) {
	return s.resolve(ctx, id, StatusCompleted, resolvedBy)
}

func (s *Service) Dismiss(ctx context.Context, id uuid.UUID, resolvedBy *uuid.UUID) (*Reminder, error) {
	return s.resolve(ctx, id, StatusDismissed, resolvedBy)
}

func (s *Service) resolve(ctx context.Context, id uuid.UUID, status string, resolvedBy *uuid.UUID) (*Reminder, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.resolved() {
		return nil, ErrResolved
	}
	now := time.Now().UTC()
	r.Status = status
	r.ResolvedAt = &now
	r.ResolvedBy = resolvedBy
	if err := s.repo.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// MarkDue is the periodic sweep run by the background worker.
func (s *Service) MarkDue(ctx context.Context) (int64, error) {
	return s.repo.MarkDue(ctx, time.Now().UTC())
}
