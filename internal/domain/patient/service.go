package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReminderScheduler creates follow-up reminders from clinical events. The
// reminder domain provides the implementation; wiring happens in main.
type ReminderScheduler interface {
	ScheduleVaccinationReminder(ctx context.Context, patientID uuid.UUID, vaccineName string, due time.Time) error
}

type Service struct {
	repo      Repository
	reminders ReminderScheduler
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SetReminderScheduler attaches an optional reminder scheduler; vaccinations
// with an expiry then generate a due reminder automatically.
func (s *Service) SetReminderScheduler(r ReminderScheduler) {
	s.reminders = r
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if p.Deceased && p.DeceasedDate == nil {
		now := time.Now().UTC()
		p.DeceasedDate = &now
	}
	if !p.Deceased {
		p.DeceasedDate = nil
	}
	if err := p.Validate(); err != nil {
		return err
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, filter, limit, offset)
}

// AddVaccination records a vaccination. When the vaccine has an expiry date
// a due reminder is scheduled so the front desk can chase boosters.
func (s *Service) AddVaccination(ctx context.Context, v *Vaccination) error {
	if strings.TrimSpace(v.VaccineName) == "" {
		return fmt.Errorf("%w: vaccine_name is required", ErrValidation)
	}
	if _, err := s.repo.GetByID(ctx, v.PatientID); err != nil {
		return err
	}
	if v.AdministeredAt.IsZero() {
		v.AdministeredAt = time.Now().UTC()
	}
	if v.ExpiresAt != nil && !v.ExpiresAt.After(v.AdministeredAt) {
		return fmt.Errorf("%w: expires_at must be after administered_at", ErrValidation)
	}

	if err := s.repo.AddVaccination(ctx, v); err != nil {
		return err
	}

	if s.reminders != nil && v.ExpiresAt != nil {
		_ = s.reminders.ScheduleVaccinationReminder(ctx, v.PatientID, v.VaccineName, *v.ExpiresAt)
	}
	return nil
}

func (s *Service) ListVaccinations(ctx context.Context, patientID uuid.UUID) ([]*Vaccination, error) {
	if _, err := s.repo.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListVaccinations(ctx, patientID)
}

func (s *Service) RemoveVaccination(ctx context.Context, id uuid.UUID) error {
	return s.repo.RemoveVaccination(ctx, id)
}

// AddWeight appends a weight log entry. Visits call this too when a weight is
// taken at check-in.
func (s *Service) AddWeight(ctx context.Context, w *WeightEntry) error {
	if w.WeightKg <= 0 {
		return fmt.Errorf("%w: weight_kg must be positive", ErrValidation)
	}
	if _, err := s.repo.GetByID(ctx, w.PatientID); err != nil {
		return err
	}
	if w.RecordedAt.IsZero() {
		w.RecordedAt = time.Now().UTC()
	}
	return s.repo.AddWeight(ctx, w)
}

// RecordWeight is the convenience form used by the visit flow when a weight
// is taken in the exam room.
func (s *Service) RecordWeight(ctx context.Context, patientID uuid.UUID, weightKg float64, recordedBy *uuid.UUID, note *string) error {
	return s.AddWeight(ctx, &WeightEntry{
		PatientID:  patientID,
		WeightKg:   weightKg,
		RecordedBy: recordedBy,
		Note:       note,
	})
}

func (s *Service) ListWeights(ctx context.Context, patientID uuid.UUID) ([]*WeightEntry, error) {
	if _, err := s.repo.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListWeights(ctx, patientID)
}

func (s *Service) RemoveWeight(ctx context.Context, id uuid.UUID) error {
	return s.repo.RemoveWeight(ctx, id)
}
