package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, a *Appointment) error {
	a.Status = StatusScheduled
	if err := a.Validate(); err != nil {
		return err
	}
	overlapping, err := s.repo.CountOverlapping(ctx, a.VetID, a.ScheduledStart, a.ScheduledEnd, uuid.Nil)
	if err != nil {
		return err
	}
	if overlapping > 0 {
		return ErrVetConflict
	}
	return s.repo.Create(ctx, a)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// Reschedule updates the booking details of a non-terminal appointment. The
// status and its timestamps are carried over from the stored row; status
// changes go through ChangeStatus.
func (s *Service) Reschedule(ctx context.Context, a *Appointment) error {
	existing, err := s.repo.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	if IsTerminal(existing.Status) {
		return ErrTerminalState
	}

	a.Status = existing.Status
	a.ConfirmedAt = existing.ConfirmedAt
	a.CheckedInAt = existing.CheckedInAt
	a.StartedAt = existing.StartedAt
	a.CompletedAt = existing.CompletedAt
	a.CancelledAt = existing.CancelledAt

	if err := a.Validate(); err != nil {
		return err
	}
	overlapping, err := s.repo.CountOverlapping(ctx, a.VetID, a.ScheduledStart, a.ScheduledEnd, a.ID)
	if err != nil {
		return err
	}
	if overlapping > 0 {
		return ErrVetConflict
	}
	return s.repo.Update(ctx, a)
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.List(ctx, filter, limit, offset)
}

// ChangeStatus advances the workflow. Re-submitting the current status is a
// no-op; each timestamp column is stamped on first entry only.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, newStatus string, actorID *uuid.UUID, note *string) (*Appointment, error) {
	if !validStatus(newStatus) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, newStatus)
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == newStatus {
		return a, nil
	}
	if IsTerminal(a.Status) {
		return nil, ErrTerminalState
	}
	if !canTransition(a.Status, newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, newStatus)
	}

	ch := &StatusChange{
		AppointmentID: a.ID,
		FromStatus:    a.Status,
		ToStatus:      newStatus,
		ActorID:       actorID,
		Note:          note,
	}
	a.Status = newStatus
	stampStatus(a, newStatus, time.Now().UTC())

	if err := s.repo.Transition(ctx, a, ch); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) StatusHistory(ctx context.Context, id uuid.UUID) ([]*StatusChange, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListStatusChanges(ctx, id)
}

func stampStatus(a *Appointment, status string, now time.Time) {
	switch status {
	case StatusConfirmed:
		if a.ConfirmedAt == nil {
			a.ConfirmedAt = &now
		}
	case StatusCheckedIn:
		if a.CheckedInAt == nil {
			a.CheckedInAt = &now
		}
	case StatusInProgress:
		if a.StartedAt == nil {
			a.StartedAt = &now
		}
	case StatusCompleted:
		if a.CompletedAt == nil {
			a.CompletedAt = &now
		}
	case StatusCancelled:
		if a.CancelledAt == nil {
			a.CancelledAt = &now
		}
	}
}
