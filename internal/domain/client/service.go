package client

import (
	"context"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, c *Client) error {
	if c.Status == "" {
		c.Status = StatusActive
	}
	if err := c.Validate(); err != nil {
		return err
	}
	return s.repo.Create(ctx, c)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Client, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, c *Client) error {
	if c.Status == "" {
		existing, err := s.repo.GetByID(ctx, c.ID)
		if err != nil {
			return err
		}
		c.Status = existing.Status
	}
	if err := c.Validate(); err != nil {
		return err
	}
	return s.repo.Update(ctx, c)
}

// SetStatus activates or deactivates a client. Deactivation is the supported
// way to retire a client that has history.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	if status != StatusActive && status != StatusInactive {
		return ErrValidation
	}
	return s.repo.SetStatus(ctx, id, status)
}

// Delete removes a client outright. Clients with patients cannot be deleted;
// their visit, invoice, and prescription history hangs off those patients.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	hasPatients, err := s.repo.HasPatients(ctx, id)
	if err != nil {
		return err
	}
	if hasPatients {
		return ErrHasPatients
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Client, int, error) {
	return s.repo.List(ctx, filter, limit, offset)
}
