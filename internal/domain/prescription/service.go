package prescription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Inventory is the slice of the inventory domain prescriptions rely on:
// checking that a product may be dispensed and moving its stock.
// inventory.Service satisfies this; wiring happens in main.
type Inventory interface {
	DispensableProduct(ctx context.Context, id uuid.UUID) (bool, error)
	DispenseForPrescription(ctx context.Context, productID uuid.UUID, qty float64, prescriptionID uuid.UUID) error
}

type Service struct {
	repo      Repository
	inventory Inventory
}

func NewService(repo Repository, inv Inventory) *Service {
	return &Service{repo: repo, inventory: inv}
}

// Create writes the prescription and dispenses the initial fill. Refills
// after this first fill go through Refill.
func (s *Service) Create(ctx context.Context, p *Prescription) error {
	if err := p.Validate(); err != nil {
		return err
	}
	dispensable, err := s.inventory.DispensableProduct(ctx, p.ProductID)
	if err != nil {
		return err
	}
	if !dispensable {
		return ErrNotDispensable
	}

	now := time.Now().UTC()
	p.Status = StatusActive
	p.RefillsRemaining = p.RefillsAuthorized
	p.LastFilledAt = &now
	// Row and stock move together: a failed dispense rolls back the insert.
	return s.repo.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
		if err := s.inventory.DispenseForPrescription(ctx, p.ProductID, p.Quantity, p.ID); err != nil {
			return err
		}
		if p.RefillsRemaining == 0 {
			p.Status = StatusFilled
			return s.repo.Update(ctx, p)
		}
		return nil
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Prescription, int, error) {
	return s.repo.List(ctx, filter, limit, offset)
}

// Refill dispenses the next fill and decrements the refill counter. The last
// refill moves the prescription to filled.
func (s *Service) Refill(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	switch p.Status {
	case StatusActive:
	case StatusExpired:
		return nil, ErrExpired
	default:
		return nil, ErrState
	}
	if p.expired(now) {
		p.Status = StatusExpired
		if err := s.repo.Update(ctx, p); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}
	if p.RefillsRemaining <= 0 {
		return nil, ErrNoRefills
	}

	p.RefillsRemaining--
	p.LastFilledAt = &now
	if p.RefillsRemaining == 0 {
		p.Status = StatusFilled
	}
	err = s.repo.InTx(ctx, func(ctx context.Context) error {
		if err := s.inventory.DispenseForPrescription(ctx, p.ProductID, p.Quantity, p.ID); err != nil {
			return err
		}
		return s.repo.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Cancel stops an active prescription.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusActive {
		return nil, ErrState
	}
	p.Status = StatusCancelled
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// MarkExpired is the periodic sweep run by the background worker.
func (s *Service) MarkExpired(ctx context.Context) (int64, error) {
	return s.repo.MarkExpired(ctx, time.Now().UTC())
}
