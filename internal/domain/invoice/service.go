package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StockDispenser decrements product stock when an invoice with product lines
// is issued. The inventory domain provides the implementation; wiring happens
// in main.
type StockDispenser interface {
	DispenseForInvoice(ctx context.Context, productID uuid.UUID, qty float64, invoiceID uuid.UUID) error
}

type Service struct {
	repo    Repository
	taxRate float64
	stock   StockDispenser
}

// NewService builds the invoicing service. taxRate is the practice-wide
// fraction applied to taxable lines (0.08 for 8%).
func NewService(repo Repository, taxRate float64) *Service {
	return &Service{repo: repo, taxRate: taxRate}
}

func (s *Service) SetStockDispenser(sd StockDispenser) {
	s.stock = sd
}

// CreateDraft opens a draft invoice, optionally seeded with items.
func (s *Service) CreateDraft(ctx context.Context, inv *Invoice) error {
	if inv.ClientID == uuid.Nil {
		return fmt.Errorf("%w: client_id is required", ErrValidation)
	}
	items := inv.Items
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
	}

	return s.repo.InTx(ctx, func(ctx context.Context) error {
		number, err := s.repo.NextNumber(ctx)
		if err != nil {
			return err
		}
		inv.Number = number
		inv.Status = StatusDraft
		inv.TaxRate = s.taxRate
		inv.Items = nil
		inv.Payments = nil
		if err := s.repo.Create(ctx, inv); err != nil {
			return err
		}
		for _, item := range items {
			item.InvoiceID = inv.ID
			if err := s.repo.AddItem(ctx, item); err != nil {
				return err
			}
		}
		inv.Items = items
		inv.recompute()
		return s.repo.Update(ctx, inv)
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Invoice, int, error) {
	return s.repo.List(ctx, filter, limit, offset)
}

// AddItem appends a line and recomputes totals. Paid and void invoices are
// closed for changes.
func (s *Service) AddItem(ctx context.Context, item *Item) (*Invoice, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}
	var out *Invoice
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetByID(ctx, item.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Status == StatusPaid || inv.Status == StatusVoid {
			return ErrInvoiceState
		}
		if err := s.repo.AddItem(ctx, item); err != nil {
			return err
		}
		inv.Items = append(inv.Items, item)
		inv.recompute()
		if err := s.repo.Update(ctx, inv); err != nil {
			return err
		}
		out = inv
		return nil
	})
	return out, err
}

func (s *Service) UpdateItem(ctx context.Context, item *Item) (*Invoice, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}
	var out *Invoice
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetItem(ctx, item.ID)
		if err != nil {
			return err
		}
		item.InvoiceID = existing.InvoiceID

		inv, err := s.repo.GetByID(ctx, item.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Status == StatusPaid || inv.Status == StatusVoid {
			return ErrInvoiceState
		}
		if err := s.repo.UpdateItem(ctx, item); err != nil {
			return err
		}
		for i, it := range inv.Items {
			if it.ID == item.ID {
				inv.Items[i] = item
			}
		}
		inv.recompute()
		if err := s.repo.Update(ctx, inv); err != nil {
			return err
		}
		out = inv
		return nil
	})
	return out, err
}

func (s *Service) RemoveItem(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	var out *Invoice
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		item, err := s.repo.GetItem(ctx, id)
		if err != nil {
			return err
		}
		inv, err := s.repo.GetByID(ctx, item.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Status == StatusPaid || inv.Status == StatusVoid {
			return ErrInvoiceState
		}
		if err := s.repo.RemoveItem(ctx, id); err != nil {
			return err
		}
		kept := inv.Items[:0]
		for _, it := range inv.Items {
			if it.ID != id {
				kept = append(kept, it)
			}
		}
		inv.Items = kept
		inv.recompute()
		if err := s.repo.Update(ctx, inv); err != nil {
			return err
		}
		out = inv
		return nil
	})
	return out, err
}

// Issue moves a draft to open and dispenses stock for product-backed lines.
// The stock decrement shares the transaction, so a shortage rolls the whole
// issue back.
func (s *Service) Issue(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	var out *Invoice
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status != StatusDraft {
			return ErrInvoiceState
		}
		now := time.Now().UTC()
		inv.Status = StatusOpen
		inv.IssuedAt = &now
		inv.recompute()

		if s.stock != nil {
			for _, item := range inv.Items {
				if item.ProductID == nil {
					continue
				}
				if err := s.stock.DispenseForInvoice(ctx, *item.ProductID, item.Quantity, inv.ID); err != nil {
					return err
				}
			}
		}
		if err := s.repo.Update(ctx, inv); err != nil {
			return err
		}
		out = inv
		return nil
	})
	return out, err
}

// RecordPayment applies a payment to an open or partially paid invoice.
// Overpayment is rejected.
func (s *Service) RecordPayment(ctx context.Context, p *Payment) (*Invoice, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var out *Invoice
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetByID(ctx, p.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Status != StatusOpen && inv.Status != StatusPartial {
			return ErrInvoiceState
		}
		if p.AmountCents > inv.BalanceDueCents {
			return ErrOverpayment
		}
		if p.ReceivedAt.IsZero() {
			p.ReceivedAt = time.Now().UTC()
		}
		if err := s.repo.AddPayment(ctx, p); err != nil {
			return err
		}
		inv.Payments = append(inv.Payments, p)
		inv.recompute()
		if err := s.repo.Update(ctx, inv); err != nil {
			return err
		}
		out = inv
		return nil
	})
	return out, err
}

// VoidPayment reverses a payment; the invoice settles back to open or
// partial accordingly.
func (s *Service) VoidPayment(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	var out *Invoice
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		if p.Voided {
			return ErrInvoiceState
		}
		inv, err := s.repo.GetByID(ctx, p.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Status == StatusVoid {
			return ErrInvoiceState
		}
		now := time.Now().UTC()
		p.Voided = true
		p.VoidedAt = &now
		if err := s.repo.UpdatePayment(ctx, p); err != nil {
			return err
		}
		for i, pay := range inv.Payments {
			if pay.ID == p.ID {
				inv.Payments[i] = p
			}
		}
		inv.recompute()
		if err := s.repo.Update(ctx, inv); err != nil {
			return err
		}
		out = inv
		return nil
	})
	return out, err
}

// Void cancels an unpaid invoice. Anything with money applied must have its
// payments voided first.
func (s *Service) Void(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	var out *Invoice
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status == StatusVoid {
			return ErrInvoiceState
		}
		if inv.AmountPaidCents > 0 {
			return ErrInvoiceState
		}
		now := time.Now().UTC()
		inv.Status = StatusVoid
		inv.VoidedAt = &now
		if err := s.repo.Update(ctx, inv); err != nil {
			return err
		}
		out = inv
		return nil
	})
	return out, err
}
