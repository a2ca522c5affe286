package inventory

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

// --- vendors ---

func (s *Service) CreateVendor(ctx context.Context, v *Vendor) error {
	if err := v.Validate(); err != nil {
		return err
	}
	v.Active = true
	return s.repo.CreateVendor(ctx, v)
}

func (s *Service) GetVendor(ctx context.Context, id uuid.UUID) (*Vendor, error) {
	return s.repo.GetVendor(ctx, id)
}

func (s *Service) UpdateVendor(ctx context.Context, v *Vendor) error {
	if err := v.Validate(); err != nil {
		return err
	}
	return s.repo.UpdateVendor(ctx, v)
}

func (s *Service) ListVendors(ctx context.Context, limit, offset int) ([]*Vendor, int, error) {
	return s.repo.ListVendors(ctx, limit, offset)
}

// --- products ---

func (s *Service) CreateProduct(ctx context.Context, p *Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.Active = true
	return s.repo.CreateProduct(ctx, p)
}

func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// UpdateProduct revises catalog fields. Stock levels only move through
// receipts, dispenses, and adjustments so the audit trail stays complete.
func (s *Service) UpdateProduct(ctx context.Context, p *Product) error {
	existing, err := s.repo.GetProduct(ctx, p.ID)
	if err != nil {
		return err
	}
	p.OnHand = existing.OnHand
	if err := p.Validate(); err != nil {
		return err
	}
	return s.repo.UpdateProduct(ctx, p)
}

// DeleteProduct removes a product that nothing references; referenced
// products are deactivated instead.
func (s *Service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetProduct(ctx, id); err != nil {
		return err
	}
	referenced, err := s.repo.ProductReferenced(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return ErrProductReferenced
	}
	return s.repo.DeleteProduct(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context, filter ProductFilter, limit, offset int) ([]*Product, int, error) {
	return s.repo.ListProducts(ctx, filter, limit, offset)
}

func (s *Service) ListLowStock(ctx context.Context, limit, offset int) ([]*Product, int, error) {
	return s.repo.ListProducts(ctx, ProductFilter{LowStock: true}, limit, offset)
}

// --- stock ---

// Adjust applies a manual stock correction with a reason code.
func (s *Service) Adjust(ctx context.Context, productID uuid.UUID, delta float64, reason string, note *string, actorID *uuid.UUID) error {
	if delta == 0 {
		return fmt.Errorf("%w: delta cannot be zero", ErrValidation)
	}
	if !adjustmentReasons[reason] {
		return fmt.Errorf("%w: unknown adjustment reason %q", ErrValidation, reason)
	}
	return s.repo.AdjustStock(ctx, &StockMovement{
		ProductID: productID,
		Delta:     delta,
		Reason:    reason,
		Note:      note,
		ActorID:   actorID,
	})
}

func (s *Service) ListMovements(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*StockMovement, int, error) {
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListMovements(ctx, productID, limit, offset)
}

// DispenseForInvoice decrements stock for a billed product line. The invoice
// domain calls this through its StockDispenser interface.
func (s *Service) DispenseForInvoice(ctx context.Context, productID uuid.UUID, qty float64, invoiceID uuid.UUID) error {
	return s.dispense(ctx, productID, qty, MovementInvoice, invoiceID)
}

// DispenseForPrescription decrements stock for a filled prescription.
func (s *Service) DispenseForPrescription(ctx context.Context, productID uuid.UUID, qty float64, prescriptionID uuid.UUID) error {
	return s.dispense(ctx, productID, qty, MovementPrescription, prescriptionID)
}

// DispensableProduct reports whether the product exists and may be dispensed
// on a prescription.
func (s *Service) DispensableProduct(ctx context.Context, id uuid.UUID) (bool, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return false, err
	}
	return p.Dispensable && p.Active, nil
}

func (s *Service) dispense(ctx context.Context, productID uuid.UUID, qty float64, reason string, refID uuid.UUID) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	return s.repo.AdjustStock(ctx, &StockMovement{
		ProductID: productID,
		Delta:     -qty,
		Reason:    reason,
		RefID:     &refID,
	})
}

// --- purchase orders ---

func (s *Service) CreatePO(ctx context.Context, po *PurchaseOrder) error {
	if _, err := s.repo.GetVendor(ctx, po.VendorID); err != nil {
		return err
	}
	lines := po.Lines
	po.Status = POStatusDraft
	po.Lines = nil
	for _, l := range lines {
		if err := l.Validate(); err != nil {
			return err
		}
		if _, err := s.repo.GetProduct(ctx, l.ProductID); err != nil {
			return err
		}
	}
	// Header and lines land together; a failed line insert rolls back the PO.
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreatePO(ctx, po); err != nil {
			return err
		}
		for _, l := range lines {
			l.POID = po.ID
			if err := s.repo.AddPOLine(ctx, l); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	po.Lines = lines
	return nil
}

func (s *Service) GetPO(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error) {
	return s.repo.GetPO(ctx, id)
}

func (s *Service) ListPOs(ctx context.Context, filter POFilter, limit, offset int) ([]*PurchaseOrder, int, error) {
	return s.repo.ListPOs(ctx, filter, limit, offset)
}

func (s *Service) AddPOLine(ctx context.Context, l *PurchaseOrderLine) error {
	po, err := s.repo.GetPO(ctx, l.POID)
	if err != nil {
		return err
	}
	if po.Status != POStatusDraft {
		return ErrPOState
	}
	if err := l.Validate(); err != nil {
		return err
	}
	if _, err := s.repo.GetProduct(ctx, l.ProductID); err != nil {
		return err
	}
	return s.repo.AddPOLine(ctx, l)
}

func (s *Service) UpdatePOLine(ctx context.Context, l *PurchaseOrderLine) error {
	existing, err := s.repo.GetPOLine(ctx, l.ID)
	if err != nil {
		return err
	}
	po, err := s.repo.GetPO(ctx, existing.POID)
	if err != nil {
		return err
	}
	if po.Status != POStatusDraft {
		return ErrPOState
	}
	l.POID = existing.POID
	l.QtyReceived = existing.QtyReceived
	if err := l.Validate(); err != nil {
		return err
	}
	return s.repo.UpdatePOLine(ctx, l)
}

func (s *Service) RemovePOLine(ctx context.Context, id uuid.UUID) error {
	existing, err := s.repo.GetPOLine(ctx, id)
	if err != nil {
		return err
	}
	po, err := s.repo.GetPO(ctx, existing.POID)
	if err != nil {
		return err
	}
	if po.Status != POStatusDraft {
		return ErrPOState
	}
	return s.repo.RemovePOLine(ctx, id)
}

func (s *Service) SubmitPO(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error) {
	po, err := s.repo.GetPO(ctx, id)
	if err != nil {
		return nil, err
	}
	if po.Status != POStatusDraft {
		return nil, ErrPOState
	}
	if len(po.Lines) == 0 {
		return nil, fmt.Errorf("%w: purchase order has no lines", ErrValidation)
	}
	now := time.Now().UTC()
	po.Status = POStatusSubmitted
	po.SubmittedAt = &now
	if err := s.repo.UpdatePO(ctx, po); err != nil {
		return nil, err
	}
	return po, nil
}

func (s *Service) CancelPO(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error) {
	po, err := s.repo.GetPO(ctx, id)
	if err != nil {
		return nil, err
	}
	if po.Status != POStatusDraft && po.Status != POStatusSubmitted {
		return nil, ErrPOState
	}
	po.Status = POStatusCancelled
	if err := s.repo.UpdatePO(ctx, po); err != nil {
		return nil, err
	}
	return po, nil
}

func (s *Service) ClosePO(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error) {
	po, err := s.repo.GetPO(ctx, id)
	if err != nil {
		return nil, err
	}
	if po.Status != POStatusPartiallyReceived && po.Status != POStatusReceived {
		return nil, ErrPOState
	}
	po.Status = POStatusClosed
	if err := s.repo.UpdatePO(ctx, po); err != nil {
		return nil, err
	}
	return po, nil
}

// LineReceipt is one received quantity against a PO line.
type LineReceipt struct {
	LineID   uuid.UUID `json:"line_id"`
	Quantity float64   `json:"quantity"`
}

// ReceivePO books received quantities: line counters and product stock move
// together, atomically, and the PO status follows the received totals.
func (s *Service) ReceivePO(ctx context.Context, id uuid.UUID, receipts []LineReceipt, actorID *uuid.UUID) (*PurchaseOrder, error) {
	po, err := s.repo.GetPO(ctx, id)
	if err != nil {
		return nil, err
	}
	if po.Status != POStatusSubmitted && po.Status != POStatusPartiallyReceived {
		return nil, ErrPOState
	}
	if len(receipts) == 0 {
		return nil, fmt.Errorf("%w: no receipts given", ErrValidation)
	}

	byID := make(map[uuid.UUID]*PurchaseOrderLine, len(po.Lines))
	for _, l := range po.Lines {
		byID[l.ID] = l
	}

	var updated []*PurchaseOrderLine
	var movements []*StockMovement
	for _, rc := range receipts {
		line, ok := byID[rc.LineID]
		if !ok {
			return nil, ErrPOLineNotFound
		}
		if rc.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
		}
		if line.QtyReceived+rc.Quantity > line.QtyOrdered {
			return nil, fmt.Errorf("%w: line %s", ErrOverReceive, line.ID)
		}
		line.QtyReceived += rc.Quantity
		updated = append(updated, line)
		movements = append(movements, &StockMovement{
			ProductID: line.ProductID,
			Delta:     rc.Quantity,
			Reason:    MovementReceive,
			RefID:     &po.ID,
			ActorID:   actorID,
		})
	}

	fully := true
	for _, l := range po.Lines {
		if l.QtyReceived < l.QtyOrdered {
			fully = false
			break
		}
	}
	if fully {
		po.Status = POStatusReceived
	} else {
		po.Status = POStatusPartiallyReceived
	}

	if err := s.repo.Receive(ctx, po, updated, movements); err != nil {
		return nil, err
	}
	return po, nil
}
