package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrVendorNotFound    = errors.New("vendor not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrPONotFound        = errors.New("purchase order not found")
	ErrPOLineNotFound    = errors.New("purchase order line not found")
	ErrDuplicateSKU      = errors.New("sku already in use")
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientStock = errors.New("insufficient stock on hand")
	ErrPOState           = errors.New("purchase order state does not allow this operation")
	ErrOverReceive       = errors.New("received quantity exceeds ordered quantity")
	ErrProductReferenced = errors.New("product is referenced by billing or prescription records")
)

const (
	POStatusDraft             = "draft"
	POStatusSubmitted         = "submitted"
	POStatusPartiallyReceived = "partially_received"
	POStatusReceived          = "received"
	POStatusClosed            = "closed"
	POStatusCancelled         = "cancelled"
)

// Movement reasons recorded in the stock audit trail.
const (
	MovementReceive      = "receive"
	MovementInvoice      = "invoice"
	MovementPrescription = "prescription"
	MovementCount        = "count"
	MovementWaste        = "waste"
	MovementExpired      = "expired"
	MovementOther        = "other"
)

var adjustmentReasons = map[string]bool{
	MovementCount:   true,
	MovementWaste:   true,
	MovementExpired: true,
	MovementOther:   true,
}

type Vendor struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	ContactName *string   `db:"contact_name" json:"contact_name,omitempty"`
	Email       *string   `db:"email" json:"email,omitempty"`
	Phone       *string   `db:"phone" json:"phone,omitempty"`
	Address     *string   `db:"address" json:"address,omitempty"`
	Notes       *string   `db:"notes" json:"notes,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

func (v *Vendor) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	return nil
}

// Product covers both stocked goods and billable services; services carry a
// zero reorder point and are never dispensed.
type Product struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	SKU                string    `db:"sku" json:"sku"`
	Name               string    `db:"name" json:"name"`
	Category           string    `db:"category" json:"category"`
	SpeciesRestriction *string   `db:"species_restriction" json:"species_restriction,omitempty"`
	UnitCostCents      int64     `db:"unit_cost_cents" json:"unit_cost_cents"`
	UnitPriceCents     int64     `db:"unit_price_cents" json:"unit_price_cents"`
	Taxable            bool      `db:"taxable" json:"taxable"`
	Dispensable        bool      `db:"dispensable" json:"dispensable"`
	OnHand             float64   `db:"on_hand" json:"on_hand"`
	ReorderPoint       float64   `db:"reorder_point" json:"reorder_point"`
	ReorderQty         float64   `db:"reorder_qty" json:"reorder_qty"`
	LotNumber          *string   `db:"lot_number" json:"lot_number,omitempty"`
	ExpiryDate         *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	Active             bool      `db:"active" json:"active"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

func (p *Product) Validate() error {
	if strings.TrimSpace(p.SKU) == "" {
		return fmt.Errorf("%w: sku is required", ErrValidation)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if p.UnitCostCents < 0 || p.UnitPriceCents < 0 {
		return fmt.Errorf("%w: prices cannot be negative", ErrValidation)
	}
	if p.OnHand < 0 {
		return fmt.Errorf("%w: on_hand cannot be negative", ErrValidation)
	}
	if p.ReorderPoint < 0 || p.ReorderQty < 0 {
		return fmt.Errorf("%w: reorder levels cannot be negative", ErrValidation)
	}
	return nil
}

type PurchaseOrder struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	VendorID    uuid.UUID  `db:"vendor_id" json:"vendor_id"`
	Status      string     `db:"status" json:"status"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	SubmittedAt *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	ExpectedAt  *time.Time `db:"expected_at" json:"expected_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`

	Lines []*PurchaseOrderLine `db:"-" json:"lines,omitempty"`
}

type PurchaseOrderLine struct {
	ID            uuid.UUID `db:"id" json:"id"`
	POID          uuid.UUID `db:"po_id" json:"po_id"`
	ProductID     uuid.UUID `db:"product_id" json:"product_id"`
	QtyOrdered    float64   `db:"qty_ordered" json:"qty_ordered"`
	QtyReceived   float64   `db:"qty_received" json:"qty_received"`
	UnitCostCents int64     `db:"unit_cost_cents" json:"unit_cost_cents"`
}

func (l *PurchaseOrderLine) Validate() error {
	if l.ProductID == uuid.Nil {
		return fmt.Errorf("%w: product_id is required", ErrValidation)
	}
	if l.QtyOrdered <= 0 {
		return fmt.Errorf("%w: qty_ordered must be positive", ErrValidation)
	}
	if l.UnitCostCents < 0 {
		return fmt.Errorf("%w: unit_cost_cents cannot be negative", ErrValidation)
	}
	return nil
}

// StockMovement is one row of the stock audit trail. Delta is signed; RefID
// points at the purchase order, invoice, or prescription that moved stock.
type StockMovement struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	ProductID uuid.UUID  `db:"product_id" json:"product_id"`
	Delta     float64    `db:"delta" json:"delta"`
	Reason    string     `db:"reason" json:"reason"`
	RefID     *uuid.UUID `db:"ref_id" json:"ref_id,omitempty"`
	Note      *string    `db:"note" json:"note,omitempty"`
	ActorID   *uuid.UUID `db:"actor_id" json:"actor_id,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
