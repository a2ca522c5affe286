package invoice

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("invoice not found")
	ErrItemNotFound    = errors.New("invoice item not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrValidation      = errors.New("validation failed")
	ErrInvoiceState    = errors.New("invoice state does not allow this operation")
	ErrOverpayment     = errors.New("payment exceeds balance due")
	// ErrInsufficientStock is surfaced when issuing an invoice would
	// dispense more product than is on hand.
	ErrInsufficientStock = errors.New("insufficient stock on hand")
)

const (
	StatusDraft   = "draft"
	StatusOpen    = "open"
	StatusPartial = "partial"
	StatusPaid    = "paid"
	StatusVoid    = "void"
)

var ValidPaymentMethods = map[string]bool{
	"cash":           true,
	"card":           true,
	"check":          true,
	"online":         true,
	"account_credit": true,
}

// Invoice stores all amounts in integer cents. Totals are always recomputed
// server-side from items and payments; values sent by clients are ignored.
type Invoice struct {
	ID       uuid.UUID  `db:"id" json:"id"`
	Number   string     `db:"number" json:"number"`
	ClientID uuid.UUID  `db:"client_id" json:"client_id"`
	VisitID  *uuid.UUID `db:"visit_id" json:"visit_id,omitempty"`
	Status   string     `db:"status" json:"status"`

	TaxRate            float64 `db:"tax_rate" json:"tax_rate"`
	SubtotalCents      int64   `db:"subtotal_cents" json:"subtotal_cents"`
	DiscountTotalCents int64   `db:"discount_total_cents" json:"discount_total_cents"`
	TaxTotalCents      int64   `db:"tax_total_cents" json:"tax_total_cents"`
	GrandTotalCents    int64   `db:"grand_total_cents" json:"grand_total_cents"`
	AmountPaidCents    int64   `db:"amount_paid_cents" json:"amount_paid_cents"`
	BalanceDueCents    int64   `db:"balance_due_cents" json:"balance_due_cents"`

	Notes     *string    `db:"notes" json:"notes,omitempty"`
	IssuedAt  *time.Time `db:"issued_at" json:"issued_at,omitempty"`
	VoidedAt  *time.Time `db:"voided_at" json:"voided_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`

	Items    []*Item    `db:"-" json:"items,omitempty"`
	Payments []*Payment `db:"-" json:"payments,omitempty"`
}

type Item struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	InvoiceID       uuid.UUID  `db:"invoice_id" json:"invoice_id"`
	ProductID       *uuid.UUID `db:"product_id" json:"product_id,omitempty"`
	Description     string     `db:"description" json:"description"`
	Quantity        float64    `db:"quantity" json:"quantity"`
	UnitPriceCents  int64      `db:"unit_price_cents" json:"unit_price_cents"`
	DiscountPercent float64    `db:"discount_percent" json:"discount_percent"`
	Taxable         bool       `db:"taxable" json:"taxable"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

func (i *Item) Validate() error {
	if strings.TrimSpace(i.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	if i.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if i.UnitPriceCents < 0 {
		return fmt.Errorf("%w: unit_price_cents cannot be negative", ErrValidation)
	}
	if i.DiscountPercent < 0 || i.DiscountPercent > 100 {
		return fmt.Errorf("%w: discount_percent must be between 0 and 100", ErrValidation)
	}
	return nil
}

// lineTotal is the pre-discount line amount in cents.
func (i *Item) lineTotal() int64 {
	return int64(math.Round(i.Quantity * float64(i.UnitPriceCents)))
}

func (i *Item) discount() int64 {
	return int64(math.Round(float64(i.lineTotal()) * i.DiscountPercent / 100))
}

type Payment struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	InvoiceID   uuid.UUID  `db:"invoice_id" json:"invoice_id"`
	Method      string     `db:"method" json:"method"`
	AmountCents int64      `db:"amount_cents" json:"amount_cents"`
	Note        *string    `db:"note" json:"note,omitempty"`
	Voided      bool       `db:"voided" json:"voided"`
	VoidedAt    *time.Time `db:"voided_at" json:"voided_at,omitempty"`
	ReceivedAt  time.Time  `db:"received_at" json:"received_at"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

func (p *Payment) Validate() error {
	if !ValidPaymentMethods[p.Method] {
		return fmt.Errorf("%w: unknown payment method %q", ErrValidation, p.Method)
	}
	if p.AmountCents <= 0 {
		return fmt.Errorf("%w: amount_cents must be positive", ErrValidation)
	}
	return nil
}

// recompute derives every stored total and the settlement status from the
// invoice's items and non-voided payments. Draft and void are workflow
// states and are left alone.
func (inv *Invoice) recompute() {
	var subtotal, discountTotal, taxTotal int64
	for _, item := range inv.Items {
		line := item.lineTotal()
		disc := item.discount()
		subtotal += line
		discountTotal += disc
		if item.Taxable {
			taxTotal += int64(math.Round(float64(line-disc) * inv.TaxRate))
		}
	}

	var paid int64
	for _, p := range inv.Payments {
		if !p.Voided {
			paid += p.AmountCents
		}
	}

	inv.SubtotalCents = subtotal
	inv.DiscountTotalCents = discountTotal
	inv.TaxTotalCents = taxTotal
	inv.GrandTotalCents = subtotal - discountTotal + taxTotal
	inv.AmountPaidCents = paid
	inv.BalanceDueCents = inv.GrandTotalCents - paid

	if inv.Status == StatusDraft || inv.Status == StatusVoid {
		return
	}
	switch {
	case paid == 0:
		inv.Status = StatusOpen
	case inv.BalanceDueCents > 0:
		inv.Status = StatusPartial
	default:
		inv.Status = StatusPaid
	}
}
