package inventory

import (
	"context"

	"github.com/google/uuid"
)

type ProductFilter struct {
	Category string
	Query    string
	LowStock bool
	Active   string // "", "all", "inactive"
}

type POFilter struct {
	VendorID uuid.UUID
	Status   string
}

type Repository interface {
	// InTx runs fn inside a single database transaction; every repository
	// call fn makes joins it.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	// Vendors
	CreateVendor(ctx context.Context, v *Vendor) error
	GetVendor(ctx context.Context, id uuid.UUID) (*Vendor, error)
	UpdateVendor(ctx context.Context, v *Vendor) error
	ListVendors(ctx context.Context, limit, offset int) ([]*Vendor, int, error)

	// Products
	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	UpdateProduct(ctx context.Context, p *Product) error
	ListProducts(ctx context.Context, filter ProductFilter, limit, offset int) ([]*Product, int, error)
	ProductReferenced(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error

	// AdjustStock atomically applies delta to on_hand, failing with
	// ErrInsufficientStock when it would go negative, and records the
	// movement in the same transaction.
	AdjustStock(ctx context.Context, m *StockMovement) error
	ListMovements(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*StockMovement, int, error)

	// Purchase orders
	CreatePO(ctx context.Context, po *PurchaseOrder) error
	GetPO(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error)
	UpdatePO(ctx context.Context, po *PurchaseOrder) error
	ListPOs(ctx context.Context, filter POFilter, limit, offset int) ([]*PurchaseOrder, int, error)
	AddPOLine(ctx context.Context, l *PurchaseOrderLine) error
	UpdatePOLine(ctx context.Context, l *PurchaseOrderLine) error
	RemovePOLine(ctx context.Context, id uuid.UUID) error
	GetPOLine(ctx context.Context, id uuid.UUID) (*PurchaseOrderLine, error)

	// Receive persists a receipt atomically: the PO status, its updated
	// lines, and the stock increments with their movement rows.
	Receive(ctx context.Context, po *PurchaseOrder, lines []*PurchaseOrderLine, movements []*StockMovement) error
}
