package inventory

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetpms/vetpms/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.TxFromContext(ctx) != nil {
		return fn(ctx)
	}
	return db.WithTx(ctx, r.pool, fn)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- vendors ---

const vendorCols = `id, name, contact_name, email, phone, address, notes, active, created_at, updated_at`

func (r *repoPG) CreateVendor(ctx context.Context, v *Vendor) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO vendors (id, name, contact_name, email, phone, address, notes, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		v.ID, v.Name, v.ContactName, v.Email, v.Phone, v.Address, v.Notes, v.Active,
	)
	return err
}

func (r *repoPG) GetVendor(ctx context.Context, id uuid.UUID) (*Vendor, error) {
	var v Vendor
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+vendorCols+` FROM vendors WHERE id = $1`, id).Scan(
		&v.ID, &v.Name, &v.ContactName, &v.Email, &v.Phone, &v.Address, &v.Notes,
		&v.Active, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVendorNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (r *repoPG) UpdateVendor(ctx context.Context, v *Vendor) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE vendors SET name=$2, contact_name=$3, email=$4, phone=$5,
			address=$6, notes=$7, active=$8, updated_at=now()
		WHERE id = $1`,
		v.ID, v.Name, v.ContactName, v.Email, v.Phone, v.Address, v.Notes, v.Active,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVendorNotFound
	}
	return nil
}

func (r *repoPG) ListVendors(ctx context.Context, limit, offset int) ([]*Vendor, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM vendors`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+vendorCols+` FROM vendors ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var vendors []*Vendor
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.ContactName, &v.Email, &v.Phone,
			&v.Address, &v.Notes, &v.Active, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, 0, err
		}
		vendors = append(vendors, &v)
	}
	return vendors, total, rows.Err()
}

// --- products ---

const productCols = `id, sku, name, category, species_restriction,
	unit_cost_cents, unit_price_cents, taxable, dispensable,
	on_hand, reorder_point, reorder_qty, lot_number, expiry_date,
	active, created_at, updated_at`

func (r *repoPG) CreateProduct(ctx context.Context, p *Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO products (
			id, sku, name, category, species_restriction,
			unit_cost_cents, unit_price_cents, taxable, dispensable,
			on_hand, reorder_point, reorder_qty, lot_number, expiry_date, active
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		p.ID, p.SKU, p.Name, p.Category, p.SpeciesRestriction,
		p.UnitCostCents, p.UnitPriceCents, p.Taxable, p.Dispensable,
		p.OnHand, p.ReorderPoint, p.ReorderQty, p.LotNumber, p.ExpiryDate, p.Active,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateSKU
	}
	return err
}

func (r *repoPG) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	p, err := scanProduct(r.conn(ctx).QueryRow(ctx,
		`SELECT `+productCols+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *repoPG) UpdateProduct(ctx context.Context, p *Product) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE products SET
			sku=$2, name=$3, category=$4, species_restriction=$5,
			unit_cost_cents=$6, unit_price_cents=$7, taxable=$8, dispensable=$9,
			reorder_point=$10, reorder_qty=$11, lot_number=$12, expiry_date=$13,
			active=$14, updated_at=now()
		WHERE id = $1`,
		p.ID, p.SKU, p.Name, p.Category, p.SpeciesRestriction,
		p.UnitCostCents, p.UnitPriceCents, p.Taxable, p.Dispensable,
		p.ReorderPoint, p.ReorderQty, p.LotNumber, p.ExpiryDate, p.Active,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateSKU
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *repoPG) ListProducts(ctx context.Context, filter ProductFilter, limit, offset int) ([]*Product, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	n := 0

	switch filter.Active {
	case "all":
	case "inactive":
		where = append(where, "active = false")
	default:
		where = append(where, "active = true")
	}
	if filter.LowStock {
		where = append(where, "on_hand <= reorder_point")
	}
	if filter.Category != "" {
		n++
		where = append(where, "category = $"+strconv.Itoa(n))
		args = append(args, filter.Category)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		n++
		p := "$" + strconv.Itoa(n)
		where = append(where, `(name ILIKE `+p+` OR sku ILIKE `+p+`)`)
		args = append(args, q+"%")
	}

	cond := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+productCols+` FROM products WHERE `+cond+
			` ORDER BY name LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repoPG) ProductReferenced(ctx context.Context, id uuid.UUID) (bool, error) {
	var referenced bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM invoice_items WHERE product_id = $1)
			OR EXISTS (SELECT 1 FROM prescriptions WHERE product_id = $1)`,
		id,
	).Scan(&referenced)
	return referenced, err
}

func (r *repoPG) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// --- stock ---

func (r *repoPG) AdjustStock(ctx context.Context, m *StockMovement) error {
	run := func(ctx context.Context) error {
		return r.applyMovement(ctx, m)
	}
	if db.TxFromContext(ctx) != nil {
		return run(ctx)
	}
	return db.WithTx(ctx, r.pool, run)
}

// applyMovement applies the delta with a non-negative guard and records the
// movement row. Callers are responsible for running it inside a transaction.
func (r *repoPG) applyMovement(ctx context.Context, m *StockMovement) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE products SET on_hand = on_hand + $2, updated_at = now()
		WHERE id = $1 AND on_hand + $2 >= 0`,
		m.ProductID, m.Delta,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetProduct(ctx, m.ProductID); err != nil {
			return err
		}
		return ErrInsufficientStock
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO stock_movements (id, product_id, delta, reason, ref_id, note, actor_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		m.ID, m.ProductID, m.Delta, m.Reason, m.RefID, m.Note, m.ActorID,
	)
	return err
}

func (r *repoPG) ListMovements(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*StockMovement, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM stock_movements WHERE product_id = $1`, productID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, product_id, delta, reason, ref_id, note, actor_id, created_at
		FROM stock_movements WHERE product_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, productID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var movements []*StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Delta, &m.Reason, &m.RefID,
			&m.Note, &m.ActorID, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		movements = append(movements, &m)
	}
	return movements, total, rows.Err()
}

// --- purchase orders ---

const poCols = `id, vendor_id, status, notes, submitted_at, expected_at, created_at, updated_at`

func (r *repoPG) CreatePO(ctx context.Context, po *PurchaseOrder) error {
	if po.ID == uuid.Nil {
		po.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO purchase_orders (id, vendor_id, status, notes, expected_at)
		VALUES ($1,$2,$3,$4,$5)`,
		po.ID, po.VendorID, po.Status, po.Notes, po.ExpectedAt,
	)
	return err
}

func (r *repoPG) GetPO(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error) {
	var po PurchaseOrder
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+poCols+` FROM purchase_orders WHERE id = $1`, id).Scan(
		&po.ID, &po.VendorID, &po.Status, &po.Notes, &po.SubmittedAt,
		&po.ExpectedAt, &po.CreatedAt, &po.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPONotFound
		}
		return nil, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, po_id, product_id, qty_ordered, qty_received, unit_cost_cents
		FROM purchase_order_lines WHERE po_id = $1
		ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l PurchaseOrderLine
		if err := rows.Scan(&l.ID, &l.POID, &l.ProductID, &l.QtyOrdered,
			&l.QtyReceived, &l.UnitCostCents); err != nil {
			return nil, err
		}
		po.Lines = append(po.Lines, &l)
	}
	return &po, rows.Err()
}

func (r *repoPG) UpdatePO(ctx context.Context, po *PurchaseOrder) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE purchase_orders SET
			vendor_id=$2, status=$3, notes=$4, submitted_at=$5, expected_at=$6, updated_at=now()
		WHERE id = $1`,
		po.ID, po.VendorID, po.Status, po.Notes, po.SubmittedAt, po.ExpectedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPONotFound
	}
	return nil
}

func (r *repoPG) ListPOs(ctx context.Context, filter POFilter, limit, offset int) ([]*PurchaseOrder, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	n := 0

	if filter.VendorID != uuid.Nil {
		n++
		where = append(where, "vendor_id = $"+strconv.Itoa(n))
		args = append(args, filter.VendorID)
	}
	if filter.Status != "" {
		n++
		where = append(where, "status = $"+strconv.Itoa(n))
		args = append(args, filter.Status)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+poCols+` FROM purchase_orders WHERE `+cond+
			` ORDER BY created_at DESC LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var pos []*PurchaseOrder
	for rows.Next() {
		var po PurchaseOrder
		if err := rows.Scan(&po.ID, &po.VendorID, &po.Status, &po.Notes,
			&po.SubmittedAt, &po.ExpectedAt, &po.CreatedAt, &po.UpdatedAt); err != nil {
			return nil, 0, err
		}
		pos = append(pos, &po)
	}
	return pos, total, rows.Err()
}

func (r *repoPG) AddPOLine(ctx context.Context, l *PurchaseOrderLine) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO purchase_order_lines (id, po_id, product_id, qty_ordered, qty_received, unit_cost_cents)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		l.ID, l.POID, l.ProductID, l.QtyOrdered, l.QtyReceived, l.UnitCostCents,
	)
	return err
}

func (r *repoPG) UpdatePOLine(ctx context.Context, l *PurchaseOrderLine) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE purchase_order_lines SET
			product_id=$2, qty_ordered=$3, qty_received=$4, unit_cost_cents=$5
		WHERE id = $1`,
		l.ID, l.ProductID, l.QtyOrdered, l.QtyReceived, l.UnitCostCents,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPOLineNotFound
	}
	return nil
}

func (r *repoPG) RemovePOLine(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM purchase_order_lines WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPOLineNotFound
	}
	return nil
}

func (r *repoPG) GetPOLine(ctx context.Context, id uuid.UUID) (*PurchaseOrderLine, error) {
	var l PurchaseOrderLine
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, po_id, product_id, qty_ordered, qty_received, unit_cost_cents
		FROM purchase_order_lines WHERE id = $1`, id).Scan(
		&l.ID, &l.POID, &l.ProductID, &l.QtyOrdered, &l.QtyReceived, &l.UnitCostCents,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPOLineNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (r *repoPG) Receive(ctx context.Context, po *PurchaseOrder, lines []*PurchaseOrderLine, movements []*StockMovement) error {
	run := func(ctx context.Context) error {
		if err := r.UpdatePO(ctx, po); err != nil {
			return err
		}
		for _, l := range lines {
			if err := r.UpdatePOLine(ctx, l); err != nil {
				return err
			}
		}
		for _, m := range movements {
			if err := r.applyMovement(ctx, m); err != nil {
				return err
			}
		}
		return nil
	}
	if db.TxFromContext(ctx) != nil {
		return run(ctx)
	}
	return db.WithTx(ctx, r.pool, run)
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(
		&p.ID, &p.SKU, &p.Name, &p.Category, &p.SpeciesRestriction,
		&p.UnitCostCents, &p.UnitPriceCents, &p.Taxable, &p.Dispensable,
		&p.OnHand, &p.ReorderPoint, &p.ReorderQty, &p.LotNumber, &p.ExpiryDate,
		&p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
