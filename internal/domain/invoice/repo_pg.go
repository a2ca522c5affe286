package invoice

import (
	"context"
	"errors"
	"fmt"
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

func (r *repoPG) NextNumber(ctx context.Context) (string, error) {
	var n int64
	if err := r.conn(ctx).QueryRow(ctx, `SELECT nextval('invoice_number_seq')`).Scan(&n); err != nil {
		return "", err
	}
	return fmt.Sprintf("INV-%05d", n), nil
}

const invoiceCols = `id, number, client_id, visit_id, status, tax_rate,
	subtotal_cents, discount_total_cents, tax_total_cents, grand_total_cents,
	amount_paid_cents, balance_due_cents, notes, issued_at, voided_at,
	created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, inv *Invoice) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO invoices (
			id, number, client_id, visit_id, status, tax_rate,
			subtotal_cents, discount_total_cents, tax_total_cents,
			grand_total_cents, amount_paid_cents, balance_due_cents, notes
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		inv.ID, inv.Number, inv.ClientID, inv.VisitID, inv.Status, inv.TaxRate,
		inv.SubtotalCents, inv.DiscountTotalCents, inv.TaxTotalCents,
		inv.GrandTotalCents, inv.AmountPaidCents, inv.BalanceDueCents, inv.Notes,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	var inv Invoice
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE id = $1`, id).Scan(
		&inv.ID, &inv.Number, &inv.ClientID, &inv.VisitID, &inv.Status, &inv.TaxRate,
		&inv.SubtotalCents, &inv.DiscountTotalCents, &inv.TaxTotalCents,
		&inv.GrandTotalCents, &inv.AmountPaidCents, &inv.BalanceDueCents,
		&inv.Notes, &inv.IssuedAt, &inv.VoidedAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	items, err := r.listItems(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.Items = items

	payments, err := r.listPayments(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.Payments = payments
	return &inv, nil
}

func (r *repoPG) Update(ctx context.Context, inv *Invoice) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE invoices SET
			status=$2, subtotal_cents=$3, discount_total_cents=$4,
			tax_total_cents=$5, grand_total_cents=$6, amount_paid_cents=$7,
			balance_due_cents=$8, notes=$9, issued_at=$10, voided_at=$11,
			updated_at=now()
		WHERE id = $1`,
		inv.ID, inv.Status, inv.SubtotalCents, inv.DiscountTotalCents,
		inv.TaxTotalCents, inv.GrandTotalCents, inv.AmountPaidCents,
		inv.BalanceDueCents, inv.Notes, inv.IssuedAt, inv.VoidedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Invoice, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	n := 0

	if filter.ClientID != uuid.Nil {
		n++
		where = append(where, "client_id = $"+strconv.Itoa(n))
		args = append(args, filter.ClientID)
	}
	if filter.VisitID != uuid.Nil {
		n++
		where = append(where, "visit_id = $"+strconv.Itoa(n))
		args = append(args, filter.VisitID)
	}
	if filter.Status != "" {
		n++
		where = append(where, "status = $"+strconv.Itoa(n))
		args = append(args, filter.Status)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE `+cond+
			` ORDER BY created_at DESC LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var invoices []*Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(
			&inv.ID, &inv.Number, &inv.ClientID, &inv.VisitID, &inv.Status, &inv.TaxRate,
			&inv.SubtotalCents, &inv.DiscountTotalCents, &inv.TaxTotalCents,
			&inv.GrandTotalCents, &inv.AmountPaidCents, &inv.BalanceDueCents,
			&inv.Notes, &inv.IssuedAt, &inv.VoidedAt, &inv.CreatedAt, &inv.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, &inv)
	}
	return invoices, total, rows.Err()
}

func (r *repoPG) listItems(ctx context.Context, invoiceID uuid.UUID) ([]*Item, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, invoice_id, product_id, description, quantity,
			unit_price_cents, discount_percent, taxable, created_at
		FROM invoice_items WHERE invoice_id = $1
		ORDER BY created_at`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.ProductID,
			&item.Description, &item.Quantity, &item.UnitPriceCents,
			&item.DiscountPercent, &item.Taxable, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

func (r *repoPG) listPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, invoice_id, method, amount_cents, note, voided, voided_at,
			received_at, created_at
		FROM invoice_payments WHERE invoice_id = $1
		ORDER BY created_at`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Method, &p.AmountCents,
			&p.Note, &p.Voided, &p.VoidedAt, &p.ReceivedAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}

func (r *repoPG) AddItem(ctx context.Context, item *Item) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO invoice_items (
			id, invoice_id, product_id, description, quantity,
			unit_price_cents, discount_percent, taxable
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		item.ID, item.InvoiceID, item.ProductID, item.Description, item.Quantity,
		item.UnitPriceCents, item.DiscountPercent, item.Taxable,
	)
	return err
}

func (r *repoPG) UpdateItem(ctx context.Context, item *Item) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE invoice_items SET
			product_id=$2, description=$3, quantity=$4,
			unit_price_cents=$5, discount_percent=$6, taxable=$7
		WHERE id = $1`,
		item.ID, item.ProductID, item.Description, item.Quantity,
		item.UnitPriceCents, item.DiscountPercent, item.Taxable,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *repoPG) RemoveItem(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM invoice_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *repoPG) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	var item Item
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, invoice_id, product_id, description, quantity,
			unit_price_cents, discount_percent, taxable, created_at
		FROM invoice_items WHERE id = $1`, id).Scan(
		&item.ID, &item.InvoiceID, &item.ProductID, &item.Description,
		&item.Quantity, &item.UnitPriceCents, &item.DiscountPercent,
		&item.Taxable, &item.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *repoPG) AddPayment(ctx context.Context, p *Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO invoice_payments (id, invoice_id, method, amount_cents, note, voided, received_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.InvoiceID, p.Method, p.AmountCents, p.Note, p.Voided, p.ReceivedAt,
	)
	return err
}

func (r *repoPG) UpdatePayment(ctx context.Context, p *Payment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE invoice_payments SET voided=$2, voided_at=$3, note=$4
		WHERE id = $1`,
		p.ID, p.Voided, p.VoidedAt, p.Note,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *repoPG) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	var p Payment
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, invoice_id, method, amount_cents, note, voided, voided_at,
			received_at, created_at
		FROM invoice_payments WHERE id = $1`, id).Scan(
		&p.ID, &p.InvoiceID, &p.Method, &p.AmountCents, &p.Note,
		&p.Voided, &p.VoidedAt, &p.ReceivedAt, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}
