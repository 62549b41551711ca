package postgres

import (
	"context"

	"github.com/lib/pq"
	"github.com/saasinvoice/billing/internal/domain/invoice"
	"github.com/saasinvoice/billing/internal/logger"
	"github.com/saasinvoice/billing/internal/postgres"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/samber/lo"
)

type invoiceRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return &invoiceRepository{db: db, logger: logger}
}

const invoiceColumns = `id, customer_id, subscription_id, number, currency, status,
	subtotal, tax, discount, total, notes, period_start, period_end,
	issued_at, due_date, finalized_at, paid_at, voided_at, created_at, updated_at`

const invoiceItemColumns = `id, invoice_id, description, quantity, unit_amount, position, created_at`

func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES (
			:id, :customer_id, :subscription_id, :number, :currency, :status,
			:subtotal, :tax, :discount, :total, :notes, :period_start, :period_end,
			:issued_at, :due_date, :finalized_at, :paid_at, :voided_at, :created_at, :updated_at
		)`

	r.logger.Debugw("creating invoice",
		"invoice_id", inv.ID,
		"number", inv.Number,
		"items", len(inv.Items),
	)

	return r.db.WithTx(ctx, func(ctx context.Context) error {
		if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, inv); err != nil {
			return postgres.TranslateError(err, "invoice", map[string]any{"invoice_id": inv.ID})
		}
		for _, item := range inv.Items {
			if err := r.AddItem(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.get(ctx, id, false)
}

func (r *invoiceRepository) GetForUpdate(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.get(ctx, id, true)
}

func (r *invoiceRepository) get(ctx context.Context, id string, lock bool) (*invoice.Invoice, error) {
	q := r.db.GetQuerier(ctx)

	var inv invoice.Invoice
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	if err := q.GetContext(ctx, &inv, query, id); err != nil {
		return nil, postgres.TranslateError(err, "invoice", map[string]any{"invoice_id": id})
	}

	items := make([]*invoice.InvoiceItem, 0)
	itemsQuery := `SELECT ` + invoiceItemColumns + ` FROM invoice_items WHERE invoice_id = $1 ORDER BY position ASC`
	if err := q.SelectContext(ctx, &items, itemsQuery, id); err != nil {
		return nil, postgres.TranslateError(err, "invoice item", map[string]any{"invoice_id": id})
	}
	inv.Items = items
	return &inv, nil
}

// List returns invoices without their items
func (r *invoiceRepository) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	if filter == nil {
		filter = types.NewInvoiceFilter()
	}

	var qb queryBuilder
	if filter.CustomerID != "" {
		qb.where("customer_id = $%d", filter.CustomerID)
	}
	if filter.SubscriptionID != "" {
		qb.where("subscription_id = $%d", filter.SubscriptionID)
	}
	if len(filter.Statuses) > 0 {
		qb.where("status = ANY($%d)", pq.Array(lo.Map(filter.Statuses, func(s types.InvoiceStatus, _ int) string {
			return string(s)
		})))
	}
	query, args := qb.build(`SELECT `+invoiceColumns+` FROM invoices`, filter.QueryFilter)

	invoices := make([]*invoice.Invoice, 0)
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, postgres.TranslateError(err, "invoice", nil)
	}
	return invoices, nil
}

func (r *invoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		UPDATE invoices SET
			subtotal = :subtotal,
			tax = :tax,
			discount = :discount,
			total = :total,
			notes = :notes,
			updated_at = :updated_at
		WHERE id = :id AND status = 'draft'`

	res, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, inv)
	if err != nil {
		return postgres.TranslateError(err, "invoice", map[string]any{"invoice_id": inv.ID})
	}
	return conflictOrMissing(ctx, r.db, res, "invoices", "invoice", inv.ID)
}

func (r *invoiceRepository) UpdateStatus(ctx context.Context, inv *invoice.Invoice, from types.InvoiceStatus) error {
	query := `
		UPDATE invoices SET
			status = $2,
			subtotal = $3,
			tax = $4,
			discount = $5,
			total = $6,
			issued_at = $7,
			due_date = $8,
			finalized_at = $9,
			paid_at = $10,
			voided_at = $11,
			updated_at = $12
		WHERE id = $1 AND status = $13`

	res, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		inv.ID,
		inv.Status,
		inv.Subtotal,
		inv.Tax,
		inv.Discount,
		inv.Total,
		inv.IssuedAt,
		inv.DueDate,
		inv.FinalizedAt,
		inv.PaidAt,
		inv.VoidedAt,
		inv.UpdatedAt,
		from,
	)
	if err != nil {
		return postgres.TranslateError(err, "invoice", map[string]any{"invoice_id": inv.ID})
	}
	return conflictOrMissing(ctx, r.db, res, "invoices", "invoice", inv.ID)
}

// Delete removes a draft invoice, items go with it through ON DELETE CASCADE
func (r *invoiceRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.GetQuerier(ctx).ExecContext(ctx, `DELETE FROM invoices WHERE id = $1 AND status = 'draft'`, id)
	if err != nil {
		return postgres.TranslateError(err, "invoice", map[string]any{"invoice_id": id})
	}
	return conflictOrMissing(ctx, r.db, res, "invoices", "invoice", id)
}

func (r *invoiceRepository) AddItem(ctx context.Context, item *invoice.InvoiceItem) error {
	query := `
		INSERT INTO invoice_items (` + invoiceItemColumns + `)
		VALUES (:id, :invoice_id, :description, :quantity, :unit_amount, :position, :created_at)`

	_, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, item)
	return postgres.TranslateError(err, "invoice item", map[string]any{"item_id": item.ID})
}

func (r *invoiceRepository) RemoveItem(ctx context.Context, invoiceID, itemID string) error {
	res, err := r.db.GetQuerier(ctx).ExecContext(ctx,
		`DELETE FROM invoice_items WHERE id = $1 AND invoice_id = $2`, itemID, invoiceID)
	if err != nil {
		return postgres.TranslateError(err, "invoice item", map[string]any{"item_id": itemID})
	}
	return requireRow(res, "invoice item", itemID)
}

// NextSequence upserts the counter row and returns the incremented value in
// one statement, so concurrent callers never observe the same number.
func (r *invoiceRepository) NextSequence(ctx context.Context, key string) (int64, error) {
	query := `
		INSERT INTO invoice_sequences (sequence_key, last_value, updated_at)
		VALUES ($1, 1, NOW())
		ON CONFLICT (sequence_key)
		DO UPDATE SET last_value = invoice_sequences.last_value + 1, updated_at = NOW()
		RETURNING last_value`

	var next int64
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &next, query, key); err != nil {
		return 0, postgres.TranslateError(err, "invoice sequence", map[string]any{"sequence_key": key})
	}
	return next, nil
}
