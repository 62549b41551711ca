package postgres

import (
	"context"

	"github.com/lib/pq"
	"github.com/saasinvoice/billing/internal/domain/payment"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/logger"
	"github.com/saasinvoice/billing/internal/postgres"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/samber/lo"
)

type paymentRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewPaymentRepository(db *postgres.DB, logger *logger.Logger) payment.Repository {
	return &paymentRepository{db: db, logger: logger}
}

const paymentColumns = `id, invoice_id, provider, provider_ref, amount, currency, status,
	failure_reason, idempotency_key, processed_at, created_at, updated_at`

const refundColumns = `id, payment_id, provider, provider_ref, amount, currency, status, created_at`

// Create relies on the partial unique index payments_one_succeeded_per_invoice
// to reject a second succeeded payment for the same invoice. Conflicts are
// skipped rather than raised so the surrounding transaction stays usable.
func (r *paymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (
			:id, :invoice_id, :provider, :provider_ref, :amount, :currency, :status,
			:failure_reason, :idempotency_key, :processed_at, :created_at, :updated_at
		)
		ON CONFLICT DO NOTHING`

	r.logger.Debugw("creating payment",
		"payment_id", p.ID,
		"invoice_id", p.InvoiceID,
		"provider", p.Provider,
		"status", p.Status,
	)

	details := map[string]any{
		"invoice_id":   p.InvoiceID,
		"provider_ref": p.ProviderRef,
	}
	res, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, p)
	if err != nil {
		return postgres.TranslateError(err, "payment", details)
	}
	inserted, err := rowsChanged(res)
	if err != nil {
		return err
	}
	if !inserted {
		return ierr.NewError("payment already exists").
			WithHint("A payment with this reference or a successful payment for this invoice already exists").
			WithReportableDetails(details).
			Mark(ierr.ErrAlreadyExists)
	}
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id string) (*payment.Payment, error) {
	return r.get(ctx, id, false)
}

func (r *paymentRepository) GetForUpdate(ctx context.Context, id string) (*payment.Payment, error) {
	return r.get(ctx, id, true)
}

func (r *paymentRepository) get(ctx context.Context, id string, lock bool) (*payment.Payment, error) {
	var p payment.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &p, query, id); err != nil {
		return nil, postgres.TranslateError(err, "payment", map[string]any{"payment_id": id})
	}
	return &p, nil
}

func (r *paymentRepository) GetByProviderRef(ctx context.Context, provider types.PaymentProvider, ref string) (*payment.Payment, error) {
	var p payment.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE provider = $1 AND provider_ref = $2`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &p, query, provider, ref); err != nil {
		return nil, postgres.TranslateError(err, "payment", map[string]any{
			"provider":     provider,
			"provider_ref": ref,
		})
	}
	return &p, nil
}

func (r *paymentRepository) ListByInvoice(ctx context.Context, invoiceID string) ([]*payment.Payment, error) {
	payments := make([]*payment.Payment, 0)
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE invoice_id = $1 ORDER BY created_at ASC`
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &payments, query, invoiceID); err != nil {
		return nil, postgres.TranslateError(err, "payment", map[string]any{"invoice_id": invoiceID})
	}
	return payments, nil
}

func (r *paymentRepository) UpdateStatus(ctx context.Context, p *payment.Payment, from ...types.PaymentStatus) (bool, error) {
	query := `
		UPDATE payments SET
			status = $2,
			failure_reason = $3,
			processed_at = $4,
			updated_at = $5
		WHERE id = $1 AND status = ANY($6)`

	res, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		p.ID,
		p.Status,
		p.FailureReason,
		p.ProcessedAt,
		p.UpdatedAt,
		pq.Array(lo.Map(from, func(s types.PaymentStatus, _ int) string { return string(s) })),
	)
	if err != nil {
		return false, postgres.TranslateError(err, "payment", map[string]any{"payment_id": p.ID})
	}
	return rowsChanged(res)
}

func (r *paymentRepository) CreateRefund(ctx context.Context, refund *payment.Refund) error {
	query := `
		INSERT INTO refunds (` + refundColumns + `)
		VALUES (:id, :payment_id, :provider, :provider_ref, :amount, :currency, :status, :created_at)`

	_, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, refund)
	return postgres.TranslateError(err, "refund", map[string]any{"payment_id": refund.PaymentID})
}

func (r *paymentRepository) ListRefunds(ctx context.Context, paymentID string) ([]*payment.Refund, error) {
	refunds := make([]*payment.Refund, 0)
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE payment_id = $1 ORDER BY created_at ASC`
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &refunds, query, paymentID); err != nil {
		return nil, postgres.TranslateError(err, "refund", map[string]any{"payment_id": paymentID})
	}
	return refunds, nil
}
