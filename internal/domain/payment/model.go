package payment

import (
	"time"

	"github.com/saasinvoice/billing/internal/types"
)

// Payment records one capture attempt against an invoice
type Payment struct {
	ID        string `db:"id" json:"id"`
	InvoiceID string `db:"invoice_id" json:"invoice_id"`

	Provider types.PaymentProvider `db:"provider" json:"provider"`
	// ProviderRef is the provider's id for the payment, unique per provider
	ProviderRef string `db:"provider_ref" json:"provider_ref"`

	Amount   int64  `db:"amount" json:"amount"`
	Currency string `db:"currency" json:"currency"`

	Status        types.PaymentStatus `db:"status" json:"status"`
	FailureReason *string             `db:"failure_reason" json:"failure_reason,omitempty"`

	IdempotencyKey string     `db:"idempotency_key" json:"idempotency_key"`
	ProcessedAt    *time.Time `db:"processed_at" json:"processed_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (p *Payment) IsSucceeded() bool {
	return p.Status == types.PaymentStatusSucceeded
}

// Refund is money returned against a succeeded payment
type Refund struct {
	ID          string                `db:"id" json:"id"`
	PaymentID   string                `db:"payment_id" json:"payment_id"`
	Provider    types.PaymentProvider `db:"provider" json:"provider"`
	ProviderRef string                `db:"provider_ref" json:"provider_ref"`
	Amount      int64                 `db:"amount" json:"amount"`
	Currency    string                `db:"currency" json:"currency"`
	Status      types.RefundStatus    `db:"status" json:"status"`
	CreatedAt   time.Time             `db:"created_at" json:"created_at"`
}
