package payment

import (
	"context"

	"github.com/saasinvoice/billing/internal/types"
)

// Repository defines the interface for payment persistence
type Repository interface {
	// Create stores a payment. Only one succeeded payment may exist per
	// invoice; a second one fails with ErrAlreadyExists.
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	// GetForUpdate reads a payment and locks its row until the surrounding
	// transaction ends. Call it inside DB.WithTx.
	GetForUpdate(ctx context.Context, id string) (*Payment, error)
	GetByProviderRef(ctx context.Context, provider types.PaymentProvider, ref string) (*Payment, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]*Payment, error)

	// UpdateStatus writes status, failure reason and processed_at only if the
	// stored status is one of from. It reports whether a row changed.
	UpdateStatus(ctx context.Context, p *Payment, from ...types.PaymentStatus) (bool, error)

	CreateRefund(ctx context.Context, r *Refund) error
	ListRefunds(ctx context.Context, paymentID string) ([]*Refund, error)
}
