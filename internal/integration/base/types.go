package base

import (
	"context"
	"time"

	"github.com/saasinvoice/billing/internal/domain/invoice"
	"github.com/saasinvoice/billing/internal/domain/payment"
	"github.com/saasinvoice/billing/internal/domain/plan"
	"github.com/saasinvoice/billing/internal/domain/subscription"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/types"
)

// Provider is implemented by every payment provider adapter
type Provider interface {
	Name() types.PaymentProvider

	// CreateCheckout opens a hosted payment page for the payable
	CreateCheckout(ctx context.Context, payable *Payable) (*CheckoutSession, error)

	// CapturePayment charges the invoice total. A provider timeout yields
	// ErrProviderOutcomeUnknown, never a failed result.
	CapturePayment(ctx context.Context, inv *invoice.Invoice, opts CaptureOptions) (*PaymentResult, error)

	// Refund returns amount, or the full payment amount when nil
	Refund(ctx context.Context, p *payment.Payment, amount *int64, opts RefundOptions) (*RefundResult, error)

	// ParseWebhook verifies and normalizes an inbound event
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*Event, error)

	// GetPaymentStatus reports PaymentStatusUnknown when ref cannot be resolved
	GetPaymentStatus(ctx context.Context, ref string) (types.PaymentStatus, error)
}

type PayableKind string

const (
	PayableKindInvoice      PayableKind = "invoice"
	PayableKindSubscription PayableKind = "subscription"
)

// Payable is anything a checkout can be opened for
type Payable struct {
	Kind        PayableKind
	ID          string
	CustomerID  string
	Description string
	Amount      int64
	Currency    string
	Metadata    map[string]string
}

// PayableFromInvoice charges the invoice total
func PayableFromInvoice(inv *invoice.Invoice) *Payable {
	metadata := map[string]string{
		types.MetadataKeyInvoiceID:     inv.ID,
		types.MetadataKeyInvoiceNumber: inv.Number,
		types.MetadataKeyCustomerID:    inv.CustomerID,
	}
	if inv.SubscriptionID != nil {
		metadata[types.MetadataKeySubscriptionID] = *inv.SubscriptionID
	}
	return &Payable{
		Kind:        PayableKindInvoice,
		ID:          inv.ID,
		CustomerID:  inv.CustomerID,
		Description: "Invoice " + inv.Number,
		Amount:      inv.Total,
		Currency:    inv.Currency,
		Metadata:    metadata,
	}
}

// PayableFromSubscription charges the plan price
func PayableFromSubscription(sub *subscription.Subscription, p *plan.Plan) *Payable {
	return &Payable{
		Kind:        PayableKindSubscription,
		ID:          sub.ID,
		CustomerID:  sub.CustomerID,
		Description: p.ProductName + " " + p.Name,
		Amount:      p.Price,
		Currency:    p.Currency,
		Metadata: map[string]string{
			types.MetadataKeySubscriptionID: sub.ID,
			types.MetadataKeyCustomerID:     sub.CustomerID,
		},
	}
}

func (p *Payable) Validate() error {
	if p.Amount <= 0 {
		return ierr.NewError("payable amount must be positive").
			WithHint("Nothing to pay").
			WithReportableDetails(map[string]any{
				"kind":   p.Kind,
				"id":     p.ID,
				"amount": p.Amount,
			}).
			Mark(ierr.ErrValidation)
	}
	if _, err := types.NormalizeCurrency(p.Currency); err != nil {
		return err
	}
	return nil
}

type CheckoutSession struct {
	ID         string    `json:"id"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	Status     string    `json:"status"`
	PaymentURL string    `json:"payment_url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type CaptureOptions struct {
	IdempotencyKey string
}

type RefundOptions struct {
	IdempotencyKey string
}

type PaymentResult struct {
	ProviderRef   string
	Status        types.PaymentStatus
	Amount        int64
	Currency      string
	ProcessedAt   time.Time
	FailureReason *string
}

type RefundResult struct {
	ProviderRef string
	Amount      int64
	Currency    string
	Status      types.RefundStatus
}

// Event is a provider webhook normalized to the fields reconciliation needs
type Event struct {
	ID      string
	Type    types.WebhookEventType
	Created time.Time
	// Verified is false only when the provider was configured without a
	// signing secret
	Verified bool
	Object   EventObject
}

type EventObject struct {
	ID            string
	Status        types.PaymentStatus
	Amount        int64
	Currency      string
	FailureReason *string
	Metadata      map[string]string
}

// InvoiceID returns the invoice id carried in the event metadata
func (e *Event) InvoiceID() string {
	return e.Object.Metadata[types.MetadataKeyInvoiceID]
}

// ResolveRefundAmount defaults to the full payment and rejects amounts that
// are not positive or exceed the payment
func ResolveRefundAmount(p *payment.Payment, amount *int64) (int64, error) {
	if amount == nil {
		return p.Amount, nil
	}
	if *amount <= 0 || *amount > p.Amount {
		return 0, ierr.NewError("invalid refund amount").
			WithHintf("Refund amount must be between 1 and %d", p.Amount).
			WithReportableDetails(map[string]any{
				"payment_id": p.ID,
				"amount":     *amount,
				"paid":       p.Amount,
			}).
			Mark(ierr.ErrValidation)
	}
	return *amount, nil
}

// OutcomeUnknown wraps a provider timeout. The charge may or may not have
// happened; reconciliation settles it later.
func OutcomeUnknown(err error, provider types.PaymentProvider, invoiceID string) error {
	return ierr.WithError(err).
		WithHint("The payment provider did not answer in time, the payment status will be updated shortly").
		WithReportableDetails(map[string]any{
			"provider":   provider,
			"invoice_id": invoiceID,
		}).
		Mark(ierr.ErrProviderOutcomeUnknown)
}
