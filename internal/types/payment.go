package types

import (
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/samber/lo"
)

type PaymentStatus string

const (
	PaymentStatusRequiresAction PaymentStatus = "requires_action"
	PaymentStatusSucceeded      PaymentStatus = "succeeded"
	PaymentStatusFailed         PaymentStatus = "failed"
	PaymentStatusCanceled       PaymentStatus = "canceled"
	// PaymentStatusUnknown is only reported by providers and is never persisted
	PaymentStatusUnknown PaymentStatus = "unknown"
)

func (s PaymentStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is allowed
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSucceeded || s == PaymentStatusFailed || s == PaymentStatusCanceled
}

func (s PaymentStatus) Validate() error {
	allowed := []PaymentStatus{
		PaymentStatusRequiresAction,
		PaymentStatusSucceeded,
		PaymentStatusFailed,
		PaymentStatusCanceled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid payment status").
			WithHint("Please provide a valid payment status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusSucceeded RefundStatus = "succeeded"
	RefundStatusFailed    RefundStatus = "failed"
)

// PaymentProvider names a registered payment provider
type PaymentProvider string

const (
	PaymentProviderDummy  PaymentProvider = "dummy"
	PaymentProviderStripe PaymentProvider = "stripe"
)

func (p PaymentProvider) String() string {
	return string(p)
}

func (p PaymentProvider) Validate() error {
	allowed := []PaymentProvider{PaymentProviderDummy, PaymentProviderStripe}
	if !lo.Contains(allowed, p) {
		return ierr.NewError("invalid payment provider").
			WithHint("Please provide a supported payment provider").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// WebhookEventType is the normalized event type produced by providers
type WebhookEventType string

const (
	WebhookEventPaymentSucceeded WebhookEventType = "payment_intent.succeeded"
	WebhookEventPaymentFailed    WebhookEventType = "payment_intent.payment_failed"
)

// Metadata keys written on provider objects
const (
	MetadataKeyInvoiceID      = "invoice_id"
	MetadataKeyInvoiceNumber  = "invoice_number"
	MetadataKeyCustomerID     = "customer_id"
	MetadataKeySubscriptionID = "subscription_id"
)
