package dto

import (
	"github.com/saasinvoice/billing/internal/domain/payment"
	"github.com/saasinvoice/billing/internal/integration/base"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/saasinvoice/billing/internal/validator"
)

// PayInvoiceRequest captures an open invoice. Provider defaults to the
// configured one.
type PayInvoiceRequest struct {
	Provider types.PaymentProvider `json:"provider,omitempty"`
}

func (r *PayInvoiceRequest) Validate() error {
	if r.Provider == "" {
		return nil
	}
	return r.Provider.Validate()
}

type PaymentResponse struct {
	*payment.Payment
}

type PayInvoiceResponse struct {
	Payment *PaymentResponse `json:"payment"`
	Invoice *InvoiceResponse `json:"invoice"`
}

type CheckoutRequest struct {
	Provider types.PaymentProvider `json:"provider,omitempty"`
}

func (r *CheckoutRequest) Validate() error {
	if r.Provider == "" {
		return nil
	}
	return r.Provider.Validate()
}

type CheckoutResponse struct {
	*base.CheckoutSession
	Provider types.PaymentProvider `json:"provider"`
}

// RefundRequest refunds Amount, or the whole remaining payment when unset
type RefundRequest struct {
	Amount *int64 `json:"amount,omitempty" validate:"omitempty,gt=0"`
}

func (r *RefundRequest) Validate() error {
	return validator.ValidateRequest(r)
}

type RefundResponse struct {
	*payment.Refund
	// Remaining is what can still be refunded on the payment
	Remaining int64 `json:"remaining"`
}

// PaymentStatusResponse compares the stored status with the provider's view.
// ProviderStatus is unknown when the provider cannot resolve the payment.
type PaymentStatusResponse struct {
	PaymentID      string                `json:"payment_id"`
	Provider       types.PaymentProvider `json:"provider"`
	ProviderRef    string                `json:"provider_ref"`
	Status         types.PaymentStatus   `json:"status"`
	ProviderStatus types.PaymentStatus   `json:"provider_status"`
}

// WebhookResponse acknowledges a provider event
type WebhookResponse struct {
	Received bool   `json:"received"`
	EventID  string `json:"event_id,omitempty"`
	Outcome  string `json:"outcome"`
}
