package types

const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"

	// HeaderStripeSignature carries the Stripe webhook signature
	HeaderStripeSignature = "Stripe-Signature"
	// HeaderWebhookSignature carries the hex HMAC of the body for providers
	// that sign with a shared secret
	HeaderWebhookSignature = "X-Webhook-Signature"
)

// WebhookSignatureHeader returns the header a provider signs its deliveries in
func WebhookSignatureHeader(provider PaymentProvider) string {
	if provider == PaymentProviderStripe {
		return HeaderStripeSignature
	}
	return HeaderWebhookSignature
}
