package stripe

import (
	"context"
	"testing"
	"time"

	"github.com/saasinvoice/billing/internal/config"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/logger"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testSecret = "whsec_test_secret"

func newTestProvider() *Provider {
	cfg := config.GetDefaultConfig()
	cfg.Payments.Stripe.SecretKey = "sk_test_123"
	cfg.Payments.Stripe.WebhookSecret = testSecret
	return NewProvider(cfg, logger.NewNoopLogger())
}

func signed(t *testing.T, payload string) ([]byte, string) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return sp.Payload, sp.Header
}

func TestParseWebhookSucceeded(t *testing.T) {
	p := newTestProvider()
	payload, header := signed(t, `{
		"id": "evt_123",
		"object": "event",
		"type": "payment_intent.succeeded",
		"created": 1735689600,
		"data": {"object": {
			"id": "pi_123",
			"object": "payment_intent",
			"status": "succeeded",
			"amount": 2566,
			"currency": "usd",
			"metadata": {"invoice_id": "inv_1"}
		}}
	}`)

	event, err := p.ParseWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.True(t, event.Verified)
	assert.Equal(t, "evt_123", event.ID)
	assert.Equal(t, types.WebhookEventPaymentSucceeded, event.Type)
	assert.Equal(t, "pi_123", event.Object.ID)
	assert.Equal(t, types.PaymentStatusSucceeded, event.Object.Status)
	assert.Equal(t, int64(2566), event.Object.Amount)
	assert.Equal(t, "USD", event.Object.Currency)
	assert.Equal(t, "inv_1", event.InvoiceID())
}

func TestParseWebhookFailedCarriesReason(t *testing.T) {
	p := newTestProvider()
	payload, header := signed(t, `{
		"id": "evt_456",
		"object": "event",
		"type": "payment_intent.payment_failed",
		"created": 1735689600,
		"data": {"object": {
			"id": "pi_456",
			"object": "payment_intent",
			"status": "requires_payment_method",
			"amount": 1000,
			"currency": "usd",
			"last_payment_error": {"message": "Your card was declined."}
		}}
	}`)

	event, err := p.ParseWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, types.WebhookEventPaymentFailed, event.Type)
	require.NotNil(t, event.Object.FailureReason)
	assert.Equal(t, "Your card was declined.", *event.Object.FailureReason)
}

func TestParseWebhookUnknownTypeIsAcknowledged(t *testing.T) {
	p := newTestProvider()
	payload, header := signed(t, `{"id":"evt_789","object":"event","type":"customer.created","created":1735689600,"data":{"object":{"id":"cus_1"}}}`)

	event, err := p.ParseWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, types.WebhookEventType("customer.created"), event.Type)
	assert.Empty(t, event.Object.ID)
}

func TestParseWebhookBadSignature(t *testing.T) {
	p := newTestProvider()
	payload, _ := signed(t, `{"id":"evt_1","object":"event","type":"payment_intent.succeeded"}`)

	_, err := p.ParseWebhook(context.Background(), payload, "t=1,v1=deadbeef")
	assert.True(t, ierr.IsSignature(err))

	_, err = p.ParseWebhook(context.Background(), payload, "")
	assert.True(t, ierr.IsSignature(err))
}

func TestMapIntentStatus(t *testing.T) {
	tests := []struct {
		in   stripe.PaymentIntentStatus
		want types.PaymentStatus
	}{
		{stripe.PaymentIntentStatusSucceeded, types.PaymentStatusSucceeded},
		{stripe.PaymentIntentStatusCanceled, types.PaymentStatusCanceled},
		{stripe.PaymentIntentStatusRequiresAction, types.PaymentStatusRequiresAction},
		{stripe.PaymentIntentStatusProcessing, types.PaymentStatusRequiresAction},
		{stripe.PaymentIntentStatus("something_new"), types.PaymentStatusUnknown},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, mapIntentStatus(tt.in))
		})
	}
}
