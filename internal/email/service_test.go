package email

import (
	"context"
	"testing"

	"github.com/saasinvoice/billing/internal/config"
	"github.com/saasinvoice/billing/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPaymentConfirmation(t *testing.T) {
	msg, err := BuildPaymentConfirmation(&PaymentConfirmation{
		To:            "jane@example.com",
		CustomerName:  "Jane",
		InvoiceNumber: "INV-2025-000001",
		Amount:        "$25.66",
		PaidAt:        "2025-01-01",
	})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", msg.To)
	assert.Equal(t, "Payment received for invoice INV-2025-000001", msg.Subject)
	assert.Contains(t, msg.HTML, "<strong>$25.66</strong>")
	assert.Contains(t, msg.Text, "Hi Jane,")
	assert.NotContains(t, msg.Text, "{{")
}

func TestDisabledClientSkips(t *testing.T) {
	svc := NewService(NewClient(config.GetDefaultConfig()), logger.NewNoopLogger())
	assert.NoError(t, svc.SendPaymentConfirmation(context.Background(), &PaymentConfirmation{InvoiceNumber: "INV-1"}))
}

func TestExtractNameFromEmail(t *testing.T) {
	assert.Equal(t, "john.doe", ExtractNameFromEmail("john.doe@example.com"))
	assert.Equal(t, "there", ExtractNameFromEmail("@example.com"))
}
