package dummy

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/saasinvoice/billing/internal/config"
	"github.com/saasinvoice/billing/internal/domain/invoice"
	"github.com/saasinvoice/billing/internal/domain/payment"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/integration/base"
	"github.com/saasinvoice/billing/internal/logger"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/suite"
)

type ProviderSuite struct {
	suite.Suite
	ctx      context.Context
	cfg      *config.Configuration
	provider *Provider
	invoice  *invoice.Invoice
}

func TestProviderSuite(t *testing.T) {
	suite.Run(t, new(ProviderSuite))
}

func (s *ProviderSuite) SetupTest() {
	s.ctx = context.Background()
	s.cfg = config.GetDefaultConfig()
	s.provider = NewProvider(s.cfg, NewMemoryStore(), logger.NewNoopLogger())
	s.invoice = &invoice.Invoice{
		ID:         "inv_1",
		CustomerID: "cust_1",
		Number:     "INV-2025-000001",
		Currency:   "USD",
		Status:     types.InvoiceStatusOpen,
		Total:      1000,
	}
}

func (s *ProviderSuite) TestCreateCheckout() {
	session, err := s.provider.CreateCheckout(s.ctx, base.PayableFromInvoice(s.invoice))
	s.Require().NoError(err)
	s.True(strings.HasPrefix(session.ID, "dummy_checkout_"))
	s.Equal(int64(1000), session.Amount)
	s.Equal("USD", session.Currency)
	s.Equal("open", session.Status)
	s.Equal("https://dummy-payment.com/checkout/"+session.ID, session.PaymentURL)
	s.WithinDuration(time.Now().Add(24*time.Hour), session.ExpiresAt, time.Minute)
}

func (s *ProviderSuite) TestCreateCheckoutRejectsZeroAmount() {
	s.invoice.Total = 0
	_, err := s.provider.CreateCheckout(s.ctx, base.PayableFromInvoice(s.invoice))
	s.True(ierr.IsValidation(err))
}

func (s *ProviderSuite) TestCaptureAndStatus() {
	result, err := s.provider.CapturePayment(s.ctx, s.invoice, base.CaptureOptions{IdempotencyKey: "key-1"})
	s.Require().NoError(err)
	s.True(strings.HasPrefix(result.ProviderRef, "dummy_payment_"))
	s.Equal(types.PaymentStatusSucceeded, result.Status)
	s.Equal(int64(1000), result.Amount)

	status, err := s.provider.GetPaymentStatus(s.ctx, result.ProviderRef)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusSucceeded, status)

	replay, err := s.provider.CapturePayment(s.ctx, s.invoice, base.CaptureOptions{IdempotencyKey: "key-1"})
	s.Require().NoError(err)
	s.Equal(result.ProviderRef, replay.ProviderRef)
}

func (s *ProviderSuite) TestConcurrentCapturesShareKey() {
	refs := make([]string, 8)
	var wg conc.WaitGroup
	for i := range refs {
		wg.Go(func() {
			result, err := s.provider.CapturePayment(s.ctx, s.invoice, base.CaptureOptions{IdempotencyKey: "key-1"})
			if s.NoError(err) {
				refs[i] = result.ProviderRef
			}
		})
	}
	wg.Wait()

	s.Len(lo.Uniq(refs), 1)
}

func (s *ProviderSuite) TestUnknownRefReportsUnknown() {
	status, err := s.provider.GetPaymentStatus(s.ctx, "dummy_payment_missing")
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusUnknown, status)
}

func (s *ProviderSuite) TestCanceledContextIsUnknownOutcome() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := s.provider.CapturePayment(ctx, s.invoice, base.CaptureOptions{})
	s.True(ierr.IsOutcomeUnknown(err))
}

func (s *ProviderSuite) TestSimulateFailure() {
	result, err := s.provider.CapturePayment(s.ctx, s.invoice, base.CaptureOptions{})
	s.Require().NoError(err)
	s.True(s.provider.SimulateFailure(s.ctx, result.ProviderRef, "card declined"))

	status, err := s.provider.GetPaymentStatus(s.ctx, result.ProviderRef)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusFailed, status)
}

func (s *ProviderSuite) TestRefund() {
	result, err := s.provider.CapturePayment(s.ctx, s.invoice, base.CaptureOptions{})
	s.Require().NoError(err)
	p := &payment.Payment{ID: "pay_1", ProviderRef: result.ProviderRef, Amount: 1000, Currency: "USD"}

	refund, err := s.provider.Refund(s.ctx, p, lo.ToPtr(int64(400)), base.RefundOptions{})
	s.Require().NoError(err)
	s.Equal(int64(400), refund.Amount)
	s.Equal(types.RefundStatusSucceeded, refund.Status)

	_, err = s.provider.Refund(s.ctx, p, lo.ToPtr(int64(700)), base.RefundOptions{})
	s.True(ierr.IsValidation(err))

	full, err := s.provider.Refund(s.ctx, &payment.Payment{ID: "pay_2", ProviderRef: "elsewhere", Amount: 250, Currency: "USD"}, nil, base.RefundOptions{})
	s.Require().NoError(err)
	s.Equal(int64(250), full.Amount)

	_, err = s.provider.Refund(s.ctx, p, lo.ToPtr(int64(1001)), base.RefundOptions{})
	s.True(ierr.IsValidation(err))
	_, err = s.provider.Refund(s.ctx, p, lo.ToPtr(int64(0)), base.RefundOptions{})
	s.True(ierr.IsValidation(err))
}

func eventPayload(eventType, ref string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_1","type":%q,"created":1735689600,"data":{"object":{"id":%q,"status":"succeeded","amount":1000,"currency":"usd","metadata":{"invoice_id":"inv_1"}}}}`, eventType, ref))
}

func (s *ProviderSuite) TestParseWebhookWithoutSecretIsUnverified() {
	event, err := s.provider.ParseWebhook(s.ctx, eventPayload("payment_intent.succeeded", "dummy_payment_a"), "")
	s.Require().NoError(err)
	s.False(event.Verified)
	s.Equal(types.WebhookEventPaymentSucceeded, event.Type)
	s.Equal("dummy_payment_a", event.Object.ID)
	s.Equal("USD", event.Object.Currency)
	s.Equal("inv_1", event.InvoiceID())
	s.Equal(time.Unix(1735689600, 0).UTC(), event.Created)
}

func (s *ProviderSuite) TestParseWebhookSignature() {
	s.cfg.Payments.Dummy.WebhookSecret = "whsec_test"
	provider := NewProvider(s.cfg, NewMemoryStore(), logger.NewNoopLogger())
	payload := eventPayload("payment_intent.succeeded", "dummy_payment_a")

	event, err := provider.ParseWebhook(s.ctx, payload, Sign(payload, "whsec_test"))
	s.Require().NoError(err)
	s.True(event.Verified)

	_, err = provider.ParseWebhook(s.ctx, payload, Sign(payload, "other"))
	s.True(ierr.IsSignature(err))

	_, err = provider.ParseWebhook(s.ctx, payload, "")
	s.True(ierr.IsSignature(err))
}

func (s *ProviderSuite) TestParseWebhookMalformed() {
	_, err := s.provider.ParseWebhook(s.ctx, []byte(`{not json`), "")
	s.True(ierr.IsPayload(err))

	_, err = s.provider.ParseWebhook(s.ctx, []byte(`{"id":"evt_1"}`), "")
	s.True(ierr.IsPayload(err))
}
