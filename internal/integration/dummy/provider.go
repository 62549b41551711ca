package dummy

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/saasinvoice/billing/internal/config"
	"github.com/saasinvoice/billing/internal/domain/invoice"
	"github.com/saasinvoice/billing/internal/domain/payment"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/integration/base"
	"github.com/saasinvoice/billing/internal/logger"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/samber/lo"
)

const (
	defaultCheckoutTTL = 24 * time.Hour
	checkoutRefPrefix  = "dummy_checkout_"
	paymentRefPrefix   = "dummy_payment_"
	refundRefPrefix    = "dummy_refund_"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Provider simulates a payment provider that always succeeds unless told
// otherwise. It is meant for local development and tests.
type Provider struct {
	store         Store
	webhookSecret string
	checkoutURL   string
	checkoutTTL   time.Duration
	logger        *logger.Logger
	now           func() time.Time
}

var _ base.Provider = (*Provider)(nil)

func NewProvider(cfg *config.Configuration, store Store, log *logger.Logger) *Provider {
	return &Provider{
		store:         store,
		webhookSecret: cfg.Payments.Dummy.WebhookSecret,
		checkoutURL:   strings.TrimSuffix(cfg.Payments.Dummy.CheckoutURL, "/"),
		checkoutTTL:   lo.Ternary(cfg.Payments.CheckoutTTL > 0, cfg.Payments.CheckoutTTL, defaultCheckoutTTL),
		logger:        log,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (p *Provider) Name() types.PaymentProvider {
	return types.PaymentProviderDummy
}

func (p *Provider) CreateCheckout(_ context.Context, payable *base.Payable) (*base.CheckoutSession, error) {
	if err := payable.Validate(); err != nil {
		return nil, err
	}

	id := checkoutRefPrefix + types.GenerateShortID()
	return &base.CheckoutSession{
		ID:         id,
		Amount:     payable.Amount,
		Currency:   payable.Currency,
		Status:     "open",
		PaymentURL: fmt.Sprintf("%s/%s", p.checkoutURL, id),
		ExpiresAt:  p.now().Add(p.checkoutTTL),
	}, nil
}

func (p *Provider) CapturePayment(ctx context.Context, inv *invoice.Invoice, opts base.CaptureOptions) (*base.PaymentResult, error) {
	if opts.IdempotencyKey != "" {
		if c, ok := p.store.GetByIdempotencyKey(ctx, opts.IdempotencyKey); ok {
			p.logger.Debugw("dummy capture replayed", "provider_ref", c.Ref, "invoice_id", inv.ID)
			return resultFromCapture(c), nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, base.OutcomeUnknown(err, p.Name(), inv.ID)
	}

	c, created := p.store.CreateCapture(ctx, &Capture{
		Ref:            paymentRefPrefix + types.GenerateShortID(),
		InvoiceID:      inv.ID,
		Amount:         inv.Total,
		Currency:       inv.Currency,
		Status:         types.PaymentStatusSucceeded,
		ProcessedAt:    p.now(),
		IdempotencyKey: opts.IdempotencyKey,
	})
	if !created {
		// a concurrent call with the same key won
		p.logger.Debugw("dummy capture replayed", "provider_ref", c.Ref, "invoice_id", inv.ID)
		return resultFromCapture(c), nil
	}

	p.logger.Infow("dummy payment captured",
		"provider_ref", c.Ref,
		"invoice_id", inv.ID,
		"amount", c.Amount,
		"currency", c.Currency,
	)
	return resultFromCapture(c), nil
}

func (p *Provider) Refund(ctx context.Context, pay *payment.Payment, amount *int64, _ base.RefundOptions) (*base.RefundResult, error) {
	value, err := base.ResolveRefundAmount(pay, amount)
	if err != nil {
		return nil, err
	}

	// captures made by another process are unknown here and are refunded
	// without a remaining-amount check; PaymentService serializes refunds of
	// one payment and bounds them by its recorded refunds
	if _, ok := p.store.GetCapture(ctx, pay.ProviderRef); ok {
		if _, ok := p.store.AddRefund(ctx, pay.ProviderRef, value); !ok {
			return nil, ierr.NewError("refund exceeds captured amount").
				WithHint("The refund amount exceeds what remains on the payment").
				WithReportableDetails(map[string]any{
					"provider_ref": pay.ProviderRef,
					"amount":       value,
				}).
				Mark(ierr.ErrValidation)
		}
	}

	return &base.RefundResult{
		ProviderRef: refundRefPrefix + types.GenerateShortID(),
		Amount:      value,
		Currency:    pay.Currency,
		Status:      types.RefundStatusSucceeded,
	}, nil
}

// SimulateFailure flips a stored capture to failed, used to exercise the
// failure webhook path during development
func (p *Provider) SimulateFailure(ctx context.Context, ref, reason string) bool {
	c, ok := p.store.GetCapture(ctx, ref)
	if !ok {
		return false
	}
	c.Status = types.PaymentStatusFailed
	c.FailureReason = lo.ToPtr(reason)
	p.store.SaveCapture(ctx, c)
	return true
}

func (p *Provider) GetPaymentStatus(ctx context.Context, ref string) (types.PaymentStatus, error) {
	c, ok := p.store.GetCapture(ctx, ref)
	if !ok {
		return types.PaymentStatusUnknown, nil
	}
	return c.Status, nil
}

// webhookPayload mirrors the stripe event envelope
type webhookPayload struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID            string            `json:"id"`
			Status        string            `json:"status"`
			Amount        int64             `json:"amount"`
			Currency      string            `json:"currency"`
			FailureReason *string           `json:"failure_reason"`
			Metadata      map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// Sign returns the hex HMAC-SHA256 of payload under secret
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (p *Provider) ParseWebhook(_ context.Context, payload []byte, signature string) (*base.Event, error) {
	verified := false
	if p.webhookSecret != "" {
		expected := Sign(payload, p.webhookSecret)
		if !hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature))) {
			return nil, ierr.NewError("dummy webhook signature mismatch").
				WithHint("Invalid webhook signature").
				Mark(ierr.ErrSignature)
		}
		verified = true
	}

	var raw webhookPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Malformed webhook payload").
			Mark(ierr.ErrPayload)
	}
	if raw.ID == "" || raw.Type == "" || raw.Data.Object.ID == "" {
		return nil, ierr.NewError("webhook payload is missing required fields").
			WithHint("Malformed webhook payload").
			WithReportableDetails(map[string]any{
				"event_id": raw.ID,
				"type":     raw.Type,
			}).
			Mark(ierr.ErrPayload)
	}

	obj := raw.Data.Object
	created := p.now()
	if raw.Created > 0 {
		created = time.Unix(raw.Created, 0).UTC()
	}

	return &base.Event{
		ID:       raw.ID,
		Type:     types.WebhookEventType(raw.Type),
		Created:  created,
		Verified: verified,
		Object: base.EventObject{
			ID:            obj.ID,
			Status:        types.PaymentStatus(obj.Status),
			Amount:        obj.Amount,
			Currency:      strings.ToUpper(obj.Currency),
			FailureReason: obj.FailureReason,
			Metadata:      lo.Ternary(obj.Metadata != nil, obj.Metadata, map[string]string{}),
		},
	}, nil
}

func resultFromCapture(c *Capture) *base.PaymentResult {
	return &base.PaymentResult{
		ProviderRef:   c.Ref,
		Status:        c.Status,
		Amount:        c.Amount,
		Currency:      c.Currency,
		ProcessedAt:   c.ProcessedAt,
		FailureReason: c.FailureReason,
	}
}
