package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/saasinvoice/billing/internal/config"
	"github.com/saasinvoice/billing/internal/domain/invoice"
	"github.com/saasinvoice/billing/internal/domain/payment"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/integration/base"
	"github.com/saasinvoice/billing/internal/logger"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/samber/lo"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const defaultMaxRetries = 3

// Provider charges invoices through Stripe payment intents
type Provider struct {
	client        *stripe.Client
	webhookSecret string
	successURL    string
	cancelURL     string
	checkoutTTL   time.Duration
	maxRetries    uint64
	logger        *logger.Logger
}

var _ base.Provider = (*Provider)(nil)

func NewProvider(cfg *config.Configuration, log *logger.Logger) *Provider {
	stripeCfg := cfg.Payments.Stripe
	return &Provider{
		client:        stripe.NewClient(stripeCfg.SecretKey, nil),
		webhookSecret: stripeCfg.WebhookSecret,
		successURL:    stripeCfg.SuccessURL,
		cancelURL:     stripeCfg.CancelURL,
		checkoutTTL:   cfg.Payments.CheckoutTTL,
		maxRetries:    lo.Ternary(stripeCfg.MaxRetries > 0, stripeCfg.MaxRetries, uint64(defaultMaxRetries)),
		logger:        log,
	}
}

func (p *Provider) Name() types.PaymentProvider {
	return types.PaymentProviderStripe
}

func (p *Provider) CreateCheckout(ctx context.Context, payable *base.Payable) (*base.CheckoutSession, error) {
	if err := payable.Validate(); err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionCreateParams{
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(payable.Currency)),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(payable.Description),
					},
					UnitAmount: stripe.Int64(payable.Amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(p.successURL),
		CancelURL:  stripe.String(p.cancelURL),
		Metadata:   payable.Metadata,
		PaymentIntentData: &stripe.CheckoutSessionCreatePaymentIntentDataParams{
			Metadata: payable.Metadata,
		},
	}
	if p.checkoutTTL > 0 {
		params.ExpiresAt = stripe.Int64(time.Now().Add(p.checkoutTTL).Unix())
	}

	session, err := p.client.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, p.providerError(ctx, err, "failed to create checkout session", payable.ID)
	}

	p.logger.Infow("created stripe checkout session",
		"session_id", session.ID,
		"payable_kind", payable.Kind,
		"payable_id", payable.ID,
		"amount", payable.Amount,
	)

	return &base.CheckoutSession{
		ID:         session.ID,
		Amount:     payable.Amount,
		Currency:   payable.Currency,
		Status:     string(session.Status),
		PaymentURL: session.URL,
		ExpiresAt:  time.Unix(session.ExpiresAt, 0).UTC(),
	}, nil
}

func (p *Provider) CapturePayment(ctx context.Context, inv *invoice.Invoice, opts base.CaptureOptions) (*base.PaymentResult, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(inv.Total),
		Currency: stripe.String(strings.ToLower(inv.Currency)),
		Metadata: base.PayableFromInvoice(inv).Metadata,
	}
	params.Description = stripe.String("Invoice " + inv.Number)
	if opts.IdempotencyKey != "" {
		params.SetIdempotencyKey(opts.IdempotencyKey)
	}

	intent, err := p.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			switch stripeErr.Code {
			case stripe.ErrorCodeCardDeclined:
				ref := ""
				if stripeErr.PaymentIntent != nil {
					ref = stripeErr.PaymentIntent.ID
				}
				return &base.PaymentResult{
					ProviderRef:   ref,
					Status:        types.PaymentStatusFailed,
					Amount:        inv.Total,
					Currency:      inv.Currency,
					ProcessedAt:   time.Now().UTC(),
					FailureReason: lo.ToPtr(stripeErr.Msg),
				}, nil
			case stripe.ErrorCodeAuthenticationRequired:
				return nil, ierr.NewError("payment requires authentication").
					WithHint("The customer must complete payment authentication").
					WithReportableDetails(map[string]any{
						"invoice_id":        inv.ID,
						"stripe_error_code": stripeErr.Code,
					}).
					Mark(ierr.ErrProvider)
			}
		}
		return nil, p.providerError(ctx, err, "failed to create payment intent", inv.ID)
	}

	p.logger.Infow("created stripe payment intent",
		"provider_ref", intent.ID,
		"invoice_id", inv.ID,
		"status", intent.Status,
	)

	result := &base.PaymentResult{
		ProviderRef: intent.ID,
		Status:      mapIntentStatus(intent.Status),
		Amount:      intent.Amount,
		Currency:    strings.ToUpper(string(intent.Currency)),
		ProcessedAt: time.Unix(intent.Created, 0).UTC(),
	}
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		result.FailureReason = lo.ToPtr(intent.LastPaymentError.Msg)
	}
	return result, nil
}

func (p *Provider) Refund(ctx context.Context, pay *payment.Payment, amount *int64, opts base.RefundOptions) (*base.RefundResult, error) {
	value, err := base.ResolveRefundAmount(pay, amount)
	if err != nil {
		return nil, err
	}

	params := &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(pay.ProviderRef),
		Amount:        stripe.Int64(value),
	}
	if opts.IdempotencyKey != "" {
		params.SetIdempotencyKey(opts.IdempotencyKey)
	}
	refund, err := p.client.V1Refunds.Create(ctx, params)
	if err != nil {
		return nil, p.providerError(ctx, err, "failed to create refund", pay.InvoiceID)
	}

	return &base.RefundResult{
		ProviderRef: refund.ID,
		Amount:      refund.Amount,
		Currency:    strings.ToUpper(string(refund.Currency)),
		Status:      mapRefundStatus(refund.Status),
	}, nil
}

// GetPaymentStatus retries transient failures since reading is idempotent.
// Anything still failing reports unknown rather than an error.
func (p *Provider) GetPaymentStatus(ctx context.Context, ref string) (types.PaymentStatus, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), p.maxRetries),
		ctx,
	)

	intent, err := backoff.RetryWithData(func() (*stripe.PaymentIntent, error) {
		intent, err := p.client.V1PaymentIntents.Retrieve(ctx, ref, nil)
		if err != nil {
			var stripeErr *stripe.Error
			if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode > 0 && stripeErr.HTTPStatusCode < 500 {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return intent, nil
	}, policy)
	if err != nil {
		p.logger.Warnw("could not resolve stripe payment status",
			"provider_ref", ref,
			"error", err,
		)
		return types.PaymentStatusUnknown, nil
	}
	return mapIntentStatus(intent.Status), nil
}

func (p *Provider) ParseWebhook(_ context.Context, payload []byte, signature string) (*base.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidHeader) ||
			errors.Is(err, webhook.ErrNoValidSignature) ||
			errors.Is(err, webhook.ErrNotSigned) ||
			errors.Is(err, webhook.ErrTooOld) {
			return nil, ierr.WithError(err).
				WithHint("Invalid webhook signature").
				Mark(ierr.ErrSignature)
		}
		return nil, ierr.WithError(err).
			WithHint("Malformed webhook payload").
			Mark(ierr.ErrPayload)
	}

	normalized := &base.Event{
		ID:       event.ID,
		Type:     types.WebhookEventType(event.Type),
		Created:  time.Unix(event.Created, 0).UTC(),
		Verified: true,
	}

	switch normalized.Type {
	case types.WebhookEventPaymentSucceeded, types.WebhookEventPaymentFailed:
	default:
		// other event types are acknowledged without their object
		return normalized, nil
	}

	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, ierr.NewError("webhook event has no data").
			WithHint("Malformed webhook payload").
			Mark(ierr.ErrPayload)
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Malformed webhook payload").
			Mark(ierr.ErrPayload)
	}

	normalized.Object = base.EventObject{
		ID:       intent.ID,
		Status:   mapIntentStatus(intent.Status),
		Amount:   intent.Amount,
		Currency: strings.ToUpper(string(intent.Currency)),
		Metadata: lo.Ternary(intent.Metadata != nil, intent.Metadata, map[string]string{}),
	}
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		normalized.Object.FailureReason = lo.ToPtr(intent.LastPaymentError.Msg)
	}
	return normalized, nil
}

// providerError maps a failed call. A deadline means the request may have
// reached stripe, so the outcome is unknown rather than failed.
func (p *Provider) providerError(ctx context.Context, err error, msg, invoiceID string) error {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return base.OutcomeUnknown(err, p.Name(), invoiceID)
	}

	p.logger.Errorw(msg, "error", err, "invoice_id", invoiceID)
	return ierr.WithError(err).
		WithHint("The payment provider rejected the request").
		WithReportableDetails(map[string]any{
			"provider":   p.Name(),
			"invoice_id": invoiceID,
		}).
		Mark(ierr.ErrProvider)
}

func mapIntentStatus(status stripe.PaymentIntentStatus) types.PaymentStatus {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return types.PaymentStatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return types.PaymentStatusCanceled
	case stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresPaymentMethod,
		stripe.PaymentIntentStatusRequiresCapture,
		stripe.PaymentIntentStatusProcessing:
		return types.PaymentStatusRequiresAction
	default:
		return types.PaymentStatusUnknown
	}
}

func mapRefundStatus(status stripe.RefundStatus) types.RefundStatus {
	switch status {
	case stripe.RefundStatusSucceeded:
		return types.RefundStatusSucceeded
	case stripe.RefundStatusFailed, "canceled":
		return types.RefundStatusFailed
	default:
		return types.RefundStatusPending
	}
}
