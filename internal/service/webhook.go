package service

import (
	"context"
	"time"

	"github.com/saasinvoice/billing/internal/api/dto"
	"github.com/saasinvoice/billing/internal/domain/invoice"
	"github.com/saasinvoice/billing/internal/domain/payment"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/integration/base"
	"github.com/saasinvoice/billing/internal/metrics"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/samber/lo"
)

// WebhookService applies provider events to local payment and invoice state.
// Providers retry and reorder deliveries, so every event is applied with a
// status guard that turns repeats into no-ops.
type WebhookService interface {
	HandleWebhook(ctx context.Context, provider types.PaymentProvider, payload []byte, signature string) (*dto.WebhookResponse, error)
}

type webhookService struct {
	ServiceParams
}

func NewWebhookService(params ServiceParams) WebhookService {
	return &webhookService{ServiceParams: params}
}

func (s *webhookService) HandleWebhook(ctx context.Context, name types.PaymentProvider, payload []byte, signature string) (*dto.WebhookResponse, error) {
	if name == "" {
		return nil, ierr.NewError("webhook provider is required").
			WithHint("Unknown payment provider").
			Mark(ierr.ErrNotFound)
	}
	provider, err := s.Providers.GetProvider(name)
	if err != nil {
		return nil, err
	}
	s.Metrics.RecordWebhook(string(name), metrics.WebhookReceived)

	event, err := provider.ParseWebhook(ctx, payload, signature)
	if err != nil {
		s.Metrics.RecordWebhook(string(name), metrics.WebhookRejected)
		s.Logger.Warnw("rejected webhook",
			"provider", name,
			"payload_size", len(payload),
			"error", err,
		)
		if ierr.IsSignature(err) {
			s.Sentry.CaptureWithTags(ctx, err, map[string]string{
				"provider": string(name),
				"reason":   "signature",
			})
		}
		return nil, err
	}
	if !event.Verified {
		s.Logger.Warnw("accepted unverified webhook, provider has no signing secret",
			"provider", name,
			"event_id", event.ID,
		)
	}

	var outcome string
	switch event.Type {
	case types.WebhookEventPaymentSucceeded:
		outcome, err = s.applySucceeded(ctx, name, event)
	case types.WebhookEventPaymentFailed:
		outcome, err = s.applyFailed(ctx, name, event)
	default:
		outcome = metrics.WebhookIgnored
		s.Logger.Debugw("ignoring webhook event", "provider", name, "event_id", event.ID, "type", event.Type)
	}
	if err != nil {
		s.Logger.Errorw("failed to apply webhook",
			"provider", name,
			"event_id", event.ID,
			"type", event.Type,
			"provider_ref", event.Object.ID,
			"error", err,
		)
		return nil, err
	}

	s.Metrics.RecordWebhook(string(name), outcome)
	s.Logger.Infow("processed webhook",
		"provider", name,
		"event_id", event.ID,
		"type", event.Type,
		"provider_ref", event.Object.ID,
		"outcome", outcome,
	)
	return &dto.WebhookResponse{Received: true, EventID: event.ID, Outcome: outcome}, nil
}

func (s *webhookService) applySucceeded(ctx context.Context, name types.PaymentProvider, event *base.Event) (string, error) {
	var (
		inv            *invoice.Invoice
		paymentChanged bool
		invoiceChanged bool
		skipped        bool
	)

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		p, created, err := s.findOrCreatePayment(ctx, name, event, types.PaymentStatusSucceeded)
		if err != nil {
			if ierr.IsAlreadyExists(err) {
				s.reportSecondSuccess(ctx, event, err)
				skipped = true
				return nil
			}
			return err
		}

		paymentChanged = created
		if !created && !p.IsSucceeded() {
			settled, err := s.settledByOtherPayment(ctx, p)
			if err != nil {
				return err
			}
			if settled {
				s.reportSecondSuccess(ctx, event, ierr.NewError("invoice already has a succeeded payment").
					WithHint("Invoice already has a succeeded payment").
					WithReportableDetails(map[string]any{
						"invoice_id": p.InvoiceID,
						"payment_id": p.ID,
					}).
					Mark(ierr.ErrAlreadyExists))
				skipped = true
				return nil
			}

			// a late success overrides an earlier failure
			p.Status = types.PaymentStatusSucceeded
			p.FailureReason = nil
			p.ProcessedAt = eventTime(event)
			p.UpdatedAt = time.Now().UTC()
			paymentChanged, err = s.PaymentRepo.UpdateStatus(ctx, p,
				types.PaymentStatusRequiresAction,
				types.PaymentStatusFailed,
			)
			if err != nil {
				if ierr.IsAlreadyExists(err) {
					s.reportSecondSuccess(ctx, event, err)
					skipped = true
					return nil
				}
				return err
			}
		}

		// a paid invoice makes this a no-op; also heals a payment recorded
		// without its invoice transition
		inv, invoiceChanged, err = s.markInvoicePaid(ctx, p.InvoiceID)
		if ierr.IsInvalidState(err) {
			s.Logger.Warnw("payment succeeded for invoice that cannot be paid",
				"invoice_id", p.InvoiceID,
				"payment_id", p.ID,
				"error", err,
			)
			s.Sentry.CaptureException(err)
			return nil
		}
		return err
	})
	if err != nil {
		return "", err
	}
	if skipped {
		return metrics.WebhookIgnored, nil
	}

	if paymentChanged {
		s.Metrics.RecordPayment(string(name), string(types.PaymentStatusSucceeded))
	}
	if invoiceChanged {
		s.invoiceTransitioned(ctx, inv)
	}
	if paymentChanged || invoiceChanged {
		return metrics.WebhookApplied, nil
	}
	return metrics.WebhookDuplicate, nil
}

func (s *webhookService) applyFailed(ctx context.Context, name types.PaymentProvider, event *base.Event) (string, error) {
	p, created, err := s.findOrCreatePayment(ctx, name, event, types.PaymentStatusFailed)
	if err != nil {
		return "", err
	}
	if created {
		s.Metrics.RecordPayment(string(name), string(types.PaymentStatusFailed))
		return metrics.WebhookApplied, nil
	}

	switch p.Status {
	case types.PaymentStatusSucceeded:
		// events arrive out of order, success is final
		s.Logger.Infow("ignoring failure for succeeded payment", "payment_id", p.ID, "event_id", event.ID)
		return metrics.WebhookIgnored, nil
	case types.PaymentStatusFailed:
		return metrics.WebhookDuplicate, nil
	}

	p.Status = types.PaymentStatusFailed
	p.FailureReason = event.Object.FailureReason
	p.ProcessedAt = eventTime(event)
	p.UpdatedAt = time.Now().UTC()
	changed, err := s.PaymentRepo.UpdateStatus(ctx, p, types.PaymentStatusRequiresAction)
	if err != nil {
		return "", err
	}
	if !changed {
		return metrics.WebhookDuplicate, nil
	}

	s.Metrics.RecordPayment(string(name), string(types.PaymentStatusFailed))
	return metrics.WebhookApplied, nil
}

// settledByOtherPayment reports whether a payment other than p already
// succeeded for p's invoice.
func (s *webhookService) settledByOtherPayment(ctx context.Context, p *payment.Payment) (bool, error) {
	payments, err := s.PaymentRepo.ListByInvoice(ctx, p.InvoiceID)
	if err != nil {
		return false, err
	}
	return lo.ContainsBy(payments, func(other *payment.Payment) bool {
		return other.ID != p.ID && other.IsSucceeded()
	}), nil
}

// reportSecondSuccess records a provider success for an invoice that a
// different payment already settled. The event is acknowledged so the
// provider stops redelivering it; the double charge needs a manual refund.
func (s *webhookService) reportSecondSuccess(ctx context.Context, event *base.Event, err error) {
	s.Logger.Errorw("second successful payment for invoice",
		"invoice_id", event.InvoiceID(),
		"provider_ref", event.Object.ID,
		"event_id", event.ID,
	)
	s.Sentry.CaptureWithTags(ctx, err, map[string]string{
		"invoice_id":   event.InvoiceID(),
		"provider_ref": event.Object.ID,
	})
}

// findOrCreatePayment resolves the payment an event refers to. A capture
// whose response was lost never got recorded locally; when the event names
// its invoice the payment is recorded from the event with status. It reports
// whether the payment was created.
func (s *webhookService) findOrCreatePayment(ctx context.Context, name types.PaymentProvider, event *base.Event, status types.PaymentStatus) (*payment.Payment, bool, error) {
	p, err := s.PaymentRepo.GetByProviderRef(ctx, name, event.Object.ID)
	if err == nil {
		return p, false, nil
	}
	if !ierr.IsNotFound(err) {
		return nil, false, err
	}

	invoiceID := event.InvoiceID()
	if invoiceID == "" {
		return nil, false, ierr.WithError(err).
			WithHint("No payment matches this provider reference").
			WithReportableDetails(map[string]any{
				"provider":     name,
				"provider_ref": event.Object.ID,
				"event_id":     event.ID,
			}).
			Mark(ierr.ErrNotFound)
	}
	if _, err := s.InvoiceRepo.Get(ctx, invoiceID); err != nil {
		return nil, false, err
	}

	now := time.Now().UTC()
	p = &payment.Payment{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		InvoiceID:     invoiceID,
		Provider:      name,
		ProviderRef:   event.Object.ID,
		Amount:        event.Object.Amount,
		Currency:      event.Object.Currency,
		Status:        status,
		FailureReason: event.Object.FailureReason,
		ProcessedAt:   eventTime(event),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if status == types.PaymentStatusSucceeded {
		p.FailureReason = nil
	}

	if err := s.PaymentRepo.Create(ctx, p); err != nil {
		if !ierr.IsAlreadyExists(err) {
			return nil, false, err
		}
		// recorded concurrently by the capture call or a redelivery
		existing, lookupErr := s.PaymentRepo.GetByProviderRef(ctx, name, event.Object.ID)
		if lookupErr != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	s.Logger.Infow("recorded payment from webhook",
		"payment_id", p.ID,
		"invoice_id", invoiceID,
		"provider_ref", p.ProviderRef,
		"status", p.Status,
	)
	return p, true, nil
}

func eventTime(event *base.Event) *time.Time {
	t := event.Created
	if t.IsZero() {
		t = time.Now()
	}
	t = t.UTC()
	return &t
}
