package service

import (
	"context"
	"errors"
	"time"

	"github.com/saasinvoice/billing/internal/api/dto"
	"github.com/saasinvoice/billing/internal/domain/invoice"
	"github.com/saasinvoice/billing/internal/domain/payment"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/idempotency"
	"github.com/saasinvoice/billing/internal/integration/base"
	"github.com/saasinvoice/billing/internal/rbac"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/samber/lo"
)

type PaymentService interface {
	// PayInvoice captures the total of an open invoice and marks it paid on
	// success. Paying a paid invoice returns the payment that settled it.
	PayInvoice(ctx context.Context, invoiceID string, req dto.PayInvoiceRequest) (*dto.PayInvoiceResponse, error)
	CreateInvoiceCheckout(ctx context.Context, invoiceID string, req dto.CheckoutRequest) (*dto.CheckoutResponse, error)
	GetPayment(ctx context.Context, id string) (*dto.PaymentResponse, error)
	// GetPaymentStatus compares the stored status with the provider's
	GetPaymentStatus(ctx context.Context, id string) (*dto.PaymentStatusResponse, error)
	RefundPayment(ctx context.Context, id string, req dto.RefundRequest) (*dto.RefundResponse, error)
}

type paymentService struct {
	ServiceParams
	idempotency *idempotency.Generator
}

func NewPaymentService(params ServiceParams) PaymentService {
	return &paymentService{
		ServiceParams: params,
		idempotency:   idempotency.NewGenerator(),
	}
}

func (s *paymentService) PayInvoice(ctx context.Context, invoiceID string, req dto.PayInvoiceRequest) (*dto.PayInvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	inv, _, err := s.getInvoiceFor(ctx, rbac.ActionPay, invoiceID)
	if err != nil {
		return nil, err
	}

	switch inv.Status {
	case types.InvoiceStatusPaid:
		return s.paidResponse(ctx, inv)
	case types.InvoiceStatusOpen:
	default:
		return nil, ierr.NewErrorf("cannot pay invoice in status %s", inv.Status).
			WithHint("Only open invoices can be paid").
			WithReportableDetails(map[string]any{
				"invoice_id": inv.ID,
				"status":     inv.Status,
			}).
			Mark(ierr.ErrInvalidState)
	}

	// nothing to charge, typically a 100% coupon
	if inv.Total == 0 {
		paid, changed, err := s.markInvoicePaid(ctx, inv.ID)
		if err != nil {
			return nil, err
		}
		if changed {
			s.invoiceTransitioned(ctx, paid)
		}
		return &dto.PayInvoiceResponse{Invoice: dto.NewInvoiceResponse(paid)}, nil
	}

	provider, err := s.Providers.GetProvider(req.Provider)
	if err != nil {
		return nil, err
	}

	result, err := s.capture(ctx, provider, inv)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &payment.Payment{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		InvoiceID:      inv.ID,
		Provider:       provider.Name(),
		ProviderRef:    result.ProviderRef,
		Amount:         result.Amount,
		Currency:       result.Currency,
		Status:         result.Status,
		FailureReason:  result.FailureReason,
		IdempotencyKey: s.captureKey(provider.Name(), inv),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if !result.ProcessedAt.IsZero() {
		p.ProcessedAt = lo.ToPtr(result.ProcessedAt)
	}
	if p.ProviderRef == "" {
		// declines rejected before the provider created an object carry no
		// reference; a local one keeps each attempt a distinct row
		p.ProviderRef = localRefPrefix + p.ID
	}

	var (
		paid    = inv
		changed bool
	)
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		stored, err := s.recordPayment(ctx, p)
		if err != nil {
			return err
		}
		p = stored
		if !p.IsSucceeded() {
			return nil
		}
		paid, changed, err = s.markInvoicePaid(ctx, inv.ID)
		return err
	})
	if err != nil {
		// the provider may have charged; the webhook reconciles the record
		s.Logger.Errorw("failed to record captured payment",
			"invoice_id", inv.ID,
			"provider", provider.Name(),
			"provider_ref", result.ProviderRef,
			"error", err,
		)
		s.Sentry.CaptureWithTags(ctx, err, map[string]string{
			"invoice_id":   inv.ID,
			"provider_ref": result.ProviderRef,
		})
		return nil, err
	}

	s.Metrics.RecordPayment(string(provider.Name()), string(p.Status))
	if changed {
		s.invoiceTransitioned(ctx, paid)
	}

	if p.Status == types.PaymentStatusFailed {
		return nil, ierr.NewError("payment failed").
			WithHintf("Payment was declined: %s", lo.FromPtrOr(p.FailureReason, "unknown reason")).
			WithReportableDetails(map[string]any{
				"invoice_id": inv.ID,
				"payment_id": p.ID,
			}).
			Mark(ierr.ErrProvider)
	}

	s.Logger.Infow("invoice payment captured",
		"invoice_id", inv.ID,
		"payment_id", p.ID,
		"provider", p.Provider,
		"provider_ref", p.ProviderRef,
		"status", p.Status,
	)
	return &dto.PayInvoiceResponse{
		Payment: &dto.PaymentResponse{Payment: p},
		Invoice: dto.NewInvoiceResponse(paid),
	}, nil
}

const localRefPrefix = "local_"

func (s *paymentService) captureKey(provider types.PaymentProvider, inv *invoice.Invoice) string {
	return s.idempotency.GenerateKey(idempotency.ScopePaymentCapture, map[string]interface{}{
		"invoice_id": inv.ID,
		"total":      inv.Total,
		"provider":   provider,
	})
}

// capture calls the provider within the capture timeout. A call cut short
// by the timeout may still have charged, so it never reads as a failure.
func (s *paymentService) capture(ctx context.Context, provider base.Provider, inv *invoice.Invoice) (*base.PaymentResult, error) {
	captureCtx := ctx
	if timeout := s.Config.Payments.CaptureTimeout; timeout > 0 {
		var cancel context.CancelFunc
		captureCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := provider.CapturePayment(captureCtx, inv, base.CaptureOptions{
		IdempotencyKey: s.captureKey(provider.Name(), inv),
	})
	if err == nil {
		return result, nil
	}

	if !ierr.IsOutcomeUnknown(err) && errors.Is(captureCtx.Err(), context.DeadlineExceeded) {
		err = base.OutcomeUnknown(err, provider.Name(), inv.ID)
	}
	if ierr.IsOutcomeUnknown(err) {
		s.Metrics.RecordPayment(string(provider.Name()), string(types.PaymentStatusUnknown))
		s.Logger.Warnw("payment capture outcome unknown",
			"invoice_id", inv.ID,
			"provider", provider.Name(),
			"error", err,
		)
	}
	return nil, err
}

// recordPayment stores p. When the reconciler already recorded the same
// provider payment, the stored row wins.
func (s *paymentService) recordPayment(ctx context.Context, p *payment.Payment) (*payment.Payment, error) {
	err := s.PaymentRepo.Create(ctx, p)
	if err == nil {
		return p, nil
	}
	if !ierr.IsAlreadyExists(err) {
		return nil, err
	}

	existing, lookupErr := s.PaymentRepo.GetByProviderRef(ctx, p.Provider, p.ProviderRef)
	if lookupErr != nil {
		// a different succeeded payment exists: the invoice was charged twice
		return nil, ierr.WithError(err).
			WithHint("Invoice already has a successful payment").
			WithReportableDetails(map[string]any{
				"invoice_id":   p.InvoiceID,
				"provider_ref": p.ProviderRef,
			}).
			Mark(ierr.ErrAlreadyExists)
	}
	return existing, nil
}

func (s *paymentService) paidResponse(ctx context.Context, inv *invoice.Invoice) (*dto.PayInvoiceResponse, error) {
	resp := &dto.PayInvoiceResponse{Invoice: dto.NewInvoiceResponse(inv)}

	payments, err := s.PaymentRepo.ListByInvoice(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	// invoices marked paid by hand have no payment
	if p, ok := lo.Find(payments, (*payment.Payment).IsSucceeded); ok {
		resp.Payment = &dto.PaymentResponse{Payment: p}
	}
	return resp, nil
}

func (s *paymentService) CreateInvoiceCheckout(ctx context.Context, invoiceID string, req dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	inv, _, err := s.getInvoiceFor(ctx, rbac.ActionCheckout, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != types.InvoiceStatusOpen {
		return nil, ierr.NewErrorf("cannot check out invoice in status %s", inv.Status).
			WithHint("Only open invoices can be paid").
			WithReportableDetails(map[string]any{
				"invoice_id": inv.ID,
				"status":     inv.Status,
			}).
			Mark(ierr.ErrInvalidState)
	}

	provider, err := s.Providers.GetProvider(req.Provider)
	if err != nil {
		return nil, err
	}
	session, err := provider.CreateCheckout(ctx, base.PayableFromInvoice(inv))
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("created invoice checkout",
		"invoice_id", inv.ID,
		"provider", provider.Name(),
		"session_id", session.ID,
	)
	return &dto.CheckoutResponse{CheckoutSession: session, Provider: provider.Name()}, nil
}

// getPaymentFor loads a payment and checks action against the owner of its invoice
func (s *paymentService) getPaymentFor(ctx context.Context, action rbac.Action, id string) (*payment.Payment, error) {
	p, err := s.PaymentRepo.Get(ctx, id)
	if err != nil {
		if ierr.IsNotFound(err) {
			if authErr := s.authorize(ctx, action, rbac.Owned(rbac.EntityPayment, unknownOwner)); authErr != nil {
				return nil, authErr
			}
		}
		return nil, err
	}

	owner := unknownOwner
	if inv, err := s.InvoiceRepo.Get(ctx, p.InvoiceID); err == nil {
		if _, o, err := s.ownerOf(ctx, inv.CustomerID); err == nil {
			owner = o
		}
	}
	if err := s.authorize(ctx, action, rbac.Owned(rbac.EntityPayment, owner)); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *paymentService) GetPayment(ctx context.Context, id string) (*dto.PaymentResponse, error) {
	p, err := s.getPaymentFor(ctx, rbac.ActionRead, id)
	if err != nil {
		return nil, err
	}
	return &dto.PaymentResponse{Payment: p}, nil
}

func (s *paymentService) GetPaymentStatus(ctx context.Context, id string) (*dto.PaymentStatusResponse, error) {
	p, err := s.getPaymentFor(ctx, rbac.ActionRead, id)
	if err != nil {
		return nil, err
	}

	resp := &dto.PaymentStatusResponse{
		PaymentID:      p.ID,
		Provider:       p.Provider,
		ProviderRef:    p.ProviderRef,
		Status:         p.Status,
		ProviderStatus: types.PaymentStatusUnknown,
	}

	provider, err := s.Providers.GetProvider(p.Provider)
	if err != nil {
		// the provider was disabled since; report what we know
		s.Logger.Warnw("payment provider unavailable for status check", "payment_id", p.ID, "provider", p.Provider)
		return resp, nil
	}
	status, err := provider.GetPaymentStatus(ctx, p.ProviderRef)
	if err != nil {
		s.Logger.Warnw("provider status check failed", "payment_id", p.ID, "error", err)
		return resp, nil
	}
	resp.ProviderStatus = status
	return resp, nil
}

func (s *paymentService) RefundPayment(ctx context.Context, id string, req dto.RefundRequest) (*dto.RefundResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	p, err := s.getPaymentFor(ctx, rbac.ActionRefund, id)
	if err != nil {
		return nil, err
	}
	provider, err := s.Providers.GetProvider(p.Provider)
	if err != nil {
		return nil, err
	}

	var (
		r         *payment.Refund
		remaining int64
	)
	// the payment row lock serializes refunds of one payment, so the
	// remaining amount cannot be spent twice
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		locked, err := s.PaymentRepo.GetForUpdate(ctx, p.ID)
		if err != nil {
			return err
		}
		p = locked
		if !p.IsSucceeded() {
			return ierr.NewErrorf("cannot refund payment in status %s", p.Status).
				WithHint("Only successful payments can be refunded").
				WithReportableDetails(map[string]any{
					"payment_id": p.ID,
					"status":     p.Status,
				}).
				Mark(ierr.ErrInvalidState)
		}

		refunds, err := s.PaymentRepo.ListRefunds(ctx, p.ID)
		if err != nil {
			return err
		}
		refunded := lo.SumBy(lo.Reject(refunds, func(r *payment.Refund, _ int) bool {
			return r.Status == types.RefundStatusFailed
		}), func(r *payment.Refund) int64 {
			return r.Amount
		})
		remaining = p.Amount - refunded

		amount := lo.FromPtrOr(req.Amount, remaining)
		if amount <= 0 || amount > remaining {
			return ierr.NewError("invalid refund amount").
				WithHintf("Refund amount must be between 1 and %d", remaining).
				WithReportableDetails(map[string]any{
					"payment_id": p.ID,
					"amount":     amount,
					"paid":       p.Amount,
					"refunded":   refunded,
				}).
				Mark(ierr.ErrValidation)
		}

		result, err := provider.Refund(ctx, p, &amount, base.RefundOptions{
			IdempotencyKey: s.idempotency.GenerateKey(idempotency.ScopeRefund, map[string]interface{}{
				"payment_id": p.ID,
				"amount":     amount,
				"refunded":   refunded,
			}),
		})
		if err != nil {
			return err
		}

		r = &payment.Refund{
			ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REFUND),
			PaymentID:   p.ID,
			Provider:    p.Provider,
			ProviderRef: result.ProviderRef,
			Amount:      result.Amount,
			Currency:    p.Currency,
			Status:      result.Status,
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.PaymentRepo.CreateRefund(ctx, r); err != nil {
			s.Logger.Errorw("failed to record refund",
				"payment_id", p.ID,
				"provider_ref", result.ProviderRef,
				"error", err,
			)
			s.Sentry.CaptureException(err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if r.Status != types.RefundStatusFailed {
		remaining -= r.Amount
	}
	s.Logger.Infow("refunded payment",
		"payment_id", p.ID,
		"refund_id", r.ID,
		"amount", r.Amount,
		"status", r.Status,
		"remaining", remaining,
	)
	return &dto.RefundResponse{Refund: r, Remaining: remaining}, nil
}
