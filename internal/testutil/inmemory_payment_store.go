package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/saasinvoice/billing/internal/domain/payment"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/samber/lo"
)

// InMemoryPaymentStore implements payment.Repository with the same unique
// constraints as the payments table.
type InMemoryPaymentStore struct {
	mu       sync.Mutex
	payments map[string]*payment.Payment
	refunds  map[string][]*payment.Refund
}

func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		payments: make(map[string]*payment.Payment),
		refunds:  make(map[string][]*payment.Refund),
	}
}

func clonePayment(p *payment.Payment) *payment.Payment {
	c := *p
	c.FailureReason = clonePtr(p.FailureReason)
	c.ProcessedAt = clonePtr(p.ProcessedAt)
	return &c
}

func duplicatePayment(p *payment.Payment, hint string) error {
	return ierr.NewError("payment already exists").
		WithHint(hint).
		WithReportableDetails(map[string]any{
			"invoice_id":   p.InvoiceID,
			"provider_ref": p.ProviderRef,
		}).
		Mark(ierr.ErrAlreadyExists)
}

// conflicts must be called with mu held
func (s *InMemoryPaymentStore) conflicts(p *payment.Payment) error {
	for _, existing := range s.payments {
		if existing.ID == p.ID {
			continue
		}
		if existing.Provider == p.Provider && existing.ProviderRef == p.ProviderRef {
			return duplicatePayment(p, "A payment with this provider reference already exists")
		}
		if p.IsSucceeded() && existing.IsSucceeded() && existing.InvoiceID == p.InvoiceID {
			return duplicatePayment(p, "Invoice already has a succeeded payment")
		}
	}
	return nil
}

func (s *InMemoryPaymentStore) Create(ctx context.Context, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payments[p.ID]; exists {
		return duplicatePayment(p, "Payment already exists")
	}
	if err := s.conflicts(p); err != nil {
		return err
	}
	s.payments[p.ID] = clonePayment(p)
	return nil
}

func (s *InMemoryPaymentStore) notFound(details map[string]any) error {
	return ierr.NewError("payment not found").
		WithHint("payment was not found").
		WithReportableDetails(details).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryPaymentStore) Get(ctx context.Context, id string) (*payment.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[id]
	if !ok {
		return nil, s.notFound(map[string]any{"payment_id": id})
	}
	return clonePayment(p), nil
}

func (s *InMemoryPaymentStore) GetForUpdate(ctx context.Context, id string) (*payment.Payment, error) {
	if !InTx(ctx) {
		return nil, ierr.NewError("row lock requested outside a transaction").
			WithHint("Payment lock requires a transaction").
			WithReportableDetails(map[string]any{"payment_id": id}).
			Mark(ierr.ErrSystem)
	}
	return s.Get(ctx, id)
}

func (s *InMemoryPaymentStore) GetByProviderRef(ctx context.Context, provider types.PaymentProvider, ref string) (*payment.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.payments {
		if p.Provider == provider && p.ProviderRef == ref {
			return clonePayment(p), nil
		}
	}
	return nil, s.notFound(map[string]any{"provider": provider, "provider_ref": ref})
}

func (s *InMemoryPaymentStore) ListByInvoice(ctx context.Context, invoiceID string) ([]*payment.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*payment.Payment, 0)
	for _, p := range s.payments {
		if p.InvoiceID == invoiceID {
			result = append(result, clonePayment(p))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *InMemoryPaymentStore) UpdateStatus(ctx context.Context, p *payment.Payment, from ...types.PaymentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.payments[p.ID]
	if !ok || !lo.Contains(from, stored.Status) {
		return false, nil
	}
	if err := s.conflicts(p); err != nil {
		return false, err
	}

	stored.Status = p.Status
	stored.FailureReason = clonePtr(p.FailureReason)
	stored.ProcessedAt = clonePtr(p.ProcessedAt)
	stored.UpdatedAt = p.UpdatedAt
	return true, nil
}

func (s *InMemoryPaymentStore) CreateRefund(ctx context.Context, r *payment.Refund) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[r.PaymentID]; !ok {
		return s.notFound(map[string]any{"payment_id": r.PaymentID})
	}
	rc := *r
	s.refunds[r.PaymentID] = append(s.refunds[r.PaymentID], &rc)
	return nil
}

func (s *InMemoryPaymentStore) ListRefunds(ctx context.Context, paymentID string) ([]*payment.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return lo.Map(s.refunds[paymentID], func(r *payment.Refund, _ int) *payment.Refund {
		rc := *r
		return &rc
	}), nil
}

func (s *InMemoryPaymentStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = make(map[string]*payment.Payment)
	s.refunds = make(map[string][]*payment.Refund)
}
