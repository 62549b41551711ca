package testutil

import (
	"context"

	"github.com/saasinvoice/billing/internal/domain/invoice"
	"github.com/saasinvoice/billing/internal/domain/payment"
	"github.com/saasinvoice/billing/internal/integration/base"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/stretchr/testify/mock"
)

var _ base.Provider = (*MockPaymentProvider)(nil)

// MockPaymentProvider lets tests script provider answers such as declines
// and timeouts
type MockPaymentProvider struct {
	mock.Mock
	name types.PaymentProvider
}

func NewMockPaymentProvider(name types.PaymentProvider) *MockPaymentProvider {
	return &MockPaymentProvider{name: name}
}

func (m *MockPaymentProvider) Name() types.PaymentProvider {
	return m.name
}

func (m *MockPaymentProvider) CreateCheckout(ctx context.Context, payable *base.Payable) (*base.CheckoutSession, error) {
	args := m.Called(ctx, payable)
	if s, ok := args.Get(0).(*base.CheckoutSession); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPaymentProvider) CapturePayment(ctx context.Context, inv *invoice.Invoice, opts base.CaptureOptions) (*base.PaymentResult, error) {
	args := m.Called(ctx, inv, opts)
	if r, ok := args.Get(0).(*base.PaymentResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPaymentProvider) Refund(ctx context.Context, p *payment.Payment, amount *int64, opts base.RefundOptions) (*base.RefundResult, error) {
	args := m.Called(ctx, p, amount, opts)
	if r, ok := args.Get(0).(*base.RefundResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPaymentProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*base.Event, error) {
	args := m.Called(ctx, payload, signature)
	if e, ok := args.Get(0).(*base.Event); ok {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPaymentProvider) GetPaymentStatus(ctx context.Context, ref string) (types.PaymentStatus, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(types.PaymentStatus), args.Error(1)
}
