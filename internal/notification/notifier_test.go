package notification

import (
	"context"
	"testing"
	"time"

	"github.com/saasinvoice/billing/internal/config"
	"github.com/saasinvoice/billing/internal/domain/customer"
	"github.com/saasinvoice/billing/internal/domain/invoice"
	"github.com/saasinvoice/billing/internal/email"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/logger"
	"github.com/saasinvoice/billing/internal/publisher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event *publisher.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func TestInvoicePaidPublishesEvent(t *testing.T) {
	log := logger.NewNoopLogger()
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(e *publisher.Event) bool {
		return e.Name == publisher.EventInvoicePaid && e.Payload["invoice_id"] == "inv_1"
	})).Return(nil).Once()

	n := NewNotifier(email.NewService(email.NewClient(config.GetDefaultConfig()), log), pub, log)
	paidAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	err := n.InvoicePaid(context.Background(),
		&invoice.Invoice{ID: "inv_1", Number: "INV-2025-000001", Total: 2566, Currency: "USD", PaidAt: &paidAt},
		&customer.Customer{ID: "cust_1", Email: "jane@example.com"},
	)

	assert.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestInvoicePaidReportsPublishFailure(t *testing.T) {
	log := logger.NewNoopLogger()
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(ierr.NewError("broker down").Mark(ierr.ErrSystem))

	n := NewNotifier(email.NewService(email.NewClient(config.GetDefaultConfig()), log), pub, log)
	err := n.InvoicePaid(context.Background(), &invoice.Invoice{ID: "inv_1"}, nil)
	assert.Error(t, err)
}
