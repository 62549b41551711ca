package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/saasinvoice/billing/internal/api/dto"
	"github.com/saasinvoice/billing/internal/domain/invoice"
	"github.com/saasinvoice/billing/internal/domain/payment"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/integration/base"
	"github.com/saasinvoice/billing/internal/testutil"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type PaymentServiceSuite struct {
	serviceTestSuite
	service PaymentService
}

func TestPaymentService(t *testing.T) {
	suite.Run(t, new(PaymentServiceSuite))
}

func (s *PaymentServiceSuite) SetupTest() {
	s.serviceTestSuite.SetupTest()
	s.service = NewPaymentService(s.params)
}

// useMockProvider makes a scripted provider the default one
func (s *PaymentServiceSuite) useMockProvider() *testutil.MockPaymentProvider {
	provider := testutil.NewMockPaymentProvider(types.PaymentProviderStripe)
	s.useProviders(provider)
	s.service = NewPaymentService(s.params)
	return provider
}

func (s *PaymentServiceSuite) payAsCustomer(inv *invoice.Invoice) (*dto.PayInvoiceResponse, error) {
	return s.service.PayInvoice(s.AsUser("user_1", types.RoleUser), inv.ID, dto.PayInvoiceRequest{})
}

func (s *PaymentServiceSuite) TestPayInvoice() {
	cust := s.seedCustomer("user_1")
	inv := s.seedOpenInvoice(cust, 2900)
	s.Equal(int64(3146), inv.Total)

	resp, err := s.payAsCustomer(inv)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, resp.Invoice.Status)
	s.Require().NotNil(resp.Payment)
	s.Equal(types.PaymentStatusSucceeded, resp.Payment.Status)
	s.Equal(types.PaymentProviderDummy, resp.Payment.Provider)
	s.Equal(int64(3146), resp.Payment.Amount)
	s.NotEmpty(resp.Payment.IdempotencyKey)
	s.Equal(1, s.GetNotifier().PaidCount(inv.ID))

	s.Run("paying again returns the settling payment", func() {
		again, err := s.payAsCustomer(inv)
		s.NoError(err)
		s.Equal(resp.Payment.ID, again.Payment.ID)
		s.Equal(1, s.GetNotifier().PaidCount(inv.ID))

		payments, err := NewInvoiceService(s.params).ListPayments(s.AsUser("user_1", types.RoleUser), inv.ID)
		s.NoError(err)
		s.Len(payments, 1)
	})

	s.Run("provider status matches", func() {
		status, err := s.service.GetPaymentStatus(s.AsUser("user_1", types.RoleUser), resp.Payment.ID)
		s.NoError(err)
		s.Equal(types.PaymentStatusSucceeded, status.Status)
		s.Equal(types.PaymentStatusSucceeded, status.ProviderStatus)
	})

	s.Run("other customers cannot see the payment", func() {
		_, err := s.service.GetPayment(s.AsUser("user_2", types.RoleUser), resp.Payment.ID)
		s.True(ierr.IsPermissionDenied(err))
	})
}

func (s *PaymentServiceSuite) TestPayRequiresOpenInvoice() {
	cust := s.seedCustomer("user_1")
	draft := s.seedDraftInvoice(cust, 2900)

	_, err := s.payAsCustomer(draft)
	s.True(ierr.IsInvalidState(err))

	open := s.seedOpenInvoice(cust, 2900)
	_, err = NewInvoiceService(s.params).VoidInvoice(s.AsOwner(), open.ID)
	s.Require().NoError(err)

	_, err = s.payAsCustomer(open)
	s.True(ierr.IsInvalidState(err))

	_, err = s.service.PayInvoice(s.AsUser("user_2", types.RoleUser), open.ID, dto.PayInvoiceRequest{})
	s.True(ierr.IsPermissionDenied(err))
}

func (s *PaymentServiceSuite) TestPayZeroTotalSkipsProvider() {
	provider := s.useMockProvider()
	cust := s.seedCustomer("user_1")
	inv := s.seedOpenInvoice(cust, 0)

	resp, err := s.payAsCustomer(inv)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, resp.Invoice.Status)
	s.Nil(resp.Payment)
	s.Equal(1, s.GetNotifier().PaidCount(inv.ID))
	provider.AssertNotCalled(s.T(), "CapturePayment", mock.Anything, mock.Anything, mock.Anything)
}

func (s *PaymentServiceSuite) TestPayTimeoutIsOutcomeUnknown() {
	cfg := s.GetConfig()
	timeout := cfg.Payments.CaptureTimeout
	cfg.Payments.CaptureTimeout = 20 * time.Millisecond
	defer func() { cfg.Payments.CaptureTimeout = timeout }()

	provider := s.useMockProvider()
	provider.On("CapturePayment", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	cust := s.seedCustomer("user_1")
	inv := s.seedOpenInvoice(cust, 2900)

	_, err := s.payAsCustomer(inv)
	s.True(ierr.IsOutcomeUnknown(err), "unexpected error %v", err)

	s.Equal(types.InvoiceStatusOpen, s.getInvoice(inv.ID).Status)
	payments, err := s.GetStores().PaymentRepo.ListByInvoice(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Empty(payments)
	s.Zero(s.GetNotifier().PaidCount(inv.ID))
}

func (s *PaymentServiceSuite) TestDeclinedPaymentIsRecorded() {
	provider := s.useMockProvider()
	cust := s.seedCustomer("user_1")
	inv := s.seedOpenInvoice(cust, 2900)

	provider.On("CapturePayment", mock.Anything, mock.Anything, mock.Anything).
		Return(&base.PaymentResult{
			ProviderRef:   "pi_declined",
			Status:        types.PaymentStatusFailed,
			Amount:        inv.Total,
			Currency:      inv.Currency,
			ProcessedAt:   time.Now().UTC(),
			FailureReason: lo.ToPtr("card_declined"),
		}, nil).Once()
	provider.On("CapturePayment", mock.Anything, mock.Anything, mock.Anything).
		Return(&base.PaymentResult{
			ProviderRef: "pi_retry",
			Status:      types.PaymentStatusSucceeded,
			Amount:      inv.Total,
			Currency:    inv.Currency,
			ProcessedAt: time.Now().UTC(),
		}, nil).Once()

	_, err := s.payAsCustomer(inv)
	s.True(ierr.IsProvider(err), "unexpected error %v", err)
	s.Equal(types.InvoiceStatusOpen, s.getInvoice(inv.ID).Status)

	resp, err := s.payAsCustomer(inv)
	s.NoError(err)
	s.Equal("pi_retry", resp.Payment.ProviderRef)
	s.Equal(types.InvoiceStatusPaid, resp.Invoice.Status)

	payments, err := s.GetStores().PaymentRepo.ListByInvoice(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Len(payments, 2)
	provider.AssertExpectations(s.T())
}

func (s *PaymentServiceSuite) TestDeclinesWithoutReferenceAreRecordedApart() {
	provider := s.useMockProvider()
	cust := s.seedCustomer("user_1")
	inv := s.seedOpenInvoice(cust, 2900)

	provider.On("CapturePayment", mock.Anything, mock.Anything, mock.Anything).
		Return(&base.PaymentResult{
			Status:        types.PaymentStatusFailed,
			Amount:        inv.Total,
			Currency:      inv.Currency,
			ProcessedAt:   time.Now().UTC(),
			FailureReason: lo.ToPtr("card_declined"),
		}, nil).Twice()

	for i := 0; i < 2; i++ {
		_, err := s.payAsCustomer(inv)
		s.True(ierr.IsProvider(err), "attempt %d: unexpected error %v", i, err)
	}

	payments, err := s.GetStores().PaymentRepo.ListByInvoice(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Require().Len(payments, 2)
	s.NotEqual(payments[0].ProviderRef, payments[1].ProviderRef)
	for _, p := range payments {
		s.Equal(types.PaymentStatusFailed, p.Status)
		s.Equal(localRefPrefix+p.ID, p.ProviderRef)
	}
	s.Equal(types.InvoiceStatusOpen, s.getInvoice(inv.ID).Status)
	provider.AssertExpectations(s.T())
}

func (s *PaymentServiceSuite) TestCreateInvoiceCheckout() {
	cust := s.seedCustomer("user_1")
	inv := s.seedOpenInvoice(cust, 2900)

	resp, err := s.service.CreateInvoiceCheckout(s.AsUser("user_1", types.RoleUser), inv.ID, dto.CheckoutRequest{})
	s.NoError(err)
	s.Equal(inv.Total, resp.Amount)
	s.Equal("open", resp.Status)

	draft := s.seedDraftInvoice(cust, 100)
	_, err = s.service.CreateInvoiceCheckout(s.AsUser("user_1", types.RoleUser), draft.ID, dto.CheckoutRequest{})
	s.True(ierr.IsInvalidState(err))
}

func (s *PaymentServiceSuite) TestRefundPayment() {
	cust := s.seedCustomer("user_1")
	inv := s.seedOpenInvoice(cust, 2900)
	paid, err := s.payAsCustomer(inv)
	s.Require().NoError(err)
	paymentID := paid.Payment.ID

	s.Run("more than the payment is rejected without a record", func() {
		_, err := s.service.RefundPayment(s.AsOwner(), paymentID, dto.RefundRequest{Amount: lo.ToPtr(inv.Total + 1)})
		s.True(ierr.IsValidation(err))

		refunds, err := s.GetStores().PaymentRepo.ListRefunds(s.GetContext(), paymentID)
		s.NoError(err)
		s.Empty(refunds)
	})

	s.Run("customers cannot refund", func() {
		_, err := s.service.RefundPayment(s.AsUser("user_1", types.RoleUser), paymentID, dto.RefundRequest{})
		s.True(ierr.IsPermissionDenied(err))
	})

	s.Run("partial refunds add up to the payment", func() {
		first, err := s.service.RefundPayment(s.AsOwner(), paymentID, dto.RefundRequest{Amount: lo.ToPtr(int64(1000))})
		s.NoError(err)
		s.Equal(int64(1000), first.Amount)
		s.Equal(inv.Total-1000, first.Remaining)

		_, err = s.service.RefundPayment(s.AsOwner(), paymentID, dto.RefundRequest{Amount: lo.ToPtr(inv.Total)})
		s.True(ierr.IsValidation(err))

		rest, err := s.service.RefundPayment(s.AsOwner(), paymentID, dto.RefundRequest{})
		s.NoError(err)
		s.Equal(inv.Total-1000, rest.Amount)
		s.Zero(rest.Remaining)

		_, err = s.service.RefundPayment(s.AsOwner(), paymentID, dto.RefundRequest{})
		s.True(ierr.IsValidation(err))

		refunds, err := s.GetStores().PaymentRepo.ListRefunds(s.GetContext(), paymentID)
		s.NoError(err)
		s.Len(refunds, 2)
	})
}

func (s *PaymentServiceSuite) TestConcurrentRefundsStayWithinPayment() {
	cust := s.seedCustomer("user_1")
	inv := s.seedOpenInvoice(cust, 2900)
	paid, err := s.payAsCustomer(inv)
	s.Require().NoError(err)
	paymentID := paid.Payment.ID

	var (
		wg       conc.WaitGroup
		accepted atomic.Int32
		rejected atomic.Int32
	)
	for i := 0; i < 6; i++ {
		wg.Go(func() {
			_, err := s.service.RefundPayment(s.AsOwner(), paymentID, dto.RefundRequest{Amount: lo.ToPtr(int64(1000))})
			switch {
			case err == nil:
				accepted.Add(1)
			case ierr.IsValidation(err):
				rejected.Add(1)
			default:
				s.Failf("unexpected refund error", "%v", err)
			}
		})
	}
	wg.Wait()

	s.Equal(int32(2), accepted.Load())
	s.Equal(int32(4), rejected.Load())

	refunds, err := s.GetStores().PaymentRepo.ListRefunds(s.GetContext(), paymentID)
	s.NoError(err)
	s.Len(refunds, 2)
	total := lo.SumBy(refunds, func(r *payment.Refund) int64 { return r.Amount })
	s.LessOrEqual(total, paid.Payment.Amount)
}

func (s *PaymentServiceSuite) TestRefundFailedPayment() {
	provider := s.useMockProvider()
	cust := s.seedCustomer("user_1")
	inv := s.seedOpenInvoice(cust, 2900)
	provider.On("CapturePayment", mock.Anything, mock.Anything, mock.Anything).
		Return(&base.PaymentResult{
			ProviderRef:   "pi_declined",
			Status:        types.PaymentStatusFailed,
			Amount:        inv.Total,
			Currency:      inv.Currency,
			FailureReason: lo.ToPtr("insufficient_funds"),
		}, nil)

	_, err := s.payAsCustomer(inv)
	s.Require().True(ierr.IsProvider(err))

	p, err := s.GetStores().PaymentRepo.GetByProviderRef(s.GetContext(), types.PaymentProviderStripe, "pi_declined")
	s.Require().NoError(err)
	s.Equal("insufficient_funds", lo.FromPtr(p.FailureReason))

	_, err = s.service.RefundPayment(s.AsOwner(), p.ID, dto.RefundRequest{})
	s.True(ierr.IsInvalidState(err))
	provider.AssertNotCalled(s.T(), "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
