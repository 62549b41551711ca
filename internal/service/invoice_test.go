package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/saasinvoice/billing/internal/api/dto"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type InvoiceServiceSuite struct {
	serviceTestSuite
	service InvoiceService
}

func TestInvoiceService(t *testing.T) {
	suite.Run(t, new(InvoiceServiceSuite))
}

func (s *InvoiceServiceSuite) SetupTest() {
	s.serviceTestSuite.SetupTest()
	s.service = NewInvoiceService(s.params)
}

func (s *InvoiceServiceSuite) TestCreateInvoiceNumbersSequentially() {
	cust := s.seedCustomer("user_1")
	year := time.Now().UTC().Year()

	for i := 1; i <= 3; i++ {
		inv := s.seedDraftInvoice(cust, 1000)
		s.Equal(fmt.Sprintf("INV-%d-%06d", year, i), inv.Number)
		s.Equal(types.InvoiceStatusDraft, inv.Status)
		s.Equal("USD", inv.Currency)
	}
}

func (s *InvoiceServiceSuite) TestCreateInvoiceValidation() {
	cust := s.seedCustomer("user_1")
	other := s.seedCustomer("user_2")
	p := s.seedPlan(2900, types.BillingIntervalMonthly, 0)
	sub, err := NewSubscriptionService(s.params).CreateSubscription(
		s.AsUser("user_2", types.RoleUser),
		dto.CreateSubscriptionRequest{PlanID: p.ID},
	)
	s.Require().NoError(err)
	s.Require().Equal(other.ID, sub.CustomerID)

	tests := []struct {
		name    string
		req     dto.CreateInvoiceRequest
		wantErr func(error) bool
	}{
		{
			name:    "unknown customer",
			req:     dto.CreateInvoiceRequest{CustomerID: "cust_missing", Currency: "USD"},
			wantErr: ierr.IsNotFound,
		},
		{
			name:    "subscription of another customer",
			req:     dto.CreateInvoiceRequest{CustomerID: cust.ID, SubscriptionID: &sub.ID, Currency: "USD"},
			wantErr: ierr.IsValidation,
		},
		{
			name: "zero quantity item",
			req: dto.CreateInvoiceRequest{
				CustomerID: cust.ID,
				Currency:   "USD",
				Items:      []dto.CreateInvoiceItemRequest{{Description: "Seats", Quantity: 0, UnitAmount: 100}},
			},
			wantErr: ierr.IsValidation,
		},
		{
			name:    "negative discount",
			req:     dto.CreateInvoiceRequest{CustomerID: cust.ID, Currency: "USD", Discount: -1},
			wantErr: ierr.IsValidation,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.CreateInvoice(s.AsOwner(), tt.req)
			s.True(tt.wantErr(err), "unexpected error %v", err)
		})
	}

	_, err = s.service.CreateInvoice(s.AsUser("user_1", types.RoleUser), dto.CreateInvoiceRequest{CustomerID: cust.ID, Currency: "USD"})
	s.True(ierr.IsPermissionDenied(err))
}

func (s *InvoiceServiceSuite) TestDraftItems() {
	cust := s.seedCustomer("user_1")
	inv := s.seedDraftInvoice(cust, 1000)
	s.Equal(int64(1000), inv.Subtotal)
	s.Equal(int64(85), inv.Tax)
	s.Equal(int64(1085), inv.Total)

	resp, err := s.service.AddItem(s.AsOwner(), inv.ID, dto.CreateInvoiceItemRequest{
		Description: "Seats",
		Quantity:    3,
		UnitAmount:  500,
	})
	s.NoError(err)
	s.Len(resp.Items, 2)
	s.Equal(1, resp.Items[1].Position)
	s.Equal(int64(2500), resp.Subtotal)
	s.Equal(int64(212), resp.Tax)
	s.Equal(int64(2712), resp.Total)

	resp, err = s.service.RemoveItem(s.AsOwner(), inv.ID, inv.Items[0].ID)
	s.NoError(err)
	s.Len(resp.Items, 1)
	s.Equal(int64(1500), resp.Subtotal)

	_, err = s.service.RemoveItem(s.AsOwner(), inv.ID, "inv_line_missing")
	s.True(ierr.IsNotFound(err))

	stored := s.getInvoice(inv.ID)
	s.Len(stored.Items, 1)
	s.Equal(int64(1500), stored.Subtotal)
}

func (s *InvoiceServiceSuite) TestFinalizeInvoice() {
	cust := s.seedCustomer("user_1")
	inv := s.seedDraftInvoice(cust, 2900)

	resp, err := s.service.FinalizeInvoice(s.AsUser("user_9", types.RoleAccountant), inv.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusOpen, resp.Status)
	s.NotNil(resp.FinalizedAt)
	s.NotNil(resp.IssuedAt)
	s.Require().NotNil(resp.DueDate)
	s.Equal(30*24*time.Hour, resp.DueDate.Sub(*resp.IssuedAt))

	_, err = s.service.FinalizeInvoice(s.AsOwner(), inv.ID)
	s.True(ierr.IsInvalidState(err))

	_, err = s.service.AddItem(s.AsOwner(), inv.ID, dto.CreateInvoiceItemRequest{Description: "Late", Quantity: 1, UnitAmount: 1})
	s.True(ierr.IsInvalidState(err))

	err = s.service.DeleteDraft(s.AsOwner(), inv.ID)
	s.True(ierr.IsInvalidState(err))

	_, err = s.service.FinalizeInvoice(s.AsUser("user_1", types.RoleUser), inv.ID)
	s.True(ierr.IsPermissionDenied(err))
}

func (s *InvoiceServiceSuite) TestFinalizeRacingItemEdits() {
	cust := s.seedCustomer("user_1")

	for i := 0; i < 10; i++ {
		inv := s.seedDraftInvoice(cust, 1000)

		var wg conc.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Go(func() {
				_, err := s.service.AddItem(s.AsOwner(), inv.ID, dto.CreateInvoiceItemRequest{
					Description: fmt.Sprintf("Extra %d", j),
					Quantity:    1,
					UnitAmount:  250,
				})
				if err != nil {
					s.True(ierr.IsInvalidState(err), err.Error())
				}
			})
		}
		wg.Go(func() {
			_, err := s.service.FinalizeInvoice(s.AsOwner(), inv.ID)
			s.NoError(err)
		})
		wg.Wait()

		stored := s.getInvoice(inv.ID)
		s.Equal(types.InvoiceStatusOpen, stored.Status)
		var sum int64
		for _, item := range stored.Items {
			sum += item.Total()
		}
		s.Equal(sum, stored.Subtotal)
		s.Equal(stored.Subtotal+stored.Tax-stored.Discount, stored.Total)
	}
}

func (s *InvoiceServiceSuite) TestDeleteDraft() {
	cust := s.seedCustomer("user_1")
	inv := s.seedDraftInvoice(cust, 2900)

	s.NoError(s.service.DeleteDraft(s.AsOwner(), inv.ID))

	_, err := s.service.GetInvoice(s.AsOwner(), inv.ID)
	s.True(ierr.IsNotFound(err))
}

func (s *InvoiceServiceSuite) TestMarkAsPaidNotifiesOnce() {
	cust := s.seedCustomer("user_1")
	inv := s.seedOpenInvoice(cust, 2900)

	first, err := s.service.MarkAsPaid(s.AsOwner(), inv.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, first.Status)
	s.Require().NotNil(first.PaidAt)

	second, err := s.service.MarkAsPaid(s.AsOwner(), inv.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, second.Status)
	s.Equal(first.PaidAt.Unix(), second.PaidAt.Unix())

	s.Equal(1, s.GetNotifier().PaidCount(inv.ID))
}

func (s *InvoiceServiceSuite) TestConcurrentMarkAsPaid() {
	cust := s.seedCustomer("user_1")
	inv := s.seedOpenInvoice(cust, 2900)

	var wg conc.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Go(func() {
			resp, err := s.service.MarkAsPaid(s.AsOwner(), inv.ID)
			s.NoError(err)
			s.Equal(types.InvoiceStatusPaid, resp.Status)
		})
	}
	wg.Wait()

	s.Equal(1, s.GetNotifier().PaidCount(inv.ID))
}

func (s *InvoiceServiceSuite) TestVoidAndUncollectible() {
	cust := s.seedCustomer("user_1")

	s.Run("paid invoice cannot be voided", func() {
		inv := s.seedOpenInvoice(cust, 2900)
		_, err := s.service.MarkAsPaid(s.AsOwner(), inv.ID)
		s.Require().NoError(err)

		_, err = s.service.VoidInvoice(s.AsOwner(), inv.ID)
		s.True(ierr.IsInvalidState(err))
		s.Equal(types.InvoiceStatusPaid, s.getInvoice(inv.ID).Status)

		_, err = s.service.MarkUncollectible(s.AsOwner(), inv.ID)
		s.True(ierr.IsInvalidState(err))
	})

	s.Run("void is idempotent", func() {
		inv := s.seedOpenInvoice(cust, 2900)
		first, err := s.service.VoidInvoice(s.AsOwner(), inv.ID)
		s.NoError(err)
		s.Equal(types.InvoiceStatusVoid, first.Status)

		second, err := s.service.VoidInvoice(s.AsOwner(), inv.ID)
		s.NoError(err)
		s.Equal(types.InvoiceStatusVoid, second.Status)

		_, err = s.service.MarkAsPaid(s.AsOwner(), inv.ID)
		s.True(ierr.IsInvalidState(err))
	})

	s.Run("uncollectible can still be voided", func() {
		inv := s.seedOpenInvoice(cust, 2900)
		resp, err := s.service.MarkUncollectible(s.AsOwner(), inv.ID)
		s.NoError(err)
		s.Equal(types.InvoiceStatusUncollectible, resp.Status)

		resp, err = s.service.VoidInvoice(s.AsOwner(), inv.ID)
		s.NoError(err)
		s.Equal(types.InvoiceStatusVoid, resp.Status)
	})
}

func (s *InvoiceServiceSuite) TestCustomerAccess() {
	cust := s.seedCustomer("user_1")
	s.seedCustomer("user_2")
	inv := s.seedOpenInvoice(cust, 2900)

	got, err := s.service.GetInvoice(s.AsUser("user_1", types.RoleUser), inv.ID)
	s.NoError(err)
	s.Equal(inv.Number, got.Number)

	_, err = s.service.GetInvoice(s.AsUser("user_2", types.RoleUser), inv.ID)
	s.True(ierr.IsPermissionDenied(err))

	_, err = s.service.GetInvoice(s.AsUser("user_2", types.RoleUser), "inv_missing")
	s.True(ierr.IsPermissionDenied(err))

	_, err = s.service.VoidInvoice(s.AsUser("user_1", types.RoleUser), inv.ID)
	s.True(ierr.IsPermissionDenied(err))

	mine, err := s.service.ListInvoices(s.AsUser("user_1", types.RoleUser), nil)
	s.NoError(err)
	s.Len(mine.Items, 1)

	theirs, err := s.service.ListInvoices(s.AsUser("user_2", types.RoleUser), nil)
	s.NoError(err)
	s.Empty(theirs.Items)

	filtered, err := s.service.ListInvoices(s.AsUser("user_2", types.RoleUser), &types.InvoiceFilter{CustomerID: cust.ID})
	s.NoError(err)
	s.Empty(filtered.Items)
}

func (s *InvoiceServiceSuite) TestRenderPDF() {
	cust := s.seedCustomer("user_1")
	draft := s.seedDraftInvoice(cust, 2900)

	_, err := s.service.RenderPDF(s.AsOwner(), draft.ID)
	s.True(ierr.IsInvalidState(err))

	inv := s.seedOpenInvoice(cust, 2900)
	s.GetPDFRenderer().On("RenderInvoice", mock.Anything, mock.Anything).Return([]byte("%PDF-1.7"), nil).Once()

	resp, err := s.service.RenderPDF(s.AsUser("user_1", types.RoleUser), inv.ID)
	s.NoError(err)
	s.Equal(inv.Number, resp.Number)
	s.Equal([]byte("%PDF-1.7"), resp.Data)
	s.Empty(resp.URL)
	s.GetPDFRenderer().AssertExpectations(s.T())
}
