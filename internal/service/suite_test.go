package service

import (
	"time"

	"github.com/saasinvoice/billing/internal/api/dto"
	"github.com/saasinvoice/billing/internal/domain/coupon"
	"github.com/saasinvoice/billing/internal/domain/customer"
	"github.com/saasinvoice/billing/internal/domain/invoice"
	"github.com/saasinvoice/billing/internal/domain/plan"
	"github.com/saasinvoice/billing/internal/integration/base"
	"github.com/saasinvoice/billing/internal/testutil"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/samber/lo"
)

// serviceTestSuite wires ServiceParams against the in-memory stores
type serviceTestSuite struct {
	testutil.BaseServiceTestSuite
	params ServiceParams
}

func (s *serviceTestSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.params = s.newServiceParams()
}

func (s *serviceTestSuite) newServiceParams() ServiceParams {
	stores := s.GetStores()
	return NewServiceParams(
		s.GetLogger(),
		s.GetConfig(),
		s.GetDB(),
		s.GetCache(),
		s.GetRBAC(),
		s.GetMetrics(),
		s.GetSentry(),
		s.GetTaxRates(),
		s.GetProviders(),
		s.GetNotifier(),
		s.GetPDFRenderer(),
		nil,
		stores.PlanRepo,
		stores.CouponRepo,
		stores.CustomerRepo,
		stores.SubRepo,
		stores.InvoiceRepo,
		stores.PaymentRepo,
	)
}

func (s *serviceTestSuite) useProviders(providers ...base.Provider) {
	s.UseProviders(providers...)
	s.params.Providers = s.GetProviders()
}

func (s *serviceTestSuite) seedPlan(price int64, interval types.BillingInterval, trialDays int) *plan.Plan {
	now := time.Now().UTC()
	p := &plan.Plan{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN),
		ProductName: "Invoicing",
		Name:        "Pro",
		Price:       price,
		Currency:    "USD",
		Interval:    interval,
		TrialDays:   trialDays,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.Require().NoError(s.GetStores().PlanRepo.Create(s.GetContext(), p))
	return p
}

func (s *serviceTestSuite) seedCoupon(code string, percentOff int64, maxRedemptions *int64) *coupon.Coupon {
	now := time.Now().UTC()
	c := &coupon.Coupon{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_COUPON),
		Code:           code,
		Kind:           types.CouponKindPercent,
		PercentOff:     lo.ToPtr(percentOff),
		MaxRedemptions: maxRedemptions,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.Require().NoError(s.GetStores().CouponRepo.Create(s.GetContext(), c))
	return c
}

func (s *serviceTestSuite) seedCustomer(userID string) *customer.Customer {
	now := time.Now().UTC()
	c := &customer.Customer{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CUSTOMER),
		UserID:    userID,
		Email:     userID + "@example.com",
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Require().NoError(s.GetStores().CustomerRepo.Create(s.GetContext(), c))
	return c
}

// seedDraftInvoice creates a draft with one item of unitAmount for cust
func (s *serviceTestSuite) seedDraftInvoice(cust *customer.Customer, unitAmount int64) *invoice.Invoice {
	resp, err := NewInvoiceService(s.params).CreateInvoice(s.AsOwner(), dto.CreateInvoiceRequest{
		CustomerID: cust.ID,
		Currency:   "usd",
		Items: []dto.CreateInvoiceItemRequest{
			{Description: "Consulting", Quantity: 1, UnitAmount: unitAmount},
		},
	})
	s.Require().NoError(err)
	return resp.Invoice
}

// seedOpenInvoice creates and finalizes an invoice for cust
func (s *serviceTestSuite) seedOpenInvoice(cust *customer.Customer, unitAmount int64) *invoice.Invoice {
	draft := s.seedDraftInvoice(cust, unitAmount)
	resp, err := NewInvoiceService(s.params).FinalizeInvoice(s.AsOwner(), draft.ID)
	s.Require().NoError(err)
	s.Require().Equal(types.InvoiceStatusOpen, resp.Status)
	return resp.Invoice
}

func (s *serviceTestSuite) getInvoice(id string) *invoice.Invoice {
	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), id)
	s.Require().NoError(err)
	return inv
}
