package service

import (
	"testing"
	"time"

	"github.com/saasinvoice/billing/internal/api/dto"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type CouponServiceSuite struct {
	serviceTestSuite
	service CouponService
}

func TestCouponService(t *testing.T) {
	suite.Run(t, new(CouponServiceSuite))
}

func (s *CouponServiceSuite) SetupTest() {
	s.serviceTestSuite.SetupTest()
	s.service = NewCouponService(s.params)
}

func (s *CouponServiceSuite) TestCreateCoupon() {
	req := dto.CreateCouponRequest{
		Code:       "WELCOME20",
		Kind:       types.CouponKindPercent,
		PercentOff: lo.ToPtr(int64(20)),
	}

	resp, err := s.service.CreateCoupon(s.AsOwner(), req)
	s.NoError(err)
	s.True(resp.Valid)
	s.Zero(resp.TimesRedeemed)

	_, err = s.service.CreateCoupon(s.AsOwner(), req)
	s.True(ierr.IsAlreadyExists(err))

	_, err = s.service.CreateCoupon(s.AsUser("user_1", types.RoleUser), dto.CreateCouponRequest{
		Code:       "FREE",
		Kind:       types.CouponKindPercent,
		PercentOff: lo.ToPtr(int64(100)),
	})
	s.True(ierr.IsPermissionDenied(err))

	_, err = s.service.CreateCoupon(s.AsOwner(), dto.CreateCouponRequest{
		Code:       "TOOMUCH",
		Kind:       types.CouponKindPercent,
		PercentOff: lo.ToPtr(int64(120)),
	})
	s.True(ierr.IsValidation(err))
}

func (s *CouponServiceSuite) TestPreviewCoupon() {
	s.seedCoupon("WELCOME20", 20, nil)
	expired := s.seedCoupon("OLD", 50, nil)
	expired.ExpiresAt = lo.ToPtr(time.Now().Add(-time.Hour))
	s.Require().NoError(s.GetStores().CouponRepo.Update(s.GetContext(), expired))

	_, err := s.service.CreateCoupon(s.AsOwner(), dto.CreateCouponRequest{
		Code:      "TENEURO",
		Kind:      types.CouponKindFixed,
		AmountOff: lo.ToPtr(int64(1000)),
		Currency:  lo.ToPtr("EUR"),
	})
	s.Require().NoError(err)

	tests := []struct {
		name         string
		code         string
		req          dto.PreviewCouponRequest
		wantValid    bool
		wantDiscount int64
		wantTotal    int64
	}{
		{
			name:         "percent off",
			code:         "WELCOME20",
			req:          dto.PreviewCouponRequest{Amount: 2900, Currency: "USD"},
			wantValid:    true,
			wantDiscount: 580,
			wantTotal:    2320,
		},
		{
			name:      "expired coupon gives nothing",
			code:      "OLD",
			req:       dto.PreviewCouponRequest{Amount: 2900, Currency: "USD"},
			wantTotal: 2900,
		},
		{
			name:         "fixed amount capped at the price",
			code:         "TENEURO",
			req:          dto.PreviewCouponRequest{Amount: 600, Currency: "eur"},
			wantValid:    true,
			wantDiscount: 600,
			wantTotal:    0,
		},
		{
			name:      "fixed amount in another currency",
			code:      "TENEURO",
			req:       dto.PreviewCouponRequest{Amount: 2900, Currency: "USD"},
			wantTotal: 2900,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			resp, err := s.service.PreviewCoupon(s.AsUser("user_1", types.RoleUser), tt.code, tt.req)
			s.NoError(err)
			s.Equal(tt.wantValid, resp.Valid)
			s.Equal(tt.wantDiscount, resp.Discount)
			s.Equal(tt.wantTotal, resp.Total)
		})
	}

	_, err = s.service.PreviewCoupon(s.AsUser("user_1", types.RoleUser), "MISSING", dto.PreviewCouponRequest{Amount: 100, Currency: "USD"})
	s.True(ierr.IsNotFound(err))
}

func (s *CouponServiceSuite) TestListCouponsRequiresStaff() {
	s.seedCoupon("WELCOME20", 20, nil)

	_, err := s.service.ListCoupons(s.AsUser("user_1", types.RoleUser), nil)
	s.True(ierr.IsPermissionDenied(err))

	resp, err := s.service.ListCoupons(s.AsUser("user_2", types.RoleAccountant), nil)
	s.NoError(err)
	s.Len(resp.Items, 1)
}

func (s *CouponServiceSuite) TestDeactivateCoupon() {
	c := s.seedCoupon("WELCOME20", 20, nil)
	p := s.seedPlan(2900, types.BillingIntervalMonthly, 0)

	s.NoError(s.service.DeactivateCoupon(s.AsOwner(), c.ID))

	got, err := s.service.GetCoupon(s.AsOwner(), c.ID)
	s.NoError(err)
	s.False(got.Active)
	s.False(got.Valid)

	_, err = NewSubscriptionService(s.params).CreateSubscription(
		s.AsUser("user_1", types.RoleUser),
		dto.CreateSubscriptionRequest{PlanID: p.ID, CouponCode: lo.ToPtr("WELCOME20")},
	)
	s.True(ierr.IsValidation(err))
}
