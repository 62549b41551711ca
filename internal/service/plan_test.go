package service

import (
	"testing"

	"github.com/saasinvoice/billing/internal/api/dto"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type PlanServiceSuite struct {
	serviceTestSuite
	service PlanService
}

func TestPlanService(t *testing.T) {
	suite.Run(t, new(PlanServiceSuite))
}

func (s *PlanServiceSuite) SetupTest() {
	s.serviceTestSuite.SetupTest()
	s.service = NewPlanService(s.params)
}

func (s *PlanServiceSuite) TestCreatePlan() {
	tests := []struct {
		name    string
		role    types.Role
		req     dto.CreatePlanRequest
		wantErr func(error) bool
	}{
		{
			name: "owner creates monthly plan",
			role: types.RoleOwner,
			req: dto.CreatePlanRequest{
				ProductName: "Invoicing",
				Name:        "Pro",
				Price:       2900,
				Currency:    "usd",
				Interval:    types.BillingIntervalMonthly,
			},
		},
		{
			name: "user may not create plans",
			role: types.RoleUser,
			req: dto.CreatePlanRequest{
				Name:     "Pro",
				Price:    2900,
				Currency: "USD",
				Interval: types.BillingIntervalMonthly,
			},
			wantErr: ierr.IsPermissionDenied,
		},
		{
			name: "unknown interval",
			role: types.RoleAdmin,
			req: dto.CreatePlanRequest{
				Name:     "Pro",
				Price:    2900,
				Currency: "USD",
				Interval: "weekly",
			},
			wantErr: ierr.IsValidation,
		},
		{
			name: "bad currency",
			role: types.RoleAdmin,
			req: dto.CreatePlanRequest{
				Name:     "Pro",
				Price:    2900,
				Currency: "dollars",
				Interval: types.BillingIntervalMonthly,
			},
			wantErr: ierr.IsValidation,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			resp, err := s.service.CreatePlan(s.AsUser("user_1", tt.role), tt.req)
			if tt.wantErr != nil {
				s.Error(err)
				s.True(tt.wantErr(err), "unexpected error %v", err)
				return
			}
			s.NoError(err)
			s.True(resp.Active)
			s.Equal("USD", resp.Currency)
			s.Equal(int64(2900), resp.MonthlyPrice)
		})
	}
}

func (s *PlanServiceSuite) TestPricingLockedWhileSubscribed() {
	p := s.seedPlan(2900, types.BillingIntervalMonthly, 0)
	_, err := NewSubscriptionService(s.params).CreateSubscription(
		s.AsUser("user_1", types.RoleUser),
		dto.CreateSubscriptionRequest{PlanID: p.ID},
	)
	s.Require().NoError(err)

	_, err = s.service.UpdatePlan(s.AsOwner(), p.ID, dto.UpdatePlanRequest{Price: lo.ToPtr(int64(3900))})
	s.True(ierr.IsValidation(err))

	_, err = s.service.UpdatePlan(s.AsOwner(), p.ID, dto.UpdatePlanRequest{Interval: lo.ToPtr(types.BillingIntervalYearly)})
	s.True(ierr.IsValidation(err))

	resp, err := s.service.UpdatePlan(s.AsOwner(), p.ID, dto.UpdatePlanRequest{Description: lo.ToPtr("Most popular")})
	s.NoError(err)
	s.Equal("Most popular", resp.Description)
	s.Equal(int64(2900), resp.Price)
}

func (s *PlanServiceSuite) TestPricingEditableWithoutSubscribers() {
	p := s.seedPlan(2900, types.BillingIntervalMonthly, 0)

	// warm the cache so the update has to invalidate it
	_, err := s.service.GetPlan(s.AsOwner(), p.ID)
	s.Require().NoError(err)

	_, err = s.service.UpdatePlan(s.AsOwner(), p.ID, dto.UpdatePlanRequest{Price: lo.ToPtr(int64(3900))})
	s.NoError(err)

	got, err := s.service.GetPlan(s.AsUser("user_1", types.RoleUser), p.ID)
	s.NoError(err)
	s.Equal(int64(3900), got.Price)
}

func (s *PlanServiceSuite) TestDeactivatePlan() {
	p := s.seedPlan(2900, types.BillingIntervalMonthly, 0)
	s.seedPlan(1900, types.BillingIntervalMonthly, 0)

	s.NoError(s.service.DeactivatePlan(s.AsOwner(), p.ID))
	s.NoError(s.service.DeactivatePlan(s.AsOwner(), p.ID))

	userView, err := s.service.ListPlans(s.AsUser("user_1", types.RoleUser), nil)
	s.NoError(err)
	s.Len(userView.Items, 1)
	s.Equal(int64(1900), userView.Items[0].Price)

	staffView, err := s.service.ListPlans(s.AsOwner(), nil)
	s.NoError(err)
	s.Len(staffView.Items, 2)

	_, err = NewSubscriptionService(s.params).CreateSubscription(
		s.AsUser("user_1", types.RoleUser),
		dto.CreateSubscriptionRequest{PlanID: p.ID},
	)
	s.True(ierr.IsValidation(err))

	s.True(ierr.IsPermissionDenied(s.service.DeactivatePlan(s.AsUser("user_1", types.RoleUser), p.ID)))
}
