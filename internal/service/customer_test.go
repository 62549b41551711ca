package service

import (
	"testing"

	"github.com/saasinvoice/billing/internal/api/dto"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type CustomerServiceSuite struct {
	serviceTestSuite
	service CustomerService
}

func TestCustomerService(t *testing.T) {
	suite.Run(t, new(CustomerServiceSuite))
}

func (s *CustomerServiceSuite) SetupTest() {
	s.serviceTestSuite.SetupTest()
	s.service = NewCustomerService(s.params)
}

func (s *CustomerServiceSuite) TestUpdateMeCreatesProfile() {
	ctx := s.AsUser("user_1", types.RoleUser)

	_, err := s.service.GetMe(ctx)
	s.True(ierr.IsNotFound(err))

	resp, err := s.service.UpdateMe(ctx, dto.UpdateCustomerRequest{
		CompanyName: lo.ToPtr("Acme Inc"),
		Country:     lo.ToPtr("US"),
	})
	s.NoError(err)
	s.Equal("user_1", resp.UserID)
	s.Equal("user_1@example.com", resp.Email)
	s.Equal("Acme Inc", resp.CompanyName)

	again, err := s.service.UpdateMe(ctx, dto.UpdateCustomerRequest{City: lo.ToPtr("Berlin")})
	s.NoError(err)
	s.Equal(resp.ID, again.ID)
	s.Equal("Acme Inc", again.CompanyName)
	s.Equal("Berlin", again.City)

	me, err := s.service.GetMe(ctx)
	s.NoError(err)
	s.Equal("Berlin", me.City)
}

func (s *CustomerServiceSuite) TestUpdateMeValidates() {
	_, err := s.service.UpdateMe(s.AsUser("user_1", types.RoleUser), dto.UpdateCustomerRequest{
		Email: lo.ToPtr("not-an-email"),
	})
	s.True(ierr.IsValidation(err))
}

func (s *CustomerServiceSuite) TestGetCustomer() {
	cust := s.seedCustomer("user_1")

	tests := []struct {
		name    string
		userID  string
		role    types.Role
		id      string
		wantErr func(error) bool
	}{
		{name: "own profile", userID: "user_1", role: types.RoleUser, id: cust.ID},
		{name: "staff", userID: "user_9", role: types.RoleAccountant, id: cust.ID},
		{name: "other customer", userID: "user_2", role: types.RoleUser, id: cust.ID, wantErr: ierr.IsPermissionDenied},
		{name: "unknown id as customer", userID: "user_2", role: types.RoleUser, id: "cust_missing", wantErr: ierr.IsPermissionDenied},
		{name: "unknown id as staff", userID: "user_9", role: types.RoleAdmin, id: "cust_missing", wantErr: ierr.IsNotFound},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			resp, err := s.service.GetCustomer(s.AsUser(tt.userID, tt.role), tt.id)
			if tt.wantErr != nil {
				s.True(tt.wantErr(err), "unexpected error %v", err)
				return
			}
			s.NoError(err)
			s.Equal(cust.ID, resp.ID)
		})
	}
}
