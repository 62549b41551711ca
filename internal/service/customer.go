package service

import (
	"context"
	"time"

	"github.com/saasinvoice/billing/internal/api/dto"
	"github.com/saasinvoice/billing/internal/domain/customer"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/rbac"
	"github.com/saasinvoice/billing/internal/types"
)

type CustomerService interface {
	// GetMe returns the billing profile of the caller
	GetMe(ctx context.Context) (*dto.CustomerResponse, error)
	UpdateMe(ctx context.Context, req dto.UpdateCustomerRequest) (*dto.CustomerResponse, error)
	GetCustomer(ctx context.Context, id string) (*dto.CustomerResponse, error)
}

type customerService struct {
	ServiceParams
}

func NewCustomerService(params ServiceParams) CustomerService {
	return &customerService{ServiceParams: params}
}

func (s *customerService) GetMe(ctx context.Context) (*dto.CustomerResponse, error) {
	principal := types.GetPrincipal(ctx)
	if err := s.authorize(ctx, rbac.ActionRead, rbac.Collection(rbac.EntityCustomer)); err != nil {
		return nil, err
	}

	c, err := s.CustomerRepo.GetByUserID(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}
	return &dto.CustomerResponse{Customer: c}, nil
}

func (s *customerService) UpdateMe(ctx context.Context, req dto.UpdateCustomerRequest) (*dto.CustomerResponse, error) {
	principal := types.GetPrincipal(ctx)
	if err := s.authorize(ctx, rbac.ActionUpdate, rbac.Owned(rbac.EntityCustomer, principal.GetUserID())); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var c *customer.Customer
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		c, err = getOrCreateCustomer(ctx, s.CustomerRepo, principal)
		if err != nil {
			return err
		}
		req.Apply(c)
		c.UpdatedAt = time.Now().UTC()
		return s.CustomerRepo.Update(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("updated customer", "customer_id", c.ID, "user_id", c.UserID)
	return &dto.CustomerResponse{Customer: c}, nil
}

func (s *customerService) GetCustomer(ctx context.Context, id string) (*dto.CustomerResponse, error) {
	c, err := s.CustomerRepo.Get(ctx, id)
	if err != nil {
		if ierr.IsNotFound(err) {
			// hide whether the id exists from callers who could not see it
			if authErr := s.authorize(ctx, rbac.ActionRead, rbac.Owned(rbac.EntityCustomer, unknownOwner)); authErr != nil {
				return nil, authErr
			}
		}
		return nil, err
	}
	if err := s.authorize(ctx, rbac.ActionRead, rbac.Owned(rbac.EntityCustomer, c.UserID)); err != nil {
		return nil, err
	}
	return &dto.CustomerResponse{Customer: c}, nil
}

// getOrCreateCustomer returns the customer of principal, creating it from
// the principal's identity the first time. Callers run it inside a
// transaction so a concurrent first purchase cannot create two customers.
func getOrCreateCustomer(ctx context.Context, repo customer.Repository, principal *types.Principal) (*customer.Customer, error) {
	c, err := repo.GetByUserID(ctx, principal.UserID)
	if err == nil {
		return c, nil
	}
	if !ierr.IsNotFound(err) {
		return nil, err
	}

	now := time.Now().UTC()
	c = &customer.Customer{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CUSTOMER),
		UserID:    principal.UserID,
		Email:     principal.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := repo.Create(ctx, c); err != nil {
		// lost the race to another request of the same user
		if ierr.IsAlreadyExists(err) {
			return repo.GetByUserID(ctx, principal.UserID)
		}
		return nil, err
	}
	return c, nil
}
