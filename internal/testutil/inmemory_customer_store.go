package testutil

import (
	"context"

	"github.com/saasinvoice/billing/internal/domain/customer"
	ierr "github.com/saasinvoice/billing/internal/errors"
)

// InMemoryCustomerStore implements customer.Repository
type InMemoryCustomerStore struct {
	*InMemoryStore[*customer.Customer]
}

func NewInMemoryCustomerStore() *InMemoryCustomerStore {
	return &InMemoryCustomerStore{
		InMemoryStore: NewInMemoryStore("customer", func(c *customer.Customer) *customer.Customer {
			cp := *c
			return &cp
		}),
	}
}

// Create enforces the unique user_id the customers table has
func (s *InMemoryCustomerStore) Create(ctx context.Context, c *customer.Customer) error {
	if c == nil {
		return ierr.NewError("customer cannot be nil").Mark(ierr.ErrValidation)
	}
	if _, exists := s.Find(ctx, func(existing *customer.Customer) bool { return existing.UserID == c.UserID }); exists {
		return ierr.NewError("customer already exists").
			WithHint("A customer already exists for this user").
			WithReportableDetails(map[string]any{
				"user_id": c.UserID,
			}).
			Mark(ierr.ErrAlreadyExists)
	}
	return s.InMemoryStore.Create(ctx, c.ID, c)
}

func (s *InMemoryCustomerStore) Get(ctx context.Context, id string) (*customer.Customer, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryCustomerStore) GetByUserID(ctx context.Context, userID string) (*customer.Customer, error) {
	c, ok := s.Find(ctx, func(c *customer.Customer) bool { return c.UserID == userID })
	if !ok {
		return nil, ierr.NewError("customer not found").
			WithHint("No customer exists for this user").
			WithReportableDetails(map[string]any{
				"user_id": userID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return c, nil
}

func (s *InMemoryCustomerStore) Update(ctx context.Context, c *customer.Customer) error {
	if c == nil {
		return ierr.NewError("customer cannot be nil").Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, c.ID, c)
}
