package testutil

import (
	"context"
	"time"

	"github.com/saasinvoice/billing/internal/domain/coupon"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/samber/lo"
)

// InMemoryCouponStore implements coupon.Repository
type InMemoryCouponStore struct {
	*InMemoryStore[*coupon.Coupon]
}

func NewInMemoryCouponStore() *InMemoryCouponStore {
	return &InMemoryCouponStore{
		InMemoryStore: NewInMemoryStore("coupon", cloneCoupon),
	}
}

func cloneCoupon(c *coupon.Coupon) *coupon.Coupon {
	cp := *c
	if c.PercentOff != nil {
		cp.PercentOff = lo.ToPtr(*c.PercentOff)
	}
	if c.AmountOff != nil {
		cp.AmountOff = lo.ToPtr(*c.AmountOff)
	}
	if c.Currency != nil {
		cp.Currency = lo.ToPtr(*c.Currency)
	}
	if c.ExpiresAt != nil {
		cp.ExpiresAt = lo.ToPtr(*c.ExpiresAt)
	}
	if c.MaxRedemptions != nil {
		cp.MaxRedemptions = lo.ToPtr(*c.MaxRedemptions)
	}
	return &cp
}

func couponFilterFn(ctx context.Context, c *coupon.Coupon, filter interface{}) bool {
	if c == nil {
		return false
	}
	f, ok := filter.(*types.CouponFilter)
	if !ok || f == nil {
		return true
	}
	return !f.ActiveOnly || c.Active
}

func couponSortFn(i, j *coupon.Coupon) bool {
	if i.CreatedAt.Equal(j.CreatedAt) {
		return i.ID > j.ID
	}
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemoryCouponStore) Create(ctx context.Context, c *coupon.Coupon) error {
	if c == nil {
		return ierr.NewError("coupon cannot be nil").Mark(ierr.ErrValidation)
	}
	if _, exists := s.Find(ctx, func(existing *coupon.Coupon) bool { return existing.Code == c.Code }); exists {
		return ierr.NewError("coupon already exists").
			WithHint("A coupon with this code already exists").
			WithReportableDetails(map[string]any{
				"code": c.Code,
			}).
			Mark(ierr.ErrAlreadyExists)
	}
	return s.InMemoryStore.Create(ctx, c.ID, c)
}

func (s *InMemoryCouponStore) Get(ctx context.Context, id string) (*coupon.Coupon, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryCouponStore) GetByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	c, ok := s.Find(ctx, func(c *coupon.Coupon) bool { return c.Code == code })
	if !ok {
		return nil, ierr.NewError("coupon not found").
			WithHint("Coupon was not found").
			WithReportableDetails(map[string]any{
				"code": code,
			}).
			Mark(ierr.ErrNotFound)
	}
	return c, nil
}

func (s *InMemoryCouponStore) List(ctx context.Context, filter *types.CouponFilter) ([]*coupon.Coupon, error) {
	if filter == nil {
		filter = types.NewCouponFilter()
	}
	return s.InMemoryStore.List(ctx, filter, couponFilterFn, couponSortFn)
}

func (s *InMemoryCouponStore) Update(ctx context.Context, c *coupon.Coupon) error {
	if c == nil {
		return ierr.NewError("coupon cannot be nil").Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, c.ID, c)
}

// Redeem checks and increments under the store lock, matching the single
// conditional UPDATE of the postgres repository.
func (s *InMemoryCouponStore) Redeem(ctx context.Context, id string, now time.Time) error {
	redeemed, err := s.Mutate(ctx, id, func(c *coupon.Coupon) bool {
		if !c.IsValid(now) {
			return false
		}
		c.TimesRedeemed++
		c.UpdatedAt = now
		return true
	})
	if err != nil {
		return err
	}
	if !redeemed {
		return ierr.NewError("coupon is no longer redeemable").
			WithHint("This coupon is expired, inactive or fully redeemed").
			WithReportableDetails(map[string]any{
				"coupon_id": id,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
