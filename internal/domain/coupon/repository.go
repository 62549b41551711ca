package coupon

import (
	"context"
	"time"

	"github.com/saasinvoice/billing/internal/types"
)

// Repository defines the interface for coupon persistence
type Repository interface {
	Create(ctx context.Context, coupon *Coupon) error
	Get(ctx context.Context, id string) (*Coupon, error)
	GetByCode(ctx context.Context, code string) (*Coupon, error)
	List(ctx context.Context, filter *types.CouponFilter) ([]*Coupon, error)
	Update(ctx context.Context, coupon *Coupon) error

	// Redeem increments times_redeemed only if the coupon is still valid at
	// now, as a single conditional write. It fails with ErrValidation when the
	// coupon is no longer redeemable.
	Redeem(ctx context.Context, id string, now time.Time) error
}
