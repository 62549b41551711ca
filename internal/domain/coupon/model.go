package coupon

import (
	"time"

	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/money"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/samber/lo"
)

// Coupon is a redeemable discount applied when a subscription is created
type Coupon struct {
	ID string `db:"id" json:"id"`

	// Code is what customers type in. Unique and case sensitive.
	Code        string `db:"code" json:"code"`
	Description string `db:"description" json:"description"`

	Kind types.CouponKind `db:"kind" json:"kind"`

	// PercentOff is set for percent coupons, 1 to 100
	PercentOff *int64 `db:"percent_off" json:"percent_off,omitempty"`

	// AmountOff is set for fixed coupons, in minor units of Currency
	AmountOff *int64  `db:"amount_off" json:"amount_off,omitempty"`
	Currency  *string `db:"currency" json:"currency,omitempty"`

	ExpiresAt      *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	MaxRedemptions *int64     `db:"max_redemptions" json:"max_redemptions,omitempty"`
	TimesRedeemed  int64      `db:"times_redeemed" json:"times_redeemed"`

	Active bool `db:"active" json:"active"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsValid reports whether the coupon can be redeemed at now
func (c *Coupon) IsValid(now time.Time) bool {
	if c == nil || !c.Active {
		return false
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return false
	}
	if c.MaxRedemptions != nil && c.TimesRedeemed >= *c.MaxRedemptions {
		return false
	}
	return true
}

// CalculateDiscount returns the discount for amount, never more than amount.
// Invalid coupons give no discount.
func (c *Coupon) CalculateDiscount(amount int64, now time.Time) int64 {
	if amount <= 0 || !c.IsValid(now) {
		return 0
	}

	switch c.Kind {
	case types.CouponKindPercent:
		return money.Min(money.PercentOfInt(amount, lo.FromPtr(c.PercentOff)), amount)
	case types.CouponKindFixed:
		return money.Min(money.ClampNonNegative(lo.FromPtr(c.AmountOff)), amount)
	default:
		return 0
	}
}

// AppliesToCurrency reports whether the coupon can discount amounts in currency.
// Percent coupons apply to every currency.
func (c *Coupon) AppliesToCurrency(currency string) bool {
	if c.Kind != types.CouponKindFixed || c.Currency == nil {
		return true
	}
	return types.IsMatchingCurrency(*c.Currency, currency)
}

func (c *Coupon) Validate() error {
	if c.Code == "" {
		return ierr.NewError("coupon code is required").
			WithHint("Please provide a coupon code").
			Mark(ierr.ErrValidation)
	}
	if err := c.Kind.Validate(); err != nil {
		return err
	}

	switch c.Kind {
	case types.CouponKindPercent:
		if c.PercentOff == nil || *c.PercentOff < 1 || *c.PercentOff > 100 {
			return ierr.NewError("percent_off must be between 1 and 100").
				WithHint("Percent coupons need a percent_off between 1 and 100").
				Mark(ierr.ErrValidation)
		}
	case types.CouponKindFixed:
		if c.AmountOff == nil || *c.AmountOff <= 0 {
			return ierr.NewError("amount_off must be positive").
				WithHint("Fixed coupons need a positive amount_off").
				Mark(ierr.ErrValidation)
		}
		if c.Currency == nil {
			return ierr.NewError("currency is required for fixed coupons").
				WithHint("Fixed coupons need a currency").
				Mark(ierr.ErrValidation)
		}
		if _, err := types.NormalizeCurrency(*c.Currency); err != nil {
			return err
		}
	}

	if c.MaxRedemptions != nil && *c.MaxRedemptions < 1 {
		return ierr.NewError("max_redemptions must be positive").
			WithHint("Max redemptions must be at least 1").
			Mark(ierr.ErrValidation)
	}
	return nil
}
