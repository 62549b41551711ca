package dto

import (
	"context"
	"time"

	"github.com/saasinvoice/billing/internal/domain/coupon"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/saasinvoice/billing/internal/validator"
)

type CreateCouponRequest struct {
	Code           string           `json:"code" validate:"required,max=64"`
	Description    string           `json:"description"`
	Kind           types.CouponKind `json:"kind" validate:"required"`
	PercentOff     *int64           `json:"percent_off,omitempty"`
	AmountOff      *int64           `json:"amount_off,omitempty"`
	Currency       *string          `json:"currency,omitempty" validate:"omitempty,currency"`
	ExpiresAt      *time.Time       `json:"expires_at,omitempty"`
	MaxRedemptions *int64           `json:"max_redemptions,omitempty"`
}

func (r *CreateCouponRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *CreateCouponRequest) ToCoupon(_ context.Context) (*coupon.Coupon, error) {
	now := time.Now().UTC()
	c := &coupon.Coupon{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_COUPON),
		Code:           r.Code,
		Description:    r.Description,
		Kind:           r.Kind,
		PercentOff:     r.PercentOff,
		AmountOff:      r.AmountOff,
		ExpiresAt:      r.ExpiresAt,
		MaxRedemptions: r.MaxRedemptions,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if r.Currency != nil {
		currency, err := types.NormalizeCurrency(*r.Currency)
		if err != nil {
			return nil, err
		}
		c.Currency = &currency
	}
	return c, c.Validate()
}

type CouponResponse struct {
	*coupon.Coupon
	// Valid tells whether the coupon can be redeemed right now
	Valid bool `json:"valid"`
}

func NewCouponResponse(c *coupon.Coupon, now time.Time) *CouponResponse {
	return &CouponResponse{Coupon: c, Valid: c.IsValid(now)}
}

type ListCouponsResponse = types.ListResponse[*CouponResponse]

type PreviewCouponRequest struct {
	Amount   int64  `form:"amount" json:"amount" validate:"min=0"`
	Currency string `form:"currency" json:"currency" validate:"required,currency"`
}

func (r *PreviewCouponRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// CouponPreviewResponse is what a coupon would take off amount, without redeeming it
type CouponPreviewResponse struct {
	Code     string `json:"code"`
	Valid    bool   `json:"valid"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Discount int64  `json:"discount"`
	Total    int64  `json:"total"`
}
