package types

import (
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/samber/lo"
)

// CouponKind decides how a coupon's discount is computed
type CouponKind string

const (
	CouponKindPercent CouponKind = "percent"
	CouponKindFixed   CouponKind = "fixed"
)

func (k CouponKind) String() string {
	return string(k)
}

func (k CouponKind) Validate() error {
	allowed := []CouponKind{CouponKindPercent, CouponKindFixed}
	if !lo.Contains(allowed, k) {
		return ierr.NewError("invalid coupon kind").
			WithHint("Coupon kind must be percent or fixed").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CouponFilter narrows coupon listings
type CouponFilter struct {
	*QueryFilter
	ActiveOnly bool `json:"active_only,omitempty" form:"active_only"`
}

func NewCouponFilter() *CouponFilter {
	return &CouponFilter{QueryFilter: NewDefaultQueryFilter()}
}
