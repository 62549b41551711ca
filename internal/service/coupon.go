package service

import (
	"context"
	"time"

	"github.com/saasinvoice/billing/internal/api/dto"
	"github.com/saasinvoice/billing/internal/domain/coupon"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/money"
	"github.com/saasinvoice/billing/internal/rbac"
	"github.com/saasinvoice/billing/internal/types"
)

type CouponService interface {
	CreateCoupon(ctx context.Context, req dto.CreateCouponRequest) (*dto.CouponResponse, error)
	GetCoupon(ctx context.Context, id string) (*dto.CouponResponse, error)
	ListCoupons(ctx context.Context, filter *types.CouponFilter) (*dto.ListCouponsResponse, error)
	// DeactivateCoupon stops further redemptions. Existing discounts are kept.
	DeactivateCoupon(ctx context.Context, id string) error
	// PreviewCoupon computes the discount a code would give without redeeming it
	PreviewCoupon(ctx context.Context, code string, req dto.PreviewCouponRequest) (*dto.CouponPreviewResponse, error)
}

type couponService struct {
	ServiceParams
}

func NewCouponService(params ServiceParams) CouponService {
	return &couponService{ServiceParams: params}
}

func (s *couponService) CreateCoupon(ctx context.Context, req dto.CreateCouponRequest) (*dto.CouponResponse, error) {
	if err := s.authorize(ctx, rbac.ActionCreate, rbac.Collection(rbac.EntityCoupon)); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c, err := req.ToCoupon(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.CouponRepo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.Logger.Infow("created coupon", "coupon_id", c.ID, "code", c.Code, "kind", c.Kind)
	return dto.NewCouponResponse(c, time.Now().UTC()), nil
}

func (s *couponService) GetCoupon(ctx context.Context, id string) (*dto.CouponResponse, error) {
	if err := s.authorize(ctx, rbac.ActionRead, rbac.Collection(rbac.EntityCoupon)); err != nil {
		return nil, err
	}

	c, err := s.CouponRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewCouponResponse(c, time.Now().UTC()), nil
}

func (s *couponService) ListCoupons(ctx context.Context, filter *types.CouponFilter) (*dto.ListCouponsResponse, error) {
	if err := s.authorize(ctx, rbac.ActionRead, rbac.Collection(rbac.EntityCoupon)); err != nil {
		return nil, err
	}
	// customers may look up a code they were given but not enumerate codes
	if !s.RBAC.SeesAll(types.GetPrincipal(ctx), rbac.EntityCoupon) {
		return nil, ierr.NewError("coupon listing requires staff access").
			WithHint("You do not have permission to list coupons").
			Mark(ierr.ErrPermissionDenied)
	}
	if filter == nil {
		filter = types.NewCouponFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	coupons, err := s.CouponRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	items := make([]*dto.CouponResponse, 0, len(coupons))
	for _, c := range coupons {
		items = append(items, dto.NewCouponResponse(c, now))
	}
	return types.NewListResponse(items, filter), nil
}

func (s *couponService) DeactivateCoupon(ctx context.Context, id string) error {
	if err := s.authorize(ctx, rbac.ActionDelete, rbac.Collection(rbac.EntityCoupon)); err != nil {
		return err
	}

	c, err := s.CouponRepo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !c.Active {
		return nil
	}

	c.Active = false
	c.UpdatedAt = time.Now().UTC()
	if err := s.CouponRepo.Update(ctx, c); err != nil {
		return err
	}

	s.Logger.Infow("deactivated coupon", "coupon_id", id, "code", c.Code)
	return nil
}

func (s *couponService) PreviewCoupon(ctx context.Context, code string, req dto.PreviewCouponRequest) (*dto.CouponPreviewResponse, error) {
	if err := s.authorize(ctx, rbac.ActionRead, rbac.Collection(rbac.EntityCoupon)); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	currency, err := types.NormalizeCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	c, err := s.CouponRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	resp := &dto.CouponPreviewResponse{
		Code:     c.Code,
		Valid:    c.IsValid(now) && c.AppliesToCurrency(currency),
		Amount:   req.Amount,
		Currency: currency,
	}
	if resp.Valid {
		resp.Discount = c.CalculateDiscount(req.Amount, now)
	}
	resp.Total = money.ClampNonNegative(req.Amount - resp.Discount)
	return resp, nil
}

// resolveCoupon looks up code for a purchase of amount in currency and
// rejects it when it cannot be applied. It returns the discount it gives.
func resolveCoupon(ctx context.Context, repo coupon.Repository, code string, amount int64, currency string, now time.Time) (*coupon.Coupon, int64, error) {
	c, err := repo.GetByCode(ctx, code)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, 0, ierr.WithError(err).
				WithHint("Coupon code is not valid").
				WithReportableDetails(map[string]any{
					"coupon_code": code,
				}).
				Mark(ierr.ErrValidation)
		}
		return nil, 0, err
	}

	if !c.IsValid(now) {
		return nil, 0, ierr.NewError("coupon is not redeemable").
			WithHint("This coupon is expired, inactive or fully redeemed").
			WithReportableDetails(map[string]any{
				"coupon_code": code,
			}).
			Mark(ierr.ErrValidation)
	}
	if !c.AppliesToCurrency(currency) {
		return nil, 0, ierr.NewError("coupon currency does not match").
			WithHintf("This coupon cannot be used for %s purchases", currency).
			WithReportableDetails(map[string]any{
				"coupon_code": code,
				"currency":    currency,
			}).
			Mark(ierr.ErrValidation)
	}
	return c, c.CalculateDiscount(amount, now), nil
}
