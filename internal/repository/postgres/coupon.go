package postgres

import (
	"context"
	"time"

	"github.com/saasinvoice/billing/internal/domain/coupon"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/logger"
	"github.com/saasinvoice/billing/internal/postgres"
	"github.com/saasinvoice/billing/internal/types"
)

type couponRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewCouponRepository(db *postgres.DB, logger *logger.Logger) coupon.Repository {
	return &couponRepository{db: db, logger: logger}
}

const couponColumns = `id, code, description, kind, percent_off, amount_off, currency,
	expires_at, max_redemptions, times_redeemed, active, created_at, updated_at`

func (r *couponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	query := `
		INSERT INTO coupons (` + couponColumns + `)
		VALUES (
			:id, :code, :description, :kind, :percent_off, :amount_off, :currency,
			:expires_at, :max_redemptions, :times_redeemed, :active, :created_at, :updated_at
		)`

	r.logger.Debugw("creating coupon", "coupon_id", c.ID, "code", c.Code)

	_, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, c)
	return postgres.TranslateError(err, "coupon", map[string]any{"code": c.Code})
}

func (r *couponRepository) Get(ctx context.Context, id string) (*coupon.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`

	var c coupon.Coupon
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &c, query, id); err != nil {
		return nil, postgres.TranslateError(err, "coupon", map[string]any{"coupon_id": id})
	}
	return &c, nil
}

func (r *couponRepository) GetByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`

	var c coupon.Coupon
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &c, query, code); err != nil {
		return nil, postgres.TranslateError(err, "coupon", map[string]any{"code": code})
	}
	return &c, nil
}

func (r *couponRepository) List(ctx context.Context, filter *types.CouponFilter) ([]*coupon.Coupon, error) {
	if filter == nil {
		filter = types.NewCouponFilter()
	}

	var qb queryBuilder
	if filter.ActiveOnly {
		qb.whereRaw("active = TRUE")
	}
	query, args := qb.build(`SELECT `+couponColumns+` FROM coupons`, filter.QueryFilter)

	coupons := make([]*coupon.Coupon, 0)
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &coupons, query, args...); err != nil {
		return nil, postgres.TranslateError(err, "coupon", nil)
	}
	return coupons, nil
}

func (r *couponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	query := `
		UPDATE coupons SET
			description = :description,
			expires_at = :expires_at,
			max_redemptions = :max_redemptions,
			active = :active,
			updated_at = :updated_at
		WHERE id = :id`

	res, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, c)
	if err != nil {
		return postgres.TranslateError(err, "coupon", map[string]any{"coupon_id": c.ID})
	}
	return requireRow(res, "coupon", c.ID)
}

// Redeem relies on the row lock taken by UPDATE, so concurrent redemptions
// of the last slot serialize and only one of them matches the predicate.
func (r *couponRepository) Redeem(ctx context.Context, id string, now time.Time) error {
	query := `
		UPDATE coupons SET
			times_redeemed = times_redeemed + 1,
			updated_at = $2
		WHERE id = $1
			AND active = TRUE
			AND (expires_at IS NULL OR expires_at > $2)
			AND (max_redemptions IS NULL OR times_redeemed < max_redemptions)`

	res, err := r.db.GetQuerier(ctx).ExecContext(ctx, query, id, now)
	if err != nil {
		return postgres.TranslateError(err, "coupon", map[string]any{"coupon_id": id})
	}

	changed, err := rowsChanged(res)
	if err != nil {
		return err
	}
	if !changed {
		return ierr.NewError("coupon is no longer redeemable").
			WithHint("This coupon is expired, inactive or fully redeemed").
			WithReportableDetails(map[string]any{
				"coupon_id": id,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
