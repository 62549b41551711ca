package postgres

import (
	"context"

	"github.com/saasinvoice/billing/internal/domain/plan"
	"github.com/saasinvoice/billing/internal/logger"
	"github.com/saasinvoice/billing/internal/postgres"
	"github.com/saasinvoice/billing/internal/types"
)

type planRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewPlanRepository(db *postgres.DB, logger *logger.Logger) plan.Repository {
	return &planRepository{db: db, logger: logger}
}

const planColumns = `id, product_name, name, description, price, currency, billing_interval,
	trial_days, active, created_at, updated_at`

func (r *planRepository) Create(ctx context.Context, p *plan.Plan) error {
	query := `
		INSERT INTO plans (` + planColumns + `)
		VALUES (
			:id, :product_name, :name, :description, :price, :currency, :billing_interval,
			:trial_days, :active, :created_at, :updated_at
		)`

	r.logger.Debugw("creating plan", "plan_id", p.ID)

	_, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, p)
	return postgres.TranslateError(err, "plan", map[string]any{"plan_id": p.ID})
}

func (r *planRepository) Get(ctx context.Context, id string) (*plan.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`

	var p plan.Plan
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &p, query, id); err != nil {
		return nil, postgres.TranslateError(err, "plan", map[string]any{"plan_id": id})
	}
	return &p, nil
}

func (r *planRepository) List(ctx context.Context, filter *types.PlanFilter) ([]*plan.Plan, error) {
	if filter == nil {
		filter = types.NewPlanFilter()
	}

	var qb queryBuilder
	if filter.ActiveOnly {
		qb.whereRaw("active = TRUE")
	}
	query, args := qb.build(`SELECT `+planColumns+` FROM plans`, filter.QueryFilter)

	plans := make([]*plan.Plan, 0)
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &plans, query, args...); err != nil {
		return nil, postgres.TranslateError(err, "plan", nil)
	}
	return plans, nil
}

func (r *planRepository) Update(ctx context.Context, p *plan.Plan) error {
	query := `
		UPDATE plans SET
			product_name = :product_name,
			name = :name,
			description = :description,
			price = :price,
			currency = :currency,
			billing_interval = :billing_interval,
			trial_days = :trial_days,
			active = :active,
			updated_at = :updated_at
		WHERE id = :id`

	res, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, p)
	if err != nil {
		return postgres.TranslateError(err, "plan", map[string]any{"plan_id": p.ID})
	}
	return requireRow(res, "plan", p.ID)
}

func (r *planRepository) CountLiveSubscriptions(ctx context.Context, planID string) (int, error) {
	query := `SELECT COUNT(*) FROM subscriptions WHERE plan_id = $1 AND status <> $2`

	var count int
	err := r.db.GetQuerier(ctx).GetContext(ctx, &count, query, planID, types.SubscriptionStatusCanceled)
	if err != nil {
		return 0, postgres.TranslateError(err, "subscription", map[string]any{"plan_id": planID})
	}
	return count, nil
}
