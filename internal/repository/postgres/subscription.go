package postgres

import (
	"context"

	"github.com/lib/pq"
	"github.com/saasinvoice/billing/internal/domain/subscription"
	"github.com/saasinvoice/billing/internal/logger"
	"github.com/saasinvoice/billing/internal/postgres"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/samber/lo"
)

type subscriptionRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger) subscription.Repository {
	return &subscriptionRepository{db: db, logger: logger}
}

const subscriptionColumns = `id, customer_id, plan_id, status, current_period_start, current_period_end,
	cancel_at_period_end, coupon_id, started_at, ended_at, created_at, updated_at`

func (r *subscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES (
			:id, :customer_id, :plan_id, :status, :current_period_start, :current_period_end,
			:cancel_at_period_end, :coupon_id, :started_at, :ended_at, :created_at, :updated_at
		)`

	r.logger.Debugw("creating subscription",
		"subscription_id", sub.ID,
		"customer_id", sub.CustomerID,
		"plan_id", sub.PlanID,
	)

	_, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, sub)
	return postgres.TranslateError(err, "subscription", map[string]any{"subscription_id": sub.ID})
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	var sub subscription.Subscription
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &sub, query, id); err != nil {
		return nil, postgres.TranslateError(err, "subscription", map[string]any{"subscription_id": id})
	}
	return &sub, nil
}

// Update writes the mutable fields only while the stored status is still
// from, so a stale read can never undo a concurrent cancel.
func (r *subscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription, from types.SubscriptionStatus) error {
	query := `
		UPDATE subscriptions SET
			status = $2,
			current_period_start = $3,
			current_period_end = $4,
			cancel_at_period_end = $5,
			ended_at = $6,
			updated_at = $7
		WHERE id = $1 AND status = $8`

	res, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		sub.ID,
		sub.Status,
		sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd,
		sub.EndedAt,
		sub.UpdatedAt,
		from,
	)
	if err != nil {
		return postgres.TranslateError(err, "subscription", map[string]any{"subscription_id": sub.ID})
	}
	return conflictOrMissing(ctx, r.db, res, "subscriptions", "subscription", sub.ID)
}

func (r *subscriptionRepository) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	if filter == nil {
		filter = types.NewSubscriptionFilter()
	}

	var qb queryBuilder
	if filter.CustomerID != "" {
		qb.where("customer_id = $%d", filter.CustomerID)
	}
	if filter.PlanID != "" {
		qb.where("plan_id = $%d", filter.PlanID)
	}
	if len(filter.Statuses) > 0 {
		qb.where("status = ANY($%d)", pq.Array(lo.Map(filter.Statuses, func(s types.SubscriptionStatus, _ int) string {
			return string(s)
		})))
	}
	query, args := qb.build(`SELECT `+subscriptionColumns+` FROM subscriptions`, filter.QueryFilter)

	subs := make([]*subscription.Subscription, 0)
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &subs, query, args...); err != nil {
		return nil, postgres.TranslateError(err, "subscription", nil)
	}
	return subs, nil
}
