package plan

import (
	"context"

	"github.com/saasinvoice/billing/internal/types"
)

// Repository defines the interface for plan persistence
type Repository interface {
	Create(ctx context.Context, plan *Plan) error
	Get(ctx context.Context, id string) (*Plan, error)
	List(ctx context.Context, filter *types.PlanFilter) ([]*Plan, error)
	Update(ctx context.Context, plan *Plan) error
	// CountLiveSubscriptions counts subscriptions on the plan that are not canceled
	CountLiveSubscriptions(ctx context.Context, planID string) (int, error)
}
