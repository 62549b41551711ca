package subscription

import (
	"context"

	"github.com/saasinvoice/billing/internal/types"
)

// Repository defines the interface for subscription persistence
type Repository interface {
	Create(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	// Update fails with ErrVersionConflict when the stored status is no
	// longer from.
	Update(ctx context.Context, sub *Subscription, from types.SubscriptionStatus) error
	List(ctx context.Context, filter *types.SubscriptionFilter) ([]*Subscription, error)
}
