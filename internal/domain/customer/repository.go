package customer

import "context"

// Repository defines the interface for customer persistence
type Repository interface {
	Create(ctx context.Context, customer *Customer) error
	Get(ctx context.Context, id string) (*Customer, error)
	GetByUserID(ctx context.Context, userID string) (*Customer, error)
	Update(ctx context.Context, customer *Customer) error
}
