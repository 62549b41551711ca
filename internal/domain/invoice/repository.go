package invoice

import (
	"context"

	"github.com/saasinvoice/billing/internal/types"
)

// Repository defines the interface for invoice persistence operations
type Repository interface {
	// Create stores the invoice together with its items
	Create(ctx context.Context, inv *Invoice) error

	// Get returns the invoice with its items ordered by position
	Get(ctx context.Context, id string) (*Invoice, error)

	// GetForUpdate is Get with the invoice row locked until the surrounding
	// transaction ends. It must be called inside DB.WithTx.
	GetForUpdate(ctx context.Context, id string) (*Invoice, error)

	List(ctx context.Context, filter *types.InvoiceFilter) ([]*Invoice, error)

	// Update writes amounts and notes of a draft invoice
	Update(ctx context.Context, inv *Invoice) error

	// UpdateStatus writes the invoice only if its stored status is still
	// from. It returns ErrVersionConflict when another writer got there first.
	UpdateStatus(ctx context.Context, inv *Invoice, from types.InvoiceStatus) error

	// Delete removes a draft invoice and its items
	Delete(ctx context.Context, id string) error

	AddItem(ctx context.Context, item *InvoiceItem) error
	RemoveItem(ctx context.Context, invoiceID, itemID string) error

	// NextSequence atomically allocates the next number for key
	NextSequence(ctx context.Context, key string) (int64, error)
}
