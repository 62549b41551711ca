package invoice

import (
	"time"

	ierr "github.com/saasinvoice/billing/internal/errors"
)

const (
	maxItemQuantity   = 1_000_000
	maxItemUnitAmount = 1_000_000_000_000
)

// InvoiceItem is one line of an invoice
type InvoiceItem struct {
	ID          string    `db:"id" json:"id"`
	InvoiceID   string    `db:"invoice_id" json:"invoice_id"`
	Description string    `db:"description" json:"description"`
	Quantity    int64     `db:"quantity" json:"quantity"`
	UnitAmount  int64     `db:"unit_amount" json:"unit_amount"`
	Position    int       `db:"position" json:"position"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Total is quantity times unit amount. Validate bounds both so the product
// fits in an int64.
func (i *InvoiceItem) Total() int64 {
	return i.Quantity * i.UnitAmount
}

func (i *InvoiceItem) Validate() error {
	if i.Description == "" {
		return ierr.NewError("item description is required").
			WithHint("Please describe the invoice item").
			Mark(ierr.ErrValidation)
	}
	if i.Quantity < 1 || i.Quantity > maxItemQuantity {
		return ierr.NewError("item quantity out of range").
			WithHint("Quantity must be between 1 and 1000000").
			WithReportableDetails(map[string]any{
				"quantity": i.Quantity,
			}).
			Mark(ierr.ErrValidation)
	}
	if i.UnitAmount < 0 || i.UnitAmount > maxItemUnitAmount {
		return ierr.NewError("item unit amount out of range").
			WithHint("Unit amount must be zero or positive").
			WithReportableDetails(map[string]any{
				"unit_amount": i.UnitAmount,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
