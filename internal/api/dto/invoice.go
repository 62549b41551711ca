package dto

import (
	"time"

	"github.com/saasinvoice/billing/internal/domain/invoice"
	"github.com/saasinvoice/billing/internal/money"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/saasinvoice/billing/internal/validator"
)

type CreateInvoiceRequest struct {
	CustomerID     string                     `json:"customer_id" validate:"required"`
	SubscriptionID *string                    `json:"subscription_id,omitempty"`
	Currency       string                     `json:"currency" validate:"required,currency"`
	Discount       int64                      `json:"discount" validate:"min=0"`
	Notes          string                     `json:"notes"`
	Items          []CreateInvoiceItemRequest `json:"items" validate:"dive"`
}

type CreateInvoiceItemRequest struct {
	Description string `json:"description" validate:"required"`
	Quantity    int64  `json:"quantity" validate:"min=1"`
	UnitAmount  int64  `json:"unit_amount" validate:"min=0"`
}

func (r *CreateInvoiceRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *CreateInvoiceItemRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// ToItem builds an item at position for invoiceID
func (r *CreateInvoiceItemRequest) ToItem(invoiceID string, position int, now time.Time) (*invoice.InvoiceItem, error) {
	item := &invoice.InvoiceItem{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM),
		InvoiceID:   invoiceID,
		Description: r.Description,
		Quantity:    r.Quantity,
		UnitAmount:  r.UnitAmount,
		Position:    position,
		CreatedAt:   now,
	}
	return item, item.Validate()
}

type InvoiceResponse struct {
	*invoice.Invoice
	// FormattedTotal is Total in major units with the currency symbol
	FormattedTotal string `json:"formatted_total"`
}

func NewInvoiceResponse(inv *invoice.Invoice) *InvoiceResponse {
	return &InvoiceResponse{
		Invoice:        inv,
		FormattedTotal: money.Format(inv.Total, inv.Currency),
	}
}

type ListInvoicesResponse = types.ListResponse[*InvoiceResponse]

// InvoicePDFResponse carries the rendered document, or a link to the stored
// copy when documents are kept in S3.
type InvoicePDFResponse struct {
	InvoiceID string `json:"invoice_id"`
	Number    string `json:"number"`
	URL       string `json:"url,omitempty"`
	Data      []byte `json:"-"`
}
