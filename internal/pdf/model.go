package pdf

import (
	"time"

	"github.com/saasinvoice/billing/internal/domain/customer"
	"github.com/saasinvoice/billing/internal/domain/invoice"
	"github.com/saasinvoice/billing/internal/money"
	"github.com/samber/lo"
)

const dateLayout = "2006-01-02"

// InvoiceData is the template view of an invoice. Amounts are preformatted.
type InvoiceData struct {
	ID       string       `json:"id"`
	Number   string       `json:"number"`
	Status   string       `json:"status"`
	Currency string       `json:"currency"`
	IssuedAt string       `json:"issued_at"`
	DueDate  string       `json:"due_date"`
	PaidAt   string       `json:"paid_at"`
	Customer CustomerData `json:"customer"`
	Items    []LineItem   `json:"items"`
	Subtotal string       `json:"subtotal"`
	Discount string       `json:"discount"`
	Tax      string       `json:"tax"`
	Total    string       `json:"total"`
	Notes    string       `json:"notes"`
}

type CustomerData struct {
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	TaxID   string   `json:"tax_id"`
	Address []string `json:"address"`
}

type LineItem struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitAmount  string `json:"unit_amount"`
	Amount      string `json:"amount"`
}

// NewInvoiceData builds the view for a finalized invoice
func NewInvoiceData(inv *invoice.Invoice, cust *customer.Customer) *InvoiceData {
	format := func(amount int64) string { return money.Format(amount, inv.Currency) }

	data := &InvoiceData{
		ID:       inv.ID,
		Number:   inv.Number,
		Status:   string(inv.Status),
		Currency: inv.Currency,
		IssuedAt: formatDate(inv.IssuedAt),
		DueDate:  formatDate(inv.DueDate),
		PaidAt:   formatDate(inv.PaidAt),
		Subtotal: format(inv.Subtotal),
		Discount: format(inv.Discount),
		Tax:      format(inv.Tax),
		Total:    format(inv.Total),
		Notes:    inv.Notes,
		Items: lo.Map(inv.Items, func(item *invoice.InvoiceItem, _ int) LineItem {
			return LineItem{
				Description: item.Description,
				Quantity:    item.Quantity,
				UnitAmount:  format(item.UnitAmount),
				Amount:      format(item.Total()),
			}
		}),
	}

	if cust != nil {
		data.Customer = CustomerData{
			Name:  cust.DisplayName(),
			Email: cust.Email,
			TaxID: cust.TaxID,
			Address: lo.Compact([]string{
				cust.AddressLine1,
				cust.AddressLine2,
				cust.City,
				cust.State,
				cust.PostalCode,
				cust.Country,
			}),
		}
	}
	if data.Customer.Address == nil {
		data.Customer.Address = []string{}
	}
	return data
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}
