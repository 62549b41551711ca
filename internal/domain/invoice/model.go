package invoice

import (
	"fmt"
	"time"

	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/money"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/shopspring/decimal"
)

// Invoice is a bill for a customer. Amounts are in minor units of Currency.
type Invoice struct {
	ID             string  `db:"id" json:"id"`
	CustomerID     string  `db:"customer_id" json:"customer_id"`
	SubscriptionID *string `db:"subscription_id" json:"subscription_id,omitempty"`

	// Number is unique and assigned from a durable sequence at creation
	Number string `db:"number" json:"number"`

	Currency string              `db:"currency" json:"currency"`
	Status   types.InvoiceStatus `db:"status" json:"status"`

	// Subtotal is the sum of item totals once the invoice leaves draft
	Subtotal int64 `db:"subtotal" json:"subtotal"`
	Tax      int64 `db:"tax" json:"tax"`
	Discount int64 `db:"discount" json:"discount"`
	// Total is max(0, subtotal + tax - discount)
	Total int64 `db:"total" json:"total"`

	Notes string `db:"notes" json:"notes"`

	PeriodStart *time.Time `db:"period_start" json:"period_start,omitempty"`
	PeriodEnd   *time.Time `db:"period_end" json:"period_end,omitempty"`

	IssuedAt    *time.Time `db:"issued_at" json:"issued_at,omitempty"`
	DueDate     *time.Time `db:"due_date" json:"due_date,omitempty"`
	FinalizedAt *time.Time `db:"finalized_at" json:"finalized_at,omitempty"`
	PaidAt      *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	VoidedAt    *time.Time `db:"voided_at" json:"voided_at,omitempty"`

	Items []*InvoiceItem `db:"-" json:"items"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// FormatNumber renders an invoice number such as INV-2025-000042
func FormatNumber(prefix string, year int, sequence int64) string {
	return fmt.Sprintf("%s-%d-%06d", prefix, year, sequence)
}

// SequenceKey scopes the invoice number sequence to a prefix and year
func SequenceKey(prefix string, year int) string {
	return fmt.Sprintf("%s-%d", prefix, year)
}

func (inv *Invoice) IsDraft() bool {
	return inv.Status == types.InvoiceStatusDraft
}

func (inv *Invoice) IsPaid() bool {
	return inv.Status == types.InvoiceStatusPaid
}

// ItemsSubtotal sums item totals, zero for an invoice without items
func (inv *Invoice) ItemsSubtotal() (int64, error) {
	totals := make([]int64, 0, len(inv.Items))
	for _, item := range inv.Items {
		totals = append(totals, item.Total())
	}
	return money.Add(totals...)
}

// Recalculate derives subtotal, tax and total from the items and discount
func (inv *Invoice) Recalculate(taxRate decimal.Decimal) error {
	subtotal, err := inv.ItemsSubtotal()
	if err != nil {
		return err
	}
	tax := money.PercentOf(subtotal, taxRate)
	gross, err := money.Add(subtotal, tax)
	if err != nil {
		return err
	}

	inv.Subtotal = subtotal
	inv.Tax = tax
	inv.Total = money.ClampNonNegative(gross - inv.Discount)
	return nil
}

// Finalize moves a draft to open, fixing its amounts. The transition is one way.
func (inv *Invoice) Finalize(taxRate decimal.Decimal, dueDays int, now time.Time) error {
	if !inv.IsDraft() {
		return inv.invalidTransition("finalize", "Only draft invoices can be finalized")
	}
	if err := inv.Recalculate(taxRate); err != nil {
		return err
	}

	due := now.AddDate(0, 0, dueDays)
	inv.Status = types.InvoiceStatusOpen
	inv.IssuedAt = &now
	inv.FinalizedAt = &now
	inv.DueDate = &due
	inv.UpdatedAt = now
	return nil
}

// MarkPaid moves an open invoice to paid. An already paid invoice is left
// untouched and reports false so callers skip their side effects.
func (inv *Invoice) MarkPaid(now time.Time) (bool, error) {
	switch inv.Status {
	case types.InvoiceStatusPaid:
		return false, nil
	case types.InvoiceStatusOpen:
		inv.Status = types.InvoiceStatusPaid
		inv.PaidAt = &now
		inv.UpdatedAt = now
		return true, nil
	default:
		return false, inv.invalidTransition("mark_paid", "Only open invoices can be marked as paid")
	}
}

// Void cancels an invoice that was not paid. Voiding twice is a no-op.
func (inv *Invoice) Void(now time.Time) (bool, error) {
	switch inv.Status {
	case types.InvoiceStatusVoid:
		return false, nil
	case types.InvoiceStatusPaid:
		return false, inv.invalidTransition("void", "Paid invoices cannot be voided")
	default:
		inv.Status = types.InvoiceStatusVoid
		inv.VoidedAt = &now
		inv.UpdatedAt = now
		return true, nil
	}
}

// MarkUncollectible writes off an open invoice
func (inv *Invoice) MarkUncollectible(now time.Time) (bool, error) {
	switch inv.Status {
	case types.InvoiceStatusUncollectible:
		return false, nil
	case types.InvoiceStatusOpen:
		inv.Status = types.InvoiceStatusUncollectible
		inv.UpdatedAt = now
		return true, nil
	default:
		return false, inv.invalidTransition("mark_uncollectible", "Only open invoices can be marked as uncollectible")
	}
}

// EnsureDraft guards edits that are only allowed before finalization
func (inv *Invoice) EnsureDraft(action string) error {
	if inv.IsDraft() {
		return nil
	}
	return inv.invalidTransition(action, "Invoice is no longer a draft")
}

func (inv *Invoice) invalidTransition(action, hint string) error {
	return ierr.NewErrorf("cannot %s invoice in status %s", action, inv.Status).
		WithHint(hint).
		WithReportableDetails(map[string]any{
			"invoice_id": inv.ID,
			"status":     inv.Status,
			"action":     action,
		}).
		Mark(ierr.ErrInvalidState)
}
