package invoice

import (
	"testing"
	"time"

	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var taxRate = decimal.RequireFromString("8.5")

func draftInvoice(discount int64, items ...*InvoiceItem) *Invoice {
	return &Invoice{
		ID:       "inv_1",
		Currency: "USD",
		Status:   types.InvoiceStatusDraft,
		Discount: discount,
		Items:    items,
	}
}

func item(qty, unit int64) *InvoiceItem {
	return &InvoiceItem{Description: "Pro plan", Quantity: qty, UnitAmount: unit}
}

func TestInvoice_Finalize(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("plan with twenty percent coupon", func(t *testing.T) {
		inv := draftInvoice(580, item(1, 2900))
		require.NoError(t, inv.Finalize(taxRate, 30, now))

		assert.Equal(t, types.InvoiceStatusOpen, inv.Status)
		assert.Equal(t, int64(2900), inv.Subtotal)
		assert.Equal(t, int64(246), inv.Tax)
		assert.Equal(t, int64(580), inv.Discount)
		assert.Equal(t, int64(2566), inv.Total)
		require.NotNil(t, inv.FinalizedAt)
		require.NotNil(t, inv.DueDate)
		assert.Equal(t, now.AddDate(0, 0, 30), *inv.DueDate)
	})

	t.Run("subtotal matches items", func(t *testing.T) {
		inv := draftInvoice(0, item(2, 1000), item(3, 250))
		require.NoError(t, inv.Finalize(taxRate, 30, now))
		assert.Equal(t, int64(2750), inv.Subtotal)
		assert.Equal(t, int64(233), inv.Tax)
		assert.Equal(t, int64(2983), inv.Total)
	})

	t.Run("no items", func(t *testing.T) {
		inv := draftInvoice(0)
		require.NoError(t, inv.Finalize(taxRate, 30, now))
		assert.Zero(t, inv.Subtotal)
		assert.Zero(t, inv.Tax)
		assert.Zero(t, inv.Total)
	})

	t.Run("discount larger than amount clamps to zero", func(t *testing.T) {
		inv := draftInvoice(10_000, item(1, 2900))
		require.NoError(t, inv.Finalize(taxRate, 30, now))
		assert.Zero(t, inv.Total)
	})

	t.Run("finalizing twice is rejected", func(t *testing.T) {
		inv := draftInvoice(0, item(1, 2900))
		require.NoError(t, inv.Finalize(taxRate, 30, now))
		err := inv.Finalize(taxRate, 30, now)
		require.Error(t, err)
		assert.True(t, ierr.IsInvalidState(err))
	})
}

func TestInvoice_MarkPaid(t *testing.T) {
	now := time.Now().UTC()

	inv := draftInvoice(0, item(1, 100))
	_, err := inv.MarkPaid(now)
	assert.True(t, ierr.IsInvalidState(err))

	require.NoError(t, inv.Finalize(taxRate, 30, now))

	changed, err := inv.MarkPaid(now)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, types.InvoiceStatusPaid, inv.Status)
	require.NotNil(t, inv.PaidAt)

	changed, err = inv.MarkPaid(now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, now, *inv.PaidAt)
}

func TestInvoice_Void(t *testing.T) {
	now := time.Now().UTC()

	t.Run("paid cannot be voided", func(t *testing.T) {
		inv := &Invoice{Status: types.InvoiceStatusPaid}
		_, err := inv.Void(now)
		assert.True(t, ierr.IsInvalidState(err))
		assert.Equal(t, types.InvoiceStatusPaid, inv.Status)
	})

	t.Run("void is idempotent", func(t *testing.T) {
		inv := &Invoice{Status: types.InvoiceStatusOpen}
		changed, err := inv.Void(now)
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = inv.Void(now)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("uncollectible can be voided", func(t *testing.T) {
		inv := &Invoice{Status: types.InvoiceStatusUncollectible}
		changed, err := inv.Void(now)
		require.NoError(t, err)
		assert.True(t, changed)
	})
}

func TestInvoice_MarkUncollectible(t *testing.T) {
	now := time.Now().UTC()

	inv := &Invoice{Status: types.InvoiceStatusOpen}
	changed, err := inv.MarkUncollectible(now)
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = (&Invoice{Status: types.InvoiceStatusDraft}).MarkUncollectible(now)
	assert.True(t, ierr.IsInvalidState(err))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "INV-2025-000042", FormatNumber("INV", 2025, 42))
	assert.Equal(t, "INV-2025", SequenceKey("INV", 2025))
}

func TestInvoiceItem_Validate(t *testing.T) {
	assert.NoError(t, item(1, 0).Validate())
	assert.True(t, ierr.IsValidation(item(0, 100).Validate()))
	assert.True(t, ierr.IsValidation(item(1, -1).Validate()))
	assert.True(t, ierr.IsValidation((&InvoiceItem{Quantity: 1}).Validate()))
}
