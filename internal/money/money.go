// Package money holds the integer minor-unit arithmetic used for every
// stored or compared amount. Decimal values appear only for rates and for
// display; they are never persisted.
package money

import (
	"fmt"
	"math"

	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PercentOf returns floor(amount * percent / 100). Amount must be
// non-negative; a non-positive percent yields zero.
func PercentOf(amount int64, percent decimal.Decimal) int64 {
	if amount <= 0 || !percent.IsPositive() {
		return 0
	}
	return decimal.NewFromInt(amount).Mul(percent).Div(hundred).Floor().IntPart()
}

// PercentOfInt is PercentOf for whole percentages
func PercentOfInt(amount, percent int64) int64 {
	return PercentOf(amount, decimal.NewFromInt(percent))
}

// Min returns the smaller amount
func Min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// ClampNonNegative maps negative results to zero
func ClampNonNegative(amount int64) int64 {
	if amount < 0 {
		return 0
	}
	return amount
}

// Add sums amounts and fails instead of wrapping on overflow
func Add(amounts ...int64) (int64, error) {
	var total int64
	for _, a := range amounts {
		if (a > 0 && total > math.MaxInt64-a) || (a < 0 && total < math.MinInt64-a) {
			return 0, overflowError("add")
		}
		total += a
	}
	return total, nil
}

// Mul returns quantity * unit and fails on overflow
func Mul(quantity, unit int64) (int64, error) {
	if quantity == 0 || unit == 0 {
		return 0, nil
	}
	result := quantity * unit
	if result/unit != quantity {
		return 0, overflowError("multiply")
	}
	return result, nil
}

// ValidateAmount rejects negative amounts
func ValidateAmount(field string, amount int64) error {
	if amount < 0 {
		return ierr.NewErrorf("%s cannot be negative", field).
			WithHintf("%s must be zero or a positive amount in minor units", field).
			WithReportableDetails(map[string]any{
				field: amount,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ToMajor converts minor units to a decimal in major units, for display only
func ToMajor(amount int64, currency string) decimal.Decimal {
	return decimal.New(amount, -types.CurrencyExponent(currency))
}

// FromMajor converts a major unit decimal into minor units, truncating
// anything below the currency's precision.
func FromMajor(amount decimal.Decimal, currency string) int64 {
	return amount.Shift(types.CurrencyExponent(currency)).Truncate(0).IntPart()
}

// Format renders an amount for humans, e.g. "$29.00" or "¥500"
func Format(amount int64, currency string) string {
	exp := types.CurrencyExponent(currency)
	return fmt.Sprintf("%s%s", types.GetCurrencySymbol(currency), ToMajor(amount, currency).StringFixed(exp))
}

func overflowError(op string) error {
	return ierr.NewErrorf("amount overflow on %s", op).
		WithHint("Amount is too large").
		Mark(ierr.ErrValidation)
}
