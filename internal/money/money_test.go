package money

import (
	"math"
	"testing"

	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentOf(t *testing.T) {
	tests := []struct {
		name    string
		amount  int64
		percent string
		want    int64
	}{
		{"tax on 2320", 2320, "8.5", 197},
		{"tax on 2900", 2900, "8.5", 246},
		{"twenty percent", 2900, "20", 580},
		{"floors fractions", 999, "33", 329},
		{"zero amount", 0, "50", 0},
		{"zero percent", 1000, "0", 0},
		{"full amount", 1234, "100", 1234},
		{"negative percent", 1000, "-5", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PercentOf(tt.amount, decimal.RequireFromString(tt.percent))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPercentOfInt(t *testing.T) {
	assert.Equal(t, int64(580), PercentOfInt(2900, 20))
	assert.Equal(t, int64(0), PercentOfInt(1, 50))
}

func TestAddOverflow(t *testing.T) {
	total, err := Add(1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)

	_, err = Add(math.MaxInt64, 1)
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}

func TestMulOverflow(t *testing.T) {
	got, err := Mul(3, 2900)
	require.NoError(t, err)
	assert.Equal(t, int64(8700), got)

	_, err = Mul(math.MaxInt64/2, 3)
	require.Error(t, err)
}

func TestClampAndMin(t *testing.T) {
	assert.Equal(t, int64(0), ClampNonNegative(-10))
	assert.Equal(t, int64(10), ClampNonNegative(10))
	assert.Equal(t, int64(3), Min(3, 5))
}

func TestDisplayConversion(t *testing.T) {
	assert.Equal(t, "29", ToMajor(2900, "USD").String())
	assert.Equal(t, "$29.00", Format(2900, "USD"))
	assert.Equal(t, "¥500", Format(500, "JPY"))
	assert.Equal(t, int64(1999), FromMajor(decimal.RequireFromString("19.999"), "USD"))
}

func TestValidateAmount(t *testing.T) {
	require.NoError(t, ValidateAmount("amount", 0))
	err := ValidateAmount("amount", -1)
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}
