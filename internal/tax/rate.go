package tax

import (
	"context"

	"github.com/saasinvoice/billing/internal/config"
	"github.com/shopspring/decimal"
)

// RateProvider supplies the tax percentage applied when an invoice is
// finalized, e.g. 8.5 for 8.5%.
type RateProvider interface {
	Rate(ctx context.Context) decimal.Decimal
}

type configRate struct {
	rate decimal.Decimal
}

// NewConfigRateProvider reads billing.tax_rate once at startup
func NewConfigRateProvider(cfg *config.Configuration) RateProvider {
	return &configRate{rate: cfg.Billing.GetTaxRate()}
}

// NewFixedRateProvider is used by tools and tests
func NewFixedRateProvider(rate decimal.Decimal) RateProvider {
	return &configRate{rate: rate}
}

func (r *configRate) Rate(context.Context) decimal.Decimal {
	return r.rate
}
