package plan

import (
	"time"

	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/money"
	"github.com/saasinvoice/billing/internal/types"
)

// Plan is a recurring price offered to customers
type Plan struct {
	// ID is the unique identifier for the plan
	ID string `db:"id" json:"id"`

	// ProductName groups plans of the same product, e.g. "Invoicing"
	ProductName string `db:"product_name" json:"product_name"`

	// Name is the display name of the plan, e.g. "Pro"
	Name string `db:"name" json:"name"`

	Description string `db:"description" json:"description"`

	// Price is charged once per interval, in minor units
	Price int64 `db:"price" json:"price"`

	// Currency is the upper case ISO-4217 code
	Currency string `db:"currency" json:"currency"`

	Interval types.BillingInterval `db:"billing_interval" json:"interval"`

	// TrialDays greater than zero starts new subscriptions in trialing
	TrialDays int `db:"trial_days" json:"trial_days"`

	// Active plans can be subscribed to. Plans are never deleted.
	Active bool `db:"active" json:"active"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (p *Plan) Validate() error {
	if p.Name == "" {
		return ierr.NewError("plan name is required").
			WithHint("Please provide a plan name").
			Mark(ierr.ErrValidation)
	}
	if err := money.ValidateAmount("price", p.Price); err != nil {
		return err
	}
	if _, err := types.NormalizeCurrency(p.Currency); err != nil {
		return err
	}
	if err := p.Interval.Validate(); err != nil {
		return err
	}
	if p.TrialDays < 0 {
		return ierr.NewError("trial days cannot be negative").
			WithHint("Trial days must be zero or more").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// MonthlyPrice is the price spread over a month, for display
func (p *Plan) MonthlyPrice() int64 {
	if p.Interval == types.BillingIntervalYearly {
		return p.Price / 12
	}
	return p.Price
}

// YearlyPrice is the price of a full year of service
func (p *Plan) YearlyPrice() int64 {
	if p.Interval == types.BillingIntervalMonthly {
		return p.Price * 12
	}
	return p.Price
}

// PricingChanged reports whether other differs in a field that live
// subscriptions depend on.
func (p *Plan) PricingChanged(other *Plan) bool {
	return p.Price != other.Price ||
		p.Currency != other.Currency ||
		p.Interval != other.Interval ||
		p.TrialDays != other.TrialDays
}
