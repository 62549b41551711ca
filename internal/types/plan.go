package types

import (
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/samber/lo"
)

// BillingInterval is the recurrence of a plan
type BillingInterval string

const (
	BillingIntervalMonthly BillingInterval = "monthly"
	BillingIntervalYearly  BillingInterval = "yearly"
)

func (i BillingInterval) String() string {
	return string(i)
}

func (i BillingInterval) Validate() error {
	allowed := []BillingInterval{BillingIntervalMonthly, BillingIntervalYearly}
	if !lo.Contains(allowed, i) {
		return ierr.NewError("invalid billing interval").
			WithHint("Billing interval must be monthly or yearly").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// PlanFilter narrows plan listings
type PlanFilter struct {
	*QueryFilter
	ActiveOnly bool `json:"active_only,omitempty" form:"active_only"`
}

func NewPlanFilter() *PlanFilter {
	return &PlanFilter{QueryFilter: NewDefaultQueryFilter()}
}
