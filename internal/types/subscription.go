package types

import (
	"time"

	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/samber/lo"
)

type SubscriptionStatus string

const (
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusUnpaid   SubscriptionStatus = "unpaid"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) Validate() error {
	allowed := []SubscriptionStatus{
		SubscriptionStatusTrialing,
		SubscriptionStatusActive,
		SubscriptionStatusPastDue,
		SubscriptionStatusCanceled,
		SubscriptionStatusUnpaid,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid subscription status").
			WithHint("Please provide a valid subscription status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Billing periods are fixed day offsets, not calendar months.
const (
	MonthlyPeriod = 30 * 24 * time.Hour
	YearlyPeriod  = 365 * 24 * time.Hour
)

// PeriodLength returns the duration of one billing period for the interval
func PeriodLength(interval BillingInterval) time.Duration {
	if interval == BillingIntervalYearly {
		return YearlyPeriod
	}
	return MonthlyPeriod
}

// SubscriptionFilter narrows subscription listings
type SubscriptionFilter struct {
	*QueryFilter
	CustomerID string               `json:"customer_id,omitempty" form:"customer_id"`
	PlanID     string               `json:"plan_id,omitempty" form:"plan_id"`
	Statuses   []SubscriptionStatus `json:"statuses,omitempty" form:"statuses"`
}

func NewSubscriptionFilter() *SubscriptionFilter {
	return &SubscriptionFilter{QueryFilter: NewDefaultQueryFilter()}
}
