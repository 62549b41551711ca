package subscription

import (
	"time"

	"github.com/saasinvoice/billing/internal/types"
)

// Subscription binds a customer to a plan for consecutive billing periods
type Subscription struct {
	ID         string `db:"id" json:"id"`
	CustomerID string `db:"customer_id" json:"customer_id"`
	PlanID     string `db:"plan_id" json:"plan_id"`

	Status types.SubscriptionStatus `db:"status" json:"status"`

	// CurrentPeriodStart and CurrentPeriodEnd bound the period as [start, end)
	CurrentPeriodStart time.Time `db:"current_period_start" json:"current_period_start"`
	CurrentPeriodEnd   time.Time `db:"current_period_end" json:"current_period_end"`

	// CancelAtPeriodEnd keeps the subscription usable until the period ends.
	// Moving it to canceled afterwards is the job of an external scheduler.
	CancelAtPeriodEnd bool `db:"cancel_at_period_end" json:"cancel_at_period_end"`

	CouponID *string `db:"coupon_id" json:"coupon_id,omitempty"`

	StartedAt time.Time  `db:"started_at" json:"started_at"`
	EndedAt   *time.Time `db:"ended_at" json:"ended_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the subscription grants service and will renew
func (s *Subscription) IsActive() bool {
	if s.CancelAtPeriodEnd {
		return false
	}
	return s.Status == types.SubscriptionStatusTrialing || s.Status == types.SubscriptionStatusActive
}

func (s *Subscription) IsTrialing(now time.Time) bool {
	return s.Status == types.SubscriptionStatusTrialing && now.Before(s.CurrentPeriodEnd)
}

func (s *Subscription) IsCanceled() bool {
	return s.Status == types.SubscriptionStatusCanceled
}

// Cancel ends the subscription now, or flags it to end with the period.
// It returns false when the subscription was already canceled.
func (s *Subscription) Cancel(atPeriodEnd bool, now time.Time) bool {
	if s.IsCanceled() {
		return false
	}
	if atPeriodEnd {
		s.CancelAtPeriodEnd = true
	} else {
		s.Status = types.SubscriptionStatusCanceled
		s.EndedAt = &now
	}
	s.UpdatedAt = now
	return true
}

// NewPeriod returns the first billing period for a subscription started at now
func NewPeriod(interval types.BillingInterval, now time.Time) (time.Time, time.Time) {
	return now, now.Add(types.PeriodLength(interval))
}
