package dto

import (
	"github.com/saasinvoice/billing/internal/domain/plan"
	"github.com/saasinvoice/billing/internal/domain/subscription"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/saasinvoice/billing/internal/validator"
)

type CreateSubscriptionRequest struct {
	PlanID string `json:"plan_id" validate:"required"`
	// CouponCode is optional; an unknown or expired code fails the request
	CouponCode *string `json:"coupon_code,omitempty" validate:"omitempty,min=1"`
}

func (r *CreateSubscriptionRequest) Validate() error {
	return validator.ValidateRequest(r)
}

type CancelSubscriptionRequest struct {
	AtPeriodEnd bool `json:"at_period_end"`
}

type SubscriptionResponse struct {
	*subscription.Subscription
	Active bool       `json:"active"`
	Plan   *plan.Plan `json:"plan,omitempty"`
	// Invoice is the draft opened together with an active subscription
	Invoice *InvoiceResponse `json:"invoice,omitempty"`
}

func NewSubscriptionResponse(sub *subscription.Subscription) *SubscriptionResponse {
	return &SubscriptionResponse{Subscription: sub, Active: sub.IsActive()}
}

type ListSubscriptionsResponse = types.ListResponse[*SubscriptionResponse]
