package dto

import (
	"context"
	"time"

	"github.com/saasinvoice/billing/internal/domain/plan"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/saasinvoice/billing/internal/validator"
)

type CreatePlanRequest struct {
	ProductName string                `json:"product_name"`
	Name        string                `json:"name" validate:"required"`
	Description string                `json:"description"`
	Price       int64                 `json:"price" validate:"min=0"`
	Currency    string                `json:"currency" validate:"required,currency"`
	Interval    types.BillingInterval `json:"interval" validate:"required"`
	TrialDays   int                   `json:"trial_days" validate:"min=0"`
}

func (r *CreatePlanRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.Interval.Validate()
}

func (r *CreatePlanRequest) ToPlan(_ context.Context) (*plan.Plan, error) {
	currency, err := types.NormalizeCurrency(r.Currency)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &plan.Plan{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN),
		ProductName: r.ProductName,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Currency:    currency,
		Interval:    r.Interval,
		TrialDays:   r.TrialDays,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return p, p.Validate()
}

// UpdatePlanRequest changes only the fields that are set. Pricing fields are
// rejected while live subscriptions reference the plan.
type UpdatePlanRequest struct {
	Name        *string                `json:"name,omitempty"`
	Description *string                `json:"description,omitempty"`
	Price       *int64                 `json:"price,omitempty" validate:"omitempty,min=0"`
	Currency    *string                `json:"currency,omitempty" validate:"omitempty,currency"`
	Interval    *types.BillingInterval `json:"interval,omitempty"`
	TrialDays   *int                   `json:"trial_days,omitempty" validate:"omitempty,min=0"`
	Active      *bool                  `json:"active,omitempty"`
}

func (r *UpdatePlanRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.Interval != nil {
		return r.Interval.Validate()
	}
	return nil
}

// Apply returns a copy of p with the requested changes
func (r *UpdatePlanRequest) Apply(p *plan.Plan) (*plan.Plan, error) {
	updated := *p
	if r.Name != nil {
		updated.Name = *r.Name
	}
	if r.Description != nil {
		updated.Description = *r.Description
	}
	if r.Price != nil {
		updated.Price = *r.Price
	}
	if r.Currency != nil {
		currency, err := types.NormalizeCurrency(*r.Currency)
		if err != nil {
			return nil, err
		}
		updated.Currency = currency
	}
	if r.Interval != nil {
		updated.Interval = *r.Interval
	}
	if r.TrialDays != nil {
		updated.TrialDays = *r.TrialDays
	}
	if r.Active != nil {
		updated.Active = *r.Active
	}
	updated.UpdatedAt = time.Now().UTC()
	return &updated, updated.Validate()
}

type PlanResponse struct {
	*plan.Plan
	MonthlyPrice int64 `json:"monthly_price"`
}

func NewPlanResponse(p *plan.Plan) *PlanResponse {
	return &PlanResponse{Plan: p, MonthlyPrice: p.MonthlyPrice()}
}

type ListPlansResponse = types.ListResponse[*PlanResponse]
