package service

import (
	"context"
	"time"

	"github.com/saasinvoice/billing/internal/api/dto"
	"github.com/saasinvoice/billing/internal/cache"
	"github.com/saasinvoice/billing/internal/domain/plan"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/rbac"
	"github.com/saasinvoice/billing/internal/types"
)

type PlanService interface {
	CreatePlan(ctx context.Context, req dto.CreatePlanRequest) (*dto.PlanResponse, error)
	GetPlan(ctx context.Context, id string) (*dto.PlanResponse, error)
	ListPlans(ctx context.Context, filter *types.PlanFilter) (*dto.ListPlansResponse, error)
	UpdatePlan(ctx context.Context, id string, req dto.UpdatePlanRequest) (*dto.PlanResponse, error)
	// DeactivatePlan hides the plan from new subscriptions. Plans are never deleted.
	DeactivatePlan(ctx context.Context, id string) error
}

type planService struct {
	ServiceParams
}

func NewPlanService(params ServiceParams) PlanService {
	return &planService{ServiceParams: params}
}

func (s *planService) CreatePlan(ctx context.Context, req dto.CreatePlanRequest) (*dto.PlanResponse, error) {
	if err := s.authorize(ctx, rbac.ActionCreate, rbac.Collection(rbac.EntityPlan)); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, err := req.ToPlan(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.PlanRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.Logger.Infow("created plan",
		"plan_id", p.ID,
		"price", p.Price,
		"currency", p.Currency,
		"interval", p.Interval,
	)
	return dto.NewPlanResponse(p), nil
}

// getPlan reads through the plan cache
func (s *planService) getPlan(ctx context.Context, id string) (*plan.Plan, error) {
	key := cache.GenerateKey(cache.PrefixPlan, id)
	if cached, ok := s.Cache.Get(ctx, key); ok {
		if p, ok := cached.(*plan.Plan); ok {
			c := *p
			return &c, nil
		}
	}

	p, err := s.PlanRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c := *p
	s.Cache.Set(ctx, key, &c, s.Config.Cache.TTL)
	return p, nil
}

func (s *planService) GetPlan(ctx context.Context, id string) (*dto.PlanResponse, error) {
	if err := s.authorize(ctx, rbac.ActionRead, rbac.Collection(rbac.EntityPlan)); err != nil {
		return nil, err
	}

	p, err := s.getPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewPlanResponse(p), nil
}

func (s *planService) ListPlans(ctx context.Context, filter *types.PlanFilter) (*dto.ListPlansResponse, error) {
	if err := s.authorize(ctx, rbac.ActionRead, rbac.Collection(rbac.EntityPlan)); err != nil {
		return nil, err
	}
	if filter == nil {
		filter = types.NewPlanFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	// customers only see the catalog on sale
	if !types.GetPrincipal(ctx).IsStaff() {
		filter.ActiveOnly = true
	}

	plans, err := s.PlanRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.PlanResponse, 0, len(plans))
	for _, p := range plans {
		items = append(items, dto.NewPlanResponse(p))
	}
	return types.NewListResponse(items, filter), nil
}

func (s *planService) UpdatePlan(ctx context.Context, id string, req dto.UpdatePlanRequest) (*dto.PlanResponse, error) {
	if err := s.authorize(ctx, rbac.ActionUpdate, rbac.Collection(rbac.EntityPlan)); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	current, err := s.PlanRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := req.Apply(current)
	if err != nil {
		return nil, err
	}

	if current.PricingChanged(updated) {
		live, err := s.PlanRepo.CountLiveSubscriptions(ctx, id)
		if err != nil {
			return nil, err
		}
		if live > 0 {
			return nil, ierr.NewError("plan pricing is locked by live subscriptions").
				WithHint("Create a new plan instead of changing the price of a plan in use").
				WithReportableDetails(map[string]any{
					"plan_id":            id,
					"live_subscriptions": live,
				}).
				Mark(ierr.ErrValidation)
		}
	}

	if err := s.PlanRepo.Update(ctx, updated); err != nil {
		return nil, err
	}
	s.Cache.Delete(ctx, cache.GenerateKey(cache.PrefixPlan, id))

	s.Logger.Infow("updated plan", "plan_id", id, "active", updated.Active)
	return dto.NewPlanResponse(updated), nil
}

func (s *planService) DeactivatePlan(ctx context.Context, id string) error {
	if err := s.authorize(ctx, rbac.ActionDelete, rbac.Collection(rbac.EntityPlan)); err != nil {
		return err
	}

	p, err := s.PlanRepo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !p.Active {
		return nil
	}

	p.Active = false
	p.UpdatedAt = time.Now().UTC()
	if err := s.PlanRepo.Update(ctx, p); err != nil {
		return err
	}
	s.Cache.Delete(ctx, cache.GenerateKey(cache.PrefixPlan, id))

	s.Logger.Infow("deactivated plan", "plan_id", id)
	return nil
}
