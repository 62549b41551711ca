package service

import (
	"context"
	"time"

	"github.com/saasinvoice/billing/internal/api/dto"
	"github.com/saasinvoice/billing/internal/domain/coupon"
	"github.com/saasinvoice/billing/internal/domain/invoice"
	"github.com/saasinvoice/billing/internal/domain/plan"
	"github.com/saasinvoice/billing/internal/domain/subscription"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/integration/base"
	"github.com/saasinvoice/billing/internal/rbac"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/samber/lo"
)

type SubscriptionService interface {
	// CreateSubscription subscribes the caller to a plan, redeeming the coupon
	// and opening the first invoice in one transaction
	CreateSubscription(ctx context.Context, req dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error)
	GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	ListSubscriptions(ctx context.Context, filter *types.SubscriptionFilter) (*dto.ListSubscriptionsResponse, error)
	CancelSubscription(ctx context.Context, id string, req dto.CancelSubscriptionRequest) (*dto.SubscriptionResponse, error)
	// CreateCheckout opens a hosted payment page for the plan price
	CreateCheckout(ctx context.Context, id string, req dto.CheckoutRequest) (*dto.CheckoutResponse, error)
}

type subscriptionService struct {
	ServiceParams
}

func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{ServiceParams: params}
}

func (s *subscriptionService) CreateSubscription(ctx context.Context, req dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	principal := types.GetPrincipal(ctx)
	if err := s.authorize(ctx, rbac.ActionCreate, rbac.Owned(rbac.EntitySubscription, principal.GetUserID())); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, err := s.PlanRepo.Get(ctx, req.PlanID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, ierr.WithError(err).
				WithHint("Plan does not exist").
				WithReportableDetails(map[string]any{
					"plan_id": req.PlanID,
				}).
				Mark(ierr.ErrValidation)
		}
		return nil, err
	}
	if !p.Active {
		return nil, ierr.NewError("plan is not active").
			WithHint("This plan is no longer available").
			WithReportableDetails(map[string]any{
				"plan_id": p.ID,
			}).
			Mark(ierr.ErrValidation)
	}

	var (
		sub *subscription.Subscription
		inv *invoice.Invoice
		c   *coupon.Coupon
	)
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		cust, err := getOrCreateCustomer(ctx, s.CustomerRepo, principal)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		var discount int64
		if req.CouponCode != nil {
			c, discount, err = resolveCoupon(ctx, s.CouponRepo, *req.CouponCode, p.Price, p.Currency, now)
			if err != nil {
				return err
			}
			if err := s.CouponRepo.Redeem(ctx, c.ID, now); err != nil {
				return err
			}
		}

		sub = newSubscription(cust.ID, p, c, now)
		if err := s.SubRepo.Create(ctx, sub); err != nil {
			return err
		}

		// a trial is billed once it converts, which is outside this service
		if sub.Status != types.SubscriptionStatusActive {
			return nil
		}
		inv = newPeriodInvoice(sub, p, discount, now)
		return s.createDraftInvoice(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	if c != nil {
		s.Metrics.RecordCouponRedemption()
	}
	s.Logger.Infow("created subscription",
		"subscription_id", sub.ID,
		"customer_id", sub.CustomerID,
		"plan_id", p.ID,
		"status", sub.Status,
		"coupon_id", lo.FromPtr(sub.CouponID),
	)

	resp := dto.NewSubscriptionResponse(sub)
	resp.Plan = p
	if inv != nil {
		resp.Invoice = dto.NewInvoiceResponse(inv)
	}
	return resp, nil
}

func newSubscription(customerID string, p *plan.Plan, c *coupon.Coupon, now time.Time) *subscription.Subscription {
	start, end := subscription.NewPeriod(p.Interval, now)
	status := types.SubscriptionStatusActive
	if p.TrialDays > 0 {
		status = types.SubscriptionStatusTrialing
	}

	sub := &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		CustomerID:         customerID,
		PlanID:             p.ID,
		Status:             status,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
		StartedAt:          now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if c != nil {
		sub.CouponID = lo.ToPtr(c.ID)
	}
	return sub
}

// newPeriodInvoice bills the plan price for the subscription's current period
func newPeriodInvoice(sub *subscription.Subscription, p *plan.Plan, discount int64, now time.Time) *invoice.Invoice {
	inv := &invoice.Invoice{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		CustomerID:     sub.CustomerID,
		SubscriptionID: lo.ToPtr(sub.ID),
		Currency:       p.Currency,
		Discount:       discount,
		PeriodStart:    lo.ToPtr(sub.CurrentPeriodStart),
		PeriodEnd:      lo.ToPtr(sub.CurrentPeriodEnd),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	inv.Items = []*invoice.InvoiceItem{{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM),
		InvoiceID:   inv.ID,
		Description: p.ProductName + " " + p.Name + " (" + string(p.Interval) + ")",
		Quantity:    1,
		UnitAmount:  p.Price,
		Position:    0,
		CreatedAt:   now,
	}}
	return inv
}

// getSubscriptionFor loads a subscription and checks action against its owner
func (s *subscriptionService) getSubscriptionFor(ctx context.Context, action rbac.Action, id string) (*subscription.Subscription, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		if ierr.IsNotFound(err) {
			if authErr := s.authorize(ctx, action, rbac.Owned(rbac.EntitySubscription, unknownOwner)); authErr != nil {
				return nil, authErr
			}
		}
		return nil, err
	}
	if _, err := s.authorizeCustomerResource(ctx, rbac.EntitySubscription, action, sub.CustomerID); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *subscriptionService) GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	sub, err := s.getSubscriptionFor(ctx, rbac.ActionRead, id)
	if err != nil {
		return nil, err
	}

	resp := dto.NewSubscriptionResponse(sub)
	if p, err := s.PlanRepo.Get(ctx, sub.PlanID); err == nil {
		resp.Plan = p
	} else {
		s.Logger.Warnw("plan lookup failed", "subscription_id", sub.ID, "plan_id", sub.PlanID, "error", err)
	}
	return resp, nil
}

func (s *subscriptionService) ListSubscriptions(ctx context.Context, filter *types.SubscriptionFilter) (*dto.ListSubscriptionsResponse, error) {
	if filter == nil {
		filter = types.NewSubscriptionFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	for _, status := range filter.Statuses {
		if err := status.Validate(); err != nil {
			return nil, err
		}
	}

	ok, err := s.scopeToPrincipal(ctx, rbac.EntitySubscription, &filter.CustomerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.NewListResponse([]*dto.SubscriptionResponse{}, filter), nil
	}

	subs, err := s.SubRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := lo.Map(subs, func(sub *subscription.Subscription, _ int) *dto.SubscriptionResponse {
		return dto.NewSubscriptionResponse(sub)
	})
	return types.NewListResponse(items, filter), nil
}

func (s *subscriptionService) CancelSubscription(ctx context.Context, id string, req dto.CancelSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	sub, err := s.getSubscriptionFor(ctx, rbac.ActionCancel, id)
	if err != nil {
		return nil, err
	}

	// compare-and-set on the status read; a lost race re-reads so an
	// immediate cancel that landed first is never undone
	for attempt := 0; ; attempt++ {
		from := sub.Status
		if !sub.Cancel(req.AtPeriodEnd, time.Now().UTC()) {
			return dto.NewSubscriptionResponse(sub), nil
		}
		err = s.SubRepo.Update(ctx, sub, from)
		if err == nil {
			break
		}
		if !ierr.IsVersionConflict(err) || attempt >= maxTransitionRetries {
			return nil, err
		}
		s.Logger.Debugw("subscription changed concurrently, retrying cancel",
			"subscription_id", id,
			"from", from,
			"attempt", attempt+1,
		)
		if sub, err = s.SubRepo.Get(ctx, id); err != nil {
			return nil, err
		}
	}

	s.Logger.Infow("canceled subscription",
		"subscription_id", sub.ID,
		"at_period_end", req.AtPeriodEnd,
		"status", sub.Status,
	)
	return dto.NewSubscriptionResponse(sub), nil
}

func (s *subscriptionService) CreateCheckout(ctx context.Context, id string, req dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	sub, err := s.getSubscriptionFor(ctx, rbac.ActionCheckout, id)
	if err != nil {
		return nil, err
	}
	if sub.IsCanceled() {
		return nil, ierr.NewError("subscription is canceled").
			WithHint("A canceled subscription cannot be paid").
			WithReportableDetails(map[string]any{
				"subscription_id": sub.ID,
			}).
			Mark(ierr.ErrInvalidState)
	}

	p, err := s.PlanRepo.Get(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}
	provider, err := s.Providers.GetProvider(req.Provider)
	if err != nil {
		return nil, err
	}

	payable := base.PayableFromSubscription(sub, p)
	if err := payable.Validate(); err != nil {
		return nil, err
	}

	session, err := provider.CreateCheckout(ctx, payable)
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("created subscription checkout",
		"subscription_id", sub.ID,
		"provider", provider.Name(),
		"session_id", session.ID,
	)
	return &dto.CheckoutResponse{CheckoutSession: session, Provider: provider.Name()}, nil
}
