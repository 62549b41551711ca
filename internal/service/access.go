package service

import (
	"context"

	"github.com/saasinvoice/billing/internal/domain/customer"
	"github.com/saasinvoice/billing/internal/domain/invoice"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/rbac"
	"github.com/saasinvoice/billing/internal/types"
)

// unknownOwner never matches a principal, so owner scoped grants fail
// closed when the owning customer cannot be resolved.
const unknownOwner = "\x00unknown"

func (p ServiceParams) authorize(ctx context.Context, action rbac.Action, resource rbac.Resource) error {
	return p.RBAC.Authorize(types.GetPrincipal(ctx), action, resource)
}

// ownerOf returns the user owning customerID
func (p ServiceParams) ownerOf(ctx context.Context, customerID string) (*customer.Customer, string, error) {
	cust, err := p.CustomerRepo.Get(ctx, customerID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, unknownOwner, nil
		}
		return nil, "", err
	}
	return cust, cust.UserID, nil
}

// authorizeCustomerResource checks action on a resource belonging to customerID
func (p ServiceParams) authorizeCustomerResource(ctx context.Context, entity rbac.Entity, action rbac.Action, customerID string) (*customer.Customer, error) {
	cust, owner, err := p.ownerOf(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := p.authorize(ctx, action, rbac.Owned(entity, owner)); err != nil {
		return nil, err
	}
	return cust, nil
}

// scopeToPrincipal narrows a listing of entity to the caller's own customer.
// It returns false when the caller has no customer and so owns nothing.
func (p ServiceParams) scopeToPrincipal(ctx context.Context, entity rbac.Entity, customerID *string) (bool, error) {
	principal := types.GetPrincipal(ctx)
	if err := p.authorize(ctx, rbac.ActionRead, rbac.Collection(entity)); err != nil {
		return false, err
	}
	if p.RBAC.SeesAll(principal, entity) {
		return true, nil
	}

	cust, err := p.CustomerRepo.GetByUserID(ctx, principal.UserID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if *customerID != "" && *customerID != cust.ID {
		return false, nil
	}
	*customerID = cust.ID
	return true, nil
}

// notifyInvoicePaid runs after the paid transition has committed. Failures
// are logged; the invoice stays paid.
func (p ServiceParams) notifyInvoicePaid(ctx context.Context, inv *invoice.Invoice) {
	if p.Notifier == nil {
		return
	}

	cust, err := p.CustomerRepo.Get(ctx, inv.CustomerID)
	if err != nil {
		p.Logger.Warnw("customer lookup failed for paid notification",
			"invoice_id", inv.ID,
			"customer_id", inv.CustomerID,
			"error", err,
		)
	}
	if err := p.Notifier.InvoicePaid(ctx, inv, cust); err != nil {
		p.Logger.Errorw("failed to notify invoice paid",
			"invoice_id", inv.ID,
			"error", err,
		)
		p.Sentry.CaptureException(err)
	}
}
