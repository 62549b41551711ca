package service

import (
	"context"
	"time"

	"github.com/saasinvoice/billing/internal/api/dto"
	"github.com/saasinvoice/billing/internal/domain/customer"
	"github.com/saasinvoice/billing/internal/domain/invoice"
	"github.com/saasinvoice/billing/internal/domain/payment"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/pdf"
	"github.com/saasinvoice/billing/internal/rbac"
	"github.com/saasinvoice/billing/internal/s3"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/samber/lo"
)

// maxTransitionRetries bounds how often a status transition is re-read and
// re-applied after losing a compare-and-set
const maxTransitionRetries = 2

type InvoiceService interface {
	CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error)
	GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error)

	AddItem(ctx context.Context, id string, req dto.CreateInvoiceItemRequest) (*dto.InvoiceResponse, error)
	RemoveItem(ctx context.Context, id, itemID string) (*dto.InvoiceResponse, error)
	DeleteDraft(ctx context.Context, id string) error

	FinalizeInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	// MarkAsPaid records an out of band payment. Marking a paid invoice again
	// succeeds without side effects.
	MarkAsPaid(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	VoidInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	MarkUncollectible(ctx context.Context, id string) (*dto.InvoiceResponse, error)

	RenderPDF(ctx context.Context, id string) (*dto.InvoicePDFResponse, error)
	ListPayments(ctx context.Context, id string) ([]*dto.PaymentResponse, error)
}

type invoiceService struct {
	ServiceParams
}

func NewInvoiceService(params ServiceParams) InvoiceService {
	return &invoiceService{ServiceParams: params}
}

func (s *invoiceService) CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := s.authorize(ctx, rbac.ActionCreate, rbac.Collection(rbac.EntityInvoice)); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	currency, err := types.NormalizeCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	if _, err := s.CustomerRepo.Get(ctx, req.CustomerID); err != nil {
		return nil, err
	}
	if req.SubscriptionID != nil {
		sub, err := s.SubRepo.Get(ctx, *req.SubscriptionID)
		if err != nil {
			return nil, err
		}
		if sub.CustomerID != req.CustomerID {
			return nil, ierr.NewError("subscription belongs to another customer").
				WithHint("The subscription does not belong to this customer").
				WithReportableDetails(map[string]any{
					"customer_id":     req.CustomerID,
					"subscription_id": sub.ID,
				}).
				Mark(ierr.ErrValidation)
		}
	}

	now := time.Now().UTC()
	inv := &invoice.Invoice{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		CustomerID:     req.CustomerID,
		SubscriptionID: req.SubscriptionID,
		Currency:       currency,
		Discount:       req.Discount,
		Notes:          req.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for i := range req.Items {
		item, err := req.Items[i].ToItem(inv.ID, i, now)
		if err != nil {
			return nil, err
		}
		inv.Items = append(inv.Items, item)
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		return s.createDraftInvoice(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("created draft invoice",
		"invoice_id", inv.ID,
		"number", inv.Number,
		"customer_id", inv.CustomerID,
		"items", len(inv.Items),
	)
	return dto.NewInvoiceResponse(inv), nil
}

// createDraftInvoice numbers inv from the yearly sequence, computes its
// amounts and stores it as a draft. It must run inside a transaction.
func (p ServiceParams) createDraftInvoice(ctx context.Context, inv *invoice.Invoice) error {
	year := inv.CreatedAt.Year()
	seq, err := p.InvoiceRepo.NextSequence(ctx, invoice.SequenceKey(p.Config.Billing.InvoicePrefix, year))
	if err != nil {
		return err
	}

	inv.Number = invoice.FormatNumber(p.Config.Billing.InvoicePrefix, year, seq)
	inv.Status = types.InvoiceStatusDraft
	if err := inv.Recalculate(p.TaxRates.Rate(ctx)); err != nil {
		return err
	}
	return p.InvoiceRepo.Create(ctx, inv)
}

// getInvoiceFor loads an invoice and checks action against its owner
func (p ServiceParams) getInvoiceFor(ctx context.Context, action rbac.Action, id string) (*invoice.Invoice, *customer.Customer, error) {
	inv, err := p.InvoiceRepo.Get(ctx, id)
	if err != nil {
		if ierr.IsNotFound(err) {
			// callers without access learn nothing about the id
			if authErr := p.authorize(ctx, action, rbac.Owned(rbac.EntityInvoice, unknownOwner)); authErr != nil {
				return nil, nil, authErr
			}
		}
		return nil, nil, err
	}

	cust, err := p.authorizeCustomerResource(ctx, rbac.EntityInvoice, action, inv.CustomerID)
	if err != nil {
		return nil, nil, err
	}
	return inv, cust, nil
}

// lockInvoiceFor is getInvoiceFor followed by a locked re-read, so item
// edits and finalize never interleave. It must run inside DB.WithTx.
func (p ServiceParams) lockInvoiceFor(ctx context.Context, action rbac.Action, id string) (*invoice.Invoice, error) {
	if _, _, err := p.getInvoiceFor(ctx, action, id); err != nil {
		return nil, err
	}
	return p.InvoiceRepo.GetForUpdate(ctx, id)
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	inv, _, err := s.getInvoiceFor(ctx, rbac.ActionRead, id)
	if err != nil {
		return nil, err
	}
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error) {
	if filter == nil {
		filter = types.NewInvoiceFilter()
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

	ok, err := s.scopeToPrincipal(ctx, rbac.EntityInvoice, &filter.CustomerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.NewListResponse([]*dto.InvoiceResponse{}, filter), nil
	}

	invoices, err := s.InvoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := lo.Map(invoices, func(inv *invoice.Invoice, _ int) *dto.InvoiceResponse {
		return dto.NewInvoiceResponse(inv)
	})
	return types.NewListResponse(items, filter), nil
}

func (s *invoiceService) AddItem(ctx context.Context, id string, req dto.CreateInvoiceItemRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var inv *invoice.Invoice
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.lockInvoiceFor(ctx, rbac.ActionUpdate, id)
		if err != nil {
			return err
		}
		if err := inv.EnsureDraft("add item to"); err != nil {
			return err
		}

		now := time.Now().UTC()
		position := 0
		if n := len(inv.Items); n > 0 {
			position = inv.Items[n-1].Position + 1
		}
		item, err := req.ToItem(inv.ID, position, now)
		if err != nil {
			return err
		}
		if err := s.InvoiceRepo.AddItem(ctx, item); err != nil {
			return err
		}

		inv.Items = append(inv.Items, item)
		inv.UpdatedAt = now
		if err := inv.Recalculate(s.TaxRates.Rate(ctx)); err != nil {
			return err
		}
		return s.InvoiceRepo.Update(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) RemoveItem(ctx context.Context, id, itemID string) (*dto.InvoiceResponse, error) {
	var inv *invoice.Invoice
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.lockInvoiceFor(ctx, rbac.ActionUpdate, id)
		if err != nil {
			return err
		}
		if err := inv.EnsureDraft("remove item from"); err != nil {
			return err
		}
		if err := s.InvoiceRepo.RemoveItem(ctx, inv.ID, itemID); err != nil {
			return err
		}

		inv.Items = lo.Reject(inv.Items, func(item *invoice.InvoiceItem, _ int) bool {
			return item.ID == itemID
		})
		inv.UpdatedAt = time.Now().UTC()
		if err := inv.Recalculate(s.TaxRates.Rate(ctx)); err != nil {
			return err
		}
		return s.InvoiceRepo.Update(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) DeleteDraft(ctx context.Context, id string) error {
	inv, _, err := s.getInvoiceFor(ctx, rbac.ActionDelete, id)
	if err != nil {
		return err
	}
	if err := inv.EnsureDraft("delete"); err != nil {
		return err
	}
	if err := s.InvoiceRepo.Delete(ctx, id); err != nil {
		// finalized between the read and the delete
		if ierr.IsVersionConflict(err) {
			return ierr.WithError(err).
				WithHint("Invoice is no longer a draft").
				Mark(ierr.ErrInvalidState)
		}
		return err
	}

	s.Logger.Infow("deleted draft invoice", "invoice_id", id, "number", inv.Number)
	return nil
}

func (s *invoiceService) FinalizeInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	if _, _, err := s.getInvoiceFor(ctx, rbac.ActionFinalize, id); err != nil {
		return nil, err
	}

	rate := s.TaxRates.Rate(ctx)
	dueDays := s.Config.Billing.InvoiceDueDays
	inv, _, err := s.transitionInvoice(ctx, id, func(inv *invoice.Invoice, now time.Time) (bool, error) {
		if err := inv.Finalize(rate, dueDays, now); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.invoiceTransitioned(ctx, inv)
	s.Logger.Infow("finalized invoice",
		"invoice_id", inv.ID,
		"number", inv.Number,
		"total", inv.Total,
		"due_date", inv.DueDate,
	)
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) MarkAsPaid(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	if _, _, err := s.getInvoiceFor(ctx, rbac.ActionUpdate, id); err != nil {
		return nil, err
	}

	inv, changed, err := s.markInvoicePaid(ctx, id)
	if err != nil {
		return nil, err
	}
	if changed {
		s.invoiceTransitioned(ctx, inv)
	}
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) VoidInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	if _, _, err := s.getInvoiceFor(ctx, rbac.ActionVoid, id); err != nil {
		return nil, err
	}

	inv, changed, err := s.transitionInvoice(ctx, id, (*invoice.Invoice).Void)
	if err != nil {
		return nil, err
	}
	if changed {
		s.invoiceTransitioned(ctx, inv)
		s.Logger.Infow("voided invoice", "invoice_id", inv.ID, "number", inv.Number)
	}
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) MarkUncollectible(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	if _, _, err := s.getInvoiceFor(ctx, rbac.ActionMarkUncollectible, id); err != nil {
		return nil, err
	}

	inv, changed, err := s.transitionInvoice(ctx, id, (*invoice.Invoice).MarkUncollectible)
	if err != nil {
		return nil, err
	}
	if changed {
		s.invoiceTransitioned(ctx, inv)
		s.Logger.Infow("marked invoice uncollectible", "invoice_id", inv.ID, "number", inv.Number)
	}
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) RenderPDF(ctx context.Context, id string) (*dto.InvoicePDFResponse, error) {
	inv, cust, err := s.getInvoiceFor(ctx, rbac.ActionRender, id)
	if err != nil {
		return nil, err
	}
	if inv.IsDraft() {
		return nil, ierr.NewError("cannot render a draft invoice").
			WithHint("Finalize the invoice before downloading it").
			WithReportableDetails(map[string]any{
				"invoice_id": inv.ID,
			}).
			Mark(ierr.ErrInvalidState)
	}

	resp := &dto.InvoicePDFResponse{InvoiceID: inv.ID, Number: inv.Number}

	// the status is part of the key so a paid invoice is not served the open copy
	docID := inv.ID + "-" + string(inv.Status)
	if s.S3 != nil {
		exists, err := s.S3.Exists(ctx, docID, s3.DocumentTypeInvoice)
		if err != nil {
			return nil, err
		}
		if exists {
			resp.URL, err = s.S3.GetPresignedUrl(ctx, docID, s3.DocumentTypeInvoice)
			if err != nil {
				return nil, err
			}
			return resp, nil
		}
	}

	data, err := s.PDFRenderer.RenderInvoice(ctx, pdf.NewInvoiceData(inv, cust))
	if err != nil {
		return nil, err
	}
	resp.Data = data

	if s.S3 == nil {
		return resp, nil
	}
	if err := s.S3.UploadDocument(ctx, s3.NewPdfDocument(docID, data, s3.DocumentTypeInvoice)); err != nil {
		// the rendered bytes are still good, serve them directly
		s.Logger.Errorw("failed to store invoice pdf", "invoice_id", inv.ID, "error", err)
		s.Sentry.CaptureException(err)
		return resp, nil
	}
	if url, err := s.S3.GetPresignedUrl(ctx, docID, s3.DocumentTypeInvoice); err == nil {
		resp.URL = url
	}
	return resp, nil
}

func (s *invoiceService) ListPayments(ctx context.Context, id string) ([]*dto.PaymentResponse, error) {
	inv, cust, err := s.getInvoiceFor(ctx, rbac.ActionRead, id)
	if err != nil {
		return nil, err
	}
	owner := unknownOwner
	if cust != nil {
		owner = cust.UserID
	}
	if err := s.authorize(ctx, rbac.ActionRead, rbac.Owned(rbac.EntityPayment, owner)); err != nil {
		return nil, err
	}

	payments, err := s.PaymentRepo.ListByInvoice(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	return lo.Map(payments, func(p *payment.Payment, _ int) *dto.PaymentResponse {
		return &dto.PaymentResponse{Payment: p}
	}), nil
}

// invoiceTransition applies a status change in memory. It reports false when
// the invoice is already in the target state.
type invoiceTransition func(inv *invoice.Invoice, now time.Time) (bool, error)

// transitionInvoice applies fn to the locked invoice row and writes the
// result with a compare-and-set on the status it read. Item edits take the
// same lock, so fn always sees the committed item list. On a lost race it
// re-reads and re-applies, so a concurrent identical transition turns into a
// no-op. It reports whether this call performed the change.
func (p ServiceParams) transitionInvoice(ctx context.Context, id string, fn invoiceTransition) (*invoice.Invoice, bool, error) {
	for attempt := 0; ; attempt++ {
		var (
			inv     *invoice.Invoice
			changed bool
			from    types.InvoiceStatus
		)
		err := p.DB.WithTx(ctx, func(ctx context.Context) error {
			var err error
			inv, err = p.InvoiceRepo.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}

			from = inv.Status
			changed, err = fn(inv, time.Now().UTC())
			if err != nil || !changed {
				return err
			}
			return p.InvoiceRepo.UpdateStatus(ctx, inv, from)
		})
		if err == nil {
			return inv, changed, nil
		}
		if !changed {
			return inv, false, err
		}
		if !ierr.IsVersionConflict(err) || attempt >= maxTransitionRetries {
			return nil, false, err
		}
		p.Logger.Debugw("invoice changed concurrently, retrying transition",
			"invoice_id", id,
			"from", from,
			"attempt", attempt+1,
		)
	}
}

func (p ServiceParams) markInvoicePaid(ctx context.Context, id string) (*invoice.Invoice, bool, error) {
	return p.transitionInvoice(ctx, id, (*invoice.Invoice).MarkPaid)
}

// invoiceTransitioned runs the side effects of a committed transition
func (p ServiceParams) invoiceTransitioned(ctx context.Context, inv *invoice.Invoice) {
	p.Metrics.RecordInvoiceTransition(string(inv.Status))
	if inv.IsPaid() {
		p.notifyInvoicePaid(ctx, inv)
	}
}
