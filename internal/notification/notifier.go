package notification

import (
	"context"

	"github.com/saasinvoice/billing/internal/domain/customer"
	"github.com/saasinvoice/billing/internal/domain/invoice"
	"github.com/saasinvoice/billing/internal/email"
	"github.com/saasinvoice/billing/internal/logger"
	"github.com/saasinvoice/billing/internal/money"
	"github.com/saasinvoice/billing/internal/publisher"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
)

// Notifier is told about state changes that customers or downstream systems
// care about. Callers invoke it once per transition, after commit.
type Notifier interface {
	InvoicePaid(ctx context.Context, inv *invoice.Invoice, cust *customer.Customer) error
}

type notifier struct {
	email     *email.Service
	publisher publisher.EventPublisher
	logger    *logger.Logger
}

func NewNotifier(emailSvc *email.Service, pub publisher.EventPublisher, logger *logger.Logger) Notifier {
	return &notifier{
		email:     emailSvc,
		publisher: pub,
		logger:    logger,
	}
}

// InvoicePaid sends the confirmation email and publishes invoice.paid
// concurrently. Both are attempted even when one fails.
func (n *notifier) InvoicePaid(ctx context.Context, inv *invoice.Invoice, cust *customer.Customer) error {
	p := pool.New().WithErrors().WithContext(ctx)

	if cust != nil && cust.Email != "" {
		p.Go(func(ctx context.Context) error {
			paidAt := ""
			if inv.PaidAt != nil {
				paidAt = inv.PaidAt.Format("January 2, 2006")
			}
			return n.email.SendPaymentConfirmation(ctx, &email.PaymentConfirmation{
				To:            cust.Email,
				CustomerName:  lo.Ternary(cust.CompanyName != "", cust.CompanyName, email.ExtractNameFromEmail(cust.Email)),
				InvoiceNumber: inv.Number,
				Amount:        money.Format(inv.Total, inv.Currency),
				PaidAt:        paidAt,
			})
		})
	}

	p.Go(func(ctx context.Context) error {
		return n.publisher.Publish(ctx, publisher.NewEvent(publisher.EventInvoicePaid, map[string]interface{}{
			"invoice_id":     inv.ID,
			"invoice_number": inv.Number,
			"customer_id":    inv.CustomerID,
			"total":          inv.Total,
			"currency":       inv.Currency,
		}))
	})

	if err := p.Wait(); err != nil {
		n.logger.Errorw("invoice paid notification incomplete",
			"error", err,
			"invoice_id", inv.ID,
		)
		return err
	}
	return nil
}
