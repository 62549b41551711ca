package testutil

import (
	"context"
	"sync"

	"github.com/saasinvoice/billing/internal/domain/customer"
	"github.com/saasinvoice/billing/internal/domain/invoice"
	"github.com/saasinvoice/billing/internal/notification"
)

var _ notification.Notifier = (*RecordingNotifier)(nil)

// RecordingNotifier remembers every notification it was asked to send
type RecordingNotifier struct {
	mu   sync.Mutex
	paid []string
	err  error
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

func (n *RecordingNotifier) InvoicePaid(_ context.Context, inv *invoice.Invoice, _ *customer.Customer) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paid = append(n.paid, inv.ID)
	return n.err
}

// FailWith makes subsequent notifications return err after recording them
func (n *RecordingNotifier) FailWith(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

// PaidCount returns how often invoiceID was reported paid
func (n *RecordingNotifier) PaidCount(invoiceID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	count := 0
	for _, id := range n.paid {
		if id == invoiceID {
			count++
		}
	}
	return count
}

func (n *RecordingNotifier) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paid = nil
	n.err = nil
}
