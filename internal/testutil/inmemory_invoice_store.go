package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/saasinvoice/billing/internal/domain/invoice"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/samber/lo"
)

// InMemoryInvoiceStore implements invoice.Repository
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]

	seqMu     sync.Mutex
	sequences map[string]int64
}

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		InMemoryStore: NewInMemoryStore("invoice", cloneInvoice),
		sequences:     make(map[string]int64),
	}
}

func cloneInvoice(inv *invoice.Invoice) *invoice.Invoice {
	c := *inv
	c.SubscriptionID = clonePtr(inv.SubscriptionID)
	c.PeriodStart = clonePtr(inv.PeriodStart)
	c.PeriodEnd = clonePtr(inv.PeriodEnd)
	c.IssuedAt = clonePtr(inv.IssuedAt)
	c.DueDate = clonePtr(inv.DueDate)
	c.FinalizedAt = clonePtr(inv.FinalizedAt)
	c.PaidAt = clonePtr(inv.PaidAt)
	c.VoidedAt = clonePtr(inv.VoidedAt)
	c.Items = lo.Map(inv.Items, func(item *invoice.InvoiceItem, _ int) *invoice.InvoiceItem {
		ic := *item
		return &ic
	})
	return &c
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func invoiceFilterFn(ctx context.Context, inv *invoice.Invoice, filter interface{}) bool {
	if inv == nil {
		return false
	}
	f, ok := filter.(*types.InvoiceFilter)
	if !ok || f == nil {
		return true
	}
	if f.CustomerID != "" && inv.CustomerID != f.CustomerID {
		return false
	}
	if f.SubscriptionID != "" && lo.FromPtr(inv.SubscriptionID) != f.SubscriptionID {
		return false
	}
	if len(f.Statuses) > 0 && !lo.Contains(f.Statuses, inv.Status) {
		return false
	}
	return true
}

func invoiceSortFn(i, j *invoice.Invoice) bool {
	if i.CreatedAt.Equal(j.CreatedAt) {
		return i.ID > j.ID
	}
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	if inv == nil {
		return ierr.NewError("invoice cannot be nil").Mark(ierr.ErrValidation)
	}
	if _, exists := s.Find(ctx, func(existing *invoice.Invoice) bool { return existing.Number == inv.Number }); exists {
		return ierr.NewError("invoice already exists").
			WithHint("An invoice with this number already exists").
			WithReportableDetails(map[string]any{
				"number": inv.Number,
			}).
			Mark(ierr.ErrAlreadyExists)
	}
	return s.InMemoryStore.Create(ctx, inv.ID, inv)
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	inv, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(inv.Items, func(i, j int) bool {
		return inv.Items[i].Position < inv.Items[j].Position
	})
	return inv, nil
}

// GetForUpdate relies on MockPostgresClient running one transaction at a
// time, so it only checks that a transaction is open.
func (s *InMemoryInvoiceStore) GetForUpdate(ctx context.Context, id string) (*invoice.Invoice, error) {
	if !InTx(ctx) {
		return nil, ierr.NewError("row lock requested outside a transaction").
			WithHint("Invoice lock requires a transaction").
			WithReportableDetails(map[string]any{"invoice_id": id}).
			Mark(ierr.ErrSystem)
	}
	return s.Get(ctx, id)
}

func (s *InMemoryInvoiceStore) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	if filter == nil {
		filter = types.NewInvoiceFilter()
	}
	return s.InMemoryStore.List(ctx, filter, invoiceFilterFn, invoiceSortFn)
}

// Update writes amounts and notes of a draft, leaving items and status alone
func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	changed, err := s.Mutate(ctx, inv.ID, func(stored *invoice.Invoice) bool {
		if !stored.IsDraft() {
			return false
		}
		stored.Subtotal = inv.Subtotal
		stored.Tax = inv.Tax
		stored.Discount = inv.Discount
		stored.Total = inv.Total
		stored.Notes = inv.Notes
		stored.UpdatedAt = inv.UpdatedAt
		return true
	})
	if err != nil {
		return err
	}
	if !changed {
		return conflict(inv.ID)
	}
	return nil
}

func (s *InMemoryInvoiceStore) UpdateStatus(ctx context.Context, inv *invoice.Invoice, from types.InvoiceStatus) error {
	changed, err := s.Mutate(ctx, inv.ID, func(stored *invoice.Invoice) bool {
		if stored.Status != from {
			return false
		}
		items := stored.Items
		*stored = *cloneInvoice(inv)
		stored.Items = items
		return true
	})
	if err != nil {
		return err
	}
	if !changed {
		return conflict(inv.ID)
	}
	return nil
}

func (s *InMemoryInvoiceStore) Delete(ctx context.Context, id string) error {
	inv, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return err
	}
	if !inv.IsDraft() {
		return conflict(id)
	}
	return s.InMemoryStore.Delete(ctx, id)
}

func (s *InMemoryInvoiceStore) AddItem(ctx context.Context, item *invoice.InvoiceItem) error {
	_, err := s.Mutate(ctx, item.InvoiceID, func(stored *invoice.Invoice) bool {
		ic := *item
		stored.Items = append(stored.Items, &ic)
		return true
	})
	return err
}

func (s *InMemoryInvoiceStore) RemoveItem(ctx context.Context, invoiceID, itemID string) error {
	removed, err := s.Mutate(ctx, invoiceID, func(stored *invoice.Invoice) bool {
		before := len(stored.Items)
		stored.Items = lo.Reject(stored.Items, func(item *invoice.InvoiceItem, _ int) bool {
			return item.ID == itemID
		})
		return len(stored.Items) < before
	})
	if err != nil {
		return err
	}
	if !removed {
		return ierr.NewError("invoice item not found").
			WithHint("invoice item was not found").
			WithReportableDetails(map[string]any{
				"item_id": itemID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (s *InMemoryInvoiceStore) NextSequence(ctx context.Context, key string) (int64, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	s.sequences[key]++
	return s.sequences[key], nil
}

// Clear also resets the number sequences
func (s *InMemoryInvoiceStore) Clear() {
	s.InMemoryStore.Clear()
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	s.sequences = make(map[string]int64)
}

func conflict(id string) error {
	return ierr.NewError("invoice status changed concurrently").
		WithHint("Invoice was modified by another request").
		WithReportableDetails(map[string]any{
			"invoice_id": id,
		}).
		Mark(ierr.ErrVersionConflict)
}
