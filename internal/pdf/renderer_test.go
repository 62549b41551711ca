package pdf

import (
	"context"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/saasinvoice/billing/internal/domain/customer"
	"github.com/saasinvoice/billing/internal/domain/invoice"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockCompiler struct {
	mock.Mock
}

func (m *MockCompiler) CompileTemplate(ctx context.Context, templateName string, data []byte) ([]byte, error) {
	args := m.Called(ctx, templateName, data)
	return args.Get(0).([]byte), args.Error(1)
}

func TestRenderInvoice(t *testing.T) {
	compiler := new(MockCompiler)
	r := NewRenderer(compiler)

	data := &InvoiceData{ID: "inv_1", Number: "INV-2025-000001"}
	payload, err := jsoniter.Marshal(data)
	assert.NoError(t, err)

	compiler.On("CompileTemplate", mock.Anything, "invoice.typ", payload).Return([]byte("%PDF-1.7"), nil)

	doc, err := r.RenderInvoice(context.Background(), data)
	assert.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), doc)
}

func TestRenderInvoiceError(t *testing.T) {
	compiler := new(MockCompiler)
	r := NewRenderer(compiler)

	compiler.On("CompileTemplate", mock.Anything, "invoice.typ", mock.Anything).
		Return([]byte(nil), ierr.NewError("typst missing").Mark(ierr.ErrSystem))

	_, err := r.RenderInvoice(context.Background(), &InvoiceData{ID: "inv_1"})
	assert.Error(t, err)
}

func TestNewInvoiceData(t *testing.T) {
	issued := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	due := issued.AddDate(0, 0, 30)
	inv := &invoice.Invoice{
		ID:       "inv_1",
		Number:   "INV-2025-000001",
		Currency: "USD",
		Status:   types.InvoiceStatusOpen,
		Subtotal: 2900,
		Tax:      246,
		Discount: 580,
		Total:    2566,
		IssuedAt: &issued,
		DueDate:  &due,
		Items: []*invoice.InvoiceItem{
			{Description: "Invoicing Pro", Quantity: 1, UnitAmount: 2900},
		},
	}
	cust := &customer.Customer{Email: "jane@example.com", CompanyName: "Acme", City: "Berlin", Country: "DE"}

	data := NewInvoiceData(inv, cust)
	assert.Equal(t, "$25.66", data.Total)
	assert.Equal(t, "$5.80", data.Discount)
	assert.Equal(t, "2025-01-31", data.DueDate)
	assert.Equal(t, "", data.PaidAt)
	assert.Equal(t, "Acme", data.Customer.Name)
	assert.Equal(t, []string{"Berlin", "DE"}, data.Customer.Address)
	assert.Len(t, data.Items, 1)
	assert.Equal(t, "$29.00", data.Items[0].Amount)
}
