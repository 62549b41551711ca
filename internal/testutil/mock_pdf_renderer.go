package testutil

import (
	"context"

	"github.com/saasinvoice/billing/internal/pdf"
	"github.com/stretchr/testify/mock"
)

var _ pdf.Renderer = (*MockPDFRenderer)(nil)

type MockPDFRenderer struct {
	mock.Mock
}

// RenderInvoice implements pdf.Renderer.
func (m *MockPDFRenderer) RenderInvoice(ctx context.Context, data *pdf.InvoiceData) ([]byte, error) {
	args := m.Called(ctx, data)
	if b, ok := args.Get(0).([]byte); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func NewMockPDFRenderer() *MockPDFRenderer {
	return &MockPDFRenderer{}
}
