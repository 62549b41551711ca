package pdf

import (
	"context"

	jsoniter "github.com/json-iterator/go"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/typst"
)

const invoiceTemplate = "invoice.typ"

// Renderer produces invoice documents
type Renderer interface {
	RenderInvoice(ctx context.Context, data *InvoiceData) ([]byte, error)
}

type renderer struct {
	typst typst.Compiler
}

func NewRenderer(compiler typst.Compiler) Renderer {
	return &renderer{typst: compiler}
}

func (r *renderer) RenderInvoice(ctx context.Context, data *InvoiceData) ([]byte, error) {
	payload, err := jsoniter.Marshal(data)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to marshal invoice data").
			Mark(ierr.ErrSystem)
	}

	doc, err := r.typst.CompileTemplate(ctx, invoiceTemplate, payload)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to compile invoice template").
			Mark(ierr.ErrSystem)
	}
	return doc, nil
}
