package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/saasinvoice/billing/internal/api/dto"
	"github.com/saasinvoice/billing/internal/logger"
	"github.com/saasinvoice/billing/internal/service"
)

type PaymentHandler struct {
	paymentService service.PaymentService
	logger         *logger.Logger
}

func NewPaymentHandler(paymentService service.PaymentService, logger *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// PayInvoice godoc
// @Summary Pay an open invoice
// @Description Captures the invoice total through a payment provider. A provider timeout
// @Description answers 504 and the outcome is settled by the provider webhook.
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Invoice ID"
// @Param request body dto.PayInvoiceRequest false "Provider"
// @Success 200 {object} dto.PayInvoiceResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Failure 502 {object} ierr.ErrorResponse
// @Failure 504 {object} ierr.ErrorResponse
// @Router /invoices/{id}/pay [post]
func (h *PaymentHandler) PayInvoice(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req dto.PayInvoiceRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	resp, err := h.paymentService.PayInvoice(c.Request.Context(), id, req)
	if err != nil {
		h.logger.Errorw("failed to pay invoice", "invoice_id", id, "provider", req.Provider, "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CreateInvoiceCheckout godoc
// @Summary Create a checkout for an invoice
// @Description Opens a hosted payment page for the invoice total
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Invoice ID"
// @Param request body dto.CheckoutRequest false "Provider"
// @Success 201 {object} dto.CheckoutResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /invoices/{id}/checkout [post]
func (h *PaymentHandler) CreateInvoiceCheckout(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req dto.CheckoutRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	resp, err := h.paymentService.CreateInvoiceCheckout(c.Request.Context(), id, req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetPayment godoc
// @Summary Get a payment
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Success 200 {object} dto.PaymentResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /payments/{id} [get]
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := h.paymentService.GetPayment(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetPaymentStatus godoc
// @Summary Compare a payment with the provider
// @Description provider_status is unknown when the provider cannot resolve the payment
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Success 200 {object} dto.PaymentStatusResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /payments/{id}/status [get]
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := h.paymentService.GetPaymentStatus(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RefundPayment godoc
// @Summary Refund a payment
// @Description Refunds the amount given, or everything not yet refunded
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Param request body dto.RefundRequest false "Refund"
// @Success 201 {object} dto.RefundResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /payments/{id}/refund [post]
func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req dto.RefundRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	resp, err := h.paymentService.RefundPayment(c.Request.Context(), id, req)
	if err != nil {
		h.logger.Errorw("failed to refund payment", "payment_id", id, "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}
