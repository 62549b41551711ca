package v1

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/logger"
	"github.com/saasinvoice/billing/internal/service"
	"github.com/saasinvoice/billing/internal/types"
)

// maxWebhookBody bounds what is read from a provider delivery
const maxWebhookBody = 1 << 20

// WebhookHandler receives provider deliveries. Routes are unauthenticated,
// deliveries are verified by the provider signature instead.
type WebhookHandler struct {
	webhookService service.WebhookService
	logger         *logger.Logger
}

func NewWebhookHandler(webhookService service.WebhookService, logger *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
		logger:         logger,
	}
}

// HandleWebhook godoc
// @Summary Receive a payment provider webhook
// @Description Verifies and applies a provider event. Repeated deliveries are acknowledged without effect.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param provider path string true "Provider" Enums(dummy, stripe)
// @Success 200 {object} dto.WebhookResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /payments/webhooks/{provider} [post]
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	provider := types.PaymentProvider(c.Param("provider"))
	if err := provider.Validate(); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Unknown payment provider").
			Mark(ierr.ErrNotFound))
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.logger.Errorw("failed to read webhook body", "provider", provider, "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Failed to read request body").
			Mark(ierr.ErrPayload))
		return
	}

	signature := c.GetHeader(types.WebhookSignatureHeader(provider))

	resp, err := h.webhookService.HandleWebhook(c.Request.Context(), provider, body, signature)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
