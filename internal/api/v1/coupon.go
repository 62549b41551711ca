package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/saasinvoice/billing/internal/api/dto"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/logger"
	"github.com/saasinvoice/billing/internal/service"
	"github.com/saasinvoice/billing/internal/types"
)

type CouponHandler struct {
	service service.CouponService
	log     *logger.Logger
}

func NewCouponHandler(service service.CouponService, log *logger.Logger) *CouponHandler {
	return &CouponHandler{service: service, log: log}
}

// @Summary Create a coupon
// @Description Create a percent or fixed amount coupon
// @Tags Coupons
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param coupon body dto.CreateCouponRequest true "Coupon"
// @Success 201 {object} dto.CouponResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /coupons [post]
func (h *CouponHandler) CreateCoupon(c *gin.Context) {
	var req dto.CreateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.CreateCoupon(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Get a coupon
// @Tags Coupons
// @Produce json
// @Security BearerAuth
// @Param id path string true "Coupon ID"
// @Success 200 {object} dto.CouponResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /coupons/{id} [get]
func (h *CouponHandler) GetCoupon(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := h.service.GetCoupon(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List coupons
// @Tags Coupons
// @Produce json
// @Security BearerAuth
// @Param filter query types.CouponFilter false "Filter"
// @Success 200 {object} dto.ListCouponsResponse
// @Router /coupons [get]
func (h *CouponHandler) ListCoupons(c *gin.Context) {
	filter := types.NewCouponFilter()
	if err := c.ShouldBindQuery(filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}
	filter.QueryFilter = pageOrDefault(filter.QueryFilter)

	resp, err := h.service.ListCoupons(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Deactivate a coupon
// @Description A deactivated coupon can no longer be redeemed
// @Tags Coupons
// @Produce json
// @Security BearerAuth
// @Param id path string true "Coupon ID"
// @Success 200 {object} dto.SuccessResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /coupons/{id} [delete]
func (h *CouponHandler) DeactivateCoupon(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeactivateCoupon(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true, Message: "coupon deactivated"})
}

// @Summary Preview a coupon
// @Description Compute the discount a coupon gives on an amount without redeeming it
// @Tags Coupons
// @Produce json
// @Security BearerAuth
// @Param code path string true "Coupon code"
// @Param amount query int true "Amount in minor units"
// @Param currency query string true "Currency"
// @Success 200 {object} dto.CouponPreviewResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /coupons/{code}/preview [get]
func (h *CouponHandler) PreviewCoupon(c *gin.Context) {
	// shares the wildcard of /coupons/:id, the segment holds the code here
	code, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req dto.PreviewCouponRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid query parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.PreviewCoupon(c.Request.Context(), code, req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
