package api

import (
	"github.com/gin-gonic/gin"
	v1 "github.com/saasinvoice/billing/internal/api/v1"
	"github.com/saasinvoice/billing/internal/auth"
	"github.com/saasinvoice/billing/internal/config"
	"github.com/saasinvoice/billing/internal/logger"
	"github.com/saasinvoice/billing/internal/metrics"
	"github.com/saasinvoice/billing/internal/rest/middleware"
	"github.com/saasinvoice/billing/internal/types"
)

type Handlers struct {
	Health       *v1.HealthHandler
	Plan         *v1.PlanHandler
	Coupon       *v1.CouponHandler
	Customer     *v1.CustomerHandler
	Subscription *v1.SubscriptionHandler
	Invoice      *v1.InvoiceHandler
	Payment      *v1.PaymentHandler
	Webhook      *v1.WebhookHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger, authService *auth.Service, m *metrics.Metrics) *gin.Engine {
	if cfg.Deployment.Mode != types.ModeLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.CORSMiddleware,
		middleware.SentryMiddleware(cfg),
		m.Middleware(),
		middleware.ErrorHandler(),
	)

	router.GET("/health", handlers.Health.Health)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	public := router.Group("/v1")
	{
		// providers cannot carry a bearer token, deliveries are signed instead
		public.POST("/payments/webhooks/:provider", handlers.Webhook.HandleWebhook)
	}

	private := router.Group("/v1")
	private.Use(middleware.AuthenticateMiddleware(authService, logger))

	plans := private.Group("/plans")
	{
		plans.POST("", handlers.Plan.CreatePlan)
		plans.GET("", handlers.Plan.ListPlans)
		plans.GET("/:id", handlers.Plan.GetPlan)
		plans.PUT("/:id", handlers.Plan.UpdatePlan)
		plans.DELETE("/:id", handlers.Plan.DeactivatePlan)
	}

	coupons := private.Group("/coupons")
	{
		coupons.POST("", handlers.Coupon.CreateCoupon)
		coupons.GET("", handlers.Coupon.ListCoupons)
		coupons.GET("/:id", handlers.Coupon.GetCoupon)
		coupons.GET("/:id/preview", handlers.Coupon.PreviewCoupon)
		coupons.DELETE("/:id", handlers.Coupon.DeactivateCoupon)
	}

	customers := private.Group("/customers")
	{
		customers.GET("/me", handlers.Customer.GetMe)
		customers.PUT("/me", handlers.Customer.UpdateMe)
		customers.GET("/:id", handlers.Customer.GetCustomer)
	}

	subscriptions := private.Group("/subscriptions")
	{
		subscriptions.POST("", handlers.Subscription.CreateSubscription)
		subscriptions.GET("", handlers.Subscription.ListSubscriptions)
		subscriptions.GET("/:id", handlers.Subscription.GetSubscription)
		subscriptions.POST("/:id/cancel", handlers.Subscription.CancelSubscription)
		subscriptions.POST("/:id/checkout", handlers.Subscription.CreateCheckout)
	}

	invoices := private.Group("/invoices")
	{
		invoices.POST("", handlers.Invoice.CreateInvoice)
		invoices.GET("", handlers.Invoice.ListInvoices)
		invoices.GET("/:id", handlers.Invoice.GetInvoice)
		invoices.DELETE("/:id", handlers.Invoice.DeleteDraft)
		invoices.POST("/:id/items", handlers.Invoice.AddItem)
		invoices.DELETE("/:id/items/:item_id", handlers.Invoice.RemoveItem)
		invoices.POST("/:id/finalize", handlers.Invoice.FinalizeInvoice)
		invoices.POST("/:id/mark-paid", handlers.Invoice.MarkAsPaid)
		invoices.POST("/:id/void", handlers.Invoice.VoidInvoice)
		invoices.POST("/:id/uncollectible", handlers.Invoice.MarkUncollectible)
		invoices.GET("/:id/pdf", handlers.Invoice.GetInvoicePDF)
		invoices.GET("/:id/payments", handlers.Invoice.ListPayments)
		invoices.POST("/:id/pay", handlers.Payment.PayInvoice)
		invoices.POST("/:id/checkout", handlers.Payment.CreateInvoiceCheckout)
	}

	payments := private.Group("/payments")
	{
		payments.GET("/:id", handlers.Payment.GetPayment)
		payments.GET("/:id/status", handlers.Payment.GetPaymentStatus)
		payments.POST("/:id/refund", handlers.Payment.RefundPayment)
	}

	return router
}
