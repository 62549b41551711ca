package service

import (
	"github.com/saasinvoice/billing/internal/cache"
	"github.com/saasinvoice/billing/internal/config"
	"github.com/saasinvoice/billing/internal/domain/coupon"
	"github.com/saasinvoice/billing/internal/domain/customer"
	"github.com/saasinvoice/billing/internal/domain/invoice"
	"github.com/saasinvoice/billing/internal/domain/payment"
	"github.com/saasinvoice/billing/internal/domain/plan"
	"github.com/saasinvoice/billing/internal/domain/subscription"
	"github.com/saasinvoice/billing/internal/integration"
	"github.com/saasinvoice/billing/internal/logger"
	"github.com/saasinvoice/billing/internal/metrics"
	"github.com/saasinvoice/billing/internal/notification"
	"github.com/saasinvoice/billing/internal/pdf"
	"github.com/saasinvoice/billing/internal/postgres"
	"github.com/saasinvoice/billing/internal/rbac"
	"github.com/saasinvoice/billing/internal/s3"
	"github.com/saasinvoice/billing/internal/sentry"
	"github.com/saasinvoice/billing/internal/tax"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient
	Cache  cache.Cache

	RBAC      *rbac.Service
	Metrics   *metrics.Metrics
	Sentry    *sentry.Service
	TaxRates  tax.RateProvider
	Providers *integration.Factory
	Notifier  notification.Notifier

	// PDFRenderer turns finalized invoices into documents. S3 is nil when
	// document storage is disabled.
	PDFRenderer pdf.Renderer
	S3          s3.Service

	// Repositories
	PlanRepo     plan.Repository
	CouponRepo   coupon.Repository
	CustomerRepo customer.Repository
	SubRepo      subscription.Repository
	InvoiceRepo  invoice.Repository
	PaymentRepo  payment.Repository
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	cache cache.Cache,
	rbacService *rbac.Service,
	metrics *metrics.Metrics,
	sentryService *sentry.Service,
	taxRates tax.RateProvider,
	providers *integration.Factory,
	notifier notification.Notifier,
	pdfRenderer pdf.Renderer,
	s3Service s3.Service,
	planRepo plan.Repository,
	couponRepo coupon.Repository,
	customerRepo customer.Repository,
	subRepo subscription.Repository,
	invoiceRepo invoice.Repository,
	paymentRepo payment.Repository,
) ServiceParams {
	return ServiceParams{
		Logger:       logger,
		Config:       config,
		DB:           db,
		Cache:        cache,
		RBAC:         rbacService,
		Metrics:      metrics,
		Sentry:       sentryService,
		TaxRates:     taxRates,
		Providers:    providers,
		Notifier:     notifier,
		PDFRenderer:  pdfRenderer,
		S3:           s3Service,
		PlanRepo:     planRepo,
		CouponRepo:   couponRepo,
		CustomerRepo: customerRepo,
		SubRepo:      subRepo,
		InvoiceRepo:  invoiceRepo,
		PaymentRepo:  paymentRepo,
	}
}
