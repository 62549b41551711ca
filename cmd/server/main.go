package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/saasinvoice/billing/internal/api"
	v1 "github.com/saasinvoice/billing/internal/api/v1"
	"github.com/saasinvoice/billing/internal/auth"
	"github.com/saasinvoice/billing/internal/cache"
	"github.com/saasinvoice/billing/internal/config"
	"github.com/saasinvoice/billing/internal/email"
	"github.com/saasinvoice/billing/internal/integration"
	"github.com/saasinvoice/billing/internal/integration/dummy"
	"github.com/saasinvoice/billing/internal/logger"
	"github.com/saasinvoice/billing/internal/metrics"
	"github.com/saasinvoice/billing/internal/notification"
	"github.com/saasinvoice/billing/internal/pdf"
	"github.com/saasinvoice/billing/internal/postgres"
	"github.com/saasinvoice/billing/internal/publisher"
	"github.com/saasinvoice/billing/internal/pubsub"
	"github.com/saasinvoice/billing/internal/pubsub/memory"
	"github.com/saasinvoice/billing/internal/rbac"
	"github.com/saasinvoice/billing/internal/repository"
	"github.com/saasinvoice/billing/internal/s3"
	"github.com/saasinvoice/billing/internal/sentry"
	"github.com/saasinvoice/billing/internal/service"
	"github.com/saasinvoice/billing/internal/tax"
	"github.com/saasinvoice/billing/internal/typst"
	"go.uber.org/fx"
)

// @title Billing API
// @version 1.0
// @description Subscriptions, invoices and payments
// @BasePath /v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Monitoring
			sentry.NewSentryService,
			metrics.NewMetrics,

			// Cache
			cache.NewInMemoryCache,

			// Postgres
			postgres.NewDB,
			providePostgresClient,

			// Repositories
			repository.NewPlanRepository,
			repository.NewCouponRepository,
			repository.NewCustomerRepository,
			repository.NewSubscriptionRepository,
			repository.NewInvoiceRepository,
			repository.NewPaymentRepository,

			// Authorization
			auth.NewService,
			rbac.NewService,

			// Events and notifications
			memory.NewPubSub,
			publisher.NewEventPublisher,
			email.NewClient,
			email.NewService,
			notification.NewNotifier,

			// Documents
			typst.DefaultCompiler,
			pdf.NewRenderer,
			s3.NewService,

			// Billing collaborators
			tax.NewConfigRateProvider,
			dummy.NewMemoryStore,
			integration.NewFactory,
		),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,

			service.NewPlanService,
			service.NewCouponService,
			service.NewCustomerService,
			service.NewSubscriptionService,
			service.NewInvoiceService,
			service.NewPaymentService,
			service.NewWebhookService,
		),
	)

	// API
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			sentry.RegisterHooks,
			startEventLog,
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func providePostgresClient(db *postgres.DB) postgres.IClient {
	return db
}

func provideHandlers(
	db *postgres.DB,
	logger *logger.Logger,
	planService service.PlanService,
	couponService service.CouponService,
	customerService service.CustomerService,
	subscriptionService service.SubscriptionService,
	invoiceService service.InvoiceService,
	paymentService service.PaymentService,
	webhookService service.WebhookService,
) api.Handlers {
	return api.Handlers{
		Health:       v1.NewHealthHandler(db, logger),
		Plan:         v1.NewPlanHandler(planService, logger),
		Coupon:       v1.NewCouponHandler(couponService, logger),
		Customer:     v1.NewCustomerHandler(customerService, logger),
		Subscription: v1.NewSubscriptionHandler(subscriptionService, logger),
		Invoice:      v1.NewInvoiceHandler(invoiceService, logger),
		Payment:      v1.NewPaymentHandler(paymentService, logger),
		Webhook:      v1.NewWebhookHandler(webhookService, logger),
	}
}

func provideRouter(
	handlers api.Handlers,
	cfg *config.Configuration,
	logger *logger.Logger,
	authService *auth.Service,
	m *metrics.Metrics,
) *gin.Engine {
	return api.NewRouter(handlers, cfg, logger, authService, m)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	db *postgres.DB,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting API server", "address", cfg.Server.Address, "mode", cfg.Deployment.Mode)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			err := srv.Shutdown(ctx)
			db.Close()
			log.Sync()
			return err
		},
	})
}

// startEventLog drains the domain event topic into the log
func startEventLog(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	ps pubsub.PubSub,
	log *logger.Logger,
) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			messages, err := ps.Subscribe(ctx, cfg.Events.Topic)
			if err != nil {
				cancel()
				return err
			}
			go func() {
				for msg := range messages {
					log.Infow("domain event",
						"message_id", msg.UUID,
						"event", msg.Metadata.Get("event_name"),
						"topic", cfg.Events.Topic,
					)
					msg.Ack()
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return ps.Close()
		},
	})
}
