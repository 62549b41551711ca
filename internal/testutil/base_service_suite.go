package testutil

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/saasinvoice/billing/internal/cache"
	"github.com/saasinvoice/billing/internal/config"
	"github.com/saasinvoice/billing/internal/integration"
	"github.com/saasinvoice/billing/internal/integration/base"
	"github.com/saasinvoice/billing/internal/integration/dummy"
	"github.com/saasinvoice/billing/internal/logger"
	"github.com/saasinvoice/billing/internal/metrics"
	"github.com/saasinvoice/billing/internal/rbac"
	"github.com/saasinvoice/billing/internal/sentry"
	"github.com/saasinvoice/billing/internal/tax"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/stretchr/testify/suite"
)

const DummyWebhookSecret = "whsec_dummy_test"

// Stores holds all the repository implementations for testing
type Stores struct {
	PlanRepo     *InMemoryPlanStore
	CouponRepo   *InMemoryCouponStore
	CustomerRepo *InMemoryCustomerStore
	SubRepo      *InMemorySubscriptionStore
	InvoiceRepo  *InMemoryInvoiceStore
	PaymentRepo  *InMemoryPaymentStore
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx         context.Context
	stores      Stores
	db          *MockPostgresClient
	logger      *logger.Logger
	config      *config.Configuration
	now         time.Time
	rbac        *rbac.Service
	metrics     *metrics.Metrics
	sentry      *sentry.Service
	cache       cache.Cache
	taxRates    tax.RateProvider
	dummyStore  dummy.Store
	providers   *integration.Factory
	notifier    *RecordingNotifier
	pdfRenderer *MockPDFRenderer
}

// SetupSuite is called once before all tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	s.config = NewTestConfig()
	s.logger = logger.NewNoopLogger()

	rbacService, err := rbac.NewService(s.logger)
	s.Require().NoError(err)
	s.rbac = rbacService
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.setupContext()
	s.setupStores()
	s.setupCollaborators()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

// NewTestConfig returns a valid configuration with the dummy provider
// enabled and every external integration disabled
func NewTestConfig() *config.Configuration {
	return &config.Configuration{
		Deployment: config.DeploymentConfig{Mode: types.ModeLocal},
		Server:     config.ServerConfig{Address: ":0"},
		Logging:    config.LoggingConfig{Level: types.LogLevelDebug},
		Auth:       config.AuthConfig{Secret: "test-secret", Issuer: "billing-test"},
		Billing: config.BillingConfig{
			TaxRate:        "8.5",
			InvoicePrefix:  "INV",
			InvoiceDueDays: 30,
		},
		Payments: config.PaymentsConfig{
			Provider:       types.PaymentProviderDummy,
			CaptureTimeout: 2 * time.Second,
			CheckoutTTL:    time.Hour,
			Dummy: config.DummyProviderConfig{
				Enabled:       true,
				WebhookSecret: DummyWebhookSecret,
				CheckoutURL:   "http://localhost:8080/checkout",
			},
		},
		Cache: config.CacheConfig{Enabled: true, TTL: time.Minute},
	}
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = SetupContext()
}

func (s *BaseServiceTestSuite) setupStores() {
	subs := NewInMemorySubscriptionStore()
	s.stores = Stores{
		PlanRepo:     NewInMemoryPlanStore(subs),
		CouponRepo:   NewInMemoryCouponStore(),
		CustomerRepo: NewInMemoryCustomerStore(),
		SubRepo:      subs,
		InvoiceRepo:  NewInMemoryInvoiceStore(),
		PaymentRepo:  NewInMemoryPaymentStore(),
	}
	s.db = NewMockPostgresClient(s.logger)
}

func (s *BaseServiceTestSuite) setupCollaborators() {
	s.metrics = metrics.NewMetricsWithRegistry(prometheus.NewRegistry())
	s.sentry = sentry.NewSentryService(s.config, s.logger)
	s.cache = cache.NewInMemoryCache(s.config)
	s.taxRates = tax.NewConfigRateProvider(s.config)
	s.dummyStore = dummy.NewMemoryStore()
	s.providers = integration.NewFactory(s.config, s.dummyStore, s.logger)
	s.notifier = NewRecordingNotifier()
	s.pdfRenderer = NewMockPDFRenderer()
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.PlanRepo.Clear()
	s.stores.CouponRepo.Clear()
	s.stores.CustomerRepo.Clear()
	s.stores.SubRepo.Clear()
	s.stores.InvoiceRepo.Clear()
	s.stores.PaymentRepo.Clear()
	s.notifier.Clear()
}

// UseProviders replaces the registered payment providers, the first one
// becomes the default
func (s *BaseServiceTestSuite) UseProviders(providers ...base.Provider) {
	s.Require().NotEmpty(providers)
	s.providers = integration.NewFactoryWithProviders(providers[0].Name(), s.logger, providers...)
}

// AsUser returns the suite context acting as userID with role
func (s *BaseServiceTestSuite) AsUser(userID string, role types.Role) context.Context {
	return WithPrincipal(s.ctx, userID, role)
}

// AsOwner returns the suite context acting as an organisation owner
func (s *BaseServiceTestSuite) AsOwner() context.Context {
	return WithPrincipal(s.ctx, "user_owner", types.RoleOwner)
}

func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

func (s *BaseServiceTestSuite) GetDB() *MockPostgresClient {
	return s.db
}

func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}

func (s *BaseServiceTestSuite) GetRBAC() *rbac.Service {
	return s.rbac
}

func (s *BaseServiceTestSuite) GetMetrics() *metrics.Metrics {
	return s.metrics
}

func (s *BaseServiceTestSuite) GetSentry() *sentry.Service {
	return s.sentry
}

func (s *BaseServiceTestSuite) GetCache() cache.Cache {
	return s.cache
}

func (s *BaseServiceTestSuite) GetTaxRates() tax.RateProvider {
	return s.taxRates
}

func (s *BaseServiceTestSuite) GetDummyStore() dummy.Store {
	return s.dummyStore
}

func (s *BaseServiceTestSuite) GetProviders() *integration.Factory {
	return s.providers
}

func (s *BaseServiceTestSuite) GetNotifier() *RecordingNotifier {
	return s.notifier
}

func (s *BaseServiceTestSuite) GetPDFRenderer() *MockPDFRenderer {
	return s.pdfRenderer
}
