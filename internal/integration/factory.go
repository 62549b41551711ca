package integration

import (
	"github.com/saasinvoice/billing/internal/config"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/integration/base"
	"github.com/saasinvoice/billing/internal/integration/dummy"
	"github.com/saasinvoice/billing/internal/integration/stripe"
	"github.com/saasinvoice/billing/internal/logger"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/samber/lo"
)

// Factory resolves payment providers by name. Only providers enabled in the
// configuration are registered.
type Factory struct {
	providers       map[types.PaymentProvider]base.Provider
	defaultProvider types.PaymentProvider
	logger          *logger.Logger
}

func NewFactory(cfg *config.Configuration, dummyStore dummy.Store, log *logger.Logger) *Factory {
	providers := make([]base.Provider, 0, 2)
	if cfg.Payments.Dummy.Enabled {
		providers = append(providers, dummy.NewProvider(cfg, dummyStore, log))
	}
	if cfg.Payments.Stripe.Enabled {
		providers = append(providers, stripe.NewProvider(cfg, log))
	}
	return NewFactoryWithProviders(cfg.Payments.Provider, log, providers...)
}

// NewFactoryWithProviders registers the given providers as is
func NewFactoryWithProviders(defaultProvider types.PaymentProvider, log *logger.Logger, providers ...base.Provider) *Factory {
	f := &Factory{
		providers:       make(map[types.PaymentProvider]base.Provider, len(providers)),
		defaultProvider: defaultProvider,
		logger:          log,
	}
	for _, p := range providers {
		f.providers[p.Name()] = p
	}
	log.Infow("payment providers registered",
		"providers", lo.Keys(f.providers),
		"default", defaultProvider,
	)
	return f
}

// GetProvider returns the named provider, or the default when name is empty
func (f *Factory) GetProvider(name types.PaymentProvider) (base.Provider, error) {
	if name == "" {
		name = f.defaultProvider
	}
	p, ok := f.providers[name]
	if !ok {
		return nil, ierr.NewErrorf("payment provider %s is not enabled", name).
			WithHintf("Payment provider %s is not available", name).
			WithReportableDetails(map[string]any{
				"provider": name,
				"enabled":  lo.Keys(f.providers),
			}).
			Mark(ierr.ErrNotFound)
	}
	return p, nil
}

func (f *Factory) Default() (base.Provider, error) {
	return f.GetProvider(f.defaultProvider)
}
