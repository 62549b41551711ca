package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig   `validate:"required"`
	Auth       AuthConfig       `validate:"required"`
	Billing    BillingConfig    `validate:"required"`
	Payments   PaymentsConfig   `validate:"required"`
	Cache      CacheConfig
	S3         S3Config
	Email      EmailConfig
	Sentry     SentryConfig
	Events     EventsConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host                   string
	Port                   int
	User                   string
	Password               string
	DBName                 string
	SSLMode                string
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `mapstructure:"conn_max_lifetime_minutes"`
}

type AuthConfig struct {
	Secret string `validate:"required"`
	Issuer string
}

// BillingConfig holds the invoice rules. TaxRate is a percentage, "8.5" means 8.5%.
type BillingConfig struct {
	TaxRate        string `mapstructure:"tax_rate" validate:"required,numeric"`
	InvoicePrefix  string `mapstructure:"invoice_prefix" validate:"required"`
	InvoiceDueDays int    `mapstructure:"invoice_due_days" validate:"min=0"`
}

type PaymentsConfig struct {
	Provider       types.PaymentProvider `validate:"required"`
	CaptureTimeout time.Duration         `mapstructure:"capture_timeout"`
	CheckoutTTL    time.Duration         `mapstructure:"checkout_ttl"`
	Dummy          DummyProviderConfig
	Stripe         StripeConfig
}

type DummyProviderConfig struct {
	Enabled       bool
	WebhookSecret string `mapstructure:"webhook_secret"`
	CheckoutURL   string `mapstructure:"checkout_url"`
}

type StripeConfig struct {
	Enabled        bool
	SecretKey      string `mapstructure:"secret_key"`
	PublishableKey string `mapstructure:"publishable_key"`
	WebhookSecret  string `mapstructure:"webhook_secret"`
	SuccessURL     string `mapstructure:"success_url"`
	CancelURL      string `mapstructure:"cancel_url"`
	MaxRetries     uint64 `mapstructure:"max_retries"`
}

type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

type S3Config struct {
	Enabled   bool
	Region    string
	Bucket    string
	KeyPrefix string `mapstructure:"key_prefix"`
}

type EmailConfig struct {
	Enabled     bool
	APIKey      string `mapstructure:"api_key"`
	FromAddress string `mapstructure:"from_address"`
	ReplyTo     string `mapstructure:"reply_to"`
}

type SentryConfig struct {
	Enabled     bool
	DSN         string
	Environment string
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type EventsConfig struct {
	Topic string
}

func NewConfig() (*Configuration, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/billing")

	v.SetEnvPrefix("BILLING")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", types.ModeLocal)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", types.LogLevelInfo)
	v.SetDefault("billing.tax_rate", "8.5")
	v.SetDefault("billing.invoice_prefix", "INV")
	v.SetDefault("billing.invoice_due_days", 30)
	v.SetDefault("payments.provider", types.PaymentProviderDummy)
	v.SetDefault("payments.capture_timeout", 15*time.Second)
	v.SetDefault("payments.checkout_ttl", 24*time.Hour)
	v.SetDefault("payments.stripe.max_retries", 3)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("events.topic", "billing_events")
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := c.Payments.Provider.Validate(); err != nil {
		return err
	}

	if c.Payments.Provider == types.PaymentProviderDummy && !c.Payments.Dummy.Enabled {
		return errors.New("payments.provider is dummy but payments.dummy.enabled is false")
	}
	// unsigned webhooks are never accepted in production
	if c.Deployment.Mode == types.ModeProduction && c.Payments.Dummy.Enabled {
		return errors.New("the dummy payment provider cannot be enabled in production mode")
	}
	if c.Payments.Provider == types.PaymentProviderStripe && !c.Payments.Stripe.Enabled {
		return errors.New("payments.provider is stripe but payments.stripe.enabled is false")
	}
	if c.Payments.Stripe.Enabled && (c.Payments.Stripe.SecretKey == "" || c.Payments.Stripe.WebhookSecret == "") {
		return errors.New("stripe requires payments.stripe.secret_key and payments.stripe.webhook_secret")
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		return errors.New("s3.bucket is required when s3 is enabled")
	}
	return nil
}

// GetTaxRate returns the configured tax percentage
func (c BillingConfig) GetTaxRate() decimal.Decimal {
	rate, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return decimal.Zero
	}
	return rate
}

// GetDefaultConfig returns a default configuration for local development,
// scripts and tests.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Auth:       AuthConfig{Secret: "local-development-secret"},
		Billing: BillingConfig{
			TaxRate:        "8.5",
			InvoicePrefix:  "INV",
			InvoiceDueDays: 30,
		},
		Payments: PaymentsConfig{
			Provider:       types.PaymentProviderDummy,
			CaptureTimeout: 15 * time.Second,
			CheckoutTTL:    24 * time.Hour,
			Dummy: DummyProviderConfig{
				Enabled:     true,
				CheckoutURL: "https://dummy-payment.com/checkout",
			},
		},
		Cache:  CacheConfig{Enabled: true, TTL: 5 * time.Minute},
		Events: EventsConfig{Topic: "billing_events"},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}
