package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Webhook outcomes
const (
	WebhookReceived  = "received"
	WebhookApplied   = "applied"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
	WebhookRejected  = "rejected"
)

// Metrics holds the prometheus collectors of the billing engine
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	WebhookEventsTotal     *prometheus.CounterVec
	PaymentsTotal          *prometheus.CounterVec
	InvoiceTransitionTotal *prometheus.CounterVec
	CouponRedemptionsTotal prometheus.Counter
}

func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.NewRegistry())
}

// NewMetricsWithRegistry creates and registers all collectors on registry
func NewMetricsWithRegistry(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billing_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_webhook_events_total",
				Help: "Webhook events by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		PaymentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_payments_total",
				Help: "Payment capture attempts by provider and resulting status",
			},
			[]string{"provider", "status"},
		),
		InvoiceTransitionTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_invoice_transitions_total",
				Help: "Invoice status transitions",
			},
			[]string{"to"},
		),
		CouponRedemptionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "billing_coupon_redemptions_total",
				Help: "Coupons redeemed by new subscriptions",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.WebhookEventsTotal,
		m.PaymentsTotal,
		m.InvoiceTransitionTotal,
		m.CouponRedemptionsTotal,
	)
	return m
}

func (m *Metrics) RecordWebhook(provider, outcome string) {
	m.WebhookEventsTotal.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) RecordPayment(provider, status string) {
	m.PaymentsTotal.WithLabelValues(provider, status).Inc()
}

func (m *Metrics) RecordInvoiceTransition(to string) {
	m.InvoiceTransitionTotal.WithLabelValues(to).Inc()
}

func (m *Metrics) RecordCouponRedemption() {
	m.CouponRedemptionsTotal.Inc()
}

// Handler exposes the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per route template
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
