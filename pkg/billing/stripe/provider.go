package stripe

import (
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/mksouza37/listinha/pkg/billing"
	"github.com/mksouza37/listinha/pkg/billing/internal"
)

const (
	providerName             = "stripe"
	defaultRateLimitWindow   = time.Minute
	defaultRateLimitRequests = 100
	defaultMaxBodyBytes      = 256 * 1024
)

// Config holds the Stripe credentials and wiring for a Provider.
type Config struct {
	// SecretKey is the Stripe API secret key (sk_...). Required.
	SecretKey string

	// WebhookSecret is the signing secret of the webhook endpoint (whsec_...).
	WebhookSecret string

	// PriceID is the recurring price sold by checkout sessions.
	PriceID string

	// AllowUnverifiedWebhooks accepts unsigned webhook payloads. Debug only.
	AllowUnverifiedWebhooks bool

	// RateLimitRequests caps webhook requests per client IP per minute.
	// Defaults to 100.
	RateLimitRequests int

	// Backends overrides the Stripe API backends. Used by tests.
	Backends *stripe.Backends

	Logger  billing.Logger
	Metrics billing.Metrics
}

// Provider binds the billing engine to Stripe. It implements
// billing.ProviderClient and billing.CheckoutClient and serves the webhook
// endpoint.
type Provider struct {
	client        *stripe.Client
	config        Config
	webhookSecret string
	rateLimiter   *internal.RateLimiter
	logger        billing.Logger
	metrics       billing.Metrics
}

// NewProvider creates a new Stripe provider
func NewProvider(config Config) (*Provider, error) {
	apiKey := strings.TrimSpace(config.SecretKey)
	if apiKey == "" {
		return nil, billing.ErrProviderNotConfigured
	}

	var opts []stripe.ClientOption
	if config.Backends != nil {
		opts = append(opts, stripe.WithBackends(config.Backends))
	}

	limit := config.RateLimitRequests
	if limit <= 0 {
		limit = defaultRateLimitRequests
	}

	logger := config.Logger
	if logger == nil {
		logger = &billing.NoopLogger{}
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = &billing.NoopMetrics{}
	}

	return &Provider{
		client:        stripe.NewClient(apiKey, opts...),
		config:        config,
		webhookSecret: strings.TrimSpace(config.WebhookSecret),
		rateLimiter:   internal.NewRateLimiter(limit, defaultRateLimitWindow),
		logger:        logger,
		metrics:       metrics,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// recordCall reports the outcome and latency of one Stripe API call.
func (p *Provider) recordCall(endpoint string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.metrics.RecordAPICall(providerName, endpoint, status)
	p.metrics.RecordAPICallDuration(providerName, endpoint, time.Since(start))
}
