package billing

import (
	"context"
	"time"
)

const defaultAccountMetadataKey = "phone"

// Config configures an Engine. It is passed explicitly; nothing in this
// package reads global state.
type Config struct {
	// TrialDaysDefault is the trial offered on new checkout sessions. Zero disables trials.
	TrialDaysDefault int

	// GraceDaysDefault opens a grace window after a failed payment. Zero disables grace.
	GraceDaysDefault int

	// PaywallEnabled gates access with IsEntitled. When false every account passes.
	PaywallEnabled bool

	// AllowUnverifiedWebhooks skips webhook signature verification. Debug only.
	AllowUnverifiedWebhooks bool

	// WebhookIdempotency rejects redelivered events by id. Disable only to debug.
	WebhookIdempotency bool

	// AccountMetadataKey is the provider metadata key carrying the account id.
	// Defaults to "phone".
	AccountMetadataKey string

	// DomainURL is the public base URL used for checkout return pages.
	DomainURL string

	// Provider is used by trial extension and manual refresh. Optional.
	Provider ProviderClient

	// CircuitBreaker guards Provider calls. Optional.
	CircuitBreaker CircuitBreaker

	// Checkout is used by checkout bootstrapping and the customer portal. Optional.
	Checkout CheckoutClient

	// Logger is an optional structured logger. Defaults to NoopLogger.
	Logger Logger

	// Metrics is an optional metrics collector. Defaults to NoopMetrics.
	Metrics Metrics

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time

	// OnStatusChange is called after a persisted patch changed the resolved
	// status of an account. It runs synchronously; errors are the callee's.
	OnStatusChange func(ctx context.Context, change StatusChange)
}

// DefaultConfig returns the configuration used when nothing is set in the
// environment: paywall on, idempotency on, no trial, no grace.
func DefaultConfig() Config {
	return Config{
		PaywallEnabled:     true,
		WebhookIdempotency: true,
		AccountMetadataKey: defaultAccountMetadataKey,
	}
}

func (c *Config) setDefaults() {
	if c.AccountMetadataKey == "" {
		c.AccountMetadataKey = defaultAccountMetadataKey
	}
	if c.Logger == nil {
		c.Logger = &NoopLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = &NoopMetrics{}
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.TrialDaysDefault < 0 {
		c.TrialDaysDefault = 0
	}
	if c.GraceDaysDefault < 0 {
		c.GraceDaysDefault = 0
	}
}
