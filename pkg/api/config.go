package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mksouza37/listinha/pkg/billing"
)

// Engine is the part of *billing.Engine the API serves.
type Engine interface {
	Describe(ctx context.Context, accountID string) (*billing.View, error)
	GrantExempt(ctx context.Context, accountID string) (billing.Resolution, error)
	RevokeExempt(ctx context.Context, accountID string) (billing.Resolution, error)
	ExtendTrial(ctx context.Context, accountID string, days int) (billing.Resolution, error)
	RefreshFromProvider(ctx context.Context, accountID string) (billing.Resolution, error)
	StartCheckout(ctx context.Context, accountID, instance string) (*billing.CheckoutSession, error)
	PortalURL(ctx context.Context, accountID, returnURL string) (string, error)
}

// Config holds configuration for the billing API handler
type Config struct {
	// Engine is the billing engine (required)
	Engine Engine

	// GetAccountID extracts the account of a status request.
	// Defaults to the "account" query parameter.
	GetAccountID func(*http.Request) string

	// MaxBodyBytes caps admin request bodies. Defaults to 64 KiB.
	MaxBodyBytes int64

	// OnError handles errors. If nil, errors are written as JSON with a
	// status code derived from the billing sentinel errors.
	OnError func(http.ResponseWriter, *http.Request, error)

	// Logger is optional; admin failures are logged at Warn.
	Logger billing.Logger
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Engine == nil {
		return fmt.Errorf("engine is required")
	}
	return nil
}

// NewHandler creates a new billing API handler with the given configuration
func NewHandler(config Config) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.GetAccountID == nil {
		config.GetAccountID = FromQuery("account")
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaultMaxBodyBytes
	}
	if config.Logger == nil {
		config.Logger = &billing.NoopLogger{}
	}
	return &Handler{config: config}, nil
}

// Helper functions for common account extraction patterns

// FromQuery returns a GetAccountID function reading a query parameter
func FromQuery(name string) func(*http.Request) string {
	return func(r *http.Request) string {
		return r.URL.Query().Get(name)
	}
}

// FromHeader returns a GetAccountID function that extracts the account from a header
func FromHeader(headerName string) func(*http.Request) string {
	return func(r *http.Request) string {
		return r.Header.Get(headerName)
	}
}

// FromContext returns a GetAccountID function that extracts the account from request context
func FromContext(key interface{}) func(*http.Request) string {
	return func(r *http.Request) string {
		if accountID, ok := r.Context().Value(key).(string); ok {
			return accountID
		}
		return ""
	}
}
