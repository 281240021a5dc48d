// Package http provides net/http paywall middleware backed by the billing engine
package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mksouza37/listinha/pkg/billing"
)

// StatusHeader carries the resolved billing status on gated responses.
const StatusHeader = "X-Billing-Status"

// AccountIDExtractor extracts the account ID from an HTTP request
// Return empty string if the caller is not authenticated
type AccountIDExtractor func(r *http.Request) string

// Config holds middleware configuration
type Config struct {
	// Gate answers entitlement checks (required). *billing.Engine implements it.
	Gate billing.Gate

	// GetAccountID extracts the account ID from the request (required)
	GetAccountID AccountIDExtractor

	// OnPaymentRequired is called when the account is not entitled
	// If nil, returns 402 Payment Required with the resolved status
	OnPaymentRequired func(w http.ResponseWriter, r *http.Request, res billing.Resolution)

	// OnUnauthorized is called when no account could be extracted
	// If nil, returns 401 Unauthorized
	OnUnauthorized func(w http.ResponseWriter, r *http.Request)

	// OnError is called when the billing status cannot be read
	// If nil, returns 500 Internal Server Error
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// PaymentRequiredResponse is the default body of a 402 reply
type PaymentRequiredResponse struct {
	Error  string         `json:"error"`
	Status billing.Status `json:"status"`
	Until  *int64         `json:"until,omitempty"`
}

// Middleware creates HTTP middleware that lets only entitled accounts through
func Middleware(config Config) func(http.Handler) http.Handler {
	if config.Gate == nil {
		panic("listinha/http: Config.Gate is required")
	}
	if config.GetAccountID == nil {
		panic("listinha/http: Config.GetAccountID is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID := config.GetAccountID(r)
			if accountID == "" {
				if config.OnUnauthorized != nil {
					config.OnUnauthorized(w, r)
				} else {
					writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
				}
				return
			}

			ok, res, err := config.Gate.RequireEntitled(r.Context(), accountID)
			if err != nil {
				if config.OnError != nil {
					config.OnError(w, r, err)
				} else {
					writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
				}
				return
			}

			if res.Status != "" {
				w.Header().Set(StatusHeader, string(res.Status))
			}
			if !ok {
				if config.OnPaymentRequired != nil {
					config.OnPaymentRequired(w, r, res)
				} else {
					writeJSON(w, http.StatusPaymentRequired, PaymentRequiredResponse{
						Error:  "Payment Required",
						Status: res.Status,
						Until:  res.Until,
					})
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(WithResolution(r.Context(), res)))
		})
	}
}

// HandlerFunc wraps a single http.HandlerFunc with the paywall
func HandlerFunc(config Config) func(http.HandlerFunc) http.HandlerFunc {
	middleware := Middleware(config)
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			middleware(next).ServeHTTP(w, r)
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// ContextKey is the type of context keys used by this package
type ContextKey string

const (
	// AccountIDKey is the context key auth middleware may use for the account
	AccountIDKey ContextKey = "billing:accountID"

	resolutionKey ContextKey = "billing:resolution"
)

// FromContext returns an AccountIDExtractor that gets the account from request context
func FromContext(key ContextKey) AccountIDExtractor {
	return func(r *http.Request) string {
		if accountID, ok := r.Context().Value(key).(string); ok {
			return accountID
		}
		return ""
	}
}

// FromHeader returns an AccountIDExtractor that gets the account from a header
func FromHeader(headerName string) AccountIDExtractor {
	return func(r *http.Request) string {
		return r.Header.Get(headerName)
	}
}

// FromQuery returns an AccountIDExtractor that gets the account from a query parameter
func FromQuery(name string) AccountIDExtractor {
	return func(r *http.Request) string {
		return r.URL.Query().Get(name)
	}
}

// WithAccountID stores an account ID in ctx under AccountIDKey
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, AccountIDKey, accountID)
}

// WithResolution stores the billing resolution of the request
func WithResolution(ctx context.Context, res billing.Resolution) context.Context {
	return context.WithValue(ctx, resolutionKey, res)
}

// ResolutionFromContext returns the resolution stored by Middleware
func ResolutionFromContext(ctx context.Context) (billing.Resolution, bool) {
	res, ok := ctx.Value(resolutionKey).(billing.Resolution)
	return res, ok
}
