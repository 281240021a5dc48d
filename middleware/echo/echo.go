// Package echo provides Echo paywall middleware backed by the billing engine
package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mksouza37/listinha/pkg/billing"
)

// StatusHeader carries the resolved billing status on gated responses.
const StatusHeader = "X-Billing-Status"

// ResolutionKey is the Echo context key holding the billing.Resolution of
// an admitted request.
const ResolutionKey = "billing.resolution"

// AccountIDExtractor extracts the account ID from an Echo context
// Return empty string if the caller is not authenticated
type AccountIDExtractor func(c echo.Context) string

// Config holds middleware configuration
type Config struct {
	// Gate answers entitlement checks (required)
	Gate billing.Gate

	// GetAccountID extracts the account ID from context (required)
	GetAccountID AccountIDExtractor

	// OnPaymentRequired is called when the account is not entitled
	// If nil, returns 402 Payment Required JSON with the resolved status
	OnPaymentRequired func(c echo.Context, res billing.Resolution) error

	// OnUnauthorized is called when no account could be extracted
	// If nil, returns 401 Unauthorized
	OnUnauthorized func(c echo.Context) error

	// OnError is called when the billing status cannot be read
	// If nil, returns 500 Internal Server Error
	OnError func(c echo.Context, err error) error
}

// Middleware creates an Echo middleware that lets only entitled accounts through
func Middleware(cfg Config) echo.MiddlewareFunc {
	// Validate required configuration at startup (fail fast)
	if cfg.Gate == nil {
		panic("listinha/echo: Config.Gate is required")
	}
	if cfg.GetAccountID == nil {
		panic("listinha/echo: Config.GetAccountID is required")
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			accountID := cfg.GetAccountID(c)
			if accountID == "" {
				if cfg.OnUnauthorized != nil {
					return cfg.OnUnauthorized(c)
				}
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}

			ok, res, err := cfg.Gate.RequireEntitled(c.Request().Context(), accountID)
			if err != nil {
				if cfg.OnError != nil {
					return cfg.OnError(c, err)
				}
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
			}

			if res.Status != "" {
				c.Response().Header().Set(StatusHeader, string(res.Status))
			}
			if !ok {
				if cfg.OnPaymentRequired != nil {
					return cfg.OnPaymentRequired(c, res)
				}
				return defaultPaymentRequired(c, res)
			}

			c.Set(ResolutionKey, res)
			return next(c)
		}
	}
}

func defaultPaymentRequired(c echo.Context, res billing.Resolution) error {
	body := map[string]interface{}{"error": "Payment Required", "status": res.Status}
	if res.Until != nil {
		body["until"] = *res.Until
	}
	return c.JSON(http.StatusPaymentRequired, body)
}

// GetResolution returns the resolution stored by Middleware
func GetResolution(c echo.Context) (billing.Resolution, bool) {
	res, ok := c.Get(ResolutionKey).(billing.Resolution)
	return res, ok
}

// Convenience extractors for Account ID

// FromContext returns an AccountIDExtractor that gets the account from Echo context values
func FromContext(key string) AccountIDExtractor {
	return func(c echo.Context) string {
		if str, ok := c.Get(key).(string); ok {
			return str
		}
		return ""
	}
}

// FromHeader returns an AccountIDExtractor that gets the account from a header
func FromHeader(headerName string) AccountIDExtractor {
	return func(c echo.Context) string {
		return c.Request().Header.Get(headerName)
	}
}

// FromParam returns an AccountIDExtractor that gets the account from a route parameter
func FromParam(paramName string) AccountIDExtractor {
	return func(c echo.Context) string {
		return c.Param(paramName)
	}
}

// FromQuery returns an AccountIDExtractor that gets the account from a query parameter
func FromQuery(name string) AccountIDExtractor {
	return func(c echo.Context) string {
		return c.QueryParam(name)
	}
}
