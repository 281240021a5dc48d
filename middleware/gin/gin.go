// Package gin provides Gin paywall middleware backed by the billing engine
package gin

import (
	"net/http"

	gongin "github.com/gin-gonic/gin"

	"github.com/mksouza37/listinha/pkg/billing"
)

// StatusHeader carries the resolved billing status on gated responses.
const StatusHeader = "X-Billing-Status"

// ResolutionKey is the Gin context key holding the billing.Resolution of
// an admitted request.
const ResolutionKey = "billing.resolution"

// AccountIDExtractor extracts the account ID from a Gin context
// Return empty string if the caller is not authenticated
type AccountIDExtractor func(c *gongin.Context) string

// Config holds middleware configuration
type Config struct {
	// Gate answers entitlement checks (required)
	Gate billing.Gate

	// GetAccountID extracts the account ID from context (required)
	GetAccountID AccountIDExtractor

	// OnPaymentRequired is called when the account is not entitled
	// If nil, returns 402 Payment Required JSON with the resolved status
	OnPaymentRequired func(c *gongin.Context, res billing.Resolution)

	// OnUnauthorized is called when no account could be extracted
	// If nil, returns 401 Unauthorized
	OnUnauthorized func(c *gongin.Context)

	// OnError is called when the billing status cannot be read
	// If nil, returns 500 Internal Server Error
	OnError func(c *gongin.Context, err error)
}

// Middleware creates a Gin middleware that lets only entitled accounts through
func Middleware(cfg Config) gongin.HandlerFunc {
	// Validate required configuration at startup (fail fast)
	if cfg.Gate == nil {
		panic("listinha/gin: Config.Gate is required")
	}
	if cfg.GetAccountID == nil {
		panic("listinha/gin: Config.GetAccountID is required")
	}

	return func(c *gongin.Context) {
		accountID := cfg.GetAccountID(c)
		if accountID == "" {
			if cfg.OnUnauthorized != nil {
				cfg.OnUnauthorized(c)
			} else {
				c.JSON(http.StatusUnauthorized, gongin.H{"error": "Unauthorized"})
			}
			c.Abort()
			return
		}

		ok, res, err := cfg.Gate.RequireEntitled(c.Request.Context(), accountID)
		if err != nil {
			if cfg.OnError != nil {
				cfg.OnError(c, err)
			} else {
				c.JSON(http.StatusInternalServerError, gongin.H{"error": "Internal Server Error"})
			}
			c.Abort()
			return
		}

		if res.Status != "" {
			c.Header(StatusHeader, string(res.Status))
		}
		if !ok {
			if cfg.OnPaymentRequired != nil {
				cfg.OnPaymentRequired(c, res)
			} else {
				defaultPaymentRequired(c, res)
			}
			c.Abort()
			return
		}

		c.Set(ResolutionKey, res)
		c.Next()
	}
}

func defaultPaymentRequired(c *gongin.Context, res billing.Resolution) {
	body := gongin.H{"error": "Payment Required", "status": res.Status}
	if res.Until != nil {
		body["until"] = *res.Until
	}
	c.JSON(http.StatusPaymentRequired, body)
}

// GetResolution returns the resolution stored by Middleware
func GetResolution(c *gongin.Context) (billing.Resolution, bool) {
	if val, exists := c.Get(ResolutionKey); exists {
		res, ok := val.(billing.Resolution)
		return res, ok
	}
	return billing.Resolution{}, false
}

// Convenience extractors for Account ID

// FromContext returns an AccountIDExtractor that gets the account from Gin context values
//
// Example:
//
//	// In your auth middleware:
//	c.Set("AccountID", phone)
//
//	// In paywall middleware config:
//	GetAccountID: gin.FromContext("AccountID")
func FromContext(key string) AccountIDExtractor {
	return func(c *gongin.Context) string {
		if val, exists := c.Get(key); exists {
			if str, ok := val.(string); ok {
				return str
			}
		}
		return ""
	}
}

// FromHeader returns an AccountIDExtractor that gets the account from a header
func FromHeader(headerName string) AccountIDExtractor {
	return func(c *gongin.Context) string {
		return c.GetHeader(headerName)
	}
}

// FromParam returns an AccountIDExtractor that gets the account from a route parameter
func FromParam(paramName string) AccountIDExtractor {
	return func(c *gongin.Context) string {
		return c.Param(paramName)
	}
}

// FromQuery returns an AccountIDExtractor that gets the account from a query parameter
func FromQuery(queryName string) AccountIDExtractor {
	return func(c *gongin.Context) string {
		return c.Query(queryName)
	}
}
