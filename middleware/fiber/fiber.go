// Package fiber provides Fiber paywall middleware backed by the billing engine
package fiber

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mksouza37/listinha/pkg/billing"
)

// StatusHeader carries the resolved billing status on gated responses.
const StatusHeader = "X-Billing-Status"

// ResolutionKey is the Fiber locals key holding the billing.Resolution of
// an admitted request.
const ResolutionKey = "billing.resolution"

// AccountIDExtractor extracts the account ID from a Fiber context
// Return empty string if the caller is not authenticated
type AccountIDExtractor func(c *fiber.Ctx) string

// Config holds middleware configuration
type Config struct {
	// Gate answers entitlement checks (required)
	Gate billing.Gate

	// GetAccountID extracts the account ID from context (required)
	GetAccountID AccountIDExtractor

	// OnPaymentRequired is called when the account is not entitled
	// If nil, returns 402 Payment Required JSON with the resolved status
	OnPaymentRequired func(c *fiber.Ctx, res billing.Resolution) error

	// OnUnauthorized is called when no account could be extracted
	// If nil, returns 401 Unauthorized
	OnUnauthorized func(c *fiber.Ctx) error

	// OnError is called when the billing status cannot be read
	// If nil, returns 500 Internal Server Error
	OnError func(c *fiber.Ctx, err error) error
}

// Middleware creates a Fiber middleware that lets only entitled accounts through
func Middleware(cfg Config) fiber.Handler {
	// Validate required configuration at startup (fail fast)
	if cfg.Gate == nil {
		panic("listinha/fiber: Config.Gate is required")
	}
	if cfg.GetAccountID == nil {
		panic("listinha/fiber: Config.GetAccountID is required")
	}

	return func(c *fiber.Ctx) error {
		accountID := cfg.GetAccountID(c)
		if accountID == "" {
			if cfg.OnUnauthorized != nil {
				return cfg.OnUnauthorized(c)
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		}

		// fasthttp has no request context; UserContext carries cancellation
		ok, res, err := cfg.Gate.RequireEntitled(c.UserContext(), accountID)
		if err != nil {
			if cfg.OnError != nil {
				return cfg.OnError(c, err)
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal Server Error"})
		}

		if res.Status != "" {
			c.Set(StatusHeader, string(res.Status))
		}
		if !ok {
			if cfg.OnPaymentRequired != nil {
				return cfg.OnPaymentRequired(c, res)
			}
			return defaultPaymentRequired(c, res)
		}

		c.Locals(ResolutionKey, res)
		return c.Next()
	}
}

func defaultPaymentRequired(c *fiber.Ctx, res billing.Resolution) error {
	body := fiber.Map{"error": "Payment Required", "status": res.Status}
	if res.Until != nil {
		body["until"] = *res.Until
	}
	return c.Status(fiber.StatusPaymentRequired).JSON(body)
}

// GetResolution returns the resolution stored by Middleware
func GetResolution(c *fiber.Ctx) (billing.Resolution, bool) {
	res, ok := c.Locals(ResolutionKey).(billing.Resolution)
	return res, ok
}

// Convenience extractors for Account ID

// FromLocals returns an AccountIDExtractor that gets the account from Fiber locals
func FromLocals(key string) AccountIDExtractor {
	return func(c *fiber.Ctx) string {
		if str, ok := c.Locals(key).(string); ok {
			return str
		}
		return ""
	}
}

// FromHeader returns an AccountIDExtractor that gets the account from a header
func FromHeader(headerName string) AccountIDExtractor {
	return func(c *fiber.Ctx) string {
		return c.Get(headerName)
	}
}

// FromParam returns an AccountIDExtractor that gets the account from a route parameter
func FromParam(paramName string) AccountIDExtractor {
	return func(c *fiber.Ctx) string {
		return c.Params(paramName)
	}
}

// FromQuery returns an AccountIDExtractor that gets the account from a query parameter
func FromQuery(name string) AccountIDExtractor {
	return func(c *fiber.Ctx) string {
		return c.Query(name)
	}
}
