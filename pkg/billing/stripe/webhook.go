package stripe

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83/webhook"

	"github.com/mksouza37/listinha/pkg/billing"
	"github.com/mksouza37/listinha/pkg/billing/internal"
)

// EventHandler applies a decoded billing event. *billing.Engine implements it.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev billing.Event) (*billing.EventResult, error)
}

// WebhookConfig configures a webhook endpoint.
type WebhookConfig struct {
	// Secret is the endpoint signing secret. Without it, and without
	// AllowUnverified, the endpoint answers 503.
	Secret string

	// AllowUnverified parses payloads without checking the signature.
	AllowUnverified bool

	// MaxBodyBytes defaults to 256 KiB.
	MaxBodyBytes int64

	// RateLimiter is optional; nil disables rate limiting.
	RateLimiter *internal.RateLimiter

	Logger  billing.Logger
	Metrics billing.Metrics
}

// WebhookResponse is the body of an accepted webhook.
type WebhookResponse struct {
	Status    string          `json:"status"`
	Outcome   billing.Outcome `json:"outcome"`
	EventID   string          `json:"event_id,omitempty"`
	AccountID string          `json:"account_id,omitempty"`
}

type webhookHandler struct {
	handler EventHandler
	config  WebhookConfig
	logger  billing.Logger
	metrics billing.Metrics
}

// NewWebhookHandler returns the HTTP handler receiving Stripe events and
// feeding them to h.
func NewWebhookHandler(h EventHandler, config WebhookConfig) http.Handler {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaultMaxBodyBytes
	}
	config.Secret = strings.TrimSpace(config.Secret)

	wh := &webhookHandler{handler: h, config: config, logger: config.Logger, metrics: config.Metrics}
	if wh.logger == nil {
		wh.logger = &billing.NoopLogger{}
	}
	if wh.metrics == nil {
		wh.metrics = &billing.NoopMetrics{}
	}

	if config.RateLimiter != nil {
		return config.RateLimiter.Middleware(wh)
	}
	return wh
}

// WebhookHandler returns the webhook endpoint for this provider, rate
// limited per client IP.
func (p *Provider) WebhookHandler(h EventHandler) http.Handler {
	return NewWebhookHandler(h, WebhookConfig{
		Secret:          p.webhookSecret,
		AllowUnverified: p.config.AllowUnverifiedWebhooks,
		RateLimiter:     p.rateLimiter,
		Logger:          p.logger,
		Metrics:         p.metrics,
	})
}

func (wh *webhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	internal.SetSecurityHeaders(w)

	if r.Method != http.MethodPost {
		internal.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if wh.config.Secret == "" && !wh.config.AllowUnverified {
		internal.WriteError(w, http.StatusServiceUnavailable, "webhook not configured")
		wh.metrics.RecordWebhookError(providerName, "not_configured")
		return
	}

	body, err := internal.ReadBodyStrict(w, r, wh.config.MaxBodyBytes)
	if err != nil {
		if errors.Is(err, internal.ErrPayloadTooLarge) {
			internal.WriteError(w, http.StatusRequestEntityTooLarge, "payload too large")
			wh.metrics.RecordWebhookError(providerName, "payload_too_large")
		} else {
			internal.WriteError(w, http.StatusBadRequest, "invalid payload")
			wh.metrics.RecordWebhookError(providerName, "invalid_payload")
		}
		return
	}

	ev, err := wh.parse(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, billing.ErrInvalidWebhookSignature) {
			internal.WriteError(w, http.StatusUnauthorized, "invalid signature")
			wh.metrics.RecordWebhookError(providerName, "auth_failed")
		} else {
			internal.WriteError(w, http.StatusBadRequest, "invalid payload")
			wh.metrics.RecordWebhookError(providerName, "invalid_payload")
		}
		wh.logger.Warn("Rejected Stripe webhook", billing.Field{Key: "error", Value: err.Error()})
		return
	}

	result, err := wh.handler.HandleEvent(r.Context(), ev)
	if err != nil {
		wh.logger.Error("Failed to process Stripe webhook",
			billing.Field{Key: "event_id", Value: ev.ID},
			billing.Field{Key: "event_type", Value: ev.Type},
			billing.Field{Key: "error", Value: err.Error()})
		internal.WriteError(w, http.StatusInternalServerError, "failed to process webhook")
		wh.metrics.RecordWebhookEvent(providerName, ev.Type, "error")
		wh.metrics.RecordWebhookError(providerName, "processing_error")
		wh.metrics.RecordWebhookProcessingDuration(providerName, ev.Type, time.Since(startTime))
		return
	}

	wh.metrics.RecordWebhookEvent(providerName, ev.Type, string(result.Outcome))
	wh.metrics.RecordWebhookProcessingDuration(providerName, ev.Type, time.Since(startTime))

	_ = internal.WriteJSON(w, http.StatusOK, WebhookResponse{
		Status:    "ok",
		Outcome:   result.Outcome,
		EventID:   ev.ID,
		AccountID: result.AccountID,
	})
}

// parse verifies and decodes a webhook body. Unsigned payloads are only
// accepted when AllowUnverified is set.
func (wh *webhookHandler) parse(body []byte, signature string) (billing.Event, error) {
	if wh.config.AllowUnverified && (wh.config.Secret == "" || signature == "") {
		return billing.DecodeEvent(body)
	}
	if signature == "" {
		return billing.Event{}, billing.ErrInvalidWebhookSignature
	}

	event, err := webhook.ConstructEventWithOptions(body, signature, wh.config.Secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	switch {
	case errors.Is(err, webhook.ErrNotSigned), errors.Is(err, webhook.ErrNoValidSignature),
		errors.Is(err, webhook.ErrInvalidHeader), errors.Is(err, webhook.ErrTooOld):
		return billing.Event{}, errors.Join(billing.ErrInvalidWebhookSignature, err)
	case err != nil:
		return billing.Event{}, errors.Join(billing.ErrInvalidWebhookPayload, err)
	}
	return eventFromStripe(&event)
}
