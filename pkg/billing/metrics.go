package billing

import "time"

// Metrics defines the interface for tracking billing engine operations.
// All methods are optional - the engine falls back to NoopMetrics when nil.
type Metrics interface {
	// RecordWebhookEvent records a webhook event received from the billing provider.
	// outcome: "applied", "duplicate", "unresolved", "ignored" or "error"
	RecordWebhookEvent(provider, eventType, outcome string)

	// RecordWebhookProcessingDuration records how long it took to process a webhook.
	RecordWebhookProcessingDuration(provider, eventType string, duration time.Duration)

	// RecordWebhookError records a webhook rejection or failure.
	// errorType: e.g. "auth_failed", "invalid_payload", "processing_error"
	RecordWebhookError(provider, errorType string)

	// RecordStatusChange records a resolved status transition of an account.
	RecordStatusChange(from, to Status)

	// RecordStatusCheck records a status read and whether it granted access.
	RecordStatusCheck(status Status, entitled bool)

	// RecordActiveUndated records an ACTIVE resolution without a period end.
	RecordActiveUndated()

	// RecordAdminAction records a manual override. status: "success" or "error"
	RecordAdminAction(action, status string)

	// RecordAPICall records an API call to the billing provider.
	// status: "success" or "error"
	RecordAPICall(provider, endpoint, status string)

	// RecordAPICallDuration records how long an API call took.
	RecordAPICallDuration(provider, endpoint string, duration time.Duration)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordWebhookEvent(_, _, _ string)                            {}
func (n *NoopMetrics) RecordWebhookProcessingDuration(_, _ string, _ time.Duration) {}
func (n *NoopMetrics) RecordWebhookError(_, _ string)                               {}
func (n *NoopMetrics) RecordStatusChange(_, _ Status)                               {}
func (n *NoopMetrics) RecordStatusCheck(_ Status, _ bool)                           {}
func (n *NoopMetrics) RecordActiveUndated()                                         {}
func (n *NoopMetrics) RecordAdminAction(_, _ string)                                {}
func (n *NoopMetrics) RecordAPICall(_, _, _ string)                                 {}
func (n *NoopMetrics) RecordAPICallDuration(_, _ string, _ time.Duration)           {}
