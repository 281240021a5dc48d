package billing

import "time"

// Sources of a status change.
const (
	SourceWebhook  = "webhook"
	SourceAdmin    = "admin"
	SourceRefresh  = "refresh"
	SourceCheckout = "checkout"
)

// StatusChange describes an account whose resolved status differs before and
// after a patch was persisted. It is passed to Config.OnStatusChange so the
// notification channel can decide what to tell the user.
type StatusChange struct {
	// AccountID is the internal account identifier
	AccountID string

	// Previous is the status before the patch (NONE for a new record)
	Previous Status

	// Current is the status after the patch
	Current Status

	// Until is the end of the current status window, if dated
	Until *int64

	// Source is one of the Source* constants
	Source string

	// EventType and EventID are set for webhook-driven changes
	EventType string
	EventID   string

	// At is when the change was persisted
	At time.Time
}
