package billing

import "context"

// ShouldApply reports whether a provider event may be applied to rec. It
// returns false only when the record's last applied event has the same id.
// Ids are compared for equality; redelivery order is not assumed.
func ShouldApply(rec *Record, eventID string) bool {
	if rec == nil || eventID == "" {
		return true
	}
	return rec.LastEventID != eventID
}

// Gate answers paywall checks. *Engine implements it.
type Gate interface {
	RequireEntitled(ctx context.Context, accountID string) (bool, Resolution, error)
}
