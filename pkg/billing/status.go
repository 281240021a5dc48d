package billing

import "time"

// Status is the canonical billing state of an account.
type Status string

const (
	StatusExempt   Status = "EXEMPT"
	StatusCanceled Status = "CANCELED"
	StatusTrial    Status = "TRIAL"
	StatusActive   Status = "ACTIVE"
	StatusGrace    Status = "GRACE"
	StatusPastDue  Status = "PAST_DUE"
	StatusExpired  Status = "EXPIRED"
	StatusNone     Status = "NONE"
)

// Raw provider statuses mirrored into Record.StripeStatus.
const (
	ProviderStatusActive            = "ACTIVE"
	ProviderStatusTrialing          = "TRIALING"
	ProviderStatusPastDue           = "PAST_DUE"
	ProviderStatusUnpaid            = "UNPAID"
	ProviderStatusCanceled          = "CANCELED"
	ProviderStatusCheckoutCompleted = "CHECKOUT_COMPLETED"
)

// Resolution is the outcome of resolving a record at a point in time.
type Resolution struct {
	Status Status `json:"status"`
	// Until is the end of the window the status is derived from, if dated.
	Until *int64 `json:"until,omitempty"`
}

// Entitled reports whether the resolution grants access.
func (r Resolution) Entitled() bool {
	return IsEntitled(r.Status)
}

// IsEntitled is the single predicate every access-control call site uses.
func IsEntitled(s Status) bool {
	switch s {
	case StatusExempt, StatusActive, StatusTrial, StatusGrace:
		return true
	default:
		return false
	}
}

// Resolve maps a record snapshot to exactly one status, evaluated in
// priority order; the first match wins. It is total and deterministic.
func Resolve(rec *Record, now time.Time) (Status, *int64) {
	if rec.IsEmpty() {
		return StatusNone, nil
	}

	if rec.Exempt {
		return StatusExempt, nil
	}

	stripeStatus := upper(rec.StripeStatus)

	if stripeStatus == ProviderStatusCanceled || (rec.Canceled && !rec.CancelAtPeriodEnd) {
		return StatusCanceled, nil
	}

	if Within(now, rec.TrialEnd) {
		return StatusTrial, cloneInt64(rec.TrialEnd)
	}

	if stripeStatus == ProviderStatusActive || stripeStatus == ProviderStatusTrialing {
		switch {
		case Within(now, rec.CurrentPeriodEnd):
			return StatusActive, cloneInt64(rec.CurrentPeriodEnd)
		case rec.CancelAtPeriodEnd && Within(now, rec.CancelAt):
			return StatusActive, cloneInt64(rec.CancelAt)
		default:
			// period data may not have propagated yet; stay active, undated
			return StatusActive, nil
		}
	}

	if Within(now, rec.GraceUntil) {
		return StatusGrace, cloneInt64(rec.GraceUntil)
	}

	if stripeStatus == ProviderStatusPastDue || stripeStatus == ProviderStatusUnpaid {
		if rec.CurrentPeriodEnd != nil {
			return StatusPastDue, cloneInt64(rec.CurrentPeriodEnd)
		}
		return StatusPastDue, cloneInt64(rec.GraceUntil)
	}

	return StatusExpired, nil
}

// ResolveAt is Resolve returning a Resolution.
func ResolveAt(rec *Record, now time.Time) Resolution {
	status, until := Resolve(rec, now)
	return Resolution{Status: status, Until: until}
}
