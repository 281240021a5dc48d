package billing

// Stored field names. Every Account Store persists the billing sub-record
// under these keys.
const (
	FieldStripeStatus          = "stripe_status"
	FieldSubscriptionID        = "subscription_id"
	FieldCustomerID            = "customer_id"
	FieldTrialEnd              = "trial_end"
	FieldCurrentPeriodEnd      = "current_period_end"
	FieldGraceUntil            = "grace_until"
	FieldCancelAt              = "cancel_at"
	FieldCanceledAt            = "canceled_at"
	FieldCancelAtPeriodEnd     = "cancel_at_period_end"
	FieldCanceled              = "canceled"
	FieldExempt                = "exempt"
	FieldLastEventID           = "last_event_id"
	FieldLastCheckoutSessionID = "last_checkout_session_id"
	FieldLastCheckoutURL       = "last_checkout_url"
	FieldLastUpdated           = "last_updated"

	// legacy names still accepted on read
	legacyFieldCustomerID = "stripe_customer_id"
	legacyFieldExempt     = "lifetime"
)

// Record is the billing sub-record of one account. Optional values are nil
// (timestamps) or empty (identifiers) when absent.
type Record struct {
	// StripeStatus mirrors the provider status, uppercased (ACTIVE, TRIALING, PAST_DUE, ...).
	StripeStatus string `json:"stripe_status,omitempty"`

	SubscriptionID string `json:"subscription_id,omitempty"`
	CustomerID     string `json:"customer_id,omitempty"`

	// Window boundaries, Unix seconds.
	TrialEnd         *int64 `json:"trial_end,omitempty"`
	CurrentPeriodEnd *int64 `json:"current_period_end,omitempty"`
	GraceUntil       *int64 `json:"grace_until,omitempty"`
	CancelAt         *int64 `json:"cancel_at,omitempty"`
	CanceledAt       *int64 `json:"canceled_at,omitempty"`

	CancelAtPeriodEnd bool `json:"cancel_at_period_end,omitempty"`
	Canceled          bool `json:"canceled,omitempty"`

	// Exempt bypasses every paywall check.
	Exempt bool `json:"exempt,omitempty"`

	LastEventID           string `json:"last_event_id,omitempty"`
	LastCheckoutSessionID string `json:"last_checkout_session_id,omitempty"`
	LastCheckoutURL       string `json:"last_checkout_url,omitempty"`

	// LastUpdated is bookkeeping only.
	LastUpdated int64 `json:"last_updated,omitempty"`
}

// IsEmpty reports whether the record carries no field at all.
func (r *Record) IsEmpty() bool {
	if r == nil {
		return true
	}
	return r.StripeStatus == "" &&
		r.SubscriptionID == "" &&
		r.CustomerID == "" &&
		r.TrialEnd == nil &&
		r.CurrentPeriodEnd == nil &&
		r.GraceUntil == nil &&
		r.CancelAt == nil &&
		r.CanceledAt == nil &&
		!r.CancelAtPeriodEnd &&
		!r.Canceled &&
		!r.Exempt &&
		r.LastEventID == "" &&
		r.LastCheckoutSessionID == "" &&
		r.LastCheckoutURL == "" &&
		r.LastUpdated == 0
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.TrialEnd = cloneInt64(r.TrialEnd)
	c.CurrentPeriodEnd = cloneInt64(r.CurrentPeriodEnd)
	c.GraceUntil = cloneInt64(r.GraceUntil)
	c.CancelAt = cloneInt64(r.CancelAt)
	c.CanceledAt = cloneInt64(r.CanceledAt)
	return &c
}

// RecordFromFields builds a Record from a loosely typed stored document.
// Values that cannot be coerced to the expected type are treated as absent.
func RecordFromFields(o Object) *Record {
	if o == nil {
		return nil
	}
	r := &Record{
		StripeStatus:          upper(GetString(o, FieldStripeStatus)),
		SubscriptionID:        GetString(o, FieldSubscriptionID),
		CustomerID:            GetString(o, FieldCustomerID),
		TrialEnd:              timestampField(o, FieldTrialEnd),
		CurrentPeriodEnd:      timestampField(o, FieldCurrentPeriodEnd),
		GraceUntil:            timestampField(o, FieldGraceUntil),
		CancelAt:              timestampField(o, FieldCancelAt),
		CanceledAt:            timestampField(o, FieldCanceledAt),
		CancelAtPeriodEnd:     boolField(o, FieldCancelAtPeriodEnd),
		Canceled:              boolField(o, FieldCanceled),
		Exempt:                boolField(o, FieldExempt) || boolField(o, legacyFieldExempt),
		LastEventID:           GetString(o, FieldLastEventID),
		LastCheckoutSessionID: GetString(o, FieldLastCheckoutSessionID),
		LastCheckoutURL:       GetString(o, FieldLastCheckoutURL),
	}
	if r.CustomerID == "" {
		r.CustomerID = GetString(o, legacyFieldCustomerID)
	}
	if v, ok := GetInt64(o, FieldLastUpdated); ok {
		r.LastUpdated = v
	}
	return r
}

func timestampField(o Object, key string) *int64 {
	v, ok := GetInt64(o, key)
	if !ok || v <= 0 {
		return nil
	}
	return &v
}

func boolField(o Object, key string) bool {
	v, _ := GetBool(o, key)
	return v
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
