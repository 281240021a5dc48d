package billing

import "strings"

// Patch is a sparse set of field updates for a Record. Nil fields are left
// untouched when the patch is applied.
type Patch struct {
	StripeStatus   *string
	SubscriptionID *string
	CustomerID     *string

	TrialEnd         *int64
	CurrentPeriodEnd *int64
	GraceUntil       *int64
	CancelAt         *int64
	CanceledAt       *int64

	CancelAtPeriodEnd *bool
	Canceled          *bool
	Exempt            *bool

	LastEventID           *string
	LastCheckoutSessionID *string
	LastCheckoutURL       *string
	LastUpdated           *int64

	// AccountHint is the account identifier embedded in the provider payload,
	// if any. It is never persisted.
	AccountHint string
}

// IsEmpty reports whether the patch updates no field.
func (p *Patch) IsEmpty() bool {
	return p == nil || len(p.Fields()) == 0
}

// Apply merges the patch into a copy of rec and returns it. A nil rec is
// treated as a new, empty record.
func (p *Patch) Apply(rec *Record) *Record {
	out := rec.Clone()
	if out == nil {
		out = &Record{}
	}
	if p == nil {
		return out
	}
	if p.StripeStatus != nil {
		out.StripeStatus = *p.StripeStatus
	}
	if p.SubscriptionID != nil {
		out.SubscriptionID = *p.SubscriptionID
	}
	if p.CustomerID != nil {
		out.CustomerID = *p.CustomerID
	}
	applyTimestamp(&out.TrialEnd, p.TrialEnd)
	applyTimestamp(&out.CurrentPeriodEnd, p.CurrentPeriodEnd)
	applyTimestamp(&out.GraceUntil, p.GraceUntil)
	applyTimestamp(&out.CancelAt, p.CancelAt)
	applyTimestamp(&out.CanceledAt, p.CanceledAt)
	if p.CancelAtPeriodEnd != nil {
		out.CancelAtPeriodEnd = *p.CancelAtPeriodEnd
	}
	if p.Canceled != nil {
		out.Canceled = *p.Canceled
	}
	if p.Exempt != nil {
		out.Exempt = *p.Exempt
	}
	if p.LastEventID != nil {
		out.LastEventID = *p.LastEventID
	}
	if p.LastCheckoutSessionID != nil {
		out.LastCheckoutSessionID = *p.LastCheckoutSessionID
	}
	if p.LastCheckoutURL != nil {
		out.LastCheckoutURL = *p.LastCheckoutURL
	}
	if p.LastUpdated != nil {
		out.LastUpdated = *p.LastUpdated
	}
	return out
}

// PatchFromRecord returns a patch that sets every field of rec. Absent
// timestamps are written as cleared, so applying it to any record yields a
// copy of rec.
func PatchFromRecord(rec *Record) *Patch {
	if rec == nil {
		rec = &Record{}
	}
	return &Patch{
		StripeStatus:          String(rec.StripeStatus),
		SubscriptionID:        String(rec.SubscriptionID),
		CustomerID:            String(rec.CustomerID),
		TrialEnd:              snapshot(rec.TrialEnd),
		CurrentPeriodEnd:      snapshot(rec.CurrentPeriodEnd),
		GraceUntil:            snapshot(rec.GraceUntil),
		CancelAt:              snapshot(rec.CancelAt),
		CanceledAt:            snapshot(rec.CanceledAt),
		CancelAtPeriodEnd:     Bool(rec.CancelAtPeriodEnd),
		Canceled:              Bool(rec.Canceled),
		Exempt:                Bool(rec.Exempt),
		LastEventID:           String(rec.LastEventID),
		LastCheckoutSessionID: String(rec.LastCheckoutSessionID),
		LastCheckoutURL:       String(rec.LastCheckoutURL),
		LastUpdated:           Int64(rec.LastUpdated),
	}
}

func snapshot(v *int64) *int64 {
	if v == nil {
		return Int64(0)
	}
	return Int64(*v)
}

// applyTimestamp sets dst from src; a non-positive src clears the field.
func applyTimestamp(dst **int64, src *int64) {
	if src == nil {
		return
	}
	if *src <= 0 {
		*dst = nil
		return
	}
	v := *src
	*dst = &v
}

// Fields returns the patch as a map keyed by stored field names. Stores use
// it for merge writes. A cleared timestamp is reported as int64(0).
func (p *Patch) Fields() map[string]interface{} {
	fields := make(map[string]interface{})
	if p == nil {
		return fields
	}
	putString(fields, FieldStripeStatus, p.StripeStatus)
	putString(fields, FieldSubscriptionID, p.SubscriptionID)
	putString(fields, FieldCustomerID, p.CustomerID)
	putInt64(fields, FieldTrialEnd, p.TrialEnd)
	putInt64(fields, FieldCurrentPeriodEnd, p.CurrentPeriodEnd)
	putInt64(fields, FieldGraceUntil, p.GraceUntil)
	putInt64(fields, FieldCancelAt, p.CancelAt)
	putInt64(fields, FieldCanceledAt, p.CanceledAt)
	putBool(fields, FieldCancelAtPeriodEnd, p.CancelAtPeriodEnd)
	putBool(fields, FieldCanceled, p.Canceled)
	putBool(fields, FieldExempt, p.Exempt)
	putString(fields, FieldLastEventID, p.LastEventID)
	putString(fields, FieldLastCheckoutSessionID, p.LastCheckoutSessionID)
	putString(fields, FieldLastCheckoutURL, p.LastCheckoutURL)
	putInt64(fields, FieldLastUpdated, p.LastUpdated)
	return fields
}

// Merge copies every field set in other over p. The account hint is kept
// unless p has none.
func (p *Patch) Merge(other *Patch) {
	if other == nil {
		return
	}
	mergeString(&p.StripeStatus, other.StripeStatus)
	mergeString(&p.SubscriptionID, other.SubscriptionID)
	mergeString(&p.CustomerID, other.CustomerID)
	mergeInt64(&p.TrialEnd, other.TrialEnd)
	mergeInt64(&p.CurrentPeriodEnd, other.CurrentPeriodEnd)
	mergeInt64(&p.GraceUntil, other.GraceUntil)
	mergeInt64(&p.CancelAt, other.CancelAt)
	mergeInt64(&p.CanceledAt, other.CanceledAt)
	mergeBool(&p.CancelAtPeriodEnd, other.CancelAtPeriodEnd)
	mergeBool(&p.Canceled, other.Canceled)
	mergeBool(&p.Exempt, other.Exempt)
	mergeString(&p.LastEventID, other.LastEventID)
	mergeString(&p.LastCheckoutSessionID, other.LastCheckoutSessionID)
	mergeString(&p.LastCheckoutURL, other.LastCheckoutURL)
	mergeInt64(&p.LastUpdated, other.LastUpdated)
	if p.AccountHint == "" {
		p.AccountHint = other.AccountHint
	}
}

func putString(m map[string]interface{}, key string, v *string) {
	if v != nil {
		m[key] = *v
	}
}

func putInt64(m map[string]interface{}, key string, v *int64) {
	if v == nil {
		return
	}
	if *v <= 0 {
		m[key] = int64(0)
		return
	}
	m[key] = *v
}

func putBool(m map[string]interface{}, key string, v *bool) {
	if v != nil {
		m[key] = *v
	}
}

func mergeString(dst **string, src *string) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func mergeInt64(dst **int64, src *int64) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func mergeBool(dst **bool, src *bool) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
