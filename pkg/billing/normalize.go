package billing

import "time"

const secondsPerDay = 24 * 60 * 60

// hintStrategy extracts an account identifier embedded in an event object.
type hintStrategy struct {
	name    string
	extract func(obj Object, key string) string
}

var hintStrategies = []hintStrategy{
	{name: "metadata", extract: hintFromMetadata},
	{name: "subscription_details", extract: hintFromSubscriptionDetails},
	{name: "client_reference_id", extract: hintFromClientReference},
}

// Normalizer maps provider events to billing patches. It is pure: the only
// clock it reads is the event's own creation time.
type Normalizer struct {
	accountKey string
	graceDays  int
}

// NewNormalizer creates a normalizer reading the account id from metadata
// under accountKey and opening graceDays of grace after a failed payment.
func NewNormalizer(accountKey string, graceDays int) *Normalizer {
	if accountKey == "" {
		accountKey = defaultAccountMetadataKey
	}
	if graceDays < 0 {
		graceDays = 0
	}
	return &Normalizer{accountKey: accountKey, graceDays: graceDays}
}

// Normalize returns the patch implied by ev. Unknown event types produce an
// empty patch.
func (n *Normalizer) Normalize(ev Event) *Patch {
	obj := ev.Object
	if obj == nil {
		obj = Fields{}
	}

	var p *Patch
	switch ev.Type {
	case EventCheckoutSessionCompleted:
		p = n.checkoutPatch(obj)
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		p = n.SubscriptionPatch(obj, referenceTime(ev))
	case EventSubscriptionDeleted:
		p = n.deletedPatch(obj)
	case EventInvoicePaid, EventInvoicePaymentSucceeded:
		p = n.invoicePatch(obj, ProviderStatusActive)
	case EventInvoicePaymentFailed, EventInvoiceMarkedUncollectible:
		p = n.invoicePatch(obj, ProviderStatusPastDue)
		if n.graceDays > 0 && ev.Created > 0 {
			p.GraceUntil = Int64(ev.Created + int64(n.graceDays)*secondsPerDay)
		}
	default:
		return &Patch{}
	}

	p.AccountHint = n.AccountHint(obj)
	return p
}

// SubscriptionPatch mirrors a subscription object into a patch. It is shared
// by subscription events and manual refreshes and never touches exempt.
func (n *Normalizer) SubscriptionPatch(sub Object, ref time.Time) *Patch {
	p := &Patch{}

	status := upper(GetString(sub, "status"))
	if status != "" {
		p.StripeStatus = String(status)
	}
	setID(&p.SubscriptionID, GetString(sub, "id"))
	setID(&p.CustomerID, GetID(sub, "customer"))

	if end, ok := PeriodEnd(sub, ref); ok {
		p.CurrentPeriodEnd = Int64(end)
	}
	if v, ok := positiveInt64(sub, "trial_end"); ok {
		p.TrialEnd = Int64(v)
	}
	if v, ok := GetBool(sub, "cancel_at_period_end"); ok {
		p.CancelAtPeriodEnd = Bool(v)
	}
	if v, ok := positiveInt64(sub, "cancel_at"); ok {
		p.CancelAt = Int64(v)
	}
	if v, ok := positiveInt64(sub, "canceled_at"); ok {
		p.CanceledAt = Int64(v)
	}

	switch status {
	case ProviderStatusCanceled:
		p.Canceled = Bool(true)
	case ProviderStatusActive, ProviderStatusTrialing:
		// purge flags left over from an earlier cancel-then-reactivate cycle
		p.Canceled = Bool(false)
		p.CancelAtPeriodEnd = Bool(false)
	}
	return p
}

// AccountHint returns the account identifier embedded in obj, or "".
func (n *Normalizer) AccountHint(obj Object) string {
	for _, s := range hintStrategies {
		if hint := s.extract(obj, n.accountKey); hint != "" {
			return hint
		}
	}
	return ""
}

func (n *Normalizer) checkoutPatch(session Object) *Patch {
	p := &Patch{StripeStatus: String(ProviderStatusCheckoutCompleted)}
	setID(&p.LastCheckoutSessionID, GetString(session, "id"))
	setID(&p.SubscriptionID, GetID(session, "subscription"))
	setID(&p.CustomerID, GetID(session, "customer"))
	return p
}

func (n *Normalizer) deletedPatch(sub Object) *Patch {
	p := &Patch{
		StripeStatus: String(ProviderStatusCanceled),
		Canceled:     Bool(true),
	}
	setID(&p.SubscriptionID, GetString(sub, "id"))
	setID(&p.CustomerID, GetID(sub, "customer"))
	if v, ok := positiveInt64(sub, "canceled_at"); ok {
		p.CanceledAt = Int64(v)
	}
	return p
}

func (n *Normalizer) invoicePatch(invoice Object, status string) *Patch {
	p := &Patch{StripeStatus: String(status)}
	setID(&p.SubscriptionID, invoiceSubscriptionID(invoice))
	setID(&p.CustomerID, GetID(invoice, "customer"))
	return p
}

// invoiceSubscriptionID reads the subscription of an invoice from the
// top-level field or from parent.subscription_details on newer API versions.
func invoiceSubscriptionID(invoice Object) string {
	if id := GetID(invoice, "subscription"); id != "" {
		return id
	}
	details := GetObject(GetObject(invoice, "parent"), "subscription_details")
	return GetID(details, "subscription")
}

func hintFromMetadata(obj Object, key string) string {
	return GetMetadata(obj, "metadata")[key]
}

func hintFromSubscriptionDetails(obj Object, key string) string {
	if hint := GetMetadata(GetObject(obj, "subscription_details"), "metadata")[key]; hint != "" {
		return hint
	}
	details := GetObject(GetObject(obj, "parent"), "subscription_details")
	return GetMetadata(details, "metadata")[key]
}

func hintFromClientReference(obj Object, _ string) string {
	return GetString(obj, "client_reference_id")
}

func setID(dst **string, id string) {
	if id != "" {
		*dst = String(id)
	}
}

// referenceTime is the event creation time, or the Unix epoch when the
// payload carries none.
func referenceTime(ev Event) time.Time {
	return time.Unix(ev.Created, 0).UTC()
}
