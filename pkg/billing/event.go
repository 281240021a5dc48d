package billing

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Provider event types handled by the normalizer.
const (
	EventCheckoutSessionCompleted   = "checkout.session.completed"
	EventSubscriptionCreated        = "customer.subscription.created"
	EventSubscriptionUpdated        = "customer.subscription.updated"
	EventSubscriptionDeleted        = "customer.subscription.deleted"
	EventInvoicePaid                = "invoice.paid"
	EventInvoicePaymentSucceeded    = "invoice.payment_succeeded"
	EventInvoicePaymentFailed       = "invoice.payment_failed"
	EventInvoiceMarkedUncollectible = "invoice.marked_uncollectible"
)

// Event is a provider lifecycle event: {id, type, created, data: {object}}.
type Event struct {
	ID   string
	Type string

	// Created is the provider-side creation time, Unix seconds. Zero if unknown.
	Created int64

	// Object is data.object of the payload.
	Object Object
}

// DecodeEvent parses a raw JSON event payload. Numbers are kept as
// json.Number so large timestamps survive decoding.
func DecodeEvent(payload []byte) (Event, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrInvalidWebhookPayload, err)
	}
	ev := EventFromFields(Fields(raw))
	if ev.Type == "" {
		return Event{}, fmt.Errorf("%w: missing event type", ErrInvalidWebhookPayload)
	}
	return ev, nil
}

// EventFromFields builds an Event from a decoded payload.
func EventFromFields(o Object) Event {
	ev := Event{
		ID:   GetString(o, "id"),
		Type: GetString(o, "type"),
	}
	if created, ok := GetInt64(o, "created"); ok {
		ev.Created = created
	}
	if data := GetObject(o, "data"); data != nil {
		ev.Object = GetObject(data, "object")
	}
	if ev.Object == nil {
		ev.Object = Fields{}
	}
	return ev
}
