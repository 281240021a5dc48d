package stripe

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v83"

	"github.com/mksouza37/listinha/pkg/billing"
)

// subscriptionObject converts an SDK subscription into the map form the
// engine reads. The raw API response is preferred when the SDK kept it, so
// fields the typed struct does not model survive.
func subscriptionObject(sub *stripe.Subscription) (billing.Object, error) {
	if sub == nil {
		return nil, nil
	}
	if sub.LastResponse != nil && len(sub.LastResponse.RawJSON) > 0 {
		return decodeObject(sub.LastResponse.RawJSON)
	}
	raw, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("encode subscription %s: %w", sub.ID, err)
	}
	return decodeObject(raw)
}

// decodeObject decodes a JSON object keeping numbers exact.
func decodeObject(raw []byte) (billing.Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields billing.Fields
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %w", billing.ErrInvalidWebhookPayload, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", billing.ErrInvalidWebhookPayload)
	}
	return fields, nil
}

// eventFromStripe converts a verified Stripe event into a billing event.
func eventFromStripe(ev *stripe.Event) (billing.Event, error) {
	out := billing.Event{
		ID:      ev.ID,
		Type:    string(ev.Type),
		Created: ev.Created,
	}
	if out.Type == "" || ev.Data == nil {
		return out, fmt.Errorf("%w: missing type or data", billing.ErrInvalidWebhookPayload)
	}

	if len(ev.Data.Raw) > 0 {
		obj, err := decodeObject(ev.Data.Raw)
		if err != nil {
			return out, err
		}
		out.Object = obj
		return out, nil
	}
	out.Object = billing.Fields(ev.Data.Object)
	return out, nil
}
