package stripe

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/mksouza37/listinha/pkg/billing"
)

// RetrieveSubscription fetches one subscription with its latest invoice
// expanded, so the period end can fall back to invoice lines.
func (p *Provider) RetrieveSubscription(ctx context.Context, subscriptionID string) (billing.Object, error) {
	start := time.Now()

	params := &stripe.SubscriptionRetrieveParams{}
	params.AddExpand("latest_invoice")

	sub, err := p.client.V1Subscriptions.Retrieve(ctx, subscriptionID, params)
	p.recordCall("/subscriptions/retrieve", start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieve subscription %s: %w", billing.ErrProviderAPIError, subscriptionID, err)
	}
	return subscriptionObject(sub)
}

// ListSubscriptions returns every subscription of a customer, whatever its
// status. Selection among them is left to billing.SelectSubscription.
func (p *Provider) ListSubscriptions(ctx context.Context, customerID string) ([]billing.Object, error) {
	start := time.Now()

	params := &stripe.SubscriptionListParams{}
	params.Customer = stripe.String(customerID)
	params.Status = stripe.String("all")
	params.AddExpand("data.latest_invoice")

	var subs []billing.Object
	for sub, err := range p.client.V1Subscriptions.List(ctx, params) {
		if err != nil {
			p.recordCall("/subscriptions/list", start, err)
			return nil, fmt.Errorf("%w: list subscriptions of %s: %w", billing.ErrProviderAPIError, customerID, err)
		}
		obj, err := subscriptionObject(sub)
		if err != nil {
			return nil, err
		}
		subs = append(subs, obj)
	}

	p.recordCall("/subscriptions/list", start, nil)
	return subs, nil
}

// UpdateTrialEnd moves the trial end of a subscription without prorating.
func (p *Provider) UpdateTrialEnd(ctx context.Context, subscriptionID string, trialEnd int64) (billing.Object, error) {
	start := time.Now()

	params := &stripe.SubscriptionUpdateParams{
		TrialEnd:          stripe.Int64(trialEnd),
		ProrationBehavior: stripe.String("none"),
	}

	sub, err := p.client.V1Subscriptions.Update(ctx, subscriptionID, params)
	p.recordCall("/subscriptions/update", start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: update trial end of %s: %w", billing.ErrProviderAPIError, subscriptionID, err)
	}
	return subscriptionObject(sub)
}
