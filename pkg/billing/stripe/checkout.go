package stripe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/mksouza37/listinha/pkg/billing"
)

// CreateCustomer creates a Stripe customer tagged with the account metadata.
func (p *Provider) CreateCustomer(ctx context.Context, accountID string, metadata map[string]string) (string, error) {
	start := time.Now()

	params := &stripe.CustomerCreateParams{
		Description: stripe.String(accountID),
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	if strings.HasPrefix(accountID, "+") {
		params.Phone = stripe.String(accountID)
	}

	customer, err := p.client.V1Customers.Create(ctx, params)
	p.recordCall("/customers", start, err)
	if err != nil {
		return "", fmt.Errorf("%w: create customer: %w", billing.ErrProviderAPIError, err)
	}
	return customer.ID, nil
}

// CreateCheckoutSession creates a subscription Checkout Session for the
// configured price.
func (p *Provider) CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	start := time.Now()

	if p.config.PriceID == "" {
		p.metrics.RecordAPICall(providerName, "/checkout/sessions", "price_not_configured")
		return nil, fmt.Errorf("%w: price id is not set", billing.ErrProviderNotConfigured)
	}

	params := &stripe.CheckoutSessionCreateParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(p.config.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.AccountID),
	}

	// The subscription inherits the metadata so its own webhooks resolve
	// the account without a reverse lookup.
	params.SubscriptionData = &stripe.CheckoutSessionCreateSubscriptionDataParams{}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
		params.SubscriptionData.AddMetadata(k, v)
	}
	if req.TrialDays > 0 {
		params.SubscriptionData.TrialPeriodDays = stripe.Int64(int64(req.TrialDays))
	}
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}

	session, err := p.client.V1CheckoutSessions.Create(ctx, params)
	p.recordCall("/checkout/sessions", start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: create checkout session: %w", billing.ErrProviderAPIError, err)
	}

	out := &billing.CheckoutSession{ID: session.ID, URL: session.URL, CustomerID: req.CustomerID}
	if session.Customer != nil && session.Customer.ID != "" {
		out.CustomerID = session.Customer.ID
	}
	return out, nil
}

// CreatePortalSession creates a Customer Portal session and returns its URL.
func (p *Provider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	start := time.Now()

	params := &stripe.BillingPortalSessionCreateParams{
		Customer: stripe.String(customerID),
	}
	if returnURL != "" {
		params.ReturnURL = stripe.String(returnURL)
	}

	session, err := p.client.V1BillingPortalSessions.Create(ctx, params)
	p.recordCall("/billing_portal/sessions", start, err)
	if err != nil {
		return "", fmt.Errorf("%w: create portal session: %w", billing.ErrProviderAPIError, err)
	}
	return session.URL, nil
}
