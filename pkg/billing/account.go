package billing

import (
	"context"
	"errors"
	"fmt"
)

// AccountStrategy locates the account a patch belongs to. It returns
// ErrAccountNotFound when it cannot decide, so the next strategy runs.
type AccountStrategy struct {
	Name    string
	Resolve func(ctx context.Context, patch *Patch, ev Event) (string, error)
}

// AccountResolver maps event patches to accounts by trying its strategies in
// order: the hint embedded in the event, then reverse lookups by
// subscription id and by customer id.
type AccountResolver struct {
	strategies []AccountStrategy
}

// NewAccountResolver creates a resolver backed by store.
func NewAccountResolver(store Store) *AccountResolver {
	return &AccountResolver{
		strategies: []AccountStrategy{
			{Name: "metadata", Resolve: resolveByHint},
			{Name: "subscription_id", Resolve: func(ctx context.Context, p *Patch, _ Event) (string, error) {
				if p.SubscriptionID == nil || *p.SubscriptionID == "" {
					return "", ErrAccountNotFound
				}
				return store.FindBySubscriptionID(ctx, *p.SubscriptionID)
			}},
			{Name: "customer_id", Resolve: func(ctx context.Context, p *Patch, _ Event) (string, error) {
				if p.CustomerID == nil || *p.CustomerID == "" {
					return "", ErrAccountNotFound
				}
				return store.FindByCustomerID(ctx, *p.CustomerID)
			}},
		},
	}
}

// Resolve returns the account id and the name of the strategy that found
// it. ErrAccountNotFound means no strategy matched; any other error is a
// store failure.
func (r *AccountResolver) Resolve(ctx context.Context, patch *Patch, ev Event) (string, string, error) {
	if patch == nil {
		return "", "", ErrAccountNotFound
	}
	for _, s := range r.strategies {
		accountID, err := s.Resolve(ctx, patch, ev)
		if err == nil && accountID != "" {
			return accountID, s.Name, nil
		}
		if err != nil && !errors.Is(err, ErrAccountNotFound) {
			return "", s.Name, fmt.Errorf("resolve account by %s: %w", s.Name, err)
		}
	}
	return "", "", ErrAccountNotFound
}

func resolveByHint(_ context.Context, p *Patch, _ Event) (string, error) {
	if p.AccountHint == "" {
		return "", ErrAccountNotFound
	}
	return p.AccountHint, nil
}
