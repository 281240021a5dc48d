package billing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mksouza37/listinha/pkg/billing"
	"github.com/mksouza37/listinha/storage/memory"
)

type brokenStore struct{ *memory.Storage }

var errBackend = errors.New("backend down")

func (brokenStore) FindBySubscriptionID(context.Context, string) (string, error) {
	return "", errBackend
}

func TestAccountResolver_Order(t *testing.T) {
	store := memory.New()
	store.Put("by-sub", &billing.Record{SubscriptionID: "sub_1"})
	store.Put("by-cus", &billing.Record{CustomerID: "cus_1"})
	resolver := billing.NewAccountResolver(store)

	tests := []struct {
		name         string
		patch        *billing.Patch
		wantAccount  string
		wantStrategy string
	}{
		{
			name:         "metadata hint wins",
			patch:        &billing.Patch{AccountHint: "hinted", SubscriptionID: billing.String("sub_1")},
			wantAccount:  "hinted",
			wantStrategy: "metadata",
		},
		{
			name:         "subscription before customer",
			patch:        &billing.Patch{SubscriptionID: billing.String("sub_1"), CustomerID: billing.String("cus_1")},
			wantAccount:  "by-sub",
			wantStrategy: "subscription_id",
		},
		{
			name:         "unknown subscription falls back to customer",
			patch:        &billing.Patch{SubscriptionID: billing.String("sub_x"), CustomerID: billing.String("cus_1")},
			wantAccount:  "by-cus",
			wantStrategy: "customer_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account, strategy, err := resolver.Resolve(context.Background(), tt.patch, billing.Event{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantAccount, account)
			assert.Equal(t, tt.wantStrategy, strategy)
		})
	}
}

func TestAccountResolver_NotFound(t *testing.T) {
	resolver := billing.NewAccountResolver(memory.New())
	ctx := context.Background()

	for _, patch := range []*billing.Patch{
		nil,
		{},
		{SubscriptionID: billing.String(""), CustomerID: billing.String("cus_unknown")},
	} {
		_, _, err := resolver.Resolve(ctx, patch, billing.Event{})
		assert.ErrorIs(t, err, billing.ErrAccountNotFound)
	}
}

func TestAccountResolver_StoreFailure(t *testing.T) {
	resolver := billing.NewAccountResolver(brokenStore{memory.New()})

	_, strategy, err := resolver.Resolve(context.Background(),
		&billing.Patch{SubscriptionID: billing.String("sub_1")}, billing.Event{})
	assert.ErrorIs(t, err, errBackend)
	assert.NotErrorIs(t, err, billing.ErrAccountNotFound)
	assert.Equal(t, "subscription_id", strategy)
}
