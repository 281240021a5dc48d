package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mksouza37/listinha/pkg/billing"
)

// setupTestRedis creates a Redis client for testing
// Requires Redis running on localhost:6379
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use DB 15 for testing
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test database: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		client     redis.UniversalClient
		config     Config
		wantErr    bool
		wantPrefix string
	}{
		{"nil client", nil, DefaultConfig(), true, ""},
		{"default config", redis.NewClient(&redis.Options{Addr: "localhost:6379"}), DefaultConfig(), false, "listinha:"},
		{"custom prefix", redis.NewClient(&redis.Options{Addr: "localhost:6379"}), Config{KeyPrefix: "test:"}, false, "test:"},
		{"empty prefix uses default", redis.NewClient(&redis.Options{Addr: "localhost:6379"}), Config{}, false, "listinha:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, err := New(tt.client, tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrefix, storage.config.KeyPrefix)
		})
	}
}

func TestEncodeValue(t *testing.T) {
	assert.Equal(t, "ACTIVE", encodeValue("ACTIVE"))
	assert.Equal(t, "1700000000", encodeValue(int64(1_700_000_000)))
	assert.Equal(t, "true", encodeValue(true))
}

func TestStorage_PatchAndGet(t *testing.T) {
	storage, err := New(setupTestRedis(t), DefaultConfig())
	require.NoError(t, err)
	ctx := context.Background()
	account := "+5511999990000"

	_, err = storage.GetBilling(ctx, account)
	assert.ErrorIs(t, err, billing.ErrRecordNotFound)

	require.NoError(t, storage.PatchBilling(ctx, account, &billing.Patch{
		StripeStatus:      billing.String("TRIALING"),
		SubscriptionID:    billing.String("sub_1"),
		TrialEnd:          billing.Int64(1_900_000_000),
		CancelAtPeriodEnd: billing.Bool(true),
	}))
	require.NoError(t, storage.PatchBilling(ctx, account, &billing.Patch{
		Exempt: billing.Bool(true),
	}))

	rec, err := storage.GetBilling(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, "TRIALING", rec.StripeStatus)
	assert.Equal(t, "sub_1", rec.SubscriptionID)
	assert.Equal(t, billing.Int64(1_900_000_000), rec.TrialEnd)
	assert.True(t, rec.CancelAtPeriodEnd)
	assert.True(t, rec.Exempt)

	require.NoError(t, storage.PatchBilling(ctx, account, &billing.Patch{TrialEnd: billing.Int64(0)}))
	rec, err = storage.GetBilling(ctx, account)
	require.NoError(t, err)
	assert.Nil(t, rec.TrialEnd)
}

func TestStorage_ReverseLookups(t *testing.T) {
	storage, err := New(setupTestRedis(t), DefaultConfig())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, storage.PatchBilling(ctx, "+551100", &billing.Patch{CustomerID: billing.String("cus_1")}))
	require.NoError(t, storage.PatchBilling(ctx, "+551100", &billing.Patch{SubscriptionID: billing.String("sub_1")}))

	id, err := storage.FindBySubscriptionID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "+551100", id)

	id, err = storage.FindByCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "+551100", id)

	_, err = storage.FindByCustomerID(ctx, "cus_missing")
	assert.ErrorIs(t, err, billing.ErrAccountNotFound)
	_, err = storage.FindBySubscriptionID(ctx, "")
	assert.ErrorIs(t, err, billing.ErrAccountNotFound)
}

func TestStorage_InvalidAccount(t *testing.T) {
	storage, err := New(redis.NewClient(&redis.Options{Addr: "localhost:6379"}), DefaultConfig())
	require.NoError(t, err)

	assert.ErrorIs(t, storage.PatchBilling(context.Background(), "", &billing.Patch{}), billing.ErrInvalidAccountID)
	_, err = storage.GetBilling(context.Background(), "")
	assert.ErrorIs(t, err, billing.ErrInvalidAccountID)
}

func TestStorage_RecordTTLAndDelete(t *testing.T) {
	client := setupTestRedis(t)
	store, err := New(client, Config{KeyPrefix: "test:", RecordTTL: time.Minute})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.PatchBilling(ctx, "acc", &billing.Patch{Exempt: billing.Bool(true)}))
	ttl, err := client.TTL(ctx, "test:billing:acc").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)

	require.NoError(t, store.DeleteBilling(ctx, "acc"))
	_, err = store.GetBilling(ctx, "acc")
	assert.ErrorIs(t, err, billing.ErrRecordNotFound)

	assert.ErrorIs(t, store.DeleteBilling(ctx, ""), billing.ErrInvalidAccountID)
}
