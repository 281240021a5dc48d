// Package redis provides a Redis implementation of the billing.Store interface.
// Each account is a hash of billing fields; subscription and customer ids are
// indexed by plain keys pointing back at the account.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mksouza37/listinha/pkg/billing"
)

// Storage implements billing.Store using Redis
type Storage struct {
	client  redis.UniversalClient
	config  Config
	scripts map[string]*redis.Script
}

// Config holds Redis storage configuration
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "listinha:")
	KeyPrefix string

	// RecordTTL expires account records after their last write. Zero keeps
	// them forever; set it when Redis caches a durable store.
	RecordTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "listinha:",
	}
}

// New creates a new Redis storage adapter
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring
func New(client redis.UniversalClient, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultConfig().KeyPrefix
	}

	s := &Storage{
		client:  client,
		config:  config,
		scripts: make(map[string]*redis.Script),
	}
	s.loadScripts()
	return s, nil
}

// loadScripts loads and compiles Lua scripts for atomic operations
func (s *Storage) loadScripts() {
	// Write patched fields and refresh the reverse indexes in one step.
	// KEYS: record, subscription index prefix, customer index prefix
	// ARGV: account id, then field/value pairs
	s.scripts["patch"] = redis.NewScript(`
		local recordKey = KEYS[1]
		local subPrefix = KEYS[2]
		local cusPrefix = KEYS[3]
		local accountID = ARGV[1]

		for i = 2, #ARGV, 2 do
			redis.call('HSET', recordKey, ARGV[i], ARGV[i + 1])
		end

		local subID = redis.call('HGET', recordKey, 'subscription_id')
		if subID and subID ~= '' then
			redis.call('SET', subPrefix .. subID, accountID)
		end
		local cusID = redis.call('HGET', recordKey, 'customer_id')
		if cusID and cusID ~= '' then
			redis.call('SET', cusPrefix .. cusID, accountID)
		end
		return 1
	`)
}

// GetBilling implements billing.Store
func (s *Storage) GetBilling(ctx context.Context, accountID string) (*billing.Record, error) {
	if accountID == "" {
		return nil, billing.ErrInvalidAccountID
	}
	data, err := s.client.HGetAll(ctx, s.recordKey(accountID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: get billing: %w", billing.ErrStoreUnavailable, err)
	}
	if len(data) == 0 {
		return nil, billing.ErrRecordNotFound
	}

	fields := make(billing.Fields, len(data))
	for k, v := range data {
		fields[k] = v
	}
	return billing.RecordFromFields(fields), nil
}

// PatchBilling implements billing.Store
func (s *Storage) PatchBilling(ctx context.Context, accountID string, patch *billing.Patch) error {
	if accountID == "" {
		return billing.ErrInvalidAccountID
	}
	fields := patch.Fields()
	if len(fields) == 0 {
		return nil
	}

	args := make([]interface{}, 0, 1+2*len(fields))
	args = append(args, accountID)
	for k, v := range fields {
		args = append(args, k, encodeValue(v))
	}

	keys := []string{s.recordKey(accountID), s.subscriptionKey(""), s.customerKey("")}
	if err := s.scripts["patch"].Run(ctx, s.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("%w: patch billing: %w", billing.ErrStoreUnavailable, err)
	}
	if s.config.RecordTTL > 0 {
		if err := s.client.Expire(ctx, s.recordKey(accountID), s.config.RecordTTL).Err(); err != nil {
			return fmt.Errorf("%w: expire billing: %w", billing.ErrStoreUnavailable, err)
		}
	}
	return nil
}

// DeleteBilling removes the record of an account. Reverse index keys are
// left to be overwritten by later patches.
func (s *Storage) DeleteBilling(ctx context.Context, accountID string) error {
	if accountID == "" {
		return billing.ErrInvalidAccountID
	}
	if err := s.client.Del(ctx, s.recordKey(accountID)).Err(); err != nil {
		return fmt.Errorf("%w: delete billing: %w", billing.ErrStoreUnavailable, err)
	}
	return nil
}

// FindBySubscriptionID implements billing.Store
func (s *Storage) FindBySubscriptionID(ctx context.Context, subscriptionID string) (string, error) {
	return s.lookup(ctx, s.subscriptionKey(subscriptionID), subscriptionID)
}

// FindByCustomerID implements billing.Store
func (s *Storage) FindByCustomerID(ctx context.Context, customerID string) (string, error) {
	return s.lookup(ctx, s.customerKey(customerID), customerID)
}

func (s *Storage) lookup(ctx context.Context, key, id string) (string, error) {
	if id == "" {
		return "", billing.ErrAccountNotFound
	}
	accountID, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", billing.ErrAccountNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: lookup %s: %w", billing.ErrStoreUnavailable, id, err)
	}
	return accountID, nil
}

// encodeValue renders a patch value as a hash field string.
func encodeValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

func (s *Storage) recordKey(accountID string) string {
	return s.config.KeyPrefix + "billing:" + accountID
}

func (s *Storage) subscriptionKey(subscriptionID string) string {
	return s.config.KeyPrefix + "billing_sub:" + subscriptionID
}

func (s *Storage) customerKey(customerID string) string {
	return s.config.KeyPrefix + "billing_cus:" + customerID
}

// Close closes the Redis client connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
