package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"STRIPE_SECRET_KEY", "STRIPE_PUBLISHABLE_KEY", "STRIPE_PRICE_ID", "STRIPE_WEBHOOK_SECRET",
	"DOMAIN_URL", "TRIAL_DAYS_DEFAULT", "GRACE_DAYS_DEFAULT",
	"PAYWALL_ENABLED", "PAYWALL_ON_LISTINHA", "ALLOW_UNVERIFIED_WEBHOOKS", "WEBHOOK_IDEMPOTENCY",
	"ACCOUNT_METADATA_KEY", "STORE_BACKEND", "FIRESTORE_PROJECT_ID", "FIRESTORE_COLLECTION",
	"FIREBASE_CREDENTIALS", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "REDIS_CACHE_TTL", "POSTGRES_DSN",
	"HTTP_ADDR", "METRICS_ADDR", "LOG_LEVEL", "LOG_FORMAT", "ADMIN_USER", "ADMIN_PASSWORD",
}

// clearEnv blanks every recognized variable; viper treats empty values as unset.
func clearEnv(t *testing.T, except ...string) {
	t.Helper()
	skip := make(map[string]bool, len(except))
	for _, k := range except {
		skip[k] = true
	}
	for _, k := range envKeys {
		if !skip[k] {
			t.Setenv(k, "")
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	c, err := Load()
	require.NoError(t, err)

	assert.True(t, c.PaywallEnabled)
	assert.False(t, c.AllowUnverified)
	assert.True(t, c.WebhookIdempotency)
	assert.Equal(t, 0, c.TrialDaysDefault)
	assert.Equal(t, 0, c.GraceDaysDefault)
	assert.Equal(t, "phone", c.AccountMetadataKey)
	assert.Equal(t, StoreFirestore, c.Store.Backend)
	assert.Equal(t, "users", c.Store.FirestoreCollection)
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, "info", c.LogLevel)
	assert.False(t, c.AdminEnabled())
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("STRIPE_SECRET_KEY", " sk_test_abc ")
	t.Setenv("STRIPE_PRICE_ID", "price_1")
	t.Setenv("DOMAIN_URL", "https://listinha.example/")
	t.Setenv("TRIAL_DAYS_DEFAULT", "7")
	t.Setenv("GRACE_DAYS_DEFAULT", "3")
	t.Setenv("ALLOW_UNVERIFIED_WEBHOOKS", "Yes")
	t.Setenv("WEBHOOK_IDEMPOTENCY", "off")
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_CACHE_TTL", "5m")
	t.Setenv("ADMIN_USER", "admin")
	t.Setenv("ADMIN_PASSWORD", "secret")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk_test_abc", c.Stripe.SecretKey)
	assert.Equal(t, "price_1", c.Stripe.PriceID)
	assert.Equal(t, "https://listinha.example", c.DomainURL)
	assert.Equal(t, 7, c.TrialDaysDefault)
	assert.Equal(t, 3, c.GraceDaysDefault)
	assert.True(t, c.AllowUnverified)
	assert.False(t, c.WebhookIdempotency)
	assert.Equal(t, StoreRedis, c.Store.Backend)
	assert.Equal(t, 2, c.Store.RedisDB)
	assert.Equal(t, 5*time.Minute, c.Store.RedisCacheTTL)
	assert.False(t, c.Store.CacheEnabled())
	assert.True(t, c.AdminEnabled())

	bc := c.Billing()
	assert.Equal(t, 7, bc.TrialDaysDefault)
	assert.Equal(t, 3, bc.GraceDaysDefault)
	assert.True(t, bc.AllowUnverifiedWebhooks)
	assert.False(t, bc.WebhookIdempotency)
	assert.Equal(t, "https://listinha.example", bc.DomainURL)
	assert.Equal(t, "phone", bc.AccountMetadataKey)
}

func TestLoad_PaywallAlias(t *testing.T) {
	tests := []struct {
		name    string
		enabled string
		legacy  string
		want    bool
	}{
		{"default on", "", "", true},
		{"legacy off", "", "false", false},
		{"legacy on", "", "1", true},
		{"new name wins", "true", "false", true},
		{"new name off", "no", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("PAYWALL_ENABLED", tt.enabled)
			t.Setenv("PAYWALL_ON_LISTINHA", tt.legacy)

			c, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.PaywallEnabled)
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad trial days", map[string]string{"TRIAL_DAYS_DEFAULT": "seven"}},
		{"negative grace", map[string]string{"GRACE_DAYS_DEFAULT": "-1"}},
		{"unknown backend", map[string]string{"STORE_BACKEND": "mongo"}},
		{"postgres without dsn", map[string]string{"STORE_BACKEND": "postgres"}},
		{"bad cache ttl", map[string]string{"REDIS_CACHE_TTL": "soon"}},
		{"negative cache ttl", map[string]string{"REDIS_CACHE_TTL": "-1m"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t, "STRIPE_WEBHOOK_SECRET", "LOG_FORMAT")
	t.Setenv("LOG_FORMAT", "console")
	if old, ok := os.LookupEnv("STRIPE_WEBHOOK_SECRET"); ok {
		t.Cleanup(func() { _ = os.Setenv("STRIPE_WEBHOOK_SECRET", old) })
	}
	require.NoError(t, os.Unsetenv("STRIPE_WEBHOOK_SECRET"))
	t.Cleanup(func() { _ = os.Unsetenv("STRIPE_WEBHOOK_SECRET") })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("STRIPE_WEBHOOK_SECRET=whsec_file\nLOG_FORMAT=json\n"), 0o600))

	c, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "whsec_file", c.Stripe.WebhookSecret)
	// the process environment wins over the file
	assert.Equal(t, "console", c.LogFormat)
}

func TestStoreConfig_CacheEnabled(t *testing.T) {
	tests := []struct {
		backend string
		ttl     time.Duration
		want    bool
	}{
		{StoreFirestore, 10 * time.Minute, true},
		{StorePostgres, time.Minute, true},
		{StoreFirestore, 0, false},
		{StoreRedis, time.Minute, false},
		{StoreMemory, time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.backend+"/"+tt.ttl.String(), func(t *testing.T) {
			sc := StoreConfig{Backend: tt.backend, RedisCacheTTL: tt.ttl}
			assert.Equal(t, tt.want, sc.CacheEnabled())
		})
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		in   string
		def  bool
		want bool
	}{
		{"1", false, true},
		{"TRUE", false, true},
		{" yes ", false, true},
		{"On", false, true},
		{"0", true, false},
		{"false", true, false},
		{"maybe", true, false},
		{"", true, true},
		{"  ", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseBool(tt.in, tt.def))
		})
	}
}
