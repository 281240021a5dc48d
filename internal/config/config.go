// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mksouza37/listinha/pkg/billing"
)

// Store backends selectable with STORE_BACKEND.
const (
	StoreFirestore = "firestore"
	StoreRedis     = "redis"
	StorePostgres  = "postgres"
	StoreMemory    = "memory"
)

// Config is the process configuration.
type Config struct {
	Stripe StripeConfig

	DomainURL          string
	TrialDaysDefault   int
	GraceDaysDefault   int
	PaywallEnabled     bool
	AllowUnverified    bool
	WebhookIdempotency bool
	AccountMetadataKey string

	Store StoreConfig

	HTTPAddr    string
	MetricsAddr string
	LogLevel    string
	LogFormat   string

	// Basic auth for the admin API. Admin routes are disabled when either is empty.
	AdminUser     string
	AdminPassword string
}

// StripeConfig holds the Stripe credentials.
type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	PriceID        string
	WebhookSecret  string
}

// StoreConfig selects and configures the account store.
type StoreConfig struct {
	Backend string

	FirestoreProjectID   string
	FirestoreCollection  string
	FirestoreCredentials string // service account JSON

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PostgresDSN string

	// RedisCacheTTL puts Redis in front of a firestore or postgres store
	// when positive.
	RedisCacheTTL time.Duration
}

// Load reads the configuration from the environment. envFiles are loaded
// first with godotenv; missing files are skipped and variables already set
// in the environment win.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("TRIAL_DAYS_DEFAULT", 0)
	v.SetDefault("GRACE_DAYS_DEFAULT", 0)
	v.SetDefault("ACCOUNT_METADATA_KEY", "phone")
	v.SetDefault("STORE_BACKEND", StoreFirestore)
	v.SetDefault("FIRESTORE_COLLECTION", "users")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	paywall := v.GetString("PAYWALL_ENABLED")
	if strings.TrimSpace(paywall) == "" {
		paywall = v.GetString("PAYWALL_ON_LISTINHA")
	}

	c := &Config{
		Stripe: StripeConfig{
			SecretKey:      strings.TrimSpace(v.GetString("STRIPE_SECRET_KEY")),
			PublishableKey: strings.TrimSpace(v.GetString("STRIPE_PUBLISHABLE_KEY")),
			PriceID:        strings.TrimSpace(v.GetString("STRIPE_PRICE_ID")),
			WebhookSecret:  strings.TrimSpace(v.GetString("STRIPE_WEBHOOK_SECRET")),
		},
		DomainURL:          strings.TrimRight(strings.TrimSpace(v.GetString("DOMAIN_URL")), "/"),
		PaywallEnabled:     ParseBool(paywall, true),
		AllowUnverified:    ParseBool(v.GetString("ALLOW_UNVERIFIED_WEBHOOKS"), false),
		WebhookIdempotency: ParseBool(v.GetString("WEBHOOK_IDEMPOTENCY"), true),
		AccountMetadataKey: v.GetString("ACCOUNT_METADATA_KEY"),
		Store: StoreConfig{
			Backend:              strings.ToLower(strings.TrimSpace(v.GetString("STORE_BACKEND"))),
			FirestoreProjectID:   v.GetString("FIRESTORE_PROJECT_ID"),
			FirestoreCollection:  v.GetString("FIRESTORE_COLLECTION"),
			FirestoreCredentials: v.GetString("FIREBASE_CREDENTIALS"),
			RedisAddr:            v.GetString("REDIS_ADDR"),
			RedisPassword:        v.GetString("REDIS_PASSWORD"),
			PostgresDSN:          v.GetString("POSTGRES_DSN"),
		},
		HTTPAddr:      v.GetString("HTTP_ADDR"),
		MetricsAddr:   v.GetString("METRICS_ADDR"),
		LogLevel:      strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:     strings.ToLower(v.GetString("LOG_FORMAT")),
		AdminUser:     v.GetString("ADMIN_USER"),
		AdminPassword: v.GetString("ADMIN_PASSWORD"),
	}

	var err error
	if c.TrialDaysDefault, err = intValue(v, "TRIAL_DAYS_DEFAULT"); err != nil {
		return nil, err
	}
	if c.GraceDaysDefault, err = intValue(v, "GRACE_DAYS_DEFAULT"); err != nil {
		return nil, err
	}
	if c.Store.RedisDB, err = intValue(v, "REDIS_DB"); err != nil {
		return nil, err
	}
	if raw := strings.TrimSpace(v.GetString("REDIS_CACHE_TTL")); raw != "" {
		if c.Store.RedisCacheTTL, err = time.ParseDuration(raw); err != nil {
			return nil, fmt.Errorf("REDIS_CACHE_TTL: invalid duration %q", raw)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreFirestore, StoreRedis, StoreMemory:
	case StorePostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	if c.Store.RedisCacheTTL < 0 {
		return errors.New("REDIS_CACHE_TTL must not be negative")
	}
	if c.TrialDaysDefault < 0 || c.GraceDaysDefault < 0 {
		return errors.New("TRIAL_DAYS_DEFAULT and GRACE_DAYS_DEFAULT must not be negative")
	}
	return nil
}

// CacheEnabled reports whether Redis caches the durable store.
func (s StoreConfig) CacheEnabled() bool {
	return s.RedisCacheTTL > 0 && (s.Backend == StoreFirestore || s.Backend == StorePostgres)
}

// AdminEnabled reports whether admin credentials are configured.
func (c *Config) AdminEnabled() bool {
	return c.AdminUser != "" && c.AdminPassword != ""
}

// Billing returns the engine configuration. Provider, logger and metrics
// are left for the caller to wire.
func (c *Config) Billing() billing.Config {
	cfg := billing.DefaultConfig()
	cfg.TrialDaysDefault = c.TrialDaysDefault
	cfg.GraceDaysDefault = c.GraceDaysDefault
	cfg.PaywallEnabled = c.PaywallEnabled
	cfg.AllowUnverifiedWebhooks = c.AllowUnverified
	cfg.WebhookIdempotency = c.WebhookIdempotency
	cfg.DomainURL = c.DomainURL
	if c.AccountMetadataKey != "" {
		cfg.AccountMetadataKey = c.AccountMetadataKey
	}
	return cfg
}

// ParseBool accepts 1, true, yes and on (any case) as true and every other
// non-empty value as false. An empty value yields def.
func ParseBool(s string, def bool) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return def
	}
	switch s {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func intValue(v *viper.Viper, key string) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, raw)
	}
	return n, nil
}
