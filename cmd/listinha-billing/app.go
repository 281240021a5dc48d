package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/mksouza37/listinha/internal/config"
	"github.com/mksouza37/listinha/pkg/billing"
	zerologadapter "github.com/mksouza37/listinha/pkg/billing/logger/zerolog"
	prommetrics "github.com/mksouza37/listinha/pkg/billing/metrics/prometheus"
	billingstripe "github.com/mksouza37/listinha/pkg/billing/stripe"
	firestorestore "github.com/mksouza37/listinha/storage/firestore"
	"github.com/mksouza37/listinha/storage/memory"
	postgresstore "github.com/mksouza37/listinha/storage/postgres"
	redisstore "github.com/mksouza37/listinha/storage/redis"
	"github.com/mksouza37/listinha/storage/tiered"
)

const (
	metricsNamespace = "listinha"

	breakerThreshold = 5
	breakerReset     = 30 * time.Second
)

// app is the wired billing service shared by every command.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	store    billing.Store
	engine   *billing.Engine
	provider *billingstripe.Provider // nil without STRIPE_SECRET_KEY
	registry *prometheus.Registry
	closers  []func()
}

func newApp(ctx context.Context, cfg *config.Config, out io.Writer) (*app, error) {
	a := &app{
		cfg:      cfg,
		log:      newLogger(cfg.LogLevel, cfg.LogFormat, out),
		registry: prometheus.NewRegistry(),
	}
	blog := zerologadapter.NewLogger(a.log)
	metrics := prommetrics.NewMetrics(a.registry, metricsNamespace)

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store

	bcfg := cfg.Billing()
	bcfg.Logger = blog
	bcfg.Metrics = metrics
	bcfg.OnStatusChange = a.logStatusChange

	if cfg.Stripe.SecretKey != "" {
		a.provider, err = billingstripe.NewProvider(billingstripe.Config{
			SecretKey:               cfg.Stripe.SecretKey,
			WebhookSecret:           cfg.Stripe.WebhookSecret,
			PriceID:                 cfg.Stripe.PriceID,
			AllowUnverifiedWebhooks: cfg.AllowUnverified,
			Logger:                  blog.With(billing.Field{Key: "component", Value: "stripe"}),
			Metrics:                 metrics,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		bcfg.Provider = a.provider
		bcfg.Checkout = a.provider
		bcfg.CircuitBreaker = billing.NewProviderBreaker(breakerThreshold, breakerReset, func(from, to billing.BreakerState) {
			a.log.Warn().Str("from", string(from)).Str("to", string(to)).Msg("Stripe circuit breaker changed state")
		})
	} else {
		a.log.Warn().Msg("STRIPE_SECRET_KEY is not set; provider operations are disabled")
	}

	a.engine, err = billing.NewEngine(a.store, bcfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// openStore connects the account store selected by STORE_BACKEND.
func (a *app) openStore(ctx context.Context) (billing.Store, error) {
	sc := a.cfg.Store
	switch sc.Backend {
	case config.StoreMemory:
		a.log.Warn().Msg("Using in-memory store; billing records are lost on exit")
		return memory.New(), nil

	case config.StoreRedis:
		return a.openRedis(ctx, 0)
	}

	cold, err := a.openDurable(ctx)
	if err != nil {
		return nil, err
	}
	if !sc.CacheEnabled() {
		return cold, nil
	}
	hot, err := a.openRedis(ctx, sc.RedisCacheTTL)
	if err != nil {
		return nil, err
	}
	a.log.Info().Dur("ttl", sc.RedisCacheTTL).Msg("Caching billing records in Redis")
	store, err := tiered.New(tiered.Config{
		Hot:  hot,
		Cold: cold,
		OnHotError: func(op, accountID string, err error) {
			a.log.Warn().Err(err).Str("op", op).Str("account_id", accountID).Msg("Billing cache error")
		},
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

func (a *app) openRedis(ctx context.Context, ttl time.Duration) (*redisstore.Storage, error) {
	sc := a.cfg.Store
	client := redis.NewClient(&redis.Options{
		Addr:     sc.RedisAddr,
		Password: sc.RedisPassword,
		DB:       sc.RedisDB,
	})
	rcfg := redisstore.DefaultConfig()
	rcfg.RecordTTL = ttl
	store, err := redisstore.New(client, rcfg)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = store.Close() })
	if err := store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("connect redis %s: %w", sc.RedisAddr, err)
	}
	return store, nil
}

// openDurable connects the postgres or firestore store of record.
func (a *app) openDurable(ctx context.Context) (billing.Store, error) {
	sc := a.cfg.Store
	switch sc.Backend {
	case config.StorePostgres:
		pcfg := postgresstore.DefaultConfig()
		pcfg.ConnectionString = sc.PostgresDSN
		store, err := postgresstore.New(ctx, pcfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil

	default:
		var opts []option.ClientOption
		if sc.FirestoreCredentials != "" {
			opts = append(opts, option.WithCredentialsJSON([]byte(sc.FirestoreCredentials)))
		}
		projectID := sc.FirestoreProjectID
		if projectID == "" {
			projectID = firestore.DetectProjectID
		}
		client, err := firestore.NewClient(ctx, projectID, opts...)
		if err != nil {
			return nil, fmt.Errorf("connect firestore: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		store, err := firestorestore.New(client, firestorestore.Config{UsersCollection: sc.FirestoreCollection})
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

func (a *app) logStatusChange(_ context.Context, change billing.StatusChange) {
	ev := a.log.Info().
		Str("account_id", change.AccountID).
		Str("from", string(change.Previous)).
		Str("to", string(change.Current)).
		Str("source", change.Source)
	if change.EventID != "" {
		ev = ev.Str("event_id", change.EventID).Str("event_type", change.EventType)
	}
	if change.Until != nil {
		ev = ev.Time("until", time.Unix(*change.Until, 0).UTC())
	}
	ev.Msg("Billing status changed")
}

// Close releases store connections.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func newLogger(level, format string, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Str("service", "listinha-billing").Logger()
}
