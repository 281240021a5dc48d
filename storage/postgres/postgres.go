// Package postgres provides a PostgreSQL implementation of the billing.Store interface.
// Each account is one row of billing_records; the schema is managed by
// embedded goose migrations.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mksouza37/listinha/pkg/billing"
)

//go:embed migrations/*.sql
var migrations embed.FS

// columns are the persisted billing fields, in select order.
var columns = []string{
	billing.FieldStripeStatus,
	billing.FieldSubscriptionID,
	billing.FieldCustomerID,
	billing.FieldTrialEnd,
	billing.FieldCurrentPeriodEnd,
	billing.FieldGraceUntil,
	billing.FieldCancelAt,
	billing.FieldCanceledAt,
	billing.FieldCancelAtPeriodEnd,
	billing.FieldCanceled,
	billing.FieldExempt,
	billing.FieldLastEventID,
	billing.FieldLastCheckoutSessionID,
	billing.FieldLastCheckoutURL,
	billing.FieldLastUpdated,
}

var knownColumns = func() map[string]bool {
	m := make(map[string]bool, len(columns))
	for _, c := range columns {
		m[c] = true
	}
	return m
}()

// Storage implements billing.Store using PostgreSQL
type Storage struct {
	pool   *pgxpool.Pool
	config Config
}

// Config holds PostgreSQL storage configuration
type Config struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string

	// Pool configuration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// Migrate applies pending schema migrations on startup.
	Migrate bool
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		Migrate:         true,
	}
}

// New creates a new PostgreSQL storage adapter
func New(ctx context.Context, config Config) (*Storage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Storage{pool: pool, config: config}
	if config.Migrate {
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close() //nolint:errcheck // closing the wrapper leaves the pool open

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// GetBilling implements billing.Store
func (s *Storage) GetBilling(ctx context.Context, accountID string) (*billing.Record, error) {
	if accountID == "" {
		return nil, billing.ErrInvalidAccountID
	}

	query := "SELECT " + strings.Join(columns, ", ") + " FROM billing_records WHERE account_id = $1"

	var (
		texts = make([]*string, len(columns))
		ints  = make([]*int64, len(columns))
		bools = make([]*bool, len(columns))
		dest  = make([]interface{}, len(columns))
	)
	for i, c := range columns {
		switch columnKind(c) {
		case kindInt:
			dest[i] = &ints[i]
		case kindBool:
			dest[i] = &bools[i]
		default:
			dest[i] = &texts[i]
		}
	}

	err := s.pool.QueryRow(ctx, query, accountID).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, billing.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get billing: %w", billing.ErrStoreUnavailable, err)
	}

	fields := billing.Fields{}
	for i, c := range columns {
		switch {
		case texts[i] != nil:
			fields[c] = *texts[i]
		case ints[i] != nil:
			fields[c] = *ints[i]
		case bools[i] != nil:
			fields[c] = *bools[i]
		}
	}
	return billing.RecordFromFields(fields), nil
}

// PatchBilling implements billing.Store. The row is upserted and only the
// patched columns are overwritten.
func (s *Storage) PatchBilling(ctx context.Context, accountID string, patch *billing.Patch) error {
	if accountID == "" {
		return billing.ErrInvalidAccountID
	}
	query, args := upsertQuery(accountID, patch.Fields())
	if query == "" {
		return nil
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: patch billing: %w", billing.ErrStoreUnavailable, err)
	}
	return nil
}

// upsertQuery builds the INSERT ... ON CONFLICT statement for a patch.
// Cleared timestamps (zero) are stored as NULL.
func upsertQuery(accountID string, fields map[string]interface{}) (string, []interface{}) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if knownColumns[k] {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", nil
	}
	sort.Strings(keys)

	cols := []string{"account_id"}
	placeholders := []string{"$1"}
	updates := make([]string, 0, len(keys))
	args := []interface{}{accountID}
	for i, k := range keys {
		v := fields[k]
		if n, ok := v.(int64); ok && n <= 0 {
			v = nil
		}
		cols = append(cols, k)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
		updates = append(updates, k+" = EXCLUDED."+k)
		args = append(args, v)
	}

	query := fmt.Sprintf(
		"INSERT INTO billing_records (%s) VALUES (%s) ON CONFLICT (account_id) DO UPDATE SET %s",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", "))
	return query, args
}

// FindBySubscriptionID implements billing.Store
func (s *Storage) FindBySubscriptionID(ctx context.Context, subscriptionID string) (string, error) {
	return s.findBy(ctx, billing.FieldSubscriptionID, subscriptionID)
}

// FindByCustomerID implements billing.Store
func (s *Storage) FindByCustomerID(ctx context.Context, customerID string) (string, error) {
	return s.findBy(ctx, billing.FieldCustomerID, customerID)
}

func (s *Storage) findBy(ctx context.Context, column, value string) (string, error) {
	if value == "" {
		return "", billing.ErrAccountNotFound
	}
	var accountID string
	err := s.pool.QueryRow(ctx,
		"SELECT account_id FROM billing_records WHERE "+column+" = $1 ORDER BY last_updated DESC NULLS LAST LIMIT 1",
		value).Scan(&accountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", billing.ErrAccountNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: lookup %s: %w", billing.ErrStoreUnavailable, value, err)
	}
	return accountID, nil
}

type kind int

const (
	kindText kind = iota
	kindInt
	kindBool
)

func columnKind(column string) kind {
	switch column {
	case billing.FieldTrialEnd, billing.FieldCurrentPeriodEnd, billing.FieldGraceUntil,
		billing.FieldCancelAt, billing.FieldCanceledAt, billing.FieldLastUpdated:
		return kindInt
	case billing.FieldCancelAtPeriodEnd, billing.FieldCanceled, billing.FieldExempt:
		return kindBool
	default:
		return kindText
	}
}

// Close closes the connection pool
func (s *Storage) Close() {
	s.pool.Close()
}

// Ping checks the database connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
