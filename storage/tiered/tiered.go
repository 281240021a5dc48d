// Package tiered provides a Hot/Cold account store: a fast cache (Hot, e.g.
// Redis) in front of the durable store of record (Cold, e.g. Firestore or
// Postgres).
//
// Strategies per operation:
//   - Read-Through: GetBilling (Hot, then Cold, then populate Hot)
//   - Write-Through with invalidation: PatchBilling (Cold, then evict Hot)
//   - Cold-Only: reverse lookups, which must see every account
package tiered

import (
	"context"
	"errors"
	"fmt"

	"github.com/mksouza37/listinha/pkg/billing"
)

// HotStore is a cache tier. It must be able to evict a record so the next
// read goes back to Cold.
type HotStore interface {
	billing.Store
	DeleteBilling(ctx context.Context, accountID string) error
}

// Config configures the tiered store.
type Config struct {
	// Hot is the cache tier (e.g. Redis with a RecordTTL, or memory).
	Hot HotStore

	// Cold is the source of truth.
	Cold billing.Store

	// OnHotError is called when the cache tier fails. Hot failures never
	// fail an operation whose Cold part succeeded, so this is the only place
	// cache drift shows up.
	OnHotError func(op, accountID string, err error)
}

// Storage implements billing.Store over a Hot and a Cold tier.
type Storage struct {
	hot  HotStore
	cold billing.Store
	conf Config
}

// New creates a tiered store.
func New(config Config) (*Storage, error) {
	if config.Hot == nil || config.Cold == nil {
		return nil, errors.New("tiered storage: both hot and cold storage are required")
	}
	return &Storage{hot: config.Hot, cold: config.Cold, conf: config}, nil
}

// GetBilling implements billing.Store with read-through strategy.
func (s *Storage) GetBilling(ctx context.Context, accountID string) (*billing.Record, error) {
	rec, err := s.hot.GetBilling(ctx, accountID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, billing.ErrRecordNotFound) {
		s.hotError("get", accountID, err)
	}

	rec, err = s.cold.GetBilling(ctx, accountID)
	if err != nil {
		return nil, err
	}

	// Read-repair; a failed fill only costs the next read a Cold hit.
	if err := s.hot.PatchBilling(ctx, accountID, billing.PatchFromRecord(rec)); err != nil {
		s.hotError("fill", accountID, err)
	}
	return rec, nil
}

// PatchBilling implements billing.Store. Cold is written first; the Hot copy
// is evicted rather than patched so it can never hold a partial record.
func (s *Storage) PatchBilling(ctx context.Context, accountID string, patch *billing.Patch) error {
	if err := s.cold.PatchBilling(ctx, accountID, patch); err != nil {
		return err
	}
	if err := s.hot.DeleteBilling(ctx, accountID); err != nil {
		s.hotError("evict", accountID, err)
	}
	return nil
}

// FindBySubscriptionID implements billing.Store against Cold.
func (s *Storage) FindBySubscriptionID(ctx context.Context, subscriptionID string) (string, error) {
	return s.cold.FindBySubscriptionID(ctx, subscriptionID)
}

// FindByCustomerID implements billing.Store against Cold.
func (s *Storage) FindByCustomerID(ctx context.Context, customerID string) (string, error) {
	return s.cold.FindByCustomerID(ctx, customerID)
}

func (s *Storage) hotError(op, accountID string, err error) {
	if s.conf.OnHotError != nil {
		s.conf.OnHotError(op, accountID, fmt.Errorf("tiered %s: %w", op, err))
	}
}
