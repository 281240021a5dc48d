// Package memory provides an in-memory implementation of the billing.Store interface.
// This implementation is primarily intended for testing and development.
package memory

import (
	"context"
	"sync"

	"github.com/mksouza37/listinha/pkg/billing"
)

// Storage implements billing.Store using in-memory maps
type Storage struct {
	mu             sync.RWMutex
	records        map[string]*billing.Record
	bySubscription map[string]string
	byCustomer     map[string]string
	patches        int
}

// New creates a new in-memory storage adapter
func New() *Storage {
	return &Storage{
		records:        make(map[string]*billing.Record),
		bySubscription: make(map[string]string),
		byCustomer:     make(map[string]string),
	}
}

// GetBilling implements billing.Store
func (s *Storage) GetBilling(_ context.Context, accountID string) (*billing.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[accountID]
	if !ok {
		return nil, billing.ErrRecordNotFound
	}
	// Return a copy to prevent external mutations
	return rec.Clone(), nil
}

// PatchBilling implements billing.Store
func (s *Storage) PatchBilling(_ context.Context, accountID string, patch *billing.Patch) error {
	if accountID == "" {
		return billing.ErrInvalidAccountID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := patch.Apply(s.records[accountID])
	s.records[accountID] = rec
	s.patches++
	if rec.SubscriptionID != "" {
		s.bySubscription[rec.SubscriptionID] = accountID
	}
	if rec.CustomerID != "" {
		s.byCustomer[rec.CustomerID] = accountID
	}
	return nil
}

// FindBySubscriptionID implements billing.Store
func (s *Storage) FindBySubscriptionID(_ context.Context, subscriptionID string) (string, error) {
	return s.lookup(s.bySubscription, subscriptionID)
}

// FindByCustomerID implements billing.Store
func (s *Storage) FindByCustomerID(_ context.Context, customerID string) (string, error) {
	return s.lookup(s.byCustomer, customerID)
}

func (s *Storage) lookup(index map[string]string, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if key == "" {
		return "", billing.ErrAccountNotFound
	}
	accountID, ok := index[key]
	if !ok {
		return "", billing.ErrAccountNotFound
	}
	return accountID, nil
}

// DeleteBilling removes the record of an account and its index entries.
func (s *Storage) DeleteBilling(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[accountID]
	if !ok {
		return nil
	}
	delete(s.records, accountID)
	if s.bySubscription[rec.SubscriptionID] == accountID {
		delete(s.bySubscription, rec.SubscriptionID)
	}
	if s.byCustomer[rec.CustomerID] == accountID {
		delete(s.byCustomer, rec.CustomerID)
	}
	return nil
}

// Put replaces the record of an account. Intended for seeding tests.
func (s *Storage) Put(accountID string, rec *billing.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec = rec.Clone()
	if rec == nil {
		rec = &billing.Record{}
	}
	s.records[accountID] = rec
	if rec.SubscriptionID != "" {
		s.bySubscription[rec.SubscriptionID] = accountID
	}
	if rec.CustomerID != "" {
		s.byCustomer[rec.CustomerID] = accountID
	}
}

// PatchCount returns how many patches have been written.
func (s *Storage) PatchCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.patches
}
