// Package firestore provides a Firestore implementation of the billing.Store interface.
// Each account is a document of the users collection holding its billing
// sub-record as a nested map.
package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mksouza37/listinha/pkg/billing"
)

// legacyCustomerField is the customer key written by older records.
const legacyCustomerField = "stripe_customer_id"

// Storage implements billing.Store using Google Cloud Firestore
type Storage struct {
	client     *firestore.Client
	collection string
	field      string
}

// Config holds Firestore storage configuration
type Config struct {
	// UsersCollection is the collection of account documents.
	// Default: "users"
	UsersCollection string

	// BillingField is the map field holding the billing sub-record.
	// Default: "billing"
	BillingField string
}

// New creates a new Firestore storage adapter
func New(client *firestore.Client, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is required")
	}
	if config.UsersCollection == "" {
		config.UsersCollection = "users"
	}
	if config.BillingField == "" {
		config.BillingField = "billing"
	}

	return &Storage{
		client:     client,
		collection: config.UsersCollection,
		field:      config.BillingField,
	}, nil
}

// GetBilling implements billing.Store
func (s *Storage) GetBilling(ctx context.Context, accountID string) (*billing.Record, error) {
	if accountID == "" {
		return nil, billing.ErrInvalidAccountID
	}
	snap, err := s.client.Collection(s.collection).Doc(accountID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, billing.ErrRecordNotFound
		}
		return nil, fmt.Errorf("%w: get billing: %w", billing.ErrStoreUnavailable, err)
	}
	if !snap.Exists() {
		return nil, billing.ErrRecordNotFound
	}

	data, ok := snap.Data()[s.field].(map[string]interface{})
	if !ok {
		return nil, billing.ErrRecordNotFound
	}
	return billing.RecordFromFields(billing.Fields(data)), nil
}

// PatchBilling implements billing.Store. Only the patched keys of the
// billing map are written; the rest of the account document is untouched.
func (s *Storage) PatchBilling(ctx context.Context, accountID string, patch *billing.Patch) error {
	if accountID == "" {
		return billing.ErrInvalidAccountID
	}
	fields := patch.Fields()
	if len(fields) == 0 {
		return nil
	}

	doc := s.client.Collection(s.collection).Doc(accountID)
	_, err := doc.Set(ctx, map[string]interface{}{s.field: fields}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("%w: patch billing: %w", billing.ErrStoreUnavailable, err)
	}
	return nil
}

// FindBySubscriptionID implements billing.Store
func (s *Storage) FindBySubscriptionID(ctx context.Context, subscriptionID string) (string, error) {
	return s.findBy(ctx, billing.FieldSubscriptionID, subscriptionID)
}

// FindByCustomerID implements billing.Store. Records written under the
// legacy customer key are matched too.
func (s *Storage) FindByCustomerID(ctx context.Context, customerID string) (string, error) {
	id, err := s.findBy(ctx, billing.FieldCustomerID, customerID)
	if errors.Is(err, billing.ErrAccountNotFound) {
		return s.findBy(ctx, legacyCustomerField, customerID)
	}
	return id, err
}

func (s *Storage) findBy(ctx context.Context, key, value string) (string, error) {
	if value == "" {
		return "", billing.ErrAccountNotFound
	}
	docs, err := s.client.Collection(s.collection).
		Where(s.field+"."+key, "==", value).
		Limit(1).
		Documents(ctx).
		GetAll()
	if err != nil {
		return "", fmt.Errorf("%w: query %s: %w", billing.ErrStoreUnavailable, key, err)
	}
	if len(docs) == 0 {
		return "", billing.ErrAccountNotFound
	}
	return docs[0].Ref.ID, nil
}
