package billing

import "context"

// Store is the account store holding one billing sub-record per account.
// Writes have merge semantics; fields absent from a patch stay untouched.
type Store interface {
	// GetBilling returns the billing record of an account, or ErrRecordNotFound.
	GetBilling(ctx context.Context, accountID string) (*Record, error)

	// PatchBilling merges patch into the account's billing record, creating
	// it when missing.
	PatchBilling(ctx context.Context, accountID string, patch *Patch) error

	// FindBySubscriptionID returns the account holding subscriptionID, or
	// ErrAccountNotFound.
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (string, error)

	// FindByCustomerID returns the account holding customerID, or
	// ErrAccountNotFound.
	FindByCustomerID(ctx context.Context, customerID string) (string, error)
}

// ProviderClient reads and updates subscriptions at the payment provider,
// which is the source of truth for billing dates.
type ProviderClient interface {
	// Name returns the provider name (e.g. "stripe")
	Name() string

	RetrieveSubscription(ctx context.Context, subscriptionID string) (Object, error)
	ListSubscriptions(ctx context.Context, customerID string) ([]Object, error)

	// UpdateTrialEnd moves the trial end of a subscription and returns the
	// updated subscription.
	UpdateTrialEnd(ctx context.Context, subscriptionID string, trialEnd int64) (Object, error)
}

// CheckoutRequest describes a subscription checkout session.
type CheckoutRequest struct {
	AccountID  string
	CustomerID string
	SuccessURL string
	CancelURL  string
	TrialDays  int
	Metadata   map[string]string
}

// CheckoutSession is a created checkout session.
type CheckoutSession struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	CustomerID string `json:"customer_id"`
}

// CheckoutClient creates customers and hosted sessions at the provider.
type CheckoutClient interface {
	CreateCustomer(ctx context.Context, accountID string, metadata map[string]string) (string, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}
