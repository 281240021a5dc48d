package billing

import "errors"

var (
	// ErrRecordNotFound is returned by a Store when an account has no billing record
	ErrRecordNotFound = errors.New("billing record not found")

	// ErrAccountNotFound is returned by reverse lookups that match no account
	ErrAccountNotFound = errors.New("account not found")

	// ErrNoSubscription is returned when an operation needs a provider
	// subscription or customer the account does not have
	ErrNoSubscription = errors.New("no subscription found for account")

	// ErrProviderNotConfigured is returned when a provider is not properly configured
	ErrProviderNotConfigured = errors.New("billing provider not configured")

	// ErrProviderAPIError is returned when the provider's API returns an error
	ErrProviderAPIError = errors.New("billing provider API error")

	// ErrInvalidWebhookSignature is returned when webhook signature validation fails
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")

	// ErrInvalidWebhookPayload is returned when webhook payload cannot be parsed
	ErrInvalidWebhookPayload = errors.New("invalid webhook payload")

	// ErrInvalidAccountID is returned for an empty account identifier
	ErrInvalidAccountID = errors.New("invalid account id")

	// ErrInvalidTrialDays is returned when a trial extension is not positive
	ErrInvalidTrialDays = errors.New("trial extension must be a positive number of days")

	// ErrCircuitOpen is returned while the provider circuit breaker is open
	ErrCircuitOpen = errors.New("provider circuit breaker is open")

	// ErrStoreUnavailable wraps backend failures of an account store
	ErrStoreUnavailable = errors.New("account store unavailable")
)
