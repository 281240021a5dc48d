package billing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Admin action names used in logs and metrics.
const (
	ActionGrantExempt  = "grant_exempt"
	ActionRevokeExempt = "revoke_exempt"
	ActionExtendTrial  = "extend_trial"
	ActionRefresh      = "refresh"
	ActionCheckout     = "checkout"
	ActionPortal       = "portal"
)

// GrantExempt marks an account exempt from the paywall. Provider-mirrored
// fields are left untouched.
func (e *Engine) GrantExempt(ctx context.Context, accountID string) (Resolution, error) {
	return e.setExempt(ctx, accountID, true, ActionGrantExempt)
}

// RevokeExempt clears the exemption of an account.
func (e *Engine) RevokeExempt(ctx context.Context, accountID string) (Resolution, error) {
	return e.setExempt(ctx, accountID, false, ActionRevokeExempt)
}

func (e *Engine) setExempt(ctx context.Context, accountID string, exempt bool, action string) (Resolution, error) {
	if err := validateAccountID(accountID); err != nil {
		return Resolution{}, err
	}
	rec, err := e.getRecord(ctx, accountID)
	if err != nil {
		e.metrics.RecordAdminAction(action, "error")
		return Resolution{}, err
	}
	return e.commit(ctx, accountID, rec, &Patch{Exempt: Bool(exempt)}, action)
}

// ExtendTrial moves the trial end to max(trial_end, current_period_end, now)
// plus days. The new date is pushed to the provider first; when the provider
// rejects it nothing is written locally.
func (e *Engine) ExtendTrial(ctx context.Context, accountID string, days int) (Resolution, error) {
	if err := validateAccountID(accountID); err != nil {
		return Resolution{}, err
	}
	if days <= 0 {
		return Resolution{}, ErrInvalidTrialDays
	}
	if e.config.Provider == nil {
		return Resolution{}, ErrProviderNotConfigured
	}

	rec, err := e.getRecord(ctx, accountID)
	if err != nil {
		e.metrics.RecordAdminAction(ActionExtendTrial, "error")
		return Resolution{}, err
	}
	if rec == nil || rec.SubscriptionID == "" {
		return Resolution{}, fmt.Errorf("extend trial for %s: %w", accountID, ErrNoSubscription)
	}

	now := e.now()
	trialEnd := ExtendedTrialEnd(rec, now, days)

	sub, err := e.callProvider(ctx, "/subscriptions/update", func(ctx context.Context) (Object, error) {
		return e.config.Provider.UpdateTrialEnd(ctx, rec.SubscriptionID, trialEnd)
	})
	if err != nil {
		e.metrics.RecordAdminAction(ActionExtendTrial, "error")
		e.logger.Error("Provider rejected trial extension",
			Field{"account_id", accountID},
			Field{"subscription_id", rec.SubscriptionID},
			Field{"error", err.Error()},
		)
		return Resolution{}, fmt.Errorf("extend trial for %s: %w", accountID, err)
	}

	patch := e.normalizer.SubscriptionPatch(sub, now)
	patch.TrialEnd = Int64(trialEnd)
	return e.commit(ctx, accountID, rec, patch, ActionExtendTrial)
}

// ExtendedTrialEnd computes max(trial_end, current_period_end, now) + days.
func ExtendedTrialEnd(rec *Record, now time.Time, days int) int64 {
	base := now.Unix()
	if rec != nil {
		if rec.TrialEnd != nil && *rec.TrialEnd > base {
			base = *rec.TrialEnd
		}
		if rec.CurrentPeriodEnd != nil && *rec.CurrentPeriodEnd > base {
			base = *rec.CurrentPeriodEnd
		}
	}
	return base + int64(days)*secondsPerDay
}

// RefreshFromProvider re-reads the account's subscription from the provider
// and mirrors it into the record. When the subscription id is unknown the
// customer's subscriptions are listed and the best one is selected.
func (e *Engine) RefreshFromProvider(ctx context.Context, accountID string) (Resolution, error) {
	if err := validateAccountID(accountID); err != nil {
		return Resolution{}, err
	}
	if e.config.Provider == nil {
		return Resolution{}, ErrProviderNotConfigured
	}

	rec, err := e.getRecord(ctx, accountID)
	if err != nil {
		e.metrics.RecordAdminAction(ActionRefresh, "error")
		return Resolution{}, err
	}

	var sub Object
	switch {
	case rec != nil && rec.SubscriptionID != "":
		sub, err = e.callProvider(ctx, "/subscriptions/retrieve", func(ctx context.Context) (Object, error) {
			return e.config.Provider.RetrieveSubscription(ctx, rec.SubscriptionID)
		})
	case rec != nil && rec.CustomerID != "":
		sub, err = e.callProvider(ctx, "/subscriptions/list", func(ctx context.Context) (Object, error) {
			subs, err := e.config.Provider.ListSubscriptions(ctx, rec.CustomerID)
			if err != nil {
				return nil, err
			}
			return SelectSubscription(subs), nil
		})
	default:
		return Resolution{}, fmt.Errorf("refresh %s: %w", accountID, ErrNoSubscription)
	}
	if err != nil {
		e.metrics.RecordAdminAction(ActionRefresh, "error")
		return Resolution{}, fmt.Errorf("refresh %s: %w", accountID, err)
	}
	if sub == nil {
		return Resolution{}, fmt.Errorf("refresh %s: %w", accountID, ErrNoSubscription)
	}

	patch := e.normalizer.SubscriptionPatch(sub, e.now())
	return e.commit(ctx, accountID, rec, patch, ActionRefresh)
}

// StartCheckout creates a subscription checkout session for the account,
// creating the provider customer first when the record has none. The
// customer and session are persisted so the completion webhook and later
// lookups find the account.
func (e *Engine) StartCheckout(ctx context.Context, accountID, instance string) (*CheckoutSession, error) {
	if err := validateAccountID(accountID); err != nil {
		return nil, err
	}
	if e.config.Checkout == nil {
		return nil, ErrProviderNotConfigured
	}

	rec, err := e.getRecord(ctx, accountID)
	if err != nil {
		return nil, err
	}

	key := e.config.AccountMetadataKey
	patch := &Patch{}
	customerID := ""
	if rec != nil {
		customerID = rec.CustomerID
	}
	if customerID == "" {
		customerID, err = e.config.Checkout.CreateCustomer(ctx, accountID, map[string]string{key: accountID})
		if err != nil {
			e.metrics.RecordAdminAction(ActionCheckout, "error")
			return nil, fmt.Errorf("create customer for %s: %w", accountID, err)
		}
		patch.CustomerID = String(customerID)
	}

	metadata := map[string]string{key: accountID}
	if instance != "" {
		metadata["instance"] = instance
	}
	session, err := e.config.Checkout.CreateCheckoutSession(ctx, CheckoutRequest{
		AccountID:  accountID,
		CustomerID: customerID,
		SuccessURL: e.returnURL("success", accountID),
		CancelURL:  e.returnURL("cancel", accountID),
		TrialDays:  e.config.TrialDaysDefault,
		Metadata:   metadata,
	})
	if err != nil {
		e.metrics.RecordAdminAction(ActionCheckout, "error")
		if patch.CustomerID != nil {
			// keep the new customer so a retry does not create another one
			if _, perr := e.persist(ctx, accountID, rec, patch, SourceCheckout); perr != nil {
				e.logger.Warn("Failed to persist provider customer",
					Field{"account_id", accountID}, Field{"error", perr.Error()})
			}
		}
		return nil, fmt.Errorf("create checkout session for %s: %w", accountID, err)
	}
	if session.CustomerID == "" {
		session.CustomerID = customerID
	}

	setID(&patch.LastCheckoutSessionID, session.ID)
	setID(&patch.LastCheckoutURL, session.URL)
	change, err := e.persist(ctx, accountID, rec, patch, SourceCheckout)
	if err != nil {
		return nil, err
	}
	e.notify(ctx, change)
	e.metrics.RecordAdminAction(ActionCheckout, "success")
	return session, nil
}

// PortalURL returns a customer portal session URL for the account.
func (e *Engine) PortalURL(ctx context.Context, accountID, returnURL string) (string, error) {
	if err := validateAccountID(accountID); err != nil {
		return "", err
	}
	if e.config.Checkout == nil {
		return "", ErrProviderNotConfigured
	}
	rec, err := e.getRecord(ctx, accountID)
	if err != nil {
		return "", err
	}
	if rec == nil || rec.CustomerID == "" {
		return "", fmt.Errorf("portal for %s: %w", accountID, ErrNoSubscription)
	}
	if returnURL == "" {
		returnURL = e.config.DomainURL
	}
	portal, err := e.config.Checkout.CreatePortalSession(ctx, rec.CustomerID, returnURL)
	if err != nil {
		e.metrics.RecordAdminAction(ActionPortal, "error")
		return "", fmt.Errorf("portal for %s: %w", accountID, err)
	}
	e.metrics.RecordAdminAction(ActionPortal, "success")
	return portal, nil
}

// commit persists an admin patch and returns the resulting resolution.
func (e *Engine) commit(ctx context.Context, accountID string, rec *Record, patch *Patch, action string) (Resolution, error) {
	source := SourceAdmin
	if action == ActionRefresh {
		source = SourceRefresh
	}
	change, err := e.persist(ctx, accountID, rec, patch, source)
	if err != nil {
		e.metrics.RecordAdminAction(action, "error")
		return Resolution{}, err
	}
	e.notify(ctx, change)
	e.metrics.RecordAdminAction(action, "success")
	e.logger.Info("Applied admin action",
		Field{"account_id", accountID}, Field{"action", action}, Field{"status", change.Current})
	return Resolution{Status: change.Current, Until: change.Until}, nil
}

// callProvider runs call through the circuit breaker when one is set. Call
// outcomes and latency are recorded by the provider binding; only calls
// refused by an open breaker are recorded here.
func (e *Engine) callProvider(ctx context.Context, endpoint string, call func(context.Context) (Object, error)) (Object, error) {
	if e.config.CircuitBreaker == nil {
		return call(ctx)
	}
	var obj Object
	err := e.config.CircuitBreaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		obj, err = call(ctx)
		return err
	})
	if errors.Is(err, ErrCircuitOpen) {
		e.metrics.RecordAPICall(e.config.Provider.Name(), endpoint, "circuit_open")
	}
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (e *Engine) returnURL(page, accountID string) string {
	base := strings.TrimRight(e.config.DomainURL, "/")
	return fmt.Sprintf("%s/billing/%s?account=%s", base, page, url.QueryEscape(accountID))
}
