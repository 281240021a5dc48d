package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Outcome of handling one provider event.
type Outcome string

const (
	OutcomeApplied    Outcome = "applied"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeUnresolved Outcome = "unresolved"
	OutcomeIgnored    Outcome = "ignored"
)

// EventResult reports what HandleEvent did with an event.
type EventResult struct {
	Outcome   Outcome
	AccountID string
	Strategy  string // account resolution strategy that matched
	Previous  Status
	Current   Status
}

// Engine reconciles provider events and admin actions into billing records
// and answers status queries. It keeps no mutable state of its own; every
// call reads and writes through the Store.
type Engine struct {
	store      Store
	config     Config
	normalizer *Normalizer
	accounts   *AccountResolver
	logger     Logger
	metrics    Metrics
	now        func() time.Time
}

// NewEngine creates an engine over store.
func NewEngine(store Store, config Config) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrStoreUnavailable)
	}
	config.setDefaults()

	return &Engine{
		store:      store,
		config:     config,
		normalizer: NewNormalizer(config.AccountMetadataKey, config.GraceDaysDefault),
		accounts:   NewAccountResolver(store),
		logger:     config.Logger,
		metrics:    config.Metrics,
		now:        config.Clock,
	}, nil
}

// Config returns the engine configuration with defaults applied.
func (e *Engine) Config() Config {
	return e.config
}

// Normalizer returns the event normalizer used by the engine.
func (e *Engine) Normalizer() *Normalizer {
	return e.normalizer
}

// HandleEvent normalizes ev, resolves its account, applies the idempotency
// guard and persists the patch. Unknown event types and events that match no
// account are dropped without error; store failures are returned so the
// provider redelivers.
func (e *Engine) HandleEvent(ctx context.Context, ev Event) (*EventResult, error) {
	patch := e.normalizer.Normalize(ev)
	if patch.IsEmpty() {
		e.logger.Debug("Ignoring billing event",
			Field{"event_id", ev.ID}, Field{"event_type", ev.Type})
		return &EventResult{Outcome: OutcomeIgnored}, nil
	}

	accountID, strategy, err := e.accounts.Resolve(ctx, patch, ev)
	if errors.Is(err, ErrAccountNotFound) {
		e.logger.Warn("Dropping billing event with no matching account",
			Field{"event_id", ev.ID},
			Field{"event_type", ev.Type},
			Field{"subscription_id", derefString(patch.SubscriptionID)},
			Field{"customer_id", derefString(patch.CustomerID)},
		)
		return &EventResult{Outcome: OutcomeUnresolved}, nil
	}
	if err != nil {
		return nil, err
	}

	rec, err := e.getRecord(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if e.config.WebhookIdempotency && !ShouldApply(rec, ev.ID) {
		e.logger.Info("Skipping duplicate billing event",
			Field{"event_id", ev.ID}, Field{"event_type", ev.Type}, Field{"account_id", accountID})
		return &EventResult{Outcome: OutcomeDuplicate, AccountID: accountID, Strategy: strategy}, nil
	}

	if ev.ID != "" {
		patch.LastEventID = String(ev.ID)
	}
	change, err := e.persist(ctx, accountID, rec, patch, SourceWebhook)
	if err != nil {
		return nil, err
	}
	change.EventID, change.EventType = ev.ID, ev.Type
	e.notify(ctx, change)

	e.logger.Debug("Applied billing event",
		Field{"event_id", ev.ID},
		Field{"event_type", ev.Type},
		Field{"account_id", accountID},
		Field{"strategy", strategy},
		Field{"status", change.Current},
	)

	return &EventResult{
		Outcome:   OutcomeApplied,
		AccountID: accountID,
		Strategy:  strategy,
		Previous:  change.Previous,
		Current:   change.Current,
	}, nil
}

// Status resolves the current status of an account. An account without a
// billing record is NONE.
func (e *Engine) Status(ctx context.Context, accountID string) (Resolution, error) {
	if err := validateAccountID(accountID); err != nil {
		return Resolution{}, err
	}
	rec, err := e.getRecord(ctx, accountID)
	if err != nil {
		return Resolution{}, err
	}
	res := e.resolve(rec)
	e.metrics.RecordStatusCheck(res.Status, res.Entitled())
	return res, nil
}

// RequireEntitled reports whether an account may use paywalled features.
// With the paywall disabled every account passes.
func (e *Engine) RequireEntitled(ctx context.Context, accountID string) (bool, Resolution, error) {
	res, err := e.Status(ctx, accountID)
	if !e.config.PaywallEnabled {
		if err != nil {
			e.logger.Warn("Billing status unavailable, paywall disabled",
				Field{"account_id", accountID}, Field{"error", err.Error()})
		}
		return true, res, nil
	}
	if err != nil {
		return false, Resolution{}, err
	}
	return res.Entitled(), res, nil
}

// persist writes patch, stamped with last_updated, and returns the status
// change it causes.
func (e *Engine) persist(ctx context.Context, accountID string, rec *Record, patch *Patch, source string) (StatusChange, error) {
	now := e.now()
	patch.LastUpdated = Int64(now.Unix())

	if err := e.store.PatchBilling(ctx, accountID, patch); err != nil {
		e.logger.Error("Failed to persist billing patch",
			Field{"account_id", accountID}, Field{"source", source}, Field{"error", err.Error()})
		return StatusChange{}, fmt.Errorf("patch billing %s: %w", accountID, err)
	}

	before, _ := Resolve(rec, now)
	after, until := Resolve(patch.Apply(rec), now)
	return StatusChange{
		AccountID: accountID,
		Previous:  before,
		Current:   after,
		Until:     until,
		Source:    source,
		At:        now,
	}, nil
}

func (e *Engine) notify(ctx context.Context, change StatusChange) {
	if change.Previous == change.Current {
		return
	}
	e.metrics.RecordStatusChange(change.Previous, change.Current)
	e.logger.Info("Billing status changed",
		Field{"account_id", change.AccountID},
		Field{"from", change.Previous},
		Field{"to", change.Current},
		Field{"source", change.Source},
	)
	if e.config.OnStatusChange != nil {
		e.config.OnStatusChange(ctx, change)
	}
}

func (e *Engine) resolve(rec *Record) Resolution {
	res := ResolveAt(rec, e.now())
	if res.Status == StatusActive && res.Until == nil {
		e.metrics.RecordActiveUndated()
	}
	return res
}

// getRecord returns the account's record, or nil when it has none.
func (e *Engine) getRecord(ctx context.Context, accountID string) (*Record, error) {
	rec, err := e.store.GetBilling(ctx, accountID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get billing %s: %w", accountID, err)
	}
	return rec, nil
}

func validateAccountID(accountID string) error {
	if strings.TrimSpace(accountID) == "" {
		return ErrInvalidAccountID
	}
	return nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
