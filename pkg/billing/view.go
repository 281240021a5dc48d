package billing

import "context"

// View is the derived billing view of an account: the stored record plus
// its resolution at the time of the call.
type View struct {
	AccountID string  `json:"account_id"`
	Status    Status  `json:"status"`
	Until     *int64  `json:"until,omitempty"`
	Entitled  bool    `json:"entitled"`
	Record    *Record `json:"record,omitempty"`

	// ActiveUndated flags an ACTIVE account whose period end is unknown.
	ActiveUndated bool `json:"active_undated,omitempty"`
}

// Describe returns the derived billing view of an account.
func (e *Engine) Describe(ctx context.Context, accountID string) (*View, error) {
	if err := validateAccountID(accountID); err != nil {
		return nil, err
	}
	rec, err := e.getRecord(ctx, accountID)
	if err != nil {
		return nil, err
	}
	res := e.resolve(rec)
	return &View{
		AccountID:     accountID,
		Status:        res.Status,
		Until:         res.Until,
		Entitled:      res.Entitled(),
		Record:        rec,
		ActiveUndated: res.Status == StatusActive && res.Until == nil,
	}, nil
}
