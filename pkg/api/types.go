package api

import "github.com/mksouza37/listinha/pkg/billing"

// AdminRequest is the body of every admin endpoint. Fields not used by an
// action are ignored.
type AdminRequest struct {
	Account   string `json:"account"`
	Days      int    `json:"days,omitempty"`       // extend-trial
	Instance  string `json:"instance,omitempty"`   // checkout
	ReturnURL string `json:"return_url,omitempty"` // portal
}

// ActionResponse reports the status of an account after an admin action
type ActionResponse struct {
	AccountID string         `json:"account_id"`
	Action    string         `json:"action"`
	Status    billing.Status `json:"status"`
	Until     *int64         `json:"until,omitempty"`
	Entitled  bool           `json:"entitled"`
}

// CheckoutResponse carries a created checkout session
type CheckoutResponse struct {
	AccountID  string `json:"account_id"`
	SessionID  string `json:"session_id"`
	URL        string `json:"url"`
	CustomerID string `json:"customer_id"`
}

// PortalResponse carries a customer portal URL
type PortalResponse struct {
	AccountID string `json:"account_id"`
	URL       string `json:"url"`
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
}
