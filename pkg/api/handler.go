package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mksouza37/listinha/pkg/billing"
)

const (
	defaultMaxBodyBytes = 64 << 10
	maxAccountIDLen     = 255
)

// Handler provides HTTP endpoints for billing inspection and admin overrides
type Handler struct {
	config Config
}

// GetStatus returns the derived billing view of an account
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	accountID := strings.TrimSpace(h.config.GetAccountID(r))
	if accountID == "" {
		h.handleError(w, r, fmt.Errorf("%w: account is required", billing.ErrInvalidAccountID))
		return
	}
	if len(accountID) > maxAccountIDLen {
		h.handleError(w, r, fmt.Errorf("%w: account is too long", billing.ErrInvalidAccountID))
		return
	}

	view, err := h.config.Engine.Describe(r.Context(), accountID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GrantExempt exempts an account from the paywall
func (h *Handler) GrantExempt(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	res, err := h.config.Engine.GrantExempt(r.Context(), req.Account)
	h.respondAction(w, r, req.Account, billing.ActionGrantExempt, res, err)
}

// RevokeExempt clears the exemption of an account
func (h *Handler) RevokeExempt(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	res, err := h.config.Engine.RevokeExempt(r.Context(), req.Account)
	h.respondAction(w, r, req.Account, billing.ActionRevokeExempt, res, err)
}

// ExtendTrial pushes the trial end of an account's subscription by Days
func (h *Handler) ExtendTrial(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	res, err := h.config.Engine.ExtendTrial(r.Context(), req.Account, req.Days)
	h.respondAction(w, r, req.Account, billing.ActionExtendTrial, res, err)
}

// Refresh re-reads an account's subscription from the provider
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	res, err := h.config.Engine.RefreshFromProvider(r.Context(), req.Account)
	h.respondAction(w, r, req.Account, billing.ActionRefresh, res, err)
}

// Checkout starts a subscription checkout session for an account
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	session, err := h.config.Engine.StartCheckout(r.Context(), req.Account, req.Instance)
	if err != nil {
		h.logFailure(req.Account, billing.ActionCheckout, err)
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CheckoutResponse{
		AccountID:  req.Account,
		SessionID:  session.ID,
		URL:        session.URL,
		CustomerID: session.CustomerID,
	})
}

// Portal returns a customer portal URL for an account
func (h *Handler) Portal(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	portal, err := h.config.Engine.PortalURL(r.Context(), req.Account, req.ReturnURL)
	if err != nil {
		h.logFailure(req.Account, billing.ActionPortal, err)
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PortalResponse{AccountID: req.Account, URL: portal})
}

// decode reads an AdminRequest from the body. The account may also be given
// as the "account" query parameter.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (AdminRequest, bool) {
	var req AdminRequest
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return req, false
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "payload too large"})
		} else {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "failed to read body"})
		}
		return req, false
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
			return req, false
		}
	}
	if req.Account == "" {
		req.Account = r.URL.Query().Get("account")
	}
	req.Account = strings.TrimSpace(req.Account)
	return req, true
}

func (h *Handler) respondAction(w http.ResponseWriter, r *http.Request, accountID, action string,
	res billing.Resolution, err error,
) {
	if err != nil {
		h.logFailure(accountID, action, err)
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ActionResponse{
		AccountID: accountID,
		Action:    action,
		Status:    res.Status,
		Until:     res.Until,
		Entitled:  res.Entitled(),
	})
}

func (h *Handler) logFailure(accountID, action string, err error) {
	h.config.Logger.Warn("Admin action failed",
		billing.Field{Key: "account_id", Value: accountID},
		billing.Field{Key: "action", Value: action},
		billing.Field{Key: "error", Value: err.Error()},
	)
}

// StatusCode maps billing errors to HTTP status codes
func StatusCode(err error) int {
	switch {
	case errors.Is(err, billing.ErrInvalidAccountID), errors.Is(err, billing.ErrInvalidTrialDays):
		return http.StatusBadRequest
	case errors.Is(err, billing.ErrNoSubscription), errors.Is(err, billing.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, billing.ErrProviderNotConfigured), errors.Is(err, billing.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, billing.ErrProviderAPIError):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleError handles errors with appropriate HTTP status codes
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if h.config.OnError != nil {
		h.config.OnError(w, r, err)
		return
	}

	code := StatusCode(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		// store errors may carry backend details
		msg = "internal error"
	}
	writeJSON(w, code, ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// response already started
		_ = err
	}
}
