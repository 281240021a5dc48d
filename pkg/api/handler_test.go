package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mksouza37/listinha/pkg/billing"
	"github.com/mksouza37/listinha/storage/memory"
)

const (
	testAccount = "+5511988887777"
	testSubID   = "sub_123"
	testCustID  = "cus_123"
)

type stubProvider struct {
	failing bool
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) RetrieveSubscription(_ context.Context, id string) (billing.Object, error) {
	if p.failing {
		return nil, fmt.Errorf("%w: connection reset", billing.ErrProviderAPIError)
	}
	end := time.Now().Add(30 * 24 * time.Hour).Unix()
	return billing.Fields{"id": id, "status": "active", "customer": testCustID, "current_period_end": end}, nil
}

func (p *stubProvider) ListSubscriptions(context.Context, string) ([]billing.Object, error) {
	return nil, nil
}

func (p *stubProvider) UpdateTrialEnd(_ context.Context, id string, trialEnd int64) (billing.Object, error) {
	return billing.Fields{"id": id, "status": "trialing", "trial_end": trialEnd, "customer": testCustID}, nil
}

type stubCheckout struct{}

func (stubCheckout) CreateCustomer(context.Context, string, map[string]string) (string, error) {
	return "cus_new", nil
}

func (stubCheckout) CreateCheckoutSession(_ context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	return &billing.CheckoutSession{ID: "cs_1", URL: "https://checkout.example/cs_1", CustomerID: req.CustomerID}, nil
}

func (stubCheckout) CreatePortalSession(_ context.Context, customerID, _ string) (string, error) {
	return "https://portal.example/" + customerID, nil
}

func newTestHandler(t *testing.T, withProvider bool) (*Handler, *memory.Storage) {
	t.Helper()
	store := memory.New()
	cfg := billing.DefaultConfig()
	cfg.DomainURL = "https://listinha.example"
	if withProvider {
		cfg.Provider = &stubProvider{}
		cfg.Checkout = stubCheckout{}
	}
	engine, err := billing.NewEngine(store, cfg)
	require.NoError(t, err)

	h, err := NewHandler(Config{Engine: engine})
	require.NoError(t, err)
	return h, store
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/admin/billing", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func TestNewHandler_RequiresEngine(t *testing.T) {
	_, err := NewHandler(Config{})
	assert.Error(t, err)
}

func TestHandler_GetStatus(t *testing.T) {
	h, store := newTestHandler(t, false)
	end := time.Now().Add(10 * 24 * time.Hour).Unix()
	store.Put(testAccount, &billing.Record{
		StripeStatus:     "ACTIVE",
		SubscriptionID:   testSubID,
		CurrentPeriodEnd: &end,
	})

	tests := []struct {
		name         string
		url          string
		wantCode     int
		wantStatus   billing.Status
		wantEntitled bool
	}{
		{"active account", "/billing/status?account=%2B5511988887777", http.StatusOK, billing.StatusActive, true},
		{"unknown account", "/billing/status?account=%2B5511000000000", http.StatusOK, billing.StatusNone, false},
		{"missing account", "/billing/status", http.StatusBadRequest, "", false},
		{"account too long", "/billing/status?account=" + strings.Repeat("9", 300), http.StatusBadRequest, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.GetStatus(w, httptest.NewRequest(http.MethodGet, tt.url, http.NoBody))
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantCode != http.StatusOK {
				return
			}

			var view billing.View
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
			assert.Equal(t, tt.wantStatus, view.Status)
			assert.Equal(t, tt.wantEntitled, view.Entitled)
		})
	}
}

func TestHandler_GetStatusReturnsRecord(t *testing.T) {
	h, store := newTestHandler(t, false)
	store.Put(testAccount, &billing.Record{StripeStatus: "ACTIVE", SubscriptionID: testSubID})

	w := httptest.NewRecorder()
	h.GetStatus(w, httptest.NewRequest(http.MethodGet, "/billing/status?account=%2B5511988887777", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)

	var view billing.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.NotNil(t, view.Record)
	assert.Equal(t, testSubID, view.Record.SubscriptionID)
	assert.True(t, view.ActiveUndated)
	assert.Nil(t, view.Until)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestHandler_GetStatusFromHeader(t *testing.T) {
	engine, err := billing.NewEngine(memory.New(), billing.DefaultConfig())
	require.NoError(t, err)
	h, err := NewHandler(Config{Engine: engine, GetAccountID: FromHeader("X-Account-ID")})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/billing/status", http.NoBody)
	req.Header.Set("X-Account-ID", testAccount)
	w := httptest.NewRecorder()
	h.GetStatus(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"NONE"`)
}

func TestHandler_ExemptRoundTrip(t *testing.T) {
	h, store := newTestHandler(t, false)
	body := `{"account":"` + testAccount + `"}`

	w := post(h.GrantExempt, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ActionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, billing.ActionGrantExempt, resp.Action)
	assert.Equal(t, billing.StatusExempt, resp.Status)
	assert.True(t, resp.Entitled)

	rec, err := store.GetBilling(context.Background(), testAccount)
	require.NoError(t, err)
	assert.True(t, rec.Exempt)

	w = post(h.RevokeExempt, body)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	// the record now exists but carries no subscription
	assert.Equal(t, billing.StatusExpired, resp.Status)
	assert.False(t, resp.Entitled)
}

func TestHandler_AccountFromQuery(t *testing.T) {
	h, _ := newTestHandler(t, false)

	req := httptest.NewRequest(http.MethodPost, "/admin/billing/grant-exempt?account=%2B5511988887777", http.NoBody)
	w := httptest.NewRecorder()
	h.GrantExempt(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), testAccount)
}

func TestHandler_ExtendTrial(t *testing.T) {
	h, store := newTestHandler(t, true)
	store.Put(testAccount, &billing.Record{StripeStatus: "TRIALING", SubscriptionID: testSubID, CustomerID: testCustID})

	w := post(h.ExtendTrial, `{"account":"`+testAccount+`","days":7}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ActionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, billing.StatusTrial, resp.Status)
	require.NotNil(t, resp.Until)
	assert.InDelta(t, time.Now().Add(7*24*time.Hour).Unix(), *resp.Until, 5)
}

func TestHandler_Refresh(t *testing.T) {
	h, store := newTestHandler(t, true)
	store.Put(testAccount, &billing.Record{SubscriptionID: testSubID})

	w := post(h.Refresh, `{"account":"`+testAccount+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"ACTIVE"`)

	rec, err := store.GetBilling(context.Background(), testAccount)
	require.NoError(t, err)
	assert.Equal(t, testCustID, rec.CustomerID)
}

func TestHandler_Checkout(t *testing.T) {
	h, store := newTestHandler(t, true)

	w := post(h.Checkout, `{"account":"`+testAccount+`","instance":"main"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp CheckoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "cs_1", resp.SessionID)
	assert.Equal(t, "cus_new", resp.CustomerID)

	rec, err := store.GetBilling(context.Background(), testAccount)
	require.NoError(t, err)
	assert.Equal(t, "cus_new", rec.CustomerID)
}

func TestHandler_Portal(t *testing.T) {
	h, store := newTestHandler(t, true)
	store.Put(testAccount, &billing.Record{CustomerID: testCustID})

	w := post(h.Portal, `{"account":"`+testAccount+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp PortalResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "https://portal.example/"+testCustID, resp.URL)
}

func TestHandler_AdminErrors(t *testing.T) {
	failing, store := newTestHandler(t, true)
	store.Put(testAccount, &billing.Record{SubscriptionID: testSubID})
	failing.config.Engine = mustEngine(t, store, &stubProvider{failing: true})

	noProvider, _ := newTestHandler(t, false)
	withProvider, _ := newTestHandler(t, true)
	account := `{"account":"` + testAccount + `"`

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		body     string
		wantCode int
	}{
		{"missing account", withProvider.GrantExempt, `{}`, http.StatusBadRequest},
		{"invalid json", withProvider.GrantExempt, `{"account":`, http.StatusBadRequest},
		{"zero trial days", withProvider.ExtendTrial, account + `,"days":0}`, http.StatusBadRequest},
		{"trial without provider", noProvider.ExtendTrial, account + `,"days":3}`, http.StatusServiceUnavailable},
		{"trial without subscription", withProvider.ExtendTrial, account + `,"days":3}`, http.StatusNotFound},
		{"refresh without subscription", withProvider.Refresh, account + `}`, http.StatusNotFound},
		{"refresh provider failure", failing.Refresh, account + `}`, http.StatusBadGateway},
		{"checkout without provider", noProvider.Checkout, account + `}`, http.StatusServiceUnavailable},
		{"portal without customer", withProvider.Portal, account + `}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(tt.handler, tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestHandler_AdminRequiresPost(t *testing.T) {
	h, _ := newTestHandler(t, false)

	w := httptest.NewRecorder()
	h.GrantExempt(w, httptest.NewRequest(http.MethodGet, "/admin/billing/grant-exempt", http.NoBody))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandler_PayloadTooLarge(t *testing.T) {
	engine, err := billing.NewEngine(memory.New(), billing.DefaultConfig())
	require.NoError(t, err)
	h, err := NewHandler(Config{Engine: engine, MaxBodyBytes: 8})
	require.NoError(t, err)

	w := post(h.GrantExempt, `{"account":"`+testAccount+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestHandler_CustomOnError(t *testing.T) {
	engine, err := billing.NewEngine(memory.New(), billing.DefaultConfig())
	require.NoError(t, err)

	var got error
	h, err := NewHandler(Config{
		Engine: engine,
		OnError: func(w http.ResponseWriter, _ *http.Request, err error) {
			got = err
			w.WriteHeader(http.StatusTeapot)
		},
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	h.GetStatus(w, httptest.NewRequest(http.MethodGet, "/billing/status", http.NoBody))
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.ErrorIs(t, got, billing.ErrInvalidAccountID)
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{billing.ErrInvalidAccountID, http.StatusBadRequest},
		{billing.ErrInvalidTrialDays, http.StatusBadRequest},
		{fmt.Errorf("refresh: %w", billing.ErrNoSubscription), http.StatusNotFound},
		{billing.ErrProviderNotConfigured, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: timeout", billing.ErrProviderAPIError), http.StatusBadGateway},
		{billing.ErrStoreUnavailable, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func mustEngine(t *testing.T, store billing.Store, provider billing.ProviderClient) *billing.Engine {
	t.Helper()
	cfg := billing.DefaultConfig()
	cfg.Provider = provider
	engine, err := billing.NewEngine(store, cfg)
	require.NoError(t, err)
	return engine
}
