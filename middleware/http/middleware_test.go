package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mksouza37/listinha/pkg/billing"
	"github.com/mksouza37/listinha/storage/memory"
)

type failingGate struct{}

func (failingGate) RequireEntitled(context.Context, string) (bool, billing.Resolution, error) {
	return false, billing.Resolution{}, errors.New("connection refused")
}

// Test helper to create an engine with one active and one expired account
func setupEngine(t *testing.T, paywall bool) *billing.Engine {
	t.Helper()

	store := memory.New()
	future := time.Now().Add(24 * time.Hour).Unix()
	past := time.Now().Add(-24 * time.Hour).Unix()
	store.Put("active", &billing.Record{StripeStatus: "ACTIVE", CurrentPeriodEnd: &future})
	store.Put("expired", &billing.Record{StripeStatus: "PAST_DUE", CurrentPeriodEnd: &past, Canceled: true})

	cfg := billing.DefaultConfig()
	cfg.PaywallEnabled = paywall
	engine, err := billing.NewEngine(store, cfg)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return engine
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, ok := ResolutionFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(res.Status))
	})
}

func serve(handler http.Handler, accountID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/lists", http.NoBody)
	if accountID != "" {
		req.Header.Set("X-Account-ID", accountID)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_Entitled(t *testing.T) {
	mw := Middleware(Config{Gate: setupEngine(t, true), GetAccountID: FromHeader("X-Account-ID")})

	rec := serve(mw(okHandler()), "active")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != string(billing.StatusActive) {
		t.Errorf("Expected ACTIVE in context, got %s", rec.Body.String())
	}
	if got := rec.Header().Get(StatusHeader); got != string(billing.StatusActive) {
		t.Errorf("Expected %s header ACTIVE, got %q", StatusHeader, got)
	}
}

func TestMiddleware_PaymentRequired(t *testing.T) {
	mw := Middleware(Config{Gate: setupEngine(t, true), GetAccountID: FromHeader("X-Account-ID")})

	tests := []struct {
		account    string
		wantStatus billing.Status
	}{
		{"expired", billing.StatusCanceled},
		{"unknown", billing.StatusNone},
	}

	for _, tt := range tests {
		t.Run(tt.account, func(t *testing.T) {
			rec := serve(mw(okHandler()), tt.account)
			if rec.Code != http.StatusPaymentRequired {
				t.Fatalf("Expected status 402, got %d", rec.Code)
			}

			var body PaymentRequiredResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("Failed to decode body: %v", err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("Expected status %s, got %s", tt.wantStatus, body.Status)
			}
		})
	}
}

func TestMiddleware_PaywallDisabled(t *testing.T) {
	mw := Middleware(Config{Gate: setupEngine(t, false), GetAccountID: FromHeader("X-Account-ID")})

	rec := serve(mw(okHandler()), "expired")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200 with paywall disabled, got %d", rec.Code)
	}
}

func TestMiddleware_MissingAccount(t *testing.T) {
	mw := Middleware(Config{Gate: setupEngine(t, true), GetAccountID: FromHeader("X-Account-ID")})

	rec := serve(mw(okHandler()), "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rec.Code)
	}
}

func TestMiddleware_GateError(t *testing.T) {
	var handled error
	mw := Middleware(Config{
		Gate:         failingGate{},
		GetAccountID: FromHeader("X-Account-ID"),
		OnError: func(w http.ResponseWriter, _ *http.Request, err error) {
			handled = err
			w.WriteHeader(http.StatusServiceUnavailable)
		},
	})

	rec := serve(mw(okHandler()), "active")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected custom status 503, got %d", rec.Code)
	}
	if handled == nil {
		t.Error("Expected OnError to receive the gate error")
	}

	rec = serve(Middleware(Config{Gate: failingGate{}, GetAccountID: FromHeader("X-Account-ID")})(okHandler()), "active")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", rec.Code)
	}
}

func TestMiddleware_CustomPaymentRequired(t *testing.T) {
	mw := Middleware(Config{
		Gate:         setupEngine(t, true),
		GetAccountID: FromHeader("X-Account-ID"),
		OnPaymentRequired: func(w http.ResponseWriter, r *http.Request, _ billing.Resolution) {
			http.Redirect(w, r, "/billing/checkout", http.StatusSeeOther)
		},
	})

	rec := serve(mw(okHandler()), "expired")
	if rec.Code != http.StatusSeeOther {
		t.Errorf("Expected redirect, got %d", rec.Code)
	}
}

func TestMiddleware_FromContext(t *testing.T) {
	mw := Middleware(Config{Gate: setupEngine(t, true), GetAccountID: FromContext(AccountIDKey)})
	handler := mw(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/lists", http.NoBody)
	req = req.WithContext(WithAccountID(req.Context(), "active"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
}

func TestHandlerFunc(t *testing.T) {
	wrap := HandlerFunc(Config{Gate: setupEngine(t, true), GetAccountID: FromQuery("account")})
	handler := wrap(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/lists?account=active", http.NoBody))
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rec.Code)
	}
}

func TestMiddleware_PanicsWithoutGate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for missing Gate")
		}
	}()
	Middleware(Config{GetAccountID: FromHeader("X-Account-ID")})
}
