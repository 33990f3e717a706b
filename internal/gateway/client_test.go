package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/turfbook/ground-reservations/internal/domain"
	"github.com/turfbook/ground-reservations/internal/observability"
)

func TestFetchOrderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/orders/order123" {
			http.NotFound(w, r)
			return
		}
		if _, _, ok := r.BasicAuth(); !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"PAID","paid_at":"2025-08-19T18:05:00Z","amount":5310}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "key", "secret", observability.NewLogger())
	state, err := c.FetchOrderStatus(context.Background(), "order123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if state.Status != OrderPaid {
		t.Errorf("expected PAID, got %s", state.Status)
	}
	if state.PaidAt == nil {
		t.Error("expected paid_at parsed")
	}
	if len(state.Raw) == 0 {
		t.Error("raw payload must be retained for audit")
	}
}

func TestFetchOrderStatus_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "key", "secret", observability.NewLogger())
	if _, err := c.FetchOrderStatus(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFetchOrderStatus_ServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "key", "secret", observability.NewLogger())
	if _, err := c.FetchOrderStatus(context.Background(), "order123"); !errors.Is(err, domain.ErrGatewayUnavailable) {
		t.Fatalf("expected gateway unavailable, got %v", err)
	}
}

func TestCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/orders" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"order_id":"order123","session_id":"sess456"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "key", "secret", observability.NewLogger())
	orderID, sessionID, err := c.CreateOrder(context.Background(), 5310, "INR", "GB-TESTTEST")
	if err != nil {
		t.Fatal(err)
	}
	if orderID != "order123" || sessionID != "sess456" {
		t.Errorf("unexpected order %q session %q", orderID, sessionID)
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	body := []byte(`{"order_id":"order123","status":"PAID"}`)
	mac := hmac.New(sha256.New, []byte("whsecret"))
	mac.Write(body)
	good := hex.EncodeToString(mac.Sum(nil))

	if !VerifyWebhookSignature(body, good, "whsecret") {
		t.Error("valid signature rejected")
	}
	if VerifyWebhookSignature(body, good, "othersecret") {
		t.Error("signature verified with the wrong secret")
	}
	if VerifyWebhookSignature([]byte(`tampered`), good, "whsecret") {
		t.Error("signature verified over a tampered body")
	}
	if VerifyWebhookSignature(body, "", "whsecret") {
		t.Error("empty signature accepted")
	}
}
