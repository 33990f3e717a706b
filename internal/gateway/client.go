package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/turfbook/ground-reservations/internal/domain"
	"github.com/turfbook/ground-reservations/internal/observability"
)

// OrderStatus is the gateway's order-status vocabulary. The booking core
// only acts on the terminal values; anything else leaves the booking alone.
type OrderStatus string

const (
	OrderPaid      OrderStatus = "PAID"
	OrderFailed    OrderStatus = "FAILED"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderPending   OrderStatus = "PENDING"
	OrderCreated   OrderStatus = "CREATED"
)

// OrderState is the authoritative answer from the gateway for one order.
type OrderState struct {
	Status OrderStatus
	PaidAt *time.Time
	Raw    json.RawMessage
}

// Client is the gateway capability consumed by the reconciler: create an
// order, fetch its authoritative status.
type Client interface {
	CreateOrder(ctx context.Context, amount float64, currency, receipt string) (orderID, sessionID string, err error)
	FetchOrderStatus(ctx context.Context, orderID string) (OrderState, error)
}

type HTTPClient struct {
	baseURL string
	keyID   string
	secret  string
	http    *http.Client
	logger  observability.Logger
}

func NewHTTPClient(baseURL, keyID, secret string, logger observability.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		keyID:   keyID,
		secret:  secret,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

func (c *HTTPClient) CreateOrder(ctx context.Context, amount float64, currency, receipt string) (string, string, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.SetBasicAuth(c.keyID, c.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", errors.Wrap(domain.ErrGatewayUnavailable, err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return "", "", errors.Wrap(domain.ErrGatewayUnavailable, fmt.Sprintf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", "", fmt.Errorf("gateway create order: status %d", resp.StatusCode)
	}

	var out struct {
		OrderID   string `json:"order_id"`
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", err
	}
	return out.OrderID, out.SessionID, nil
}

func (c *HTTPClient) FetchOrderStatus(ctx context.Context, orderID string) (OrderState, error) {
	start := time.Now()
	defer func() {
		observability.GatewayRequestDuration.Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/orders/"+orderID, nil)
	if err != nil {
		return OrderState{}, err
	}
	req.SetBasicAuth(c.keyID, c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return OrderState{}, errors.Wrap(domain.ErrGatewayUnavailable, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return OrderState{}, errors.Wrap(domain.ErrGatewayUnavailable, err.Error())
	}
	if resp.StatusCode == http.StatusNotFound {
		return OrderState{}, domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return OrderState{}, errors.Wrap(domain.ErrGatewayUnavailable, fmt.Sprintf("status %d", resp.StatusCode))
	}

	var out struct {
		Status OrderStatus `json:"status"`
		PaidAt *time.Time  `json:"paid_at"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return OrderState{}, err
	}
	return OrderState{Status: out.Status, PaidAt: out.PaidAt, Raw: raw}, nil
}

// VerifyWebhookSignature checks the gateway's HMAC-SHA256 signature over the
// raw webhook body. A verified webhook is still only a trigger: the
// reconciler re-fetches the order status before acting.
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
