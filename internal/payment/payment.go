// Package payment talks to the payment gateway: minting payment orders and checking the
// signature the gateway attaches to a completed payment.
package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrGateway wraps every failure to mint a payment order.
var ErrGateway = errors.New("payment gateway error")

// ExternalOrder is a payment order minted by the gateway.
type ExternalOrder struct {
	ID          string `json:"id"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt,omitempty"`
	Status      string `json:"status,omitempty"`
}

// Gateway mints payment orders.
type Gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (ExternalOrder, error)
}

// Client is a Gateway speaking the Razorpay orders API.
type Client struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
}

// NewClient returns a gateway client. A nil httpClient gets a 10s timeout client.
func NewClient(baseURL, keyID, keySecret string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		keyID:      keyID,
		keySecret:  keySecret,
		httpClient: httpClient,
	}
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
}

type gatewayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder mints an order for amountMinor (paise for INR).
func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (ExternalOrder, error) {
	if amountMinor <= 0 {
		return ExternalOrder{}, fmt.Errorf("%w: amount must be positive, got %d", ErrGateway, amountMinor)
	}
	body, err := json.Marshal(createOrderRequest{Amount: amountMinor, Currency: currency, Receipt: receipt})
	if err != nil {
		return ExternalOrder{}, fmt.Errorf("marshal order request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return ExternalOrder{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ExternalOrder{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ExternalOrder{}, fmt.Errorf("%w: read response: %v", ErrGateway, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ge gatewayError
		if json.Unmarshal(raw, &ge) == nil && ge.Error.Description != "" {
			return ExternalOrder{}, fmt.Errorf("%w: %d %s: %s", ErrGateway, resp.StatusCode, ge.Error.Code, ge.Error.Description)
		}
		return ExternalOrder{}, fmt.Errorf("%w: status %d", ErrGateway, resp.StatusCode)
	}

	var out ExternalOrder
	if err := json.Unmarshal(raw, &out); err != nil {
		return ExternalOrder{}, fmt.Errorf("%w: decode response: %v", ErrGateway, err)
	}
	if out.ID == "" {
		return ExternalOrder{}, fmt.Errorf("%w: response without order id", ErrGateway)
	}
	return out, nil
}

// Sign returns the hex HMAC-SHA256 of "orderID|paymentID" keyed by secret.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature is exactly Sign(secret, orderID, paymentID).
// The comparison is byte for byte: an upper-case digest does not match.
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	expected := Sign(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
