package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestVerifySignatureExactDigest(t *testing.T) {
	const known = "a23a35a9cc17304682813499f610ed21e20e5e98e04bc2fbe9a198a68b058546" // HMAC-SHA256("s", "o1|p1")
	sig := Sign("s", "o1", "p1")
	require.Len(t, sig, 64)
	assert.Equal(t, known, sig)
	assert.True(t, VerifySignature("s", "o1", "p1", known))
	assert.False(t, VerifySignature("s", "p1", "o1", known), "order id comes first")
	assert.Equal(t, strings.ToLower(sig), sig, "hex digest is lower case")
	assert.True(t, VerifySignature("s", "o1", "p1", sig))

	assert.False(t, VerifySignature("s", "o1", "p1", strings.ToUpper(sig)), "case must match")
	assert.False(t, VerifySignature("s", "o1", "p1", ""))
	assert.False(t, VerifySignature("s", "o1", "p2", sig))
	assert.False(t, VerifySignature("t", "o1", "p1", sig))
	assert.False(t, VerifySignature("s", "o1", "p1", sig+"0"))
}

func TestVerifySignatureSingleCharAlteration(t *testing.T) {
	sig := Sign("s", "o1", "p1")
	rapid.Check(t, func(t *rapid.T) {
		i := rapid.IntRange(0, len(sig)-1).Draw(t, "index")
		c := rapid.SampledFrom([]byte("0123456789abcdefABCDEF")).Draw(t, "char")
		if sig[i] == c {
			return
		}
		altered := sig[:i] + string(c) + sig[i+1:]
		if VerifySignature("s", "o1", "p1", altered) {
			t.Fatalf("altered signature %s verified", altered)
		}
	})
}

func TestCreateOrder(t *testing.T) {
	var got createOrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_key", user)
		assert.Equal(t, "rzp_secret", pass)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_ABC","amount":105000,"currency":"INR","receipt":"att-1","status":"created"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "rzp_key", "rzp_secret", srv.Client())
	out, err := c.CreateOrder(context.Background(), 105000, "INR", "att-1")
	require.NoError(t, err)
	assert.Equal(t, ExternalOrder{ID: "order_ABC", AmountMinor: 105000, Currency: "INR", Receipt: "att-1", Status: "created"}, out)
	assert.Equal(t, createOrderRequest{Amount: 105000, Currency: "INR", Receipt: "att-1"}, got)
}

func TestCreateOrderGatewayErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "s", srv.Client())
	_, err := c.CreateOrder(context.Background(), 100, "INR", "r")
	require.ErrorIs(t, err, ErrGateway)
	assert.Contains(t, err.Error(), "amount too small")

	_, err = c.CreateOrder(context.Background(), 0, "INR", "r")
	assert.ErrorIs(t, err, ErrGateway)
}

func TestCreateOrderMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"amount":100}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k", "s", srv.Client()).CreateOrder(context.Background(), 100, "INR", "r")
	assert.ErrorIs(t, err, ErrGateway)
}

func TestCreateOrderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "k", "s", nil).CreateOrder(context.Background(), 100, "INR", "r")
	assert.ErrorIs(t, err, ErrGateway)
}
