package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthquiz/quiz-api/config"
)

func TestClient_VerifySignature(t *testing.T) {
	t.Parallel()

	client := NewClient(config.PaystackConfig{SecretKey: "sk_test_secret"})
	body := []byte(`{"event":"charge.success"}`)

	mac := hmac.New(sha512.New, []byte("sk_test_secret"))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, client.VerifySignature(sig, body))
	assert.False(t, client.VerifySignature(sig, []byte(`{"event":"tampered"}`)))
	assert.False(t, client.VerifySignature("deadbeef", body))
}

func TestClient_VerifyTransaction(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/ref-123", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": true,
			"message": "Verification successful",
			"data": {
				"status": "success",
				"amount": 500000,
				"currency": "NGN",
				"paid_at": "2026-01-15T12:00:00.000Z",
				"customer": {"email": "alice@example.com"}
			}
		}`))
	}))
	defer srv.Close()

	client := NewClient(config.PaystackConfig{SecretKey: "sk_test_secret", BaseURL: srv.URL})

	data, err := client.VerifyTransaction(context.Background(), "ref-123")
	require.NoError(t, err)
	assert.Equal(t, "success", data.Status)
	assert.Equal(t, int64(500000), data.Amount)
	assert.Equal(t, "NGN", data.Currency)
	assert.Equal(t, "alice@example.com", data.Customer.Email)
}

func TestClient_VerifyTransaction_APIFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(config.PaystackConfig{SecretKey: "sk_test_secret", BaseURL: srv.URL})

	_, err := client.VerifyTransaction(context.Background(), "missing-ref")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
}
