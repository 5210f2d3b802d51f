// Package paystack is a minimal Paystack API client covering webhook
// signature checks and transaction verification.
package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/healthquiz/quiz-api/config"
)

// VerifyData is the subset of a Paystack transaction we act on.
type VerifyData struct {
	Status   string   `json:"status"`
	Amount   int64    `json:"amount"`
	Currency string   `json:"currency"`
	PaidAt   string   `json:"paid_at"`
	Customer Customer `json:"customer"`
}

// Customer is the payer identity attached to a transaction.
type Customer struct {
	Email string `json:"email"`
}

type verifyResponse struct {
	Status  bool       `json:"status"`
	Message string     `json:"message"`
	Data    VerifyData `json:"data"`
}

// Client talks to the Paystack API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
}

// NewClient creates a Paystack client from configuration.
func NewClient(cfg config.PaystackConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		secretKey:  cfg.SecretKey,
	}
}

// VerifySignature checks a webhook body against its x-paystack-signature
// header (HMAC-SHA512 keyed with the secret key).
func (c *Client) VerifySignature(signature string, body []byte) bool {
	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyTransaction confirms a transaction reference with the Paystack API.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*VerifyData, error) {
	url := c.baseURL + "/transaction/verify/" + reference
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verify transaction %s: %w", reference, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read verify response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("verify transaction %s: unexpected status %d", reference, resp.StatusCode)
	}

	var parsed verifyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}
	if !parsed.Status {
		return nil, fmt.Errorf("verify transaction %s: %s", reference, parsed.Message)
	}
	return &parsed.Data, nil
}
