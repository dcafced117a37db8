package payments

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

	"stagepass/internal/shared/config"
)

// CardlinkClient talks to the Cardlink gateway over its REST API. Requests
// are authenticated with an HMAC-SHA256 signature over the raw body, the same
// scheme Cardlink uses for its webhooks back to us.
type CardlinkClient struct {
	baseURL    string
	merchantID string
	secret     []byte
	httpClient *http.Client
}

func NewCardlinkClient(cfg *config.PaymentConfig) *CardlinkClient {
	return &CardlinkClient{
		baseURL:    cfg.BaseURL,
		merchantID: cfg.MerchantID,
		secret:     []byte(cfg.Secret),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *CardlinkClient) Name() string {
	return "cardlink"
}

// CreateIntent opens a payment intent and returns the hosted-page redirect
func (c *CardlinkClient) CreateIntent(ctx context.Context, req *IntentRequest) (*IntentResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal intent request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payment-intents", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build intent request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Merchant-Id", c.merchantID)
	httpReq.Header.Set("X-Signature", c.sign(body))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("cardlink request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read cardlink response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("cardlink returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var intent IntentResponse
	if err := json.Unmarshal(respBody, &intent); err != nil {
		return nil, fmt.Errorf("failed to decode cardlink response: %w", err)
	}
	if intent.ProviderPaymentID == "" || intent.RedirectURL == "" {
		return nil, fmt.Errorf("cardlink response missing payment id or redirect url")
	}
	if intent.ExpiresAt.IsZero() {
		intent.ExpiresAt = time.Now().Add(15 * time.Minute)
	}
	return &intent, nil
}

// VerifySignature checks a webhook body against its X-Signature header using
// a constant-time comparison.
func (c *CardlinkClient) VerifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	expected := c.sign(body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (c *CardlinkClient) sign(body []byte) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
