package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stagepass/internal/shared/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cardlinkHMAC(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func newCardlink(baseURL string) *CardlinkClient {
	return NewCardlinkClient(&config.PaymentConfig{
		BaseURL:    baseURL,
		MerchantID: "merchant-001",
		Secret:     "topsecret",
		Timeout:    5 * time.Second,
	})
}

func TestCardlinkCreateIntent(t *testing.T) {
	var gotSignature, gotMerchant string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/payment-intents", r.URL.Path)

		gotSignature = r.Header.Get("X-Signature")
		gotMerchant = r.Header.Get("X-Merchant-Id")
		gotBody, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(IntentResponse{
			ProviderPaymentID: "cl_98765",
			RedirectURL:       "https://pay.cardlink.test/cl_98765",
			ExpiresAt:         time.Now().Add(15 * time.Minute),
		})
	}))
	defer server.Close()

	client := newCardlink(server.URL)
	intent, err := client.CreateIntent(context.Background(), &IntentRequest{
		PaymentID:      "pay-1",
		OrderReference: "ORD-20260831-K7XM2Q",
		Amount:         decimal.NewFromFloat(240.0),
		Currency:       "EUR",
		ReturnURL:      "https://stagepass.test/checkout/return",
		ExpiresIn:      900,
	})
	require.NoError(t, err)

	assert.Equal(t, "cl_98765", intent.ProviderPaymentID)
	assert.Equal(t, "https://pay.cardlink.test/cl_98765", intent.RedirectURL)

	// Outbound request is signed over the raw body with the shared secret
	assert.Equal(t, "merchant-001", gotMerchant)
	assert.Equal(t, cardlinkHMAC("topsecret", gotBody), gotSignature)
}

func TestCardlinkCreateIntentGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"merchant suspended"}`, http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newCardlink(server.URL).CreateIntent(context.Background(), &IntentRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestCardlinkCreateIntentIncompleteResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(IntentResponse{ProviderPaymentID: "cl_1"})
	}))
	defer server.Close()

	_, err := newCardlink(server.URL).CreateIntent(context.Background(), &IntentRequest{})
	require.Error(t, err)
}

func TestCardlinkCreateIntentDefaultsExpiry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(IntentResponse{
			ProviderPaymentID: "cl_1",
			RedirectURL:       "https://pay.cardlink.test/cl_1",
		})
	}))
	defer server.Close()

	intent, err := newCardlink(server.URL).CreateIntent(context.Background(), &IntentRequest{})
	require.NoError(t, err)
	assert.False(t, intent.ExpiresAt.IsZero())
}

func TestCardlinkVerifySignature(t *testing.T) {
	client := newCardlink("https://gw.cardlink.test")
	body := []byte(`{"payment_id":"cl_1","status":"completed"}`)

	assert.True(t, client.VerifySignature(body, cardlinkHMAC("topsecret", body)))
	assert.False(t, client.VerifySignature(body, cardlinkHMAC("wrongsecret", body)))
	assert.False(t, client.VerifySignature(body, ""))
	assert.False(t, client.VerifySignature([]byte("tampered"), cardlinkHMAC("topsecret", body)))
}
