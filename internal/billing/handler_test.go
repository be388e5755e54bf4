// AngelaMos | 2026
// handler_test.go

package billing

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/trailnetzero/community-api/internal/config"
)

const testWebhookSecret = "whsec_test_secret"

// signPayload produces a Stripe-Signature header value for the given body,
// the same scheme ConstructEvent verifies: v1 = HMAC-SHA256(secret, "t.body").
func signPayload(payload []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func newWebhookHandler() *Handler {
	svc := newTestService(newMockRepository(), &mockStripeClient{})
	return NewHandler(svc, config.StripeConfig{
		WebhookSecret: testWebhookSecret,
	}, "/join", slog.Default())
}

func TestWebhookValidSignature(t *testing.T) {
	h := newWebhookHandler()

	payload := []byte(`{"id":"evt_1","api_version":"2023-10-16","type":"invoice.paid","data":{"object":{}}}`)
	req := httptest.NewRequest(
		http.MethodPost, "/billing/webhook", bytes.NewReader(payload),
	)
	req.Header.Set(
		"Stripe-Signature",
		signPayload(payload, testWebhookSecret, time.Now()),
	)
	rec := httptest.NewRecorder()

	h.Webhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestWebhookInvalidSignature(t *testing.T) {
	h := newWebhookHandler()

	payload := []byte(`{"id":"evt_1","type":"invoice.paid","data":{"object":{}}}`)

	tests := []struct {
		name   string
		header string
	}{
		{
			name:   "missing header",
			header: "",
		},
		{
			name:   "wrong secret",
			header: signPayload(payload, "whsec_wrong", time.Now()),
		},
		{
			name:   "stale timestamp",
			header: signPayload(payload, testWebhookSecret, time.Now().Add(-time.Hour)),
		},
		{
			name:   "garbage",
			header: "t=abc,v1=def",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(
				http.MethodPost, "/billing/webhook", bytes.NewReader(payload),
			)
			if tt.header != "" {
				req.Header.Set("Stripe-Signature", tt.header)
			}
			rec := httptest.NewRecorder()

			h.Webhook(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestWebhookTamperedBody(t *testing.T) {
	h := newWebhookHandler()

	signed := []byte(`{"id":"evt_1","type":"invoice.paid","data":{"object":{}}}`)
	tampered := []byte(`{"id":"evt_2","type":"invoice.paid","data":{"object":{}}}`)

	req := httptest.NewRequest(
		http.MethodPost, "/billing/webhook", bytes.NewReader(tampered),
	)
	req.Header.Set(
		"Stripe-Signature",
		signPayload(signed, testWebhookSecret, time.Now()),
	)
	rec := httptest.NewRecorder()

	h.Webhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
