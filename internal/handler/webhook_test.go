package handler

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/terakoya-app/terakoya/internal/database"
	"github.com/terakoya-app/terakoya/internal/identity"
	"github.com/terakoya-app/terakoya/internal/payment"
	"github.com/terakoya-app/terakoya/internal/reconcile"
	"github.com/terakoya-app/terakoya/internal/store"
)

const testWebhookSecret = "whsec_test_secret"

type silentNotifier struct{}

func (silentNotifier) Configured() bool                            { return false }
func (silentNotifier) SendPurchaseConfirmation(_, _ string) error  { return nil }
func (silentNotifier) SendSubscriptionActivated(_, _ string) error { return nil }
func (silentNotifier) SendCancellationNotice(_ string) error       { return nil }

func setupWebhookTest(t *testing.T) (*WebhookHandler, *sql.DB) {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	accounts := store.NewAccountStore(db)
	subscriptions := store.NewSubscriptionStore(db)
	purchases := store.NewPurchaseStore(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reconciler := reconcile.New(accounts, subscriptions, purchases,
		identity.NewResolver(accounts), silentNotifier{}, logger)
	payments := payment.NewClient(payment.Config{WebhookSecret: testWebhookSecret})

	return NewWebhookHandler(payments, reconciler, logger), db
}

// signPayload produces a Stripe-Signature header the verifier accepts.
func signPayload(secret string, payload []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func postWebhook(t *testing.T, h *WebhookHandler, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signature)
	rec := httptest.NewRecorder()
	h.HandleStripeWebhook(rec, req)
	return rec
}

func TestWebhookFulfillsSignedCheckoutEvent(t *testing.T) {
	h, db := setupWebhookTest(t)

	payload := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_1",
			"customer_details": {"email": "learner@example.com"},
			"metadata": {"type": "course", "courseSlug": "practical-web-security"}
		}}
	}`)

	rec := postWebhook(t, h, payload, signPayload(testWebhookSecret, payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM course_purchases WHERE email = 'learner@example.com'").Scan(&count)
	if err != nil {
		t.Fatalf("failed to count purchases: %v", err)
	}
	if count != 1 {
		t.Errorf("purchase count = %d, want 1", count)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h, db := setupWebhookTest(t)

	payload := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_1",
			"customer_details": {"email": "learner@example.com"},
			"metadata": {"type": "course", "courseSlug": "practical-web-security"}
		}}
	}`)

	rec := postWebhook(t, h, payload, signPayload("whsec_wrong_secret", payload))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM course_purchases").Scan(&count); err != nil {
		t.Fatalf("failed to count purchases: %v", err)
	}
	if count != 0 {
		t.Errorf("purchase count = %d, want 0 after rejected signature", count)
	}
}

func TestWebhookRejectsTamperedPayload(t *testing.T) {
	h, db := setupWebhookTest(t)

	payload := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_1",
			"customer_details": {"email": "learner@example.com"},
			"metadata": {"type": "course", "courseSlug": "practical-web-security"}
		}}
	}`)
	signature := signPayload(testWebhookSecret, payload)
	tampered := bytes.Replace(payload, []byte("learner@example.com"), []byte("mallory@example.com"), 1)

	rec := postWebhook(t, h, tampered, signature)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM accounts").Scan(&count); err != nil {
		t.Fatalf("failed to count accounts: %v", err)
	}
	if count != 0 {
		t.Errorf("account count = %d, want 0 after tampered payload", count)
	}
}

func TestWebhookAcknowledgesUnhandledEventTypes(t *testing.T) {
	h, _ := setupWebhookTest(t)

	payload := []byte(`{"id": "evt_2", "type": "invoice.finalized", "data": {"object": {"id": "in_1"}}}`)

	rec := postWebhook(t, h, payload, signPayload(testWebhookSecret, payload))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
