package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/terakoya-app/terakoya/internal/auth"
	"github.com/terakoya-app/terakoya/internal/database"
	"github.com/terakoya-app/terakoya/internal/entitlement"
	"github.com/terakoya-app/terakoya/internal/store"
)

func setupAccessTest(t *testing.T) (*AccessHandler, *store.AccountStore, *store.PurchaseStore) {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	accounts := store.NewAccountStore(db)
	purchases := store.NewPurchaseStore(db)
	evaluator := entitlement.NewEvaluator(store.NewSubscriptionStore(db), purchases)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewAccessHandler(evaluator, logger), accounts, purchases
}

func getAccess(h *AccessHandler, url string, accountID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", url, nil)
	if accountID != "" {
		req = req.WithContext(auth.WithSession(req.Context(), auth.Session{AccountID: accountID}))
	}
	rec := httptest.NewRecorder()
	h.Check(rec, req)
	return rec
}

func decodeDecision(t *testing.T, rec *httptest.ResponseRecorder) entitlement.Decision {
	t.Helper()
	var d entitlement.Decision
	if err := json.NewDecoder(rec.Body).Decode(&d); err != nil {
		t.Fatalf("failed to decode decision: %v", err)
	}
	return d
}

func TestAccessCheckFreePreviewForAnonymous(t *testing.T) {
	h, _, _ := setupAccessTest(t)

	rec := getAccess(h, "/api/courses/access?course=practical-web-security&lesson=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	d := decodeDecision(t, rec)
	if !d.HasAccess || d.Reason != entitlement.ReasonFreePreview {
		t.Errorf("decision = %+v, want free preview access", d)
	}
}

func TestAccessCheckGatedLessonForAnonymous(t *testing.T) {
	h, _, _ := setupAccessTest(t)

	rec := getAccess(h, "/api/courses/access?course=practical-web-security&lesson=3", "")
	d := decodeDecision(t, rec)
	if d.HasAccess || d.Reason != entitlement.ReasonNotAuthenticated {
		t.Errorf("decision = %+v, want denial for anonymous gated lesson", d)
	}
}

func TestAccessCheckPurchasedCourse(t *testing.T) {
	h, accounts, purchases := setupAccessTest(t)

	account, err := accounts.Create("acct-1", "learner@example.com", "hash", "")
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	if err := purchases.Record(account.ID, account.Email, "practical-web-security", ""); err != nil {
		t.Fatalf("failed to record purchase: %v", err)
	}

	rec := getAccess(h, "/api/courses/access?course=practical-web-security&lesson=9", account.ID)
	d := decodeDecision(t, rec)
	if !d.HasAccess || d.Reason != entitlement.ReasonPurchased {
		t.Errorf("decision = %+v, want purchased access", d)
	}
}

func TestAccessCheckNoEntitlement(t *testing.T) {
	h, accounts, _ := setupAccessTest(t)

	account, err := accounts.Create("acct-1", "learner@example.com", "hash", "")
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}

	rec := getAccess(h, "/api/courses/access?course=practical-web-security&lesson=9", account.ID)
	d := decodeDecision(t, rec)
	if d.HasAccess || d.Reason != entitlement.ReasonNoAccess {
		t.Errorf("decision = %+v, want no access", d)
	}
}

func TestAccessCheckMissingCourseParam(t *testing.T) {
	h, _, _ := setupAccessTest(t)

	rec := getAccess(h, "/api/courses/access?lesson=1", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestAccessCheckBadLessonParam(t *testing.T) {
	h, _, _ := setupAccessTest(t)

	for _, lesson := range []string{"", "0", "-1", "abc"} {
		rec := getAccess(h, "/api/courses/access?course=practical-web-security&lesson="+lesson, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("lesson %q: status = %d, want %d", lesson, rec.Code, http.StatusBadRequest)
		}
	}
}
