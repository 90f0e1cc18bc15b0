package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/terakoya-app/terakoya/internal/auth"
	"github.com/terakoya-app/terakoya/internal/database"
	"github.com/terakoya-app/terakoya/internal/store"
)

func setupAuthTest(t *testing.T) *AuthHandler {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthHandler(store.NewAccountStore(db), []byte("test-secret"), logger)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	return nil
}

func TestSignupCreatesAccountAndSession(t *testing.T) {
	h := setupAuthTest(t)

	req := httptest.NewRequest("POST", "/api/auth/signup",
		strings.NewReader(`{"email": "Learner@Example.com", "password": "hunter2hunter2", "name": "Aoi"}`))
	rec := httptest.NewRecorder()
	h.Signup(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var resp accountResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Email != "learner@example.com" {
		t.Errorf("email = %q, want normalized learner@example.com", resp.Email)
	}
	if resp.Plan != "free" {
		t.Errorf("plan = %q, want free for new account", resp.Plan)
	}

	cookie := sessionCookie(t, rec)
	if cookie == nil || cookie.Value == "" {
		t.Fatal("expected a session cookie to be set")
	}
	accountID, _, err := auth.ParseToken([]byte("test-secret"), cookie.Value)
	if err != nil {
		t.Fatalf("failed to parse session token: %v", err)
	}
	if accountID != resp.ID {
		t.Errorf("token account id = %q, want %q", accountID, resp.ID)
	}
}

func TestSignupDuplicateEmailConflicts(t *testing.T) {
	h := setupAuthTest(t)

	body := `{"email": "learner@example.com", "password": "hunter2hunter2"}`
	rec := httptest.NewRecorder()
	h.Signup(rec, httptest.NewRequest("POST", "/api/auth/signup", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first signup status = %d, want %d", rec.Code, http.StatusCreated)
	}

	rec = httptest.NewRecorder()
	h.Signup(rec, httptest.NewRequest("POST", "/api/auth/signup", strings.NewReader(body)))
	if rec.Code != http.StatusConflict {
		t.Errorf("second signup status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestSignupRejectsShortPassword(t *testing.T) {
	h := setupAuthTest(t)

	req := httptest.NewRequest("POST", "/api/auth/signup",
		strings.NewReader(`{"email": "learner@example.com", "password": "short"}`))
	rec := httptest.NewRecorder()
	h.Signup(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestLoginWithValidCredentials(t *testing.T) {
	h := setupAuthTest(t)

	rec := httptest.NewRecorder()
	h.Signup(rec, httptest.NewRequest("POST", "/api/auth/signup",
		strings.NewReader(`{"email": "learner@example.com", "password": "hunter2hunter2"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup failed: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest("POST", "/api/auth/login",
		strings.NewReader(`{"email": "learner@example.com", "password": "hunter2hunter2"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if sessionCookie(t, rec) == nil {
		t.Error("expected a session cookie on login")
	}
}

func TestLoginWrongPasswordIsUnauthorized(t *testing.T) {
	h := setupAuthTest(t)

	rec := httptest.NewRecorder()
	h.Signup(rec, httptest.NewRequest("POST", "/api/auth/signup",
		strings.NewReader(`{"email": "learner@example.com", "password": "hunter2hunter2"}`)))

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest("POST", "/api/auth/login",
		strings.NewReader(`{"email": "learner@example.com", "password": "wrong-password"}`)))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestLoginUnknownEmailIsUnauthorized(t *testing.T) {
	h := setupAuthTest(t)

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest("POST", "/api/auth/login",
		strings.NewReader(`{"email": "nobody@example.com", "password": "hunter2hunter2"}`)))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestMeReturnsAuthenticatedAccount(t *testing.T) {
	h := setupAuthTest(t)

	rec := httptest.NewRecorder()
	h.Signup(rec, httptest.NewRequest("POST", "/api/auth/signup",
		strings.NewReader(`{"email": "learner@example.com", "password": "hunter2hunter2"}`)))
	var created accountResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode signup response: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req = req.WithContext(auth.WithSession(req.Context(),
		auth.Session{AccountID: created.ID, Email: created.Email}))
	rec = httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var me accountResponse
	if err := json.NewDecoder(rec.Body).Decode(&me); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if me.ID != created.ID {
		t.Errorf("id = %q, want %q", me.ID, created.ID)
	}
}

func TestMeAnonymousIsUnauthorized(t *testing.T) {
	h := setupAuthTest(t)

	rec := httptest.NewRecorder()
	h.Me(rec, httptest.NewRequest("GET", "/api/auth/me", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	h := setupAuthTest(t)

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest("POST", "/api/auth/logout", nil))

	cookie := sessionCookie(t, rec)
	if cookie == nil {
		t.Fatal("expected the session cookie to be rewritten")
	}
	if cookie.Value != "" || cookie.MaxAge != -1 {
		t.Errorf("cookie = %q maxage %d, want cleared", cookie.Value, cookie.MaxAge)
	}
}
