package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/terakoya-app/terakoya/internal/auth"
	"github.com/terakoya-app/terakoya/internal/store"
)

type AuthHandler struct {
	accounts *store.AccountStore
	secret   []byte
	logger   *slog.Logger
}

func NewAuthHandler(accounts *store.AccountStore, secret []byte, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		secret:   secret,
		logger:   logger,
	}
}

type accountResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Plan  string `json:"plan"`
}

// Signup registers a new account and starts a session.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "valid email is required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "unable to process request")
		return
	}

	account, err := h.accounts.Create(uuid.NewString(), req.Email, hash, req.Name)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, "an account with this email already exists")
			return
		}
		h.logger.Error("create account", "error", err)
		writeError(w, http.StatusInternalServerError, "unable to process request")
		return
	}

	if err := h.setSessionCookie(w, account.ID, account.Email); err != nil {
		writeError(w, http.StatusInternalServerError, "unable to process request")
		return
	}

	writeJSON(w, http.StatusCreated, accountResponse{
		ID:    account.ID,
		Email: account.Email,
		Name:  account.Name,
		Plan:  account.Plan,
	})
}

// Login verifies credentials and starts a session. Failures are
// reported identically so the endpoint does not leak which emails
// exist.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	account, err := h.accounts.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("get account", "error", err)
		writeError(w, http.StatusInternalServerError, "unable to process request")
		return
	}
	if account == nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	hash, err := h.accounts.GetPasswordHash(account.ID)
	if err != nil {
		h.logger.Error("get password hash", "error", err)
		writeError(w, http.StatusInternalServerError, "unable to process request")
		return
	}
	if hash == "" || !auth.VerifyPassword(hash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	if err := h.setSessionCookie(w, account.ID, account.Email); err != nil {
		writeError(w, http.StatusInternalServerError, "unable to process request")
		return
	}

	writeJSON(w, http.StatusOK, accountResponse{
		ID:    account.ID,
		Email: account.Email,
		Name:  account.Name,
		Plan:  account.Plan,
	})
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	account, err := h.accounts.GetByID(accountID)
	if err != nil {
		h.logger.Error("get account", "error", err)
		writeError(w, http.StatusInternalServerError, "unable to process request")
		return
	}
	if account == nil {
		// Token outlived the account row.
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	writeJSON(w, http.StatusOK, accountResponse{
		ID:    account.ID,
		Email: account.Email,
		Name:  account.Name,
		Plan:  account.Plan,
	})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, accountID, email string) error {
	token, err := auth.IssueToken(h.secret, accountID, email)
	if err != nil {
		h.logger.Error("issue token", "error", err)
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.TokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
