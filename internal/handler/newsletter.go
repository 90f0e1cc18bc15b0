package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/terakoya-app/terakoya/internal/store"
)

type NewsletterHandler struct {
	newsletter *store.NewsletterStore
	logger     *slog.Logger
}

func NewNewsletterHandler(newsletter *store.NewsletterStore, logger *slog.Logger) *NewsletterHandler {
	return &NewsletterHandler{
		newsletter: newsletter,
		logger:     logger,
	}
}

// Subscribe adds an email to the newsletter list. Repeat signups are
// reported as success.
func (h *NewsletterHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
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

	if _, err := h.newsletter.Subscribe(req.Email); err != nil {
		h.logger.Error("newsletter subscribe", "error", err)
		writeError(w, http.StatusInternalServerError, "unable to process request")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"subscribed": true})
}
