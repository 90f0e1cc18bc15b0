package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/terakoya-app/terakoya/internal/auth"
	"github.com/terakoya-app/terakoya/internal/entitlement"
)

type AccessHandler struct {
	evaluator *entitlement.Evaluator
	logger    *slog.Logger
}

func NewAccessHandler(evaluator *entitlement.Evaluator, logger *slog.Logger) *AccessHandler {
	return &AccessHandler{
		evaluator: evaluator,
		logger:    logger,
	}
}

// Check answers whether the requester may open a lesson. Anonymous
// requests are legal; they just never reach the paid branches.
func (h *AccessHandler) Check(w http.ResponseWriter, r *http.Request) {
	courseSlug := r.URL.Query().Get("course")
	if courseSlug == "" {
		writeError(w, http.StatusBadRequest, "course is required")
		return
	}

	lesson, err := strconv.Atoi(r.URL.Query().Get("lesson"))
	if err != nil || lesson < 1 {
		writeError(w, http.StatusBadRequest, "lesson must be a positive number")
		return
	}

	decision, err := h.evaluator.Evaluate(courseSlug, lesson, auth.AccountID(r.Context()))
	if err != nil {
		h.logger.Error("evaluate access", "error", err)
		writeError(w, http.StatusInternalServerError, "unable to process request")
		return
	}

	writeJSON(w, http.StatusOK, decision)
}
