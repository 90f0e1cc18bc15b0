package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/terakoya-app/terakoya/internal/catalog"
	"github.com/terakoya-app/terakoya/internal/payment"
)

type CheckoutHandler struct {
	payments *payment.Client
	logger   *slog.Logger
}

func NewCheckoutHandler(payments *payment.Client, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		payments: payments,
		logger:   logger,
	}
}

// Create builds a checkout session for exactly one course or one plan.
// The configuration check runs before anything else so a misconfigured
// deployment reports 500 even for requests that would otherwise be 400.
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.payments.Configured() {
		h.logger.Error("checkout requested but payment processing is not configured")
		writeError(w, http.StatusInternalServerError, "payment processing is not configured")
		return
	}

	var req struct {
		CourseSlug string `json:"courseSlug"`
		PlanID     string `json:"planId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if (req.CourseSlug == "") == (req.PlanID == "") {
		writeError(w, http.StatusBadRequest, "provide exactly one of courseSlug or planId")
		return
	}

	if req.CourseSlug != "" {
		course := catalog.FindCourse(req.CourseSlug)
		if course == nil {
			writeError(w, http.StatusBadRequest, "unknown course")
			return
		}
		sess, err := h.payments.CreateCourseSession(*course)
		if err != nil {
			h.logger.Error("create course checkout session", "error", err, "course", course.Slug)
			writeError(w, http.StatusInternalServerError, "unable to create checkout session")
			return
		}
		writeJSON(w, http.StatusOK, sess)
		return
	}

	plan := catalog.FindPlan(req.PlanID)
	if plan == nil {
		writeError(w, http.StatusBadRequest, "unknown plan")
		return
	}
	sess, err := h.payments.CreatePlanSession(*plan)
	if err != nil {
		h.logger.Error("create plan checkout session", "error", err, "plan", plan.ID)
		writeError(w, http.StatusInternalServerError, "unable to create checkout session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
