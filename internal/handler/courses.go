package handler

import (
	"net/http"

	"github.com/terakoya-app/terakoya/internal/catalog"
)

type CoursesHandler struct{}

func NewCoursesHandler() *CoursesHandler {
	return &CoursesHandler{}
}

// List returns the course catalog and the available plans.
func (h *CoursesHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"courses":            catalog.Courses(),
		"plans":              catalog.Plans(),
		"freePreviewLessons": catalog.FreePreviewLessons,
	})
}
