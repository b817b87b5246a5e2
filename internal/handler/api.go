package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/msomdec/people-registry/internal/domain"
	"github.com/msomdec/people-registry/internal/service"
)

// APIHandler exposes the read operations as JSON.
type APIHandler struct {
	people *service.PersonService
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(people *service.PersonService) *APIHandler {
	return &APIHandler{people: people}
}

// HandleList returns the filtered, sorted list.
// GET /api/people?searchString=&sortOrder=
// Response: {"people": [...]}
func (h *APIHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	people, err := h.people.List(r.Context(), q.Get("searchString"), q.Get("sortOrder"))
	if err != nil {
		slog.Error("api list people", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"people": toPersonDTOs(people),
	})
}

// HandleGet returns one person.
// GET /api/people/{id}
// Response: {"person": {...}} or 404
func (h *APIHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Person not found.")
		return
	}

	person, err := h.people.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Person not found.")
			return
		}
		slog.Error("api get person", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"person": toPersonDTO(person),
	})
}
