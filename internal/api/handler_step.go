package api

import (
	"net/http"

	"github.com/blocktrace/blocktrace/internal/model"
)

// addStep records a provenance step for the caller. Inputs are validated
// before the backend is contacted.
func (h *handlers) addStep(w http.ResponseWriter, r *http.Request) {
	s, err := requireSession(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var in model.StepInput
	if err := decodeJSON(r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	msg, err := h.deps.Backend.AddStep(r.Context(), in, s.Principal)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]string{
		"product_id": in.ProductID,
		"message":    msg,
	})
}
