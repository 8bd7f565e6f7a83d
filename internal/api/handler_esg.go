package api

import (
	"net/http"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/blocktrace/blocktrace/internal/model"
)

// fleetESG serves the fleet report. refine defaults to the configured
// setting and can be overridden with ?refine=true|false.
func (h *handlers) fleetESG(w http.ResponseWriter, r *http.Request) {
	s, err := requireSession(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	refine := h.deps.Config.ESG.Refine
	if v := r.URL.Query().Get("refine"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			WriteError(w, r, eris.Wrapf(model.ErrInvalidInput, "api: refine %q", v))
			return
		}
		refine = b
	}

	report, err := h.deps.Fleet.Report(r.Context(), s, refine)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}
