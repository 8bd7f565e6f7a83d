package api

import (
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/blocktrace/blocktrace/internal/demo"
	"github.com/blocktrace/blocktrace/internal/model"
	"github.com/blocktrace/blocktrace/internal/timeline"
)

type demoResponse struct {
	ProductID   string                `json:"product_id"`
	Name        string                `json:"name"`
	Synthesized bool                  `json:"synthesized"`
	Events      []model.TimelineEvent `json:"events"`
	Summary     *timeline.Summary     `json:"summary"`
	Latest      int                   `json:"latest"`
}

// demoTimeline serves the scenario journey decorated with synthesized
// values. It never reads the backend. ?start=RFC3339 pins the first step.
func (h *handlers) demoTimeline(w http.ResponseWriter, r *http.Request) {
	sc := h.deps.Scenario
	if sc == nil {
		var err error
		if sc, err = demo.LoadScenario(""); err != nil {
			WriteError(w, r, err)
			return
		}
	}

	start := h.deps.Now().UTC().Truncate(time.Hour)
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			WriteError(w, r, eris.Wrapf(model.ErrInvalidInput, "api: start %q", v))
			return
		}
		start = t.UTC()
	}

	events := sc.Timeline(start, demo.NewSynthesizer(h.deps.Config.Demo.Seed))
	WriteJSON(w, http.StatusOK, demoResponse{
		ProductID:   sc.ProductID,
		Name:        sc.Name,
		Synthesized: true,
		Events:      events,
		Summary:     timeline.Summarize(events),
		Latest:      timeline.Latest(events),
	})
}
