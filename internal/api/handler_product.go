package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/blocktrace/blocktrace/internal/esg"
	"github.com/blocktrace/blocktrace/internal/model"
	"github.com/blocktrace/blocktrace/internal/route"
	"github.com/blocktrace/blocktrace/internal/timeline"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type timelineResponse struct {
	ProductID   string                `json:"product_id"`
	Events      []model.TimelineEvent `json:"events"`
	TotalEvents int                   `json:"total_events"`
	Summary     *timeline.Summary     `json:"summary"`
	Latest      int                   `json:"latest"`
	Roles       []string              `json:"roles"`
	Filters     timeline.Filters      `json:"filters"`
	Empty       bool                  `json:"empty"`
}

func (h *handlers) listProducts(w http.ResponseWriter, r *http.Request) {
	s, err := requireSession(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	ids, err := h.deps.Backend.GetAllProducts(r.Context(), s.Principal)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"products": ids})
}

func productID(r *http.Request) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, "productID"))
	if id == "" {
		return "", eris.Wrap(model.ErrInvalidInput, "api: product id is required")
	}
	return id, nil
}

func filtersFrom(r *http.Request) (timeline.Filters, error) {
	q := r.URL.Query()
	f := timeline.Filters{
		Role:          q.Get("role"),
		Status:        q.Get("status"),
		TransportMode: q.Get("transport_mode"),
		QualityRange:  q.Get("quality_range"),
	}
	return f, f.Validate()
}

// loadTimeline resolves the session and product and returns the product's
// full timeline. An unknown product yields an empty timeline.
func (h *handlers) loadTimeline(r *http.Request) (*model.Session, string, []model.TimelineEvent, error) {
	s, err := requireSession(r)
	if err != nil {
		return nil, "", nil, err
	}
	id, err := productID(r)
	if err != nil {
		return nil, "", nil, err
	}
	steps, err := h.deps.Backend.GetProductHistory(r.Context(), id, s.Principal)
	if err != nil {
		return nil, "", nil, err
	}
	return s, id, timeline.Build(steps), nil
}

func (h *handlers) productTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := filtersFrom(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	_, id, events, err := h.loadTimeline(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	shown := timeline.Filter(events, filters)
	roles := timeline.Roles(events)
	if roles == nil {
		roles = []string{}
	}
	WriteJSON(w, http.StatusOK, timelineResponse{
		ProductID:   id,
		Events:      shown,
		TotalEvents: len(events),
		Summary:     timeline.Summarize(shown),
		Latest:      timeline.Latest(shown),
		Roles:       roles,
		Filters:     filters,
		Empty:       len(events) == 0,
	})
}

func (h *handlers) productTimelineXLSX(w http.ResponseWriter, r *http.Request) {
	filters, err := filtersFrom(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	_, id, events, err := h.loadTimeline(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := timeline.ExportXLSX(&buf, id, timeline.Filter(events, filters)); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-timeline.xlsx"`, sanitizeFilename(id)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck
}

func sanitizeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}

func (h *handlers) productRoute(w http.ResponseWriter, r *http.Request) {
	_, _, events, err := h.loadTimeline(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSONAs(w, http.StatusOK, "application/geo+json", route.GeoJSON(events))
}

// productRouteWKB returns the route as EWKB, or 204 when fewer than two
// events are located.
func (h *handlers) productRouteWKB(w http.ResponseWriter, r *http.Request) {
	_, _, events, err := h.loadTimeline(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	data, err := route.EncodeEWKB(route.Build(events))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if data == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
}

type storyResponse struct {
	ProductID string `json:"product_id"`
	Story     string `json:"story"`
	Narrated  bool   `json:"narrated"`
	Empty     bool   `json:"empty"`
}

func (h *handlers) productStory(w http.ResponseWriter, r *http.Request) {
	_, id, events, err := h.loadTimeline(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if len(events) == 0 {
		WriteJSON(w, http.StatusOK, storyResponse{ProductID: id, Empty: true})
		return
	}
	text, narrated, err := h.deps.Narrator.Tell(r.Context(), id, events)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, storyResponse{ProductID: id, Story: text, Narrated: narrated})
}

type scoreResponse struct {
	Score     *model.ESGScore `json:"score"`
	Label     string          `json:"label"`
	Estimated bool            `json:"estimated"`
}

func (h *handlers) productESG(w http.ResponseWriter, r *http.Request) {
	s, err := requireSession(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	id, err := productID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	score, estimated, err := h.deps.Fleet.Score(r.Context(), s, id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, scoreResponse{
		Score:     score,
		Label:     esg.Label(int(score.SustainabilityScore)),
		Estimated: estimated,
	})
}
