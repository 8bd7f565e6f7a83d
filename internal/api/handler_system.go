package api

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/blocktrace/blocktrace/internal/monitoring"
	"github.com/blocktrace/blocktrace/internal/resilience"
)

type healthResponse struct {
	Status   string                             `json:"status"`
	Breakers map[string]resilience.CircuitState `json:"breakers,omitempty"`
}

// health reports "degraded" while any backend circuit is open.
func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h.deps.Breakers != nil {
		resp.Breakers = h.deps.Breakers.States()
		if len(h.deps.Breakers.Open()) > 0 {
			resp.Status = "degraded"
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

type statsResponse struct {
	TotalSteps   uint64 `json:"total_steps"`
	CanisterInfo string `json:"canister_info"`
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	s, err := requireSession(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var resp statsResponse
	eg, ctx := errgroup.WithContext(r.Context())
	eg.Go(func() error {
		n, err := h.deps.Backend.GetTotalStepsCount(ctx, s.Principal)
		resp.TotalSteps = n
		return err
	})
	eg.Go(func() error {
		info, err := h.deps.Backend.GetCanisterInfo(ctx, s.Principal)
		resp.CanisterInfo = info
		return err
	})
	if err := eg.Wait(); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (h *handlers) monitoringUpdates(w http.ResponseWriter, r *http.Request) {
	if _, err := requireSession(r); err != nil {
		WriteError(w, r, err)
		return
	}
	updates := []monitoring.Alert{}
	if h.deps.Checker != nil {
		updates = append(updates, h.deps.Checker.Updates()...)
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"enabled": h.deps.Checker != nil,
		"updates": updates,
	})
}
