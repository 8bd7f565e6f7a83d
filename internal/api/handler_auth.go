package api

import (
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/blocktrace/blocktrace/internal/auth"
	"github.com/blocktrace/blocktrace/internal/model"
)

type loginResponse struct {
	Token   string         `json:"token"`
	Session *model.Session `json:"session"`
}

func (h *handlers) authMethods(w http.ResponseWriter, _ *http.Request) {
	methods := []model.AuthMethod{}
	if h.deps.Auth != nil {
		methods = h.deps.Auth.Methods()
	}
	WriteJSON(w, http.StatusOK, map[string]any{"methods": methods})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	if h.deps.Auth == nil {
		WriteError(w, r, eris.Wrap(model.ErrNotAuthenticated, "api: authentication is not configured"))
		return
	}
	var creds auth.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		WriteError(w, r, err)
		return
	}
	token, s, err := h.deps.Auth.Login(r.Context(), creds)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, loginResponse{Token: token, Session: s})
}

// logout always succeeds; an unknown token has nothing to clear.
func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	if token := auth.BearerToken(r); token != "" && h.deps.Auth != nil {
		if err := h.deps.Auth.Logout(r.Context(), token); err != nil {
			WriteError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	s, err := requireSession(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, s)
}
