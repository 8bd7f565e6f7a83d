package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/blocktrace/blocktrace/internal/model"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes body as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	writeJSONAs(w, status, "application/json; charset=utf-8", body)
}

func writeJSONAs(w http.ResponseWriter, status int, contentType string, body any) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body) //nolint:errcheck
	}
}

// statusFor maps an error kind to its HTTP status and code.
func statusFor(err error) (int, string) {
	switch {
	case model.IsNotAuthenticated(err):
		return http.StatusUnauthorized, "not_authenticated"
	case model.IsConnectionUnavailable(err):
		return http.StatusServiceUnavailable, "backend_unavailable"
	case model.IsInvalidInput(err):
		return http.StatusBadRequest, "invalid_input"
	case model.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// WriteError writes err with the status of its kind. Internal errors are
// logged and their detail withheld from the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		zap.L().Error("api: request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = "internal error"
	}

	var ve *model.ValidationError
	if errors.As(err, &ve) {
		WriteJSON(w, status, struct {
			Error  ErrorBody         `json:"error"`
			Fields model.FieldErrors `json:"fields"`
		}{ErrorBody{Code: code, Message: msg}, ve.Fields})
		return
	}
	WriteJSON(w, status, struct {
		Error ErrorBody `json:"error"`
	}{ErrorBody{Code: code, Message: msg}})
}

// decodeJSON reads a JSON request body into v. Malformed bodies are
// invalid input.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return eris.Wrapf(model.ErrInvalidInput, "api: decode body: %v", err)
	}
	return nil
}

// requireSession returns the caller's active session or ErrNotAuthenticated.
func requireSession(r *http.Request) (*model.Session, error) {
	s := sessionFrom(r)
	if err := model.RequireSession(s); err != nil {
		return nil, err
	}
	return s, nil
}
