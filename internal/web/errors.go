package web

// errors.go provides the JSON response envelope and unified error handling.
//
// Every API response is {success, data?, error?}. Failures carry the
// user-facing message from core.MapError plus its support code and action;
// the technical error is only logged, together with the request ID.

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JonMunkholm/colisage/internal/core"
	"github.com/JonMunkholm/colisage/internal/logging"
)

// apiResponse is the envelope of every API response.
type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Action  string `json:"action,omitempty"`
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}

// respondData writes a successful envelope.
func respondData(w http.ResponseWriter, r *http.Request, data any) {
	writeJSON(w, r, http.StatusOK, apiResponse{Success: true, Data: data})
}

// respondError logs err and writes a failed envelope with its user-facing
// message. data, when non-nil, is included (partial commit results).
func respondError(w http.ResponseWriter, r *http.Request, err error, status int, data any) {
	msg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	writeJSON(w, r, status, apiResponse{
		Success: false,
		Data:    data,
		Error:   msg.Message,
		Code:    msg.Code,
		Action:  msg.Action,
	})
}

// respondMessage writes a failed envelope for a request-level problem
// detected by the web layer itself.
func respondMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	respondError(w, r, errors.New(message), status, nil)
}

// statusFor maps import errors to HTTP status codes.
func statusFor(err error) int {
	var (
		emptyErr *core.EmptyInputError
		parseErr *core.ParseError
	)
	switch {
	case errors.As(err, &emptyErr), errors.As(err, &parseErr), errors.Is(err, core.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrDossierNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrAuditUnavailable):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
