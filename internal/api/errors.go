package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/conduitiot/conduit-connection/internal/connection"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeNotFound           = "not_found"
	ErrCodePreconditionFailed = "precondition_failed"
	ErrCodeInternal           = "internal_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writePreconditionFailed writes a 412 error response.
func writePreconditionFailed(w http.ResponseWriter, message string) {
	writeError(w, http.StatusPreconditionFailed, ErrCodePreconditionFailed, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeRegistryError maps a connection registry error onto its HTTP
// response. Store-level causes stay server-side; clients only see the
// error kind.
func writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, connection.ErrInvalidArgument):
		writeBadRequest(w, err.Error())
	case errors.Is(err, connection.ErrNotFound):
		writeNotFound(w, "no matching connection mapping")
	case errors.Is(err, connection.ErrPreconditionFailed):
		writePreconditionFailed(w, "adapter instance value or version did not match")
	default:
		writeInternalError(w, "connection store unavailable")
	}
}
