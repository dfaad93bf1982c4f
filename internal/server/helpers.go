package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/bobmcallan/tickzen/internal/app"
)

// ErrorResponse is the standard error format for REST API responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message})
}

// WriteErrorWithCode writes a JSON error response with an error code.
func WriteErrorWithCode(w http.ResponseWriter, statusCode int, message, code string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// DecodeJSON reads and decodes JSON from the request body into v.
// Returns false and writes a 400 error if decoding fails.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		WriteError(w, http.StatusBadRequest, "Request body is required")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}

// QueryInt parses an integer query parameter, returning def when absent or invalid.
func QueryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// writeAppError maps lookup failures to 404 and everything else to 500.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrUnknownUser):
		WriteErrorWithCode(w, http.StatusNotFound, err.Error(), "unknown_user")
	case errors.Is(err, app.ErrUnknownProfile):
		WriteErrorWithCode(w, http.StatusNotFound, err.Error(), "unknown_profile")
	case errors.Is(err, app.ErrUnknownRun):
		WriteErrorWithCode(w, http.StatusNotFound, err.Error(), "unknown_run")
	case errors.Is(err, app.ErrStorageUnavailable):
		WriteErrorWithCode(w, http.StatusServiceUnavailable, err.Error(), "storage_unavailable")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
