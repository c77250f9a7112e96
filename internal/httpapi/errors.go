package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"localchat/internal/settings"
	"localchat/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
// *ollama.TransportError and *catalog.FetchError implement it.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps an error to the status it should be reported with.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case errors.As(err, &he):
		return he.StatusCode()
	case errors.Is(err, settings.ErrInvalidModel):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: status})
}
