// Package handlers implements the HTTP request handlers for the PicStash API.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apierr "github.com/picstash/picstash/internal/errors"
)

// errorEnvelope is the JSON shape of every error response.
type errorEnvelope struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeJSON serializes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// WriteError writes the JSON error envelope for an API error. Non-APIError
// values are reported as a generic internal error so storage and image
// library internals never leak to callers.
func WriteError(w http.ResponseWriter, err error) {
	ae, ok := err.(*apierr.APIError)
	if !ok {
		ae = apierr.ErrInternal
	}
	writeJSON(w, ae.HTTPStatus, errorEnvelope{Error: ae.Message, Details: ae.Details})
}
