package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// writeJSON encodes data as the response body with the given status.
// The status line is already on the wire when encoding runs, so an
// encoding failure can only be logged, never reported to the client.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// ErrorResponse is the JSON body of every non-streaming error: a short
// machine-readable error plus an optional human-readable message.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError sends an ErrorResponse with the given status.
func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}
