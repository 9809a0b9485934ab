package httpapi

import (
	"encoding/json"
	"net/http"
	"time"
)

// envelope is the wire shape shared by every route: a "status" field plus
// route-specific payload. Error bodies additionally carry "message" and an
// "error_code" mirroring the HTTP status.
type envelope map[string]any

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, envelope{
		"status":     "error",
		"message":    message,
		"error_code": status,
	})
}

// timestamp returns the current UTC time in the wire format used by all
// success responses.
func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
