package middleware

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes payload as a JSON response with the given status. Encode
// errors are dropped: the status is already sent and the client is usually
// gone by then.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError writes {"error": msg}.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}
