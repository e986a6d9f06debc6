package middleware

import (
	"encoding/json"
	"net/http"
)

// errRateLimited is the machine code sent with 429 responses.
const errRateLimited = "RATE_LIMITED"

// writeJSONError writes an error body shaped like the handlers' MessageEnvelope.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]string{"error": msg}
	if status == http.StatusTooManyRequests {
		body["error_code"] = errRateLimited
	}
	_ = json.NewEncoder(w).Encode(body)
}
