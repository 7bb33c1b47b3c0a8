package utils

import (
	"encoding/json"
	"net/http"
)

// RespondJSON writes data as a JSON body with the given status.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes {"error": message}.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"error": message})
}

// RespondFieldError writes {"error": message, "field": field}.
func RespondFieldError(w http.ResponseWriter, status int, field, message string) {
	body := map[string]string{"error": message}
	if field != "" {
		body["field"] = field
	}
	RespondJSON(w, status, body)
}
