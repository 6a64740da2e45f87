package httpx

import (
	"encoding/json"
	"net/http"
)

// Every handler except the root greeting answers JSON. Error bodies are a
// single {"error": message} object; storage messages pass through with no
// translation beyond the status code.

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// the status line is already gone, an encode failure has nowhere to go
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
