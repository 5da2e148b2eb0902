package http

import (
	"encoding/json"
	"net/http"
	"strings"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// headers are out; nothing left to report to the client
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// localeFrom picks the locale query parameter, then the primary
// Accept-Language tag.
func localeFrom(r *http.Request) string {
	if locale := r.URL.Query().Get("locale"); locale != "" {
		return strings.ToLower(locale)
	}
	accept := r.Header.Get("Accept-Language")
	if accept == "" {
		return ""
	}
	tag := strings.TrimSpace(strings.SplitN(accept, ",", 2)[0])
	tag = strings.SplitN(tag, ";", 2)[0]
	return strings.ToLower(strings.SplitN(tag, "-", 2)[0])
}
