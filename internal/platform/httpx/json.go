package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the structured payload for every non-2xx API response.
// Error names the error class; Code narrows it when the class has variants
// (e.g. ConflictError/AlreadyRunning).
type ErrorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes an ErrorBody with the given status code.
func WriteError(w http.ResponseWriter, code int, kind, detail, message string) {
	WriteJSON(w, code, ErrorBody{Error: kind, Code: detail, Message: message})
}

// DecodeJSON decodes the request body into v. An empty body is reported as an error.
func DecodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(v)
}

const maxBodyBytes = 1 << 20
