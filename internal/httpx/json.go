// Package httpx holds the shared HTTP plumbing: JSON envelopes, error
// payloads, and server middleware.
package httpx

import (
	"encoding/json"
	"net/http"
)

// errorBody is the uniform error envelope: {"error":{"code","message"}}.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes v as the response body with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteData wraps v in the {"data": ...} envelope.
func WriteData(w http.ResponseWriter, code int, v any) {
	WriteJSON(w, code, map[string]any{"data": v})
}

// WriteError writes the uniform error envelope with a stable machine code
// and a human-readable message.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// DecodeJSON decodes the request body into dst. Unknown fields are allowed
// so clients may send extra fields.
func DecodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
