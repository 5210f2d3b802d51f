// Package httpx provides the HTTP handlers and router for the quiz API.
package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// Request bodies on the JSON API are small credential and session payloads.
const maxRequestBody = 64 << 10

// DecodeJSON decodes the request body into dst, rejecting unknown fields and
// oversized bodies. Returns false after writing the error response itself.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return false
	}
	return true
}

// WriteJSON encodes v to a buffer first so an encoding failure never leaves a
// half-written response on the wire.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Client disconnects surface here; nothing left to do.
		return
	}
}

// ErrorParams groups the fields of a JSON error response.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
}

// WriteError writes a JSON error body with a stable machine code and a
// human-readable message.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	WriteJSON(w, p.Code, map[string]string{"error": p.ErrCode, "message": p.Err.Error()})
}
