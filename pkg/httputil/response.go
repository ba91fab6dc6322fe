// Package httputil provides HTTP handler utilities for consistent JSON
// encoding and the stable machine-readable error codes the API exposes.
package httputil

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 OK response with JSON data.
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes a 201 Created response with JSON data.
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteErrorCode writes `{"error": code}` with the given status. Codes are
// stable machine-readable strings (e.g. "not_found", "title_required") that
// clients match on, never free-form messages.
func WriteErrorCode(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": code}) //nolint:errcheck
}

// WriteValidationError writes a 400 with the given code.
func WriteValidationError(w http.ResponseWriter, code string) {
	WriteErrorCode(w, http.StatusBadRequest, code)
}

// WriteNotFound writes a 404 with the given code.
func WriteNotFound(w http.ResponseWriter, code string) {
	WriteErrorCode(w, http.StatusNotFound, code)
}

// WriteUnauthorized writes a 401 with the given code.
func WriteUnauthorized(w http.ResponseWriter, code string) {
	WriteErrorCode(w, http.StatusUnauthorized, code)
}

// WriteTooManyRequests writes a 429 with the given code.
func WriteTooManyRequests(w http.ResponseWriter, code string) {
	WriteErrorCode(w, http.StatusTooManyRequests, code)
}

// WriteInternalError writes a 500 with the given code.
func WriteInternalError(w http.ResponseWriter, code string) {
	WriteErrorCode(w, http.StatusInternalServerError, code)
}
