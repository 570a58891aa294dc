package common

import (
	"encoding/json"
	"net/http"
)

// InternalErrorMessage is the only message surfaced for unexpected failures.
const InternalErrorMessage = "Internal server error"

// ErrorBody is the error payload returned by the API. Error holds the human
// readable reason, Code the stable discriminant clients can switch on.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSON writes the provided value to the response writer as JSON.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError renders an error response using the canonical error shape.
func JSONError(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorBody{Error: message, Code: code})
}

// InternalError renders a generic 500 without leaking the cause.
func InternalError(w http.ResponseWriter) {
	JSONError(w, http.StatusInternalServerError, "INTERNAL", InternalErrorMessage)
}
