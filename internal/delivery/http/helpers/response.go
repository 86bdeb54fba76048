package helpers

import (
	"encoding/json"
	"net/http"
)

// Machine-readable error codes carried in APIError.Code.
const (
	ErrCodeBadRequest    = "bad_request"
	ErrCodeUnauthorized  = "unauthorized"
	ErrCodeForbidden     = "forbidden"
	ErrCodeNotFound      = "not_found"
	ErrCodeConflict      = "conflict"
	ErrCodeLocked        = "locked"
	ErrCodeTooLarge      = "payload_too_large"
	ErrCodeUnsupported   = "unsupported_media_type"
	ErrCodeInternalError = "internal_error"
)

// APIError describes why a request failed.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIResponse wraps every JSON body as {"data": ..., "error": ...}.
// Exactly one side is non-null, except for partial failures written by WriteJSONErrorWithData.
type APIResponse struct {
	Data  any       `json:"data"`
	Error *APIError `json:"error"`
}

func writeEnvelope(w http.ResponseWriter, status int, body APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteJSONSuccess writes data with a null error.
func WriteJSONSuccess(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, APIResponse{Data: data})
}

// WriteJSONError writes a null data field and the given error.
func WriteJSONError(w http.ResponseWriter, status int, code, message string) {
	writeEnvelope(w, status, APIResponse{Error: &APIError{Code: code, Message: message}})
}

// WriteJSONErrorWithData reports a failure that still left a resource behind, such as a partially applied sale.
func WriteJSONErrorWithData(w http.ResponseWriter, status int, code, message string, data any) {
	writeEnvelope(w, status, APIResponse{Data: data, Error: &APIError{Code: code, Message: message}})
}
