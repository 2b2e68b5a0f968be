// Package httputil holds small JSON response helpers shared by handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "caseflow/pkg/domain-errors"
)

// WriteJSON encodes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorBody is the wire shape for every error response. Reason carries the
// stable machine-readable code when the failure has one (access denials,
// transition rejections); Error is the coarse taxonomy code.
type ErrorBody struct {
	Error   string `json:"error"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// WriteError maps a coded domain error to an HTTP status and JSON body.
func WriteError(w http.ResponseWriter, err error) {
	WriteErrorReason(w, err, "")
}

// WriteErrorReason writes an error response including a stable reason code.
func WriteErrorReason(w http.ResponseWriter, err error, reason string) {
	code := dErrors.CodeOf(err)
	body := ErrorBody{Error: string(code), Reason: reason}
	var de *dErrors.Error
	if errors.As(err, &de) {
		body.Message = de.Message
	}
	WriteJSON(w, StatusFor(code), body)
}

// Decode parses the JSON request body into T and writes the 422 response
// itself on failure. Callers return immediately when ok is false.
func Decode[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed request body"))
		var zero T
		return zero, false
	}
	return req, true
}

// StatusFor maps an error code to an HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
