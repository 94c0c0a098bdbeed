package web

// errors.go provides unified error response handling for the API.
//
// Every error is logged with its technical detail and the request id, then
// answered with the user-facing message from core.MapError. The status code
// follows from the error code so handlers never choose one themselves.

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/JonMunkholm/natijti/internal/core"
	"github.com/JonMunkholm/natijti/internal/logging"
)

// ErrorBody is the machine and human readable part of an error response.
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Action  string            `json:"action,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// paramError reports rejected request parameters, field name to reason.
// It unwraps to core.ErrInvalidParameter.
type paramError struct {
	fields map[string]string
}

func invalidParam(field, reason string) error {
	return &paramError{fields: map[string]string{field: reason}}
}

func (e *paramError) Error() string {
	names := make([]string, 0, len(e.fields))
	for k := range e.fields {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = k + ": " + e.fields[k]
	}
	return fmt.Sprintf("%s: %s", core.ErrInvalidParameter, strings.Join(parts, ", "))
}

func (e *paramError) Unwrap() error { return core.ErrInvalidParameter }

// statusFor maps an error code to its HTTP status.
func statusFor(code string) int {
	switch {
	case code == "FILE001":
		return http.StatusRequestEntityTooLarge
	case strings.HasPrefix(code, "FILE"), strings.HasPrefix(code, "VAL"):
		return http.StatusBadRequest
	case code == "SES001", code == "RES001", code == "TSK003":
		return http.StatusNotFound
	case code == "TSK002", code == "RATE001":
		return http.StatusTooManyRequests
	case code == "DB003":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes its user-facing form.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	msg := core.MapError(err)
	status := statusFor(msg.Code)

	logger := logging.FromContext(r.Context()).With(
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	)
	if status >= http.StatusInternalServerError {
		logger.Error("request error")
	} else {
		logger.Warn("request rejected")
	}

	body := ErrorBody{Code: msg.Code, Message: msg.Message, Action: msg.Action}
	var pe *paramError
	if errors.As(err, &pe) {
		body.Fields = pe.fields
	}
	writeJSON(w, status, ErrorResponse{Error: body})
}
