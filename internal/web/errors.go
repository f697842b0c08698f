package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. Error is mapped via core.MapError to a user-friendly message and code
//  4. Technical error is logged with the request ID for correlation
//  5. The status code follows the error category

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/cardbook/internal/core"
	"github.com/JonMunkholm/cardbook/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its user-facing form as JSON.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	writeJSON(w, status, ErrorResponse{
		Error:   err.Error(),
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// statusFor picks the HTTP status for an export error.
func statusFor(err error) int {
	var (
		dirErr   *core.TransportError
		parseErr *core.ParseError
	)
	switch {
	case errors.Is(err, core.ErrExportInProgress):
		return http.StatusConflict
	case errors.As(err, &dirErr):
		return http.StatusBadGateway
	case errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
