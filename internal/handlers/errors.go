package handlers

import (
	"net/http"

	"screenshot-lambda/internal/orchestrator"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// statusFor maps an invocation error to an HTTP status
func statusFor(err error) int {
	switch {
	case orchestrator.IsTimeout(err):
		return http.StatusGatewayTimeout
	case orchestrator.IsRenderFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorTitle(status int) string {
	switch status {
	case http.StatusGatewayTimeout:
		return "Render timed out"
	case http.StatusBadGateway:
		return "Render failed"
	default:
		return "Internal server error"
	}
}
