// Package httpx carries the API error envelope shared with the backend
// and helpers for decoding it on the consuming side.
package httpx

import (
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// APIError is a non-success response from the backend.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Retryable reports whether the failure is worth retrying: server-side
// errors and rate limiting, not client mistakes.
func (e *APIError) Retryable() bool {
	return e.Status >= fiber.StatusInternalServerError || e.Status == fiber.StatusTooManyRequests
}

// DecodeError turns a non-2xx response body into an APIError. Bodies
// that are not the standard envelope still produce a usable error.
func DecodeError(status int, body []byte) error {
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Error == "" {
		return &APIError{Status: status, Message: string(body)}
	}
	return &APIError{
		Status:    status,
		Code:      resp.Code,
		Message:   resp.Error,
		RequestID: resp.RequestID,
	}
}
