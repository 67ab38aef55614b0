package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/reelx/internal/shared"
)

// maxMessageLen caps how much raw body text is used as a message.
const maxMessageLen = 300

// APIError is the single failure shape produced by the [Pipeline].
//
// Status is zero for network-level failures. Body keeps the raw response for callers that
// need structured detail such as per-field validation errors.
type APIError struct {
	Status  int
	Message string
	Body    []byte
	err     error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("network error: %s", e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// Unwrap exposes [shared.ErrNetwork] or [shared.ErrAPIRequest] along with the cause.
func (e *APIError) Unwrap() error { return e.err }

// UserMessage returns the server-provided message. Network failures leave it to
// [shared.Message] to pick a fixed wording.
func (e *APIError) UserMessage() string {
	if e.Status == 0 {
		return ""
	}
	return e.Message
}

// IsUnauthorized reports whether err is an HTTP 401 from the server.
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

// StatusOf returns the HTTP status carried by err, or zero.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func newNetworkError(cause error) *APIError {
	return &APIError{Message: cause.Error(), err: fmt.Errorf("%w: %w", shared.ErrNetwork, cause)}
}

func newHTTPError(status int, body []byte) *APIError {
	return &APIError{
		Status:  status,
		Message: extractMessage(status, body),
		Body:    body,
		err:     shared.ErrAPIRequest,
	}
}

// extractMessage picks the human-readable message from a failure body, preferring the
// conventional detail, message and error fields, then the raw text, then the status line.
func extractMessage(status int, body []byte) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err == nil {
		for _, key := range []string{"detail", "message", "error"} {
			raw, ok := fields[key]
			if !ok {
				continue
			}
			if msg := rawMessage(raw); msg != "" {
				return msg
			}
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		if len(text) > maxMessageLen {
			text = text[:maxMessageLen] + "..."
		}
		return text
	}

	return strings.TrimSpace(fmt.Sprintf("HTTP %d %s", status, http.StatusText(status)))
}

func rawMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return ""
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return ""
	}
	return buf.String()
}
