package shared

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Session errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrSessionExpired   = fmt.Errorf("session expired, please log in again")
	ErrMFARequired      = fmt.Errorf("multi-factor verification required")

	// Transport errors
	ErrNetwork    = fmt.Errorf("network request failed")
	ErrCancelled  = fmt.Errorf("request cancelled")
	ErrTimeout    = fmt.Errorf("operation timed out")
	ErrAPIRequest = fmt.Errorf("API request failed")

	// Input validation errors
	ErrValidation      = fmt.Errorf("validation failed")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")

	// Domain errors
	ErrNotFound  = fmt.Errorf("not found")
	ErrDuplicate = fmt.Errorf("already exists")
	ErrDetached  = fmt.Errorf("consumer detached")
)

// userMessager is implemented by errors that carry a message meant for display.
type userMessager interface {
	UserMessage() string
}

// Message derives the string a consumer shows to the user for err.
//
// An expired session and cancellation always get fixed wording, even when they wrap an
// HTTP failure. Otherwise errors exposing a UserMessage win, then network failures, then
// err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrSessionExpired):
		return ErrSessionExpired.Error()
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return "request cancelled"
	}

	var um userMessager
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}

	if errors.Is(err, ErrNetwork) {
		return "could not reach the server, check your connection"
	}

	return err.Error()
}
