package api

import (
	"errors"
	"fmt"
)

// AuthError signals rejected or expired credentials. Callers treat it as
// "re-authenticate or give up", never as a transient condition.
type AuthError struct {
	Message string
	Cause   error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Cause }

// APIError signals a transport or API-level problem that may succeed on
// retry.
type APIError struct {
	Message string
	Cause   error
}

func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *APIError) Unwrap() error { return e.Cause }

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

func authErrorf(cause error, format string, args ...any) *AuthError {
	return &AuthError{Message: fmt.Sprintf(format, args...), Cause: cause}
}

func apiErrorf(cause error, format string, args ...any) *APIError {
	return &APIError{Message: fmt.Sprintf(format, args...), Cause: cause}
}
