package remote

import (
	"errors"
	"fmt"
)

// ErrUnauthorized indicates the backend rejected the caller's identity
var ErrUnauthorized = errors.New("favorites backend rejected the user")

// ErrRateLimited indicates the backend rate limit was exceeded
var ErrRateLimited = errors.New("favorites backend rate limit exceeded")

// ErrNoUser indicates a call was made without a user in the context
var ErrNoUser = errors.New("no user in context")

// ServerError represents a 5xx error from the favorites backend
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("favorites backend error: HTTP %d", e.StatusCode)
}
