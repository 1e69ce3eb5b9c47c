package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidVIN is returned when a VIN is not exactly 17 characters
	ErrInvalidVIN = errors.New("invalid VIN")

	// ErrNotFound is returned when a store key does not exist
	ErrNotFound = errors.New("not found")

	// ErrNotAuthenticated is returned when an authenticated call has no usable token
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrTokenExpired is returned when the bearer token's exp claim has elapsed
	ErrTokenExpired = errors.New("token has expired")

	// ErrSessionExpired is returned when a signing session is past its window
	ErrSessionExpired = errors.New("signing session has expired")

	// ErrSignerNotConfigured is returned when signing is requested without credentials
	ErrSignerNotConfigured = errors.New("signing service not configured")

	// ErrNoOracle is returned when an oracle-scoped call is made with no oracle selected
	ErrNoOracle = errors.New("no oracle selected")

	// ErrUnknownPermission is returned when a permission name cannot be resolved
	ErrUnknownPermission = errors.New("unknown permission")
)

// APIError is the uniform failure shape for backend calls: a required
// human-readable message plus the HTTP status when one was received.
type APIError struct {
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
	}
	return e.Message
}
