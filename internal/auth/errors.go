package auth

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized    = errors.New("authentication required")
	ErrForbidden       = errors.New("insufficient role permissions")
	ErrUnknownRole     = errors.New("unknown role")
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidCredentials is an ErrUnauthorized.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid username, password, or role", ErrUnauthorized)
)
