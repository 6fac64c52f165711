package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAuthExpired = errors.New("authentication expired")
	ErrNotFound    = errors.New("resource not found")
	ErrForbidden   = errors.New("action not permitted")
	ErrValidation  = errors.New("invalid input")
	ErrNetwork     = errors.New("network failure")

	// ErrNoRefreshToken wraps ErrAuthExpired: a session without a refresh
	// token cannot be renewed, so callers treat both the same way.
	ErrNoRefreshToken = fmt.Errorf("%w: no refresh token available", ErrAuthExpired)
)
