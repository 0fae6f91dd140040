package errors

import (
	"errors"
	"fmt"
)

// Common error types for the auth client
var (
	// Session errors
	ErrNotLoggedIn     = errors.New("not logged in")
	ErrSessionEnded    = errors.New("session ended")
	ErrRefreshFailed   = errors.New("token refresh failed")
	ErrLoginFailed     = errors.New("login failed")
	ErrLoginSuperseded = errors.New("login superseded by a newer attempt")

	// Storage errors
	ErrKeyNotFound = errors.New("key not found")

	// Request errors
	ErrInvalidRequest = errors.New("invalid request")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
