// Package common defines shared constants and sentinel errors used across
// the passvault client layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Identity-level errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrNoSession    = errors.New("no active session")

	// Generic service-level error.
	ErrInternal = errors.New("internal error")
)
