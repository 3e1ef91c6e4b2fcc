// Package domain holds shared domain types and sentinel errors.
package domain

import "errors"

// Sentinel errors returned by services and mapped to HTTP status codes by
// the HTTP adapter.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates the input failed validation.
	ErrValidation = errors.New("validation failed")

	// ErrUnsupported indicates a defined but unimplemented operation.
	ErrUnsupported = errors.New("unsupported operation")
)
