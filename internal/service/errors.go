package service

import "errors"

// Operation failures map onto this taxonomy so transports can translate
// them uniformly.
var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrForbidden            = errors.New("forbidden")
	ErrConflict             = errors.New("conflict")
	ErrConfirmationMismatch = errors.New("confirmation mismatch")
	ErrUpstreamUnavailable  = errors.New("upstream unavailable")
)
