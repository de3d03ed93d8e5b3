package domain

import "errors"

var (
	// ErrNotFound is returned by repositories when no record matches.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidPhone is returned when a phone number cannot be parsed
	// into canonical form. Matching strategies treat it as a missing
	// signal, not a failure.
	ErrInvalidPhone = errors.New("invalid phone number")

	// ErrUnknownPlatform is returned when a platform name has no link
	// column in the account schema.
	ErrUnknownPlatform = errors.New("unknown platform")
)
