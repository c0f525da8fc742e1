package repository

import "errors"

// Sentinel kinds for tournament store errors.
var (
	ErrNotFound      = errors.New("tournament not found")
	ErrConflict      = errors.New("tournament was modified concurrently")
	ErrMalformed     = errors.New("malformed tournament document")
	ErrMalformedDate = errors.New("malformed tournament date")
	ErrInvalidKey    = errors.New("invalid tournament key")
)
