package storage

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrInvalidConfig = errors.New("invalid bucket configuration")
	ErrUpload        = errors.New("upload failed")
)
