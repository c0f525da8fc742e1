package names

import "errors"

// Sentinel kinds for name errors.
var (
	ErrNoCategory  = errors.New("channel has no category")
	ErrInvalidName = errors.New("invalid name")
)
