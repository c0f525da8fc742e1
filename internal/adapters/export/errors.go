package export

import "errors"

// Sentinel kinds for export errors.
var (
	ErrInvalidPath = errors.New("invalid export path")
)
