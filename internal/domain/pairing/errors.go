package pairing

import "errors"

// Sentinel kinds for pairing errors.
var (
	ErrUnsupportedPlayerCount = errors.New("unsupported player count")
)
