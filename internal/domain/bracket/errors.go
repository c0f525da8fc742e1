package bracket

import "errors"

// Sentinel kinds for bracket errors. These allow errors.Is from callers.
var (
	ErrNotFound        = errors.New("match not found")
	ErrInvalidWinner   = errors.New("winner is not a player of the match")
	ErrAlreadyResolved = errors.New("match already resolved")
	ErrInvalidPlayer   = errors.New("invalid player")
	ErrDuplicatePlayer = errors.New("duplicate player")
	ErrInvalidMessage  = errors.New("invalid message reference")
)
