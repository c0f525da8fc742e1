package api

import (
	"errors"
	"net/http"

	"github.com/okian/duelkit/internal/adapters/chart"
	"github.com/okian/duelkit/internal/adapters/repository"
	service "github.com/okian/duelkit/internal/app"
	"github.com/okian/duelkit/internal/domain/bracket"
	"github.com/okian/duelkit/internal/domain/names"
	"github.com/okian/duelkit/internal/domain/pairing"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrCooldown   = errors.New("on cooldown")
)

// Error tags an underlying error with the operation that failed and, when
// known, the sentinel kind it maps to.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return e.Op + ": " + e.Err.Error()
	case e.Kind != nil:
		return e.Op + ": " + e.Kind.Error()
	default:
		return e.Op
	}
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Wrap tags err with op.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// WrapKind tags err with op and kind.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// classify maps an error to its HTTP status and response code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrCooldown):
		return http.StatusTooManyRequests, "cooldown"
	case errors.Is(err, bracket.ErrNotFound),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, bracket.ErrAlreadyResolved):
		return http.StatusConflict, "already_resolved"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, pairing.ErrUnsupportedPlayerCount),
		errors.Is(err, bracket.ErrInvalidWinner),
		errors.Is(err, bracket.ErrInvalidPlayer),
		errors.Is(err, bracket.ErrDuplicatePlayer),
		errors.Is(err, bracket.ErrInvalidMessage),
		errors.Is(err, names.ErrNoCategory),
		errors.Is(err, names.ErrInvalidName),
		errors.Is(err, repository.ErrInvalidKey),
		errors.Is(err, chart.ErrUnknownKind):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
