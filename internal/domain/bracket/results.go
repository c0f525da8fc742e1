package bracket

import (
	"fmt"
	"strings"

	"github.com/okian/duelkit/internal/domain/names"
)

// Policy decides what happens when a Resolved match is reported again with a
// different winner.
type Policy int

const (
	// AllowCorrections overwrites the previous winner.
	AllowCorrections Policy = iota
	// RejectCorrections keeps the first recorded winner.
	RejectCorrections
)

// Outcome describes the effect of a Resolve call.
type Outcome struct {
	Ref      MatchRef `json:"match"`
	Previous string   `json:"previous,omitempty"`
	Changed  bool     `json:"changed"`
	Complete bool     `json:"complete"`
}

// Corrected reports whether a previously recorded winner was replaced.
func (o Outcome) Corrected() bool { return o.Changed && o.Previous != "" }

// FindMatch returns the first match, in round then match order, whose label
// contains text. Comparison is case-insensitive and ignores surrounding space.
func (t *Tournament) FindMatch(text string) (MatchRef, error) {
	if strings.TrimSpace(text) == "" {
		return MatchRef{}, fmt.Errorf("%w: empty query", ErrNotFound)
	}
	var found MatchRef
	ok := false
	t.each(func(ref MatchRef) bool {
		if names.Contains(ref.Label, text) {
			found, ok = ref, true
			return false
		}
		return true
	})
	if !ok {
		return MatchRef{}, fmt.Errorf("%w: %q", ErrNotFound, strings.TrimSpace(text))
	}
	return found, nil
}

// Suggest lists up to limit matches whose label contains text, for
// autocomplete. An empty text lists Pending matches first.
func (t *Tournament) Suggest(text string, limit int) []MatchRef {
	if limit <= 0 || limit > SuggestLimit {
		limit = SuggestLimit
	}
	out := make([]MatchRef, 0, limit)
	if strings.TrimSpace(text) == "" {
		var resolved []MatchRef
		t.each(func(ref MatchRef) bool {
			if ref.Result == "" {
				out = append(out, ref)
			} else {
				resolved = append(resolved, ref)
			}
			return true
		})
		out = append(out, resolved...)
		if len(out) > limit {
			out = out[:limit]
		}
		return out
	}
	t.each(func(ref MatchRef) bool {
		if names.Contains(ref.Label, text) {
			out = append(out, ref)
		}
		return len(out) < limit
	})
	return out
}

// Lookup finds a match by its exact label, ignoring case and surrounding space.
func (t *Tournament) Lookup(label string) (MatchRef, error) {
	var found MatchRef
	ok := false
	t.each(func(ref MatchRef) bool {
		if names.Equal(ref.Label, label) {
			found, ok = ref, true
			return false
		}
		return true
	})
	if !ok {
		return MatchRef{}, fmt.Errorf("%w: %q", ErrNotFound, strings.TrimSpace(label))
	}
	return found, nil
}

// Candidates returns the two names a winner can be chosen from.
func (t *Tournament) Candidates(label string) ([2]string, error) {
	ref, err := t.Lookup(label)
	if err != nil {
		return [2]string{}, err
	}
	a, b, ok := names.SplitLabel(ref.Label)
	if !ok {
		return [2]string{}, fmt.Errorf("%w: malformed label %q", ErrNotFound, ref.Label)
	}
	return [2]string{a, b}, nil
}

// Resolve records winner for the match labeled label. The winner must be one
// of the two names in the label and is stored in the label's spelling.
// Reporting the same winner again is a no-op.
func (t *Tournament) Resolve(label, winner string, policy Policy) (Outcome, error) {
	ref, err := t.Lookup(label)
	if err != nil {
		return Outcome{}, err
	}
	a, b, ok := names.SplitLabel(ref.Label)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: malformed label %q", ErrNotFound, ref.Label)
	}
	var canonical string
	switch {
	case names.Equal(winner, a):
		canonical = a
	case names.Equal(winner, b):
		canonical = b
	default:
		return Outcome{}, fmt.Errorf("%w: %q is not in %q", ErrInvalidWinner, strings.TrimSpace(winner), ref.Label)
	}

	m := t.match(ref)
	out := Outcome{Ref: ref}
	switch {
	case m.Result == canonical:
	case m.Result != "" && policy == RejectCorrections:
		return Outcome{}, fmt.Errorf("%w: %q already won by %q", ErrAlreadyResolved, ref.Label, m.Result)
	default:
		out.Previous = m.Result
		out.Changed = true
		m.Result = canonical
	}
	out.Ref.Result = m.Result
	out.Complete = t.IsComplete()
	return out, nil
}

// Cancel abandons a pending report for label. It only checks that the match
// exists; no state changes.
func (t *Tournament) Cancel(label string) (MatchRef, error) {
	return t.Lookup(label)
}
