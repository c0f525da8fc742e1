// Package bracket models a round-robin tournament and the result state
// machine of its matches.
//
// A tournament's structure is fixed once built; only match results change.
// A match is Pending while its result is empty and Resolved once a winner
// taken from its own label has been stored.
package bracket

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/duelkit/internal/domain/names"
	"github.com/okian/duelkit/internal/domain/pairing"
)

// DefaultTitle is the heading stored with every new tournament.
const DefaultTitle = "Round Robin Bracket:"

// SuggestLimit caps autocomplete suggestions.
const SuggestLimit = 25

// Match is one pairing and its result. Result is empty or one of the label names.
type Match struct {
	Label  string `json:"label"`
	Result string `json:"result"`
}

// Resolved reports whether a winner has been recorded.
func (m Match) Resolved() bool { return m.Result != "" }

// Round is a 1-based group of simultaneous matches.
type Round struct {
	Index   int     `json:"index"`
	Matches []Match `json:"matches"`
}

// MessageRef points at the chat message that renders the bracket.
type MessageRef struct {
	GuildID    uint64 `json:"guild_id"`
	CategoryID uint64 `json:"category_id"`
	ChannelID  uint64 `json:"channel_id"`
	MessageID  uint64 `json:"message_id"`
}

// Attached reports whether a message has been recorded.
func (m MessageRef) Attached() bool { return m.ChannelID != 0 || m.MessageID != 0 }

// Tournament is the persisted state of one round robin.
type Tournament struct {
	Name     string     `json:"name"`
	Title    string     `json:"title"`
	Category string     `json:"category,omitempty"`
	Rounds   []Round    `json:"rounds"`
	Message  MessageRef `json:"message"`
	Date     time.Time  `json:"date"`
	Revision int64      `json:"revision"`
}

// MatchRef locates a match inside a tournament. Round and Match are 1-based.
type MatchRef struct {
	Round  int    `json:"round"`
	Match  int    `json:"match"`
	Label  string `json:"label"`
	Result string `json:"result"`
}

// Row is one line of the season export.
type Row struct {
	Match  string
	Result string
}

// Build creates a tournament named name for the already shuffled players.
// Every match starts Pending.
func Build(name string, players []string) (*Tournament, error) {
	if err := names.ValidateKey(name); err != nil {
		return nil, err
	}
	plan, err := pairing.Generate(len(players))
	if err != nil {
		return nil, err
	}
	roster := make([]string, len(players))
	seen := make(map[string]struct{}, len(players))
	for i, p := range players {
		p = strings.TrimSpace(p)
		if err := names.ValidatePlayer(p); err != nil {
			return nil, fmt.Errorf("%w: position %d: %w", ErrInvalidPlayer, i+1, err)
		}
		key := names.Normalize(p)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePlayer, p)
		}
		seen[key] = struct{}{}
		roster[i] = p
	}

	t := &Tournament{
		Name:   name,
		Title:  DefaultTitle,
		Rounds: make([]Round, plan.RoundCount()),
	}
	for ri, pairs := range plan.Rounds {
		matches := make([]Match, len(pairs))
		for mi, pr := range pairs {
			matches[mi] = Match{Label: names.Label(roster[pr[0]], roster[pr[1]])}
		}
		t.Rounds[ri] = Round{Index: ri + 1, Matches: matches}
	}
	return t, nil
}

// Players returns the distinct player names in order of first appearance.
func (t *Tournament) Players() []string {
	var out []string
	seen := map[string]struct{}{}
	add := func(n string) {
		k := names.Normalize(n)
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, n)
	}
	for _, r := range t.Rounds {
		for _, m := range r.Matches {
			if a, b, ok := names.SplitLabel(m.Label); ok {
				add(a)
				add(b)
			}
		}
	}
	return out
}

// MatchCount returns the number of matches in the tournament.
func (t *Tournament) MatchCount() int {
	n := 0
	for _, r := range t.Rounds {
		n += len(r.Matches)
	}
	return n
}

// Pending returns the number of matches without a result.
func (t *Tournament) Pending() int {
	n := 0
	for _, r := range t.Rounds {
		for _, m := range r.Matches {
			if !m.Resolved() {
				n++
			}
		}
	}
	return n
}

// IsComplete reports whether every match has a result.
func (t *Tournament) IsComplete() bool {
	for _, r := range t.Rounds {
		for _, m := range r.Matches {
			if !m.Resolved() {
				return false
			}
		}
	}
	return true
}

// ExportRows flattens the tournament in round then match order.
func (t *Tournament) ExportRows() []Row {
	rows := make([]Row, 0, t.MatchCount())
	for _, r := range t.Rounds {
		for _, m := range r.Matches {
			rows = append(rows, Row{Match: m.Label, Result: m.Result})
		}
	}
	return rows
}

// AttachMessage records the message rendering the bracket. Once a channel is
// set only the message id may change.
func (t *Tournament) AttachMessage(ref MessageRef) error {
	if ref.ChannelID == 0 || ref.MessageID == 0 {
		return fmt.Errorf("%w: channel and message ids are required", ErrInvalidMessage)
	}
	if t.Message.ChannelID != 0 && t.Message.ChannelID != ref.ChannelID {
		return fmt.Errorf("%w: bracket lives in channel %d", ErrInvalidMessage, t.Message.ChannelID)
	}
	if ref.GuildID == 0 {
		ref.GuildID = t.Message.GuildID
	}
	if ref.CategoryID == 0 {
		ref.CategoryID = t.Message.CategoryID
	}
	t.Message = ref
	return nil
}

// Clone returns a deep copy.
func (t *Tournament) Clone() *Tournament {
	c := *t
	c.Rounds = make([]Round, len(t.Rounds))
	for i, r := range t.Rounds {
		c.Rounds[i] = Round{Index: r.Index, Matches: append([]Match(nil), r.Matches...)}
	}
	return &c
}

func (t *Tournament) match(ref MatchRef) *Match {
	return &t.Rounds[ref.Round-1].Matches[ref.Match-1]
}

func (t *Tournament) each(fn func(ref MatchRef) bool) {
	for ri, r := range t.Rounds {
		for mi, m := range r.Matches {
			if !fn(MatchRef{Round: ri + 1, Match: mi + 1, Label: m.Label, Result: m.Result}) {
				return
			}
		}
	}
}
