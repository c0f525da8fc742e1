// Package standings folds a season of round-robin tournaments into per-player
// weekly wins and cumulative totals.
package standings

import (
	"sort"
	"strings"
	"time"

	"github.com/okian/duelkit/internal/domain/bracket"
	"github.com/okian/duelkit/internal/domain/names"
)

// Week identifies one tournament of the season, in chronological order.
type Week struct {
	Index int       `json:"index"`
	Name  string    `json:"name"`
	Date  time.Time `json:"date"`
}

// Record is one player's season. Weekly has one entry per week; Cumulative
// starts with 0 and has one more entry than Weekly.
type Record struct {
	Player     string `json:"player"`
	Weekly     []int  `json:"weekly"`
	Cumulative []int  `json:"cumulative"`
	Total      int    `json:"total"`
}

// Season is the aggregate of every tournament in a category.
type Season struct {
	Weeks   []Week   `json:"weeks"`
	Records []Record `json:"records"`
}

// Leader returns the record with the most wins, if any.
func (s Season) Leader() (Record, bool) {
	if len(s.Records) == 0 {
		return Record{}, false
	}
	return s.Records[0], true
}

// Find returns the record of player, compared case-insensitively.
func (s Season) Find(player string) (Record, bool) {
	for _, r := range s.Records {
		if names.Equal(r.Player, player) {
			return r, true
		}
	}
	return Record{}, false
}

// Order sorts tournaments chronologically. Tournaments without a date go last
// and ties are broken by name so the order is stable across runs.
func Order(ts []*bracket.Tournament) []*bracket.Tournament {
	out := append([]*bracket.Tournament(nil), ts...)
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].Date, out[j].Date
		switch {
		case di.IsZero() != dj.IsZero():
			return dj.IsZero()
		case !di.Equal(dj):
			return di.Before(dj)
		default:
			return out[i].Name < out[j].Name
		}
	})
	return out
}

// Members keeps the tournaments of the season whose name prefix is prefix.
// A tournament that records its category belongs to the season only when that
// category maps to prefix. Older tournaments without one are dropped when a
// longer recorded category, such as "Locals_Advanced_" for "Locals_", also
// claims their name. A non-zero categoryID drops tournaments posted under a
// different category id.
func Members(ts []*bracket.Tournament, prefix string, categoryID uint64) []*bracket.Tournament {
	var longer []string
	seen := map[string]bool{}
	for _, t := range ts {
		p, ok := categoryPrefix(t)
		if !ok || p == prefix || seen[p] || !strings.HasPrefix(p, prefix) {
			continue
		}
		seen[p] = true
		longer = append(longer, p)
	}

	out := make([]*bracket.Tournament, 0, len(ts))
	for _, t := range ts {
		if !strings.HasPrefix(t.Name, prefix) {
			continue
		}
		if categoryID != 0 && t.Message.CategoryID != 0 && t.Message.CategoryID != categoryID {
			continue
		}
		if p, ok := categoryPrefix(t); ok {
			if p == prefix {
				out = append(out, t)
			}
			continue
		}
		if !claimed(t.Name, longer) {
			out = append(out, t)
		}
	}
	return out
}

func categoryPrefix(t *bracket.Tournament) (string, bool) {
	if t.Category == "" {
		return "", false
	}
	p, err := names.SeasonPrefix(t.Category)
	return p, err == nil
}

func claimed(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Aggregate computes season standings from the tournaments of one category.
// Every player named in any label counts, including players with no wins, and
// a player absent from a week scores 0 for that week.
func Aggregate(ts []*bracket.Tournament) Season {
	ordered := Order(ts)
	weeks := make([]Week, len(ordered))

	type tally struct {
		display string
		weekly  []int
	}
	byKey := map[string]*tally{}
	player := func(name string) *tally {
		key := names.Normalize(name)
		p, ok := byKey[key]
		if !ok {
			p = &tally{display: strings.TrimSpace(name), weekly: make([]int, len(ordered))}
			byKey[key] = p
		}
		return p
	}

	for w, t := range ordered {
		weeks[w] = Week{Index: w + 1, Name: t.Name, Date: t.Date}
		for _, r := range t.Rounds {
			for _, m := range r.Matches {
				if a, b, ok := names.SplitLabel(m.Label); ok {
					player(a)
					player(b)
				}
				if m.Result != "" {
					player(m.Result).weekly[w]++
				}
			}
		}
	}

	records := make([]Record, 0, len(byKey))
	for _, p := range byKey {
		cum := make([]int, len(p.weekly)+1)
		for i, wins := range p.weekly {
			cum[i+1] = cum[i] + wins
		}
		records = append(records, Record{
			Player:     p.display,
			Weekly:     p.weekly,
			Cumulative: cum,
			Total:      cum[len(cum)-1],
		})
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Total != records[j].Total {
			return records[i].Total > records[j].Total
		}
		return names.Normalize(records[i].Player) < names.Normalize(records[j].Player)
	})
	return Season{Weeks: weeks, Records: records}
}
