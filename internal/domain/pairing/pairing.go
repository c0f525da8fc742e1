// Package pairing holds the fixed round-robin pairing tables for 3 to 8 players.
//
// Each table is literal data: rows are rounds, entries are pairs of
// zero-based player indices. The tables guarantee that every unordered pair
// meets exactly once and that no player is scheduled twice in one round.
package pairing

import "fmt"

// Supported player counts.
const (
	MinPlayers = 3
	MaxPlayers = 8
)

// Pair is a single match between two player indices.
type Pair [2]int

// Plan is the ordered schedule for one player count.
type Plan struct {
	Players int
	Rounds  [][]Pair
}

// RoundCount returns the number of rounds in the plan.
func (p Plan) RoundCount() int { return len(p.Rounds) }

// MatchesPerRound returns the number of matches scheduled in each round.
func (p Plan) MatchesPerRound() int {
	if len(p.Rounds) == 0 {
		return 0
	}
	return len(p.Rounds[0])
}

// MatchCount returns the total number of matches in the plan.
func (p Plan) MatchCount() int {
	n := 0
	for _, r := range p.Rounds {
		n += len(r)
	}
	return n
}

var tables = map[int][][]Pair{
	3: {
		{{0, 1}},
		{{1, 2}},
		{{2, 0}},
	},
	4: {
		{{2, 3}},
		{{0, 1}},
		{{1, 2}},
		{{3, 0}},
		{{1, 3}},
		{{2, 0}},
	},
	5: {
		{{0, 3}, {1, 2}},
		{{2, 0}, {3, 4}},
		{{4, 2}, {0, 1}},
		{{1, 4}, {2, 3}},
		{{3, 1}, {4, 0}},
	},
	6: {
		{{1, 0}, {2, 5}, {3, 4}},
		{{2, 3}, {5, 0}, {1, 4}},
		{{5, 3}, {1, 2}, {0, 4}},
		{{3, 0}, {4, 2}, {5, 1}},
		{{4, 5}, {0, 2}, {3, 1}},
	},
	7: {
		{{0, 5}, {1, 4}, {2, 3}},
		{{3, 1}, {4, 0}, {5, 6}},
		{{1, 6}, {2, 5}, {3, 4}},
		{{4, 2}, {5, 1}, {6, 0}},
		{{2, 0}, {3, 6}, {4, 5}},
		{{5, 3}, {6, 2}, {0, 1}},
		{{0, 3}, {1, 2}, {4, 6}},
	},
	8: {
		{{1, 0}, {2, 7}, {3, 6}, {4, 5}},
		{{2, 3}, {0, 6}, {7, 5}, {1, 4}},
		{{5, 1}, {6, 7}, {3, 0}, {4, 2}},
		{{6, 4}, {7, 3}, {1, 2}, {5, 0}},
		{{0, 2}, {3, 1}, {4, 7}, {5, 6}},
		{{3, 4}, {7, 0}, {1, 6}, {2, 5}},
		{{6, 2}, {7, 1}, {0, 4}, {5, 3}},
	},
}

// Generate returns the pairing plan for playerCount players.
// The returned plan is a copy; callers may modify it freely.
func Generate(playerCount int) (Plan, error) {
	table, ok := tables[playerCount]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %d (supported %d-%d)", ErrUnsupportedPlayerCount, playerCount, MinPlayers, MaxPlayers)
	}
	rounds := make([][]Pair, len(table))
	for i, r := range table {
		rounds[i] = append([]Pair(nil), r...)
	}
	return Plan{Players: playerCount, Rounds: rounds}, nil
}

// Supported reports whether a plan exists for playerCount.
func Supported(playerCount int) bool {
	_, ok := tables[playerCount]
	return ok
}
