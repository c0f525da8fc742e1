package seasonsim

import (
	"strings"
	"unicode"

	"github.com/brianvoe/gofakeit/v7"
)

// generator draws rosters and outcomes from a seeded faker.
type generator struct {
	faker *gofakeit.Faker
}

func newGenerator(seed int64) *generator {
	return &generator{faker: gofakeit.New(uint64(seed))}
}

// roster returns size distinct single-word first names.
func (g *generator) roster(size int) []string {
	seen := make(map[string]struct{}, size)
	out := make([]string, 0, size)
	for len(out) < size {
		name := g.faker.FirstName()
		if !usable(name) {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out
}

// usable keeps names that survive the server's whitespace split unchanged.
func usable(name string) bool {
	if name == "" || strings.EqualFold(name, "vs") {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// field picks this week's players from the roster.
func (g *generator) field(roster []string, minPlayers, maxPlayers int) []string {
	n := g.faker.Number(minPlayers, maxPlayers)
	picked := append([]string(nil), roster...)
	g.faker.ShuffleStrings(picked)
	return picked[:n]
}

// firstWins decides whether the first named player takes the match.
func (g *generator) firstWins() bool {
	return g.faker.Bool()
}

// chance reports true with probability p.
func (g *generator) chance(p float64) bool {
	return p > 0 && g.faker.Float64Range(0, 1) < p
}
