package seasonsim

import (
	"fmt"
	"strings"
)

// verify checks the season standings against what the simulation reported.
func verify(s *season, weeks int, expected map[string]int) error {
	if len(s.Weeks) != weeks {
		return fmt.Errorf("%w: %d weeks in standings, played %d", ErrVerify, len(s.Weeks), weeks)
	}

	seen := make(map[string]struct{}, len(s.Records))
	for _, r := range s.Records {
		key := strings.ToLower(r.Player)
		seen[key] = struct{}{}

		if len(r.Weekly) != weeks || len(r.Cumulative) != weeks+1 {
			return fmt.Errorf("%w: %s has %d weekly and %d cumulative points", ErrVerify, r.Player, len(r.Weekly), len(r.Cumulative))
		}
		if r.Cumulative[0] != 0 {
			return fmt.Errorf("%w: %s starts the season at %d", ErrVerify, r.Player, r.Cumulative[0])
		}
		for i := 1; i < len(r.Cumulative); i++ {
			if r.Cumulative[i] != r.Cumulative[i-1]+r.Weekly[i-1] {
				return fmt.Errorf("%w: %s cumulative wins break at week %d", ErrVerify, r.Player, i)
			}
			if r.Cumulative[i] < r.Cumulative[i-1] {
				return fmt.Errorf("%w: %s cumulative wins decrease at week %d", ErrVerify, r.Player, i)
			}
		}
		if last := r.Cumulative[weeks]; last != r.Total {
			return fmt.Errorf("%w: %s ends at %d but totals %d", ErrVerify, r.Player, last, r.Total)
		}
		if want := expected[key]; r.Total != want {
			return fmt.Errorf("%w: %s has %d wins, expected %d", ErrVerify, r.Player, r.Total, want)
		}
	}

	for player, wins := range expected {
		if _, ok := seen[player]; !ok && wins > 0 {
			return fmt.Errorf("%w: %s is missing from the standings", ErrVerify, player)
		}
	}
	return nil
}
