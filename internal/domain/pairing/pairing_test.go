package pairing_test

import (
	"errors"
	"strconv"
	"testing"

	"github.com/okian/duelkit/internal/domain/pairing"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGenerate(t *testing.T) {
	Convey("Given the supported player counts", t, func() {
		expected := []struct{ players, rounds, perRound int }{
			{3, 3, 1},
			{4, 6, 1},
			{5, 5, 2},
			{6, 5, 3},
			{7, 7, 3},
			{8, 7, 4},
		}

		for _, tc := range expected {
			n := tc.players
			plan, err := pairing.Generate(n)

			Convey("Then the plan for "+strconv.Itoa(n)+" players has the documented shape", func() {
				So(err, ShouldBeNil)
				So(plan.Players, ShouldEqual, n)
				So(plan.RoundCount(), ShouldEqual, tc.rounds)
				for _, r := range plan.Rounds {
					So(len(r), ShouldEqual, tc.perRound)
				}
				So(plan.MatchesPerRound(), ShouldEqual, tc.perRound)
			})

			Convey("Then no player appears twice in a round for "+strconv.Itoa(n)+" players", func() {
				for _, r := range plan.Rounds {
					seen := map[int]bool{}
					for _, p := range r {
						So(seen[p[0]], ShouldBeFalse)
						So(seen[p[1]], ShouldBeFalse)
						seen[p[0]], seen[p[1]] = true, true
					}
				}
			})

			Convey("Then every unordered pair meets exactly once for "+strconv.Itoa(n)+" players", func() {
				meetings := map[[2]int]int{}
				for _, r := range plan.Rounds {
					for _, p := range r {
						So(p[0], ShouldNotEqual, p[1])
						So(p[0], ShouldBeBetweenOrEqual, 0, n-1)
						So(p[1], ShouldBeBetweenOrEqual, 0, n-1)
						meetings[key(p)]++
					}
				}
				So(len(meetings), ShouldEqual, n*(n-1)/2)
				for _, c := range meetings {
					So(c, ShouldEqual, 1)
				}
				So(plan.MatchCount(), ShouldEqual, n*(n-1)/2)
			})
		}
	})

	Convey("Given player counts where an idle slot never repeats", t, func() {
		for _, n := range []int{3, 5, 6, 7, 8} {
			plan, err := pairing.Generate(n)
			So(err, ShouldBeNil)

			Convey("Then nobody sits out two consecutive rounds with "+strconv.Itoa(n)+" players", func() {
				for p := 0; p < n; p++ {
					idlePrev := false
					for _, r := range plan.Rounds {
						idle := true
						for _, m := range r {
							if m[0] == p || m[1] == p {
								idle = false
							}
						}
						So(idle && idlePrev, ShouldBeFalse)
						idlePrev = idle
					}
				}
			})
		}
	})

	Convey("Given unsupported player counts", t, func() {
		for _, n := range []int{-1, 0, 1, 2, 9, 16} {
			_, err := pairing.Generate(n)

			Convey("Then "+strconv.Itoa(n)+" players is rejected", func() {
				So(errors.Is(err, pairing.ErrUnsupportedPlayerCount), ShouldBeTrue)
				So(pairing.Supported(n), ShouldBeFalse)
			})
		}
	})

	Convey("Given a generated plan", t, func() {
		plan, err := pairing.Generate(4)
		So(err, ShouldBeNil)

		Convey("When the caller mutates it", func() {
			plan.Rounds[0][0] = pairing.Pair{9, 9}
			again, _ := pairing.Generate(4)

			Convey("Then later plans are unaffected", func() {
				So(again.Rounds[0][0], ShouldResemble, pairing.Pair{2, 3})
			})
		})
	})
}

func key(p pairing.Pair) [2]int {
	if p[0] > p[1] {
		return [2]int{p[1], p[0]}
	}
	return [2]int{p[0], p[1]}
}
