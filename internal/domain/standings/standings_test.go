package standings_test

import (
	"testing"
	"time"

	"github.com/okian/duelkit/internal/domain/bracket"
	"github.com/okian/duelkit/internal/domain/names"
	"github.com/okian/duelkit/internal/domain/standings"
	. "github.com/smartystreets/goconvey/convey"
)

func week(name string, date time.Time, players []string, winners ...string) *bracket.Tournament {
	t, err := bracket.Build(name, players)
	if err != nil {
		panic(err)
	}
	t.Date = date
	for i, row := range t.ExportRows() {
		if i >= len(winners) {
			break
		}
		if winners[i] == "" {
			continue
		}
		if _, err := t.Resolve(row.Match, winners[i], bracket.AllowCorrections); err != nil {
			panic(err)
		}
	}
	return t
}

// firstNames lists the first player of every label in export order.
func firstNames(t *bracket.Tournament) []string {
	var out []string
	for _, r := range t.ExportRows() {
		a, _, _ := names.SplitLabel(r.Match)
		out = append(out, a)
	}
	return out
}

func TestAggregate(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 1, d, 19, 0, 0, 0, time.UTC) }

	Convey("Given a season of four weeks loaded out of order", t, func() {
		w1 := week("S_w1", day(1), []string{"Ann", "Ben", "Cal"}, "Ann", "Ben", "Ann")
		w2 := week("S_w2", day(8), []string{"Ann", "Dee", "Ben"}, "dee", "", "Ann")
		// Cal skips week 3 and returns with a different casing in week 4.
		w3 := week("S_w3", day(15), []string{"Ben", "Dee", "Eve"})
		w3.Rounds[0].Matches[0].Result = "Ben"
		w4 := week("S_w4", day(22), []string{"CAL", "Ann", "Ben"}, "CAL", "Ann", "cal")

		season := standings.Aggregate([]*bracket.Tournament{w3, w1, w4, w2})

		Convey("Then weeks are ordered by date", func() {
			So(len(season.Weeks), ShouldEqual, 4)
			So(season.Weeks[0].Name, ShouldEqual, "S_w1")
			So(season.Weeks[1].Name, ShouldEqual, "S_w2")
			So(season.Weeks[2].Name, ShouldEqual, "S_w3")
			So(season.Weeks[3].Name, ShouldEqual, "S_w4")
			So(season.Weeks[3].Index, ShouldEqual, 4)
		})

		Convey("Then every series is aligned, non-decreasing and ends at the total", func() {
			for _, r := range season.Records {
				So(len(r.Weekly), ShouldEqual, 4)
				So(len(r.Cumulative), ShouldEqual, 5)
				So(r.Cumulative[0], ShouldEqual, 0)
				for i := 1; i < len(r.Cumulative); i++ {
					So(r.Cumulative[i], ShouldBeGreaterThanOrEqualTo, r.Cumulative[i-1])
				}
				So(r.Cumulative[4], ShouldEqual, r.Total)
			}
		})

		Convey("Then a player missing a week scores zero in that slot", func() {
			cal, ok := season.Find("cal")
			So(ok, ShouldBeTrue)
			So(cal.Player, ShouldEqual, "Cal")
			So(cal.Weekly, ShouldResemble, []int{0, 0, 0, 2})
			So(cal.Cumulative, ShouldResemble, []int{0, 0, 0, 0, 2})
		})

		Convey("Then players without wins are still listed", func() {
			eve, ok := season.Find("Eve")
			So(ok, ShouldBeTrue)
			So(eve.Total, ShouldEqual, 0)
			So(eve.Cumulative, ShouldResemble, []int{0, 0, 0, 0, 0})
		})

		Convey("Then records are ordered by total then name", func() {
			for i := 1; i < len(season.Records); i++ {
				prev, cur := season.Records[i-1], season.Records[i]
				So(prev.Total, ShouldBeGreaterThanOrEqualTo, cur.Total)
			}
			leader, ok := season.Leader()
			So(ok, ShouldBeTrue)
			So(leader.Total, ShouldEqual, season.Records[0].Total)
		})

		Convey("Then totals equal the number of resolved matches", func() {
			sum := 0
			for _, r := range season.Records {
				sum += r.Total
			}
			So(sum, ShouldEqual, 3+2+1+3)
		})
	})

	Convey("Given tournaments with missing dates", t, func() {
		a := week("S_b", time.Time{}, []string{"Ann", "Ben", "Cal"})
		b := week("S_a", time.Time{}, []string{"Ann", "Ben", "Cal"})
		c := week("S_c", day(3), []string{"Ann", "Ben", "Cal"})
		c2 := week("S_d", day(3), []string{"Ann", "Ben", "Cal"})
		c2.Name = "S_0"

		ordered := standings.Order([]*bracket.Tournament{a, c, b, c2})

		Convey("Then dated weeks come first and ties are ordered by name", func() {
			So(ordered[0].Name, ShouldEqual, "S_0")
			So(ordered[1].Name, ShouldEqual, "S_c")
			So(ordered[2].Name, ShouldEqual, "S_a")
			So(ordered[3].Name, ShouldEqual, "S_b")
		})
	})

	Convey("Given a fully resolved single week", t, func() {
		tr := week("S_w1", day(1), []string{"Ann", "Ben", "Cal", "Dee"})
		rows := tr.ExportRows()
		for i, w := range firstNames(tr) {
			_, err := tr.Resolve(rows[i].Match, w, bracket.AllowCorrections)
			So(err, ShouldBeNil)
		}
		season := standings.Aggregate([]*bracket.Tournament{tr})

		Convey("Then the totals add up to the match count", func() {
			sum := 0
			for _, r := range season.Records {
				sum += r.Total
			}
			So(sum, ShouldEqual, 6)
			So(len(season.Records), ShouldEqual, 4)
		})
	})

	Convey("Given no tournaments", t, func() {
		season := standings.Aggregate(nil)
		_, ok := season.Leader()
		So(season.Weeks, ShouldBeEmpty)
		So(season.Records, ShouldBeEmpty)
		So(ok, ShouldBeFalse)
	})
}

func TestMembers(t *testing.T) {
	day := time.Date(2025, 3, 7, 19, 0, 0, 0, time.UTC)
	in := func(name, category string, categoryID uint64) *bracket.Tournament {
		tr := week(name, day, []string{"ann", "ben", "cal"})
		tr.Category = category
		tr.Message.CategoryID = categoryID
		return tr
	}

	Convey("Given two categories where one name prefixes the other", t, func() {
		locals := in("Locals_week_1", "Locals", 1)
		advanced := in("Locals_Advanced_week_1", "Locals Advanced", 2)
		ts := []*bracket.Tournament{locals, advanced}

		Convey("Then each season keeps only its own tournaments", func() {
			So(standings.Members(ts, "Locals_", 0), ShouldResemble, []*bracket.Tournament{locals})
			So(standings.Members(ts, "Locals_Advanced_", 0), ShouldResemble, []*bracket.Tournament{advanced})
		})

		Convey("Then an older tournament without a category is claimed by the longer one", func() {
			legacy := in("Locals_Advanced_week_0", "", 0)
			plain := in("Locals_week_0", "", 0)
			got := standings.Members(append(ts, legacy, plain), "Locals_", 0)
			So(got, ShouldResemble, []*bracket.Tournament{locals, plain})
		})

		Convey("Then a category id drops tournaments posted elsewhere", func() {
			legacy := in("Locals_Advanced_week_0", "", 2)
			So(standings.Members([]*bracket.Tournament{legacy}, "Locals_", 1), ShouldBeEmpty)
			So(standings.Members([]*bracket.Tournament{legacy}, "Locals_", 0), ShouldHaveLength, 1)
		})
	})
}
