package names_test

import (
	"errors"
	"testing"

	"github.com/okian/duelkit/internal/domain/names"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSmartCapitalize(t *testing.T) {
	Convey("Given raw player and card names", t, func() {
		cases := []struct{ in, want string }{
			{"ann", "Ann"},
			{"ANN", "Ann"},
			{"  ben  ", "Ben"},
			{"mary-jane", "Mary-Jane"},
			{"o'brien", "O'brien"},
			{"dark-magician girl,x", "Dark-Magician Girl, X"},
			{"blue-eyes white dragon (rare)", "Blue-Eyes White Dragon ( Rare)"},
			{"élan", "Élan"},
			{"", ""},
		}

		Convey("Then each is capitalized per word", func() {
			for _, c := range cases {
				So(names.SmartCapitalize(c.in), ShouldEqual, c.want)
			}
		})
	})
}

func TestParsePlayers(t *testing.T) {
	Convey("Given a whitespace separated player list", t, func() {
		players := names.ParsePlayers("ann  BEN\tcal\ndee Ann")

		Convey("Then names are capitalized and duplicates dropped", func() {
			So(players, ShouldResemble, []string{"Ann", "Ben", "Cal", "Dee"})
		})
	})

	Convey("Given an empty list", t, func() {
		So(names.ParsePlayers("   "), ShouldBeEmpty)
	})
}

func TestTournamentName(t *testing.T) {
	Convey("Given a category and channel", t, func() {
		Convey("When both are present", func() {
			name, err := names.TournamentName("Season 3", "week 1")

			Convey("Then spaces become underscores", func() {
				So(err, ShouldBeNil)
				So(name, ShouldEqual, "Season_3_week_1")
			})
		})

		Convey("When the category is missing", func() {
			_, err := names.TournamentName("  ", "week-1")

			Convey("Then ErrNoCategory is returned", func() {
				So(errors.Is(err, names.ErrNoCategory), ShouldBeTrue)
			})
		})

		Convey("When the name would escape the storage directory", func() {
			_, err := names.TournamentName("..", "x/../../etc")

			Convey("Then it is rejected", func() {
				So(errors.Is(err, names.ErrInvalidName), ShouldBeTrue)
			})
		})

		Convey("When a season prefix is derived", func() {
			prefix, err := names.SeasonPrefix("Season 3")
			name, _ := names.TournamentName("Season 3", "week 1")

			Convey("Then every tournament name of the category starts with it", func() {
				So(err, ShouldBeNil)
				So(prefix, ShouldEqual, "Season_3_")
				So(name, ShouldStartWith, prefix)
			})
		})
	})
}

func TestLabels(t *testing.T) {
	Convey("Given two player names", t, func() {
		label := names.Label("Ann", "Ben")

		Convey("Then the label round trips", func() {
			So(label, ShouldEqual, "Ann vs Ben")
			a, b, ok := names.SplitLabel(label)
			So(ok, ShouldBeTrue)
			So(a, ShouldEqual, "Ann")
			So(b, ShouldEqual, "Ben")
		})

		Convey("Then malformed labels are rejected", func() {
			_, _, ok := names.SplitLabel("Ann-Ben")
			So(ok, ShouldBeFalse)
			_, _, ok = names.SplitLabel(" vs Ben")
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given the comparison helpers", t, func() {
		So(names.Normalize("  AnN "), ShouldEqual, "ann")
		So(names.Equal("ann", " ANN"), ShouldBeTrue)
		So(names.Contains("Ann vs Ben", " ann "), ShouldBeTrue)
		So(names.Contains("Ann vs Ben", "xyz"), ShouldBeFalse)
	})
}
