package repository_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/duelkit/internal/adapters/repository"
	"github.com/okian/duelkit/internal/domain/bracket"
	"github.com/okian/duelkit/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const legacyDocument = `{
    "title": "Round Robin Bracket:",
    "pairings": [
        {
            "round1": [
                {
                    "match1": "Cal vs Dee",
                    "result": "Dee"
                }
            ]
        },
        {
            "round2": [
                {
                    "match1": "Ann vs Ben",
                    "result": ""
                }
            ]
        }
    ],
    "message_info": {
        "guild_id": 111,
        "category_id": 222,
        "channel_id": 333,
        "message_id": 444
    },
    "date": "2024-05-01T19:30:00.123456"
}`

func newStore(t *testing.T) (*repository.FileStore, string) {
	_ = logger.Init()
	root := t.TempDir()
	return repository.NewFileStore(root), root
}

func mustBuild(name string, players ...string) *bracket.Tournament {
	tr, err := bracket.Build(name, players)
	if err != nil {
		panic(err)
	}
	return tr
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty file store", t, func() {
		store, root := newStore(t)

		Convey("When loading a missing tournament", func() {
			_, err := store.Load(ctx, 1, "Season_week")

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When a tournament is put", func() {
			tr := mustBuild("Season_1_week_1", "Ann", "Ben", "Cal", "Dee")
			tr.Date = time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
			tr.Message = bracket.MessageRef{GuildID: 1, CategoryID: 2, ChannelID: 3, MessageID: 4}
			err := store.Put(ctx, 1, tr)
			So(err, ShouldBeNil)

			Convey("Then it is written in the guild directory", func() {
				p := filepath.Join(root, "guilds", "1", "json", "tournaments", "Season_1_week_1.json")
				data, err := os.ReadFile(p)
				So(err, ShouldBeNil)
				So(string(data), ShouldContainSubstring, `"round1": [`)
				So(string(data), ShouldContainSubstring, `"match1": "Cal vs Dee"`)
				So(strings.Index(string(data), `"match1"`), ShouldBeLessThan, strings.Index(string(data), `"result"`))
				So(string(data), ShouldContainSubstring, `"message_info"`)
				So(tr.Revision, ShouldEqual, 1)
				So(store.Count(ctx), ShouldEqual, 1)
			})

			Convey("Then it loads back identically", func() {
				got, err := store.Load(ctx, 1, "Season_1_week_1")
				So(err, ShouldBeNil)
				So(got, ShouldResemble, tr)
			})

			Convey("Then it is scoped to its guild", func() {
				_, err := store.Load(ctx, 2, "Season_1_week_1")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("And it is updated from the current revision", func() {
				got, _ := store.Load(ctx, 1, "Season_1_week_1")
				_, err := got.Resolve("Ann vs Ben", "Ann", bracket.AllowCorrections)
				So(err, ShouldBeNil)
				So(store.Update(ctx, 1, got), ShouldBeNil)

				Convey("Then the revision advances and the result persists", func() {
					again, err := store.Load(ctx, 1, "Season_1_week_1")
					So(err, ShouldBeNil)
					So(again.Revision, ShouldEqual, 2)
					So(again.Rounds[1].Matches[0].Result, ShouldEqual, "Ann")
				})
			})

			Convey("And a stale copy is updated", func() {
				a, _ := store.Load(ctx, 1, "Season_1_week_1")
				b, _ := store.Load(ctx, 1, "Season_1_week_1")
				So(store.Update(ctx, 1, a), ShouldBeNil)
				err := store.Update(ctx, 1, b)

				Convey("Then ErrConflict is returned and the copy is unchanged", func() {
					So(errors.Is(err, repository.ErrConflict), ShouldBeTrue)
					So(b.Revision, ShouldEqual, 1)
				})
			})

			Convey("And it is rebuilt under the same name", func() {
				fresh := mustBuild("Season_1_week_1", "Eve", "Fay", "Gus")
				So(store.Put(ctx, 1, fresh), ShouldBeNil)

				Convey("Then the new bracket replaces the old one", func() {
					got, err := store.Load(ctx, 1, "Season_1_week_1")
					So(err, ShouldBeNil)
					So(got.Players(), ShouldResemble, fresh.Players())
					So(got.Revision, ShouldEqual, 2)
				})
			})
		})

		Convey("When player names contain markup characters", func() {
			tr := mustBuild("Season_1_week_2", "A&B", "<Cal>", "Dee")
			tr.Category = "Season 1"
			So(store.Put(ctx, 1, tr), ShouldBeNil)

			Convey("Then they are written unescaped and the category is kept", func() {
				data, err := os.ReadFile(filepath.Join(root, "guilds", "1", "json", "tournaments", "Season_1_week_2.json"))
				So(err, ShouldBeNil)
				So(string(data), ShouldContainSubstring, "A&B")
				So(string(data), ShouldContainSubstring, "<Cal>")
				So(string(data), ShouldNotContainSubstring, `\u00`)
				So(string(data), ShouldContainSubstring, `"category": "Season 1"`)
				So(strings.HasSuffix(string(data), "\n"), ShouldBeFalse)

				got, err := store.Load(ctx, 1, "Season_1_week_2")
				So(err, ShouldBeNil)
				So(got, ShouldResemble, tr)
			})
		})

		Convey("When the key would escape the data directory", func() {
			tr := mustBuild("ok", "Ann", "Ben", "Cal")
			tr.Name = "../evil"
			err := store.Put(ctx, 1, tr)
			So(errors.Is(err, repository.ErrInvalidKey), ShouldBeTrue)
		})

		Convey("When updating a tournament that was never stored", func() {
			tr := mustBuild("ghost", "Ann", "Ben", "Cal")
			tr.Revision = 3
			err := store.Update(ctx, 1, tr)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})

	Convey("Given a document written by the previous bot", t, func() {
		store, root := newStore(t)
		dir := filepath.Join(root, "guilds", "111", "json", "tournaments")
		So(os.MkdirAll(dir, 0o755), ShouldBeNil)
		So(os.WriteFile(filepath.Join(dir, "Season_1_week_1.json"), []byte(legacyDocument), 0o644), ShouldBeNil)

		tr, err := store.Load(ctx, 111, "Season_1_week_1")

		Convey("Then it is read with its naive date and message info", func() {
			So(err, ShouldBeNil)
			So(tr.Name, ShouldEqual, "Season_1_week_1")
			So(tr.Revision, ShouldEqual, 0)
			So(len(tr.Rounds), ShouldEqual, 2)
			So(tr.Rounds[0].Matches[0], ShouldResemble, bracket.Match{Label: "Cal vs Dee", Result: "Dee"})
			So(tr.Message, ShouldResemble, bracket.MessageRef{GuildID: 111, CategoryID: 222, ChannelID: 333, MessageID: 444})
			So(tr.Date.Equal(time.Date(2024, 5, 1, 19, 30, 0, 123456000, time.UTC)), ShouldBeTrue)
		})

		Convey("Then it can be updated in place", func() {
			_, err := tr.Resolve("ann vs ben", "ben", bracket.AllowCorrections)
			So(err, ShouldBeNil)
			So(store.Update(ctx, 111, tr), ShouldBeNil)
			So(tr.Revision, ShouldEqual, 1)
		})
	})

	Convey("Given a guild with several seasons", t, func() {
		store, root := newStore(t)
		for i, name := range []string{"Spring_week_1", "Spring_week_2", "Spring_week_3", "Summer_week_1"} {
			tr := mustBuild(name, "Ann", "Ben", "Cal")
			tr.Date = time.Date(2025, 3, i+1, 0, 0, 0, 0, time.UTC)
			So(store.Put(ctx, 9, tr), ShouldBeNil)
		}
		dir := filepath.Join(root, "guilds", "9", "json", "tournaments")
		So(os.WriteFile(filepath.Join(dir, "Spring_broken.json"), []byte(`{"pairings": [`), 0o644), ShouldBeNil)
		So(os.WriteFile(filepath.Join(dir, "Spring_undated.json"), []byte(strings.Replace(legacyDocument, "2024-05-01T19:30:00.123456", "last tuesday", 1)), 0o644), ShouldBeNil)

		Convey("When listing one category", func() {
			list, err := store.List(ctx, 9, "Spring_")

			Convey("Then only that season is returned and broken files are skipped", func() {
				So(err, ShouldBeNil)
				So(len(list), ShouldEqual, 4)
				var undated *bracket.Tournament
				for _, tr := range list {
					So(tr.Name, ShouldStartWith, "Spring_")
					if tr.Name == "Spring_undated" {
						undated = tr
					}
				}
				So(undated, ShouldNotBeNil)
				So(undated.Date.IsZero(), ShouldBeTrue)
			})
		})

		Convey("When listing a guild without documents", func() {
			list, err := store.List(ctx, 10, "Spring_")
			So(err, ShouldBeNil)
			So(list, ShouldBeEmpty)
		})
	})
}

func TestKeyLocker(t *testing.T) {
	Convey("Given a key locker", t, func() {
		l := repository.NewKeyLocker()
		ctx := context.Background()

		Convey("When many goroutines increment under the same key", func() {
			var wg sync.WaitGroup
			counter := 0
			for i := 0; i < 100; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					unlock, err := l.Lock(ctx, "k")
					if err != nil {
						return
					}
					v := counter
					time.Sleep(time.Microsecond)
					counter = v + 1
					unlock()
				}()
			}
			wg.Wait()

			Convey("Then no increment is lost and the key is released", func() {
				So(counter, ShouldEqual, 100)
				So(l.Len(), ShouldEqual, 0)
			})
		})

		Convey("When a key is held and the waiter's context expires", func() {
			unlock, err := l.Lock(ctx, "k")
			So(err, ShouldBeNil)
			tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()
			_, err = l.Lock(tctx, "k")

			Convey("Then the waiter gives up", func() {
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
				other, err := l.Lock(ctx, "other")
				So(err, ShouldBeNil)
				other()
				unlock()
				unlock()
				So(l.Len(), ShouldEqual, 0)
			})
		})
	})
}
