package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	dedupe "github.com/okian/duelkit/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new deduper", t, func() {
		d := dedupe.NewInMemoryDeduper()
		So(d.Size(), ShouldEqual, 0)

		Convey("When a key is recorded", func() {
			seen := d.SeenAndRecord(ctx, "7/Locals_week_1")

			Convey("Then it is new the first time and in flight after", func() {
				So(seen, ShouldBeFalse)
				So(d.SeenAndRecord(ctx, "7/Locals_week_1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And it is released", func() {
				d.Unrecord(ctx, "7/Locals_week_1")

				Convey("Then it can be recorded again", func() {
					So(d.Size(), ShouldEqual, 0)
					So(d.SeenAndRecord(ctx, "7/Locals_week_1"), ShouldBeFalse)
				})
			})
		})

		Convey("When an unknown key is released", func() {
			d.Unrecord(ctx, "missing")

			Convey("Then nothing changes", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
		So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
		So(d.SeenAndRecord(ctx, "b"), ShouldBeFalse)

		Convey("When it is full", func() {
			first := d.SeenAndRecord(ctx, "c")
			second := d.SeenAndRecord(ctx, "c")

			Convey("Then new keys pass through unrecorded", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 2)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeTrue)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := range 10000 {
			d.SeenAndRecord(ctx, fmt.Sprintf("k-%d", i))
		}

		Convey("Then every key is kept", func() {
			So(d.Size(), ShouldEqual, 10000)
		})
	})
}

func TestInMemoryDeduper_Concurrent(t *testing.T) {
	Convey("Given many goroutines racing for the same keys", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper()
		var fresh atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if !d.SeenAndRecord(ctx, fmt.Sprintf("k-%d", i%10)) {
					fresh.Add(1)
				}
			}(i)
		}
		wg.Wait()

		Convey("Then each key is recorded exactly once", func() {
			So(fresh.Load(), ShouldEqual, 10)
			So(d.Size(), ShouldEqual, 10)
		})
	})
}
