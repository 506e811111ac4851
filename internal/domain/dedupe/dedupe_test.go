package dedupe_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	dedupe "github.com/okian/mjrating/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("It should start empty", func() {
			So(d.Size(), ShouldEqual, 0)
			So(d.Pending(ctx), ShouldBeEmpty)
		})

		Convey("A new key should be recorded", func() {
			So(d.SeenAndRecord(ctx, "cfg-a"), ShouldBeFalse)
			So(d.Size(), ShouldEqual, 1)
		})

		Convey("A pending key should be reported as seen", func() {
			d.SeenAndRecord(ctx, "cfg-a")
			So(d.SeenAndRecord(ctx, "cfg-a"), ShouldBeTrue)
			So(d.Size(), ShouldEqual, 1)
		})

		Convey("Unrecord should release the key", func() {
			d.SeenAndRecord(ctx, "cfg-a")
			d.Unrecord(ctx, "cfg-a")
			So(d.Size(), ShouldEqual, 0)
			So(d.SeenAndRecord(ctx, "cfg-a"), ShouldBeFalse)
		})

		Convey("Unrecord of an unknown key is a no-op", func() {
			d.Unrecord(ctx, "missing")
			So(d.Size(), ShouldEqual, 0)
		})

		Convey("Pending should list every recorded key", func() {
			d.SeenAndRecord(ctx, "b")
			d.SeenAndRecord(ctx, "a")
			keys := d.Pending(ctx)
			sort.Strings(keys)
			So(keys, ShouldResemble, []string{"a", "b"})
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
		d.SeenAndRecord(ctx, "a")
		d.SeenAndRecord(ctx, "b")

		Convey("Keys beyond the cap should not be recorded", func() {
			So(d.SeenAndRecord(ctx, "c"), ShouldBeFalse)
			So(d.SeenAndRecord(ctx, "c"), ShouldBeFalse)
			So(d.Size(), ShouldEqual, 2)
		})

		Convey("Existing keys should still coalesce", func() {
			So(d.SeenAndRecord(ctx, "a"), ShouldBeTrue)
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := 0; i < 5000; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("k%d", i))
		}
		So(d.Size(), ShouldEqual, 5000)
	})
}

func TestDeduperConcurrency(t *testing.T) {
	Convey("Concurrent callers should record a key exactly once", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var fresh atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 64; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !d.SeenAndRecord(context.Background(), "cfg") {
					fresh.Add(1)
				}
			}()
		}
		wg.Wait()
		So(fresh.Load(), ShouldEqual, 1)
		So(d.Size(), ShouldEqual, 1)
	})
}
