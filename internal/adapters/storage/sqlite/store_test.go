package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/mjrating/internal/adapters/repository"
	"github.com/okian/mjrating/internal/adapters/storage/sqlite"
	service "github.com/okian/mjrating/internal/app"
	"github.com/okian/mjrating/internal/domain/model"
	"github.com/okian/mjrating/internal/domain/ratingconfig"
	"github.com/okian/mjrating/internal/gamegen"
	"github.com/okian/mjrating/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_foreign_keys=on"
	s, err := sqlite.Open(context.Background(), dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, s *sqlite.Store, games int) gamegen.Season {
	t.Helper()
	cfg := gamegen.DefaultConfig()
	cfg.Games = games
	season, err := gamegen.Generate(cfg)
	if err != nil {
		t.Fatal(err)
	}
	byGame := make(map[string][]model.HandEvent, len(season.Games))
	for _, h := range season.Hands {
		byGame[h.GameID] = append(byGame[h.GameID], h)
	}
	for _, g := range season.Games {
		if err := s.AddGame(context.Background(), g, byGame[g.GameID]...); err != nil {
			t.Fatal(err)
		}
	}
	return season
}

func TestStore_Games(t *testing.T) {
	Convey("Given a store seeded with a generated season", t, func() {
		s := openStore(t)
		season := seed(t, s, 40)
		ctx := context.Background()

		Convey("All games should come back in date order with seats intact", func() {
			got, err := s.Games(ctx, ratingconfig.TimeRange{})
			So(err, ShouldBeNil)
			So(cmp.Diff(season.Games, got), ShouldBeEmpty)

			n, err := s.CountGames(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 40)
		})

		Convey("Hand events should round trip including optional seats", func() {
			got, err := s.HandEvents(ctx, ratingconfig.TimeRange{})
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, len(season.Hands))

			want := make(map[[3]any]model.HandEvent, len(season.Hands))
			for _, h := range season.Hands {
				want[[3]any{h.GameID, h.HandSeq, h.Seat}] = h
			}
			for _, h := range got {
				So(cmp.Diff(want[[3]any{h.GameID, h.HandSeq, h.Seat}], h), ShouldBeEmpty)
			}
		})

		Convey("A time range should select only the games on its days", func() {
			tr := ratingconfig.TimeRange{StartDate: "2024-01-10", EndDate: "2024-01-20"}
			got, err := s.Games(ctx, tr)
			So(err, ShouldBeNil)

			var want []model.GameRecord
			for _, g := range season.Games {
				if tr.Contains(g.Date) {
					want = append(want, g)
				}
			}
			So(cmp.Diff(want, got), ShouldBeEmpty)

			hands, err := s.HandEvents(ctx, tr)
			So(err, ShouldBeNil)
			for _, h := range hands {
				So(h.GameID, ShouldBeIn, gameIDs(want))
			}
		})

		Convey("A malformed range should be rejected", func() {
			_, err := s.Games(ctx, ratingconfig.TimeRange{StartDate: "yesterday"})
			So(errors.Is(err, ratingconfig.ErrMalformedConfiguration), ShouldBeTrue)
		})

		Convey("Storing a game id twice should fail without partial writes", func() {
			dup := season.Games[0]
			err := s.AddGame(ctx, dup)
			So(errors.Is(err, sqlite.ErrDuplicateGame), ShouldBeTrue)

			n, _ := s.CountGames(ctx)
			So(n, ShouldEqual, 40)
		})

		Convey("A hand event for another game should be rejected", func() {
			g := model.GameRecord{GameID: "x1", Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
			err := s.AddGame(ctx, g, model.HandEvent{GameID: "x2", HandSeq: 1})
			So(errors.Is(err, sqlite.ErrInvalidGame), ShouldBeTrue)
		})

		Convey("A duplicated hand row should roll back the whole game", func() {
			g := model.GameRecord{GameID: "x3", Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
			h := model.HandEvent{GameID: "x3", HandSeq: 1, Seat: model.East, Type: model.HandDraw}
			err := s.AddGame(ctx, g, h, h)
			So(errors.Is(err, sqlite.ErrInvalidGame), ShouldBeTrue)

			n, _ := s.CountGames(ctx)
			So(n, ShouldEqual, 40)
		})
	})
}

func gameIDs(games []model.GameRecord) []any {
	out := make([]any, len(games))
	for i, g := range games {
		out[i] = g.GameID
	}
	return out
}

func TestStore_Configurations(t *testing.T) {
	Convey("Given an empty store", t, func() {
		s := openStore(t)
		ctx := context.Background()
		cfg := ratingconfig.Default()
		hash := ratingconfig.Hash(cfg)

		Convey("An unknown hash should report ErrUnknownConfiguration", func() {
			_, err := s.Get(ctx, hash)
			So(errors.Is(err, ratingconfig.ErrUnknownConfiguration), ShouldBeTrue)
		})

		Convey("A stored configuration should load back with the same hash", func() {
			So(s.Put(ctx, hash, cfg), ShouldBeNil)
			So(s.Put(ctx, hash, cfg), ShouldBeNil)

			got, err := s.Get(ctx, hash)
			So(err, ShouldBeNil)
			So(got, ShouldResemble, cfg)
			So(ratingconfig.Hash(got), ShouldEqual, hash)

			other := cfg
			other.TimeRange = ratingconfig.TimeRange{StartDate: "2024-01-01", EndDate: "2024-03-31", Name: "winter"}
			So(s.Put(ctx, ratingconfig.Hash(other), other), ShouldBeNil)

			list, err := s.List(ctx)
			So(err, ShouldBeNil)
			So(list, ShouldHaveLength, 2)
			So(list[0] < list[1], ShouldBeTrue)
		})
	})
}

func TestStore_BacksService(t *testing.T) {
	Convey("A service over the SQLite store should match one over memory", t, func() {
		s := openStore(t)
		season := seed(t, s, 60)
		ctx := context.Background()
		cfg := ratingconfig.Default()

		onDisk := service.New(s, s, repository.NewTreapStore())
		inMem := service.New(service.NewMemorySource(season.Games, season.Hands),
			service.NewMemoryConfigStore(), repository.NewTreapStore())

		for _, svc := range []*service.Service{onDisk, inMem} {
			_, err := svc.RegisterConfiguration(ctx, cfg)
			So(err, ShouldBeNil)
		}
		hash := ratingconfig.Hash(cfg)

		a, err := onDisk.Recompute(ctx, hash, false)
		So(err, ShouldBeNil)
		b, err := inMem.Recompute(ctx, hash, false)
		So(err, ShouldBeNil)

		So(a.SourceHash, ShouldEqual, b.SourceHash)
		So(cmp.Diff(b.States, a.States), ShouldBeEmpty)
		So(cmp.Diff(b.Standings, a.Standings), ShouldBeEmpty)
	})
}
