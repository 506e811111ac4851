package gamegen_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/mjrating/internal/domain/model"
	"github.com/okian/mjrating/internal/gamegen"
)

func TestGenerate(t *testing.T) {
	Convey("Given the default season config", t, func() {
		cfg := gamegen.DefaultConfig()
		cfg.Games = 40

		season, err := gamegen.Generate(cfg)
		So(err, ShouldBeNil)

		Convey("It should produce the requested games in date order", func() {
			So(season.Games, ShouldHaveLength, 40)
			So(season.Players, ShouldHaveLength, cfg.Players)
			for i := 1; i < len(season.Games); i++ {
				So(season.Games[i].Date.After(season.Games[i-1].Date), ShouldBeTrue)
			}
		})

		Convey("Each table should seat four different players", func() {
			for _, g := range season.Games {
				seen := map[string]bool{}
				for _, s := range g.Seats {
					So(s.PlayerID, ShouldNotBeEmpty)
					So(seen[s.PlayerID], ShouldBeFalse)
					seen[s.PlayerID] = true
				}
			}
		})

		Convey("Final scores should equal the starting points plus the hand deltas", func() {
			deltas := map[string]*[model.SeatCount]int{}
			for _, h := range season.Hands {
				d, ok := deltas[h.GameID]
				if !ok {
					d = &[model.SeatCount]int{}
					deltas[h.GameID] = d
				}
				d[h.Seat] += h.PointsDelta
			}
			for _, g := range season.Games {
				for i, s := range g.Seats {
					So(s.FinalScore, ShouldEqual, gamegen.StartingPoints+deltas[g.GameID][i])
				}
			}
		})

		Convey("Win rows should be internally consistent", func() {
			for _, h := range season.Hands {
				if h.Type == model.HandRon {
					So(h.WinnerSeat, ShouldNotBeNil)
					So(h.LoserSeat, ShouldNotBeNil)
					So(*h.WinnerSeat, ShouldNotEqual, *h.LoserSeat)
				}
				if h.Won() {
					So(h.PointsDelta, ShouldBeGreaterThan, 0)
				}
				if h.DealtIn() {
					So(h.PointsDelta, ShouldBeLessThan, 0)
				}
			}
		})

		Convey("The same seed should give the same season", func() {
			again, err := gamegen.Generate(cfg)
			So(err, ShouldBeNil)
			So(cmp.Diff(season, again), ShouldBeEmpty)
		})

		Convey("A different seed should give a different season", func() {
			cfg.Seed = 99
			other, err := gamegen.Generate(cfg)
			So(err, ShouldBeNil)
			So(cmp.Equal(season.Games, other.Games), ShouldBeFalse)
		})
	})

	Convey("Too few players should be rejected", t, func() {
		cfg := gamegen.DefaultConfig()
		cfg.Players = 3
		_, err := gamegen.Generate(cfg)
		So(err, ShouldNotBeNil)
	})
}
