package rating_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/okian/mjrating/internal/domain/model"
	"github.com/okian/mjrating/internal/domain/rating"
	"github.com/okian/mjrating/internal/domain/ratingconfig"
	. "github.com/smartystreets/goconvey/convey"
)

var seasonStart = time.Date(2025, 1, 6, 19, 0, 0, 0, time.UTC)

func table(id string, at time.Time, players [4]string, scores [4]int) model.GameRecord {
	g := model.GameRecord{GameID: id, Date: at}
	for i := range players {
		g.Seats[i] = model.SeatResult{PlayerID: players[i], FinalScore: scores[i]}
	}
	return g
}

// season builds a reproducible random season over a small roster.
func season(seed uint64, n int) []model.GameRecord {
	f := gofakeit.New(seed)
	roster := make([]string, 9)
	for i := range roster {
		roster[i] = fmt.Sprintf("p%02d", i)
	}
	games := make([]model.GameRecord, 0, n)
	for i := 0; i < n; i++ {
		f.ShuffleAnySlice(roster)
		a := f.IntRange(0, 60) * 500
		b := f.IntRange(0, 60) * 500
		c := f.IntRange(0, 60) * 500
		d := 100000 - a - b - c
		games = append(games, table(
			fmt.Sprintf("g%04d", i),
			seasonStart.Add(time.Duration(i*f.IntRange(1, 72))*time.Hour),
			[4]string{roster[0], roster[1], roster[2], roster[3]},
			[4]int{a, b, c, d},
		))
	}
	return games
}

func leagueConfig() ratingconfig.Configuration {
	cfg := ratingconfig.Default()
	cfg.Scoring.Uma = [4]int{15000, 5000, -5000, -15000}
	return cfg
}

func TestReplayDeterminism(t *testing.T) {
	Convey("Given a random season", t, func() {
		engine := rating.NewEngine()
		cfg := leagueConfig()
		games := season(42, 120)

		Convey("When replaying it twice", func() {
			first, err1 := engine.Replay(context.Background(), games, cfg)
			second, err2 := engine.Replay(context.Background(), games, cfg)

			Convey("Then both runs are bit identical", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(cmp.Diff(first, second), ShouldBeEmpty)
				for id, st := range first.States {
					So(math.Float64bits(st.Mu), ShouldEqual, math.Float64bits(second.States[id].Mu))
					So(math.Float64bits(st.Sigma), ShouldEqual, math.Float64bits(second.States[id].Sigma))
				}
			})
		})

		Convey("When the input order is reversed", func() {
			reversed := make([]model.GameRecord, len(games))
			for i, g := range games {
				reversed[len(games)-1-i] = g
			}
			a, _ := engine.Replay(context.Background(), games, cfg)
			b, err := engine.Replay(context.Background(), reversed, cfg)

			Convey("Then games are still applied chronologically", func() {
				So(err, ShouldBeNil)
				So(cmp.Diff(a.States, b.States), ShouldBeEmpty)
			})
		})

		Convey("Then every sigma respects the floor", func() {
			res, err := engine.Replay(context.Background(), games, cfg)
			So(err, ShouldBeNil)
			So(res.Games, ShouldEqual, len(games))
			for _, st := range res.States {
				So(st.Sigma, ShouldBeGreaterThanOrEqualTo, rating.DefaultSigmaFloorRatio*cfg.Rating.InitialSigma)
				So(st.Sigma, ShouldBeLessThanOrEqualTo, cfg.Rating.InitialSigma+rating.Tau(cfg))
			}
		})
	})
}

func TestReplaySingleGame(t *testing.T) {
	Convey("Given four new players and one game 42000/30000/18000/10000", t, func() {
		cfg := leagueConfig()
		players := [4]string{"east", "south", "west", "north"}
		g := table("g1", seasonStart, players, [4]int{42000, 30000, 18000, 10000})

		Convey("When replaying the game", func() {
			res, err := rating.NewEngine().Replay(context.Background(), []model.GameRecord{g}, cfg)
			So(err, ShouldBeNil)

			prior := rating.DisplayRating(cfg.Rating.InitialMu, cfg.Rating.InitialSigma, cfg)
			var change [4]float64
			for i, p := range players {
				st := res.States[p]
				change[i] = rating.DisplayRating(st.Mu, st.Sigma, cfg) - prior
			}

			Convey("Then display ratings move in finishing order", func() {
				So(change[0], ShouldBeGreaterThan, 0)
				So(change[0], ShouldBeGreaterThan, change[1])
				So(change[1], ShouldBeGreaterThan, change[2])
				So(change[2], ShouldBeGreaterThan, change[3])
				So(change[3], ShouldBeLessThan, 0)
			})

			Convey("Then plus-minus follows oka and uma", func() {
				pms := make([]int, 0, 4)
				for _, h := range res.History {
					pms = append(pms, h.PlusMinus)
				}
				So(pms, ShouldResemble, []int{37000, 15000, -7000, -25000})
			})

			Convey("Then missing priors start from the configured prior", func() {
				for _, h := range res.History {
					So(h.MuBefore, ShouldEqual, cfg.Rating.InitialMu)
					So(h.SigmaBefore, ShouldEqual, cfg.Rating.InitialSigma)
					So(h.SigmaAfter, ShouldBeLessThan, h.SigmaBefore)
				}
				So(res.States["east"].GamesPlayed, ShouldEqual, 1)
				So(res.States["east"].LastGameDate, ShouldEqual, seasonStart)
			})
		})
	})
}

func TestReplayTies(t *testing.T) {
	Convey("Given two players tied on score with equal priors", t, func() {
		cfg := leagueConfig()
		engine := rating.NewEngine()
		g := table("g1", seasonStart, [4]string{"a", "b", "c", "d"}, [4]int{32000, 32000, 21000, 15000})
		swapped := table("g1", seasonStart, [4]string{"b", "a", "c", "d"}, [4]int{32000, 32000, 21000, 15000})

		Convey("When replaying", func() {
			res, err := engine.Replay(context.Background(), []model.GameRecord{g}, cfg)
			res2, err2 := engine.Replay(context.Background(), []model.GameRecord{swapped}, cfg)

			Convey("Then the tied players get identical updates", func() {
				So(err, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(res.States["a"].Mu, ShouldEqual, res.States["b"].Mu)
				So(res.States["a"].Sigma, ShouldEqual, res.States["b"].Sigma)
			})

			Convey("Then seat order does not change anyone's rating", func() {
				So(cmp.Diff(res.States, res2.States), ShouldBeEmpty)
			})
		})
	})
}

func TestReplayDegenerate(t *testing.T) {
	Convey("Given games that cannot be ranked", t, func() {
		engine := rating.NewEngine()
		cfg := leagueConfig()
		ok := table("g0", seasonStart, [4]string{"a", "b", "c", "d"}, [4]int{40000, 30000, 20000, 10000})

		cases := map[string]model.GameRecord{
			"all equal":  table("g1", seasonStart.Add(time.Hour), [4]string{"a", "b", "c", "d"}, [4]int{25000, 25000, 25000, 25000}),
			"duplicate":  table("g1", seasonStart.Add(time.Hour), [4]string{"a", "b", "a", "d"}, [4]int{40000, 30000, 20000, 10000}),
			"empty seat": table("g1", seasonStart.Add(time.Hour), [4]string{"a", "", "c", "d"}, [4]int{40000, 30000, 20000, 10000}),
		}

		Convey("Then the whole replay fails with ErrDegenerateGame and no result", func() {
			for _, bad := range cases {
				res, err := engine.Replay(context.Background(), []model.GameRecord{ok, bad}, cfg)
				So(errors.Is(err, rating.ErrDegenerateGame), ShouldBeTrue)
				So(res, ShouldBeNil)
			}
		})

		Convey("Then a repeated game id is rejected", func() {
			res, err := engine.Replay(context.Background(), []model.GameRecord{ok, ok}, cfg)
			So(errors.Is(err, rating.ErrDuplicateGame), ShouldBeTrue)
			So(res, ShouldBeNil)
		})

		Convey("Then a malformed configuration is rejected", func() {
			bad := cfg
			bad.Rating.InitialSigma = 0
			_, err := engine.Replay(context.Background(), []model.GameRecord{ok}, bad)
			So(errors.Is(err, ratingconfig.ErrMalformedConfiguration), ShouldBeTrue)
		})
	})
}

func TestReplayDecay(t *testing.T) {
	Convey("Given the same two games played a day apart and two hundred days apart", t, func() {
		cfg := leagueConfig()
		engine := rating.NewEngine()
		players := [4]string{"a", "b", "c", "d"}
		first := table("g1", seasonStart, players, [4]int{40000, 30000, 20000, 10000})
		second := func(at time.Time) model.GameRecord {
			return table("g2", at, players, [4]int{10000, 20000, 30000, 40000})
		}

		active, err1 := engine.Replay(context.Background(), []model.GameRecord{first, second(seasonStart.AddDate(0, 0, 1))}, cfg)
		idle, err2 := engine.Replay(context.Background(), []model.GameRecord{first, second(seasonStart.AddDate(0, 0, 200))}, cfg)
		So(err1, ShouldBeNil)
		So(err2, ShouldBeNil)

		Convey("Then the idle player starts the next game with a larger sigma", func() {
			a := active.PlayerHistory("a")[1]
			b := idle.PlayerHistory("a")[1]
			So(b.SigmaBefore, ShouldBeGreaterThan, a.SigmaBefore)
			So(b.SigmaBefore, ShouldBeLessThanOrEqualTo, cfg.Rating.InitialSigma)
		})

		Convey("Then decay leaves mu untouched", func() {
			So(idle.PlayerHistory("a")[1].MuBefore, ShouldEqual, idle.PlayerHistory("a")[0].MuAfter)
		})

		Convey("Then games on the same day do not decay", func() {
			same, err := engine.Replay(context.Background(), []model.GameRecord{first, second(seasonStart.Add(3 * time.Hour))}, cfg)
			So(err, ShouldBeNil)
			h := same.PlayerHistory("a")
			So(h[1].SigmaBefore, ShouldEqual, h[0].SigmaAfter)
		})
	})
}

func TestReplayDecayAboveInitialSigma(t *testing.T) {
	Convey("Given a large tau that lifts sigma above initialSigma", t, func() {
		cfg := leagueConfig()
		cfg.Rating.Tau = 2
		engine := rating.NewEngine()
		players := [4]string{"a", "b", "c", "d"}
		first := table("g1", seasonStart, players, [4]int{40000, 30000, 20000, 10000})
		second := func(at time.Time) model.GameRecord {
			return table("g2", at, players, [4]int{10000, 20000, 30000, 40000})
		}

		continuous, err1 := engine.Replay(context.Background(), []model.GameRecord{first, second(seasonStart.Add(3 * time.Hour))}, cfg)
		idle, err2 := engine.Replay(context.Background(), []model.GameRecord{first, second(seasonStart.AddDate(0, 0, 200))}, cfg)
		So(err1, ShouldBeNil)
		So(err2, ShouldBeNil)

		after := idle.PlayerHistory("a")[0].SigmaAfter
		So(after, ShouldBeGreaterThan, cfg.Rating.InitialSigma)

		Convey("Then a long break never lowers sigma", func() {
			h := idle.PlayerHistory("a")[1]
			So(h.SigmaBefore, ShouldEqual, after)
			So(h.SigmaBefore, ShouldBeGreaterThanOrEqualTo, continuous.PlayerHistory("a")[1].SigmaBefore)
		})
	})
}

func TestSigmaFloor(t *testing.T) {
	Convey("Given an engine with a high sigma floor", t, func() {
		cfg := leagueConfig()
		engine := rating.NewEngine(rating.WithSigmaFloorRatio(0.9))
		games := make([]model.GameRecord, 0, 40)
		for i := 0; i < 40; i++ {
			games = append(games, table(fmt.Sprintf("g%02d", i), seasonStart.Add(time.Duration(i)*time.Hour),
				[4]string{"a", "b", "c", "d"}, [4]int{40000, 30000, 20000, 10000}))
		}

		Convey("When many games are played", func() {
			res, err := engine.Replay(context.Background(), games, cfg)

			Convey("Then sigma stops at the floor", func() {
				So(err, ShouldBeNil)
				for _, st := range res.States {
					So(st.Sigma, ShouldAlmostEqual, 0.9*cfg.Rating.InitialSigma, 1e-9)
				}
			})
		})
	})
}

func TestReplayCancellation(t *testing.T) {
	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Convey("When replaying", func() {
			res, err := rating.NewEngine().Replay(ctx, season(1, 10), leagueConfig())

			Convey("Then nothing is returned", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(res, ShouldBeNil)
			})
		})
	})
}

func TestParameters(t *testing.T) {
	Convey("Given the default configuration", t, func() {
		cfg := ratingconfig.Default()

		Convey("Then beta and tau derive from the prior", func() {
			So(rating.Beta(cfg), ShouldAlmostEqual, cfg.Rating.InitialSigma/2, 1e-12)
			So(rating.Tau(cfg), ShouldAlmostEqual, cfg.Rating.InitialMu/300, 1e-12)
		})

		Convey("Then explicit values win", func() {
			cfg.Rating.Beta = 3
			cfg.Rating.Tau = 0.5
			So(rating.Beta(cfg), ShouldEqual, 3.0)
			So(rating.Tau(cfg), ShouldEqual, 0.5)
		})

		Convey("Then the display rating subtracts confidence times sigma", func() {
			So(rating.DisplayRating(25, 8, cfg), ShouldEqual, 9.0)
		})
	})
}
