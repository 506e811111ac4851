package stats_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/mjrating/internal/domain/model"
	"github.com/okian/mjrating/internal/domain/ratingconfig"
	"github.com/okian/mjrating/internal/domain/stats"
	. "github.com/smartystreets/goconvey/convey"
)

var start = time.Date(2025, 1, 10, 19, 0, 0, 0, time.UTC)

func placed(id string, daysIn int, seat model.Seat, position, score, pm int) model.PlacementRecord {
	return model.PlacementRecord{
		GameID:     id,
		Date:       start.AddDate(0, 0, daysIn),
		PlayerID:   "p1",
		Seat:       seat,
		FinalScore: score,
		Position:   position,
		PlusMinus:  pm,
	}
}

func seat(s model.Seat) *model.Seat { return &s }

func hand(game string, seq int, at model.Seat, typ model.HandEventType, winner, loser, dealer *model.Seat, riichi bool, delta int) model.HandEvent {
	return model.HandEvent{
		GameID: game, HandSeq: seq, Seat: at, Type: typ,
		WinnerSeat: winner, LoserSeat: loser, DealerSeat: dealer,
		RiichiDeclared: riichi, PointsDelta: delta,
	}
}

func TestAggregate(t *testing.T) {
	Convey("Given a player's games across two months", t, func() {
		games := []model.PlacementRecord{
			placed("g1", 0, model.East, 1, 45000, 40000),
			placed("g2", 1, model.South, 1, 38000, 28000),
			placed("g3", 2, model.West, 4, -2000, -32000),
			placed("g4", 3, model.East, 2, 27000, 12000),
			placed("g5", 4, model.North, 1, 40000, 30000),
			placed("g6", 40, model.South, 3, 20000, -5000),
		}
		other := placed("g1", 0, model.South, 2, 30000, 15000)
		other.PlayerID = "p2"
		games = append(games, other)

		hands := []model.HandEvent{
			hand("g1", 1, model.East, model.HandTsumo, seat(model.East), nil, seat(model.East), true, 12000),
			hand("g1", 2, model.East, model.HandRon, seat(model.East), seat(model.West), seat(model.East), false, 8000),
			hand("g1", 3, model.East, model.HandRon, seat(model.South), seat(model.East), seat(model.South), false, -3900),
			hand("g1", 4, model.East, model.HandDraw, nil, nil, seat(model.South), true, 1500),
			hand("g2", 1, model.South, model.HandRon, seat(model.South), seat(model.North), seat(model.East), true, 5200),
			hand("g2", 1, model.North, model.HandRon, seat(model.South), seat(model.North), seat(model.East), false, -5200),
			hand("g9", 1, model.East, model.HandTsumo, seat(model.East), nil, seat(model.East), false, 9000),
		}

		Convey("When aggregating the whole record", func() {
			st := stats.Aggregate("p1", games, hands, ratingconfig.TimeRange{})

			Convey("Then the placement fold is correct", func() {
				So(st.GamesPlayed, ShouldEqual, 6)
				So(st.PlacementCounts, ShouldResemble, [4]int{3, 1, 1, 1})
				So(st.TotalPlusMinus, ShouldEqual, 73000)
				So(st.AveragePlacement, ShouldAlmostEqual, 2.0, 1e-12)
			})

			Convey("Then game extras are derived in date order", func() {
				So(st.Games.LongestFirstStreak, ShouldEqual, 2)
				So(st.Games.LongestFourthFreeStreak, ShouldEqual, 3)
				So(st.Games.LongestWinlessStreak, ShouldEqual, 2)
				So(st.Games.CurrentStreak, ShouldEqual, -1)
				So(st.Games.BustedGames, ShouldEqual, 1)
				So(*st.Games.BestGamePlusMinus, ShouldResemble, stats.ScoreRecord{GameID: "g1", Value: 40000})
				So(*st.Games.WorstGamePlusMinus, ShouldResemble, stats.ScoreRecord{GameID: "g3", Value: -32000})
				So(*st.Games.PlacementRates[0], ShouldAlmostEqual, 50.0, 1e-9)
				So(*st.Games.SeatRates[model.East], ShouldAlmostEqual, 100.0/3, 1e-9)
				So(st.Games.PerfectGames, ShouldEqual, 1)
			})

			Convey("Then only the player's own hands in played games count", func() {
				So(st.Hands.Hands, ShouldEqual, 5)
				So(st.Hands.Wins, ShouldEqual, 3)
				So(st.Hands.TsumoWins, ShouldEqual, 1)
				So(st.Hands.DealIns, ShouldEqual, 1)
				So(st.Hands.RiichiHands, ShouldEqual, 3)
				So(*st.Hands.WinRate, ShouldAlmostEqual, 60.0, 1e-9)
				So(*st.Hands.DealerWinRate, ShouldAlmostEqual, 100.0, 1e-9)
				So(*st.Hands.NonDealerWinRate, ShouldAlmostEqual, 100.0/3, 1e-9)
				So(*st.Hands.AverageDealInValue, ShouldAlmostEqual, 3900.0, 1e-9)
				So(*st.Hands.MedianWinValue, ShouldAlmostEqual, 8000.0, 1e-9)
				So(st.Hands.LongestHandWinStreak, ShouldEqual, 2)
			})
		})

		Convey("When aggregating only January's first week", func() {
			tr := ratingconfig.TimeRange{StartDate: "2025-01-10", EndDate: "2025-01-12"}
			st := stats.Aggregate("p1", games, hands, tr)

			Convey("Then games outside the range are ignored", func() {
				So(st.GamesPlayed, ShouldEqual, 3)
				So(st.PlacementCounts, ShouldResemble, [4]int{2, 0, 0, 1})
				So(st.Games.CurrentStreak, ShouldEqual, -1)
			})
		})

		Convey("When aggregating twice", func() {
			a := stats.Aggregate("p1", games, hands, ratingconfig.TimeRange{})
			b := stats.Aggregate("p1", games, hands, ratingconfig.TimeRange{})

			Convey("Then the results are identical", func() {
				So(cmp.Diff(a, b), ShouldBeEmpty)
			})
		})

		Convey("When the player has no games", func() {
			st := stats.Aggregate("nobody", games, hands, ratingconfig.TimeRange{})

			Convey("Then every rate is undefined", func() {
				So(st.GamesPlayed, ShouldEqual, 0)
				So(st.AveragePlacement, ShouldEqual, 0)
				So(st.Games.AverageFinalScore, ShouldBeNil)
				So(st.Hands.WinRate, ShouldBeNil)
			})
		})
	})
}
