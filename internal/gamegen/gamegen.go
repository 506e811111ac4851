// Package gamegen builds reproducible synthetic seasons: games with the
// hand events that produce their final scores.
package gamegen

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/okian/mjrating/internal/domain/model"
)

// Table rules used when synthesizing hands.
const (
	StartingPoints = 25000
	riichiStick    = 1000
	minHands       = 8
	maxHands       = 14
)

// Config describes a season to generate.
type Config struct {
	Seed        uint64
	Players     int
	Games       int
	Start       time.Time
	MaxGapHours int
	// Prefix is prepended to game IDs so several seasons can share a store.
	Prefix string
}

// DefaultConfig is a small league of twelve players over one season.
func DefaultConfig() Config {
	return Config{
		Seed:        1,
		Players:     12,
		Games:       120,
		Start:       time.Date(2024, 1, 6, 19, 0, 0, 0, time.UTC),
		MaxGapHours: 48,
		Prefix:      "g",
	}
}

// Season is the generated data.
type Season struct {
	Players []string
	Games   []model.GameRecord
	Hands   []model.HandEvent
}

// Generate builds a season. The same Config always yields the same season.
func Generate(cfg Config) (Season, error) {
	if cfg.Players < model.SeatCount {
		return Season{}, fmt.Errorf("need at least %d players, got %d", model.SeatCount, cfg.Players)
	}
	if cfg.Games < 0 {
		return Season{}, fmt.Errorf("negative game count %d", cfg.Games)
	}
	if cfg.MaxGapHours < 1 {
		cfg.MaxGapHours = 1
	}

	f := gofakeit.New(cfg.Seed)
	s := Season{Players: roster(f, cfg.Players)}

	pool := append([]string(nil), s.Players...)
	at := cfg.Start.UTC()
	for i := 0; i < cfg.Games; i++ {
		f.ShuffleAnySlice(pool)
		id := fmt.Sprintf("%s%05d", cfg.Prefix, i+1)

		var seats [model.SeatCount]string
		copy(seats[:], pool[:model.SeatCount])

		g, hands := playGame(f, id, at, seats)
		for allEqual(g) {
			g, hands = playGame(f, id, at, seats)
		}
		s.Games = append(s.Games, g)
		s.Hands = append(s.Hands, hands...)

		at = at.Add(time.Duration(f.IntRange(1, cfg.MaxGapHours)) * time.Hour)
	}
	return s, nil
}

// allEqual reports a table where nobody gained or lost anything; such a game
// carries no ranking information and is rejected by the rating engine.
func allEqual(g model.GameRecord) bool {
	for _, s := range g.Seats[1:] {
		if s.FinalScore != g.Seats[0].FinalScore {
			return false
		}
	}
	return true
}

func roster(f *gofakeit.Faker, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%02d", strings.ToLower(f.FirstName()), i+1)
	}
	return out
}

// playGame plays a game hand by hand; final scores are the starting points
// plus every hand's delta, so the two views always agree.
func playGame(f *gofakeit.Faker, id string, at time.Time, players [model.SeatCount]string) (model.GameRecord, []model.HandEvent) {
	var scores [model.SeatCount]int
	for i := range scores {
		scores[i] = StartingPoints
	}

	n := f.IntRange(minHands, maxHands)
	hands := make([]model.HandEvent, 0, n*model.SeatCount)
	for seq := 1; seq <= n; seq++ {
		dealer := model.Seat((seq - 1) % model.SeatCount)
		rows := playHand(f, id, seq, dealer)
		for _, r := range rows {
			scores[r.Seat] += r.PointsDelta
		}
		hands = append(hands, rows[:]...)
	}

	g := model.GameRecord{GameID: id, Date: at}
	for i := range players {
		g.Seats[i] = model.SeatResult{PlayerID: players[i], FinalScore: scores[i]}
	}
	return g, hands
}

func playHand(f *gofakeit.Faker, gameID string, seq int, dealer model.Seat) [model.SeatCount]model.HandEvent {
	var rows [model.SeatCount]model.HandEvent
	for i := range rows {
		d := dealer
		rows[i] = model.HandEvent{
			GameID:         gameID,
			HandSeq:        seq,
			Seat:           model.Seat(i),
			RiichiDeclared: f.IntRange(0, 9) < 2,
			DealerSeat:     &d,
		}
	}

	kind := f.IntRange(0, 99)
	switch {
	case kind < 30:
		winner := model.Seat(f.IntRange(0, 3))
		value := handValue(f, winner == dealer)
		share := roundUp100(value / 3)
		for i := range rows {
			w := winner
			rows[i].Type = model.HandTsumo
			rows[i].WinnerSeat = &w
			if model.Seat(i) == winner {
				rows[i].PointsDelta = share * 3
			} else {
				rows[i].PointsDelta = -share
			}
		}
	case kind < 85:
		winner := model.Seat(f.IntRange(0, 3))
		loser := model.Seat((int(winner) + f.IntRange(1, 3)) % model.SeatCount)
		value := handValue(f, winner == dealer)
		for i := range rows {
			w, l := winner, loser
			rows[i].Type = model.HandRon
			rows[i].WinnerSeat = &w
			rows[i].LoserSeat = &l
			switch model.Seat(i) {
			case winner:
				rows[i].PointsDelta = value
			case loser:
				rows[i].PointsDelta = -value
			}
		}
	default:
		for i := range rows {
			rows[i].Type = model.HandDraw
		}
	}

	// Riichi sticks go to the winner, or stay on the table after a draw.
	pot := 0
	for i := range rows {
		if rows[i].RiichiDeclared {
			rows[i].PointsDelta -= riichiStick
			pot += riichiStick
		}
	}
	for i := range rows {
		if rows[i].Won() {
			rows[i].PointsDelta += pot
		}
	}
	return rows
}

// handValue draws a hand value from the standard limit tiers.
func handValue(f *gofakeit.Faker, dealer bool) int {
	tiers := []int{1000, 2000, 3900, 5200, 8000, 12000, 16000, 24000, 32000}
	v := tiers[min(f.IntRange(0, 7)+f.IntRange(0, 1), len(tiers)-1)]
	if dealer {
		v = roundUp100(v * 3 / 2)
	}
	return v
}

func roundUp100(v int) int {
	return (v + 99) / 100 * 100
}
