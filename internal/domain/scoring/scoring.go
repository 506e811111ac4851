// Package scoring turns final table scores into placements, plus-minus and
// margin of victory weights.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/mjrating/internal/domain/model"
	"github.com/okian/mjrating/internal/domain/ratingconfig"
)

// PlusMinus returns finalScore - oka + uma[position-1].
func PlusMinus(finalScore, position int, cfg ratingconfig.Configuration) (int, error) {
	if position < 1 || position > len(cfg.Scoring.Uma) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPosition, position)
	}
	return finalScore - cfg.Scoring.Oka + cfg.Scoring.Uma[position-1], nil
}

// WeightScale maps a plus-minus onto the rating update multiplier
// clamp(1 + plusMinus/divisor, min, max).
func WeightScale(plusMinus int, cfg ratingconfig.Configuration) float64 {
	w := cfg.Weights
	x := 1 + float64(plusMinus)/w.Divisor
	if math.IsNaN(x) {
		return w.Min
	}
	return math.Max(w.Min, math.Min(w.Max, x))
}

// Order returns seat indexes in finishing order: higher score first, lower
// seat index first on equal scores.
func Order(game model.GameRecord) [model.SeatCount]int {
	var idx [model.SeatCount]int
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx[:], func(a, b int) bool {
		sa, sb := game.Seats[idx[a]].FinalScore, game.Seats[idx[b]].FinalScore
		if sa != sb {
			return sa > sb
		}
		return idx[a] < idx[b]
	})
	return idx
}

// Placements derives the placement record of every seat, in seat order.
// Position follows Order; RatingRank gives equal scores the same, best rank.
// Seats on equal scores split the uma of the positions they occupy, so they
// share one plus-minus and one weight.
func Placements(game model.GameRecord, cfg ratingconfig.Configuration) ([model.SeatCount]model.PlacementRecord, error) {
	var out [model.SeatCount]model.PlacementRecord
	order := Order(game)
	for pos, seat := range order {
		s := game.Seats[seat]
		pm, err := PlusMinus(s.FinalScore, pos+1, cfg)
		if err != nil {
			return out, err
		}
		pm += sharedUma(game, order, pos, cfg) - cfg.Scoring.Uma[pos]
		out[seat] = model.PlacementRecord{
			GameID:     game.GameID,
			Date:       game.Date,
			PlayerID:   s.PlayerID,
			Seat:       model.Seat(seat),
			FinalScore: s.FinalScore,
			Position:   pos + 1,
			RatingRank: ratingRank(game, seat),
			PlusMinus:  pm,
			Weight:     WeightScale(pm, cfg),
		}
	}
	return out, nil
}

func ratingRank(game model.GameRecord, seat int) int {
	rank := 1
	for _, s := range game.Seats {
		if s.FinalScore > game.Seats[seat].FinalScore {
			rank++
		}
	}
	return rank
}

// sharedUma averages the uma over every position held by a seat with the same
// score as the seat at pos, rounded half away from zero.
func sharedUma(game model.GameRecord, order [model.SeatCount]int, pos int, cfg ratingconfig.Configuration) int {
	score := game.Seats[order[pos]].FinalScore
	total, n := 0, 0
	for p, seat := range order {
		if game.Seats[seat].FinalScore == score {
			total += cfg.Scoring.Uma[p]
			n++
		}
	}
	return int(math.Round(float64(total) / float64(n)))
}
