// Package stats folds a player's placements and hand events into summary
// statistics.
package stats

import (
	"math"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/okian/mjrating/internal/domain/model"
	"github.com/okian/mjrating/internal/domain/ratingconfig"
)

// ScoreRecord points at the game holding an extreme value.
type ScoreRecord struct {
	GameID string `json:"game_id"`
	Value  int    `json:"value"`
}

// GameStats summarises finished games.
type GameStats struct {
	AverageFinalScore       *float64                  `json:"average_final_score"`
	ScoreStdDev             *float64                  `json:"score_std_dev"`
	HighestFinalScore       *ScoreRecord              `json:"highest_final_score"`
	LowestFinalScore        *ScoreRecord              `json:"lowest_final_score"`
	BestGamePlusMinus       *ScoreRecord              `json:"best_game_plus_minus"`
	WorstGamePlusMinus      *ScoreRecord              `json:"worst_game_plus_minus"`
	BustedGames             int                       `json:"busted_games"`
	BustedGameRate          *float64                  `json:"busted_game_rate"`
	PlacementRates          [model.SeatCount]*float64 `json:"placement_rates"`
	SeatRates               [model.SeatCount]*float64 `json:"seat_rates"`
	LongestFirstStreak      int                       `json:"longest_first_streak"`
	LongestFourthFreeStreak int                       `json:"longest_fourth_free_streak"`
	LongestWinlessStreak    int                       `json:"longest_winless_streak"`
	CurrentStreak           int                       `json:"current_streak"` // >0 consecutive firsts, <0 consecutive non-firsts
	PerfectGames            int                       `json:"perfect_games"`  // recorded games without a deal-in
}

// HandStats summarises hand events. Rates are percentages; nil when the
// denominator is zero.
type HandStats struct {
	Hands                 int      `json:"hands"`
	Wins                  int      `json:"wins"`
	TsumoWins             int      `json:"tsumo_wins"`
	DealIns               int      `json:"deal_ins"`
	RiichiHands           int      `json:"riichi_hands"`
	WinRate               *float64 `json:"win_rate"`
	TsumoRate             *float64 `json:"tsumo_rate"`
	DealInRate            *float64 `json:"deal_in_rate"`
	RiichiRate            *float64 `json:"riichi_rate"`
	WinWithRiichiRate     *float64 `json:"win_with_riichi_rate"`
	DealerWinRate         *float64 `json:"dealer_win_rate"`
	NonDealerWinRate      *float64 `json:"non_dealer_win_rate"`
	AverageWinValue       *float64 `json:"average_win_value"`
	MedianWinValue        *float64 `json:"median_win_value"`
	AverageDealInValue    *float64 `json:"average_deal_in_value"`
	LongestHandWinStreak  int      `json:"longest_hand_win_streak"` // consecutive hands won within one game
	RiichiWinRate         *float64 `json:"riichi_win_rate"`
	NoRiichiWinRate       *float64 `json:"no_riichi_win_rate"`
	AveragePointsPerTsumo *float64 `json:"average_points_per_tsumo"`
	AveragePointsPerRon   *float64 `json:"average_points_per_ron"`
}

// PlayerStatistics is the full summary for one player in one time range.
type PlayerStatistics struct {
	PlayerID         string               `json:"player_id"`
	GamesPlayed      int                  `json:"games_played"`
	PlacementCounts  [model.SeatCount]int `json:"placement_counts"`
	TotalPlusMinus   int                  `json:"total_plus_minus"`
	AveragePlacement float64              `json:"average_placement"`
	Games            GameStats            `json:"games"`
	Hands            HandStats            `json:"hands"`
}

// Aggregate folds the player's placements inside tr, and the player's hand
// events from those games, into statistics. It keeps no state between calls.
func Aggregate(playerID string, games []model.PlacementRecord, hands []model.HandEvent, tr ratingconfig.TimeRange) PlayerStatistics {
	own := make([]model.PlacementRecord, 0, len(games))
	for _, g := range games {
		if g.PlayerID == playerID && tr.Contains(g.Date) {
			own = append(own, g)
		}
	}
	sort.SliceStable(own, func(i, j int) bool {
		if !own[i].Date.Equal(own[j].Date) {
			return own[i].Date.Before(own[j].Date)
		}
		return own[i].GameID < own[j].GameID
	})

	seatByGame := make(map[string]model.Seat, len(own))
	for _, g := range own {
		seatByGame[g.GameID] = g.Seat
	}
	mine := make([]model.HandEvent, 0, len(hands))
	for _, h := range hands {
		if seat, ok := seatByGame[h.GameID]; ok && h.Seat == seat {
			mine = append(mine, h)
		}
	}

	st := PlayerStatistics{PlayerID: playerID, GamesPlayed: len(own)}
	posSum := 0
	for _, g := range own {
		if g.Position >= 1 && g.Position <= model.SeatCount {
			st.PlacementCounts[g.Position-1]++
		}
		posSum += g.Position
		st.TotalPlusMinus += g.PlusMinus
	}
	if len(own) > 0 {
		st.AveragePlacement = float64(posSum) / float64(len(own))
	}
	st.Games = gameStats(own, mine, st.PlacementCounts)
	st.Hands = handStats(mine)
	return st
}

func gameStats(games []model.PlacementRecord, hands []model.HandEvent, counts [model.SeatCount]int) GameStats {
	var gs GameStats
	n := len(games)
	if n == 0 {
		return gs
	}

	scores := make([]float64, n)
	var seats [model.SeatCount]int
	firsts := make([]bool, n)
	fourths := make([]bool, n)
	for i, g := range games {
		scores[i] = float64(g.FinalScore)
		if g.Seat >= model.East && g.Seat <= model.North {
			seats[g.Seat]++
		}
		firsts[i] = g.Position == 1
		fourths[i] = g.Position == model.SeatCount
		if g.FinalScore < 0 {
			gs.BustedGames++
		}
		gs.HighestFinalScore = extreme(gs.HighestFinalScore, g.GameID, g.FinalScore, true)
		gs.LowestFinalScore = extreme(gs.LowestFinalScore, g.GameID, g.FinalScore, false)
		gs.BestGamePlusMinus = extreme(gs.BestGamePlusMinus, g.GameID, g.PlusMinus, true)
		gs.WorstGamePlusMinus = extreme(gs.WorstGamePlusMinus, g.GameID, g.PlusMinus, false)
	}

	gs.AverageFinalScore = average(scores)
	gs.ScoreStdDev = stdDev(scores)
	gs.BustedGameRate = percent(gs.BustedGames, n)
	for i := range counts {
		gs.PlacementRates[i] = percent(counts[i], n)
		gs.SeatRates[i] = percent(seats[i], n)
	}
	gs.LongestFirstStreak = longestRun(firsts, true)
	gs.LongestFourthFreeStreak = longestRun(fourths, false)
	gs.LongestWinlessStreak = longestRun(firsts, false)
	gs.CurrentStreak = currentStreak(firsts)

	recorded := mapset.NewThreadUnsafeSet[string]()
	dealtIn := mapset.NewThreadUnsafeSet[string]()
	for i := range hands {
		recorded.Add(hands[i].GameID)
		if hands[i].DealtIn() {
			dealtIn.Add(hands[i].GameID)
		}
	}
	gs.PerfectGames = recorded.Difference(dealtIn).Cardinality()
	return gs
}

func handStats(hands []model.HandEvent) HandStats {
	var hs HandStats
	type handKey struct {
		game string
		seq  int
	}
	unique := mapset.NewThreadUnsafeSet[handKey]()
	winSeqs := make(map[string][]int)
	var winValues, dealInValues, tsumoValues, ronValues []float64
	dealerHands, dealerWins, otherHands, otherWins := 0, 0, 0, 0
	riichiWins := 0

	for i := range hands {
		h := &hands[i]
		unique.Add(handKey{h.GameID, h.HandSeq})
		if h.RiichiDeclared {
			hs.RiichiHands++
		}
		won := h.Won()
		if won {
			hs.Wins++
			winSeqs[h.GameID] = append(winSeqs[h.GameID], h.HandSeq)
			if h.RiichiDeclared {
				riichiWins++
			}
			if h.PointsDelta > 0 {
				winValues = append(winValues, float64(h.PointsDelta))
			}
			if h.Type == model.HandTsumo {
				hs.TsumoWins++
				if h.PointsDelta > 0 {
					tsumoValues = append(tsumoValues, float64(h.PointsDelta))
				}
			} else if h.PointsDelta > 0 {
				ronValues = append(ronValues, float64(h.PointsDelta))
			}
		}
		if h.DealtIn() {
			hs.DealIns++
			if h.PointsDelta != 0 {
				dealInValues = append(dealInValues, math.Abs(float64(h.PointsDelta)))
			}
		}
		if h.DealerSeat != nil {
			if h.IsDealer() {
				dealerHands++
				if won {
					dealerWins++
				}
			} else {
				otherHands++
				if won {
					otherWins++
				}
			}
		}
	}

	hs.Hands = unique.Cardinality()
	hs.WinRate = percent(hs.Wins, hs.Hands)
	hs.TsumoRate = percent(hs.TsumoWins, hs.Wins)
	hs.DealInRate = percent(hs.DealIns, hs.Hands)
	hs.RiichiRate = percent(hs.RiichiHands, hs.Hands)
	hs.WinWithRiichiRate = percent(riichiWins, hs.Wins)
	hs.DealerWinRate = percent(dealerWins, dealerHands)
	hs.NonDealerWinRate = percent(otherWins, otherHands)
	hs.RiichiWinRate = percent(riichiWins, hs.RiichiHands)
	hs.NoRiichiWinRate = percent(hs.Wins-riichiWins, hs.Hands-hs.RiichiHands)
	hs.AverageWinValue = average(winValues)
	hs.MedianWinValue = median(winValues)
	hs.AverageDealInValue = average(dealInValues)
	hs.AveragePointsPerTsumo = average(tsumoValues)
	hs.AveragePointsPerRon = average(ronValues)

	for _, seqs := range winSeqs {
		if run := longestConsecutive(seqs); run > hs.LongestHandWinStreak {
			hs.LongestHandWinStreak = run
		}
	}
	return hs
}

func extreme(cur *ScoreRecord, gameID string, v int, highest bool) *ScoreRecord {
	if cur == nil || (highest && v > cur.Value) || (!highest && v < cur.Value) {
		return &ScoreRecord{GameID: gameID, Value: v}
	}
	return cur
}

func percent(num, den int) *float64 {
	if den <= 0 {
		return nil
	}
	v := float64(num) / float64(den) * 100
	return &v
}

func average(vs []float64) *float64 {
	if len(vs) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	avg := sum / float64(len(vs))
	return &avg
}

func median(vs []float64) *float64 {
	if len(vs) == 0 {
		return nil
	}
	s := append([]float64(nil), vs...)
	sort.Float64s(s)
	mid := len(s) / 2
	m := s[mid]
	if len(s)%2 == 0 {
		m = (s[mid-1] + s[mid]) / 2
	}
	return &m
}

// stdDev is the population standard deviation; nil below two samples.
func stdDev(vs []float64) *float64 {
	if len(vs) < 2 {
		return nil
	}
	avg := *average(vs)
	sum := 0.0
	for _, v := range vs {
		sum += (v - avg) * (v - avg)
	}
	sd := math.Sqrt(sum / float64(len(vs)))
	return &sd
}

// longestRun counts the longest run of flags equal to want.
func longestRun(flags []bool, want bool) int {
	best, cur := 0, 0
	for _, f := range flags {
		if f == want {
			cur++
			if cur > best {
				best = cur
			}
		} else {
			cur = 0
		}
	}
	return best
}

func currentStreak(firsts []bool) int {
	streak := 0
	for i := len(firsts) - 1; i >= 0; i-- {
		switch {
		case firsts[i] && streak >= 0:
			streak++
		case !firsts[i] && streak <= 0:
			streak--
		default:
			return streak
		}
	}
	return streak
}

func longestConsecutive(seqs []int) int {
	s := mapset.NewThreadUnsafeSet(seqs...).ToSlice()
	sort.Ints(s)
	best, cur := 0, 0
	for i, v := range s {
		if i > 0 && v == s[i-1]+1 {
			cur++
		} else {
			cur = 1
		}
		if cur > best {
			best = cur
		}
	}
	return best
}
