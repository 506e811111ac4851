// Package qualification decides leaderboard eligibility and computes
// drop-worst adjusted averages.
package qualification

import (
	"math"
	"sort"

	"github.com/okian/mjrating/internal/domain/model"
	"github.com/okian/mjrating/internal/domain/rating"
	"github.com/okian/mjrating/internal/domain/ratingconfig"
)

// Statistic selects which average EffectiveAverage reports.
type Statistic int

// Statistics available after dropping the worst games.
const (
	StatPlacement Statistic = iota
	StatPlusMinus
)

// ParseStatistic maps "placement" or "plus_minus" to a Statistic.
func ParseStatistic(s string) (Statistic, bool) {
	switch s {
	case "placement":
		return StatPlacement, true
	case "plus_minus", "plusminus":
		return StatPlusMinus, true
	default:
		return 0, false
	}
}

// Result is a player's qualification under one configuration.
type Result struct {
	PlayerID         string   `json:"player_id"`
	Eligible         bool     `json:"eligible"`
	GamesPlayed      int      `json:"games_played"`
	GamesCounted     int      `json:"games_counted"`
	Dropped          []string `json:"dropped"` // game ids, worst first
	AveragePlacement float64  `json:"average_placement"`
	AveragePlusMinus float64  `json:"average_plus_minus"`
}

// EffectiveAverage returns the requested average over the counted games.
func (r Result) EffectiveAverage(stat Statistic) float64 {
	if stat == StatPlusMinus {
		return r.AveragePlusMinus
	}
	return r.AveragePlacement
}

// Qualify evaluates one player's games. Records belonging to other players
// are ignored. The dropWorst games with the lowest plus-minus are discarded
// (earliest date, then game id, first on ties) before averaging.
func Qualify(playerID string, games []model.PlacementRecord, cfg ratingconfig.Configuration) Result {
	own := make([]model.PlacementRecord, 0, len(games))
	for _, g := range games {
		if g.PlayerID == playerID {
			own = append(own, g)
		}
	}
	sort.SliceStable(own, func(i, j int) bool {
		if own[i].PlusMinus != own[j].PlusMinus {
			return own[i].PlusMinus < own[j].PlusMinus
		}
		if !own[i].Date.Equal(own[j].Date) {
			return own[i].Date.Before(own[j].Date)
		}
		return own[i].GameID < own[j].GameID
	})

	q := cfg.Qualification
	played := len(own)
	drop := q.DropWorst
	if drop > played {
		drop = played
	}

	res := Result{
		PlayerID:     playerID,
		GamesPlayed:  played,
		GamesCounted: played - drop,
		Dropped:      make([]string, 0, drop),
		Eligible:     played >= q.MinGames && q.DropWorst < played,
	}
	for _, g := range own[:drop] {
		res.Dropped = append(res.Dropped, g.GameID)
	}

	counted := own[drop:]
	if len(counted) == 0 {
		return res
	}
	var posSum, pmSum float64
	for _, g := range counted {
		posSum += float64(g.Position)
		pmSum += float64(g.PlusMinus)
	}
	n := float64(len(counted))
	res.AveragePlacement = posSum / n
	res.AveragePlusMinus = pmSum / n
	return res
}

// Candidate is a rated player considered for the leaderboard.
type Candidate struct {
	State         model.PlayerRatingState
	DisplayRating float64
	Qualification Result
}

// Standing is one ranked leaderboard row.
type Standing struct {
	Rank             int     `json:"rank"`
	PlayerID         string  `json:"player_id"`
	DisplayRating    float64 `json:"display_rating"`
	Mu               float64 `json:"mu"`
	Sigma            float64 `json:"sigma"`
	GamesPlayed      int     `json:"games_played"`
	AveragePlacement float64 `json:"average_placement"`
	AveragePlusMinus float64 `json:"average_plus_minus"`
}

// Candidates qualifies every rated player of a replay.
func Candidates(res *rating.Result, cfg ratingconfig.Configuration) []Candidate {
	byPlayer := res.Placements()
	out := make([]Candidate, 0, len(res.States))
	for id, st := range res.States {
		out = append(out, Candidate{
			State:         st,
			DisplayRating: rating.DisplayRating(st.Mu, st.Sigma, cfg),
			Qualification: Qualify(id, byPlayer[id], cfg),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].State.PlayerID < out[j].State.PlayerID })
	return out
}

// Leaderboard ranks eligible candidates by display rating (desc), then
// player id (asc). Equal display ratings share a rank and the next distinct
// rating takes the following rank.
func Leaderboard(cands []Candidate) []Standing {
	eligible := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Qualification.Eligible && !math.IsNaN(c.DisplayRating) {
			eligible = append(eligible, c)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].DisplayRating != eligible[j].DisplayRating {
			return eligible[i].DisplayRating > eligible[j].DisplayRating
		}
		return eligible[i].State.PlayerID < eligible[j].State.PlayerID
	})

	out := make([]Standing, len(eligible))
	rank := 0
	for i, c := range eligible {
		if i == 0 || c.DisplayRating != eligible[i-1].DisplayRating {
			rank++
		}
		out[i] = Standing{
			Rank:             rank,
			PlayerID:         c.State.PlayerID,
			DisplayRating:    c.DisplayRating,
			Mu:               c.State.Mu,
			Sigma:            c.State.Sigma,
			GamesPlayed:      c.State.GamesPlayed,
			AveragePlacement: c.Qualification.AveragePlacement,
			AveragePlusMinus: c.Qualification.AveragePlusMinus,
		}
	}
	return out
}

// Lookup finds a candidate whether or not it is eligible.
func Lookup(cands []Candidate, playerID string) (Candidate, bool) {
	for _, c := range cands {
		if c.State.PlayerID == playerID {
			return c, true
		}
	}
	return Candidate{}, false
}
