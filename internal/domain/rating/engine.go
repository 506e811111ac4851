// Package rating replays games into per player skill estimates using the
// Weng-Lin Bayesian update over a Plackett-Luce ranking model.
package rating

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/okian/mjrating/internal/domain/model"
	"github.com/okian/mjrating/internal/domain/ratingconfig"
	"github.com/okian/mjrating/internal/domain/scoring"
)

const day = 24 * time.Hour

// GameResult is one player's outcome of one game together with the rating
// before and after the update. MuBefore and SigmaBefore are taken after
// inactivity decay.
type GameResult struct {
	model.PlacementRecord
	MuBefore    float64 `json:"mu_before"`
	SigmaBefore float64 `json:"sigma_before"`
	MuAfter     float64 `json:"mu_after"`
	SigmaAfter  float64 `json:"sigma_after"`
}

// Result is the outcome of a full replay.
type Result struct {
	States  map[string]model.PlayerRatingState
	History []GameResult // chronological, seat order within a game
	Games   int
}

// PlayerHistory returns the player's results in chronological order.
func (r *Result) PlayerHistory(playerID string) []GameResult {
	var out []GameResult
	for _, h := range r.History {
		if h.PlayerID == playerID {
			out = append(out, h)
		}
	}
	return out
}

// Placements groups placement records by player.
func (r *Result) Placements() map[string][]model.PlacementRecord {
	out := make(map[string][]model.PlacementRecord, len(r.States))
	for _, h := range r.History {
		out[h.PlayerID] = append(out[h.PlayerID], h.PlacementRecord)
	}
	return out
}

// Engine replays games. It holds no per replay state and is safe for
// concurrent use.
type Engine struct {
	sigmaFloorRatio float64
	kappa           float64
}

// NewEngine creates an Engine with the given options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		sigmaFloorRatio: DefaultSigmaFloorRatio,
		kappa:           DefaultKappa,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DisplayRating is the conservative skill estimate mu - confidenceFactor*sigma.
func DisplayRating(mu, sigma float64, cfg ratingconfig.Configuration) float64 {
	return mu - cfg.Rating.ConfidenceFactor*sigma
}

// Beta returns the performance noise used for cfg.
func Beta(cfg ratingconfig.Configuration) float64 {
	if cfg.Rating.Beta > 0 {
		return cfg.Rating.Beta
	}
	return cfg.Rating.InitialSigma / 2
}

// Tau returns the additive dynamics used for cfg.
func Tau(cfg ratingconfig.Configuration) float64 {
	if cfg.Rating.Tau > 0 {
		return cfg.Rating.Tau
	}
	return math.Abs(cfg.Rating.InitialMu) / 300
}

// ValidateGame rejects games that cannot be ranked.
func ValidateGame(g model.GameRecord) error {
	players := mapset.NewThreadUnsafeSet[string]()
	allEqual := true
	for i, s := range g.Seats {
		if s.PlayerID == "" {
			return fmt.Errorf("%w: game %s seat %s has no player", ErrDegenerateGame, g.GameID, model.Seat(i))
		}
		if !players.Add(s.PlayerID) {
			return fmt.Errorf("%w: game %s seats player %s twice", ErrDegenerateGame, g.GameID, s.PlayerID)
		}
		if s.FinalScore != g.Seats[0].FinalScore {
			allEqual = false
		}
	}
	if allEqual {
		return fmt.Errorf("%w: game %s has no distinct finishing positions", ErrDegenerateGame, g.GameID)
	}
	return nil
}

// SortGames returns a copy of games ordered by date, then game id.
func SortGames(games []model.GameRecord) []model.GameRecord {
	sorted := make([]model.GameRecord, len(games))
	copy(sorted, games)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].GameID < sorted[j].GameID
	})
	return sorted
}

// Replay rates games from scratch under cfg. Games are applied in
// chronological order regardless of input order. On error or cancellation no
// result is returned.
func (e *Engine) Replay(ctx context.Context, games []model.GameRecord, cfg ratingconfig.Configuration) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sorted := SortGames(games)

	seen := mapset.NewThreadUnsafeSet[string]()
	for _, g := range sorted {
		if !seen.Add(g.GameID) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateGame, g.GameID)
		}
		if err := ValidateGame(g); err != nil {
			return nil, err
		}
	}

	res := &Result{
		States:  make(map[string]model.PlayerRatingState),
		History: make([]GameResult, 0, len(sorted)*model.SeatCount),
	}
	for _, g := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("replay cancelled: %w", err)
		}
		results, err := e.Apply(res.States, g, cfg)
		if err != nil {
			return nil, err
		}
		res.History = append(res.History, results[:]...)
		res.Games++
	}
	return res, nil
}

// Apply updates states in place with one game and returns the per seat
// results. Missing players are created from the configured prior.
func (e *Engine) Apply(states map[string]model.PlayerRatingState, g model.GameRecord, cfg ratingconfig.Configuration) ([model.SeatCount]GameResult, error) {
	var out [model.SeatCount]GameResult
	if err := ValidateGame(g); err != nil {
		return out, err
	}
	placements, err := scoring.Placements(g, cfg)
	if err != nil {
		return out, err
	}

	var prior [model.SeatCount]model.PlayerRatingState
	for i, p := range placements {
		st, ok := states[p.PlayerID]
		if !ok {
			st = model.PlayerRatingState{
				PlayerID: p.PlayerID,
				Mu:       cfg.Rating.InitialMu,
				Sigma:    cfg.Rating.InitialSigma,
			}
		}
		st.Sigma = e.decay(st, g.Date, cfg)
		prior[i] = st
	}

	post := e.update(prior, placements, cfg)
	for i, p := range placements {
		st := post[i]
		st.GamesPlayed++
		st.LastGameDate = g.Date
		states[p.PlayerID] = st
		out[i] = GameResult{
			PlacementRecord: p,
			MuBefore:        prior[i].Mu,
			SigmaBefore:     prior[i].Sigma,
			MuAfter:         st.Mu,
			SigmaAfter:      st.Sigma,
		}
	}
	return out, nil
}

// decay inflates sigma by decayRate*initialSigma per whole idle day, capped
// at initialSigma. A sigma already above the cap is kept as is.
func (e *Engine) decay(st model.PlayerRatingState, at time.Time, cfg ratingconfig.Configuration) float64 {
	if st.GamesPlayed == 0 || cfg.Rating.DecayRate == 0 || !at.After(st.LastGameDate) {
		return st.Sigma
	}
	days := math.Floor(at.Sub(st.LastGameDate).Hours() / day.Hours())
	if days <= 0 {
		return st.Sigma
	}
	step := cfg.Rating.DecayRate * cfg.Rating.InitialSigma
	// tau can leave sigma above initialSigma; decay never shrinks it
	return math.Max(st.Sigma, math.Min(cfg.Rating.InitialSigma, math.Sqrt(st.Sigma*st.Sigma+days*step*step)))
}

// update is one joint Plackett-Luce update of all seats. Equal rating ranks
// split their terms by the tie count so no seat order leaks into the result.
func (e *Engine) update(prior [model.SeatCount]model.PlayerRatingState, placements [model.SeatCount]model.PlacementRecord, cfg ratingconfig.Configuration) [model.SeatCount]model.PlayerRatingState {
	const n = model.SeatCount
	beta2 := Beta(cfg) * Beta(cfg)
	tau2 := Tau(cfg) * Tau(cfg)
	floor := e.sigmaFloorRatio * cfg.Rating.InitialSigma

	var variance [n]float64
	sum := 0.0
	for i := range prior {
		variance[i] = prior[i].Sigma*prior[i].Sigma + tau2
		sum += variance[i] + beta2
	}
	c := math.Sqrt(sum)

	var strength, sumQ [n]float64
	var ties [n]int
	for i := range prior {
		strength[i] = math.Exp(prior[i].Mu / c)
	}
	for q := 0; q < n; q++ {
		for j := 0; j < n; j++ {
			if placements[j].RatingRank >= placements[q].RatingRank {
				sumQ[q] += strength[j]
			}
			if placements[j].RatingRank == placements[q].RatingRank {
				ties[q]++
			}
		}
	}

	var post [n]model.PlayerRatingState
	for i := 0; i < n; i++ {
		omega, delta := 0.0, 0.0
		for q := 0; q < n; q++ {
			if placements[q].RatingRank > placements[i].RatingRank {
				continue
			}
			quot := strength[i] / sumQ[q]
			a := float64(ties[q])
			if q == i {
				omega += (1 - quot) / a
			} else {
				omega -= quot / a
			}
			delta += quot * (1 - quot) / a
		}

		sigma := math.Sqrt(variance[i])
		gamma := sigma / c
		mu := prior[i].Mu + variance[i]/c*omega*placements[i].Weight
		shrink := math.Max(1-gamma*variance[i]/(c*c)*delta, e.kappa)

		post[i] = prior[i]
		post[i].Mu = mu
		post[i].Sigma = math.Max(math.Sqrt(variance[i]*shrink), floor)
	}
	return post
}
