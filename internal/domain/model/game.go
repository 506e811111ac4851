// Package model contains domain models passed between layers.
package model

import "time"

// SeatCount is the number of players at a riichi mahjong table.
const SeatCount = 4

// Seat identifies a table position. The numeric order (east first) is the
// fixed tie-break order used when two players finish on the same score.
type Seat int

// Seats in wind order.
const (
	East Seat = iota
	South
	West
	North
)

var seatNames = [SeatCount]string{"east", "south", "west", "north"}

// String returns the lowercase wind name.
func (s Seat) String() string {
	if s < East || s > North {
		return "unknown"
	}
	return seatNames[s]
}

// ParseSeat maps a wind name back to its Seat.
func ParseSeat(name string) (Seat, bool) {
	for i, n := range seatNames {
		if n == name {
			return Seat(i), true
		}
	}
	return 0, false
}

// SeatResult is one player's final table score.
type SeatResult struct {
	PlayerID   string `json:"player_id"`
	FinalScore int    `json:"final_score"`
}

// GameRecord is one completed four player game. Seats are stored in wind
// order (east, south, west, north).
type GameRecord struct {
	GameID string                `json:"game_id"`
	Date   time.Time             `json:"date"`
	Seats  [SeatCount]SeatResult `json:"seats"`
}

// HasPlayer reports whether the player sat at this table.
func (g *GameRecord) HasPlayer(playerID string) bool {
	for _, s := range g.Seats {
		if s.PlayerID == playerID {
			return true
		}
	}
	return false
}

// PlacementRecord is the derived per game, per player result.
//
// Position is the finishing position under the total order (score desc, seat
// asc). RatingRank is the rank used by the skill update, where equal scores
// share the best rank.
type PlacementRecord struct {
	GameID     string    `json:"game_id"`
	Date       time.Time `json:"date"`
	PlayerID   string    `json:"player_id"`
	Seat       Seat      `json:"seat"`
	FinalScore int       `json:"final_score"`
	Position   int       `json:"position"`
	RatingRank int       `json:"rating_rank"`
	PlusMinus  int       `json:"plus_minus"`
	Weight     float64   `json:"weight"`
}

// PlayerRatingState is a player's skill estimate under one configuration.
type PlayerRatingState struct {
	PlayerID     string    `json:"player_id"`
	Mu           float64   `json:"mu"`
	Sigma        float64   `json:"sigma"`
	GamesPlayed  int       `json:"games_played"`
	LastGameDate time.Time `json:"last_game_date"`
}
