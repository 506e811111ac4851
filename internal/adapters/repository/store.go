// Package repository stores published rating snapshots, one per
// configuration hash.
package repository

import (
	"context"
	"time"

	"github.com/okian/mjrating/internal/domain/model"
	"github.com/okian/mjrating/internal/domain/qualification"
	"github.com/okian/mjrating/internal/domain/rating"
	"github.com/okian/mjrating/internal/domain/ratingconfig"
	"github.com/okian/mjrating/internal/domain/stats"
)

// Snapshot is the complete output of one recompute. It is immutable once
// published; readers see either the previous or the new snapshot, never a
// mix.
type Snapshot struct {
	ConfigHash    string                             `json:"config_hash"`
	ShortHash     string                             `json:"short_hash"`
	SourceHash    string                             `json:"source_hash"`
	Config        ratingconfig.Configuration         `json:"config"`
	ComputedAt    time.Time                          `json:"computed_at"`
	GamesReplayed int                                `json:"games_replayed"`
	States        map[string]model.PlayerRatingState `json:"states"`
	Statistics    map[string]stats.PlayerStatistics  `json:"statistics"`
	Qualification map[string]qualification.Result    `json:"qualification"`
	History       []rating.GameResult                `json:"history"`
	Standings     []qualification.Standing           `json:"standings"`
}

// Entry is a leaderboard row. Rank is shared by equal display ratings;
// Position is the 1-based row index and is unique.
type Entry struct {
	Rank             int     `json:"rank"`
	Position         int     `json:"position"`
	PlayerID         string  `json:"player_id"`
	DisplayRating    float64 `json:"display_rating"`
	Mu               float64 `json:"mu"`
	Sigma            float64 `json:"sigma"`
	GamesPlayed      int     `json:"games_played"`
	AveragePlacement float64 `json:"average_placement"`
	AveragePlusMinus float64 `json:"average_plus_minus"`
}

// Store provides read/write access to published snapshots.
type Store interface {
	// Publish replaces the snapshot for s.ConfigHash as a whole.
	Publish(ctx context.Context, s *Snapshot) error

	// Get returns the snapshot for a full configuration hash.
	// Returns ErrNotFound if nothing was published for it.
	Get(ctx context.Context, configHash string) (*Snapshot, error)

	// TopN returns up to n eligible players ordered by display rating desc,
	// then player ID asc.
	TopN(ctx context.Context, configHash string, n int) ([]Entry, error)

	// Rank returns the leaderboard row for one eligible player.
	Rank(ctx context.Context, configHash, playerID string) (Entry, error)

	// Count returns the number of ranked players for a configuration.
	Count(ctx context.Context, configHash string) int

	// Hashes lists the configuration hashes with a published snapshot.
	Hashes(ctx context.Context) []string
}
