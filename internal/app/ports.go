package service

import (
	"context"

	"github.com/okian/mjrating/internal/domain/model"
	"github.com/okian/mjrating/internal/domain/ratingconfig"
)

// GameSource supplies the completed games and their hand events. Both calls
// may return records outside tr; the service filters again.
type GameSource interface {
	Games(ctx context.Context, tr ratingconfig.TimeRange) ([]model.GameRecord, error)
	HandEvents(ctx context.Context, tr ratingconfig.TimeRange) ([]model.HandEvent, error)
}

// ConfigStore persists rating configurations keyed by their full hash.
type ConfigStore interface {
	// Put stores cfg under hash. Storing the same hash twice is a no-op.
	Put(ctx context.Context, hash string, cfg ratingconfig.Configuration) error

	// Get returns ratingconfig.ErrUnknownConfiguration for unknown hashes.
	Get(ctx context.Context, hash string) (ratingconfig.Configuration, error)

	// List returns every stored full hash in ascending order.
	List(ctx context.Context) ([]string, error)
}
