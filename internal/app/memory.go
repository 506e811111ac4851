package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/mjrating/internal/domain/model"
	"github.com/okian/mjrating/internal/domain/ratingconfig"
)

// MemorySource is a GameSource over in-memory slices.
type MemorySource struct {
	mu    sync.RWMutex
	games []model.GameRecord
	hands []model.HandEvent
}

// NewMemorySource returns a source seeded with games and hands.
func NewMemorySource(games []model.GameRecord, hands []model.HandEvent) *MemorySource {
	return &MemorySource{
		games: append([]model.GameRecord(nil), games...),
		hands: append([]model.HandEvent(nil), hands...),
	}
}

// Add appends a game and its hand events.
func (m *MemorySource) Add(g model.GameRecord, hands ...model.HandEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games = append(m.games, g)
	m.hands = append(m.hands, hands...)
}

// Games implements GameSource.
func (m *MemorySource) Games(ctx context.Context, tr ratingconfig.TimeRange) ([]model.GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.GameRecord, 0, len(m.games))
	for _, g := range m.games {
		if tr.Contains(g.Date) {
			out = append(out, g)
		}
	}
	return out, nil
}

// HandEvents implements GameSource.
func (m *MemorySource) HandEvents(ctx context.Context, tr ratingconfig.TimeRange) ([]model.HandEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inRange := make(map[string]bool, len(m.games))
	for _, g := range m.games {
		inRange[g.GameID] = tr.Contains(g.Date)
	}
	out := make([]model.HandEvent, 0, len(m.hands))
	for _, h := range m.hands {
		if inRange[h.GameID] {
			out = append(out, h)
		}
	}
	return out, nil
}

// MemoryConfigStore is a ConfigStore backed by a map.
type MemoryConfigStore struct {
	mu      sync.RWMutex
	configs map[string]ratingconfig.Configuration
}

// NewMemoryConfigStore returns an empty store.
func NewMemoryConfigStore() *MemoryConfigStore {
	return &MemoryConfigStore{configs: make(map[string]ratingconfig.Configuration)}
}

// Put implements ConfigStore.
func (m *MemoryConfigStore) Put(ctx context.Context, hash string, cfg ratingconfig.Configuration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[hash]; !ok {
		m.configs[hash] = cfg
	}
	return nil
}

// Get implements ConfigStore.
func (m *MemoryConfigStore) Get(ctx context.Context, hash string) (ratingconfig.Configuration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[hash]
	if !ok {
		return ratingconfig.Configuration{}, fmt.Errorf("%w: %s", ratingconfig.ErrUnknownConfiguration, hash)
	}
	return cfg, nil
}

// List implements ConfigStore.
func (m *MemoryConfigStore) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.configs))
	for h := range m.configs {
		out = append(out, h)
	}
	sort.Strings(out)
	return out, nil
}
