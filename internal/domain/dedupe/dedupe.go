// Package dedupe tracks keys of in-flight work so duplicate requests can be
// coalesced onto the one already pending.
package dedupe

import (
	"context"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

const defaultMaxSize = 4096

// Deduper records pending keys.
type Deduper interface {
	// SeenAndRecord atomically checks if key is pending and records it if
	// not. It returns true when key was already pending.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord releases key so a later request is accepted again.
	Unrecord(ctx context.Context, key string)

	// Pending returns the recorded keys in no particular order.
	Pending(ctx context.Context) []string

	Size() int64
}

type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    mapset.Set[string]
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = mapset.NewThreadUnsafeSet[string]()
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(ctx context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.seen.Contains(key) {
		return true
	}
	if d.maxSize > 0 && d.seen.Cardinality() >= d.maxSize {
		return false
	}
	d.seen.Add(key)
	return false
}

func (d *inMemoryDeduper) Unrecord(ctx context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen.Remove(key)
}

func (d *inMemoryDeduper) Pending(ctx context.Context) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen.ToSlice()
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.seen.Cardinality())
}
