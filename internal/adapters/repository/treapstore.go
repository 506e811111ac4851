package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/okian/mjrating/internal/domain/qualification"
	"github.com/okian/mjrating/internal/domain/ratingconfig"
	"github.com/okian/mjrating/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: leaderboard rank ASC, then player ID ASC. Ranks come from the
// published standings, so the tree never re-derives them from ratings and
// an in-order traversal yields the leaderboard from best to worst.

const defaultTopCacheSize = 500

type node struct {
	id    string
	rank  int
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func less(aRank int, aID string, bRank int, bID string) bool {
	if aRank != bRank {
		return aRank < bRank
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

// priority derives a heap key from the player ID so the tree shape does not
// depend on publish order.
func priority(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

func insert(n *node, id string, rank int) *node {
	if n == nil {
		return &node{id: id, rank: rank, prio: priority(id), size: 1}
	}
	if less(rank, id, n.rank, n.id) {
		n.left = insert(n.left, id, rank)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, rank)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

// collectTopN appends up to limit entries in rank order.
func collectTopN(n *node, limit int, byID map[string]Entry, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, byID, out)
	if len(*out) < limit {
		if e, ok := byID[n.id]; ok {
			*out = append(*out, e)
		}
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, byID, out)
	}
}

// board is the read model built once per published snapshot.
type board struct {
	snap *Snapshot
	root *node
	byID map[string]Entry
	top  []Entry
}

// TreapStore implements Store. Each configuration hash owns an immutable
// board; Publish swaps the board pointer under the write lock.
type TreapStore struct {
	mu           sync.RWMutex
	boards       map[string]*board
	topCacheSize int
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(opts ...Option) *TreapStore {
	s := &TreapStore{
		boards:       make(map[string]*board),
		topCacheSize: defaultTopCacheSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish implements Store.Publish.
func (s *TreapStore) Publish(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("publish: %w", ErrInvalidSnapshot)
	}
	if !ratingconfig.IsFullHash(snap.ConfigHash) {
		return fmt.Errorf("publish %q: %w", snap.ConfigHash, ErrInvalidSnapshot)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publish %s: %w", snap.ConfigHash, err)
	}

	b := s.build(snap)

	s.mu.Lock()
	s.boards[snap.ConfigHash] = b
	s.mu.Unlock()

	metrics.RecordSnapshotPublished(snap.ShortHash, float64(snap.ComputedAt.Unix()))
	return nil
}

func (s *TreapStore) build(snap *Snapshot) *board {
	b := &board{snap: snap, byID: make(map[string]Entry, len(snap.Standings))}
	for _, st := range snap.Standings {
		b.byID[st.PlayerID] = entryFrom(st)
		b.root = insert(b.root, st.PlayerID, st.Rank)
	}

	all := make([]Entry, 0, len(b.byID))
	collectTopN(b.root, len(b.byID), b.byID, &all)
	for i := range all {
		all[i].Position = i + 1
		b.byID[all[i].PlayerID] = all[i]
	}

	n := s.topCacheSize
	if n > len(all) {
		n = len(all)
	}
	b.top = all[:n:n]
	return b
}

func entryFrom(st qualification.Standing) Entry {
	return Entry{
		Rank:             st.Rank,
		PlayerID:         st.PlayerID,
		DisplayRating:    st.DisplayRating,
		Mu:               st.Mu,
		Sigma:            st.Sigma,
		GamesPlayed:      st.GamesPlayed,
		AveragePlacement: st.AveragePlacement,
		AveragePlusMinus: st.AveragePlusMinus,
	}
}

func (s *TreapStore) lookup(configHash string) (*board, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.boards[configHash]
	return b, ok
}

// Get implements Store.Get.
func (s *TreapStore) Get(ctx context.Context, configHash string) (*Snapshot, error) {
	b, ok := s.lookup(configHash)
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return nil, fmt.Errorf("snapshot %s: %w", configHash, ErrNotFound)
	}
	return b.snap, nil
}

// TopN implements Store.TopN.
func (s *TreapStore) TopN(ctx context.Context, configHash string, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	b, ok := s.lookup(configHash)
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return nil, fmt.Errorf("leaderboard %s: %w", configHash, ErrNotFound)
	}

	if n <= len(b.top) {
		return append([]Entry(nil), b.top[:n]...), nil
	}
	out := make([]Entry, 0, min(n, len(b.byID)))
	collectTopN(b.root, n, b.byID, &out)
	return out, nil
}

// Rank implements Store.Rank.
func (s *TreapStore) Rank(ctx context.Context, configHash, playerID string) (Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	b, ok := s.lookup(configHash)
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Entry{}, fmt.Errorf("leaderboard %s: %w", configHash, ErrNotFound)
	}
	e, ok := b.byID[playerID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Entry{}, fmt.Errorf("player %s: %w", playerID, ErrNotFound)
	}
	return e, nil
}

// Count implements Store.Count.
func (s *TreapStore) Count(ctx context.Context, configHash string) int {
	b, ok := s.lookup(configHash)
	if !ok {
		return 0
	}
	return nsize(b.root)
}

// Hashes implements Store.Hashes.
func (s *TreapStore) Hashes(ctx context.Context) []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.boards))
	for h := range s.boards {
		out = append(out, h)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}
