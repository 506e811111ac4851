// Package service wires the rating domain to storage, the recompute queue and
// the snapshot store. It implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	jobqueue "github.com/okian/mjrating/internal/adapters/mq/queue"
	workerpool "github.com/okian/mjrating/internal/adapters/mq/worker"
	"github.com/okian/mjrating/internal/adapters/repository"
	"github.com/okian/mjrating/internal/domain/dedupe"
	"github.com/okian/mjrating/internal/domain/model"
	"github.com/okian/mjrating/internal/domain/qualification"
	"github.com/okian/mjrating/internal/domain/rating"
	"github.com/okian/mjrating/internal/domain/ratingconfig"
	"github.com/okian/mjrating/internal/domain/stats"
	"github.com/okian/mjrating/pkg/logger"
	"github.com/okian/mjrating/pkg/metrics"
)

// PlayerView is everything published about one player under one
// configuration.
type PlayerView struct {
	ConfigHash    string                  `json:"config_hash"`
	State         model.PlayerRatingState `json:"state"`
	DisplayRating float64                 `json:"display_rating"`
	Standing      *repository.Entry       `json:"standing,omitempty"`
	Qualification qualification.Result    `json:"qualification"`
	Statistics    stats.PlayerStatistics  `json:"statistics"`
	History       []rating.GameResult     `json:"history"`
}

// Job is the receipt for an asynchronous recompute request.
type Job struct {
	JobID      string `json:"job_id"`
	ConfigHash string `json:"config_hash"`
	Coalesced  bool   `json:"coalesced"`
}

type pendingJob struct {
	id    string
	force bool
}

// Service implements the API dependencies for the rating system.
type Service struct {
	mu sync.RWMutex

	source  GameSource
	configs ConfigStore
	store   repository.Store
	engine  *rating.Engine

	deduper    dedupe.Deduper
	jobs       jobqueue.Queue
	workerPool *workerpool.Pool
	pending    map[string]pendingJob

	locks keyedMutex

	workerCount      int
	queueSize        int
	dedupeSize       int
	shortHashLength  int
	recomputeTimeout time.Duration
	now              func() time.Time

	started bool
	logger  logger.Logger
}

// New constructs a Service over its collaborators.
func New(source GameSource, configs ConfigStore, store repository.Store, opts ...Option) *Service {
	s := &Service{
		source:          source,
		configs:         configs,
		store:           store,
		engine:          rating.NewEngine(),
		pending:         make(map[string]pendingJob),
		workerCount:     runtime.NumCPU(),
		queueSize:       1024,
		dedupeSize:      4096,
		shortHashLength: ratingconfig.DefaultShortHashLength,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	return s
}

// Start creates the job queue and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.jobs = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.jobs, s)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "rating service started",
		logger.Int("workers", s.workerPool.Size()),
		logger.Int("queue_size", s.queueSize),
	)
	return nil
}

// Stop drains the queue and stops the workers. Jobs already running finish
// first.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	pool := s.workerPool
	s.started = false
	s.mu.Unlock()

	err := pool.Shutdown(ctx)
	s.logger.Info(ctx, "rating service stopped")
	return err
}

// RegisterConfiguration validates cfg and stores it under its hash. It is
// idempotent.
func (s *Service) RegisterConfiguration(ctx context.Context, cfg ratingconfig.Configuration) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	hash := ratingconfig.Hash(cfg)
	if err := s.configs.Put(ctx, hash, cfg); err != nil {
		return "", fmt.Errorf("store configuration %s: %w", ratingconfig.ShortHash(hash, s.shortHashLength), err)
	}
	if all, err := s.configs.List(ctx); err == nil {
		metrics.UpdateConfigurations(len(all))
	}
	s.logger.Debug(ctx, "configuration registered",
		logger.String("config", ratingconfig.ShortHash(hash, s.shortHashLength)),
		logger.String("season", cfg.TimeRange.Name),
	)
	return hash, nil
}

// RegisterDir registers every configuration file found in dir.
func (s *Service) RegisterDir(ctx context.Context, dir string) ([]string, error) {
	cfgs, err := ratingconfig.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	hashes := make([]string, 0, len(cfgs))
	for _, cfg := range cfgs {
		h, err := s.RegisterConfiguration(ctx, cfg)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return hashes, nil
}

// ResolveConfiguration maps a full or short hash to a stored configuration.
// Short hashes must match exactly one stored hash, and the match must still
// hash to itself.
func (s *Service) ResolveConfiguration(ctx context.Context, ref string) (string, ratingconfig.Configuration, error) {
	if !ratingconfig.IsValidHashFormat(ref) {
		return "", ratingconfig.Configuration{}, fmt.Errorf("%w: %q", ratingconfig.ErrInvalidHashFormat, ref)
	}
	ref = strings.ToLower(ref)

	full := ref
	if !ratingconfig.IsFullHash(ref) {
		all, err := s.configs.List(ctx)
		if err != nil {
			return "", ratingconfig.Configuration{}, fmt.Errorf("list configurations: %w", err)
		}
		var matches []string
		for _, h := range all {
			if strings.HasPrefix(h, ref) {
				matches = append(matches, h)
			}
		}
		switch len(matches) {
		case 0:
			return "", ratingconfig.Configuration{}, fmt.Errorf("%w: %s", ratingconfig.ErrUnknownConfiguration, ref)
		case 1:
			full = matches[0]
		default:
			return "", ratingconfig.Configuration{}, fmt.Errorf("%w: %s matches %d configurations", ratingconfig.ErrAmbiguousHash, ref, len(matches))
		}
	}

	cfg, err := s.configs.Get(ctx, full)
	if err != nil {
		return "", ratingconfig.Configuration{}, err
	}
	if ratingconfig.Hash(cfg) != full {
		return "", ratingconfig.Configuration{}, fmt.Errorf("%w: stored configuration no longer hashes to %s", ratingconfig.ErrUnknownConfiguration, full)
	}
	return full, cfg, nil
}

// Recompute replays every game in the configuration's time range and
// publishes the resulting snapshot. When the source data is unchanged since
// the last publish the previous snapshot is returned unless force is set.
// Nothing is published on error.
func (s *Service) Recompute(ctx context.Context, ref string, force bool) (*repository.Snapshot, error) {
	hash, cfg, err := s.ResolveConfiguration(ctx, ref)
	if err != nil {
		return nil, err
	}
	short := ratingconfig.ShortHash(hash, s.shortHashLength)

	unlock := s.locks.lock(hash)
	defer unlock()

	if s.recomputeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.recomputeTimeout)
		defer cancel()
	}

	start := time.Now()
	snap, skipped, err := s.recompute(ctx, hash, cfg, force)
	metrics.RecordRecomputeDuration(time.Since(start).Seconds())
	switch {
	case err != nil:
		metrics.RecordRecompute(metrics.ResultFailed)
		metrics.RecordErrorByComponent("service", "recompute")
		s.logger.Error(ctx, "recompute failed", logger.String("config", short), logger.Error(err))
		return nil, err
	case skipped:
		metrics.RecordRecompute(metrics.ResultSkipped)
		s.logger.Debug(ctx, "source data unchanged, recompute skipped", logger.String("config", short))
	default:
		metrics.RecordRecompute(metrics.ResultPublished)
		metrics.RecordGamesReplayed(snap.GamesReplayed)
		metrics.UpdatePlayers(short, len(snap.States), len(snap.Standings))
		s.logger.Info(ctx, "snapshot published",
			logger.String("config", short),
			logger.Int("games", snap.GamesReplayed),
			logger.Int("players", len(snap.States)),
			logger.Int("eligible", len(snap.Standings)),
			logger.Duration("took", time.Since(start)),
		)
	}
	return snap, nil
}

func (s *Service) recompute(ctx context.Context, hash string, cfg ratingconfig.Configuration, force bool) (*repository.Snapshot, bool, error) {
	games, hands, err := s.load(ctx, cfg.TimeRange)
	if err != nil {
		return nil, false, err
	}
	sourceHash := ratingconfig.Digest(map[string]any{"games": games, "hands": hands})

	if !force {
		if prev, err := s.store.Get(ctx, hash); err == nil && prev.SourceHash == sourceHash {
			return prev, true, nil
		}
	}

	res, err := s.engine.Replay(ctx, games, cfg)
	if err != nil {
		return nil, false, fmt.Errorf("replay %s: %w", ratingconfig.ShortHash(hash, s.shortHashLength), err)
	}

	cands := qualification.Candidates(res, cfg)
	placements := res.Placements()
	handsByGame := make(map[string][]model.HandEvent)
	for _, h := range hands {
		handsByGame[h.GameID] = append(handsByGame[h.GameID], h)
	}

	snap := &repository.Snapshot{
		ConfigHash:    hash,
		ShortHash:     ratingconfig.ShortHash(hash, s.shortHashLength),
		SourceHash:    sourceHash,
		Config:        cfg,
		ComputedAt:    s.now().UTC(),
		GamesReplayed: res.Games,
		States:        res.States,
		Statistics:    make(map[string]stats.PlayerStatistics, len(cands)),
		Qualification: make(map[string]qualification.Result, len(cands)),
		History:       res.History,
		Standings:     qualification.Leaderboard(cands),
	}
	for _, c := range cands {
		id := c.State.PlayerID
		own := placements[id]
		var ownHands []model.HandEvent
		for _, p := range own {
			ownHands = append(ownHands, handsByGame[p.GameID]...)
		}
		snap.Statistics[id] = stats.Aggregate(id, own, ownHands, cfg.TimeRange)
		snap.Qualification[id] = c.Qualification
	}

	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("recompute cancelled: %w", err)
	}
	if err := s.store.Publish(ctx, snap); err != nil {
		return nil, false, err
	}
	return snap, false, nil
}

func (s *Service) load(ctx context.Context, tr ratingconfig.TimeRange) ([]model.GameRecord, []model.HandEvent, error) {
	raw, err := s.source.Games(ctx, tr)
	if err != nil {
		return nil, nil, fmt.Errorf("load games: %w", err)
	}
	games := make([]model.GameRecord, 0, len(raw))
	inRange := make(map[string]bool, len(raw))
	for _, g := range raw {
		if tr.Contains(g.Date) {
			games = append(games, g)
			inRange[g.GameID] = true
		}
	}
	games = rating.SortGames(games)

	rawHands, err := s.source.HandEvents(ctx, tr)
	if err != nil {
		return nil, nil, fmt.Errorf("load hand events: %w", err)
	}
	hands := make([]model.HandEvent, 0, len(rawHands))
	for _, h := range rawHands {
		if inRange[h.GameID] {
			hands = append(hands, h)
		}
	}
	sort.SliceStable(hands, func(i, j int) bool {
		if hands[i].GameID != hands[j].GameID {
			return hands[i].GameID < hands[j].GameID
		}
		if hands[i].HandSeq != hands[j].HandSeq {
			return hands[i].HandSeq < hands[j].HandSeq
		}
		return hands[i].Seat < hands[j].Seat
	})
	return games, hands, nil
}

// RecomputeAll recomputes every registered configuration, at most
// workerCount at a time. A failing configuration does not stop the others;
// the first error is returned.
func (s *Service) RecomputeAll(ctx context.Context, force bool) error {
	hashes, err := s.configs.List(ctx)
	if err != nil {
		return fmt.Errorf("list configurations: %w", err)
	}
	var g errgroup.Group
	g.SetLimit(max(s.workerCount, 1))
	for _, h := range hashes {
		g.Go(func() error {
			_, err := s.Recompute(ctx, h, force)
			return err
		})
	}
	return g.Wait()
}

// RequestRecompute queues an asynchronous recompute. While a job for the
// same configuration is still waiting, further requests join it.
func (s *Service) RequestRecompute(ctx context.Context, ref string, force bool) (Job, error) {
	hash, _, err := s.ResolveConfiguration(ctx, ref)
	if err != nil {
		return Job{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return Job{}, ErrNotStarted
	}

	if s.deduper.SeenAndRecord(ctx, hash) {
		if p, ok := s.pending[hash]; ok {
			p.force = p.force || force
			s.pending[hash] = p
			metrics.RecordJobCoalesced()
			return Job{JobID: p.id, ConfigHash: hash, Coalesced: true}, nil
		}
	}

	job := model.RecomputeJob{
		JobID:       uuid.NewString(),
		ConfigHash:  hash,
		Force:       force,
		RequestedAt: s.now().UTC(),
	}
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		s.deduper.Unrecord(ctx, hash)
		return Job{}, fmt.Errorf("queue recompute %s: %w", ratingconfig.ShortHash(hash, s.shortHashLength), err)
	}
	s.pending[hash] = pendingJob{id: job.JobID, force: force}
	return Job{JobID: job.JobID, ConfigHash: hash}, nil
}

// HandleJob runs a queued recompute. It releases the pending slot first so
// requests arriving during the run queue a fresh job.
func (s *Service) HandleJob(ctx context.Context, job jobqueue.Job) error {
	force := job.Force
	s.mu.Lock()
	if p, ok := s.pending[job.ConfigHash]; ok && p.id == job.JobID {
		force = force || p.force
		delete(s.pending, job.ConfigHash)
		if s.deduper != nil {
			s.deduper.Unrecord(ctx, job.ConfigHash)
		}
	}
	s.mu.Unlock()

	_, err := s.Recompute(ctx, job.ConfigHash, force)
	return err
}

// Snapshot returns the published snapshot for ref.
func (s *Service) Snapshot(ctx context.Context, ref string) (*repository.Snapshot, error) {
	hash, _, err := s.ResolveConfiguration(ctx, ref)
	if err != nil {
		return nil, err
	}
	snap, err := s.store.Get(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotComputed, ratingconfig.ShortHash(hash, s.shortHashLength))
	}
	return snap, err
}

// Leaderboard returns the top limit eligible players for ref.
func (s *Service) Leaderboard(ctx context.Context, ref string, limit int) ([]repository.Entry, error) {
	snap, err := s.Snapshot(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.store.TopN(ctx, snap.ConfigHash, limit)
}

// Player returns the published view of one player under ref. Players
// without a rating are reported with ErrUnknownPlayer.
func (s *Service) Player(ctx context.Context, ref, playerID string) (PlayerView, error) {
	snap, err := s.Snapshot(ctx, ref)
	if err != nil {
		return PlayerView{}, err
	}
	st, ok := snap.States[playerID]
	if !ok {
		return PlayerView{}, fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}

	view := PlayerView{
		ConfigHash:    snap.ConfigHash,
		State:         st,
		DisplayRating: rating.DisplayRating(st.Mu, st.Sigma, snap.Config),
		Qualification: snap.Qualification[playerID],
		Statistics:    snap.Statistics[playerID],
	}
	for _, h := range snap.History {
		if h.PlayerID == playerID {
			view.History = append(view.History, h)
		}
	}
	if e, err := s.store.Rank(ctx, snap.ConfigHash, playerID); err == nil {
		view.Standing = &e
	}
	return view, nil
}

// Configurations lists the registered hashes.
func (s *Service) Configurations(ctx context.Context) ([]string, error) {
	return s.configs.List(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	out := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"snapshots":   len(s.store.Hashes(ctx)),
	}
	if all, err := s.configs.List(ctx); err == nil {
		out["configurations"] = len(all)
	}
	if s.started {
		out["queueLength"] = s.jobs.Len(ctx)
		out["pendingJobs"] = s.deduper.Size()
	}
	return out
}

// keyedMutex serializes work per key. Keys are configuration hashes, so the
// map stays small and entries are never removed.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
