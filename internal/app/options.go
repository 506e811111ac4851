package service

import (
	"time"

	"github.com/okian/mjrating/internal/domain/rating"
	"github.com/okian/mjrating/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of recompute workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the recompute job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize caps how many configurations may have a pending job.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithShortHashLength sets the length of displayed hash prefixes.
func WithShortHashLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.shortHashLength = n
		}
	}
}

// WithRecomputeTimeout bounds each recompute. Zero disables the bound.
func WithRecomputeTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.recomputeTimeout = d
		}
	}
}

// WithEngine replaces the rating engine.
func WithEngine(e *rating.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithClock sets the time source used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}
