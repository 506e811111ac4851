// Command mjrd serves league ratings over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/mjrating/internal/adapters/http/api"
	"github.com/okian/mjrating/internal/adapters/http/swagger"
	"github.com/okian/mjrating/internal/adapters/repository"
	"github.com/okian/mjrating/internal/adapters/storage/sqlite"
	service "github.com/okian/mjrating/internal/app"
	"github.com/okian/mjrating/internal/config"
	"github.com/okian/mjrating/pkg/logger"
	"github.com/okian/mjrating/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
	// synchronous recomputes may replay a whole season
	writeTimeout   = 2 * time.Minute
	requestTimeout = 90 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		// logger isn't configured yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.InitWithOptions(logger.Options{Format: cfg.LogFormat, Level: cfg.LogLevel}); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	metrics.GetRegistry().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "mjrd exited", logger.Error(err))
		os.Exit(1)
	}
}

// app bundles what run wires together so tests can build it without a
// listener.
type app struct {
	db      *sqlite.Store
	svc     *service.Service
	handler http.Handler
}

func build(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logger.Get()

	db, err := sqlite.Open(ctx, cfg.DatabaseDSN, sqlite.WithLogger(log.Named("sqlite")))
	if err != nil {
		return nil, err
	}

	svc := service.New(db, db, repository.NewTreapStore(),
		service.WithLogger(log.Named("service")),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithShortHashLength(cfg.ShortHashLength),
		service.WithRecomputeTimeout(cfg.RecomputeTimeout),
	)

	if cfg.ConfigsDir != "" {
		hashes, err := svc.RegisterDir(ctx, cfg.ConfigsDir)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info(ctx, "configurations loaded",
			logger.String("dir", cfg.ConfigsDir), logger.Int("count", len(hashes)))
	}

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc,
		api.WithMaxLimit(cfg.MaxLeaderboardLimit),
		api.WithShortHashLength(cfg.ShortHashLength),
	).Register(ctx, mux)

	return &app{
		db:      db,
		svc:     svc,
		handler: api.LoggingMiddleware(api.TimeoutMiddleware(mux, requestTimeout)),
	}, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	a, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.db.Close() }()

	if err := a.svc.Start(ctx); err != nil {
		return err
	}

	if cfg.RecomputeOnStart {
		// a failing configuration keeps serving 404 until its next recompute
		if err := a.svc.RecomputeAll(ctx, false); err != nil {
			log.Warn(ctx, "initial recompute incomplete", logger.Error(err))
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			_ = a.svc.Stop(context.Background())
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := a.svc.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "service shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}
