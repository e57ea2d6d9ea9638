// Package main wires together the readability service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	gpubsub "cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pagescope/readability-server/internal/api"
	archivegcs "github.com/pagescope/readability-server/internal/archive/gcs"
	archivelocal "github.com/pagescope/readability-server/internal/archive/local"
	archivememory "github.com/pagescope/readability-server/internal/archive/memory"
	"github.com/pagescope/readability-server/internal/clock/system"
	"github.com/pagescope/readability-server/internal/config"
	"github.com/pagescope/readability-server/internal/extract"
	collyfetch "github.com/pagescope/readability-server/internal/fetch/colly"
	"github.com/pagescope/readability-server/internal/fetch/headless"
	"github.com/pagescope/readability-server/internal/fetch/ratelimit"
	"github.com/pagescope/readability-server/internal/hash/sha256"
	historymemory "github.com/pagescope/readability-server/internal/history/memory"
	historypostgres "github.com/pagescope/readability-server/internal/history/postgres"
	"github.com/pagescope/readability-server/internal/id/uuid"
	"github.com/pagescope/readability-server/internal/logging"
	publishermemory "github.com/pagescope/readability-server/internal/publisher/memory"
	publisherpubsub "github.com/pagescope/readability-server/internal/publisher/pubsub"
	"github.com/pagescope/readability-server/internal/readability"
	"github.com/pagescope/readability-server/internal/readable"
	"github.com/pagescope/readability-server/internal/report"
	"github.com/pagescope/readability-server/internal/workpool"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("service exited with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	archive, err := buildArchive(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init archive store: %w", err)
	}

	history, err := buildHistory(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init history store: %w", err)
	}
	defer history.Close()

	publisher, closePublisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init publisher: %w", err)
	}
	defer closePublisher()

	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.RateLimit.DefaultRPS,
		DefaultBurst: cfg.RateLimit.DefaultBurst,
	})
	fetcher := collyfetch.New(collyfetch.Config{
		UserAgent:    cfg.HTTP.UserAgent,
		Timeout:      cfg.FetchTimeout(),
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	}, limiter)

	var renderer readability.Renderer = headless.NewNoop()
	if cfg.Headless.Enabled {
		chromeRenderer, err := headless.New(headless.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Headless.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			logger.Warn("headless renderer init failed", zap.Error(err))
		} else {
			defer chromeRenderer.Close()
			renderer = chromeRenderer
		}
	}

	extractor := extract.New(extract.Config{
		MinTextLength:  cfg.Extract.MinTextLength,
		MinScore:       cfg.Extract.MinScore,
		MaxLinkDensity: cfg.Extract.MaxLinkDensity,
	})

	poolSize := cfg.Pool.Size
	if poolSize == 0 {
		poolSize = runtime.NumCPU()
	}
	pool, err := workpool.New(extractor.Task, poolSize, cfg.TaskTimeout(), logger.Named("pool"))
	if err != nil {
		return fmt.Errorf("init pool: %w", err)
	}
	defer pool.Close()

	apiServer := api.NewServer(api.Deps{
		Pool:      pool,
		Fetcher:   fetcher,
		Renderer:  renderer,
		Preflight: readable.New(readable.Config{}),
		Archive:   archive,
		History:   history,
		Publisher: publisher,
		Hasher:    sha256.New(),
		IDGen:     uuid.New(),
		Clock:     system.New(),
		Logger:    logger.Named("api"),
	}, cfg)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if cfg.Report.Enabled {
		generator, err := report.New(report.Config{
			Interval: time.Duration(cfg.Report.IntervalMinutes) * time.Minute,
			Window:   time.Duration(cfg.Report.WindowHours) * time.Hour,
			Prefix:   cfg.Report.Prefix,
		}, history, archive, system.New(), logger.Named("report"))
		if err != nil {
			return fmt.Errorf("init report generator: %w", err)
		}
		g.Go(func() error {
			if err := generator.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("report loop: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func buildArchive(ctx context.Context, cfg config.Config) (readability.ArchiveStore, error) {
	switch cfg.Archive.Backend {
	case "local":
		return archivelocal.New(archivelocal.Config{BaseDir: cfg.Archive.BaseDir})
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		return archivegcs.New(client, archivegcs.Config{Bucket: cfg.Archive.GCSBucket})
	default:
		return archivememory.New(), nil
	}
}

func buildHistory(ctx context.Context, cfg config.Config) (readability.HistoryStore, error) {
	switch cfg.History.Backend {
	case "postgres":
		return historypostgres.New(ctx, historypostgres.Config{
			DSN:      cfg.History.DSN,
			Table:    cfg.History.Table,
			MaxConns: int32(cfg.History.MaxOpenConns),
			MinConns: int32(cfg.History.MinOpenConns),
		})
	default:
		return historymemory.New(), nil
	}
}

func buildPublisher(ctx context.Context, cfg config.Config) (readability.Publisher, func(), error) {
	if !cfg.PubSub.Enabled {
		return publishermemory.New(), func() {}, nil
	}
	client, err := gpubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("create pubsub client: %w", err)
	}
	pub := publisherpubsub.New(client)
	closeFn := func() {
		pub.Close()
		if err := client.Close(); err != nil {
			zap.L().Warn("close pubsub client failed", zap.Error(err))
		}
	}
	return pub, closeFn, nil
}
