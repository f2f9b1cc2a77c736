package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/talentwire/jobharvest/internal/api"
	"github.com/talentwire/jobharvest/internal/blob"
	blobgcs "github.com/talentwire/jobharvest/internal/blob/gcs"
	bloblocal "github.com/talentwire/jobharvest/internal/blob/local"
	blobmemory "github.com/talentwire/jobharvest/internal/blob/memory"
	"github.com/talentwire/jobharvest/internal/clock/system"
	"github.com/talentwire/jobharvest/internal/config"
	"github.com/talentwire/jobharvest/internal/dedup"
	"github.com/talentwire/jobharvest/internal/extract"
	"github.com/talentwire/jobharvest/internal/fetch"
	"github.com/talentwire/jobharvest/internal/fetch/headless"
	htmlfetch "github.com/talentwire/jobharvest/internal/fetch/html"
	"github.com/talentwire/jobharvest/internal/hash/sha256"
	"github.com/talentwire/jobharvest/internal/id/uuid"
	"github.com/talentwire/jobharvest/internal/logging"
	"github.com/talentwire/jobharvest/internal/metrics"
	"github.com/talentwire/jobharvest/internal/normalize"
	"github.com/talentwire/jobharvest/internal/normalize/ml"
	notifylog "github.com/talentwire/jobharvest/internal/notify/log"
	notifypubsub "github.com/talentwire/jobharvest/internal/notify/pubsub"
	"github.com/talentwire/jobharvest/internal/orchestrator"
	"github.com/talentwire/jobharvest/internal/pipeline"
	"github.com/talentwire/jobharvest/internal/store"
	storememory "github.com/talentwire/jobharvest/internal/store/memory"
	storepostgres "github.com/talentwire/jobharvest/internal/store/postgres"
	"github.com/talentwire/jobharvest/internal/workflow"
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
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer closeStore()

	blobs, err := buildBlobStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("blob store init failed", zap.Error(err))
	}

	notifier, closeNotifier, err := buildNotifier(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("notifier init failed", zap.Error(err))
	}
	defer closeNotifier()

	clock := system.New()
	ids := uuid.NewUUIDGenerator()
	hasher := sha256.New()

	plain := htmlfetch.New(htmlfetch.Config{
		UserAgent:     cfg.HTTP.UserAgent,
		RespectRobots: cfg.HTTP.RespectRobots,
		Timeout:       time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
	})
	var rendered fetch.PageFetcher = headless.NewNoop()
	if cfg.Headless.Enabled {
		chromeFetcher, err := headless.New(headless.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
			Stealth:           cfg.Headless.StealthEnabled,
			JitterMax:         time.Duration(cfg.Headless.JitterMaxMillis) * time.Millisecond,
		})
		if err != nil {
			logger.Warn("headless fetcher init failed, falling back to plain fetches", zap.Error(err))
		} else {
			rendered = chromeFetcher
		}
	}

	retry := &pipeline.RetryPolicy{
		MaxAttempts: cfg.HTTP.MaxRetries,
		BaseDelay:   time.Duration(cfg.HTTP.BackoffInitialMs) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.HTTP.BackoffMaxMs) * time.Millisecond,
	}
	engine := fetch.NewEngine(
		plain,
		rendered,
		extract.New(),
		fetch.NewLimiter(fetch.LimiterConfig{
			DefaultRPS:   cfg.Pipeline.DefaultRPS,
			DefaultBurst: cfg.Pipeline.DefaultBurst,
		}),
		fetch.NewRenderDecision(cfg.Headless.ForceAll, cfg.Headless.RenderRequired),
		blobs,
		clock,
		retry,
		fetch.EngineConfig{
			UserAgent:   cfg.HTTP.UserAgent,
			BlobPrefix:  cfg.Blob.Prefix,
			ContentType: cfg.Blob.ContentType,
			Timeout:     time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
		},
		logger.Named("fetch"),
	)

	var parser normalize.TextParser
	if cfg.ML.Enabled {
		parser = ml.NewClient(ml.Config{
			Endpoint: cfg.ML.Endpoint,
			Timeout:  time.Duration(cfg.ML.TimeoutSeconds) * time.Second,
		})
	}
	normalizer := normalize.New(parser, ids, clock, cfg.ML.MinConfidence, logger.Named("normalize"))

	wf := workflow.NewEngine(st, ids, clock, notifier, logger.Named("workflow"))
	gate := dedup.NewGate(st, hasher, ids, clock)
	publish := orchestrator.NewPublishGate(st, wf, notifier, ids, clock, cfg.Pipeline.SystemActor, logger.Named("publish"))

	runner := orchestrator.NewRunner(
		st, engine, gate, normalizer, publish, notifier, ids, clock,
		orchestrator.RunnerConfig{
			RunTimeout: time.Duration(cfg.Pipeline.RunTimeoutMinutes) * time.Minute,
		},
		logger.Named("runner"),
	)
	queue := orchestrator.NewMemoryQueue(cfg.Pipeline.Workers * 4)
	service := orchestrator.NewService(st, queue, ids, clock, logger.Named("service"))

	pool := orchestrator.NewPool(queue, runner, cfg.Pipeline.Workers, logger.Named("pool"))
	pool.Start(ctx)

	scheduler := orchestrator.NewScheduler(service, logger.Named("scheduler"))
	if cfg.Scheduler.Enabled {
		sources, err := st.ListActiveSources(ctx)
		if err != nil {
			logger.Error("load sources for scheduler failed", zap.Error(err))
		} else if err := scheduler.Start(ctx, sources); err != nil {
			logger.Error("scheduler start failed", zap.Error(err))
		}
	}

	apiServer := api.NewServer(service, wf, st, cfg, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	scheduler.Stop()
	queue.Close()
	pool.Wait()
	logger.Info("shutdown complete")
}

func buildStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	if cfg.DB.DSN == "" {
		return storememory.New(), func() {}, nil
	}
	pg, err := storepostgres.New(ctx, storepostgres.Config{
		DSN:      cfg.DB.DSN,
		MaxConns: int32(cfg.DB.MaxOpenConns),
		MinConns: int32(cfg.DB.MinConns),
	})
	if err != nil {
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

func buildBlobStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (blob.Store, error) {
	switch cfg.Blob.Provider {
	case "", "memory":
		return blobmemory.NewBlobStore(), nil
	case "local":
		return bloblocal.New(bloblocal.Config{BaseDir: cfg.Blob.BaseDir})
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		return blobgcs.New(client, blobgcs.Config{Bucket: cfg.Blob.GCSBucket})
	default:
		logger.Warn("unknown blob provider, using memory", zap.String("provider", cfg.Blob.Provider))
		return blobmemory.NewBlobStore(), nil
	}
}

func buildNotifier(ctx context.Context, cfg config.Config, logger *zap.Logger) (pipeline.Notifier, func(), error) {
	if !cfg.PubSub.Enabled {
		return notifylog.New(logger.Named("notify")), func() {}, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	topic := client.Topic(cfg.PubSub.TopicName)
	closer := func() {
		topic.Stop()
		if err := client.Close(); err != nil {
			logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	return notifypubsub.New(topic, logger.Named("notify")), closer, nil
}
