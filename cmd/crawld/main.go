// Package main wires together the crawl service binary.
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

	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/brisketlabs/crawld/internal/api"
	"github.com/brisketlabs/crawld/internal/clock/system"
	"github.com/brisketlabs/crawld/internal/config"
	"github.com/brisketlabs/crawld/internal/crawl"
	"github.com/brisketlabs/crawld/internal/dispatcher"
	"github.com/brisketlabs/crawld/internal/eventlog"
	"github.com/brisketlabs/crawld/internal/fetch"
	"github.com/brisketlabs/crawld/internal/id/uuid"
	"github.com/brisketlabs/crawld/internal/jobs"
	"github.com/brisketlabs/crawld/internal/logging"
	"github.com/brisketlabs/crawld/internal/orchestrator"
	"github.com/brisketlabs/crawld/internal/publisher"
	memorypublisher "github.com/brisketlabs/crawld/internal/publisher/memory"
	pubsubpublisher "github.com/brisketlabs/crawld/internal/publisher/pubsub"
	queuememory "github.com/brisketlabs/crawld/internal/queue/memory"
	"github.com/brisketlabs/crawld/internal/safety"
	"github.com/brisketlabs/crawld/internal/store"
	gcsstore "github.com/brisketlabs/crawld/internal/store/gcs"
	localstore "github.com/brisketlabs/crawld/internal/store/local"
	memorystore "github.com/brisketlabs/crawld/internal/store/memory"
	postgresstore "github.com/brisketlabs/crawld/internal/store/postgres"
	redisstore "github.com/brisketlabs/crawld/internal/store/redis"
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

	kv, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("store init failed", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer cleanup()

	clock := system.New()
	idGen := uuid.New()
	jobStore := jobs.NewStore(kv)
	events := eventlog.New(kv, clock, logger.Named("events"))
	gateCfg := safety.DefaultConfig()
	gateCfg.DNSTTL = time.Duration(cfg.Safety.DNSTTLSeconds) * time.Second
	gateCfg.DNSCacheSize = cfg.Safety.DNSCacheSize
	gateCfg.RobotsTTL = time.Duration(cfg.Safety.RobotsTTLSeconds) * time.Second
	gateCfg.RobotsCache = cfg.Safety.RobotsCacheSize
	gate := safety.NewGate(gateCfg, clock, logger.Named("safety"))

	client := fetch.NewClient(fetch.ClientConfig{
		UserAgent:      cfg.Crawler.UserAgent,
		RequestTimeout: time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
		MaxBodyBytes:   fetch.DefaultClientConfig().MaxBodyBytes,
	}, logger.Named("fetch"))
	retrier := fetch.NewRetrier(client, cfg.Fetch.MaxRetries,
		time.Duration(cfg.Fetch.RetryBaseMs)*time.Millisecond, nil, logger.Named("fetch"))

	pub, pubCleanup, err := openPublisher(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("publisher init failed", zap.Error(err))
	}
	defer pubCleanup()

	runner := orchestrator.New(orchestrator.Config{
		UserAgent:        cfg.Crawler.UserAgent,
		PausePoll:        time.Duration(cfg.Crawler.PausePollMs) * time.Millisecond,
		FrontierCapacity: cfg.Crawler.FrontierCapacity,
		VisitedLimit:     cfg.Crawler.VisitedLimit,
		BreakerLimit:     cfg.Crawler.BreakerLimit,
		CompletionTopic:  cfg.PubSub.CompletionTopic,
		ArchiveHTML:      cfg.Crawler.ArchiveHTML,
	}, jobStore, events, gate, retrier, kv, &crawl.TimerPauser{}, clock, pub, logger.Named("orchestrator"))

	queue := queuememory.NewQueue(cfg.Crawler.QueueDepth)
	dispatch := dispatcher.New(queue, runner, cfg.Crawler.Workers, logger.Named("dispatcher"))

	apiServer := api.NewServer(jobStore, events, dispatch, gate, retrier, idGen, clock, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("dispatcher started", zap.Int("workers", cfg.Crawler.Workers))
		dispatch.Run(ctx)
	}()

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
	queue.Close()
	logger.Info("shutdown complete")
}

// openStore builds the configured KV backend. The returned cleanup is
// safe to call once, even when it is a no-op.
func openStore(ctx context.Context, cfg config.Config) (store.KV, func(), error) {
	noop := func() {}
	switch cfg.Store.Backend {
	case "memory":
		return memorystore.New(), noop, nil
	case "local":
		kv, err := localstore.New(localstore.Config{BaseDir: cfg.Store.Local.BaseDir})
		return kv, noop, err
	case "redis":
		kv, err := redisstore.New(ctx, redisstore.Config{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		if err != nil {
			return nil, noop, err
		}
		return kv, func() { _ = kv.Close() }, nil
	case "postgres":
		kv, err := postgresstore.Connect(ctx, cfg.Store.Postgres.DSN)
		if err != nil {
			return nil, noop, err
		}
		return kv, func() { kv.Close() }, nil
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("storage client: %w", err)
		}
		kv, err := gcsstore.New(client, gcsstore.Config{Bucket: cfg.Store.GCS.Bucket})
		if err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		return kv, func() { _ = client.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// openPublisher returns the Pub/Sub publisher when a completion topic
// is configured, else the in-memory one.
func openPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (publisher.Publisher, func(), error) {
	noop := func() {}
	if cfg.PubSub.CompletionTopic == "" {
		return memorypublisher.New(), noop, nil
	}
	pub, err := pubsubpublisher.New(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, noop, err
	}
	logger.Info("pubsub publisher configured",
		zap.String("project", cfg.PubSub.ProjectID),
		zap.String("topic", cfg.PubSub.CompletionTopic))
	return pub, func() { _ = pub.Close() }, nil
}
