// Package main wires together the catalog crawler service binary.
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
	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/taycommerce/abyat-crawler/internal/api"
	"github.com/taycommerce/abyat-crawler/internal/blob/gcs"
	"github.com/taycommerce/abyat-crawler/internal/blob/local"
	"github.com/taycommerce/abyat-crawler/internal/catalog"
	"github.com/taycommerce/abyat-crawler/internal/clock/system"
	"github.com/taycommerce/abyat-crawler/internal/config"
	"github.com/taycommerce/abyat-crawler/internal/crawl"
	"github.com/taycommerce/abyat-crawler/internal/extract"
	"github.com/taycommerce/abyat-crawler/internal/fetch/headless"
	"github.com/taycommerce/abyat-crawler/internal/fetch/static"
	"github.com/taycommerce/abyat-crawler/internal/logging"
	"github.com/taycommerce/abyat-crawler/internal/metrics"
	pubsubpublisher "github.com/taycommerce/abyat-crawler/internal/publisher/pubsub"
	memorystore "github.com/taycommerce/abyat-crawler/internal/store/memory"
	mongostore "github.com/taycommerce/abyat-crawler/internal/store/mongo"
	postgresstore "github.com/taycommerce/abyat-crawler/internal/store/postgres"
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
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Error("store close failed", zap.Error(err))
		}
	}()

	fetcher := buildFetcher(cfg)

	blobs, err := buildArchive(ctx, cfg)
	if err != nil {
		logger.Fatal("archive init failed", zap.Error(err))
	}

	publisher, pubStop, err := buildPublisher(ctx, cfg)
	if err != nil {
		logger.Fatal("publisher init failed", zap.Error(err))
	}
	if pubStop != nil {
		defer pubStop()
	}

	clock := system.New()
	controller := crawl.New(
		ctx,
		fetcher,
		store,
		extract.New(clock),
		blobs,
		publisher,
		clock,
		cfg.Catalog.PageURL,
		crawl.Config{
			Marker:          cfg.Catalog.Marker,
			PageLoadTimeout: cfg.Crawl.PageLoadTimeout(),
			PageDelay:       cfg.Crawl.PageDelay(),
			StartPage:       cfg.Crawl.StartPage,
			ArchivePrefix:   cfg.Archive.Prefix,
		},
		logger.Named("crawl"),
	)

	apiServer := api.NewServer(store, controller, logger.Named("api"))

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
}

func buildStore(ctx context.Context, cfg config.Config) (catalog.ProductStore, error) {
	switch cfg.Store.Kind {
	case "memory":
		return memorystore.New(), nil
	case "mongo":
		return mongostore.Connect(ctx, cfg.Store.Mongo.URI, cfg.Store.Mongo.Database)
	case "postgres":
		return postgresstore.New(ctx, postgresstore.Config{
			DSN:      cfg.Store.Postgres.DSN,
			MaxConns: cfg.Store.Postgres.MaxConns,
		})
	default:
		return nil, fmt.Errorf("unknown store.kind %q", cfg.Store.Kind)
	}
}

func buildFetcher(cfg config.Config) catalog.Fetcher {
	if cfg.Fetcher.Kind == "static" {
		return static.New(static.Config{UserAgent: cfg.Catalog.UserAgent})
	}
	return headless.NewChromedp(headless.Config{
		UserAgent:      cfg.Catalog.UserAgent,
		DefaultTimeout: cfg.Crawl.PageLoadTimeout(),
	})
}

func buildArchive(ctx context.Context, cfg config.Config) (catalog.BlobStore, error) {
	switch cfg.Archive.Kind {
	case "none":
		return nil, nil
	case "local":
		return local.New(local.Config{BaseDir: cfg.Archive.BaseDir})
	case "gcs":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		return gcs.New(client, gcs.Config{Bucket: cfg.Archive.Bucket})
	default:
		return nil, fmt.Errorf("unknown archive.kind %q", cfg.Archive.Kind)
	}
}

func buildPublisher(ctx context.Context, cfg config.Config) (catalog.Publisher, func(), error) {
	switch cfg.Publisher.Kind {
	case "none":
		return nil, nil, nil
	case "pubsub":
		client, err := pubsub.NewClient(ctx, cfg.Publisher.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("create pubsub client: %w", err)
		}
		topic := client.Topic(cfg.Publisher.TopicID)
		p := pubsubpublisher.New(topic)
		cleanup := func() {
			p.Stop()
			_ = client.Close()
		}
		return p, cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unknown publisher.kind %q", cfg.Publisher.Kind)
	}
}
