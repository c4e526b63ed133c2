// Package main wires together the wordstat ingestion service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/kvlab/wordstat-ingest/internal/api"
	gcsarchive "github.com/kvlab/wordstat-ingest/internal/archive/gcs"
	localarchive "github.com/kvlab/wordstat-ingest/internal/archive/local"
	"github.com/kvlab/wordstat-ingest/internal/config"
	"github.com/kvlab/wordstat-ingest/internal/gateway"
	"github.com/kvlab/wordstat-ingest/internal/id/uuid"
	"github.com/kvlab/wordstat-ingest/internal/ingest"
	"github.com/kvlab/wordstat-ingest/internal/logging"
	"github.com/kvlab/wordstat-ingest/internal/metrics"
	pubsubpublisher "github.com/kvlab/wordstat-ingest/internal/publisher/pubsub"
	"github.com/kvlab/wordstat-ingest/internal/storage/postgres"
	"github.com/kvlab/wordstat-ingest/internal/wordstat"
)

func main() {
	var (
		cfgPath     = flag.String("config", "", "Path to config file")
		serve       = flag.Bool("serve", false, "Run the HTTP API server")
		syncRegions = flag.Bool("sync-regions", false, "Fill the regions table from the catalog")
		top         = flag.Bool("top", false, "Fetch and persist top requests for -phrases")
		dynamics    = flag.Bool("dynamics", false, "Fetch and persist dynamics for -phrases")
		phrasesRaw  = flag.String("phrases", "", "Comma/newline separated phrases")
		period      = flag.String("period", "weekly", "Dynamics period: daily|weekly|monthly")
		fromDate    = flag.String("from", "", "Dynamics from date (YYYY-MM-DD)")
		toDate      = flag.String("to", "", "Dynamics to date (YYYY-MM-DD, optional)")
		regionsRaw  = flag.String("regions", "", "Comma separated region ids")
		devicesRaw  = flag.String("devices", "", "Comma separated devices")
	)
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
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	regions, err := parseRegions(*regionsRaw)
	if err != nil {
		logger.Fatal("bad -regions value", zap.Error(err))
	}
	devices := splitList(*devicesRaw)

	client := gateway.New(gateway.Config{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
		Timeout: cfg.APITimeout(),
	}, logger.Named("gateway"))

	connector, err := wordstat.NewConnector(ctx, client,
		wordstat.WithPause(cfg.Pause()),
		wordstat.WithMaxBatch(cfg.Batch.MaxPhrases),
		wordstat.WithLogger(logger.Named("connector")),
	)
	if err != nil {
		logger.Fatal("region catalog unavailable", zap.Error(err))
	}

	store, err := postgres.New(ctx, postgres.Config{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	}, logger.Named("postgres"))
	if err != nil {
		logger.Fatal("postgres connect failed", zap.Error(err))
	}
	defer store.Close()

	writerOpts := []ingest.WriterOption{ingest.WithLogger(logger.Named("ingest"))}
	if blobs, err := buildArchive(ctx, cfg); err != nil {
		logger.Fatal("archive init failed", zap.Error(err))
	} else if blobs != nil {
		writerOpts = append(writerOpts, ingest.WithArchive(blobs, cfg.Archive.Prefix))
	}
	writer := ingest.NewWriter(store, writerOpts...)

	var publisher wordstat.Publisher
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		psClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("pubsub client init failed", zap.Error(err))
		}
		defer psClient.Close()
		publisher, err = pubsubpublisher.New(psClient)
		if err != nil {
			logger.Fatal("publisher init failed", zap.Error(err))
		}
	}

	switch {
	case *serve:
		runServer(ctx, cfg, connector, writer, publisher, logger)
	case *syncRegions:
		added, err := writer.SyncRegions(ctx, connector.Regions())
		if err != nil {
			logger.Fatal("region sync failed", zap.Error(err))
		}
		logger.Info("region sync complete", zap.Int("added", added))
	case *top:
		phrases := wordstat.SplitPhrases(*phrasesRaw)
		opts := wordstat.TopOptions{Regions: regions, Devices: devices}
		batch, err := connector.TopBatch(ctx, phrases, opts)
		if err != nil {
			logger.Fatal("top batch failed", zap.Error(err))
		}
		summary := writer.PersistTop(ctx, batch, opts)
		logger.Info("top run complete",
			zap.Int("persisted", summary.Persisted),
			zap.Int("deduped", summary.Deduped),
			zap.Int("skipped", summary.Skipped),
			zap.Int("failed", summary.Failed),
		)
	case *dynamics:
		phrases := wordstat.SplitPhrases(*phrasesRaw)
		opts := wordstat.DynamicsOptions{
			Period:   wordstat.Period(*period),
			FromDate: *fromDate,
			ToDate:   *toDate,
			Regions:  regions,
			Devices:  devices,
		}
		batch, err := connector.DynamicsBatch(ctx, phrases, opts)
		if err != nil {
			logger.Fatal("dynamics batch failed", zap.Error(err))
		}
		summary, err := writer.PersistDynamics(ctx, batch, opts)
		if err != nil {
			logger.Fatal("dynamics persist failed", zap.Error(err))
		}
		logger.Info("dynamics run complete",
			zap.Int("persisted", summary.Persisted),
			zap.Int("skipped", summary.Skipped),
			zap.Int("failed", summary.Failed),
		)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runServer(
	ctx context.Context,
	cfg config.Config,
	connector *wordstat.Connector,
	writer *ingest.Writer,
	publisher wordstat.Publisher,
	logger *zap.Logger,
) {
	server := api.NewServer(connector, writer, publisher, cfg.PubSub.TopicName, uuid.New(), logger.Named("api"))
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", zap.Error(err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
		}
	}
}

func buildArchive(ctx context.Context, cfg config.Config) (wordstat.BlobStore, error) {
	switch cfg.Archive.Backend {
	case "":
		return nil, nil
	case "local":
		return localarchive.New(localarchive.Config{BaseDir: cfg.Archive.BaseDir})
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		return gcsarchive.New(client, gcsarchive.Config{Bucket: cfg.Archive.GCSBucket})
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Archive.Backend)
	}
}

func parseRegions(raw string) ([]int64, error) {
	parts := splitList(raw)
	if len(parts) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("region id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
