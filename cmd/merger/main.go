package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/disaster-merge-service/internal/adapter/feeds"
	"github.com/couchcryptid/disaster-merge-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/disaster-merge-service/internal/adapter/kafka"
	"github.com/couchcryptid/disaster-merge-service/internal/adapter/mapbox"
	"github.com/couchcryptid/disaster-merge-service/internal/config"
	"github.com/couchcryptid/disaster-merge-service/internal/domain"
	"github.com/couchcryptid/disaster-merge-service/internal/observability"
	"github.com/couchcryptid/disaster-merge-service/internal/pipeline"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	// Merge input order is spreadsheet, natural-event feed, seismic feed.
	var sources []pipeline.Source
	if cfg.EMDATPath != "" {
		sources = append(sources, feeds.NewEMDATLoader(cfg.EMDATPath, cfg.Rules.EMDATKeywords, geocoder, logger))
	} else {
		logger.Info("emdat source disabled, EMDAT_PATH not set")
	}
	sources = append(sources,
		feeds.NewEONETClient(cfg.EONETURL, cfg.EONETDays, cfg.FetchTimeout, cfg.Rules.EONETKeywords, logger),
		feeds.NewUSGSClient(cfg.USGSURL, cfg.FetchTimeout, cfg.Rules.USGSKeywords, logger),
	)

	mergerOpts := []domain.MergerOption{domain.WithDuplicateRules(cfg.Rules.Duplicates)}
	if cfg.StrictContracts {
		mergerOpts = append(mergerOpts, domain.WithStrictContracts())
	}

	var publisher pipeline.Publisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	}

	p := pipeline.New(
		pipeline.Config{Interval: cfg.RefreshInterval, FetchTimeout: cfg.FetchTimeout},
		sources,
		domain.NewMerger(mergerOpts...),
		pipeline.NewEnricher(geocoder, logger),
		publisher,
		logger,
		metrics,
	)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start refresh loop.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
