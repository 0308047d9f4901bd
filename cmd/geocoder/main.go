package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/couchcryptid/batch-geocoder-service/internal/adapter/bcgeo"
	"github.com/couchcryptid/batch-geocoder-service/internal/adapter/dummy"
	httpadapter "github.com/couchcryptid/batch-geocoder-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/batch-geocoder-service/internal/adapter/kafka"
	"github.com/couchcryptid/batch-geocoder-service/internal/config"
	"github.com/couchcryptid/batch-geocoder-service/internal/domain"
	"github.com/couchcryptid/batch-geocoder-service/internal/observability"
	"github.com/couchcryptid/batch-geocoder-service/internal/pipeline"
	"github.com/couchcryptid/batch-geocoder-service/internal/reproject"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	// Initialize geocoder (feature-flagged via GEOCODER_ENABLED / GEOCODER_URL).
	var geocoder domain.Geocoder
	var shared *redis.Client
	if cfg.GeocoderEnabled {
		var presentation *domain.PresentationConfig
		if cfg.KMLStylesURL != "" {
			presentation = &domain.PresentationConfig{
				KMLStylesURL:       cfg.KMLStylesURL,
				DefaultLookAtRange: cfg.KMLLookAtRange,
			}
		}
		client := bcgeo.NewClient(bcgeo.Options{
			BaseURL:      cfg.GeocoderURL,
			APIKey:       cfg.GeocoderAPIKey,
			Timeout:      cfg.GeocoderTimeout,
			RateLimit:    cfg.GeocoderRateLimit,
			Presentation: presentation,
		}, metrics, logger)
		if opts := cfg.RedisOptions(); opts != nil {
			shared = redis.NewClient(opts)
		}
		geocoder = bcgeo.NewCachedGeocoder(client, cfg.GeocoderCacheSize, shared, cfg.RedisCacheTTL, metrics, logger)
		metrics.GeocoderRemote.Set(1)
		logger.Info("remote geocoding enabled", "url", cfg.GeocoderURL, "cache_size", cfg.GeocoderCacheSize,
			"shared_cache", shared != nil, "timeout", cfg.GeocoderTimeout)
	} else {
		geocoder = dummy.New()
		metrics.GeocoderRemote.Set(0)
		logger.Info("remote geocoding disabled, every request runs as a dry run")
	}

	processor := pipeline.NewProcessor(geocoder, reproject.New(), cfg.GeocoderEnabled,
		cfg.MaxConcurrentRequests, metrics, logger)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	p := pipeline.New(reader, processor, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, processor, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start geocoding pipeline.
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
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
	if shared != nil {
		if err := shared.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
