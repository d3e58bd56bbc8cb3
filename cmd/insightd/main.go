package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	advisoryclient "github.com/couchcryptid/heat-insight-engine/internal/adapter/advisory"
	httpadapter "github.com/couchcryptid/heat-insight-engine/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/heat-insight-engine/internal/adapter/kafka"
	"github.com/couchcryptid/heat-insight-engine/internal/adapter/nominatim"
	"github.com/couchcryptid/heat-insight-engine/internal/adapter/overpass"
	redisadapter "github.com/couchcryptid/heat-insight-engine/internal/adapter/redis"
	"github.com/couchcryptid/heat-insight-engine/internal/advisory"
	"github.com/couchcryptid/heat-insight-engine/internal/boundary"
	"github.com/couchcryptid/heat-insight-engine/internal/colorscale"
	"github.com/couchcryptid/heat-insight-engine/internal/config"
	"github.com/couchcryptid/heat-insight-engine/internal/dataset"
	"github.com/couchcryptid/heat-insight-engine/internal/locality"
	"github.com/couchcryptid/heat-insight-engine/internal/observability"
	"github.com/couchcryptid/heat-insight-engine/internal/snapshot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	loader := dataset.NewLoader(dataset.FileSource{Dir: cfg.DataDir}, dataset.Files{
		Hourly:       cfg.HourlyFile,
		History:      cfg.HistoryFile,
		Forecast:     cfg.ForecastFile,
		Demographics: cfg.DemographicsFile,
	})

	registry, err := loadRegistry(cfg, loader, logger)
	if err != nil {
		logger.Error("failed to load localities", "error", err)
		os.Exit(1)
	}

	opts := []snapshot.Option{snapshot.WithDefaultDays(cfg.DefaultWindowDays)}
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		opts = append(opts, snapshot.WithPublisher(writer))
		logger.Info("snapshot publishing enabled", "topic", cfg.KafkaSnapshotTopic)
	}
	assembler := snapshot.New(loader, registry, logger, metrics, opts...)

	// Boundary resolution (feature-flagged via BOUNDARY_PROVIDER).
	var store *redisadapter.Store
	boundaries := newBoundaryCache(cfg, logger, metrics, &store)

	// Advisory generation (feature-flagged via ADVISORY_URL).
	var generator advisory.Generator
	if cfg.AdvisoryURL != "" {
		generator = advisoryclient.NewClient(cfg.AdvisoryURL, cfg.AdvisoryTimeout, logger,
			advisoryclient.WithToken(cfg.AdvisoryToken),
			advisoryclient.WithRetries(2))
		logger.Info("advisory generation enabled", "url", cfg.AdvisoryURL, "timeout", cfg.AdvisoryTimeout)
	} else {
		logger.Info("advisory generation disabled, serving static advisories")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Services{
		Insights:     assembler,
		Advisories:   advisory.NewService(generator, logger, metrics),
		Localities:   registry,
		Boundaries:   boundaries,
		Scale:        colorscale.Heat(),
		Ready:        assembler,
		Metrics:      metrics,
		SessionLimit: cfg.SessionLimit,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
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
	if store != nil {
		if err := store.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// loadRegistry reads the locality registry file. When the file does not
// exist, the localities listed in the hourly dataset are served instead.
func loadRegistry(cfg *config.Config, loader *dataset.Loader, logger *slog.Logger) (*locality.Registry, error) {
	registry, err := locality.Load(cfg.LocalitiesFile)
	if err == nil {
		logger.Info("locality registry loaded", "path", cfg.LocalitiesFile, "localities", registry.Len())
		return registry, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	found, err := loader.Localities(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]locality.Entry, 0, len(found))
	for _, l := range found {
		entries = append(entries, locality.Entry{Name: l.Name, Latitude: l.Latitude, Longitude: l.Longitude})
	}
	registry = locality.New(cfg.RegionQualifier, entries)
	if registry.Len() == 0 {
		return nil, locality.ErrEmptyRegistry
	}
	logger.Warn("locality registry not found, using hourly dataset localities",
		"path", cfg.LocalitiesFile,
		"localities", registry.Len(),
	)
	return registry, nil
}

// newBoundaryCache builds the boundary cache for the configured provider, or
// returns nil when boundary resolution is disabled. A reachable Redis at
// REDIS_ADDR becomes the shared tier; *store is set so it can be closed.
func newBoundaryCache(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, store **redisadapter.Store) *boundary.Cache {
	var source boundary.Source
	switch cfg.BoundaryProvider {
	case config.ProviderOverpass:
		source = overpass.NewClient(cfg.OverpassURL, cfg.RegionQualifier, cfg.BoundaryTimeout, logger,
			overpass.WithAdminLevel("6"))
	case config.ProviderNominatim:
		source = nominatim.NewClient(cfg.NominatimURL, cfg.RegionQualifier, cfg.BoundaryTimeout, logger)
	default:
		metrics.BoundaryEnabled.Set(0)
		logger.Info("boundary resolution disabled")
		return nil
	}
	metrics.BoundaryEnabled.Set(1)

	opts := []boundary.CacheOption{boundary.WithFetchTimeout(cfg.BoundaryTimeout)}
	if cfg.RedisAddr != "" {
		s := redisadapter.NewStore(redisadapter.NewClient(cfg.RedisAddr), cfg.RedisTTL)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, boundary geometries will not be shared", "addr", cfg.RedisAddr, "error", err)
			_ = s.Close()
		} else {
			opts = append(opts, boundary.WithStore(s))
			*store = s
			logger.Info("boundary store enabled", "addr", cfg.RedisAddr, "ttl", cfg.RedisTTL)
		}
	}
	logger.Info("boundary resolution enabled", "provider", cfg.BoundaryProvider, "timeout", cfg.BoundaryTimeout)
	return boundary.NewCache(source, logger, metrics, opts...)
}
