// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

// Package main is the entry point for the ReviewLens server.
//
// The server initializes components in the following order:
//
//  1. Configuration: layered load from defaults, config file, and
//     environment variables (Koanf v2)
//  2. Processed cache: Badger-backed snapshots of the enriched catalog
//  3. Inference client: HTTP client for the model server, with circuit
//     breaking and client-side rate limiting
//  4. Catalog: CSV load, filtering, and aspect enrichment
//  5. Embedding index: persisted vectors plus an in-memory cosine index
//  6. Ranker, feedback, and persistence services
//  7. HTTP server: REST API under suture supervision
//
// A failed startup does not exit the process. The HTTP server still
// comes up and serves the failure diagnostic on the status endpoints,
// while data endpoints answer 503.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/reviewlens/reviewlens/internal/api"
	"github.com/reviewlens/reviewlens/internal/catalog"
	"github.com/reviewlens/reviewlens/internal/config"
	"github.com/reviewlens/reviewlens/internal/embedding"
	"github.com/reviewlens/reviewlens/internal/feedback"
	"github.com/reviewlens/reviewlens/internal/inference"
	"github.com/reviewlens/reviewlens/internal/logging"
	"github.com/reviewlens/reviewlens/internal/metrics"
	"github.com/reviewlens/reviewlens/internal/rank"
	"github.com/reviewlens/reviewlens/internal/sentiment"
	"github.com/reviewlens/reviewlens/internal/supervisor"
)

// components holds everything a successful startup produces.
type components struct {
	store     *catalog.Store
	cache     *catalog.ProcessedCache
	ranker    *rank.Ranker
	analyzer  *sentiment.Analyzer
	persister *feedback.Persister
	feedback  *feedback.Incorporator
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("catalog", cfg.Data.CatalogPath).
		Str("inference_url", cfg.Inference.BaseURL).
		Int("port", cfg.Server.Port).
		Msg("Starting ReviewLens")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var startupErr string
	comps, err := bootstrap(ctx, cfg)
	if err != nil {
		// Keep serving so the diagnostic is reachable over HTTP.
		startupErr = err.Error()
		logging.Error().Err(err).Msg("Startup failed, serving in degraded mode")
	}
	if comps != nil && comps.cache != nil {
		defer func() {
			if err := comps.cache.Close(); err != nil {
				logging.Error().Err(err).Msg("Failed to close processed cache")
			}
		}()
	}

	// === SUPERVISOR TREE ===

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	var handler *api.Handler
	if startupErr == "" {
		handler = api.NewHandler(comps.store, comps.ranker, comps.feedback, comps.analyzer, "", logging.Logger())
		tree.AddPersistenceService(comps.persister)
	} else {
		handler = api.NewHandler(catalog.NewStore(nil), nil, nil, nil, startupErr, logging.Logger())
	}

	router := api.NewRouter(handler, api.NewMiddleware(&api.MiddlewareConfig{
		RateLimitRequests: cfg.API.RateLimitRequests,
		RateLimitWindow:   cfg.API.RateLimitWindow,
		RequestTimeout:    cfg.API.RequestTimeout,
	}))

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	tree.AddAPIService(supervisor.NewHTTPService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === RUN ===

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}

// bootstrap loads the catalog, builds the embedding index, and wires the
// ranking and feedback services.
func bootstrap(ctx context.Context, cfg *config.Config) (*components, error) {
	logger := logging.Logger()

	cache, err := catalog.OpenProcessedCache(cfg.Data.CacheDir, logger)
	if err != nil {
		// The cache only skips re-enrichment; run without it.
		logging.Warn().Err(err).Str("dir", cfg.Data.CacheDir).Msg("Processed cache unavailable, continuing without it")
		cache = nil
	}

	client := inference.NewClient(inference.Config{
		BaseURL:           cfg.Inference.BaseURL,
		Timeout:           cfg.Inference.Timeout,
		RequestsPerSecond: cfg.Inference.RequestsPerSecond,
		Burst:             cfg.Inference.Burst,
	}, logger)

	if err := client.Ping(ctx); err != nil {
		// The breaker will fail individual calls fast; startup proceeds.
		logging.Warn().Err(err).Str("base_url", cfg.Inference.BaseURL).Msg("Model server unreachable at startup")
	}

	enricher := sentiment.NewEnricher(client, client, sentiment.EnricherConfig{
		ChunkSize: cfg.Enrich.ChunkSize,
		BatchSize: cfg.Enrich.BatchSize,
	}, logger)

	loader := catalog.NewLoader(catalog.LoaderConfig{
		SourcePath:     cfg.Data.CatalogPath,
		MaxRows:        cfg.Data.MaxRows,
		MinReviewChars: cfg.Data.MinReviewChars,
		SchemaVersion:  cfg.Data.SchemaVersion,
	}, cache, enricher, logger)

	loadStart := time.Now()
	items, cacheKey, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	store := catalog.NewStore(items)
	metrics.CatalogRows.Set(float64(store.RowCount()))
	metrics.CatalogUniqueItems.Set(float64(store.UniqueCount()))
	logging.Info().
		Int("rows", store.RowCount()).
		Int("unique_items", store.UniqueCount()).
		Dur("elapsed", time.Since(loadStart)).
		Msg("Catalog loaded")

	index, err := embedding.Build(ctx, store.EnrichedTexts(), client, embedding.Config{
		VectorsPath:  cfg.Data.VectorsPath,
		IndexPath:    cfg.Data.IndexPath,
		MaxNeighbors: cfg.Rank.MaxNeighbors,
		BatchSize:    cfg.Enrich.BatchSize,
	}, logger)
	if err != nil {
		return nil, err
	}

	analyzer := sentiment.NewAnalyzer(client, client, logger)
	ranker := rank.NewRanker(store, index, client, client, analyzer, rank.Config{
		DefaultTopN: cfg.Rank.DefaultTopN,
	}, logger)

	persister := feedback.NewPersister(store, cache, cacheKey, cfg.Data.CatalogPath, cfg.Feedback.QueueCapacity, logger)
	incorporator := feedback.NewIncorporator(store, analyzer, persister, logger)

	return &components{
		store:     store,
		cache:     cache,
		ranker:    ranker,
		analyzer:  analyzer,
		persister: persister,
		feedback:  incorporator,
	}, nil
}
