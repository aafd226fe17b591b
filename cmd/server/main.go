// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

// Package main is the entry point for the Bibliograph server.
//
// Bibliograph is a self-hosted recommendation engine for a personal
// book library. It fuses embedding similarity with catalog metadata
// into a similarity graph and serves graph-walk recommendations over a
// REST API.
//
// The server initializes components in the following order:
//
//  1. Configuration: layered koanf sources (defaults, YAML file, env)
//  2. Catalog: BadgerDB store for items, embeddings, and edges
//  3. Engine: similarity graph, ranker, and MMR reranker
//  4. Embedding client (optional): Ollama for content vectors
//  5. Supervisor tree: store GC, scheduled rebuilds, HTTP server
//
// On startup the server reloads the persisted edge set so it can serve
// immediately; a full rebuild is scheduled when nothing was persisted.
//
// The server handles graceful shutdown on SIGINT and SIGTERM: the HTTP
// server drains in-flight requests, then the catalog store closes.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tomtom215/bibliograph/internal/api"
	"github.com/tomtom215/bibliograph/internal/catalog"
	"github.com/tomtom215/bibliograph/internal/config"
	"github.com/tomtom215/bibliograph/internal/embedding"
	"github.com/tomtom215/bibliograph/internal/logging"
	"github.com/tomtom215/bibliograph/internal/metrics"
	"github.com/tomtom215/bibliograph/internal/recommend"
	"github.com/tomtom215/bibliograph/internal/recommend/explain"
	"github.com/tomtom215/bibliograph/internal/recommend/reranking"
	"github.com/tomtom215/bibliograph/internal/supervisor"
	"github.com/tomtom215/bibliograph/internal/supervisor/services"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

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
		Str("version", version).
		Str("db_path", cfg.Database.Path).
		Bool("embedding_enabled", cfg.Embedding.Enabled).
		Msg("Starting Bibliograph")

	store, err := catalog.Open(catalog.Options{
		Path:       cfg.Database.Path,
		SyncWrites: cfg.Database.SyncWrites,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open catalog store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing catalog store")
		}
	}()

	engineCfg := cfg.EngineConfig()
	engine, err := recommend.NewEngine(engineCfg, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create recommendation engine")
	}
	engine.SetDataProvider(store)
	engine.RegisterReranker(reranking.NewMMR(engineCfg.Diversity))
	engine.SetExplainer(explain.NewBuilder(engineCfg.Expansion.Decay))

	var embedder api.Embedder
	if cfg.Embedding.Enabled {
		embedder = embedding.NewClient(embedding.Options{
			URL:        cfg.Embedding.URL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Timeout:    cfg.Embedding.Timeout,
		})
		logging.Info().
			Str("url", cfg.Embedding.URL).
			Str("model", cfg.Embedding.Model).
			Msg("Embedding provider configured")
	}

	// Reload the persisted graph so the API can serve immediately.
	rebuildOnStartup := cfg.Recommend.RebuildOnStartup
	if stats := loadPersistedGraph(engine, store); stats != nil {
		logging.Info().
			Int("nodes", stats.Nodes).
			Int("edges", stats.Edges).
			Msg("Persisted graph loaded")
	} else {
		rebuildOnStartup = true
	}

	handler := api.NewHandler(engine, store, embedder, cfg, version)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	if cfg.Server.ShutdownTimeout > 0 {
		treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	}
	tree := supervisor.NewTree(logging.NewSlogLogger(), treeCfg)

	// Data layer: value log GC only matters for an on-disk store.
	if cfg.Database.Path != "" {
		tree.AddDataService(services.NewGCService(store, cfg.Database.GCInterval, logging.Logger()))
	}

	// Engine layer: scheduled rebuilds that persist the new edge set
	// and drop cached response bodies.
	rebuild := services.RebuildFunc(func(ctx context.Context) error {
		start := time.Now()
		stats, err := engine.RebuildGraph(ctx)
		if err != nil {
			metrics.ObserveRebuild(0, 0, time.Since(start), err)
			return err
		}
		metrics.ObserveRebuild(stats.Nodes, stats.Edges, stats.Duration, nil)
		if err := store.SaveEdges(ctx, engine.Edges()); err != nil {
			return err
		}
		handler.ClearCache()
		return nil
	})
	tree.AddEngineService(services.NewRebuildService(rebuild, services.RebuildServiceConfig{
		RebuildOnStartup: rebuildOnStartup,
		Interval:         cfg.Recommend.RebuildInterval,
	}, logging.Logger()))

	// API layer
	tree.AddAPIService(services.NewHTTPServerService(server, treeCfg.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}

// loadPersistedGraph restores the last persisted snapshot. Returns nil
// when there is nothing usable to load.
func loadPersistedGraph(engine *recommend.Engine, store *catalog.Store) *recommend.RebuildStats {
	ctx := context.Background()

	edges, err := store.LoadEdges(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to load persisted edges")
		return nil
	}
	if len(edges) == 0 {
		return nil
	}

	items, err := store.Items(ctx)
	if err != nil || len(items) == 0 {
		logging.Warn().Err(err).Msg("Persisted edges found but catalog is unreadable or empty")
		return nil
	}

	embeddings, err := store.Embeddings(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to load embeddings, continuing without them")
		embeddings = nil
	}

	return engine.LoadSnapshot(items, embeddings, edges)
}
