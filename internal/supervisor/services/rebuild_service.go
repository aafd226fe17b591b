// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Rebuilder runs one full graph rebuild cycle: recompute the snapshot,
// persist the edge set, and invalidate response caches.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// RebuildFunc adapts a plain function to the Rebuilder interface.
type RebuildFunc func(ctx context.Context) error

// Rebuild calls f(ctx).
func (f RebuildFunc) Rebuild(ctx context.Context) error {
	return f(ctx)
}

// RebuildServiceConfig holds configuration for the rebuild service.
type RebuildServiceConfig struct {
	// RebuildOnStartup triggers a rebuild when the service starts.
	// Set when no persisted edge set could be loaded.
	RebuildOnStartup bool

	// Interval is how often the graph is rebuilt. Default: 6h.
	Interval time.Duration

	// Timeout bounds a single rebuild cycle. Default: 10m.
	Timeout time.Duration
}

// RebuildService keeps the similarity graph fresh: one rebuild on
// startup when required, then one per interval.
type RebuildService struct {
	rebuilder Rebuilder
	config    RebuildServiceConfig
	logger    zerolog.Logger
	name      string
}

// NewRebuildService creates a rebuild service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRebuildService(rebuilder Rebuilder, cfg RebuildServiceConfig, logger zerolog.Logger) *RebuildService {
	return &RebuildService{
		rebuilder: rebuilder,
		config:    cfg,
		logger:    logger.With().Str("service", "rebuild").Logger(),
		name:      "rebuild-service",
	}
}

// Serve implements the suture.Service interface.
func (s *RebuildService) Serve(ctx context.Context) error {
	if s.config.Interval <= 0 {
		s.config.Interval = 6 * time.Hour
	}

	s.logger.Info().
		Bool("rebuild_on_startup", s.config.RebuildOnStartup).
		Dur("interval", s.config.Interval).
		Msg("rebuild service starting")

	if s.config.RebuildOnStartup {
		if err := s.rebuild(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("startup rebuild failed (will retry on schedule)")
		}
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("rebuild service shutting down")
			return ctx.Err()

		case <-ticker.C:
			if err := s.rebuild(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("scheduled rebuild failed")
			}
		}
	}
}

// rebuild runs one cycle under its own timeout.
func (s *RebuildService) rebuild(ctx context.Context) error {
	timeout := s.config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	rebuildCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	if err := s.rebuilder.Rebuild(rebuildCtx); err != nil {
		return err
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Msg("graph rebuild complete")
	return nil
}

// String returns the service name for logging.
func (s *RebuildService) String() string {
	return s.name
}
