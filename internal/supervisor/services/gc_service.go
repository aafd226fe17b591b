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

// GarbageCollector runs one round of store maintenance.
// Satisfied by *catalog.Store.
type GarbageCollector interface {
	RunGC() error
}

// GCService periodically runs BadgerDB value log garbage collection so
// deleted items and replaced embeddings release disk space.
type GCService struct {
	collector GarbageCollector
	interval  time.Duration
	logger    zerolog.Logger
	name      string
}

// NewGCService creates a store garbage collection service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewGCService(collector GarbageCollector, interval time.Duration, logger zerolog.Logger) *GCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &GCService{
		collector: collector,
		interval:  interval,
		logger:    logger.With().Str("service", "store-gc").Logger(),
		name:      "store-gc",
	}
}

// Serve implements the suture.Service interface.
func (s *GCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("store GC service starting")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			if err := s.collector.RunGC(); err != nil {
				s.logger.Warn().Err(err).Msg("store GC failed")
			}
		}
	}
}

// String returns the service name for logging.
func (s *GCService) String() string {
	return s.name
}
