// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

// Package config loads layered application configuration: built-in
// defaults, an optional YAML file, then environment variables, each
// layer overriding the previous one.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/bibliograph/internal/recommend"
)

// DefaultConfigPaths lists where config files are searched, first match
// wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/bibliograph/config.yaml",
	"/etc/bibliograph/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix namespaces Bibliograph environment variables:
// BIBLIOGRAPH_SERVER_PORT -> server.port.
const envPrefix = "BIBLIOGRAPH_"

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Recommend RecommendConfig `koanf:"recommend"`
	API       APIConfig       `koanf:"api"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig holds the Badger catalog store settings.
type DatabaseConfig struct {
	// Path is the Badger directory. Empty selects an in-memory store,
	// which is useful for tests and ephemeral deployments.
	Path string `koanf:"path"`

	// SyncWrites makes every write durable before returning.
	SyncWrites bool `koanf:"sync_writes"`

	// GCInterval is how often the value-log garbage collector runs.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// EmbeddingConfig holds the external embedding provider settings.
type EmbeddingConfig struct {
	// Enabled turns embedding generation on. Without it the engine
	// works from metadata signals only.
	Enabled bool `koanf:"enabled"`

	// URL is the Ollama base URL.
	URL string `koanf:"url"`

	// Model is the embedding model name.
	Model string `koanf:"model"`

	// Dimensions is the expected vector length. Responses with a
	// different length are rejected.
	Dimensions int `koanf:"dimensions"`

	// Timeout bounds a single embedding call.
	Timeout time.Duration `koanf:"timeout"`
}

// RecommendConfig holds engine tunables plus rebuild scheduling.
type RecommendConfig struct {
	// RebuildInterval is how often the graph is rebuilt from the
	// catalog. Zero disables periodic rebuilds.
	RebuildInterval time.Duration `koanf:"rebuild_interval"`

	// RebuildOnStartup triggers a rebuild when no persisted edge set
	// exists at startup.
	RebuildOnStartup bool `koanf:"rebuild_on_startup"`

	// RequestTimeout bounds one recommendation request; on expiry the
	// engine returns a partial best-effort response.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	SeedCount        int           `koanf:"seed_count"`
	SeedMinSim       float64       `koanf:"seed_min_similarity"`
	MinProfileRating int           `koanf:"min_profile_rating"`
	MaxHops          int           `koanf:"max_hops"`
	MinWeights       []float64     `koanf:"min_weights"`
	Decay            float64       `koanf:"decay"`
	MaxCandidates    int           `koanf:"max_candidates"`
	PageRankAlpha    float64       `koanf:"pagerank_alpha"`
	TeleportWeight   float64       `koanf:"teleport_weight"`
	Iterations       int           `koanf:"pagerank_iterations"`
	MMRLambda        float64       `koanf:"mmr_lambda"`
	AuthorCap        int           `koanf:"author_cap"`
	SeriesBonus      float64       `koanf:"series_bonus"`
	DefaultK         int           `koanf:"default_k"`
	MaxK             int           `koanf:"max_k"`
	CacheTTL         time.Duration `koanf:"cache_ttl"`
}

// APIConfig holds HTTP API behavior settings.
type APIConfig struct {
	// RateLimit is requests per minute per client IP. Zero disables
	// rate limiting.
	RateLimit int `koanf:"rate_limit"`

	// CORSOrigins lists allowed CORS origins.
	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the built-in defaults, aligned with the engine
// defaults in the recommend package.
func defaultConfig() *Config {
	eng := recommend.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8972,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path:       "/data/bibliograph",
			SyncWrites: false,
			GCInterval: 10 * time.Minute,
		},
		Embedding: EmbeddingConfig{
			Enabled:    false,
			URL:        "http://127.0.0.1:11434",
			Model:      "nomic-embed-text",
			Dimensions: 768,
			Timeout:    30 * time.Second,
		},
		Recommend: RecommendConfig{
			RebuildInterval:  6 * time.Hour,
			RebuildOnStartup: true,
			RequestTimeout:   5 * time.Second,
			SeedCount:        eng.Seeds.Count,
			SeedMinSim:       eng.Seeds.MinSimilarity,
			MinProfileRating: eng.Seeds.MinProfileRating,
			MaxHops:          eng.Expansion.MaxHops,
			MinWeights:       eng.Expansion.MinWeights,
			Decay:            eng.Expansion.Decay,
			MaxCandidates:    eng.Expansion.MaxCandidates,
			PageRankAlpha:    eng.PageRank.Alpha,
			TeleportWeight:   eng.PageRank.TeleportWeight,
			Iterations:       eng.PageRank.Iterations,
			MMRLambda:        eng.Diversity.MMRLambda,
			AuthorCap:        eng.Diversity.AuthorCap,
			SeriesBonus:      eng.Diversity.SeriesBonus,
			DefaultK:         eng.Limits.DefaultK,
			MaxK:             eng.Limits.MaxK,
			CacheTTL:         eng.Cache.TTL,
		},
		API: APIConfig{
			RateLimit:   120,
			CORSOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file
// and BIBLIOGRAPH_* environment variables, in that order of precedence.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(key string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(key, envPrefix)), "_", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if err := normalizeSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists paths that accept comma-separated environment
// values.
var sliceConfigPaths = []string{
	"api.cors.origins",
}

// normalizeSliceFields converts comma-separated env strings to slices.
// The env transform turns BIBLIOGRAPH_API_CORS_ORIGINS into
// api.cors.origins, which is remapped to its real key here.
func normalizeSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set("api.cors_origins", trimmed); err != nil {
			return fmt.Errorf("setting cors origins: %w", err)
		}
	}
	return nil
}

// Validate checks cross-field constraints the engine config validator
// does not cover.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}
	if c.Embedding.Enabled {
		if c.Embedding.URL == "" {
			return fmt.Errorf("embedding.url required when embedding is enabled")
		}
		if c.Embedding.Dimensions < 1 {
			return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
		}
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must be non-negative, got %d", c.API.RateLimit)
	}
	// Engine tunables validate through the engine's own validator.
	if err := c.EngineConfig().Validate(); err != nil {
		return err
	}
	return nil
}

// EngineConfig maps the flat application settings onto the engine's
// configuration structure.
func (c *Config) EngineConfig() *recommend.Config {
	eng := recommend.DefaultConfig()
	r := c.Recommend

	eng.Seeds.Count = r.SeedCount
	eng.Seeds.MinSimilarity = r.SeedMinSim
	eng.Seeds.MinProfileRating = r.MinProfileRating
	eng.Expansion.MaxHops = r.MaxHops
	if len(r.MinWeights) > 0 {
		eng.Expansion.MinWeights = append([]float64(nil), r.MinWeights...)
	}
	eng.Expansion.Decay = r.Decay
	eng.Expansion.MaxCandidates = r.MaxCandidates
	eng.PageRank.Alpha = r.PageRankAlpha
	eng.PageRank.TeleportWeight = r.TeleportWeight
	eng.PageRank.Iterations = r.Iterations
	eng.Diversity.MMRLambda = r.MMRLambda
	eng.Diversity.AuthorCap = r.AuthorCap
	eng.Diversity.SeriesBonus = r.SeriesBonus
	eng.Limits.DefaultK = r.DefaultK
	eng.Limits.MaxK = r.MaxK
	if r.CacheTTL > 0 {
		eng.Cache.TTL = r.CacheTTL
	}
	return eng
}
