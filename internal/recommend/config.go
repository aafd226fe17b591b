// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package recommend

import (
	"fmt"
	"time"
)

// Config contains all tunables for the recommendation engine.
type Config struct {
	// Seeds controls seed candidate generation from the vector index.
	Seeds SeedConfig `json:"seeds"`

	// Expansion controls multi-hop candidate discovery.
	Expansion ExpansionConfig `json:"expansion"`

	// PageRank controls the personalized ranker.
	PageRank PageRankConfig `json:"pagerank"`

	// Diversity controls MMR reranking.
	Diversity DiversityConfig `json:"diversity"`

	// Limits contains operational bounds.
	Limits LimitsConfig `json:"limits"`

	// Cache contains response caching parameters.
	Cache CacheConfig `json:"cache"`
}

// SeedConfig controls seed candidate generation.
type SeedConfig struct {
	// Count is the number of nearest neighbors used as seeds.
	// Default: 10.
	Count int `json:"count"`

	// MinSimilarity is the minimum cosine similarity for a neighbor to
	// qualify as a seed. Default: 0.3.
	MinSimilarity float64 `json:"min_similarity"`

	// MinProfileRating is the lowest rating that marks an item as
	// highly rated when building a profile. Default: 4.
	MinProfileRating int `json:"min_profile_rating"`
}

// ExpansionConfig controls multi-hop candidate discovery.
type ExpansionConfig struct {
	// MaxHops is the maximum expansion depth. Default: 3.
	MaxHops int `json:"max_hops"`

	// MinWeights holds the minimum fused edge weight per hop index.
	// Hops beyond the slice reuse the last entry.
	// Default: [0.70, 0.50, 0.60].
	MinWeights []float64 `json:"min_weights"`

	// Decay is the per-hop decay base d; contributions at hop h are
	// multiplied by d^h. Default: 0.8.
	Decay float64 `json:"decay"`

	// MaxCandidates caps the candidate set; once reached, the
	// lowest-weight pending frontier entries are dropped first.
	// Default: 500.
	MaxCandidates int `json:"max_candidates"`
}

// PageRankConfig controls the personalized ranker.
type PageRankConfig struct {
	// Alpha is the damping factor. Default: 0.85.
	Alpha float64 `json:"alpha"`

	// TeleportWeight is the personalization mass assigned to preference
	// nodes; the remainder goes to seeds. Default: 0.3.
	TeleportWeight float64 `json:"teleport_weight"`

	// Iterations is the fixed number of power-iteration rounds.
	// There is no dynamic convergence check. Default: 20.
	Iterations int `json:"iterations"`
}

// DiversityConfig controls MMR reranking.
type DiversityConfig struct {
	// MMRLambda balances relevance vs. diversity.
	// 1.0 = pure relevance, 0.0 = pure diversity. Default: 0.7.
	MMRLambda float64 `json:"mmr_lambda"`

	// AuthorCap is the maximum items per author in the final list.
	// Default: 2.
	AuthorCap int `json:"author_cap"`

	// SeriesBonus is the relevance bonus for the immediate next entry
	// of a series the requester has engaged with. Default: 0.20.
	SeriesBonus float64 `json:"series_bonus"`
}

// LimitsConfig contains operational bounds.
type LimitsConfig struct {
	// DefaultK is the default number of recommendations. Default: 20.
	DefaultK int `json:"default_k"`

	// MaxK is the maximum allowed K value. Default: 100.
	MaxK int `json:"max_k"`

	// MaxDepth bounds neighborhood graph extraction depth. Default: 3.
	MaxDepth int `json:"max_depth"`

	// MaxNodes bounds neighborhood graph extraction size. Default: 200.
	MaxNodes int `json:"max_nodes"`
}

// CacheConfig contains response caching parameters.
type CacheConfig struct {
	// Enabled controls whether response caching is active. Default: true.
	Enabled bool `json:"enabled"`

	// TTL is the cache entry time-to-live. Default: 5m.
	TTL time.Duration `json:"ttl"`

	// MaxEntries is the maximum number of cached responses.
	// Default: 1024.
	MaxEntries int `json:"max_entries"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() *Config {
	return &Config{
		Seeds: SeedConfig{
			Count:            10,
			MinSimilarity:    0.3,
			MinProfileRating: 4,
		},
		Expansion: ExpansionConfig{
			MaxHops:       3,
			MinWeights:    []float64{0.70, 0.50, 0.60},
			Decay:         0.8,
			MaxCandidates: 500,
		},
		PageRank: PageRankConfig{
			Alpha:          0.85,
			TeleportWeight: 0.3,
			Iterations:     20,
		},
		Diversity: DiversityConfig{
			MMRLambda:   0.7,
			AuthorCap:   2,
			SeriesBonus: 0.20,
		},
		Limits: LimitsConfig{
			DefaultK: 20,
			MaxK:     100,
			MaxDepth: 3,
			MaxNodes: 200,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTL:        5 * time.Minute,
			MaxEntries: 1024,
		},
	}
}

// Validate checks the configuration for errors.
//
//nolint:gocyclo // validation needs to check many fields
func (c *Config) Validate() error {
	if c.Seeds.Count < 1 {
		return fmt.Errorf("seeds.count must be positive, got %d", c.Seeds.Count)
	}
	if c.Seeds.MinSimilarity < -1 || c.Seeds.MinSimilarity > 1 {
		return fmt.Errorf("seeds.min_similarity must be in [-1, 1], got %f", c.Seeds.MinSimilarity)
	}
	if c.Seeds.MinProfileRating < 1 || c.Seeds.MinProfileRating > 5 {
		return fmt.Errorf("seeds.min_profile_rating must be in [1, 5], got %d", c.Seeds.MinProfileRating)
	}

	if c.Expansion.MaxHops < 1 {
		return fmt.Errorf("expansion.max_hops must be positive, got %d", c.Expansion.MaxHops)
	}
	if len(c.Expansion.MinWeights) == 0 {
		return fmt.Errorf("expansion.min_weights must not be empty")
	}
	for i, w := range c.Expansion.MinWeights {
		if w < 0 || w > 1 {
			return fmt.Errorf("expansion.min_weights[%d] must be in [0, 1], got %f", i, w)
		}
	}
	if c.Expansion.Decay <= 0 || c.Expansion.Decay > 1 {
		return fmt.Errorf("expansion.decay must be in (0, 1], got %f", c.Expansion.Decay)
	}
	if c.Expansion.MaxCandidates < 1 {
		return fmt.Errorf("expansion.max_candidates must be positive, got %d", c.Expansion.MaxCandidates)
	}

	if c.PageRank.Alpha <= 0 || c.PageRank.Alpha >= 1 {
		return fmt.Errorf("pagerank.alpha must be in (0, 1), got %f", c.PageRank.Alpha)
	}
	if c.PageRank.TeleportWeight < 0 || c.PageRank.TeleportWeight > 1 {
		return fmt.Errorf("pagerank.teleport_weight must be in [0, 1], got %f", c.PageRank.TeleportWeight)
	}
	if c.PageRank.Iterations < 1 {
		return fmt.Errorf("pagerank.iterations must be positive, got %d", c.PageRank.Iterations)
	}

	if c.Diversity.MMRLambda < 0 || c.Diversity.MMRLambda > 1 {
		return fmt.Errorf("diversity.mmr_lambda must be in [0, 1], got %f", c.Diversity.MMRLambda)
	}
	if c.Diversity.AuthorCap < 1 {
		return fmt.Errorf("diversity.author_cap must be positive, got %d", c.Diversity.AuthorCap)
	}
	if c.Diversity.SeriesBonus < 0 {
		return fmt.Errorf("diversity.series_bonus must be non-negative, got %f", c.Diversity.SeriesBonus)
	}

	if c.Limits.DefaultK < 1 {
		return fmt.Errorf("limits.default_k must be positive, got %d", c.Limits.DefaultK)
	}
	if c.Limits.MaxK < c.Limits.DefaultK {
		return fmt.Errorf("limits.max_k must be >= limits.default_k, got %d < %d", c.Limits.MaxK, c.Limits.DefaultK)
	}
	if c.Limits.MaxDepth < 1 {
		return fmt.Errorf("limits.max_depth must be positive, got %d", c.Limits.MaxDepth)
	}
	if c.Limits.MaxNodes < 1 {
		return fmt.Errorf("limits.max_nodes must be positive, got %d", c.Limits.MaxNodes)
	}

	if c.Cache.Enabled {
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("cache.ttl must be positive, got %v", c.Cache.TTL)
		}
		if c.Cache.MaxEntries < 1 {
			return fmt.Errorf("cache.max_entries must be positive, got %d", c.Cache.MaxEntries)
		}
	}

	return nil
}

// MinWeightAt returns the per-hop threshold for hop index h, reusing the
// last configured entry for deeper hops.
func (c *ExpansionConfig) MinWeightAt(h int) float64 {
	if h < len(c.MinWeights) {
		return c.MinWeights[h]
	}
	return c.MinWeights[len(c.MinWeights)-1]
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	out := *c
	out.Expansion.MinWeights = append([]float64(nil), c.Expansion.MinWeights...)
	return &out
}
