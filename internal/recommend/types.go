// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package recommend

import (
	"context"
	"time"
)

// Item represents a catalog entry with the metadata the engine scores on.
// The engine reads a snapshot of the catalog; it never mutates items.
type Item struct {
	// ID is the unique catalog identifier.
	ID int64 `json:"id"`

	// Title is the item title.
	Title string `json:"title"`

	// Author is the primary author, empty if unknown.
	Author string `json:"author,omitempty"`

	// Series is the series name, empty if the item is standalone.
	Series string `json:"series,omitempty"`

	// SeriesIndex is the ordinal position within Series.
	// Only meaningful when Series is non-empty.
	SeriesIndex float64 `json:"series_index,omitempty"`

	// Tags is the set of subject tags.
	Tags []string `json:"tags,omitempty"`

	// Rating is the user's rating (1-5), zero if unrated.
	Rating int `json:"rating,omitempty"`
}

// Rated reports whether the user has rated the item.
func (i *Item) Rated() bool {
	return i.Rating >= 1 && i.Rating <= 5
}

// RatedItem pairs an item ID with the rating used to build a profile.
type RatedItem struct {
	ID     int64 `json:"id"`
	Rating int   `json:"rating"`
}

// Candidate is an item reached during graph expansion.
// Candidates are transient and produced per request.
type Candidate struct {
	// ItemID is the reached item.
	ItemID int64 `json:"item_id"`

	// Weight is the maximum accumulated path weight across all paths
	// that reached the item.
	Weight float64 `json:"weight"`

	// Path is the best path from a seed to the item, inclusive of both.
	Path []int64 `json:"path"`

	// Hops is the number of edges on the best path.
	Hops int `json:"hops"`
}

// ReasonKind classifies the evidence behind a recommendation.
type ReasonKind int

const (
	// ReasonContent indicates strong embedding similarity.
	ReasonContent ReasonKind = iota
	// ReasonAuthor indicates a shared author.
	ReasonAuthor
	// ReasonSeries indicates membership in the same series.
	ReasonSeries
	// ReasonTagOverlap indicates shared subject tags.
	ReasonTagOverlap
	// ReasonReadersAlsoLiked indicates a collaborative signal.
	ReasonReadersAlsoLiked
	// ReasonNextInSeries indicates the immediate next entry of an
	// engaged series.
	ReasonNextInSeries
)

// String returns the wire name for the reason kind.
func (k ReasonKind) String() string {
	switch k {
	case ReasonContent:
		return "similar_content"
	case ReasonAuthor:
		return "same_author"
	case ReasonSeries:
		return "same_series"
	case ReasonTagOverlap:
		return "tag_overlap"
	case ReasonReadersAlsoLiked:
		return "readers_also_liked"
	case ReasonNextInSeries:
		return "next_in_series"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the kind as its wire name.
func (k ReasonKind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

// Reason is one piece of structured evidence for a recommendation.
type Reason struct {
	// Kind classifies the evidence.
	Kind ReasonKind `json:"kind"`

	// Weight is the contributing edge weight, used for ordering.
	Weight float64 `json:"weight"`

	// Detail is a human-readable fragment: the shared author, the series
	// name with a position description, or the item a collaborative
	// signal is based on.
	Detail string `json:"detail,omitempty"`

	// Tags lists the overlapping tags for ReasonTagOverlap.
	Tags []string `json:"tags,omitempty"`
}

// Recommendation is a single scored, explained result.
type Recommendation struct {
	// Item is the recommended catalog entry.
	Item Item `json:"item"`

	// Score is the final relevance score the result was ranked by.
	Score float64 `json:"score"`

	// PathWeight is the accumulated expansion weight of the best path.
	PathWeight float64 `json:"path_weight,omitempty"`

	// Reasons is the ordered evidence list. May be empty.
	Reasons []Reason `json:"reasons"`
}

// Response is the engine's answer to a recommendation request.
type Response struct {
	// Recommendations is the final diverse ranked list.
	Recommendations []Recommendation `json:"recommendations"`

	// TotalCandidates is the number of items reached by expansion.
	TotalCandidates int `json:"total_candidates"`

	// Partial is true when a deadline expired and the response holds the
	// best ranking computed so far.
	Partial bool `json:"partial,omitempty"`

	// Status describes degraded modes ("fallback", "partial", "empty").
	// Empty for a normal response.
	Status string `json:"status,omitempty"`

	// Metadata carries timing and diagnostic information.
	Metadata ResponseMetadata `json:"metadata"`
}

// Response status values for degraded modes.
const (
	// StatusFallback marks naive same-author/same-series suggestions
	// produced when the graph has no usable edges for the source.
	StatusFallback = "fallback"

	// StatusPartial marks a best-effort ranking cut short by a deadline.
	StatusPartial = "partial"

	// StatusEmpty marks a response with no candidates at all.
	StatusEmpty = "empty"
)

// ResponseMetadata carries timing and diagnostic information.
type ResponseMetadata struct {
	// RequestID is the unique request identifier.
	RequestID string `json:"request_id"`

	// Mode is "item" or "profile".
	Mode string `json:"mode"`

	// Seeds is the number of seed nodes expansion started from.
	Seeds int `json:"seeds"`

	// LatencyMS is the total engine latency in milliseconds.
	LatencyMS int64 `json:"latency_ms"`

	// CacheHit indicates whether the response was served from cache.
	CacheHit bool `json:"cache_hit"`

	// GraphBuiltAt is when the snapshot that served the request was built.
	GraphBuiltAt time.Time `json:"graph_built_at"`

	// Timestamp is when the response was generated.
	Timestamp time.Time `json:"timestamp"`
}

// ScoredItem is a candidate with its relevance score and metadata, as
// handed to rerankers.
type ScoredItem struct {
	// Item is the candidate's catalog metadata.
	Item Item `json:"item"`

	// Score is the relevance score from the personalized ranker.
	Score float64 `json:"score"`

	// Candidate is the expansion record the item came from.
	Candidate Candidate `json:"-"`
}

// Selection carries per-request context a reranker may consult.
type Selection struct {
	// K is the number of items to select.
	K int

	// Rated maps item IDs the requester has rated to the rating.
	// Rated items never appear in reranker input; the map exists for
	// series-engagement checks.
	Rated map[int64]int

	// EngagedSeries maps a series name to the highest series index the
	// requester has rated in it.
	EngagedSeries map[string]float64

	// Similarity returns embedding cosine similarity between two items,
	// or 0 when either embedding is missing.
	Similarity func(a, b int64) float64
}

// ItemLookup resolves catalog metadata by item ID.
type ItemLookup func(id int64) (Item, bool)

// Reranker reorders a relevance-ranked list for a secondary objective.
type Reranker interface {
	// Name returns the reranker identifier (e.g. "mmr").
	Name() string

	// Rerank selects up to sel.K items from the scored input.
	// The input is already sorted by relevance descending.
	Rerank(ctx context.Context, items []ScoredItem, sel Selection) []ScoredItem
}

// RebuildStats summarizes a graph rebuild.
type RebuildStats struct {
	// Nodes is the number of items in the new snapshot.
	Nodes int `json:"nodes"`

	// Edges is the number of typed edges in the new snapshot.
	Edges int `json:"edges"`

	// Pairs is the number of item pairs with a qualifying fused edge.
	Pairs int `json:"pairs"`

	// Duration is how long the rebuild took.
	Duration time.Duration `json:"-"`

	// DurationMS is the rebuild duration in milliseconds.
	DurationMS int64 `json:"duration_ms"`
}

// GraphView is a bounded neighborhood extract for external visualization.
type GraphView struct {
	Nodes []GraphViewNode `json:"nodes"`
	Edges []GraphViewEdge `json:"edges"`

	// Partial is true when a deadline expired before the walk finished
	// and the view holds the hops explored so far.
	Partial bool `json:"partial,omitempty"`
}

// GraphViewNode is a node with enough metadata to render.
type GraphViewNode struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author,omitempty"`
	Rating int    `json:"rating,omitempty"`
}

// GraphViewEdge is a typed weighted edge between two rendered nodes.
type GraphViewEdge struct {
	Source int64   `json:"source"`
	Target int64   `json:"target"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight"`
}
