// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package recommend

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/bibliograph/internal/recommend/graph"
	"github.com/tomtom215/bibliograph/internal/recommend/vector"
)

// Naive fallback weights used when the graph has no usable edges for a
// source item. Matches the metadata-only suggestion strength.
const (
	fallbackAuthorWeight = 0.8
	fallbackSeriesWeight = 0.9
)

// contentSignalFloor is the minimum cosine similarity for a content
// signal to enter edge fusion during a rebuild. Weaker similarities are
// noise at 768 dimensions and would densify the graph without ever
// passing the expansion thresholds.
const contentSignalFloor = 0.3

// DataProvider supplies the catalog snapshot a rebuild works from.
// Implemented by the catalog store.
type DataProvider interface {
	// Items returns all catalog items with metadata and ratings.
	Items(ctx context.Context) ([]Item, error)

	// Embeddings returns the stored embedding per item ID. Items
	// without an embedding are simply absent from the map.
	Embeddings(ctx context.Context) (map[int64][]float64, error)
}

// UserSignal is an optional externally computed collaborative
// similarity. It reports the signal strength for a pair and whether the
// pair has one at all.
type UserSignal func(a, b int64) (float64, bool)

// Explainer converts best-path edge evidence into ordered reasons.
// Implemented by the explain package and registered at startup.
type Explainer interface {
	// FromPath emits one reason per qualifying edge type along a path.
	FromPath(g *graph.Graph, path []int64, lookup ItemLookup) []Reason

	// Synthesize appends context-dependent reasons such as
	// next-in-series.
	Synthesize(reasons []Reason, item Item, engaged map[string]float64) []Reason
}

// snapshot bundles the immutable per-rebuild state: the graph, the
// vector index and the item metadata it was built from. Requests load
// one snapshot and use it for their whole lifetime.
type snapshot struct {
	graph *graph.Graph
	index *vector.Index
	items map[int64]Item
}

// Engine produces explained, diverse recommendations over the similarity
// graph. It is safe for concurrent use; rebuilds swap the active
// snapshot atomically under running requests.
type Engine struct {
	config *Config
	logger zerolog.Logger

	snap atomic.Pointer[snapshot]

	// Registered collaborators.
	regMu      sync.RWMutex
	rerankers  []Reranker
	explainer  Explainer
	userSignal UserSignal
	provider   DataProvider

	// One rebuild at a time.
	rebuildMu   sync.Mutex
	lastRebuild atomic.Pointer[RebuildStats]

	// Response cache.
	cacheMu sync.Mutex
	cache   map[string]cacheEntry

	requestCount atomic.Int64
	cacheHits    atomic.Int64
	cacheMisses  atomic.Int64
	errorCount   atomic.Int64
}

type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// NewEngine creates an engine with the given configuration.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		config: cfg.Clone(),
		logger: logger.With().Str("component", "recommend").Logger(),
		cache:  make(map[string]cacheEntry),
	}, nil
}

// SetDataProvider sets the catalog source used by rebuilds.
func (e *Engine) SetDataProvider(p DataProvider) {
	e.regMu.Lock()
	defer e.regMu.Unlock()
	e.provider = p
}

// RegisterReranker appends a reranker to the post-ranking chain.
func (e *Engine) RegisterReranker(rr Reranker) {
	e.regMu.Lock()
	defer e.regMu.Unlock()
	e.rerankers = append(e.rerankers, rr)
	e.logger.Info().Str("reranker", rr.Name()).Msg("reranker registered")
}

// SetExplainer sets the reason builder. Without one, recommendations
// carry empty reason lists.
func (e *Engine) SetExplainer(ex Explainer) {
	e.regMu.Lock()
	defer e.regMu.Unlock()
	e.explainer = ex
}

// SetUserSignal sets the optional collaborative similarity feeding user
// edges during rebuilds.
func (e *Engine) SetUserSignal(fn UserSignal) {
	e.regMu.Lock()
	defer e.regMu.Unlock()
	e.userSignal = fn
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() *Config {
	return e.config.Clone()
}

// LastRebuild returns the stats of the most recent rebuild, or nil.
func (e *Engine) LastRebuild() *RebuildStats {
	return e.lastRebuild.Load()
}

// Ready reports whether a snapshot is available to serve requests.
func (e *Engine) Ready() bool {
	return e.snap.Load() != nil
}

// GraphBuiltAt returns when the live snapshot was built, or the zero
// time when no snapshot exists.
func (e *Engine) GraphBuiltAt() time.Time {
	snap := e.snap.Load()
	if snap == nil {
		return time.Time{}
	}
	return snap.graph.BuiltAt()
}

// request gathers the per-request state threaded through the pipeline.
type request struct {
	id      string
	mode    string
	k       int
	start   time.Time
	seeds   []int64
	exclude map[int64]struct{}
	rated   map[int64]int
	engaged map[string]float64
	prefs   []int64

	// fallbackFrom is the item naive suggestions derive from when the
	// graph yields nothing.
	fallbackFrom *Item
}

// RecommendFor returns recommendations similar to a single item.
// A limit of 0 selects the configured default.
func (e *Engine) RecommendFor(ctx context.Context, itemID int64, limit int) (*Response, error) {
	start := time.Now()
	e.requestCount.Add(1)

	k, err := e.clampLimit(limit)
	if err != nil {
		e.errorCount.Add(1)
		return nil, err
	}
	snap := e.snap.Load()
	if snap == nil {
		e.errorCount.Add(1)
		return nil, ErrNoSnapshot
	}
	item, ok := snap.items[itemID]
	if !ok {
		e.errorCount.Add(1)
		return nil, fmt.Errorf("%w: id %d", ErrUnknownItem, itemID)
	}

	key := cacheKey("item", itemID, k)
	if resp := e.cachedResponse(key); resp != nil {
		return resp, nil
	}

	rated, engaged := ownerContext(snap.items)
	req := request{
		id:           uuid.NewString(),
		mode:         "item",
		k:            k,
		start:        start,
		seeds:        e.itemSeeds(snap, itemID),
		exclude:      excludeSet(rated, itemID),
		rated:        rated,
		engaged:      engaged,
		prefs:        e.preferenceNodes(snap, rated),
		fallbackFrom: &item,
	}

	resp := e.run(ctx, snap, req)
	e.storeCache(key, resp)
	return resp, nil
}

// RecommendForProfile returns recommendations for a taste profile built
// from rated items. Ratings outside 1..5 are rejected.
func (e *Engine) RecommendForProfile(ctx context.Context, ratedItems []RatedItem, limit int) (*Response, error) {
	start := time.Now()
	e.requestCount.Add(1)

	k, err := e.clampLimit(limit)
	if err != nil {
		e.errorCount.Add(1)
		return nil, err
	}
	if len(ratedItems) == 0 {
		e.errorCount.Add(1)
		return nil, fmt.Errorf("%w: profile requires at least one rated item", ErrInvalidParameter)
	}
	for _, r := range ratedItems {
		if r.Rating < 1 || r.Rating > 5 {
			e.errorCount.Add(1)
			return nil, fmt.Errorf("%w: rating %d for item %d", ErrInvalidParameter, r.Rating, r.ID)
		}
	}
	snap := e.snap.Load()
	if snap == nil {
		e.errorCount.Add(1)
		return nil, ErrNoSnapshot
	}

	key := profileCacheKey(ratedItems, k)
	if resp := e.cachedResponse(key); resp != nil {
		return resp, nil
	}

	rated := make(map[int64]int, len(ratedItems))
	for _, r := range ratedItems {
		rated[r.ID] = r.Rating
	}
	req := request{
		id:           uuid.NewString(),
		mode:         "profile",
		k:            k,
		start:        start,
		seeds:        e.profileSeeds(snap, ratedItems, rated),
		exclude:      excludeSet(rated),
		rated:        rated,
		engaged:      engagedFromRatings(snap.items, rated),
		prefs:        e.preferenceNodes(snap, rated),
		fallbackFrom: topRatedItem(snap.items, ratedItems),
	}

	resp := e.run(ctx, snap, req)
	e.storeCache(key, resp)
	return resp, nil
}

// run executes expansion, ranking, reranking and explanation on one
// snapshot. It degrades instead of failing: no candidates produce a
// naive fallback, an expired deadline produces a partial ranking.
func (e *Engine) run(ctx context.Context, snap *snapshot, req request) *Response {
	logger := e.logger.With().
		Str("request_id", req.id).
		Str("mode", req.mode).
		Int("k", req.k).
		Logger()

	candidates, truncated := graph.Expand(ctx, snap.graph, req.seeds, graph.ExpandOptions{
		MaxHops:       e.config.Expansion.MaxHops,
		MinWeights:    e.config.Expansion.MinWeights,
		Decay:         e.config.Expansion.Decay,
		MaxCandidates: e.config.Expansion.MaxCandidates,
		Exclude:       req.exclude,
	})
	if len(candidates) == 0 {
		logger.Debug().Int("seeds", len(req.seeds)).Msg("no graph candidates, using naive fallback")
		return e.fallbackResponse(snap, req)
	}

	scored := e.rankCandidates(ctx, snap, req, candidates)

	if ctx.Err() != nil {
		truncated = true
	}

	selected := e.applyRerankers(ctx, scored, Selection{
		K:             req.k,
		Rated:         req.rated,
		EngagedSeries: req.engaged,
		Similarity:    snap.index.Similarity,
	})

	recs := e.buildRecommendations(snap, req, selected, candidates)

	resp := &Response{
		Recommendations: recs,
		TotalCandidates: len(candidates),
		Metadata:        e.metadata(req, snap, false),
	}
	if truncated {
		resp.Partial = true
		resp.Status = StatusPartial
	}
	if len(recs) == 0 {
		resp.Status = StatusEmpty
	}

	logger.Debug().
		Int("candidates", len(candidates)).
		Int("returned", len(recs)).
		Bool("partial", resp.Partial).
		Dur("elapsed", time.Since(req.start)).
		Msg("request served")
	return resp
}

// rankCandidates scores the expanded node set with personalized PageRank
// and returns candidates sorted by normalized score. When the deadline
// has already expired the raw expansion weights rank instead, so the
// caller can still return a best-effort list.
func (e *Engine) rankCandidates(ctx context.Context, snap *snapshot, req request, candidates map[int64]*graph.Candidate) []ScoredItem {
	var scores map[int64]float64
	if ctx.Err() == nil {
		nodes := make([]int64, 0, len(candidates)+len(req.seeds))
		for id := range candidates {
			nodes = append(nodes, id)
		}
		nodes = append(nodes, req.seeds...)

		scores = graph.PersonalizedPageRank(snap.graph, nodes, req.seeds, req.prefs, graph.PageRankOptions{
			Alpha:          e.config.PageRank.Alpha,
			TeleportWeight: e.config.PageRank.TeleportWeight,
			Iterations:     e.config.PageRank.Iterations,
		})
	} else {
		scores = make(map[int64]float64, len(candidates))
		for id, c := range candidates {
			scores[id] = c.Weight
		}
	}

	// Restrict normalization to the candidates so seed scores do not
	// compress the range.
	candScores := make(map[int64]float64, len(candidates))
	for id := range candidates {
		candScores[id] = scores[id]
	}
	normalized := graph.NormalizeScores(candScores)

	scored := make([]ScoredItem, 0, len(candidates))
	for id, c := range candidates {
		item, ok := snap.items[id]
		if !ok {
			continue
		}
		scored = append(scored, ScoredItem{
			Item:  item,
			Score: normalized[id],
			Candidate: Candidate{
				ItemID: c.ID,
				Weight: c.Weight,
				Path:   c.Path,
				Hops:   c.Hops,
			},
		})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Item.ID < scored[j].Item.ID
	})
	return scored
}

func (e *Engine) applyRerankers(ctx context.Context, items []ScoredItem, sel Selection) []ScoredItem {
	e.regMu.RLock()
	rerankers := e.rerankers
	e.regMu.RUnlock()

	if len(rerankers) == 0 {
		if len(items) > sel.K {
			items = items[:sel.K]
		}
		return items
	}
	for _, rr := range rerankers {
		items = rr.Rerank(ctx, items, sel)
	}
	return items
}

func (e *Engine) buildRecommendations(snap *snapshot, req request, selected []ScoredItem, candidates map[int64]*graph.Candidate) []Recommendation {
	e.regMu.RLock()
	explainer := e.explainer
	e.regMu.RUnlock()

	lookup := func(id int64) (Item, bool) {
		it, ok := snap.items[id]
		return it, ok
	}

	recs := make([]Recommendation, 0, len(selected))
	for _, s := range selected {
		rec := Recommendation{
			Item:    s.Item,
			Score:   s.Score,
			Reasons: []Reason{},
		}
		if c, ok := candidates[s.Item.ID]; ok {
			rec.PathWeight = c.Weight
			if explainer != nil {
				reasons := explainer.FromPath(snap.graph, c.Path, lookup)
				reasons = explainer.Synthesize(reasons, s.Item, req.engaged)
				if reasons != nil {
					rec.Reasons = reasons
				}
			}
		}
		recs = append(recs, rec)
	}
	return recs
}

// fallbackResponse produces naive same-author and same-series
// suggestions from catalog metadata when the graph has nothing for the
// source. Same-series scores above same-author.
func (e *Engine) fallbackResponse(snap *snapshot, req request) *Response {
	resp := &Response{
		Recommendations: []Recommendation{},
		Metadata:        e.metadata(req, snap, false),
		Status:          StatusEmpty,
	}
	src := req.fallbackFrom
	if src == nil {
		return resp
	}

	var recs []Recommendation
	for id, it := range snap.items {
		if id == src.ID {
			continue
		}
		if _, skip := req.exclude[id]; skip {
			continue
		}
		switch {
		case src.Series != "" && it.Series == src.Series:
			recs = append(recs, Recommendation{
				Item:  it,
				Score: fallbackSeriesWeight,
				Reasons: []Reason{{
					Kind:   ReasonSeries,
					Weight: fallbackSeriesWeight,
					Detail: fmt.Sprintf("part of %s", it.Series),
				}},
			})
		case src.Author != "" && it.Author == src.Author:
			recs = append(recs, Recommendation{
				Item:  it,
				Score: fallbackAuthorWeight,
				Reasons: []Reason{{
					Kind:   ReasonAuthor,
					Weight: fallbackAuthorWeight,
					Detail: fmt.Sprintf("also by %s", it.Author),
				}},
			})
		}
	}
	if len(recs) == 0 {
		return resp
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].Item.ID < recs[j].Item.ID
	})
	if len(recs) > req.k {
		recs = recs[:req.k]
	}

	resp.Recommendations = recs
	resp.Status = StatusFallback
	return resp
}

// NeighborhoodGraph extracts a bounded breadth-first neighborhood around
// an item for visualization. Depth and node count are clamped to the
// configured limits; zero values select the limits themselves.
func (e *Engine) NeighborhoodGraph(ctx context.Context, itemID int64, depth, maxNodes int) (*GraphView, error) {
	snap := e.snap.Load()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	if _, ok := snap.items[itemID]; !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownItem, itemID)
	}
	if depth < 0 || maxNodes < 0 {
		return nil, fmt.Errorf("%w: depth and max nodes must be non-negative", ErrInvalidParameter)
	}
	if depth == 0 || depth > e.config.Limits.MaxDepth {
		depth = e.config.Limits.MaxDepth
	}
	if maxNodes == 0 || maxNodes > e.config.Limits.MaxNodes {
		maxNodes = e.config.Limits.MaxNodes
	}

	visited := map[int64]struct{}{itemID: {}}
	frontier := []int64{itemID}
	view := &GraphView{
		Nodes: []GraphViewNode{viewNode(snap.items[itemID])},
		Edges: []GraphViewEdge{},
	}

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		select {
		case <-ctx.Done():
			pruneViewEdges(view, visited)
			view.Partial = true
			return view, ctx.Err()
		default:
		}

		var next []int64
		for _, id := range frontier {
			for _, n := range snap.graph.Neighbors(id) {
				if _, seen := visited[n.ID]; !seen {
					if len(visited) >= maxNodes {
						continue
					}
					visited[n.ID] = struct{}{}
					if it, ok := snap.items[n.ID]; ok {
						view.Nodes = append(view.Nodes, viewNode(it))
					}
					next = append(next, n.ID)
				}
				// Emit each pair once, from the lower endpoint.
				if id < n.ID {
					for _, tw := range n.Edges {
						view.Edges = append(view.Edges, GraphViewEdge{
							Source: id,
							Target: n.ID,
							Type:   tw.Type.String(),
							Weight: tw.Weight,
						})
					}
				}
			}
		}
		frontier = next
	}

	pruneViewEdges(view, visited)
	return view, nil
}

// pruneViewEdges drops edges whose far endpoint fell outside the node
// budget.
func pruneViewEdges(view *GraphView, visited map[int64]struct{}) {
	kept := view.Edges[:0]
	for _, ed := range view.Edges {
		_, okS := visited[ed.Source]
		_, okT := visited[ed.Target]
		if okS && okT {
			kept = append(kept, ed)
		}
	}
	view.Edges = kept
}

func viewNode(it Item) GraphViewNode {
	return GraphViewNode{ID: it.ID, Title: it.Title, Author: it.Author, Rating: it.Rating}
}

// SimilarItem is one direct graph neighbor of an item: its fused pair
// weight plus the typed signal evidence behind it.
type SimilarItem struct {
	Item    Item                `json:"item"`
	Weight  float64             `json:"weight"`
	Signals []graph.TypedWeight `json:"signals"`
}

// Similar returns the item's direct neighbors ordered by fused weight
// descending, without expansion or reranking.
func (e *Engine) Similar(itemID int64, limit int) ([]SimilarItem, error) {
	snap := e.snap.Load()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	if _, ok := snap.items[itemID]; !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownItem, itemID)
	}
	limit, err := e.clampLimit(limit)
	if err != nil {
		return nil, err
	}

	neighbors := snap.graph.Neighbors(itemID)
	similar := make([]SimilarItem, 0, limit)
	for _, n := range neighbors {
		if len(similar) == limit {
			break
		}
		it, ok := snap.items[n.ID]
		if !ok {
			continue
		}
		similar = append(similar, SimilarItem{Item: it, Weight: n.Weight, Signals: n.Edges})
	}
	return similar, nil
}

// RebuildGraph fetches the catalog, fuses pairwise signals and swaps in
// a fresh snapshot. Requests in flight keep the snapshot they started
// with. Only one rebuild runs at a time.
func (e *Engine) RebuildGraph(ctx context.Context) (*RebuildStats, error) {
	e.regMu.RLock()
	provider := e.provider
	userSignal := e.userSignal
	e.regMu.RUnlock()
	if provider == nil {
		return nil, fmt.Errorf("no data provider configured")
	}

	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()

	start := time.Now()
	items, err := provider.Items(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading items: %w", err)
	}
	embeddings, err := provider.Embeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading embeddings: %w", err)
	}

	snap, stats := e.buildSnapshot(ctx, items, embeddings, userSignal)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rebuild aborted: %w", err)
	}

	stats.Duration = time.Since(start)
	stats.DurationMS = stats.Duration.Milliseconds()

	e.snap.Store(snap)
	e.lastRebuild.Store(stats)
	e.clearCache()

	e.logger.Info().
		Int("nodes", stats.Nodes).
		Int("pairs", stats.Pairs).
		Int("edges", stats.Edges).
		Dur("duration", stats.Duration).
		Msg("graph rebuilt")
	return stats, nil
}

// buildSnapshot runs the pairwise fusion pass. Quadratic in catalog
// size, which is fine for personal-library scale.
func (e *Engine) buildSnapshot(ctx context.Context, items []Item, embeddings map[int64][]float64, userSignal UserSignal) (*snapshot, *RebuildStats) {
	idx := vector.NewIndex()
	byID := make(map[int64]Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
		if v, ok := embeddings[it.ID]; ok {
			idx.Upsert(it.ID, v)
		}
	}

	builder := graph.NewBuilder()
	for i := 0; i < len(items); i++ {
		if ctx.Err() != nil {
			break
		}
		for j := i + 1; j < len(items); j++ {
			a, c := items[i], items[j]
			signals := pairSignals(a, c, idx, userSignal)
			if len(signals) == 0 {
				continue
			}
			fused := graph.Fuse(signals)
			if fused <= 0 {
				continue
			}
			builder.AddPair(a.ID, c.ID, fused, signals)
		}
	}

	g := builder.Build()
	return &snapshot{graph: g, index: idx, items: byID}, &RebuildStats{
		Nodes: g.NodeCount(),
		Edges: g.EdgeCount(),
		Pairs: g.PairCount(),
	}
}

// pairSignals computes the typed signals present for one item pair.
func pairSignals(a, c Item, idx *vector.Index, userSignal UserSignal) []graph.TypedWeight {
	var signals []graph.TypedWeight

	if sim := idx.Similarity(a.ID, c.ID); sim >= contentSignalFloor {
		signals = append(signals, graph.TypedWeight{Type: graph.EdgeContent, Weight: sim})
	}
	if a.Author != "" && a.Author == c.Author {
		signals = append(signals, graph.TypedWeight{Type: graph.EdgeAuthor, Weight: graph.AuthorEdgeWeight})
	}
	if a.Series != "" && a.Series == c.Series {
		signals = append(signals, graph.TypedWeight{
			Type:   graph.EdgeSeries,
			Weight: graph.SeriesSignal(a.SeriesIndex, c.SeriesIndex),
		})
	}
	if j := graph.TagJaccard(a.Tags, c.Tags); j > graph.TagOverlapThreshold {
		signals = append(signals, graph.TypedWeight{Type: graph.EdgeTag, Weight: j})
	}
	if userSignal != nil {
		if w, ok := userSignal(a.ID, c.ID); ok && w > 0 && w <= 1 {
			signals = append(signals, graph.TypedWeight{Type: graph.EdgeUser, Weight: w})
		}
	}
	return signals
}

// LoadSnapshot installs a snapshot from a pre-computed edge set, e.g.
// edges persisted by a previous rebuild. Typed edges are re-fused per
// pair so traversal weights match what a fresh rebuild would produce.
func (e *Engine) LoadSnapshot(items []Item, embeddings map[int64][]float64, edges []graph.Edge) *RebuildStats {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()

	start := time.Now()
	idx := vector.NewIndex()
	byID := make(map[int64]Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
		if v, ok := embeddings[it.ID]; ok {
			idx.Upsert(it.ID, v)
		}
	}

	grouped := make(map[[2]int64][]graph.TypedWeight)
	for _, ed := range edges {
		if ed.Source == ed.Target {
			continue
		}
		key := [2]int64{ed.Source, ed.Target}
		if key[0] > key[1] {
			key[0], key[1] = key[1], key[0]
		}
		grouped[key] = append(grouped[key], graph.TypedWeight{Type: ed.Type, Weight: ed.Weight})
	}

	builder := graph.NewBuilder()
	for key, signals := range grouped {
		if fused := graph.Fuse(signals); fused > 0 {
			builder.AddPair(key[0], key[1], fused, signals)
		}
	}
	g := builder.Build()

	stats := &RebuildStats{
		Nodes:    g.NodeCount(),
		Edges:    g.EdgeCount(),
		Pairs:    g.PairCount(),
		Duration: time.Since(start),
	}
	stats.DurationMS = stats.Duration.Milliseconds()

	e.snap.Store(&snapshot{graph: g, index: idx, items: byID})
	e.lastRebuild.Store(stats)
	e.clearCache()

	e.logger.Info().
		Int("nodes", stats.Nodes).
		Int("edges", stats.Edges).
		Msg("graph loaded from stored edges")
	return stats
}

// Edges returns the active snapshot's canonical edge set for
// persistence, or nil when no snapshot exists.
func (e *Engine) Edges() []graph.Edge {
	snap := e.snap.Load()
	if snap == nil {
		return nil
	}
	return snap.graph.Edges()
}

// Item returns catalog metadata from the active snapshot.
func (e *Engine) Item(id int64) (Item, bool) {
	snap := e.snap.Load()
	if snap == nil {
		return Item{}, false
	}
	it, ok := snap.items[id]
	return it, ok
}

// Metrics is a point-in-time view of engine counters.
type Metrics struct {
	Requests    int64     `json:"requests"`
	CacheHits   int64     `json:"cache_hits"`
	CacheMisses int64     `json:"cache_misses"`
	Errors      int64     `json:"errors"`
	GraphNodes  int       `json:"graph_nodes"`
	GraphEdges  int       `json:"graph_edges"`
	GraphAge    float64   `json:"graph_age_seconds"`
	BuiltAt     time.Time `json:"graph_built_at"`
}

// GetMetrics returns current engine counters and snapshot stats.
func (e *Engine) GetMetrics() Metrics {
	m := Metrics{
		Requests:    e.requestCount.Load(),
		CacheHits:   e.cacheHits.Load(),
		CacheMisses: e.cacheMisses.Load(),
		Errors:      e.errorCount.Load(),
	}
	if snap := e.snap.Load(); snap != nil {
		m.GraphNodes = snap.graph.NodeCount()
		m.GraphEdges = snap.graph.EdgeCount()
		m.BuiltAt = snap.graph.BuiltAt()
		m.GraphAge = time.Since(snap.graph.BuiltAt()).Seconds()
	}
	return m
}

// ---- seeds and request context ----

// itemSeeds produces the seed set for item mode: the item itself plus
// its nearest embedding neighbors above the similarity floor.
func (e *Engine) itemSeeds(snap *snapshot, itemID int64) []int64 {
	seeds := []int64{itemID}
	for _, m := range snap.index.KNNTo(itemID, e.config.Seeds.Count, nil) {
		if m.Similarity < e.config.Seeds.MinSimilarity {
			break
		}
		seeds = append(seeds, m.ID)
	}
	return seeds
}

// profileSeeds produces the seed set for profile mode: nearest neighbors
// of the rating-weighted average embedding, falling back to the rated
// items themselves when no embeddings exist.
func (e *Engine) profileSeeds(snap *snapshot, ratedItems []RatedItem, rated map[int64]int) []int64 {
	ids := make([]int64, 0, len(ratedItems))
	weights := make([]float64, 0, len(ratedItems))
	for _, r := range ratedItems {
		if r.Rating < e.config.Seeds.MinProfileRating {
			continue
		}
		ids = append(ids, r.ID)
		weights = append(weights, float64(r.Rating))
	}
	if len(ids) == 0 {
		// Nothing highly rated; profile from everything rated.
		for _, r := range ratedItems {
			ids = append(ids, r.ID)
			weights = append(weights, float64(r.Rating))
		}
	}

	if profile := snap.index.AverageVector(ids, weights); profile != nil {
		ex := make(map[int64]struct{}, len(rated))
		for id := range rated {
			ex[id] = struct{}{}
		}
		var seeds []int64
		for _, m := range snap.index.KNN(profile, e.config.Seeds.Count, ex) {
			if m.Similarity < e.config.Seeds.MinSimilarity {
				break
			}
			seeds = append(seeds, m.ID)
		}
		if len(seeds) > 0 {
			return seeds
		}
	}

	// Metadata-only catalog: expand directly from the rated items.
	var seeds []int64
	for _, id := range ids {
		if snap.graph.Has(id) {
			seeds = append(seeds, id)
		}
		if len(seeds) >= e.config.Seeds.Count {
			break
		}
	}
	return seeds
}

// preferenceNodes selects the highly rated items used as PageRank
// teleport targets.
func (e *Engine) preferenceNodes(snap *snapshot, rated map[int64]int) []int64 {
	var prefs []int64
	for id, rating := range rated {
		if rating >= e.config.Seeds.MinProfileRating && snap.graph.Has(id) {
			prefs = append(prefs, id)
		}
	}
	sort.Slice(prefs, func(i, j int) bool { return prefs[i] < prefs[j] })
	return prefs
}

// ownerContext derives the library owner's rated set and series
// engagement from catalog ratings.
func ownerContext(items map[int64]Item) (map[int64]int, map[string]float64) {
	rated := make(map[int64]int)
	engaged := make(map[string]float64)
	for id, it := range items {
		if !it.Rated() {
			continue
		}
		rated[id] = it.Rating
		if it.Series != "" && it.SeriesIndex > engaged[it.Series] {
			engaged[it.Series] = it.SeriesIndex
		}
	}
	return rated, engaged
}

// engagedFromRatings derives series engagement from an explicit rating
// list instead of catalog ratings.
func engagedFromRatings(items map[int64]Item, rated map[int64]int) map[string]float64 {
	engaged := make(map[string]float64)
	for id := range rated {
		it, ok := items[id]
		if !ok || it.Series == "" {
			continue
		}
		if it.SeriesIndex > engaged[it.Series] {
			engaged[it.Series] = it.SeriesIndex
		}
	}
	return engaged
}

func excludeSet(rated map[int64]int, extra ...int64) map[int64]struct{} {
	out := make(map[int64]struct{}, len(rated)+len(extra))
	for id := range rated {
		out[id] = struct{}{}
	}
	for _, id := range extra {
		out[id] = struct{}{}
	}
	return out
}

// topRatedItem picks the highest-rated profile item present in the
// catalog, for the naive fallback. Ties break on lower ID.
func topRatedItem(items map[int64]Item, ratedItems []RatedItem) *Item {
	var best *Item
	bestRating := 0
	for _, r := range ratedItems {
		it, ok := items[r.ID]
		if !ok {
			continue
		}
		if r.Rating > bestRating || (r.Rating == bestRating && best != nil && it.ID < best.ID) {
			cp := it
			best = &cp
			bestRating = r.Rating
		}
	}
	return best
}

func (e *Engine) clampLimit(limit int) (int, error) {
	switch {
	case limit == 0:
		return e.config.Limits.DefaultK, nil
	case limit < 0:
		return 0, fmt.Errorf("%w: limit must be non-negative, got %d", ErrInvalidParameter, limit)
	case limit > e.config.Limits.MaxK:
		return 0, fmt.Errorf("%w: limit %d exceeds maximum %d", ErrInvalidParameter, limit, e.config.Limits.MaxK)
	default:
		return limit, nil
	}
}

func (e *Engine) metadata(req request, snap *snapshot, cacheHit bool) ResponseMetadata {
	return ResponseMetadata{
		RequestID:    req.id,
		Mode:         req.mode,
		Seeds:        len(req.seeds),
		LatencyMS:    time.Since(req.start).Milliseconds(),
		CacheHit:     cacheHit,
		GraphBuiltAt: snap.graph.BuiltAt(),
		Timestamp:    time.Now(),
	}
}

// ---- response cache ----

func cacheKey(mode string, id int64, k int) string {
	return mode + ":" + strconv.FormatInt(id, 10) + ":" + strconv.Itoa(k)
}

func profileCacheKey(rated []RatedItem, k int) string {
	sorted := append([]RatedItem(nil), rated...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var sb strings.Builder
	sb.WriteString("profile:")
	for _, r := range sorted {
		sb.WriteString(strconv.FormatInt(r.ID, 10))
		sb.WriteByte('=')
		sb.WriteString(strconv.Itoa(r.Rating))
		sb.WriteByte(',')
	}
	sb.WriteString(strconv.Itoa(k))
	return sb.String()
}

func (e *Engine) cachedResponse(key string) *Response {
	if !e.config.Cache.Enabled {
		return nil
	}
	e.cacheMu.Lock()
	entry, ok := e.cache[key]
	e.cacheMu.Unlock()
	if !ok || time.Now().After(entry.expiresAt) {
		e.cacheMisses.Add(1)
		return nil
	}
	e.cacheHits.Add(1)

	cp := *entry.response
	cp.Metadata.CacheHit = true
	return &cp
}

func (e *Engine) storeCache(key string, resp *Response) {
	if !e.config.Cache.Enabled || resp == nil {
		return
	}
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()

	if len(e.cache) >= e.config.Cache.MaxEntries {
		e.evictLocked()
	}
	e.cache[key] = cacheEntry{
		response:  resp,
		expiresAt: time.Now().Add(e.config.Cache.TTL),
	}
}

// evictLocked drops expired entries, then the oldest entry if the cache
// is still full. Caller holds cacheMu.
func (e *Engine) evictLocked() {
	now := time.Now()
	for k, entry := range e.cache {
		if now.After(entry.expiresAt) {
			delete(e.cache, k)
		}
	}
	if len(e.cache) < e.config.Cache.MaxEntries {
		return
	}
	var oldestKey string
	var oldest time.Time
	for k, entry := range e.cache {
		if oldestKey == "" || entry.expiresAt.Before(oldest) {
			oldestKey = k
			oldest = entry.expiresAt
		}
	}
	delete(e.cache, oldestKey)
}

func (e *Engine) clearCache() {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	e.cache = make(map[string]cacheEntry)
}
