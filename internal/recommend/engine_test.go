// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package recommend_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/bibliograph/internal/recommend"
	"github.com/tomtom215/bibliograph/internal/recommend/explain"
	"github.com/tomtom215/bibliograph/internal/recommend/graph"
	"github.com/tomtom215/bibliograph/internal/recommend/reranking"
)

func newTestEngine(t *testing.T, cfg *recommend.Config) *recommend.Engine {
	t.Helper()
	e, err := recommend.NewEngine(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	e.RegisterReranker(reranking.NewMMR(e.Config().Diversity))
	e.SetExplainer(explain.NewBuilder(e.Config().Expansion.Decay))
	return e
}

func twoHopConfig() *recommend.Config {
	cfg := recommend.DefaultConfig()
	cfg.Expansion.MaxHops = 2
	return cfg
}

// Five items; A relates to B by content, to C by author, and C leads to
// D by series. E is disconnected.
func fiveItems() []recommend.Item {
	return []recommend.Item{
		{ID: 1, Title: "A", Author: "le guin"},
		{ID: 2, Title: "B", Author: "jemisin"},
		{ID: 3, Title: "C", Author: "le guin", Series: "earthsea", SeriesIndex: 1},
		{ID: 4, Title: "D", Author: "wolfe", Series: "earthsea", SeriesIndex: 2},
		{ID: 5, Title: "E", Author: "banks"},
	}
}

func fiveItemEdges() []graph.Edge {
	return []graph.Edge{
		{Source: 1, Target: 2, Type: graph.EdgeContent, Weight: 0.9},
		{Source: 1, Target: 3, Type: graph.EdgeAuthor, Weight: 0.85},
		{Source: 3, Target: 4, Type: graph.EdgeSeries, Weight: 0.95},
	}
}

func TestRecommendForEndToEnd(t *testing.T) {
	e := newTestEngine(t, twoHopConfig())
	e.LoadSnapshot(fiveItems(), nil, fiveItemEdges())

	resp, err := e.RecommendFor(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("RecommendFor: %v", err)
	}
	if resp.Status != "" || resp.Partial {
		t.Errorf("status = %q, partial = %v, want normal response", resp.Status, resp.Partial)
	}
	if resp.TotalCandidates != 3 {
		t.Errorf("TotalCandidates = %d, want 3", resp.TotalCandidates)
	}

	byID := make(map[int64]recommend.Recommendation)
	for _, r := range resp.Recommendations {
		byID[r.Item.ID] = r
	}
	wantWeights := map[int64]float64{
		2: 0.9,
		3: 0.85,
		4: 0.85 * 0.95 * 0.8,
	}
	for id, want := range wantWeights {
		rec, ok := byID[id]
		if !ok {
			t.Fatalf("item %d missing from recommendations", id)
		}
		if math.Abs(rec.PathWeight-want) > 1e-12 {
			t.Errorf("item %d path weight = %v, want %v", id, rec.PathWeight, want)
		}
	}
	if _, ok := byID[5]; ok {
		t.Error("disconnected item recommended")
	}
	if _, ok := byID[1]; ok {
		t.Error("source item recommended to itself")
	}

	// D was reached through the author then the series edge, in that
	// contribution order.
	d := byID[4]
	if len(d.Reasons) < 2 {
		t.Fatalf("item 4 reasons = %+v, want author and series", d.Reasons)
	}
	if d.Reasons[0].Kind != recommend.ReasonAuthor {
		t.Errorf("item 4 first reason = %v, want author", d.Reasons[0].Kind)
	}
	if d.Reasons[1].Kind != recommend.ReasonSeries {
		t.Errorf("item 4 second reason = %v, want series", d.Reasons[1].Kind)
	}
}

func TestRecommendForErrors(t *testing.T) {
	e := newTestEngine(t, twoHopConfig())

	if _, err := e.RecommendFor(context.Background(), 1, 10); !errors.Is(err, recommend.ErrNoSnapshot) {
		t.Errorf("without snapshot err = %v, want ErrNoSnapshot", err)
	}

	e.LoadSnapshot(fiveItems(), nil, fiveItemEdges())

	if _, err := e.RecommendFor(context.Background(), 999, 10); !errors.Is(err, recommend.ErrUnknownItem) {
		t.Errorf("unknown item err = %v, want ErrUnknownItem", err)
	}
	if _, err := e.RecommendFor(context.Background(), 1, -1); !errors.Is(err, recommend.ErrInvalidParameter) {
		t.Errorf("negative limit err = %v, want ErrInvalidParameter", err)
	}
	if _, err := e.RecommendFor(context.Background(), 1, 10_000); !errors.Is(err, recommend.ErrInvalidParameter) {
		t.Errorf("oversized limit err = %v, want ErrInvalidParameter", err)
	}
}

func TestRecommendForDefaultLimit(t *testing.T) {
	e := newTestEngine(t, twoHopConfig())
	e.LoadSnapshot(fiveItems(), nil, fiveItemEdges())

	resp, err := e.RecommendFor(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("RecommendFor with zero limit: %v", err)
	}
	if len(resp.Recommendations) == 0 {
		t.Error("zero limit returned nothing, want configured default")
	}
}

func TestRecommendForFallback(t *testing.T) {
	// No edges at all: the engine degrades to metadata suggestions.
	items := []recommend.Item{
		{ID: 1, Title: "A", Author: "le guin", Series: "earthsea", SeriesIndex: 1},
		{ID: 2, Title: "B", Author: "le guin", Series: "earthsea", SeriesIndex: 2},
		{ID: 3, Title: "C", Author: "le guin"},
		{ID: 4, Title: "D", Author: "banks"},
	}
	e := newTestEngine(t, twoHopConfig())
	e.LoadSnapshot(items, nil, nil)

	resp, err := e.RecommendFor(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("RecommendFor: %v", err)
	}
	if resp.Status != recommend.StatusFallback {
		t.Fatalf("status = %q, want fallback", resp.Status)
	}
	if len(resp.Recommendations) != 2 {
		t.Fatalf("got %d fallback recommendations, want 2", len(resp.Recommendations))
	}
	// Same series outranks same author.
	if resp.Recommendations[0].Item.ID != 2 {
		t.Errorf("first fallback = item %d, want same-series item 2", resp.Recommendations[0].Item.ID)
	}
	if resp.Recommendations[1].Item.ID != 3 {
		t.Errorf("second fallback = item %d, want same-author item 3", resp.Recommendations[1].Item.ID)
	}
	if resp.Recommendations[0].Reasons[0].Kind != recommend.ReasonSeries {
		t.Errorf("series fallback reason = %v", resp.Recommendations[0].Reasons[0].Kind)
	}
}

func TestRecommendForExcludesRated(t *testing.T) {
	items := fiveItems()
	items[1].Rating = 5 // B already rated by the owner
	e := newTestEngine(t, twoHopConfig())
	e.LoadSnapshot(items, nil, fiveItemEdges())

	resp, err := e.RecommendFor(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("RecommendFor: %v", err)
	}
	for _, r := range resp.Recommendations {
		if r.Item.ID == 2 {
			t.Error("rated item recommended")
		}
	}
}

func TestRecommendForCache(t *testing.T) {
	e := newTestEngine(t, twoHopConfig())
	e.LoadSnapshot(fiveItems(), nil, fiveItemEdges())

	first, err := e.RecommendFor(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	if first.Metadata.CacheHit {
		t.Error("first request reported a cache hit")
	}
	second, err := e.RecommendFor(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if !second.Metadata.CacheHit {
		t.Error("second request missed the cache")
	}
	if len(second.Recommendations) != len(first.Recommendations) {
		t.Errorf("cached response differs: %d vs %d items",
			len(second.Recommendations), len(first.Recommendations))
	}
}

func TestRecommendForCacheClearedByReload(t *testing.T) {
	e := newTestEngine(t, twoHopConfig())
	e.LoadSnapshot(fiveItems(), nil, fiveItemEdges())

	if _, err := e.RecommendFor(context.Background(), 1, 10); err != nil {
		t.Fatalf("warm-up request: %v", err)
	}
	e.LoadSnapshot(fiveItems(), nil, fiveItemEdges())

	resp, err := e.RecommendFor(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("post-reload request: %v", err)
	}
	if resp.Metadata.CacheHit {
		t.Error("stale cache served after snapshot reload")
	}
}

func TestRecommendForProfile(t *testing.T) {
	e := newTestEngine(t, twoHopConfig())
	e.LoadSnapshot(fiveItems(), nil, fiveItemEdges())

	resp, err := e.RecommendForProfile(context.Background(), []recommend.RatedItem{
		{ID: 1, Rating: 5},
	}, 10)
	if err != nil {
		t.Fatalf("RecommendForProfile: %v", err)
	}
	byID := make(map[int64]bool)
	for _, r := range resp.Recommendations {
		byID[r.Item.ID] = true
	}
	if byID[1] {
		t.Error("profile item recommended back")
	}
	if !byID[2] || !byID[3] {
		t.Errorf("profile expansion missed direct neighbors: %v", byID)
	}
	if resp.Metadata.Mode != "profile" {
		t.Errorf("mode = %q, want profile", resp.Metadata.Mode)
	}
}

func TestRecommendForProfileValidation(t *testing.T) {
	e := newTestEngine(t, twoHopConfig())
	e.LoadSnapshot(fiveItems(), nil, fiveItemEdges())

	if _, err := e.RecommendForProfile(context.Background(), nil, 10); !errors.Is(err, recommend.ErrInvalidParameter) {
		t.Errorf("empty profile err = %v, want ErrInvalidParameter", err)
	}
	bad := []recommend.RatedItem{{ID: 1, Rating: 6}}
	if _, err := e.RecommendForProfile(context.Background(), bad, 10); !errors.Is(err, recommend.ErrInvalidParameter) {
		t.Errorf("out-of-range rating err = %v, want ErrInvalidParameter", err)
	}
}

type staticProvider struct {
	items      []recommend.Item
	embeddings map[int64][]float64
}

func (p *staticProvider) Items(context.Context) ([]recommend.Item, error) {
	return p.items, nil
}

func (p *staticProvider) Embeddings(context.Context) (map[int64][]float64, error) {
	return p.embeddings, nil
}

func TestRebuildGraphFromMetadata(t *testing.T) {
	e := newTestEngine(t, twoHopConfig())
	e.SetDataProvider(&staticProvider{
		items: []recommend.Item{
			{ID: 1, Title: "A", Author: "le guin", Series: "earthsea", SeriesIndex: 1, Tags: []string{"fantasy"}},
			{ID: 2, Title: "B", Author: "le guin", Series: "earthsea", SeriesIndex: 2, Tags: []string{"fantasy"}},
			{ID: 3, Title: "C", Author: "banks", Tags: []string{"scifi"}},
		},
		embeddings: map[int64][]float64{
			1: {1, 0},
			2: {0.9, 0.1},
			3: {0, 1},
		},
	})

	stats, err := e.RebuildGraph(context.Background())
	if err != nil {
		t.Fatalf("RebuildGraph: %v", err)
	}
	if stats.Nodes == 0 || stats.Pairs == 0 {
		t.Fatalf("stats = %+v, want a non-empty graph", stats)
	}
	if !e.Ready() {
		t.Fatal("engine not ready after rebuild")
	}

	// Adjacent same-series, same-author, tag and content signals all
	// bind 1 and 2 tightly; a request for 1 must surface 2 first.
	resp, err := e.RecommendFor(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("RecommendFor after rebuild: %v", err)
	}
	if len(resp.Recommendations) == 0 || resp.Recommendations[0].Item.ID != 2 {
		t.Fatalf("recommendations after rebuild = %+v, want item 2 first", resp.Recommendations)
	}
}

func TestRebuildGraphWithoutProvider(t *testing.T) {
	e := newTestEngine(t, twoHopConfig())
	if _, err := e.RebuildGraph(context.Background()); err == nil {
		t.Error("rebuild without provider succeeded")
	}
}

func TestRebuildGraphTagOverlapGate(t *testing.T) {
	tests := []struct {
		name      string
		tagsA     []string
		tagsB     []string
		wantPairs int
	}{
		// One shared tag out of eleven distinct is Jaccard 1/11,
		// far below the qualifying threshold. No other signal
		// exists, so no edge may form.
		{
			"weak overlap produces no edge",
			[]string{"shared", "a1", "a2", "a3", "a4", "a5"},
			[]string{"shared", "b1", "b2", "b3", "b4", "b5"},
			0,
		},
		// Jaccard exactly at the threshold still does not qualify.
		{
			"threshold is exclusive",
			[]string{"x", "a1", "a2", "a3"},
			[]string{"x", "b1"},
			0,
		},
		// Two of four shared is Jaccard 0.5 and qualifies.
		{
			"strong overlap qualifies",
			[]string{"fantasy", "dragons", "quest"},
			[]string{"fantasy", "dragons", "heist"},
			1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, twoHopConfig())
			e.SetDataProvider(&staticProvider{
				items: []recommend.Item{
					{ID: 1, Title: "A", Tags: tt.tagsA},
					{ID: 2, Title: "B", Tags: tt.tagsB},
				},
			})

			stats, err := e.RebuildGraph(context.Background())
			if err != nil {
				t.Fatalf("RebuildGraph: %v", err)
			}
			if stats.Pairs != tt.wantPairs {
				t.Errorf("pairs = %d, want %d", stats.Pairs, tt.wantPairs)
			}
			if tt.wantPairs == 0 && stats.Edges != 0 {
				t.Errorf("edges = %d, want 0", stats.Edges)
			}
		})
	}
}

func TestRebuildGraphUserSignal(t *testing.T) {
	e := newTestEngine(t, twoHopConfig())
	e.SetDataProvider(&staticProvider{
		items: []recommend.Item{
			{ID: 1, Title: "A"},
			{ID: 2, Title: "B"},
		},
	})
	e.SetUserSignal(func(a, b int64) (float64, bool) {
		return 0.8, true
	})

	stats, err := e.RebuildGraph(context.Background())
	if err != nil {
		t.Fatalf("RebuildGraph: %v", err)
	}
	if stats.Pairs != 1 {
		t.Fatalf("pairs = %d, want 1 from the collaborative signal", stats.Pairs)
	}

	resp, err := e.RecommendFor(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("RecommendFor: %v", err)
	}
	if len(resp.Recommendations) != 1 || resp.Recommendations[0].Item.ID != 2 {
		t.Fatalf("recommendations = %+v, want item 2", resp.Recommendations)
	}
	reasons := resp.Recommendations[0].Reasons
	if len(reasons) != 1 || reasons[0].Kind != recommend.ReasonReadersAlsoLiked {
		t.Errorf("reasons = %+v, want readers-also-liked", reasons)
	}
}

func TestNeighborhoodGraph(t *testing.T) {
	e := newTestEngine(t, twoHopConfig())
	e.LoadSnapshot(fiveItems(), nil, fiveItemEdges())

	view, err := e.NeighborhoodGraph(context.Background(), 1, 1, 0)
	if err != nil {
		t.Fatalf("NeighborhoodGraph: %v", err)
	}
	if len(view.Nodes) != 3 {
		t.Errorf("depth-1 nodes = %d, want 3 (source plus two neighbors)", len(view.Nodes))
	}
	if len(view.Edges) != 2 {
		t.Errorf("depth-1 edges = %d, want 2", len(view.Edges))
	}

	view, err = e.NeighborhoodGraph(context.Background(), 1, 2, 0)
	if err != nil {
		t.Fatalf("NeighborhoodGraph depth 2: %v", err)
	}
	if len(view.Nodes) != 4 {
		t.Errorf("depth-2 nodes = %d, want 4", len(view.Nodes))
	}

	if _, err := e.NeighborhoodGraph(context.Background(), 999, 1, 0); !errors.Is(err, recommend.ErrUnknownItem) {
		t.Errorf("unknown item err = %v, want ErrUnknownItem", err)
	}
}

func TestNeighborhoodGraphPartialOnDeadline(t *testing.T) {
	e := newTestEngine(t, twoHopConfig())
	e.LoadSnapshot(fiveItems(), nil, fiveItemEdges())

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	view, err := e.NeighborhoodGraph(ctx, 1, 2, 0)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
	if view == nil {
		t.Fatal("view = nil, want the hops explored so far")
	}
	if !view.Partial {
		t.Error("view.Partial = false, want true")
	}
	if len(view.Nodes) == 0 || view.Nodes[0].ID != 1 {
		t.Errorf("nodes = %+v, want at least the center item", view.Nodes)
	}
	for _, ed := range view.Edges {
		t.Errorf("edge %+v present before any hop completed", ed)
	}
}

func TestNeighborhoodGraphNodeBudget(t *testing.T) {
	e := newTestEngine(t, twoHopConfig())
	e.LoadSnapshot(fiveItems(), nil, fiveItemEdges())

	view, err := e.NeighborhoodGraph(context.Background(), 1, 2, 2)
	if err != nil {
		t.Fatalf("NeighborhoodGraph: %v", err)
	}
	if len(view.Nodes) > 2 {
		t.Errorf("nodes = %d, exceeds budget of 2", len(view.Nodes))
	}
	for _, ed := range view.Edges {
		found := 0
		for _, n := range view.Nodes {
			if n.ID == ed.Source || n.ID == ed.Target {
				found++
			}
		}
		if found != 2 {
			t.Errorf("edge %+v references a node outside the view", ed)
		}
	}
}

func TestGetMetrics(t *testing.T) {
	e := newTestEngine(t, twoHopConfig())
	e.LoadSnapshot(fiveItems(), nil, fiveItemEdges())

	if _, err := e.RecommendFor(context.Background(), 1, 10); err != nil {
		t.Fatalf("RecommendFor: %v", err)
	}
	if _, err := e.RecommendFor(context.Background(), 999, 10); err == nil {
		t.Fatal("unknown item accepted")
	}

	m := e.GetMetrics()
	if m.Requests != 2 {
		t.Errorf("requests = %d, want 2", m.Requests)
	}
	if m.Errors != 1 {
		t.Errorf("errors = %d, want 1", m.Errors)
	}
	if m.GraphNodes == 0 {
		t.Error("graph nodes not reported")
	}
}
