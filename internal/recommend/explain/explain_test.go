// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package explain

import (
	"testing"

	"github.com/tomtom215/bibliograph/internal/recommend"
	"github.com/tomtom215/bibliograph/internal/recommend/graph"
)

func lookupFrom(items map[int64]recommend.Item) recommend.ItemLookup {
	return func(id int64) (recommend.Item, bool) {
		it, ok := items[id]
		return it, ok
	}
}

func TestFromPathAuthorThenSeries(t *testing.T) {
	// Two-hop path: author edge at hop 0, series edge at hop 1. With
	// decay 0.8 the author edge contributes 0.85 against the series
	// edge's 0.95*0.8, so the author reason comes first.
	b := graph.NewBuilder()
	b.AddEdge(1, 3, graph.EdgeAuthor, 0.85)
	b.AddEdge(3, 4, graph.EdgeSeries, 0.95)
	g := b.Build()

	items := map[int64]recommend.Item{
		1: {ID: 1, Author: "le guin"},
		3: {ID: 3, Author: "le guin", Series: "earthsea", SeriesIndex: 1},
		4: {ID: 4, Author: "le guin", Series: "earthsea", SeriesIndex: 2},
	}

	reasons := NewBuilder(0.8).FromPath(g, []int64{1, 3, 4}, lookupFrom(items))
	if len(reasons) != 2 {
		t.Fatalf("got %d reasons, want 2: %+v", len(reasons), reasons)
	}
	if reasons[0].Kind != recommend.ReasonAuthor {
		t.Errorf("first reason = %v, want author", reasons[0].Kind)
	}
	if reasons[1].Kind != recommend.ReasonSeries {
		t.Errorf("second reason = %v, want series", reasons[1].Kind)
	}
	if reasons[0].Detail != "also by le guin" {
		t.Errorf("author detail = %q", reasons[0].Detail)
	}
	if reasons[1].Detail != "book 2 of earthsea" {
		t.Errorf("series detail = %q", reasons[1].Detail)
	}
}

func TestFromPathContentThreshold(t *testing.T) {
	tests := []struct {
		name   string
		weight float64
		want   int
	}{
		{"above threshold", 0.75, 1},
		{"at threshold", 0.70, 1},
		{"below threshold", 0.69, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := graph.NewBuilder()
			b.AddEdge(1, 2, graph.EdgeContent, tt.weight)
			g := b.Build()

			reasons := NewBuilder(0.8).FromPath(g, []int64{1, 2}, nil)
			if len(reasons) != tt.want {
				t.Errorf("got %d reasons, want %d", len(reasons), tt.want)
			}
		})
	}
}

func TestFromPathMultiSignalEdge(t *testing.T) {
	b := graph.NewBuilder()
	b.AddPair(1, 2, 0.88, []graph.TypedWeight{
		{Type: graph.EdgeContent, Weight: 0.9},
		{Type: graph.EdgeAuthor, Weight: 0.85},
	})
	g := b.Build()

	reasons := NewBuilder(0.8).FromPath(g, []int64{1, 2}, nil)
	if len(reasons) != 2 {
		t.Fatalf("got %d reasons, want 2", len(reasons))
	}
	if reasons[0].Kind != recommend.ReasonContent || reasons[1].Kind != recommend.ReasonAuthor {
		t.Errorf("reason order = %v, %v, want content then author", reasons[0].Kind, reasons[1].Kind)
	}
	if reasons[0].Detail != "90% content similarity" {
		t.Errorf("content detail = %q", reasons[0].Detail)
	}
}

func TestFromPathTagOverlap(t *testing.T) {
	b := graph.NewBuilder()
	b.AddEdge(1, 2, graph.EdgeTag, 0.5)
	g := b.Build()

	items := map[int64]recommend.Item{
		1: {ID: 1, Tags: []string{"scifi", "space", "opera"}},
		2: {ID: 2, Tags: []string{"space", "scifi", "war"}},
	}
	reasons := NewBuilder(0.8).FromPath(g, []int64{1, 2}, lookupFrom(items))
	if len(reasons) != 1 {
		t.Fatalf("got %d reasons, want 1", len(reasons))
	}
	r := reasons[0]
	if r.Kind != recommend.ReasonTagOverlap {
		t.Fatalf("kind = %v, want tag overlap", r.Kind)
	}
	if len(r.Tags) != 2 || r.Tags[0] != "scifi" || r.Tags[1] != "space" {
		t.Errorf("shared tags = %v, want [scifi space]", r.Tags)
	}
}

func TestFromPathUserEdge(t *testing.T) {
	b := graph.NewBuilder()
	b.AddEdge(1, 2, graph.EdgeUser, 0.6)
	g := b.Build()

	reasons := NewBuilder(0.8).FromPath(g, []int64{1, 2}, nil)
	if len(reasons) != 1 || reasons[0].Kind != recommend.ReasonReadersAlsoLiked {
		t.Errorf("got %+v, want a readers-also-liked reason", reasons)
	}
}

func TestFromPathNoEvidence(t *testing.T) {
	b := graph.NewBuilder()
	b.AddEdge(1, 2, graph.EdgeContent, 0.5) // below content threshold
	g := b.Build()

	if got := NewBuilder(0.8).FromPath(g, []int64{1, 2}, nil); len(got) != 0 {
		t.Errorf("weak evidence produced reasons: %+v", got)
	}
	if got := NewBuilder(0.8).FromPath(g, nil, nil); got != nil {
		t.Errorf("empty path produced reasons: %+v", got)
	}
}

func TestSynthesizeNextInSeries(t *testing.T) {
	b := NewBuilder(0.8)
	item := recommend.Item{ID: 4, Series: "earthsea", SeriesIndex: 2}
	engaged := map[string]float64{"earthsea": 1}

	reasons := b.Synthesize(nil, item, engaged)
	if len(reasons) != 1 || reasons[0].Kind != recommend.ReasonNextInSeries {
		t.Fatalf("got %+v, want a next-in-series reason", reasons)
	}
	if reasons[0].Detail != "next in earthsea after #1" {
		t.Errorf("detail = %q", reasons[0].Detail)
	}

	// Not the immediate next position.
	item.SeriesIndex = 3
	if got := b.Synthesize(nil, item, engaged); len(got) != 0 {
		t.Errorf("non-adjacent entry synthesized: %+v", got)
	}
	// Series never engaged.
	item.SeriesIndex = 2
	if got := b.Synthesize(nil, item, map[string]float64{"dune": 1}); len(got) != 0 {
		t.Errorf("unengaged series synthesized: %+v", got)
	}
}
