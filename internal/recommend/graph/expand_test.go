// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package graph

import (
	"context"
	"math"
	"testing"
	"time"
)

// IDs for the five-item scenario used across expansion tests.
const (
	itemA int64 = 1
	itemB int64 = 2
	itemC int64 = 3
	itemD int64 = 4
	itemE int64 = 5
)

func fiveItemGraph() *Graph {
	b := NewBuilder()
	b.AddEdge(itemA, itemB, EdgeContent, 0.9)
	b.AddEdge(itemA, itemC, EdgeAuthor, 0.85)
	b.AddEdge(itemC, itemD, EdgeSeries, 0.95)
	// E stays disconnected.
	return b.Build()
}

func defaultExpandOptions() ExpandOptions {
	return ExpandOptions{
		MaxHops:       2,
		MinWeights:    []float64{0.70, 0.50, 0.60},
		Decay:         0.8,
		MaxCandidates: 500,
		// The request source never recommends itself.
		Exclude: map[int64]struct{}{itemA: {}},
	}
}

func TestExpandTwoHops(t *testing.T) {
	g := fiveItemGraph()
	cands, truncated := Expand(context.Background(), g, []int64{itemA}, defaultExpandOptions())
	if truncated {
		t.Fatal("expansion reported truncated")
	}
	if len(cands) != 3 {
		t.Fatalf("candidate count = %d, want 3 (B, C, D)", len(cands))
	}

	tests := []struct {
		id     int64
		weight float64
		hops   int
		path   []int64
	}{
		{itemB, 0.9, 1, []int64{itemA, itemB}},
		{itemC, 0.85, 1, []int64{itemA, itemC}},
		{itemD, 0.85 * 0.95 * 0.8, 2, []int64{itemA, itemC, itemD}},
	}
	for _, tt := range tests {
		c, ok := cands[tt.id]
		if !ok {
			t.Fatalf("candidate %d missing", tt.id)
		}
		if math.Abs(c.Weight-tt.weight) > 1e-12 {
			t.Errorf("candidate %d weight = %v, want %v", tt.id, c.Weight, tt.weight)
		}
		if c.Hops != tt.hops {
			t.Errorf("candidate %d hops = %d, want %d", tt.id, c.Hops, tt.hops)
		}
		if len(c.Path) != len(tt.path) {
			t.Fatalf("candidate %d path = %v, want %v", tt.id, c.Path, tt.path)
		}
		for i := range tt.path {
			if c.Path[i] != tt.path[i] {
				t.Errorf("candidate %d path = %v, want %v", tt.id, c.Path, tt.path)
				break
			}
		}
	}

	if _, ok := cands[itemE]; ok {
		t.Error("disconnected item reached")
	}
	if _, ok := cands[itemA]; ok {
		t.Error("seed appeared as candidate")
	}
}

func TestExpandHopThresholds(t *testing.T) {
	b := NewBuilder()
	b.AddEdge(itemA, itemB, EdgeContent, 0.65) // below hop-0 minimum 0.70
	g := b.Build()

	cands, _ := Expand(context.Background(), g, []int64{itemA}, defaultExpandOptions())
	if len(cands) != 0 {
		t.Errorf("edge below hop threshold followed: %v", cands)
	}

	// The same weight qualifies at hop 1 where the minimum is 0.50.
	b = NewBuilder()
	b.AddEdge(itemA, itemB, EdgeContent, 0.9)
	b.AddEdge(itemB, itemC, EdgeContent, 0.65)
	g = b.Build()

	cands, _ = Expand(context.Background(), g, []int64{itemA}, defaultExpandOptions())
	if _, ok := cands[itemC]; !ok {
		t.Error("hop-1 edge meeting the hop-1 minimum was not followed")
	}
}

func TestExpandMonotonicInMaxHops(t *testing.T) {
	b := NewBuilder()
	prev := itemA
	for id := int64(2); id <= 6; id++ {
		b.AddEdge(prev, id, EdgeContent, 0.9)
		prev = id
	}
	g := b.Build()

	opts := defaultExpandOptions()
	last := 0
	for hops := 1; hops <= 5; hops++ {
		opts.MaxHops = hops
		cands, _ := Expand(context.Background(), g, []int64{itemA}, opts)
		if len(cands) < last {
			t.Fatalf("maxHops=%d reached %d candidates, fewer than %d at maxHops=%d",
				hops, len(cands), last, hops-1)
		}
		last = len(cands)
	}
	if last != 5 {
		t.Errorf("chain of 6 nodes reached %d candidates at maxHops=5, want 5", last)
	}
}

func TestExpandKeepsMaxWeightPath(t *testing.T) {
	// Two paths to D: direct weak edge and a stronger two-hop route.
	b := NewBuilder()
	b.AddEdge(itemA, itemD, EdgeContent, 0.71)
	b.AddEdge(itemA, itemB, EdgeContent, 0.95)
	b.AddEdge(itemB, itemD, EdgeContent, 0.98)
	g := b.Build()

	cands, _ := Expand(context.Background(), g, []int64{itemA}, defaultExpandOptions())
	d, ok := cands[itemD]
	if !ok {
		t.Fatal("candidate D missing")
	}
	want := 0.95 * 0.98 * 0.8
	if want <= 0.71 {
		t.Fatal("test setup broken: two-hop route must beat direct edge")
	}
	if math.Abs(d.Weight-want) > 1e-12 {
		t.Errorf("D weight = %v, want %v from the stronger route", d.Weight, want)
	}
	if len(d.Path) != 3 || d.Path[1] != itemB {
		t.Errorf("D path = %v, want route through B", d.Path)
	}
}

func TestExpandCandidateCap(t *testing.T) {
	b := NewBuilder()
	for id := int64(2); id <= 21; id++ {
		b.AddEdge(itemA, id, EdgeContent, 0.9)
	}
	g := b.Build()

	opts := defaultExpandOptions()
	opts.MaxCandidates = 5
	cands, truncated := Expand(context.Background(), g, []int64{itemA}, opts)
	if len(cands) != 5 {
		t.Errorf("candidate count = %d, want cap 5", len(cands))
	}
	if !truncated {
		t.Error("cap hit but truncation not reported")
	}
}

func TestExpandExcludes(t *testing.T) {
	g := fiveItemGraph()
	opts := defaultExpandOptions()
	opts.Exclude = map[int64]struct{}{itemB: {}}

	cands, _ := Expand(context.Background(), g, []int64{itemA}, opts)
	if _, ok := cands[itemB]; ok {
		t.Error("excluded item surfaced as candidate")
	}
	if _, ok := cands[itemC]; !ok {
		t.Error("unrelated candidate dropped by exclusion")
	}
}

func TestExpandSeedReachableAsCandidate(t *testing.T) {
	// A nearest-neighbor seed that is also connected by an edge stays
	// recommendable; only the exclude set is off limits.
	b := NewBuilder()
	b.AddEdge(itemA, itemB, EdgeContent, 0.9)
	g := b.Build()

	cands, _ := Expand(context.Background(), g, []int64{itemA, itemB}, defaultExpandOptions())
	if _, ok := cands[itemB]; !ok {
		t.Error("seed reached through an edge did not become a candidate")
	}
	if _, ok := cands[itemA]; ok {
		t.Error("excluded seed became a candidate")
	}
}

func TestExpandContextCancelled(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	cands, truncated := Expand(ctx, fiveItemGraph(), []int64{itemA}, defaultExpandOptions())
	if !truncated {
		t.Error("expired context not reported as truncation")
	}
	if len(cands) != 0 {
		t.Errorf("expired context produced %d candidates", len(cands))
	}
}

func TestPathEdges(t *testing.T) {
	g := fiveItemGraph()
	edges := PathEdges(g, []int64{itemA, itemC, itemD})
	if len(edges) != 2 {
		t.Fatalf("len(PathEdges) = %d, want 2", len(edges))
	}
	if edges[0].Edges[0].Type != EdgeAuthor {
		t.Errorf("first edge type = %v, want author", edges[0].Edges[0].Type)
	}
	if edges[1].Edges[0].Type != EdgeSeries {
		t.Errorf("second edge type = %v, want series", edges[1].Edges[0].Type)
	}

	if got := PathEdges(g, []int64{itemA}); got != nil {
		t.Errorf("single-node path produced edges: %v", got)
	}
}
