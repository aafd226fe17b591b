// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

// Package graph implements the weighted multi-relation similarity graph:
// edge-weight fusion, the immutable snapshot structure, multi-hop
// candidate expansion, and personalized PageRank.
//
// A snapshot is built in one batch pass and never mutated afterwards.
// The engine swaps the active snapshot atomically, so concurrent readers
// always see a complete, consistent structure.
package graph

import (
	"sort"
	"time"
)

// EdgeType identifies the relation an edge encodes.
type EdgeType int

const (
	// EdgeContent is embedding cosine similarity.
	EdgeContent EdgeType = iota
	// EdgeAuthor is a shared-author relation.
	EdgeAuthor
	// EdgeSeries is a same-series relation.
	EdgeSeries
	// EdgeTag is a tag-overlap relation.
	EdgeTag
	// EdgeUser is an externally supplied collaborative relation.
	EdgeUser
)

// String returns the wire name for the edge type.
func (t EdgeType) String() string {
	switch t {
	case EdgeContent:
		return "content"
	case EdgeAuthor:
		return "author"
	case EdgeSeries:
		return "series"
	case EdgeTag:
		return "tag"
	case EdgeUser:
		return "user"
	default:
		return "unknown"
	}
}

// ParseEdgeType converts a wire name back to an EdgeType.
func ParseEdgeType(s string) (EdgeType, bool) {
	switch s {
	case "content":
		return EdgeContent, true
	case "author":
		return EdgeAuthor, true
	case "series":
		return EdgeSeries, true
	case "tag":
		return EdgeTag, true
	case "user":
		return EdgeUser, true
	default:
		return 0, false
	}
}

// TypedWeight is one signal's contribution to a pair.
type TypedWeight struct {
	Type   EdgeType `json:"type"`
	Weight float64  `json:"weight"`
}

// Edge is a stored typed edge between two items. Edges are undirected in
// meaning; the canonical stored form has Source < Target.
type Edge struct {
	Source     int64     `json:"source"`
	Target     int64     `json:"target"`
	Type       EdgeType  `json:"type"`
	Weight     float64   `json:"weight"`
	ComputedAt time.Time `json:"computed_at"`
}

// Neighbor is one adjacent item as seen from a node: the fused pair
// weight used for traversal plus the typed signal evidence behind it.
type Neighbor struct {
	// ID is the adjacent item.
	ID int64

	// Weight is the fused pair weight in [0, 1].
	Weight float64

	// Edges lists the contributing typed signals, weight descending.
	Edges []TypedWeight
}

// Graph is an immutable similarity-graph snapshot.
//
// Adjacency is symmetric: every pair is reachable from both endpoints.
// A Graph must not be modified after Build returns.
type Graph struct {
	adj       map[int64][]Neighbor
	edgeCount int
	builtAt   time.Time
}

// Builder accumulates fused pairs and produces an immutable Graph.
type Builder struct {
	pairs map[[2]int64]*pairEntry
}

type pairEntry struct {
	weight float64
	edges  []TypedWeight
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{pairs: make(map[[2]int64]*pairEntry)}
}

// AddPair records a fused pair. Self-loops and non-positive weights are
// ignored. Adding the same pair twice keeps the higher fused weight and
// merges the typed evidence.
func (b *Builder) AddPair(a, c int64, fused float64, edges []TypedWeight) {
	if a == c || fused <= 0 {
		return
	}
	key := pairKey(a, c)
	entry, ok := b.pairs[key]
	if !ok {
		b.pairs[key] = &pairEntry{
			weight: fused,
			edges:  append([]TypedWeight(nil), edges...),
		}
		return
	}
	if fused > entry.weight {
		entry.weight = fused
	}
	entry.edges = mergeTyped(entry.edges, edges)
}

// AddEdge records a single typed edge as a pair whose fused weight is the
// edge weight. Used when loading pre-computed edge sets.
func (b *Builder) AddEdge(a, c int64, typ EdgeType, weight float64) {
	b.AddPair(a, c, weight, []TypedWeight{{Type: typ, Weight: weight}})
}

// Len returns the number of distinct pairs recorded so far.
func (b *Builder) Len() int {
	return len(b.pairs)
}

// Build produces the immutable snapshot. The builder may be discarded
// afterwards.
func (b *Builder) Build() *Graph {
	g := &Graph{
		adj:     make(map[int64][]Neighbor, len(b.pairs)),
		builtAt: time.Now(),
	}

	for key, entry := range b.pairs {
		edges := append([]TypedWeight(nil), entry.edges...)
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].Weight != edges[j].Weight {
				return edges[i].Weight > edges[j].Weight
			}
			return edges[i].Type < edges[j].Type
		})
		g.adj[key[0]] = append(g.adj[key[0]], Neighbor{ID: key[1], Weight: entry.weight, Edges: edges})
		g.adj[key[1]] = append(g.adj[key[1]], Neighbor{ID: key[0], Weight: entry.weight, Edges: edges})
		g.edgeCount += len(edges)
	}

	// Deterministic neighbor order: weight descending, then ID.
	for id := range g.adj {
		ns := g.adj[id]
		sort.Slice(ns, func(i, j int) bool {
			if ns[i].Weight != ns[j].Weight {
				return ns[i].Weight > ns[j].Weight
			}
			return ns[i].ID < ns[j].ID
		})
	}

	return g
}

// Neighbors returns the adjacency list of a node. The returned slice is
// shared with the snapshot and must not be modified.
func (g *Graph) Neighbors(id int64) []Neighbor {
	return g.adj[id]
}

// NeighborsByType returns the neighbors connected through the given edge
// type, with the typed weight as the neighbor weight.
func (g *Graph) NeighborsByType(id int64, typ EdgeType) []Neighbor {
	var out []Neighbor
	for _, n := range g.adj[id] {
		for _, e := range n.Edges {
			if e.Type == typ {
				out = append(out, Neighbor{ID: n.ID, Weight: e.Weight, Edges: n.Edges})
				break
			}
		}
	}
	return out
}

// Pair returns the neighbor record connecting a to c, if any.
func (g *Graph) Pair(a, c int64) (Neighbor, bool) {
	for _, n := range g.adj[a] {
		if n.ID == c {
			return n, true
		}
	}
	return Neighbor{}, false
}

// Has reports whether the node exists in the snapshot.
func (g *Graph) Has(id int64) bool {
	_, ok := g.adj[id]
	return ok
}

// OutDegree returns the number of distinct neighbors of a node.
func (g *Graph) OutDegree(id int64) int {
	return len(g.adj[id])
}

// NodeCount returns the number of nodes with at least one edge.
func (g *Graph) NodeCount() int {
	return len(g.adj)
}

// EdgeCount returns the number of typed edges in the snapshot.
func (g *Graph) EdgeCount() int {
	return g.edgeCount
}

// PairCount returns the number of distinct connected pairs.
func (g *Graph) PairCount() int {
	total := 0
	for _, ns := range g.adj {
		total += len(ns)
	}
	return total / 2
}

// BuiltAt returns when the snapshot was built.
func (g *Graph) BuiltAt() time.Time {
	return g.builtAt
}

// Nodes returns all node IDs in ascending order.
func (g *Graph) Nodes() []int64 {
	ids := make([]int64, 0, len(g.adj))
	for id := range g.adj {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Edges returns the canonical stored edge set (Source < Target), sorted
// by source, target, type. Used for persistence after a rebuild.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for id, ns := range g.adj {
		for _, n := range ns {
			if id >= n.ID {
				continue
			}
			for _, e := range n.Edges {
				out = append(out, Edge{
					Source:     id,
					Target:     n.ID,
					Type:       e.Type,
					Weight:     e.Weight,
					ComputedAt: g.builtAt,
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		if out[i].Target != out[j].Target {
			return out[i].Target < out[j].Target
		}
		return out[i].Type < out[j].Type
	})
	return out
}

func pairKey(a, c int64) [2]int64 {
	if a < c {
		return [2]int64{a, c}
	}
	return [2]int64{c, a}
}

// mergeTyped merges typed evidence keeping the higher weight per type.
func mergeTyped(dst, src []TypedWeight) []TypedWeight {
	for _, s := range src {
		found := false
		for i := range dst {
			if dst[i].Type == s.Type {
				if s.Weight > dst[i].Weight {
					dst[i].Weight = s.Weight
				}
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, s)
		}
	}
	return dst
}
