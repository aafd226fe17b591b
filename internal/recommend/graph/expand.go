// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package graph

import (
	"context"
	"math"
	"sort"
)

// ExpandOptions controls multi-hop candidate expansion.
type ExpandOptions struct {
	// MaxHops is the maximum traversal depth from any seed.
	MaxHops int

	// MinWeights holds the per-hop minimum fused edge weight. Hops past
	// the end of the slice reuse the last entry.
	MinWeights []float64

	// Decay is the per-hop decay base applied to accumulated weight.
	Decay float64

	// MaxCandidates caps the discovered candidate set. When the cap is
	// reached the lowest-weight pending frontier entries are dropped
	// first.
	MaxCandidates int

	// Exclude holds item IDs that must never become candidates. Seeds
	// are always excluded.
	Exclude map[int64]struct{}
}

func (o ExpandOptions) minWeightAt(hop int) float64 {
	if len(o.MinWeights) == 0 {
		return 0
	}
	if hop >= len(o.MinWeights) {
		return o.MinWeights[len(o.MinWeights)-1]
	}
	return o.MinWeights[hop]
}

// Candidate is an item reached by expansion, carrying the maximum
// accumulated path weight seen across all paths and the path behind it.
type Candidate struct {
	ID int64

	// Weight is the best accumulated weight: product of the fused edge
	// weights along Path, decayed per hop.
	Weight float64

	// Path is the best path from a seed to this item, seed first,
	// this item last.
	Path []int64

	// Hops is the length of Path minus one.
	Hops int
}

type frontierEntry struct {
	id     int64
	weight float64
	path   []int64
}

// Expand performs breadth-first multi-hop expansion from the seed set.
// Each traversal step from u to neighbor v via fused weight w at 0-based
// hop h contributes accumulated(u) * w * decay^h, and is taken only when
// w meets the hop's minimum. A candidate keeps the maximum accumulated
// weight across all paths reaching it and re-enters the frontier when
// improved.
//
// Returns the candidate set and whether expansion was cut short by the
// context deadline. Seeds that are absent from the graph contribute
// nothing.
func Expand(ctx context.Context, g *Graph, seeds []int64, opts ExpandOptions) (map[int64]*Candidate, bool) {
	candidates := make(map[int64]*Candidate)
	if g == nil || len(seeds) == 0 || opts.MaxHops <= 0 {
		return candidates, false
	}

	excluded := func(id int64) bool {
		_, ok := opts.Exclude[id]
		return ok
	}

	seen := make(map[int64]struct{}, len(seeds))
	frontier := make([]frontierEntry, 0, len(seeds))
	for _, s := range seeds {
		if _, dup := seen[s]; dup || !g.Has(s) {
			continue
		}
		seen[s] = struct{}{}
		frontier = append(frontier, frontierEntry{id: s, weight: 1.0, path: []int64{s}})
	}

	truncated := false

	for hop := 0; hop < opts.MaxHops && len(frontier) > 0; hop++ {
		select {
		case <-ctx.Done():
			return candidates, true
		default:
		}

		minW := opts.minWeightAt(hop)
		decay := math.Pow(opts.Decay, float64(hop))

		// Highest accumulated weight first so that, under the cap, the
		// strongest frontier entries are expanded and the weakest are
		// the ones dropped.
		sort.Slice(frontier, func(i, j int) bool {
			if frontier[i].weight != frontier[j].weight {
				return frontier[i].weight > frontier[j].weight
			}
			return frontier[i].id < frontier[j].id
		})

		var next []frontierEntry
		for _, entry := range frontier {
			for _, n := range g.Neighbors(entry.id) {
				if n.Weight < minW {
					// Neighbors are sorted by weight descending, so no
					// later neighbor can qualify either.
					break
				}
				// Seeds other than excluded ones may become candidates:
				// a nearest-neighbor seed reached through an edge is a
				// legitimate recommendation.
				if excluded(n.ID) {
					continue
				}

				w := entry.weight * n.Weight * decay
				cand, seen := candidates[n.ID]
				if seen && w <= cand.Weight {
					continue
				}
				if !seen {
					if opts.MaxCandidates > 0 && len(candidates) >= opts.MaxCandidates {
						truncated = true
						continue
					}
					cand = &Candidate{ID: n.ID}
					candidates[n.ID] = cand
				}

				path := make([]int64, 0, len(entry.path)+1)
				path = append(path, entry.path...)
				path = append(path, n.ID)
				cand.Weight = w
				cand.Path = path
				cand.Hops = len(path) - 1

				next = append(next, frontierEntry{id: n.ID, weight: w, path: path})
			}
		}
		frontier = next
	}

	return candidates, truncated
}

// PathEdges resolves a candidate path into the neighbor records of each
// consecutive pair, in traversal order. Used by explanation building.
func PathEdges(g *Graph, path []int64) []Neighbor {
	if g == nil || len(path) < 2 {
		return nil
	}
	out := make([]Neighbor, 0, len(path)-1)
	for i := 0; i+1 < len(path); i++ {
		n, ok := g.Pair(path[i], path[i+1])
		if !ok {
			return out
		}
		out = append(out, n)
	}
	return out
}
