// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package graph

// PageRankOptions controls personalized PageRank.
type PageRankOptions struct {
	// Alpha is the damping factor.
	Alpha float64

	// TeleportWeight is the personalization share given to preference
	// nodes; seeds share the remaining 1 - TeleportWeight.
	TeleportWeight float64

	// Iterations is the fixed number of rounds. No convergence check.
	Iterations int
}

// PersonalizedPageRank scores the given node set. When nodes is nil the
// full graph is scored; otherwise traversal is restricted to edges whose
// both endpoints are in the set.
//
// The transition term normalizes by the neighbor's raw out-degree within
// the scored set, not by its edge-weight sum. Both are defensible random
// walk models; raw out-degree is the one this engine commits to, and the
// tests pin it as a property.
//
// Seeds each receive (1 - TeleportWeight) / |seeds| of the
// personalization mass, preferences TeleportWeight / |preferences|. With
// both sets empty the personalization is uniform. Nodes outside the
// scored set are absent from the result, which callers read as score 0.
func PersonalizedPageRank(g *Graph, nodes []int64, seeds, preferences []int64, opts PageRankOptions) map[int64]float64 {
	if g == nil {
		return map[int64]float64{}
	}

	if nodes == nil {
		nodes = g.Nodes()
	}
	n := len(nodes)
	if n == 0 {
		return map[int64]float64{}
	}

	inSet := make(map[int64]struct{}, n)
	for _, id := range nodes {
		inSet[id] = struct{}{}
	}

	// Restricted adjacency and out-degrees, computed once.
	adj := make(map[int64][]Neighbor, n)
	degree := make(map[int64]int, n)
	for _, id := range nodes {
		for _, nb := range g.Neighbors(id) {
			if _, ok := inSet[nb.ID]; !ok {
				continue
			}
			adj[id] = append(adj[id], nb)
		}
		degree[id] = len(adj[id])
	}

	personalization := buildPersonalization(nodes, inSet, seeds, preferences, opts.TeleportWeight)

	scores := make(map[int64]float64, n)
	initial := 1.0 / float64(n)
	for _, id := range nodes {
		scores[id] = initial
	}

	for iter := 0; iter < opts.Iterations; iter++ {
		next := make(map[int64]float64, n)
		for _, id := range nodes {
			var incoming float64
			// Undirected adjacency: the in-neighbors of id are exactly
			// its out-neighbors.
			for _, nb := range adj[id] {
				d := degree[nb.ID]
				if d == 0 {
					continue
				}
				incoming += scores[nb.ID] * nb.Weight / float64(d)
			}
			next[id] = opts.Alpha*incoming + (1-opts.Alpha)*personalization[id]
		}
		scores = next
	}

	return scores
}

func buildPersonalization(nodes []int64, inSet map[int64]struct{}, seeds, preferences []int64, teleport float64) map[int64]float64 {
	p := make(map[int64]float64, len(nodes))

	var presentSeeds, presentPrefs []int64
	for _, s := range seeds {
		if _, ok := inSet[s]; ok {
			presentSeeds = append(presentSeeds, s)
		}
	}
	for _, s := range preferences {
		if _, ok := inSet[s]; ok {
			presentPrefs = append(presentPrefs, s)
		}
	}

	if len(presentSeeds) == 0 && len(presentPrefs) == 0 {
		uniform := 1.0 / float64(len(nodes))
		for _, id := range nodes {
			p[id] = uniform
		}
		return p
	}

	if len(presentSeeds) > 0 {
		share := (1 - teleport) / float64(len(presentSeeds))
		if len(presentPrefs) == 0 {
			// All mass goes to seeds when no preferences exist.
			share = 1.0 / float64(len(presentSeeds))
		}
		for _, id := range presentSeeds {
			p[id] += share
		}
	}
	if len(presentPrefs) > 0 {
		share := teleport / float64(len(presentPrefs))
		if len(presentSeeds) == 0 {
			share = 1.0 / float64(len(presentPrefs))
		}
		for _, id := range presentPrefs {
			p[id] += share
		}
	}

	return p
}

// NormalizeScores rescales a score map to [0, 1] by min-max. A map whose
// scores are all equal maps every entry to 1.
func NormalizeScores(scores map[int64]float64) map[int64]float64 {
	if len(scores) == 0 {
		return scores
	}
	first := true
	var min, max float64
	for _, s := range scores {
		if first {
			min, max = s, s
			first = false
			continue
		}
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	out := make(map[int64]float64, len(scores))
	if max == min {
		for id := range scores {
			out[id] = 1
		}
		return out
	}
	span := max - min
	for id, s := range scores {
		out[id] = (s - min) / span
	}
	return out
}
