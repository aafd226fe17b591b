// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package graph

import "math"

// Static fusion weights per signal. Fusion normalizes over the signals
// actually present for a pair, so absent signals never dilute the result.
const (
	fusionWeightContent = 0.40
	fusionWeightAuthor  = 0.20
	fusionWeightSeries  = 0.15
	fusionWeightTag     = 0.15
	fusionWeightUser    = 0.10
)

// Fixed signal strengths for categorical relations.
const (
	// AuthorEdgeWeight is the strength of a shared-author relation.
	AuthorEdgeWeight = 0.85

	// SeriesAdjacentWeight applies when two items occupy consecutive
	// positions in the same series.
	SeriesAdjacentWeight = 0.95

	// SeriesSameWeight applies to non-adjacent items of one series.
	SeriesSameWeight = 0.75

	// TagOverlapThreshold is the minimum Jaccard similarity for a tag
	// signal to qualify. Weaker overlap contributes nothing.
	TagOverlapThreshold = 0.20
)

func fusionWeight(t EdgeType) float64 {
	switch t {
	case EdgeContent:
		return fusionWeightContent
	case EdgeAuthor:
		return fusionWeightAuthor
	case EdgeSeries:
		return fusionWeightSeries
	case EdgeTag:
		return fusionWeightTag
	case EdgeUser:
		return fusionWeightUser
	default:
		return 0
	}
}

// Fuse combines the typed signals present for a pair into a single
// traversal weight: the static-weighted average over present signals.
// Returns 0 when no signal is present, which means no edge.
func Fuse(signals []TypedWeight) float64 {
	var sum, norm float64
	for _, s := range signals {
		w := fusionWeight(s.Type)
		if w == 0 || s.Weight <= 0 {
			continue
		}
		sum += w * s.Weight
		norm += w
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}

// SeriesSignal returns the series edge weight for two positions in the
// same series. Positions within one of each other count as adjacent,
// which also covers fractional indices like novellas at 1.5.
func SeriesSignal(posA, posB float64) float64 {
	if math.Abs(posA-posB) <= 1 {
		return SeriesAdjacentWeight
	}
	return SeriesSameWeight
}

// TagJaccard returns |A intersect B| / |A union B| over two tag sets.
// Empty sets yield 0.
func TagJaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	inter := 0
	seen := make(map[string]struct{}, len(b))
	for _, t := range b {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := set[t]; ok {
			inter++
		}
	}
	union := len(set) + len(seen) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
