// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

// Package explain converts the typed edge evidence along a candidate's
// best path into ordered, human-readable reasons.
package explain

import (
	"fmt"
	"math"
	"sort"

	"github.com/tomtom215/bibliograph/internal/recommend"
	"github.com/tomtom215/bibliograph/internal/recommend/graph"
)

// ContentReasonThreshold is the minimum content similarity for a
// similar-content reason. Weaker content edges still contribute to
// traversal but are not worth surfacing.
const ContentReasonThreshold = 0.7

// Builder turns path evidence into reasons. It implements
// recommend.Explainer. Decay matches the expansion decay so that reason
// ordering follows each edge's actual contribution to the candidate
// weight.
type Builder struct {
	decay float64
}

// NewBuilder creates a reason builder using the given per-hop decay.
func NewBuilder(decay float64) *Builder {
	if decay <= 0 || decay > 1 {
		decay = 1
	}
	return &Builder{decay: decay}
}

type evidence struct {
	kind         recommend.ReasonKind
	weight       float64
	contribution float64
	edgeIndex    int
	source       int64
	target       int64
}

// FromPath inspects the typed edges along a best path and emits one
// reason per qualifying edge type, ordered by decayed contribution
// descending. A path with no qualifying evidence yields an empty list,
// not an error. Missing lookup entries degrade the detail text, never
// the reason itself.
func (b *Builder) FromPath(g *graph.Graph, path []int64, lookup recommend.ItemLookup) []recommend.Reason {
	edges := graph.PathEdges(g, path)
	if len(edges) == 0 {
		return nil
	}

	best := make(map[recommend.ReasonKind]evidence)
	for i, n := range edges {
		factor := math.Pow(b.decay, float64(i))
		for _, tw := range n.Edges {
			kind, ok := reasonKind(tw.Type, tw.Weight)
			if !ok {
				continue
			}
			ev := evidence{
				kind:         kind,
				weight:       tw.Weight,
				contribution: tw.Weight * factor,
				edgeIndex:    i,
				source:       path[i],
				target:       path[i+1],
			}
			if cur, seen := best[kind]; !seen || ev.contribution > cur.contribution {
				best[kind] = ev
			}
		}
	}
	if len(best) == 0 {
		return nil
	}

	evs := make([]evidence, 0, len(best))
	for _, ev := range best {
		evs = append(evs, ev)
	}
	sort.Slice(evs, func(i, j int) bool {
		if evs[i].contribution != evs[j].contribution {
			return evs[i].contribution > evs[j].contribution
		}
		return evs[i].kind < evs[j].kind
	})

	reasons := make([]recommend.Reason, 0, len(evs))
	for _, ev := range evs {
		reasons = append(reasons, b.reason(ev, lookup))
	}
	return reasons
}

// Synthesize appends the higher-level reasons that depend on requester
// context rather than graph evidence: next-in-series when the item is
// the immediate next position of an engaged series.
func (b *Builder) Synthesize(reasons []recommend.Reason, item recommend.Item, engaged map[string]float64) []recommend.Reason {
	if item.Series == "" || len(engaged) == 0 {
		return reasons
	}
	pos, ok := engaged[item.Series]
	if !ok || item.SeriesIndex != pos+1 {
		return reasons
	}
	return append(reasons, recommend.Reason{
		Kind:   recommend.ReasonNextInSeries,
		Weight: 1,
		Detail: fmt.Sprintf("next in %s after #%s", item.Series, formatPosition(pos)),
	})
}

func reasonKind(t graph.EdgeType, weight float64) (recommend.ReasonKind, bool) {
	switch t {
	case graph.EdgeContent:
		return recommend.ReasonContent, weight >= ContentReasonThreshold
	case graph.EdgeAuthor:
		return recommend.ReasonAuthor, true
	case graph.EdgeSeries:
		return recommend.ReasonSeries, true
	case graph.EdgeTag:
		return recommend.ReasonTagOverlap, true
	case graph.EdgeUser:
		return recommend.ReasonReadersAlsoLiked, true
	default:
		return 0, false
	}
}

func (b *Builder) reason(ev evidence, lookup recommend.ItemLookup) recommend.Reason {
	r := recommend.Reason{Kind: ev.kind, Weight: ev.weight}

	var src, dst recommend.Item
	var haveSrc, haveDst bool
	if lookup != nil {
		src, haveSrc = lookup(ev.source)
		dst, haveDst = lookup(ev.target)
	}

	switch ev.kind {
	case recommend.ReasonContent:
		r.Detail = fmt.Sprintf("%.0f%% content similarity", ev.weight*100)
	case recommend.ReasonAuthor:
		if haveDst && dst.Author != "" {
			r.Detail = fmt.Sprintf("also by %s", dst.Author)
		} else {
			r.Detail = "same author"
		}
	case recommend.ReasonSeries:
		switch {
		case haveDst && dst.Series != "" && dst.SeriesIndex > 0:
			r.Detail = fmt.Sprintf("book %s of %s", formatPosition(dst.SeriesIndex), dst.Series)
		case haveDst && dst.Series != "":
			r.Detail = fmt.Sprintf("part of %s", dst.Series)
		default:
			r.Detail = "same series"
		}
	case recommend.ReasonTagOverlap:
		if haveSrc && haveDst {
			r.Tags = sharedTags(src.Tags, dst.Tags)
		}
		if len(r.Tags) > 0 {
			r.Detail = fmt.Sprintf("shares %d tags", len(r.Tags))
		} else {
			r.Detail = "overlapping tags"
		}
	case recommend.ReasonReadersAlsoLiked:
		r.Detail = "readers also liked"
	}
	return r
}

func sharedTags(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	var out []string
	seen := make(map[string]struct{}, len(b))
	for _, t := range b {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := set[t]; ok {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// formatPosition renders a series position without a trailing ".0" for
// whole numbers, keeping one decimal for half positions like 1.5.
func formatPosition(pos float64) string {
	if pos == math.Trunc(pos) {
		return fmt.Sprintf("%.0f", pos)
	}
	return fmt.Sprintf("%.1f", pos)
}
