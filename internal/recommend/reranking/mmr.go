// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

// Package reranking provides diversity-aware rerankers applied after
// personalized ranking. The MMR reranker is registered with the engine
// at startup.
package reranking

import (
	"context"
	"sort"

	"github.com/tomtom215/bibliograph/internal/recommend"
)

// MMR implements maximal marginal relevance selection: it greedily picks
// the candidate maximizing lambda*relevance - (1-lambda)*maxSimilarity
// against the already selected set, with a hard per-author cap and a
// relevance bonus for the next unread entry of an engaged series.
type MMR struct {
	// Lambda trades relevance against diversity. 1 is pure relevance.
	Lambda float64

	// AuthorCap is the maximum items per author in the output.
	AuthorCap int

	// SeriesBonus is added to relevance for an item that is the
	// immediate next position of a series the requester engaged with.
	SeriesBonus float64
}

// NewMMR builds an MMR reranker from diversity configuration.
func NewMMR(cfg recommend.DiversityConfig) *MMR {
	return &MMR{
		Lambda:      cfg.MMRLambda,
		AuthorCap:   cfg.AuthorCap,
		SeriesBonus: cfg.SeriesBonus,
	}
}

// Name implements recommend.Reranker.
func (m *MMR) Name() string { return "mmr" }

// Rerank implements recommend.Reranker. Items already rated by the
// requester are dropped outright. The returned slice is ordered by
// selection step, length at most sel.K.
func (m *MMR) Rerank(ctx context.Context, items []recommend.ScoredItem, sel recommend.Selection) []recommend.ScoredItem {
	if len(items) == 0 || sel.K <= 0 {
		return nil
	}

	pool := make([]recommend.ScoredItem, 0, len(items))
	for _, it := range items {
		if _, rated := sel.Rated[it.Item.ID]; rated {
			continue
		}
		pool = append(pool, it)
	}
	if len(pool) == 0 {
		return nil
	}

	relevance := make(map[int64]float64, len(pool))
	for _, it := range pool {
		r := it.Score
		if m.SeriesBonus > 0 && isNextInSeries(it.Item, sel.EngagedSeries) {
			r += m.SeriesBonus
		}
		relevance[it.Item.ID] = r
	}

	// Deterministic scan order for equal marginal scores.
	sort.Slice(pool, func(i, j int) bool {
		ri, rj := relevance[pool[i].Item.ID], relevance[pool[j].Item.ID]
		if ri != rj {
			return ri > rj
		}
		return pool[i].Item.ID < pool[j].Item.ID
	})

	selected := make([]recommend.ScoredItem, 0, sel.K)
	used := make([]bool, len(pool))
	authorCount := make(map[string]int)

	for len(selected) < sel.K {
		select {
		case <-ctx.Done():
			return selected
		default:
		}

		bestIdx := -1
		bestScore := 0.0
		for i, it := range pool {
			if used[i] {
				continue
			}
			if m.AuthorCap > 0 && it.Item.Author != "" && authorCount[it.Item.Author] >= m.AuthorCap {
				continue
			}

			maxSim := 0.0
			if sel.Similarity != nil {
				for _, s := range selected {
					if sim := sel.Similarity(it.Item.ID, s.Item.ID); sim > maxSim {
						maxSim = sim
					}
				}
			}

			score := m.Lambda*relevance[it.Item.ID] - (1-m.Lambda)*maxSim
			if bestIdx == -1 || score > bestScore {
				bestIdx = i
				bestScore = score
			}
		}
		if bestIdx == -1 {
			break
		}

		used[bestIdx] = true
		pick := pool[bestIdx]
		if pick.Item.Author != "" {
			authorCount[pick.Item.Author]++
		}
		selected = append(selected, pick)
	}

	return selected
}

// isNextInSeries reports whether the item is the immediate next position
// after the highest engaged position of its series.
func isNextInSeries(item recommend.Item, engaged map[string]float64) bool {
	if item.Series == "" || len(engaged) == 0 {
		return false
	}
	pos, ok := engaged[item.Series]
	if !ok {
		return false
	}
	return item.SeriesIndex == pos+1
}
