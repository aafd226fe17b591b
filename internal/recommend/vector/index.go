// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

// Package vector provides the in-memory embedding index used for seed
// candidate generation and diversity similarity.
//
// The index holds one embedding per item. Items without an embedding are
// simply absent; callers fall back to metadata-only signals for them.
// Reads may run concurrently; upserts are serialized by the index.
package vector

import (
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// Match is a nearest-neighbor result.
type Match struct {
	// ID is the matched item.
	ID int64

	// Similarity is the cosine similarity to the query vector.
	Similarity float64
}

// Index is a thread-safe in-memory embedding index.
type Index struct {
	mu sync.RWMutex

	// vectors maps item ID to its embedding.
	vectors map[int64][]float64

	// norms caches the L2 norm of each stored vector.
	norms map[int64]float64
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		vectors: make(map[int64][]float64),
		norms:   make(map[int64]float64),
	}
}

// Upsert stores or replaces the embedding for an item.
// The vector is copied; callers may reuse the slice.
func (x *Index) Upsert(id int64, vec []float64) {
	if len(vec) == 0 {
		return
	}
	v := append([]float64(nil), vec...)

	x.mu.Lock()
	defer x.mu.Unlock()
	x.vectors[id] = v
	x.norms[id] = floats.Norm(v, 2)
}

// Remove deletes the embedding for an item, if present.
func (x *Index) Remove(id int64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.vectors, id)
	delete(x.norms, id)
}

// Has reports whether the item has an embedding.
func (x *Index) Has(id int64) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.vectors[id]
	return ok
}

// Len returns the number of stored embeddings.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

// Vector returns a copy of the stored embedding, or nil if absent.
func (x *Index) Vector(id int64) []float64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	v, ok := x.vectors[id]
	if !ok {
		return nil
	}
	return append([]float64(nil), v...)
}

// KNN returns up to k matches for the query vector, sorted by similarity
// descending with ties broken by ascending ID. IDs in exclude are skipped.
func (x *Index) KNN(query []float64, k int, exclude map[int64]struct{}) []Match {
	if len(query) == 0 || k <= 0 {
		return nil
	}
	qnorm := floats.Norm(query, 2)

	x.mu.RLock()
	matches := make([]Match, 0, len(x.vectors))
	for id, v := range x.vectors {
		if _, skip := exclude[id]; skip {
			continue
		}
		matches = append(matches, Match{
			ID:         id,
			Similarity: cosine(query, qnorm, v, x.norms[id]),
		})
	}
	x.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].ID < matches[j].ID
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// KNNTo returns up to k matches for a stored item's embedding, excluding
// the item itself. Returns nil when the item has no embedding.
func (x *Index) KNNTo(id int64, k int, exclude map[int64]struct{}) []Match {
	q := x.Vector(id)
	if q == nil {
		return nil
	}
	ex := make(map[int64]struct{}, len(exclude)+1)
	for e := range exclude {
		ex[e] = struct{}{}
	}
	ex[id] = struct{}{}
	return x.KNN(q, k, ex)
}

// Similarity returns the cosine similarity between two stored items, or 0
// when either embedding is missing.
func (x *Index) Similarity(a, b int64) float64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	va, ok := x.vectors[a]
	if !ok {
		return 0
	}
	vb, ok := x.vectors[b]
	if !ok {
		return 0
	}
	return cosine(va, x.norms[a], vb, x.norms[b])
}

// AverageVector returns the componentwise mean of the stored embeddings
// for ids, L2-normalized. When weights is non-nil, it must be the same
// length as ids and each embedding contributes proportionally (ids with
// non-positive weight contribute nothing). IDs without an embedding are
// skipped. Returns nil when no embedding was found.
func (x *Index) AverageVector(ids []int64, weights []float64) []float64 {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var avg []float64
	var total float64
	for i, id := range ids {
		v, ok := x.vectors[id]
		if !ok {
			continue
		}
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		if w <= 0 {
			continue
		}
		if avg == nil {
			avg = make([]float64, len(v))
		}
		if len(v) != len(avg) {
			continue
		}
		floats.AddScaled(avg, w, v)
		total += w
	}
	if avg == nil || total == 0 {
		return nil
	}

	floats.Scale(1/total, avg)
	if norm := floats.Norm(avg, 2); norm > 0 {
		floats.Scale(1/norm, avg)
	}
	return avg
}

// Cosine returns the cosine similarity between two vectors. Mismatched
// lengths and zero-norm vectors yield 0; there is never a division by
// zero.
func Cosine(a, b []float64) float64 {
	return cosine(a, floats.Norm(a, 2), b, floats.Norm(b, 2))
}

func cosine(a []float64, anorm float64, b []float64, bnorm float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	if anorm == 0 || bnorm == 0 {
		return 0
	}
	sim := floats.Dot(a, b) / (anorm * bnorm)
	// Clamp floating-point drift outside [-1, 1].
	return math.Max(-1, math.Min(1, sim))
}
