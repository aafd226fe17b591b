// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package vector

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0},
		{"length mismatch", []float64{1, 2}, []float64{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCosineSymmetricAndBounded(t *testing.T) {
	a := []float64{0.3, -0.7, 0.5, 0.1}
	b := []float64{-0.2, 0.9, 0.4, -0.6}
	ab, ba := Cosine(a, b), Cosine(b, a)
	if ab != ba {
		t.Errorf("Cosine not symmetric: %v vs %v", ab, ba)
	}
	if ab < -1 || ab > 1 {
		t.Errorf("Cosine(%v, %v) = %v, out of [-1,1]", a, b, ab)
	}
	if self := Cosine(a, a); math.Abs(self-1) > 1e-12 {
		t.Errorf("self-similarity = %v, want 1", self)
	}
}

func TestIndexUpsertRemove(t *testing.T) {
	x := NewIndex()
	x.Upsert(1, []float64{1, 0})
	x.Upsert(2, []float64{0, 1})
	if x.Len() != 2 || !x.Has(1) {
		t.Fatalf("Len() = %d, Has(1) = %v", x.Len(), x.Has(1))
	}

	// Replacing keeps one entry per item.
	x.Upsert(1, []float64{0.5, 0.5})
	if x.Len() != 2 {
		t.Errorf("Len() after replace = %d, want 2", x.Len())
	}

	x.Remove(1)
	if x.Has(1) || x.Len() != 1 {
		t.Errorf("Remove(1) left Has=%v Len=%d", x.Has(1), x.Len())
	}
	if x.Vector(1) != nil {
		t.Error("Vector(1) not nil after removal")
	}
}

func TestIndexUpsertCopies(t *testing.T) {
	x := NewIndex()
	v := []float64{1, 0}
	x.Upsert(1, v)
	v[0] = -1
	got := x.Vector(1)
	if got[0] != 1 {
		t.Errorf("stored vector aliased caller slice: %v", got)
	}
}

func TestKNN(t *testing.T) {
	x := NewIndex()
	x.Upsert(1, []float64{1, 0})
	x.Upsert(2, []float64{0.9, 0.1})
	x.Upsert(3, []float64{0, 1})
	x.Upsert(4, []float64{-1, 0})

	got := x.KNN([]float64{1, 0}, 3, nil)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].ID != 1 || got[1].ID != 2 || got[2].ID != 3 {
		t.Errorf("order = %d, %d, %d, want 1, 2, 3", got[0].ID, got[1].ID, got[2].ID)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Similarity > got[i-1].Similarity {
			t.Errorf("similarity not descending at %d: %v", i, got)
		}
	}

	seen := make(map[int64]bool)
	for _, m := range got {
		if seen[m.ID] {
			t.Errorf("duplicate id %d", m.ID)
		}
		seen[m.ID] = true
	}
}

func TestKNNExclude(t *testing.T) {
	x := NewIndex()
	x.Upsert(1, []float64{1, 0})
	x.Upsert(2, []float64{0.9, 0.1})

	got := x.KNN([]float64{1, 0}, 10, map[int64]struct{}{1: {}})
	if len(got) != 1 || got[0].ID != 2 {
		t.Errorf("got %v, want only item 2", got)
	}
}

func TestKNNTieBreakByID(t *testing.T) {
	x := NewIndex()
	x.Upsert(7, []float64{1, 0})
	x.Upsert(3, []float64{1, 0})
	x.Upsert(5, []float64{2, 0}) // same direction, same cosine

	got := x.KNN([]float64{1, 0}, 3, nil)
	if got[0].ID != 3 || got[1].ID != 5 || got[2].ID != 7 {
		t.Errorf("tie order = %d, %d, %d, want 3, 5, 7", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestKNNTo(t *testing.T) {
	x := NewIndex()
	x.Upsert(1, []float64{1, 0})
	x.Upsert(2, []float64{0.9, 0.1})

	got := x.KNNTo(1, 10, nil)
	for _, m := range got {
		if m.ID == 1 {
			t.Error("KNNTo included the query item itself")
		}
	}
	if len(got) != 1 {
		t.Errorf("len = %d, want 1", len(got))
	}

	if x.KNNTo(99, 10, nil) != nil {
		t.Error("KNNTo for unknown item not nil")
	}
}

func TestSimilarityMissingEmbedding(t *testing.T) {
	x := NewIndex()
	x.Upsert(1, []float64{1, 0})
	if got := x.Similarity(1, 2); got != 0 {
		t.Errorf("Similarity with missing side = %v, want 0", got)
	}
	if got := x.Similarity(1, 1); math.Abs(got-1) > 1e-12 {
		t.Errorf("self Similarity = %v, want 1", got)
	}
}

func TestAverageVector(t *testing.T) {
	x := NewIndex()
	x.Upsert(1, []float64{1, 0})
	x.Upsert(2, []float64{0, 1})

	avg := x.AverageVector([]int64{1, 2}, nil)
	if avg == nil {
		t.Fatal("average of two stored vectors is nil")
	}
	if norm := math.Hypot(avg[0], avg[1]); math.Abs(norm-1) > 1e-12 {
		t.Errorf("average not L2-normalized: norm = %v", norm)
	}
	if math.Abs(avg[0]-avg[1]) > 1e-12 {
		t.Errorf("unweighted average not symmetric: %v", avg)
	}
}

func TestAverageVectorWeighted(t *testing.T) {
	x := NewIndex()
	x.Upsert(1, []float64{1, 0})
	x.Upsert(2, []float64{0, 1})

	// All weight on item 1.
	avg := x.AverageVector([]int64{1, 2}, []float64{5, 0})
	if avg == nil {
		t.Fatal("weighted average is nil")
	}
	if math.Abs(avg[0]-1) > 1e-12 || math.Abs(avg[1]) > 1e-12 {
		t.Errorf("weighted average = %v, want [1 0]", avg)
	}
}

func TestAverageVectorSkipsMissing(t *testing.T) {
	x := NewIndex()
	x.Upsert(1, []float64{1, 0})

	avg := x.AverageVector([]int64{1, 99}, nil)
	if avg == nil || math.Abs(avg[0]-1) > 1e-12 {
		t.Errorf("average with missing id = %v, want [1 0]", avg)
	}

	if got := x.AverageVector([]int64{98, 99}, nil); got != nil {
		t.Errorf("average of only missing ids = %v, want nil", got)
	}
}
