// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func entry(body string) Entry {
	return Entry{Body: []byte(body), ETag: fmt.Sprintf("%q", body)}
}

func TestLRUCache_BasicOperations(t *testing.T) {
	cache := NewLRUCache(3, time.Minute)

	cache.Add("a", entry("alpha"))
	cache.Add("b", entry("beta"))
	cache.Add("c", entry("gamma"))

	got, found := cache.Get("a")
	if !found {
		t.Fatal("Expected to find key 'a'")
	}
	if string(got.Body) != "alpha" {
		t.Errorf("Body = %q, want alpha", got.Body)
	}
	if got.ETag != `"alpha"` {
		t.Errorf("ETag = %q, want %q", got.ETag, `"alpha"`)
	}

	if _, found := cache.Get("b"); !found {
		t.Error("Expected to find key 'b'")
	}
	if _, found := cache.Get("c"); !found {
		t.Error("Expected to find key 'c'")
	}

	if cache.Len() != 3 {
		t.Errorf("Expected len 3, got %d", cache.Len())
	}
}

func TestLRUCache_Eviction(t *testing.T) {
	cache := NewLRUCache(3, time.Minute)

	cache.Add("a", entry("alpha"))
	cache.Add("b", entry("beta"))
	cache.Add("c", entry("gamma"))

	// Access 'a' to make it most recently used
	cache.Get("a")

	// Add new item, should evict 'b' (least recently used)
	cache.Add("d", entry("delta"))

	if _, found := cache.Get("b"); found {
		t.Error("Expected 'b' to be evicted")
	}

	if _, found := cache.Get("a"); !found {
		t.Error("Expected 'a' to be present")
	}
	if _, found := cache.Get("c"); !found {
		t.Error("Expected 'c' to be present")
	}
	if _, found := cache.Get("d"); !found {
		t.Error("Expected 'd' to be present")
	}
}

func TestLRUCache_Update(t *testing.T) {
	cache := NewLRUCache(3, time.Minute)

	cache.Add("a", entry("alpha"))
	cache.Add("a", entry("alpha-v2"))

	if cache.Len() != 1 {
		t.Errorf("Expected len 1 after update, got %d", cache.Len())
	}

	got, found := cache.Get("a")
	if !found {
		t.Fatal("Expected to find key 'a'")
	}
	if string(got.Body) != "alpha-v2" {
		t.Errorf("Body = %q, want alpha-v2", got.Body)
	}
}

func TestLRUCache_TTLExpiration(t *testing.T) {
	cache := NewLRUCache(10, 50*time.Millisecond)

	cache.Add("a", entry("alpha"))

	if _, found := cache.Get("a"); !found {
		t.Error("Expected to find key 'a' immediately")
	}

	time.Sleep(60 * time.Millisecond)

	if _, found := cache.Get("a"); found {
		t.Error("Expected key 'a' to be expired")
	}
}

func TestLRUCache_Contains(t *testing.T) {
	cache := NewLRUCache(3, time.Minute)

	cache.Add("a", entry("alpha"))
	cache.Add("b", entry("beta"))
	cache.Add("c", entry("gamma"))

	// Contains must not promote 'a', so adding 'd' still evicts it
	if !cache.Contains("a") {
		t.Error("Expected Contains('a') to be true")
	}
	cache.Add("d", entry("delta"))

	if cache.Contains("a") {
		t.Error("Expected 'a' to be evicted despite Contains check")
	}
}

func TestLRUCache_Remove(t *testing.T) {
	cache := NewLRUCache(10, time.Minute)

	cache.Add("a", entry("alpha"))

	if !cache.Remove("a") {
		t.Error("Expected Remove('a') to return true")
	}
	if cache.Remove("a") {
		t.Error("Expected second Remove('a') to return false")
	}
	if _, found := cache.Get("a"); found {
		t.Error("Expected 'a' to be gone after Remove")
	}
}

func TestLRUCache_Clear(t *testing.T) {
	cache := NewLRUCache(10, time.Minute)

	cache.Add("a", entry("alpha"))
	cache.Add("b", entry("beta"))
	cache.Clear()

	if cache.Len() != 0 {
		t.Errorf("Expected len 0 after Clear, got %d", cache.Len())
	}
	if _, found := cache.Get("a"); found {
		t.Error("Expected 'a' to be gone after Clear")
	}
}

func TestLRUCache_CleanupExpired(t *testing.T) {
	cache := NewLRUCache(10, 50*time.Millisecond)

	cache.Add("a", entry("alpha"))
	cache.Add("b", entry("beta"))

	time.Sleep(60 * time.Millisecond)
	cache.Add("c", entry("gamma"))

	removed := cache.CleanupExpired()
	if removed != 2 {
		t.Errorf("Expected 2 expired entries removed, got %d", removed)
	}
	if cache.Len() != 1 {
		t.Errorf("Expected len 1 after cleanup, got %d", cache.Len())
	}
}

func TestLRUCache_Stats(t *testing.T) {
	cache := NewLRUCache(10, time.Minute)

	cache.Add("a", entry("alpha"))
	cache.Get("a")
	cache.Get("a")
	cache.Get("missing")

	hits, misses, size := cache.Stats()
	if hits != 2 {
		t.Errorf("hits = %d, want 2", hits)
	}
	if misses != 1 {
		t.Errorf("misses = %d, want 1", misses)
	}
	if size != 1 {
		t.Errorf("size = %d, want 1", size)
	}
}

func TestLRUCache_Concurrent(t *testing.T) {
	cache := NewLRUCache(100, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key-%d-%d", n, j%20)
				cache.Add(key, entry(key))
				cache.Get(key)
			}
		}(i)
	}
	wg.Wait()

	if cache.Len() > 100 {
		t.Errorf("cache exceeded capacity: %d", cache.Len())
	}
}
