// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

// Package catalog provides durable storage for library items, their
// embeddings, and the computed similarity edges using BadgerDB.
//
// Items are stored as JSON under fixed-width binary keys so prefix scans
// return them in ID order. Embeddings are raw little-endian float64 blobs.
// Edges are grouped per canonical pair, which keeps a full graph reload to
// one prefix scan.
//
// The Store satisfies recommend.DataProvider, so a graph rebuild reads
// directly from it.
package catalog

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/bibliograph/internal/logging"
	"github.com/tomtom215/bibliograph/internal/metrics"
	"github.com/tomtom215/bibliograph/internal/recommend"
	"github.com/tomtom215/bibliograph/internal/recommend/graph"
)

// Key prefixes for BadgerDB storage
const (
	itemKeyPrefix      = "item:"
	embeddingKeyPrefix = "emb:"
	edgeKeyPrefix      = "edge:"
)

// ErrItemNotFound is returned when the requested item does not exist.
var ErrItemNotFound = errors.New("catalog: item not found")

// Options configures the underlying BadgerDB instance.
type Options struct {
	// Path is the database directory. Empty runs BadgerDB in memory,
	// which is what the tests and ephemeral deployments use.
	Path string

	// SyncWrites forces an fsync on every write transaction.
	SyncWrites bool
}

// Store is a BadgerDB-backed catalog of items, embeddings, and edges.
type Store struct {
	db *badger.DB
}

// Open creates or opens the catalog database.
func Open(opts Options) (*Store, error) {
	var badgerOpts badger.Options
	if opts.Path == "" {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		badgerOpts = badger.DefaultOptions(opts.Path)
		badgerOpts.SyncWrites = opts.SyncWrites
	}

	// Reduce logging verbosity
	badgerOpts.Logger = nil

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", opts.Path).
		Bool("in_memory", opts.Path == "").
		Bool("sync_writes", opts.SyncWrites).
		Msg("Catalog opened")

	return &Store{db: db}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutItem stores or replaces an item.
func (s *Store) PutItem(ctx context.Context, item recommend.Item) error {
	start := time.Now()

	if item.ID <= 0 {
		return fmt.Errorf("catalog: invalid item ID %d", item.ID)
	}

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(itemKey(item.ID), data)
	})
	metrics.ObserveStore("put_item", time.Since(start), err)
	return err
}

// GetItem retrieves an item by ID.
// Returns ErrItemNotFound if no item exists with the given ID.
func (s *Store) GetItem(ctx context.Context, id int64) (recommend.Item, error) {
	start := time.Now()
	var item recommend.Item

	err := s.db.View(func(txn *badger.Txn) error {
		entry, err := txn.Get(itemKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrItemNotFound
		}
		if err != nil {
			return fmt.Errorf("get item: %w", err)
		}

		return entry.Value(func(val []byte) error {
			return json.Unmarshal(val, &item)
		})
	})
	metrics.ObserveStore("get_item", time.Since(start), err)

	if err != nil {
		return recommend.Item{}, err
	}
	return item, nil
}

// DeleteItem removes an item and its embedding.
// Deleting a missing item is not an error.
func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	start := time.Now()

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(itemKey(id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete item: %w", err)
		}
		if err := txn.Delete(embeddingKey(id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete embedding: %w", err)
		}
		return nil
	})
	metrics.ObserveStore("delete_item", time.Since(start), err)
	return err
}

// Items returns every stored item in ID order.
// This is the catalog half of recommend.DataProvider.
func (s *Store) Items(ctx context.Context) ([]recommend.Item, error) {
	start := time.Now()
	var items []recommend.Item

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(itemKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var item recommend.Item
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			})
			if err != nil {
				return fmt.Errorf("unmarshal item: %w", err)
			}
			items = append(items, item)
		}
		return nil
	})
	metrics.ObserveStore("list_items", time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return items, nil
}

// ItemCount returns the number of stored items.
func (s *Store) ItemCount(ctx context.Context) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(itemKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// PutEmbedding stores or replaces the embedding vector for an item.
func (s *Store) PutEmbedding(ctx context.Context, id int64, vec []float64) error {
	start := time.Now()

	if len(vec) == 0 {
		return fmt.Errorf("catalog: empty embedding for item %d", id)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(embeddingKey(id), encodeVector(vec))
	})
	metrics.ObserveStore("put_embedding", time.Since(start), err)
	return err
}

// DeleteEmbedding removes the embedding for an item.
func (s *Store) DeleteEmbedding(ctx context.Context, id int64) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(embeddingKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	return err
}

// Embeddings returns every stored embedding keyed by item ID.
// This is the embedding half of recommend.DataProvider.
func (s *Store) Embeddings(ctx context.Context) (map[int64][]float64, error) {
	start := time.Now()
	embeddings := make(map[int64][]float64)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(embeddingKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			entry := it.Item()
			id, ok := idFromKey(entry.Key(), embeddingKeyPrefix)
			if !ok {
				continue
			}

			err := entry.Value(func(val []byte) error {
				vec, err := decodeVector(val)
				if err != nil {
					return err
				}
				embeddings[id] = vec
				return nil
			})
			if err != nil {
				return fmt.Errorf("decode embedding %d: %w", id, err)
			}
		}
		return nil
	})
	metrics.ObserveStore("list_embeddings", time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return embeddings, nil
}

// SaveEdges replaces all stored edges with the given set. The rebuild
// service calls this after every successful graph build so a restart can
// reload the graph without recomputing pairwise similarities.
func (s *Store) SaveEdges(ctx context.Context, edges []graph.Edge) error {
	start := time.Now()

	// Group per canonical pair so a reload gets the pair's full typed
	// evidence from one value.
	byPair := make(map[[2]int64][]graph.Edge)
	for _, e := range edges {
		src, dst := e.Source, e.Target
		if src > dst {
			src, dst = dst, src
		}
		byPair[[2]int64{src, dst}] = append(byPair[[2]int64{src, dst}], e)
	}

	err := s.db.DropPrefix([]byte(edgeKeyPrefix))
	if err != nil {
		metrics.ObserveStore("save_edges", time.Since(start), err)
		return fmt.Errorf("drop edges: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for pair, pairEdges := range byPair {
		if err := ctx.Err(); err != nil {
			metrics.ObserveStore("save_edges", time.Since(start), err)
			return err
		}

		data, err := json.Marshal(pairEdges)
		if err != nil {
			metrics.ObserveStore("save_edges", time.Since(start), err)
			return fmt.Errorf("marshal edges: %w", err)
		}
		if err := wb.Set(edgeKey(pair[0], pair[1]), data); err != nil {
			metrics.ObserveStore("save_edges", time.Since(start), err)
			return fmt.Errorf("batch edges: %w", err)
		}
	}

	err = wb.Flush()
	metrics.ObserveStore("save_edges", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("flush edges: %w", err)
	}
	return nil
}

// LoadEdges returns all stored edges.
func (s *Store) LoadEdges(ctx context.Context) ([]graph.Edge, error) {
	start := time.Now()
	var edges []graph.Edge

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(edgeKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var pairEdges []graph.Edge
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &pairEdges)
			})
			if err != nil {
				return fmt.Errorf("unmarshal edges: %w", err)
			}
			edges = append(edges, pairEdges...)
		}
		return nil
	})
	metrics.ObserveStore("load_edges", time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return edges, nil
}

// RunGC runs one round of BadgerDB value log garbage collection.
// badger.ErrNoRewrite means there was nothing to reclaim and is not
// reported as an error.
func (s *Store) RunGC() error {
	err := s.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

// Key encoding. IDs are big-endian so lexicographic key order matches
// numeric ID order under prefix scans.

func itemKey(id int64) []byte {
	return appendID([]byte(itemKeyPrefix), id)
}

func embeddingKey(id int64) []byte {
	return appendID([]byte(embeddingKeyPrefix), id)
}

func edgeKey(src, dst int64) []byte {
	return appendID(appendID([]byte(edgeKeyPrefix), src), dst)
}

func appendID(key []byte, id int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	return append(key, buf[:]...)
}

func idFromKey(key []byte, prefix string) (int64, bool) {
	if len(key) != len(prefix)+8 {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(key[len(prefix):])), true
}

// encodeVector packs a float64 slice as little-endian bytes.
func encodeVector(vec []float64) []byte {
	buf := make([]byte, 8*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func decodeVector(data []byte) ([]float64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 8", len(data))
	}
	vec := make([]float64, len(data)/8)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return vec, nil
}

// Compile-time interface assertion
var _ recommend.DataProvider = (*Store)(nil)
