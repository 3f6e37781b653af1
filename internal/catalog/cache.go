// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/reviewlens/reviewlens/internal/metrics"
)

// ProcessedCache persists enriched catalog snapshots in Badger so restarts
// skip re-enrichment when the source data has not changed.
type ProcessedCache struct {
	db     *badger.DB
	logger zerolog.Logger
}

// CacheKey derives the content-addressed cache key for a processed
// snapshot. Any change to the source path, the filtered row count, or the
// schema version produces a different key and therefore a cache miss.
func CacheKey(sourcePath string, rows, schemaVersion int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", sourcePath, rows, schemaVersion)))
	return hex.EncodeToString(sum[:])
}

// OpenProcessedCache opens (or creates) the Badger cache at dir.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func OpenProcessedCache(dir string, logger zerolog.Logger) (*ProcessedCache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open processed cache at %s: %w", dir, err)
	}
	return &ProcessedCache{
		db:     db,
		logger: logger.With().Str("component", "processed-cache").Logger(),
	}, nil
}

// Get returns the cached snapshot for key. Read failures degrade to a
// cache miss; a corrupt or unavailable cache must never block startup.
func (c *ProcessedCache) Get(key string) ([]Item, bool) {
	var items []Item
	err := c.db.View(func(txn *badger.Txn) error {
		entry, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return entry.Value(func(val []byte) error {
			return json.Unmarshal(val, &items)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.logger.Warn().Err(err).Str("key", key).Msg("Processed cache read failed, treating as miss")
		}
		metrics.ProcessedCacheMisses.Inc()
		return nil, false
	}
	metrics.ProcessedCacheHits.Inc()
	return items, true
}

// Put stores a processed snapshot under key.
func (c *ProcessedCache) Put(key string, items []Item) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal processed snapshot: %w", err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), payload)
	})
	if err != nil {
		return fmt.Errorf("write processed snapshot: %w", err)
	}
	return nil
}

// Close releases the underlying Badger database.
func (c *ProcessedCache) Close() error {
	return c.db.Close()
}
