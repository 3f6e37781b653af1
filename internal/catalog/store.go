// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

package catalog

import (
	"hash/fnv"
	"sort"
	"sync"

	"github.com/reviewlens/reviewlens/internal/sentiment"
)

// lockStripes is the number of per-item write locks. Feedback merges for
// the same item serialize on one stripe; merges for different items almost
// always proceed in parallel.
const lockStripes = 64

// Store is the in-memory catalog. It holds the full review-level rows and
// a deduplicated item view, and is safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	// rows are the review-level rows in file order.
	rows []Item

	// unique holds the first row seen for each item identity, in order of
	// first occurrence.
	unique []Item

	// byID maps item identity to its index in unique.
	byID map[string]int

	// rowsByID maps item identity to all of its row indices.
	rowsByID map[string][]int

	// stripes serialize aspect merges per item identity.
	stripes [lockStripes]sync.Mutex
}

// NewStore builds the store from review-level rows, deduplicating items by
// identity in order of first occurrence.
func NewStore(rows []Item) *Store {
	s := &Store{
		rows:     rows,
		byID:     make(map[string]int),
		rowsByID: make(map[string][]int),
	}
	for i := range rows {
		id := rows[i].ID()
		if _, seen := s.byID[id]; !seen {
			s.byID[id] = len(s.unique)
			s.unique = append(s.unique, rows[i].Clone())
		}
		s.rowsByID[id] = append(s.rowsByID[id], i)
	}
	return s
}

// RowCount returns the number of review-level rows.
func (s *Store) RowCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// UniqueCount returns the number of distinct items.
func (s *Store) UniqueCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.unique)
}

// Get returns a copy of the item with the given identity.
func (s *Store) Get(id string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return Item{}, false
	}
	return s.unique[i].Clone(), true
}

// At returns a copy of the unique item at index i. The index space matches
// the embedding index rows.
func (s *Store) At(i int) Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unique[i].Clone()
}

// Categories returns the distinct item categories in sorted order.
func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for i := range s.unique {
		if c := s.unique[i].Category; c != "" {
			seen[c] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// UpdateAspects merges the given aspect map into the item with the given
// identity, overwriting judgments for existing aspect names. It returns a
// copy of the merged map. Merges for the same item are serialized; the
// last write wins per aspect name.
func (s *Store) UpdateAspects(id string, incoming sentiment.AspectMap) (sentiment.AspectMap, bool) {
	stripe := &s.stripes[stripeFor(id)]
	stripe.Lock()
	defer stripe.Unlock()

	s.mu.RLock()
	i, ok := s.byID[id]
	var merged sentiment.AspectMap
	if ok {
		merged = s.unique[i].Aspects.Clone()
	}
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if merged == nil {
		merged = sentiment.AspectMap{}
	}
	merged.Merge(incoming)

	// Swap the merged map in rather than mutating in place, so concurrent
	// readers holding copies never observe a partial merge.
	s.mu.Lock()
	s.unique[i].Aspects = merged
	for _, ri := range s.rowsByID[id] {
		s.rows[ri].Aspects = merged.Clone()
	}
	s.mu.Unlock()

	return merged.Clone(), true
}

// SnapshotRows returns a deep copy of the review-level rows for
// persistence.
func (s *Store) SnapshotRows() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, len(s.rows))
	for i := range s.rows {
		out[i] = s.rows[i].Clone()
	}
	return out
}

// ForEachRow calls fn with each review-level row under the read lock.
// fn must not retain the item's aspect map.
func (s *Store) ForEachRow(fn func(*Item)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.rows {
		fn(&s.rows[i])
	}
}

// ForEachUnique calls fn with each unique item under the read lock.
// fn must not retain the item's aspect map.
func (s *Store) ForEachUnique(fn func(*Item)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.unique {
		fn(&s.unique[i])
	}
}

// EnrichedTexts returns the embedding input for every unique item, in
// index order.
func (s *Store) EnrichedTexts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.unique))
	for i := range s.unique {
		out[i] = s.unique[i].EnrichedText()
	}
	return out
}

func stripeFor(id string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return h.Sum32() % lockStripes
}
