// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

// Package embedding builds and queries the semantic retrieval index over
// catalog items. Item texts are embedded through the model server once and
// persisted; the index holds the unit-normalized matrix and answers exact
// cosine nearest-neighbor queries.
package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
)

// Embedder turns texts into dense vectors. Satisfied by inference.Client.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Config controls index construction.
type Config struct {
	// VectorsPath persists the raw embedding matrix.
	VectorsPath string

	// IndexPath persists the unit-normalized matrix.
	IndexPath string

	// MaxNeighbors is the default neighbor count for queries that do
	// not request an explicit k.
	MaxNeighbors int

	// BatchSize is the number of texts embedded per model-server call.
	BatchSize int
}

// DefaultConfig returns production index settings.
func DefaultConfig() Config {
	return Config{MaxNeighbors: 50, BatchSize: 64}
}

// Hit is one retrieval result: a row in the unique-item index space and
// its cosine distance from the query (0 identical, 2 opposite).
type Hit struct {
	Row      int
	Distance float64
}

// Index answers cosine nearest-neighbor queries over the catalog.
type Index struct {
	normalized [][]float32
	dim        int
	max        int
}

// Len returns the number of indexed items.
func (idx *Index) Len() int {
	return len(idx.normalized)
}

// Dim returns the embedding dimensionality.
func (idx *Index) Dim() int {
	return idx.dim
}

// Build loads or computes the embedding artifacts for texts and returns a
// ready index. Persisted artifacts are reused only when their row count
// matches len(texts); any size change triggers a full rebuild, so the
// index can never go stale against the catalog.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func Build(ctx context.Context, texts []string, embedder Embedder, cfg Config, logger zerolog.Logger) (*Index, error) {
	if cfg.MaxNeighbors < 1 {
		cfg.MaxNeighbors = DefaultConfig().MaxNeighbors
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	logger = logger.With().Str("component", "embedding-index").Logger()

	vectors, err := loadOrEmbed(ctx, texts, embedder, cfg, logger)
	if err != nil {
		return nil, err
	}

	normalized, err := loadOrNormalize(vectors, cfg, logger)
	if err != nil {
		return nil, err
	}

	dim := 0
	if len(normalized) > 0 {
		dim = len(normalized[0])
	}
	logger.Info().Int("items", len(normalized)).Int("dim", dim).Msg("Embedding index ready")

	return &Index{normalized: normalized, dim: dim, max: cfg.MaxNeighbors}, nil
}

// loadOrEmbed returns the raw embedding matrix, reusing the persisted
// artifact when it matches the catalog size.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func loadOrEmbed(ctx context.Context, texts []string, embedder Embedder, cfg Config, logger zerolog.Logger) ([][]float32, error) {
	if cfg.VectorsPath != "" {
		if vectors, err := readVectors(cfg.VectorsPath, magicVectors); err == nil {
			if len(vectors) == len(texts) {
				logger.Info().Int("items", len(vectors)).Msg("Reusing persisted embeddings")
				return vectors, nil
			}
			logger.Info().
				Int("persisted", len(vectors)).
				Int("catalog", len(texts)).
				Msg("Persisted embeddings stale, re-embedding catalog")
		}
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += cfg.BatchSize {
		end := start + cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		vectors = append(vectors, batch...)
	}

	if cfg.VectorsPath != "" && len(vectors) > 0 {
		if err := writeVectors(cfg.VectorsPath, magicVectors, vectors); err != nil {
			logger.Warn().Err(err).Msg("Failed to persist embeddings")
		}
	}
	return vectors, nil
}

// loadOrNormalize returns the unit-normalized matrix, reusing the persisted
// artifact when it matches.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func loadOrNormalize(vectors [][]float32, cfg Config, logger zerolog.Logger) ([][]float32, error) {
	if cfg.IndexPath != "" {
		if normalized, err := readVectors(cfg.IndexPath, magicIndex); err == nil && len(normalized) == len(vectors) {
			logger.Info().Int("items", len(normalized)).Msg("Reusing persisted index")
			return normalized, nil
		}
	}

	normalized := make([][]float32, len(vectors))
	for i, v := range vectors {
		normalized[i] = normalize(v)
	}

	if cfg.IndexPath != "" && len(normalized) > 0 {
		if err := writeVectors(cfg.IndexPath, magicIndex, normalized); err != nil {
			logger.Warn().Err(err).Msg("Failed to persist index")
		}
	}
	return normalized, nil
}

// Query returns up to k nearest items by cosine distance, ascending.
// Row order breaks distance ties so results are deterministic. k is
// clamped to the index size; k < 1 falls back to the configured
// default neighbor count.
func (idx *Index) Query(vec []float32, k int) []Hit {
	if k < 1 {
		k = idx.max
	}
	if k > idx.Len() {
		k = idx.Len()
	}
	if k < 1 || len(vec) == 0 {
		return nil
	}

	q := normalize(vec)
	hits := make([]Hit, idx.Len())
	for i, v := range idx.normalized {
		hits[i] = Hit{Row: i, Distance: 1 - dot(q, v)}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Distance < hits[b].Distance
	})
	return hits[:k]
}

// normalize returns v scaled to unit length. Zero vectors are returned
// unchanged; their dot product with anything is zero.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// dot computes the inner product over the shared prefix of a and b.
func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
