// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

package sentiment

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ConfidenceThreshold is the minimum model confidence for an aspect
// judgment to be attached during batch enrichment.
const ConfidenceThreshold = 0.6

const (
	// maxAspectsPerText caps the candidate aspects mined from one text.
	maxAspectsPerText = 3

	// minPhraseLen drops degenerate extraction output.
	minPhraseLen = 3
)

// stopAspects are generic phrases that carry no aspect information.
var stopAspects = map[string]struct{}{
	"it":      {},
	"this":    {},
	"that":    {},
	"product": {},
	"item":    {},
}

// filterCandidates normalizes and filters extracted phrases into candidate
// aspects: lowercased, trimmed, stopwords and short phrases dropped,
// deduplicated preserving first occurrence, capped at maxAspectsPerText.
// An empty result falls back to the single aspect "general".
func filterCandidates(phrases []string) []string {
	out := make([]string, 0, maxAspectsPerText)
	seen := make(map[string]struct{}, len(phrases))
	for _, p := range phrases {
		a := strings.ToLower(strings.TrimSpace(p))
		if len(a) < minPhraseLen {
			continue
		}
		if _, stop := stopAspects[a]; stop {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
		if len(out) == maxAspectsPerText {
			break
		}
	}
	if len(out) == 0 {
		return []string{"general"}
	}
	return out
}

// EnricherConfig controls pipeline batching.
type EnricherConfig struct {
	// ChunkSize is the number of texts sent to the extractor per call.
	ChunkSize int

	// BatchSize is the number of pairs sent to the classifier per call.
	BatchSize int
}

// DefaultEnricherConfig returns production batching parameters.
func DefaultEnricherConfig() EnricherConfig {
	return EnricherConfig{ChunkSize: 400, BatchSize: 16}
}

// Enricher runs the aspect enrichment pipeline over catalog texts.
type Enricher struct {
	extractor  Extractor
	classifier Classifier
	cfg        EnricherConfig
	logger     zerolog.Logger
}

// NewEnricher creates an enrichment pipeline.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewEnricher(ex Extractor, cl Classifier, cfg EnricherConfig, logger zerolog.Logger) *Enricher {
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = DefaultEnricherConfig().ChunkSize
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultEnricherConfig().BatchSize
	}
	return &Enricher{
		extractor:  ex,
		classifier: cl,
		cfg:        cfg,
		logger:     logger.With().Str("component", "enricher").Logger(),
	}
}

// EnrichAll produces one aspect map per input text, in input order. Texts
// are processed in fixed-size chunks so memory stays bounded on large
// catalogs. A text whose judgments all fall below ConfidenceThreshold
// receives the neutral default map.
func (e *Enricher) EnrichAll(ctx context.Context, texts []string) ([]AspectMap, error) {
	results := make([]AspectMap, 0, len(texts))

	for start := 0; start < len(texts); start += e.cfg.ChunkSize {
		end := start + e.cfg.ChunkSize
		if end > len(texts) {
			end = len(texts)
		}

		chunk, err := e.enrichChunk(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("enrich chunk [%d:%d]: %w", start, end, err)
		}
		results = append(results, chunk...)

		e.logger.Debug().
			Int("processed", end).
			Int("total", len(texts)).
			Msg("Enrichment chunk complete")
	}

	return results, nil
}

// enrichChunk extracts candidates for one chunk of texts and classifies
// every (text, aspect) pair.
func (e *Enricher) enrichChunk(ctx context.Context, texts []string) ([]AspectMap, error) {
	phrases, err := e.extractor.ExtractPhrases(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("extract phrases: %w", err)
	}
	if len(phrases) != len(texts) {
		return nil, fmt.Errorf("extractor returned %d results for %d texts", len(phrases), len(texts))
	}

	// Flatten into classification pairs, remembering which text each pair
	// belongs to.
	var pairs []Pair
	var owner []int
	for i, text := range texts {
		for _, aspect := range filterCandidates(phrases[i]) {
			pairs = append(pairs, Pair{Text: text, Aspect: aspect})
			owner = append(owner, i)
		}
	}

	predictions, err := e.classifyBatched(ctx, pairs)
	if err != nil {
		return nil, err
	}

	maps := make([]AspectMap, len(texts))
	for i := range maps {
		maps[i] = AspectMap{}
	}
	for j, pred := range predictions {
		if pred.Score > ConfidenceThreshold {
			maps[owner[j]][pairs[j].Aspect] = AspectScore{
				Sentiment:  Parse(pred.Label),
				Confidence: pred.Score,
			}
		}
	}
	for i, m := range maps {
		if len(m) == 0 {
			maps[i] = NeutralDefault()
		}
	}

	return maps, nil
}

// classifyBatched sends pairs to the classifier in sub-batches.
func (e *Enricher) classifyBatched(ctx context.Context, pairs []Pair) ([]Prediction, error) {
	predictions := make([]Prediction, 0, len(pairs))
	for start := 0; start < len(pairs); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(pairs) {
			end = len(pairs)
		}
		batch, err := e.classifier.ClassifyPairs(ctx, pairs[start:end])
		if err != nil {
			return nil, fmt.Errorf("classify pairs [%d:%d]: %w", start, end, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("classifier returned %d predictions for %d pairs", len(batch), end-start)
		}
		predictions = append(predictions, batch...)
	}
	return predictions, nil
}
