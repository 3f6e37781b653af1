// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

package sentiment

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Analyzer classifies a single free-form text on demand. It shares the
// candidate filtering rules with the batch pipeline but takes its threshold
// per call: query analysis, feedback intake, and fallback enrichment each
// demand different confidence floors.
type Analyzer struct {
	extractor  Extractor
	classifier Classifier
	logger     zerolog.Logger
}

// NewAnalyzer creates a single-text analyzer.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewAnalyzer(ex Extractor, cl Classifier, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		extractor:  ex,
		classifier: cl,
		logger:     logger.With().Str("component", "analyzer").Logger(),
	}
}

// Analyze mines aspects from text and returns judgments whose confidence
// exceeds threshold. maxAspects further caps the candidate list when
// positive; the mining cap of three candidates always applies. The result
// may be empty; callers decide what an empty analysis means.
func (a *Analyzer) Analyze(ctx context.Context, text string, threshold float64, maxAspects int) (AspectMap, error) {
	phrases, err := a.extractor.ExtractPhrases(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("extract phrases: %w", err)
	}
	if len(phrases) != 1 {
		return nil, fmt.Errorf("extractor returned %d results for 1 text", len(phrases))
	}

	candidates := filterCandidates(phrases[0])
	if maxAspects > 0 && len(candidates) > maxAspects {
		candidates = candidates[:maxAspects]
	}

	pairs := make([]Pair, len(candidates))
	for i, aspect := range candidates {
		pairs[i] = Pair{Text: text, Aspect: aspect}
	}

	predictions, err := a.classifier.ClassifyPairs(ctx, pairs)
	if err != nil {
		return nil, fmt.Errorf("classify pairs: %w", err)
	}
	if len(predictions) != len(pairs) {
		return nil, fmt.Errorf("classifier returned %d predictions for %d pairs", len(predictions), len(pairs))
	}

	result := AspectMap{}
	for i, pred := range predictions {
		if pred.Score > threshold {
			result[pairs[i].Aspect] = AspectScore{
				Sentiment:  Parse(pred.Label),
				Confidence: pred.Score,
			}
		}
	}

	a.logger.Debug().
		Int("candidates", len(candidates)).
		Int("kept", len(result)).
		Float64("threshold", threshold).
		Msg("Text analysis complete")

	return result, nil
}
