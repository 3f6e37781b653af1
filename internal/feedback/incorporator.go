// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

// Package feedback folds user feedback into the live catalog and schedules
// asynchronous persistence of the updated artifacts.
package feedback

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/reviewlens/reviewlens/internal/catalog"
	"github.com/reviewlens/reviewlens/internal/metrics"
	"github.com/reviewlens/reviewlens/internal/sentiment"
)

// Feedback analysis uses a stricter threshold and a hard aspect cap: only
// judgments the model is sure about may mutate the catalog.
const (
	analysisThreshold  = 0.7
	analysisMaxAspects = 3
)

// Status classifies a feedback submission outcome. All three are normal
// responses, not errors.
type Status string

const (
	// StatusSuccess means aspects were extracted and merged.
	StatusSuccess Status = "success"

	// StatusMid means the feedback was received but nothing confident
	// enough to merge was found.
	StatusMid Status = "mid"

	// StatusError means the target item does not exist.
	StatusError Status = "error"
)

// Result is the outcome of one feedback submission.
type Result struct {
	Status   Status              `json:"status"`
	Message  string              `json:"message"`
	Analysis sentiment.AspectMap `json:"feedback_analysis"`
}

// AspectAnalyzer mines aspect judgments from a single text.
type AspectAnalyzer interface {
	Analyze(ctx context.Context, text string, threshold float64, maxAspects int) (sentiment.AspectMap, error)
}

// Incorporator analyzes feedback text and merges the findings into the
// catalog. The in-memory update happens synchronously; artifact
// persistence is queued and never blocks the caller.
type Incorporator struct {
	store     *catalog.Store
	analyzer  AspectAnalyzer
	persister *Persister
	logger    zerolog.Logger
}

// NewIncorporator wires the feedback path. persister may be nil in tests.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewIncorporator(store *catalog.Store, analyzer AspectAnalyzer, persister *Persister, logger zerolog.Logger) *Incorporator {
	return &Incorporator{
		store:     store,
		analyzer:  analyzer,
		persister: persister,
		logger:    logger.With().Str("component", "feedback").Logger(),
	}
}

// Submit processes one piece of feedback for an item. Identical feedback
// submitted twice converges: the second merge writes the same judgments
// over themselves.
func (inc *Incorporator) Submit(ctx context.Context, itemID, text string) (Result, error) {
	aspects, err := inc.analyzer.Analyze(ctx, text, analysisThreshold, analysisMaxAspects)
	if err != nil {
		return Result{}, fmt.Errorf("analyze feedback: %w", err)
	}

	if len(aspects) == 0 {
		metrics.FeedbackSubmissions.WithLabelValues(string(StatusMid)).Inc()
		return Result{
			Status:   StatusMid,
			Message:  "No specific aspects confidently found, but recorded.",
			Analysis: sentiment.AspectMap{},
		}, nil
	}

	merged, ok := inc.store.UpdateAspects(itemID, aspects)
	if !ok {
		metrics.FeedbackSubmissions.WithLabelValues(string(StatusError)).Inc()
		return Result{
			Status:  StatusError,
			Message: "Product not found",
		}, nil
	}

	if inc.persister != nil {
		inc.persister.EnqueueCacheSnapshot(itemID)
		inc.persister.EnqueueDurableMerge(itemID, merged)
	}

	inc.logger.Info().
		Int("aspects", len(aspects)).
		Msg("Feedback merged into catalog")
	metrics.FeedbackSubmissions.WithLabelValues(string(StatusSuccess)).Inc()

	return Result{
		Status:   StatusSuccess,
		Message:  "Feedback analyzed and product updated.",
		Analysis: aspects.Rounded(2),
	}, nil
}
