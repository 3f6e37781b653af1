// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

// Package catalog loads the review-level product catalog, caches the
// enriched form, and serves it to the ranking and analytics layers.
//
// The catalog source is a CSV file where each row is one review of one
// item. Items have no upstream identifier; identity is the concatenation
// of the descriptive fields, so "the same product" means "described
// identically". The store keeps both the full review-level rows (for
// analytics) and a deduplicated item view (for ranking).
package catalog

import (
	"strings"

	"github.com/reviewlens/reviewlens/internal/sentiment"
)

// Item is one catalog row: a single review of a product, enriched with
// aspect-sentiment judgments.
type Item struct {
	Name        string              `json:"name"`
	Category    string              `json:"category"`
	Description string              `json:"description"`
	Feature     string              `json:"feature"`
	ReviewText  string              `json:"review_text"`
	Image       string              `json:"image"`
	Aspects     sentiment.AspectMap `json:"aspects"`
}

// ID derives the item identity from its descriptive fields. Two rows with
// identical name, category, description, and feature are the same item.
func (it *Item) ID() string {
	return it.Name + it.Category + it.Description + it.Feature
}

// EnrichedText builds the embedding input: the descriptive fields followed
// by confident aspect-sentiment tokens. Aspect order is sorted so the text
// is stable across runs.
func (it *Item) EnrichedText() string {
	var b strings.Builder
	b.WriteString(it.Name)
	b.WriteByte(' ')
	b.WriteString(it.Category)
	b.WriteByte(' ')
	b.WriteString(it.Description)
	b.WriteByte(' ')
	b.WriteString(it.Feature)

	for _, name := range it.Aspects.Names() {
		score := it.Aspects[name]
		if score.Confidence > sentiment.ConfidenceThreshold {
			b.WriteByte(' ')
			b.WriteString(name)
			b.WriteByte(' ')
			b.WriteString(string(score.Sentiment))
		}
	}
	return b.String()
}

// Clone returns a deep copy of the item.
func (it *Item) Clone() Item {
	out := *it
	out.Aspects = it.Aspects.Clone()
	return out
}
