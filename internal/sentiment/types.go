// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

// Package sentiment defines the aspect-sentiment domain model and the
// enrichment pipeline that attaches aspect judgments to catalog text.
//
// An aspect is a short noun phrase a reviewer cares about ("battery life",
// "build quality"). Each catalog item carries a map from aspect name to a
// sentiment label with a model confidence. The enrichment pipeline mines
// aspects from review text and classifies the (text, aspect) pairs through
// an external model server.
package sentiment

import (
	"context"
	"math"
	"sort"
	"strings"
)

// Sentiment is a polarity label attached to an aspect.
type Sentiment string

const (
	Positive Sentiment = "Positive"
	Negative Sentiment = "Negative"
	Neutral  Sentiment = "Neutral"
)

// Parse normalizes a model-produced label to a known Sentiment.
// Unknown labels map to Neutral.
func Parse(label string) Sentiment {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "positive":
		return Positive
	case "negative":
		return Negative
	default:
		return Neutral
	}
}

// AspectScore is a sentiment judgment with model confidence in [0, 1].
type AspectScore struct {
	Sentiment  Sentiment `json:"sentiment"`
	Confidence float64   `json:"confidence"`
}

// AspectMap maps aspect names to their sentiment judgments.
type AspectMap map[string]AspectScore

// NeutralDefault is the aspect map assigned when enrichment finds nothing
// confidently classifiable.
func NeutralDefault() AspectMap {
	return AspectMap{"general": {Sentiment: Neutral, Confidence: 0.0}}
}

// Counts returns the number of positive, negative, and neutral aspects.
func (m AspectMap) Counts() (pos, neg, neu int) {
	for _, s := range m {
		switch s.Sentiment {
		case Positive:
			pos++
		case Negative:
			neg++
		default:
			neu++
		}
	}
	return pos, neg, neu
}

// Score collapses the map to a scalar in [-1, 1]:
// (positive - negative) / max(total, 1).
func (m AspectMap) Score() float64 {
	pos, neg, neu := m.Counts()
	total := pos + neg + neu
	if total < 1 {
		total = 1
	}
	return float64(pos-neg) / float64(total)
}

// RankedAspect is an aspect name paired with its confidence, used when
// presenting the strongest judgments.
type RankedAspect struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// TopBySentiment returns up to n aspects with the given sentiment, ordered
// by confidence descending. Name ascending breaks confidence ties so the
// result is deterministic.
func (m AspectMap) TopBySentiment(want Sentiment, n int) []RankedAspect {
	ranked := make([]RankedAspect, 0, len(m))
	for name, s := range m {
		if s.Sentiment == want {
			ranked = append(ranked, RankedAspect{Name: name, Score: s.Confidence})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Name < ranked[j].Name
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Names returns the aspect names in sorted order.
func (m AspectMap) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge copies all entries from other into m, overwriting existing keys.
func (m AspectMap) Merge(other AspectMap) {
	for name, s := range other {
		m[name] = s
	}
}

// MergeMissing copies entries from other into m only for aspects m does not
// already hold. Used by fallback enrichment, which must never displace
// judgments made with higher-confidence context.
func (m AspectMap) MergeMissing(other AspectMap) {
	for name, s := range other {
		if _, exists := m[name]; !exists {
			m[name] = s
		}
	}
}

// Clone returns an independent copy of the map.
func (m AspectMap) Clone() AspectMap {
	if m == nil {
		return nil
	}
	out := make(AspectMap, len(m))
	for name, s := range m {
		out[name] = s
	}
	return out
}

// Rounded returns a copy with confidences rounded to the given number of
// decimal places.
func (m AspectMap) Rounded(places int) AspectMap {
	out := make(AspectMap, len(m))
	factor := math.Pow(10, float64(places))
	for name, s := range m {
		s.Confidence = math.Round(s.Confidence*factor) / factor
		out[name] = s
	}
	return out
}

// Pair is a (text, aspect) classification input.
type Pair struct {
	Text   string `json:"text"`
	Aspect string `json:"aspect"`
}

// Prediction is a model judgment for one classification pair.
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Extractor mines candidate aspect phrases from raw texts. Implementations
// return one phrase slice per input text, in input order.
type Extractor interface {
	ExtractPhrases(ctx context.Context, texts []string) ([][]string, error)
}

// Classifier judges sentiment for (text, aspect) pairs. Implementations
// return one prediction per pair, in input order.
type Classifier interface {
	ClassifyPairs(ctx context.Context, pairs []Pair) ([]Prediction, error)
}
