// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

package analytics

import (
	"errors"
	"fmt"
	"sort"

	"github.com/reviewlens/reviewlens/internal/catalog"
	"github.com/reviewlens/reviewlens/internal/sentiment"
)

// Comparison bounds. The error messages are part of the response contract
// and surface verbatim to clients.
//
//nolint:staticcheck // capitalized messages are part of the response contract
var (
	ErrTooFewProducts  = errors.New("At least 2 products required for comparison")
	ErrTooManyProducts = errors.New("Maximum 4 products can be compared at once")
)

// Per-product aspect caps mirror the explanation shape used by ranked
// results, so each panel shows the same kind of highlights.
const (
	comparePositiveLimit = 4
	compareNegativeLimit = 2
)

// ComparedProduct is one panel in a side-by-side comparison.
type ComparedProduct struct {
	ID              string                   `json:"id"`
	Name            string                   `json:"name"`
	Category        string                   `json:"category"`
	Image           string                   `json:"image"`
	AllAspects      sentiment.AspectMap      `json:"all_aspects"`
	PositiveAspects []sentiment.RankedAspect `json:"positive_aspects"`
	NegativeAspects []sentiment.RankedAspect `json:"negative_aspects"`
	PositiveCount   int                      `json:"positive_count"`
	NegativeCount   int                      `json:"negative_count"`
	TotalAspects    int                      `json:"total_aspects"`
}

// MatrixCell is one product's judgment of one aspect. Sentiment is "N/A"
// when the product has no judgment for that aspect.
type MatrixCell struct {
	Sentiment  string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
}

// Comparison is the side-by-side payload. Each aspect_matrix row maps
// "aspect" to the aspect name and "product_<i>" to that product's cell,
// with i following the order of Products.
type Comparison struct {
	Products        []ComparedProduct `json:"products"`
	AspectMatrix    []map[string]any  `json:"aspect_matrix"`
	ComparisonCount int               `json:"comparison_count"`
}

// Compare builds a side-by-side view of 2 to 4 products. IDs that do not
// resolve to a catalog item are skipped rather than failing the whole
// comparison.
func Compare(store *catalog.Store, productIDs []string) (Comparison, error) {
	if len(productIDs) < 2 {
		return Comparison{}, ErrTooFewProducts
	}
	if len(productIDs) > 4 {
		return Comparison{}, ErrTooManyProducts
	}

	products := make([]ComparedProduct, 0, len(productIDs))
	union := make(map[string]struct{})

	for _, id := range productIDs {
		item, ok := store.Get(id)
		if !ok {
			continue
		}
		aspects := item.Aspects.Clone()
		for name := range aspects {
			union[name] = struct{}{}
		}

		pos, neg, _ := aspects.Counts()
		products = append(products, ComparedProduct{
			ID:              id,
			Name:            item.Name,
			Category:        item.Category,
			Image:           item.Image,
			AllAspects:      aspects,
			PositiveAspects: aspects.TopBySentiment(sentiment.Positive, comparePositiveLimit),
			NegativeAspects: aspects.TopBySentiment(sentiment.Negative, compareNegativeLimit),
			PositiveCount:   pos,
			NegativeCount:   neg,
			TotalAspects:    len(aspects),
		})
	}

	names := make([]string, 0, len(union))
	for name := range union {
		names = append(names, name)
	}
	sort.Strings(names)

	matrix := make([]map[string]any, 0, len(names))
	for _, name := range names {
		row := map[string]any{"aspect": name}
		for i := range products {
			cell := MatrixCell{Sentiment: "N/A"}
			if score, ok := products[i].AllAspects[name]; ok {
				cell = MatrixCell{
					Sentiment:  string(score.Sentiment),
					Confidence: score.Confidence,
				}
			}
			row[fmt.Sprintf("product_%d", i)] = cell
		}
		matrix = append(matrix, row)
	}

	return Comparison{
		Products:        products,
		AspectMatrix:    matrix,
		ComparisonCount: len(products),
	}, nil
}
