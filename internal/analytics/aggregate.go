// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

// Package analytics derives dashboard views from the live catalog: a
// corpus-wide aspect summary and side-by-side product comparisons.
package analytics

import (
	"sort"

	"github.com/reviewlens/reviewlens/internal/catalog"
	"github.com/reviewlens/reviewlens/internal/sentiment"
)

// Result list caps. The dashboard shows a fixed-size leaderboard.
const (
	topAspectLimit   = 15
	topCategoryLimit = 10
)

// AspectFrequency counts how often one aspect appears across the unique
// catalog, split by judgment.
type AspectFrequency struct {
	Name     string `json:"name"`
	Positive int    `json:"positive"`
	Negative int    `json:"negative"`
	Neutral  int    `json:"neutral"`
	Total    int    `json:"total"`
}

// CategoryStat counts items and aspect judgments within one category.
type CategoryStat struct {
	Name     string `json:"name"`
	Count    int    `json:"count"`
	Positive int    `json:"positive"`
	Negative int    `json:"negative"`
}

// DatasetInfo reports the raw corpus size behind the summary.
type DatasetInfo struct {
	TotalReviews   int `json:"total_reviews"`
	UniqueProducts int `json:"unique_products"`
}

// Summary is the aggregate dashboard payload.
type Summary struct {
	TotalProducts         int                         `json:"total_products"`
	TotalAspects          int                         `json:"total_aspects"`
	SentimentDistribution map[sentiment.Sentiment]int `json:"sentiment_distribution"`
	TopAspects            []AspectFrequency           `json:"top_aspects"`
	TopCategories         []CategoryStat              `json:"top_categories"`
	Dataset               DatasetInfo                 `json:"dataset_info"`
}

// Aggregate walks the unique catalog once and builds the dashboard
// summary. Leaderboards break ties on name so the output is stable
// between calls.
func Aggregate(store *catalog.Store) Summary {
	byAspect := make(map[string]*AspectFrequency)
	byCategory := make(map[string]*CategoryStat)
	distribution := map[sentiment.Sentiment]int{
		sentiment.Positive: 0,
		sentiment.Negative: 0,
		sentiment.Neutral:  0,
	}

	store.ForEachUnique(func(it *catalog.Item) {
		category := it.Category
		if category == "" {
			category = "Unknown"
		}
		cat := byCategory[category]
		if cat == nil {
			cat = &CategoryStat{Name: category}
			byCategory[category] = cat
		}
		cat.Count++

		for name, score := range it.Aspects {
			freq := byAspect[name]
			if freq == nil {
				freq = &AspectFrequency{Name: name}
				byAspect[name] = freq
			}
			switch score.Sentiment {
			case sentiment.Positive:
				freq.Positive++
				cat.Positive++
			case sentiment.Negative:
				freq.Negative++
				cat.Negative++
			default:
				freq.Neutral++
			}
			freq.Total++
			distribution[score.Sentiment]++
		}
	})

	topAspects := make([]AspectFrequency, 0, len(byAspect))
	for _, freq := range byAspect {
		topAspects = append(topAspects, *freq)
	}
	sort.Slice(topAspects, func(i, j int) bool {
		if topAspects[i].Total != topAspects[j].Total {
			return topAspects[i].Total > topAspects[j].Total
		}
		return topAspects[i].Name < topAspects[j].Name
	})
	if len(topAspects) > topAspectLimit {
		topAspects = topAspects[:topAspectLimit]
	}

	topCategories := make([]CategoryStat, 0, len(byCategory))
	for _, cat := range byCategory {
		topCategories = append(topCategories, *cat)
	}
	sort.Slice(topCategories, func(i, j int) bool {
		if topCategories[i].Count != topCategories[j].Count {
			return topCategories[i].Count > topCategories[j].Count
		}
		return topCategories[i].Name < topCategories[j].Name
	})
	if len(topCategories) > topCategoryLimit {
		topCategories = topCategories[:topCategoryLimit]
	}

	return Summary{
		TotalProducts:         store.UniqueCount(),
		TotalAspects:          len(byAspect),
		SentimentDistribution: distribution,
		TopAspects:            topAspects,
		TopCategories:         topCategories,
		Dataset: DatasetInfo{
			TotalReviews:   store.RowCount(),
			UniqueProducts: store.UniqueCount(),
		},
	}
}
