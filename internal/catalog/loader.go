// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/reviewlens/reviewlens/internal/sentiment"
)

// CSV column names of the catalog source file. The aspects column is
// optional; when absent or empty the loader runs the enrichment pipeline.
const (
	colName        = "itemName"
	colCategory    = "category"
	colDescription = "description"
	colFeature     = "feature"
	colReview      = "reviewText"
	colImage       = "image"
	colAspects     = "aspects_sentiments"
)

// RowEnricher produces one aspect map per input text. It is satisfied by
// sentiment.Enricher.
type RowEnricher interface {
	EnrichAll(ctx context.Context, texts []string) ([]sentiment.AspectMap, error)
}

// LoaderConfig controls catalog ingestion.
type LoaderConfig struct {
	// SourcePath is the catalog CSV file.
	SourcePath string

	// MaxRows truncates the dataset after filtering. Zero means unlimited.
	MaxRows int

	// MinReviewChars drops rows whose review text is shorter than this.
	MinReviewChars int

	// SchemaVersion participates in the processed-cache key.
	SchemaVersion int
}

// Loader ingests the catalog CSV, enriching rows with aspect judgments and
// consulting the processed cache to skip repeated enrichment.
type Loader struct {
	cfg      LoaderConfig
	cache    *ProcessedCache
	enricher RowEnricher
	logger   zerolog.Logger
}

// NewLoader creates a catalog loader. cache may be nil, in which case every
// load enriches from scratch.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewLoader(cfg LoaderConfig, cache *ProcessedCache, enricher RowEnricher, logger zerolog.Logger) *Loader {
	return &Loader{
		cfg:      cfg,
		cache:    cache,
		enricher: enricher,
		logger:   logger.With().Str("component", "catalog-loader").Logger(),
	}
}

// Load reads, filters, and enriches the catalog. The returned slice holds
// review-level rows in file order. The second return value is the
// processed-cache key for this snapshot, which feedback persistence reuses
// to refresh the cache in place.
func (l *Loader) Load(ctx context.Context) ([]Item, string, error) {
	rows, err := l.readRows()
	if err != nil {
		return nil, "", err
	}

	key := CacheKey(l.cfg.SourcePath, len(rows), l.cfg.SchemaVersion)

	if l.cache != nil {
		if cached, ok := l.cache.Get(key); ok {
			l.logger.Info().Int("rows", len(cached)).Msg("Loaded processed catalog from cache")
			return cached, key, nil
		}
	}

	if err := l.enrichRows(ctx, rows); err != nil {
		return nil, "", err
	}

	if l.cache != nil {
		if err := l.cache.Put(key, rows); err != nil {
			// Cache failures degrade; the enriched data is already in hand.
			l.logger.Warn().Err(err).Msg("Failed to persist processed catalog snapshot")
		}
	}

	l.logger.Info().Int("rows", len(rows)).Msg("Catalog loaded and enriched")
	return rows, key, nil
}

// readRows parses and filters the CSV source.
func (l *Loader) readRows() ([]Item, error) {
	f, err := os.Open(l.cfg.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", l.cfg.SourcePath, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}
	col := headerIndex(header)
	if _, ok := col[colName]; !ok {
		return nil, fmt.Errorf("catalog %s is missing required column %q", l.cfg.SourcePath, colName)
	}

	var rows []Item
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog row: %w", err)
		}

		item := Item{
			Name:        field(record, col, colName),
			Category:    field(record, col, colCategory),
			Description: field(record, col, colDescription),
			Feature:     field(record, col, colFeature),
			ReviewText:  field(record, col, colReview),
			Image:       field(record, col, colImage),
		}
		if len(item.ReviewText) < l.cfg.MinReviewChars {
			continue
		}
		if raw := field(record, col, colAspects); raw != "" {
			item.Aspects = parseAspects(raw, l.logger)
		}

		rows = append(rows, item)
		if l.cfg.MaxRows > 0 && len(rows) == l.cfg.MaxRows {
			l.logger.Info().Int("max_rows", l.cfg.MaxRows).Msg("Catalog truncated at row limit")
			break
		}
	}

	return rows, nil
}

// enrichRows fills in aspect maps for rows that lack them.
func (l *Loader) enrichRows(ctx context.Context, rows []Item) error {
	var pending []int
	var texts []string
	for i := range rows {
		if rows[i].Aspects == nil {
			pending = append(pending, i)
			texts = append(texts, rows[i].ReviewText)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	if l.enricher == nil {
		return fmt.Errorf("catalog has %d unenriched rows and no enricher is configured", len(pending))
	}

	l.logger.Info().Int("rows", len(pending)).Msg("Enriching catalog rows")
	maps, err := l.enricher.EnrichAll(ctx, texts)
	if err != nil {
		return fmt.Errorf("enrich catalog: %w", err)
	}
	if len(maps) != len(pending) {
		return fmt.Errorf("enricher returned %d maps for %d rows", len(maps), len(pending))
	}
	for j, i := range pending {
		rows[i].Aspects = maps[j]
	}
	return nil
}

// parseAspects decodes a stored aspect JSON blob, normalizing labels.
// Malformed blobs degrade to the neutral default rather than failing the
// whole load.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func parseAspects(raw string, logger zerolog.Logger) sentiment.AspectMap {
	var decoded map[string]struct {
		Sentiment  string  `json:"sentiment"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		logger.Warn().Err(err).Msg("Malformed aspect JSON in catalog row")
		return sentiment.NeutralDefault()
	}
	m := make(sentiment.AspectMap, len(decoded))
	for name, s := range decoded {
		m[name] = sentiment.AspectScore{
			Sentiment:  sentiment.Parse(s.Sentiment),
			Confidence: s.Confidence,
		}
	}
	if len(m) == 0 {
		return sentiment.NeutralDefault()
	}
	return m
}

// headerIndex maps column names to positions.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	return idx
}

// field returns the named column of a record, or "" when the column is
// absent or the record is short.
func field(record []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}
