// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

package catalog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/reviewlens/reviewlens/internal/sentiment"
)

// durableHeader is the column order of the durable catalog CSV.
var durableHeader = []string{
	colName, colCategory, colDescription, colFeature, colReview, colImage, colAspects,
}

// WriteDurable rewrites the durable catalog CSV from rows. The file is
// written to a temp sibling and renamed so readers never observe a partial
// file.
func WriteDurable(path string, rows []Item) error {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, durableHeader)
	for i := range rows {
		record, err := durableRecord(&rows[i])
		if err != nil {
			return err
		}
		records = append(records, record)
	}
	return writeCSV(path, records)
}

// MergeDurable reads the durable catalog CSV, replaces the aspect column
// for every row matching the item identity, and rewrites the file. Rows
// filtered out of the in-memory dataset (short reviews, truncation) keep
// their existing aspects.
func MergeDurable(path, id string, aspects sentiment.AspectMap) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open durable catalog %s: %w", path, err)
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	closeErr := f.Close()
	if err != nil {
		return fmt.Errorf("read durable catalog %s: %w", path, err)
	}
	if closeErr != nil {
		return fmt.Errorf("close durable catalog %s: %w", path, closeErr)
	}
	if len(records) == 0 {
		return fmt.Errorf("durable catalog %s is empty", path)
	}

	col := headerIndex(records[0])
	aspectCol, ok := col[colAspects]
	if !ok {
		return fmt.Errorf("durable catalog %s is missing column %q", path, colAspects)
	}

	payload, err := json.Marshal(aspects)
	if err != nil {
		return fmt.Errorf("marshal merged aspects: %w", err)
	}

	matched := 0
	for i := 1; i < len(records); i++ {
		record := records[i]
		rowID := field(record, col, colName) + field(record, col, colCategory) +
			field(record, col, colDescription) + field(record, col, colFeature)
		if rowID != id {
			continue
		}
		// Rows without per-row aspect values are shorter than the header;
		// extend in place so the write lands in records.
		for len(record) <= aspectCol {
			record = append(record, "")
		}
		record[aspectCol] = string(payload)
		records[i] = record
		matched++
	}
	if matched == 0 {
		return fmt.Errorf("durable catalog %s has no rows for item", path)
	}

	return writeCSV(path, records)
}

// durableRecord renders one row in durable column order.
func durableRecord(it *Item) ([]string, error) {
	aspects, err := json.Marshal(it.Aspects)
	if err != nil {
		return nil, fmt.Errorf("marshal aspects for %s: %w", it.Name, err)
	}
	return []string{
		it.Name, it.Category, it.Description, it.Feature,
		it.ReviewText, it.Image, string(aspects),
	}, nil
}

// writeCSV writes records atomically via a temp file in the same directory.
func writeCSV(path string, records [][]string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp catalog file: %w", err)
	}
	tmpName := tmp.Name()

	w := csv.NewWriter(tmp)
	writeErr := w.WriteAll(records)
	if writeErr == nil {
		w.Flush()
		writeErr = w.Error()
	}
	if closeErr := tmp.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write durable catalog: %w", writeErr)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace durable catalog %s: %w", path, err)
	}
	return nil
}
