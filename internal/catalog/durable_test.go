// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

package catalog

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reviewlens/reviewlens/internal/sentiment"
)

func TestWriteDurableRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.csv")
	rows := sampleRows()

	if err := WriteDurable(path, rows); err != nil {
		t.Fatalf("WriteDurable error: %v", err)
	}

	l := NewLoader(LoaderConfig{SourcePath: path, MinReviewChars: 15}, nil, nil, testLoggerC())
	got, _, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("expected %d rows, got %d", len(rows), len(got))
	}
	if got[0].Aspects["battery"].Sentiment != sentiment.Positive {
		t.Errorf("aspects did not survive the roundtrip: %+v", got[0].Aspects)
	}
	if got[2].Name != "Bolt Kettle" || got[2].Image != "" {
		t.Errorf("row fields did not survive the roundtrip: %+v", got[2])
	}
}

func TestMergeDurableUpdatesMatchingRowsOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.csv")
	rows := sampleRows()
	if err := WriteDurable(path, rows); err != nil {
		t.Fatalf("WriteDurable error: %v", err)
	}

	merged := sentiment.AspectMap{
		"battery": {Sentiment: sentiment.Positive, Confidence: 0.9},
		"price":   {Sentiment: sentiment.Negative, Confidence: 0.75},
	}
	if err := MergeDurable(path, rows[0].ID(), merged); err != nil {
		t.Fatalf("MergeDurable error: %v", err)
	}

	l := NewLoader(LoaderConfig{SourcePath: path, MinReviewChars: 15}, nil, nil, testLoggerC())
	got, _, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	// Both laptop rows updated, kettle row untouched.
	for _, row := range got {
		if row.ID() == rows[0].ID() {
			if row.Aspects["price"].Sentiment != sentiment.Negative {
				t.Errorf("matching row missing merged aspect: %+v", row.Aspects)
			}
		} else {
			if _, ok := row.Aspects["price"]; ok {
				t.Errorf("non-matching row was modified: %+v", row.Aspects)
			}
		}
	}
}

func TestMergeDurableExtendsShortRows(t *testing.T) {
	// A pristine source catalog has no per-row aspect values, so its rows
	// are shorter than the header.
	path := filepath.Join(t.TempDir(), "catalog.csv")
	raw := "itemName,category,description,feature,reviewText,image,aspects_sentiments\n" +
		"Mug,Kitchen,desc,feat\n" +
		"Plate,Kitchen,desc,feat\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	merged := sentiment.AspectMap{
		"handle": {Sentiment: sentiment.Positive, Confidence: 0.8},
	}
	if err := MergeDurable(path, "MugKitchendescfeat", merged); err != nil {
		t.Fatalf("MergeDurable error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d records", len(records))
	}

	mug := records[1]
	if len(mug) < 7 {
		t.Fatalf("matching row was not extended to the aspects column: %v", mug)
	}
	if !strings.Contains(mug[6], "handle") {
		t.Errorf("merged aspects missing from rewritten row: %q", mug[6])
	}
	if len(records[2]) >= 7 && records[2][6] != "" {
		t.Errorf("non-matching row gained aspects: %v", records[2])
	}
}

func TestMergeDurableUnknownItem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.csv")
	if err := WriteDurable(path, sampleRows()); err != nil {
		t.Fatalf("WriteDurable error: %v", err)
	}

	err := MergeDurable(path, "no-such-identity", sentiment.AspectMap{})
	if err == nil {
		t.Error("expected error for unknown item identity")
	}
}

func TestMergeDurableMissingFile(t *testing.T) {
	err := MergeDurable(filepath.Join(t.TempDir(), "absent.csv"), "id", sentiment.AspectMap{})
	if err == nil {
		t.Error("expected error for missing durable catalog")
	}
}
