// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

package inference

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/reviewlens/reviewlens/internal/sentiment"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.RequestsPerSecond = 1000
	cfg.Burst = 1000
	return NewClient(cfg, zerolog.New(&bytes.Buffer{}))
}

func TestEmbedBatch(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Texts) != 2 {
			t.Errorf("expected 2 texts, got %d", len(req.Texts))
		}
		json.NewEncoder(w).Encode(embedResponse{
			Vectors: [][]float64{{0.1, 0.2}, {0.3, 0.4}},
		})
	}))

	vectors, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch error: %v", err)
	}
	if len(vectors) != 2 || len(vectors[0]) != 2 {
		t.Fatalf("unexpected vectors %v", vectors)
	}
	if vectors[1][0] != float32(0.3) {
		t.Errorf("expected float32 conversion, got %v", vectors[1][0])
	}
}

func TestEmbedBatchCountMismatch(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Vectors: [][]float64{{0.1}}})
	}))

	if _, err := c.EmbedBatch(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("expected count mismatch error")
	}
}

func TestExtractPhrases(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/extract" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(extractResponse{
			Phrases: [][]string{{"battery life", "price"}},
		})
	}))

	phrases, err := c.ExtractPhrases(context.Background(), []string{"long review"})
	if err != nil {
		t.Fatalf("ExtractPhrases error: %v", err)
	}
	if len(phrases) != 1 || phrases[0][0] != "battery life" {
		t.Errorf("unexpected phrases %v", phrases)
	}
}

func TestClassifyPairs(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req classifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Pairs[0].Aspect != "battery" {
			t.Errorf("unexpected pair %+v", req.Pairs[0])
		}
		json.NewEncoder(w).Encode(classifyResponse{
			Predictions: []sentiment.Prediction{{Label: "Positive", Score: 0.91}},
		})
	}))

	preds, err := c.ClassifyPairs(context.Background(), []sentiment.Pair{{Text: "t", Aspect: "battery"}})
	if err != nil {
		t.Fatalf("ClassifyPairs error: %v", err)
	}
	if preds[0].Label != "Positive" || preds[0].Score != 0.91 {
		t.Errorf("unexpected predictions %v", preds)
	}
}

func TestScorePairs(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req scoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Query != "laptop" || len(req.Documents) != 2 {
			t.Errorf("unexpected request %+v", req)
		}
		json.NewEncoder(w).Encode(scoreResponse{Scores: []float64{1.5, -0.2}})
	}))

	scores, err := c.ScorePairs(context.Background(), "laptop", []string{"d1", "d2"})
	if err != nil {
		t.Fatalf("ScorePairs error: %v", err)
	}
	if scores[0] != 1.5 || scores[1] != -0.2 {
		t.Errorf("unexpected scores %v", scores)
	}
}

func TestServerErrorIsUnavailable(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))

	_, err := c.ExtractPhrases(context.Background(), []string{"x"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls int
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		http.Error(w, "down", http.StatusBadGateway)
	}))

	// Drive enough failures to trip the breaker (>=10 requests, >=60% failures).
	for i := 0; i < 12; i++ {
		_, _ = c.ScorePairs(context.Background(), "q", []string{"d"})
	}

	before := calls
	_, err := c.ScorePairs(context.Background(), "q", []string{"d"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable from open breaker, got %v", err)
	}
	if calls != before {
		t.Error("expected open breaker to short-circuit without an HTTP call")
	}
}

func TestPing(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))

	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping error: %v", err)
	}
}
