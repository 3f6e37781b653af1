// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

package rank

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/reviewlens/reviewlens/internal/catalog"
	"github.com/reviewlens/reviewlens/internal/embedding"
	"github.com/reviewlens/reviewlens/internal/sentiment"
)

// stubIndex returns hits in a fixed order with fixed distances.
type stubIndex struct {
	hits  []embedding.Hit
	lastK int
}

func (s *stubIndex) Query(_ []float32, k int) []embedding.Hit {
	s.lastK = k
	if k > len(s.hits) {
		k = len(s.hits)
	}
	return s.hits[:k]
}

func (s *stubIndex) Len() int { return len(s.hits) }

// stubEmbedder returns a fixed vector for any text.
type stubEmbedder struct{}

func (stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

// stubScorer returns logits keyed by document prefix.
type stubScorer struct {
	byDoc map[string]float64
	err   error
}

func (s *stubScorer) ScorePairs(_ context.Context, _ string, documents []string) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]float64, len(documents))
	for i, d := range documents {
		out[i] = s.byDoc[strings.Fields(d)[0]]
	}
	return out, nil
}

// stubAnalyzer returns canned query aspects and records fallback calls.
type stubAnalyzer struct {
	queryAspects    sentiment.AspectMap
	fallbackAspects sentiment.AspectMap
	fallbackCalls   int
	fallbackText    string
}

func (s *stubAnalyzer) Analyze(_ context.Context, text string, threshold float64, _ int) (sentiment.AspectMap, error) {
	if threshold == fallbackThreshold {
		s.fallbackCalls++
		s.fallbackText = text
		return s.fallbackAspects.Clone(), nil
	}
	return s.queryAspects.Clone(), nil
}

func rankerFixture(analyzer *stubAnalyzer, scorer *stubScorer) *Ranker {
	rows := []catalog.Item{
		{
			Name: "Alpha", Category: "Electronics", Description: "desc alpha",
			ReviewText: "Review text long enough for fallback context use",
			Aspects: sentiment.AspectMap{
				"battery": {Sentiment: sentiment.Positive, Confidence: 0.9},
				"price":   {Sentiment: sentiment.Negative, Confidence: 0.8},
			},
		},
		{
			Name: "Beta", Category: "Electronics", Description: "desc beta",
			ReviewText: "Another long review text used as fallback context",
			Aspects: sentiment.AspectMap{
				"battery": {Sentiment: sentiment.Negative, Confidence: 0.85},
				"screen":  {Sentiment: sentiment.Positive, Confidence: 0.7},
			},
		},
		{
			Name: "Gamma", Category: "Kitchen", Description: "desc gamma",
			ReviewText: "Kitchen item review that is long enough to keep",
			Aspects: sentiment.AspectMap{
				"speed": {Sentiment: sentiment.Positive, Confidence: 0.95},
			},
		},
	}
	store := catalog.NewStore(rows)
	index := &stubIndex{hits: []embedding.Hit{
		{Row: 0, Distance: 0.1},
		{Row: 1, Distance: 0.2},
		{Row: 2, Distance: 0.3},
	}}
	return rankerWithIndex(analyzer, scorer, store, index)
}

func rankerWithIndex(analyzer *stubAnalyzer, scorer *stubScorer, store *catalog.Store, index *stubIndex) *Ranker {
	return NewRanker(store, index, stubEmbedder{}, scorer, analyzer, DefaultConfig(), zerolog.New(&bytes.Buffer{}))
}

func neutralScorer() *stubScorer {
	return &stubScorer{byDoc: map[string]float64{"Alpha": 0, "Beta": 0, "Gamma": 0}}
}

func TestRecommendBoostRanksConfirmingItemFirst(t *testing.T) {
	// The query cares about battery. Alpha confirms it (+0.10), Beta
	// contradicts it (-0.10); equal scorer logits otherwise.
	analyzer := &stubAnalyzer{queryAspects: sentiment.AspectMap{
		"battery": {Sentiment: sentiment.Positive, Confidence: 0.9},
	}}
	r := rankerFixture(analyzer, neutralScorer())

	resp, err := r.Recommend(context.Background(), Request{Query: "good battery", TopN: 3})
	if err != nil {
		t.Fatalf("Recommend error: %v", err)
	}
	if len(resp.RawRecommendations) != 3 {
		t.Fatalf("expected 3 recommendations, got %d", len(resp.RawRecommendations))
	}
	if resp.RawRecommendations[0].Name != "Alpha" {
		t.Errorf("expected boosted Alpha first, got %s", resp.RawRecommendations[0].Name)
	}
	if resp.RawRecommendations[2].Name != "Beta" {
		t.Errorf("expected penalized Beta last, got %s", resp.RawRecommendations[2].Name)
	}

	// Scores are sigmoid(0)=0.5 plus/minus the rerank boost.
	if got := resp.RawRecommendations[0].Score; math.Abs(got-0.6) > 1e-9 {
		t.Errorf("Alpha score = %g, want 0.6", got)
	}
	if got := resp.RawRecommendations[2].Score; math.Abs(got-0.4) > 1e-9 {
		t.Errorf("Beta score = %g, want 0.4", got)
	}
}

func TestRecommendCategoryFilter(t *testing.T) {
	analyzer := &stubAnalyzer{}
	r := rankerFixture(analyzer, neutralScorer())

	resp, err := r.Recommend(context.Background(), Request{Query: "anything", TopN: 3, Category: "kitchen"})
	if err != nil {
		t.Fatalf("Recommend error: %v", err)
	}
	if len(resp.RawRecommendations) != 1 || resp.RawRecommendations[0].Name != "Gamma" {
		t.Errorf("expected only Gamma for kitchen filter, got %+v", resp.RawRecommendations)
	}
}

func TestRecommendMinSentimentFilter(t *testing.T) {
	analyzer := &stubAnalyzer{}
	r := rankerFixture(analyzer, neutralScorer())

	// Alpha: (1-1)/2 = 0, Beta: 0, Gamma: 1.
	min := 0.5
	resp, err := r.Recommend(context.Background(), Request{Query: "q", TopN: 3, MinSentiment: &min})
	if err != nil {
		t.Fatalf("Recommend error: %v", err)
	}
	if len(resp.RawRecommendations) != 1 || resp.RawRecommendations[0].Name != "Gamma" {
		t.Errorf("expected only Gamma above sentiment 0.5, got %+v", resp.RawRecommendations)
	}
}

func TestRecommendSortModes(t *testing.T) {
	analyzer := &stubAnalyzer{}
	scorer := &stubScorer{byDoc: map[string]float64{"Alpha": 2, "Beta": 1, "Gamma": 0}}
	r := rankerFixture(analyzer, scorer)

	names := func(resp *Response) []string {
		out := make([]string, len(resp.RawRecommendations))
		for i, rec := range resp.RawRecommendations {
			out[i] = rec.Name
		}
		return out
	}

	resp, err := r.Recommend(context.Background(), Request{Query: "q", TopN: 3, SortBy: SortSentiment})
	if err != nil {
		t.Fatalf("Recommend error: %v", err)
	}
	// Gamma has sentiment 1, Alpha and Beta both 0; stable sort keeps
	// retrieval order for the tie.
	if got := names(resp); !reflect.DeepEqual(got, []string{"Gamma", "Alpha", "Beta"}) {
		t.Errorf("sentiment sort order = %v", got)
	}

	resp, err = r.Recommend(context.Background(), Request{Query: "q", TopN: 3, SortBy: SortName})
	if err != nil {
		t.Fatalf("Recommend error: %v", err)
	}
	if got := names(resp); !reflect.DeepEqual(got, []string{"Alpha", "Beta", "Gamma"}) {
		t.Errorf("name sort order = %v", got)
	}

	resp, err = r.Recommend(context.Background(), Request{Query: "q", TopN: 3, SortBy: SortRelevance})
	if err != nil {
		t.Fatalf("Recommend error: %v", err)
	}
	if got := names(resp); !reflect.DeepEqual(got, []string{"Alpha", "Beta", "Gamma"}) {
		t.Errorf("relevance sort order = %v", got)
	}
}

func TestRecommendTopNTruncation(t *testing.T) {
	analyzer := &stubAnalyzer{}
	r := rankerFixture(analyzer, neutralScorer())

	resp, err := r.Recommend(context.Background(), Request{Query: "q", TopN: 2})
	if err != nil {
		t.Fatalf("Recommend error: %v", err)
	}
	if len(resp.RawRecommendations) != 2 {
		t.Errorf("expected 2 recommendations, got %d", len(resp.RawRecommendations))
	}
	if len(resp.Results) != 2 {
		t.Errorf("expected 2 explanations, got %d", len(resp.Results))
	}
}

func TestRecommendRetrievalDepth(t *testing.T) {
	const n = 60
	rows := make([]catalog.Item, n)
	hits := make([]embedding.Hit, n)
	for i := 0; i < n; i++ {
		rows[i] = catalog.Item{
			Name:       fmt.Sprintf("Gadget %02d", i),
			Category:   "Electronics",
			ReviewText: "A review long enough to survive the length filter",
			Aspects:    sentiment.NeutralDefault(),
		}
		hits[i] = embedding.Hit{Row: i, Distance: float64(i) / n}
	}
	index := &stubIndex{hits: hits}
	r := rankerWithIndex(&stubAnalyzer{}, &stubScorer{}, catalog.NewStore(rows), index)

	// Three candidates per requested result, past any retrieval default.
	resp, err := r.Recommend(context.Background(), Request{Query: "q", TopN: 18})
	if err != nil {
		t.Fatalf("Recommend error: %v", err)
	}
	if index.lastK != 54 {
		t.Errorf("expected 54 candidates requested for top_n 18, got %d", index.lastK)
	}
	if len(resp.RawRecommendations) != 18 {
		t.Errorf("expected 18 recommendations, got %d", len(resp.RawRecommendations))
	}

	// The candidate pool never exceeds the catalog.
	if _, err := r.Recommend(context.Background(), Request{Query: "q", TopN: 25}); err != nil {
		t.Fatalf("Recommend error: %v", err)
	}
	if index.lastK != n {
		t.Errorf("expected candidate request clamped to catalog size %d, got %d", n, index.lastK)
	}
}

func TestRecommendExplanations(t *testing.T) {
	analyzer := &stubAnalyzer{queryAspects: sentiment.AspectMap{
		"battery": {Sentiment: sentiment.Positive, Confidence: 0.9},
	}}
	r := rankerFixture(analyzer, neutralScorer())

	resp, err := r.Recommend(context.Background(), Request{Query: "battery", TopN: 3})
	if err != nil {
		t.Fatalf("Recommend error: %v", err)
	}

	top := resp.Results[0]
	if top.Product != "Alpha" {
		t.Fatalf("expected Alpha first, got %s", top.Product)
	}
	if !reflect.DeepEqual(top.MatchedAspects, []string{"battery"}) {
		t.Errorf("matched aspects = %v", top.MatchedAspects)
	}
	if top.Reason != "Winner for: battery" {
		t.Errorf("reason = %q", top.Reason)
	}

	// Gamma confirms nothing from the query.
	for _, res := range resp.Results {
		if res.Product == "Gamma" && res.Reason != "Highly recommended." {
			t.Errorf("expected generic reason for Gamma, got %q", res.Reason)
		}
	}
}

func TestRecommendFallbackEnrichment(t *testing.T) {
	// Gamma has no negative aspects, so fallback enrichment runs for it
	// and must not overwrite its existing positive judgment.
	analyzer := &stubAnalyzer{
		fallbackAspects: sentiment.AspectMap{
			"speed": {Sentiment: sentiment.Negative, Confidence: 0.2},
			"noise": {Sentiment: sentiment.Negative, Confidence: 0.15},
		},
	}
	r := rankerFixture(analyzer, neutralScorer())

	resp, err := r.Recommend(context.Background(), Request{Query: "q", TopN: 3, Category: "Kitchen"})
	if err != nil {
		t.Fatalf("Recommend error: %v", err)
	}
	if analyzer.fallbackCalls == 0 {
		t.Fatal("expected fallback enrichment to run")
	}

	aspects := resp.Results[0].AllAspects
	if aspects["speed"].Sentiment != sentiment.Positive {
		t.Errorf("fallback overwrote existing aspect: %+v", aspects["speed"])
	}
	if aspects["noise"].Sentiment != sentiment.Negative {
		t.Errorf("fallback did not add missing aspect: %+v", aspects)
	}

	// The store itself is untouched by fallback enrichment.
	item, _ := r.store.Get(resp.RawRecommendations[0].ID)
	if _, leaked := item.Aspects["noise"]; leaked {
		t.Error("fallback enrichment leaked into the store")
	}
}

func TestRecommendFallbackContextRuneBoundary(t *testing.T) {
	// A multi-byte rune straddles the context limit; the trimmed text must
	// stay valid UTF-8.
	review := strings.Repeat("a", fallbackContextLimit-1) + strings.Repeat("é", 30)
	rows := []catalog.Item{{
		Name:       "Accented",
		Category:   "Electronics",
		ReviewText: review,
		Aspects:    sentiment.NeutralDefault(),
	}}
	index := &stubIndex{hits: []embedding.Hit{{Row: 0, Distance: 0.1}}}
	analyzer := &stubAnalyzer{}
	r := rankerWithIndex(analyzer, &stubScorer{}, catalog.NewStore(rows), index)

	if _, err := r.Recommend(context.Background(), Request{Query: "q", TopN: 1}); err != nil {
		t.Fatalf("Recommend error: %v", err)
	}
	if analyzer.fallbackCalls == 0 {
		t.Fatal("expected fallback enrichment to run")
	}
	if len(analyzer.fallbackText) > fallbackContextLimit {
		t.Errorf("fallback context length %d exceeds limit", len(analyzer.fallbackText))
	}
	if !utf8.ValidString(analyzer.fallbackText) {
		t.Errorf("fallback context is not valid UTF-8: %q", analyzer.fallbackText[len(analyzer.fallbackText)-4:])
	}
}

func TestRecommendQueryAnalysisAndOverallSentiment(t *testing.T) {
	analyzer := &stubAnalyzer{queryAspects: sentiment.AspectMap{
		"battery": {Sentiment: sentiment.Positive, Confidence: 0.9},
		"price":   {Sentiment: sentiment.Negative, Confidence: 0.3},
	}}
	r := rankerFixture(analyzer, neutralScorer())

	resp, err := r.Recommend(context.Background(), Request{Query: "q", TopN: 1})
	if err != nil {
		t.Fatalf("Recommend error: %v", err)
	}

	qa := resp.QueryAnalysis["battery"]
	if qa.Polarity != "positive" || qa.Confidence != 0.9 {
		t.Errorf("unexpected query analysis %+v", qa)
	}

	// (0.9 - 0.3) / 1.2 = 0.5 > 0.2 band.
	if resp.OverallSentiment.Label != sentiment.Positive {
		t.Errorf("overall label = %s, want Positive", resp.OverallSentiment.Label)
	}
	if resp.OverallSentiment.Confidence != 0.5 {
		t.Errorf("overall confidence = %g, want 0.5", resp.OverallSentiment.Confidence)
	}
}

func TestRecommendEmptyQueryAnalysisIsNeutral(t *testing.T) {
	analyzer := &stubAnalyzer{}
	r := rankerFixture(analyzer, neutralScorer())

	resp, err := r.Recommend(context.Background(), Request{Query: "q", TopN: 1})
	if err != nil {
		t.Fatalf("Recommend error: %v", err)
	}
	if resp.OverallSentiment.Label != sentiment.Neutral || resp.OverallSentiment.Confidence != 0 {
		t.Errorf("expected neutral overall sentiment, got %+v", resp.OverallSentiment)
	}
	if len(resp.QueryAnalysis) != 0 {
		t.Errorf("expected empty query analysis, got %+v", resp.QueryAnalysis)
	}
}

func TestRecommendNoCandidates(t *testing.T) {
	analyzer := &stubAnalyzer{}
	r := rankerFixture(analyzer, neutralScorer())

	resp, err := r.Recommend(context.Background(), Request{Query: "q", TopN: 3, Category: "nonexistent"})
	if err != nil {
		t.Fatalf("Recommend error: %v", err)
	}
	if len(resp.RawRecommendations) != 0 || len(resp.Results) != 0 {
		t.Errorf("expected empty results, got %+v", resp)
	}
	if !reflect.DeepEqual(resp.AvailableCategories, []string{"Electronics", "Kitchen"}) {
		t.Errorf("available categories = %v", resp.AvailableCategories)
	}
}

func TestRecommendSanitizesNonFiniteScores(t *testing.T) {
	analyzer := &stubAnalyzer{}
	scorer := &stubScorer{byDoc: map[string]float64{
		"Alpha": math.NaN(), "Beta": 0, "Gamma": 0,
	}}
	r := rankerFixture(analyzer, scorer)

	resp, err := r.Recommend(context.Background(), Request{Query: "q", TopN: 3})
	if err != nil {
		t.Fatalf("Recommend error: %v", err)
	}
	for _, rec := range resp.RawRecommendations {
		if math.IsNaN(rec.Score) || math.IsInf(rec.Score, 0) {
			t.Errorf("non-finite score leaked for %s: %g", rec.Name, rec.Score)
		}
	}
}

func TestRecommendScorerFailureAborts(t *testing.T) {
	wantErr := errors.New("scorer offline")
	analyzer := &stubAnalyzer{}
	r := rankerFixture(analyzer, &stubScorer{err: wantErr})

	if _, err := r.Recommend(context.Background(), Request{Query: "q", TopN: 3}); !errors.Is(err, wantErr) {
		t.Errorf("expected scorer error, got %v", err)
	}
}

func TestComputeOverallSentimentBands(t *testing.T) {
	tests := []struct {
		name     string
		analysis map[string]QueryAspect
		want     sentiment.Sentiment
	}{
		{"positive", map[string]QueryAspect{
			"a": {Polarity: "positive", Confidence: 0.9},
		}, sentiment.Positive},
		{"negative", map[string]QueryAspect{
			"a": {Polarity: "negative", Confidence: 0.9},
		}, sentiment.Negative},
		{"inside neutral band", map[string]QueryAspect{
			"a": {Polarity: "positive", Confidence: 0.5},
			"b": {Polarity: "negative", Confidence: 0.45},
		}, sentiment.Neutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := computeOverallSentiment(tt.analysis); got.Label != tt.want {
				t.Errorf("label = %s, want %s", got.Label, tt.want)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	if sanitize(math.NaN()) != 0 || sanitize(math.Inf(1)) != 0 || sanitize(math.Inf(-1)) != 0 {
		t.Error("sanitize must map non-finite values to 0")
	}
	if sanitize(1.5) != 1.5 {
		t.Error("sanitize must pass finite values through")
	}
}
