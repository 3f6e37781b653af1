// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

// Package rank implements the query-time recommendation pipeline:
// query aspect analysis, semantic retrieval, cross-scorer reranking,
// aspect-sentiment boosting, filtering, and explanation building.
package rank

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/reviewlens/reviewlens/internal/catalog"
	"github.com/reviewlens/reviewlens/internal/embedding"
	"github.com/reviewlens/reviewlens/internal/metrics"
	"github.com/reviewlens/reviewlens/internal/sentiment"
)

// Boost constants. Retrieval boosts are stronger than rerank boosts
// because the reranker already captures most of the relevance signal.
const (
	retrievalPositiveBoost   = 0.15
	retrievalNegativePenalty = 0.05

	rerankPositiveBoost   = 0.10
	rerankNegativePenalty = 0.10

	// queryAspectThreshold gates which mined query aspects count.
	queryAspectThreshold = 0.6

	// fallbackThreshold is deliberately permissive: fallback enrichment
	// only fills presentation gaps and never overwrites existing data.
	fallbackThreshold = 0.1

	// fallbackContextLimit bounds the text sent for fallback analysis.
	fallbackContextLimit = 1000

	// overallSentimentBand is the neutral band for the query's overall
	// sentiment label.
	overallSentimentBand = 0.2
)

// Sort orders accepted by Recommend.
const (
	SortRelevance = "relevance"
	SortSentiment = "sentiment"
	SortName      = "name"
)

// Scorer produces a relevance logit per document for a query.
type Scorer interface {
	ScorePairs(ctx context.Context, query string, documents []string) ([]float64, error)
}

// AspectAnalyzer mines aspect judgments from a single text.
type AspectAnalyzer interface {
	Analyze(ctx context.Context, text string, threshold float64, maxAspects int) (sentiment.AspectMap, error)
}

// Retriever answers nearest-neighbor queries over the unique-item space.
type Retriever interface {
	Query(vec []float32, k int) []embedding.Hit
	Len() int
}

// Request is one recommendation query.
type Request struct {
	Query        string
	TopN         int
	Category     string
	MinSentiment *float64
	SortBy       string
}

// QueryAspect is the analysis of one aspect mined from the query.
type QueryAspect struct {
	Sentiment  sentiment.Sentiment `json:"sentiment"`
	Polarity   string              `json:"polarity"`
	Confidence float64             `json:"confidence"`
}

// OverallSentiment summarizes the query's net sentiment.
type OverallSentiment struct {
	Label      sentiment.Sentiment `json:"label"`
	Confidence float64             `json:"confidence"`
}

// Recommendation is one ranked item.
type Recommendation struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Category       string              `json:"category"`
	Image          string              `json:"image"`
	Score          float64             `json:"score"`
	SentimentScore float64             `json:"sentiment_score"`
	Aspects        sentiment.AspectMap `json:"aspects"`
}

// Explanation tells the user why an item ranked.
type Explanation struct {
	Product        string                   `json:"product"`
	MatchedAspects []string                 `json:"matched_aspects"`
	TopPositive    []sentiment.RankedAspect `json:"top_pos_aspects"`
	TopNegative    []sentiment.RankedAspect `json:"top_neg_aspects"`
	Reason         string                   `json:"reason"`
	AllAspects     sentiment.AspectMap      `json:"all_aspects"`
}

// Response is the full recommendation payload.
type Response struct {
	QueryAnalysis       map[string]QueryAspect `json:"query_analysis"`
	OverallSentiment    OverallSentiment       `json:"overall_sentiment"`
	Results             []Explanation          `json:"results"`
	RawRecommendations  []Recommendation       `json:"raw_recs"`
	AvailableCategories []string               `json:"available_categories"`
}

// Config controls ranking defaults.
type Config struct {
	// DefaultTopN applies when a request does not specify TopN.
	DefaultTopN int
}

// DefaultConfig returns production ranking settings.
func DefaultConfig() Config {
	return Config{DefaultTopN: 10}
}

// Ranker executes recommendation requests against the loaded catalog.
type Ranker struct {
	store    *catalog.Store
	index    Retriever
	embedder embedding.Embedder
	scorer   Scorer
	analyzer AspectAnalyzer
	cfg      Config
	logger   zerolog.Logger
}

// NewRanker wires the ranking pipeline.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRanker(store *catalog.Store, index Retriever, embedder embedding.Embedder, scorer Scorer, analyzer AspectAnalyzer, cfg Config, logger zerolog.Logger) *Ranker {
	if cfg.DefaultTopN < 1 {
		cfg.DefaultTopN = DefaultConfig().DefaultTopN
	}
	return &Ranker{
		store:    store,
		index:    index,
		embedder: embedder,
		scorer:   scorer,
		analyzer: analyzer,
		cfg:      cfg,
		logger:   logger.With().Str("component", "rank").Logger(),
	}
}

// candidate carries per-item state through the pipeline stages.
type candidate struct {
	rec        Recommendation
	rerankText string
}

// Recommend runs the full pipeline for one query.
func (r *Ranker) Recommend(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	defer func() {
		metrics.RankRequestDuration.Observe(time.Since(start).Seconds())
	}()

	if req.TopN < 1 {
		req.TopN = r.cfg.DefaultTopN
	}

	// 1. Analyze the query itself for aspect sentiments.
	queryAspects, err := r.analyzer.Analyze(ctx, req.Query, queryAspectThreshold, 0)
	if err != nil {
		return nil, fmt.Errorf("analyze query: %w", err)
	}
	analysis := buildQueryAnalysis(queryAspects)
	overall := computeOverallSentiment(analysis)

	// 2. Semantic retrieval: fetch 3x candidates for the reranker to work
	// with.
	candidates, err := r.retrieve(ctx, req, queryAspects)
	if err != nil {
		return nil, err
	}
	metrics.RankCandidates.Observe(float64(len(candidates)))

	// 3. Rerank every retrieved candidate with the cross scorer.
	if err := r.rerank(ctx, req.Query, queryAspects, candidates); err != nil {
		return nil, err
	}

	// 4. Order and truncate.
	sortCandidates(candidates, req.SortBy)
	if len(candidates) > req.TopN {
		candidates = candidates[:req.TopN]
	}

	// 5. Fill presentation gaps and build explanations.
	results, err := r.explain(ctx, queryAspects, candidates)
	if err != nil {
		return nil, err
	}

	raw := make([]Recommendation, len(candidates))
	for i := range candidates {
		raw[i] = candidates[i].rec
	}

	r.logger.Debug().
		Str("query", req.Query).
		Int("results", len(raw)).
		Dur("elapsed", time.Since(start)).
		Msg("Recommendation complete")

	return &Response{
		QueryAnalysis:       analysis,
		OverallSentiment:    overall,
		Results:             results,
		RawRecommendations:  raw,
		AvailableCategories: r.store.Categories(),
	}, nil
}

// retrieve embeds the query, fetches nearest neighbors, applies filters,
// and assigns first-pass scores.
func (r *Ranker) retrieve(ctx context.Context, req Request, queryAspects sentiment.AspectMap) ([]*candidate, error) {
	vecs, err := r.embedder.EmbedBatch(ctx, []string{req.Query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 query", len(vecs))
	}

	k := req.TopN * 3
	if k > r.index.Len() {
		k = r.index.Len()
	}
	hits := r.index.Query(vecs[0], k)

	candidates := make([]*candidate, 0, len(hits))
	for _, hit := range hits {
		item := r.store.At(hit.Row)

		if req.Category != "" && !strings.EqualFold(item.Category, req.Category) {
			continue
		}

		sentimentScore := item.Aspects.Score()
		if req.MinSentiment != nil && sentimentScore < *req.MinSentiment {
			continue
		}

		score := sanitize(1-hit.Distance) + aspectBoost(queryAspects, item.Aspects, retrievalPositiveBoost, retrievalNegativePenalty)

		candidates = append(candidates, &candidate{
			rec: Recommendation{
				ID:             item.ID(),
				Name:           item.Name,
				Category:       item.Category,
				Image:          item.Image,
				Score:          sanitize(score),
				SentimentScore: sanitize(sentimentScore),
				Aspects:        item.Aspects,
			},
			rerankText: item.Name + " " + item.Description,
		})
	}
	return candidates, nil
}

// rerank replaces first-pass scores with sigmoid-squashed cross-scorer
// logits plus the (gentler) aspect boost.
func (r *Ranker) rerank(ctx context.Context, query string, queryAspects sentiment.AspectMap, candidates []*candidate) error {
	if len(candidates) == 0 {
		return nil
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.rerankText
	}
	logits, err := r.scorer.ScorePairs(ctx, query, docs)
	if err != nil {
		return fmt.Errorf("rerank candidates: %w", err)
	}
	if len(logits) != len(candidates) {
		return fmt.Errorf("scorer returned %d scores for %d candidates", len(logits), len(candidates))
	}

	for i, c := range candidates {
		boost := aspectBoost(queryAspects, c.rec.Aspects, rerankPositiveBoost, rerankNegativePenalty)
		c.rec.Score = sanitize(sigmoid(logits[i]) + boost)
	}
	return nil
}

// explain runs fallback enrichment on the final picks and builds their
// explanations.
func (r *Ranker) explain(ctx context.Context, queryAspects sentiment.AspectMap, candidates []*candidate) ([]Explanation, error) {
	results := make([]Explanation, 0, len(candidates))
	for _, c := range candidates {
		aspects := c.rec.Aspects.Clone()
		if aspects == nil {
			aspects = sentiment.AspectMap{}
		}

		if err := r.fallbackEnrich(ctx, c, aspects); err != nil {
			return nil, err
		}
		c.rec.Aspects = aspects

		matched := matchedAspects(queryAspects, aspects)
		reason := "Highly recommended."
		if len(matched) > 0 {
			reason = "Winner for: " + strings.Join(matched, ", ")
		}

		results = append(results, Explanation{
			Product:        c.rec.Name,
			MatchedAspects: matched,
			TopPositive:    aspects.TopBySentiment(sentiment.Positive, 4),
			TopNegative:    aspects.TopBySentiment(sentiment.Negative, 2),
			Reason:         reason,
			AllAspects:     aspects,
		})
	}
	return results, nil
}

// fallbackEnrich tops up an item's aspect map when it lacks positive or
// negative judgments. The merge never overwrites existing aspects: the
// fallback runs at a permissive threshold and must not displace the
// higher-confidence pipeline output. The enrichment is response-local and
// is not written back to the store.
func (r *Ranker) fallbackEnrich(ctx context.Context, c *candidate, aspects sentiment.AspectMap) error {
	hasPos, hasNeg := false, false
	for _, s := range aspects {
		switch s.Sentiment {
		case sentiment.Positive:
			hasPos = true
		case sentiment.Negative:
			hasNeg = true
		}
	}
	if hasPos && hasNeg {
		return nil
	}

	item, ok := r.store.Get(c.rec.ID)
	if !ok {
		return nil
	}
	text := item.ReviewText
	if len(text) < 20 {
		text = item.Name + " " + item.Category + " " + item.Description
	}
	if len(text) > fallbackContextLimit {
		cut := fallbackContextLimit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	fresh, err := r.analyzer.Analyze(ctx, text, fallbackThreshold, 0)
	if err != nil {
		return fmt.Errorf("fallback enrichment: %w", err)
	}
	aspects.MergeMissing(fresh)
	return nil
}

// aspectBoost rewards items whose aspects confirm the query's aspects and
// penalizes items that contradict them.
func aspectBoost(queryAspects, itemAspects sentiment.AspectMap, reward, penalty float64) float64 {
	boost := 0.0
	for name := range queryAspects {
		s, ok := itemAspects[name]
		if !ok {
			continue
		}
		switch s.Sentiment {
		case sentiment.Positive:
			boost += reward
		case sentiment.Negative:
			boost -= penalty
		}
	}
	return boost
}

// matchedAspects returns the query aspects the item confirms positively,
// sorted for deterministic output.
func matchedAspects(queryAspects, itemAspects sentiment.AspectMap) []string {
	matched := make([]string, 0, len(queryAspects))
	for name := range queryAspects {
		if s, ok := itemAspects[name]; ok && s.Sentiment == sentiment.Positive {
			matched = append(matched, name)
		}
	}
	sort.Strings(matched)
	return matched
}

// sortCandidates orders candidates by the requested criterion. Sorting is
// stable, so retrieval order breaks ties.
func sortCandidates(candidates []*candidate, sortBy string) {
	switch sortBy {
	case SortSentiment:
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].rec.SentimentScore > candidates[j].rec.SentimentScore
		})
	case SortName:
		sort.SliceStable(candidates, func(i, j int) bool {
			return strings.ToLower(candidates[i].rec.Name) < strings.ToLower(candidates[j].rec.Name)
		})
	default:
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].rec.Score > candidates[j].rec.Score
		})
	}
}

// buildQueryAnalysis formats mined query aspects for the response, with
// confidences rounded to three decimals.
func buildQueryAnalysis(queryAspects sentiment.AspectMap) map[string]QueryAspect {
	analysis := make(map[string]QueryAspect, len(queryAspects))
	for name, s := range queryAspects {
		analysis[name] = QueryAspect{
			Sentiment:  s.Sentiment,
			Polarity:   strings.ToLower(string(s.Sentiment)),
			Confidence: sanitize(round3(s.Confidence)),
		}
	}
	return analysis
}

// computeOverallSentiment collapses the query analysis to a single label:
// the confidence-weighted net polarity, with a neutral band of ±0.2.
func computeOverallSentiment(analysis map[string]QueryAspect) OverallSentiment {
	if len(analysis) == 0 {
		return OverallSentiment{Label: sentiment.Neutral, Confidence: 0.0}
	}

	var signed, total float64
	for _, qa := range analysis {
		switch qa.Polarity {
		case "positive":
			signed += qa.Confidence
		case "negative":
			signed -= qa.Confidence
		}
		total += qa.Confidence
	}
	final := signed / math.Max(total, 1e-6)

	label := sentiment.Neutral
	if final > overallSentimentBand {
		label = sentiment.Positive
	} else if final < -overallSentimentBand {
		label = sentiment.Negative
	}
	return OverallSentiment{Label: label, Confidence: sanitize(round3(math.Abs(final)))}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// sanitize maps NaN and infinities to 0 so every score in the response is
// JSON-representable.
func sanitize(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0.0
	}
	return f
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
