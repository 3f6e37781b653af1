// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

// Package inference is the HTTP client for the model server that backs
// aspect extraction, pair classification, per-query relevance scoring, and
// text embedding. All calls are rate limited and guarded by a circuit
// breaker so a degraded model server cannot cascade into the request path.
package inference

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/reviewlens/reviewlens/internal/metrics"
	"github.com/reviewlens/reviewlens/internal/sentiment"
)

// ErrUnavailable marks failures where the model server could not serve the
// request at all: transport errors, 5xx responses, and an open breaker.
// Callers map it to an external-service failure at the API boundary.
var ErrUnavailable = errors.New("model server unavailable")

// Config controls the model-server client.
type Config struct {
	// BaseURL is the model server root, e.g. "http://localhost:9090".
	BaseURL string

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// RequestsPerSecond and Burst configure client-side rate limiting.
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns production client settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "http://localhost:9090",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 20,
		Burst:             10,
	}
}

// Client talks to the model server.
type Client struct {
	baseURL string
	httpc   *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// Interface compliance.
var (
	_ sentiment.Extractor  = (*Client)(nil)
	_ sentiment.Classifier = (*Client)(nil)
)

// NewClient creates a model-server client.
//
// Circuit breaker configuration: opens after 60% failures over at least 10
// requests in a 1 minute window, allows 3 trial requests after 30 seconds.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultConfig().RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultConfig().Burst
	}

	clientLogger := logger.With().Str("component", "inference").Logger()

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "model-server",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			metrics.InferenceBreakerState.Set(breakerStateValue(to))
			clientLogger.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Model server circuit breaker state change")
		},
	})

	return &Client{
		baseURL: cfg.BaseURL,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:  clientLogger,
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}

// embedRequest and friends are the wire DTOs for the model server.
type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Vectors [][]float64 `json:"vectors"`
}

type extractRequest struct {
	Texts []string `json:"texts"`
}

type extractResponse struct {
	Phrases [][]string `json:"phrases"`
}

type classifyRequest struct {
	Pairs []sentiment.Pair `json:"pairs"`
}

type classifyResponse struct {
	Predictions []sentiment.Prediction `json:"predictions"`
}

type scoreRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type scoreResponse struct {
	Scores []float64 `json:"scores"`
}

// EmbedBatch returns one embedding vector per input text.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var resp embedResponse
	if err := c.post(ctx, "embed", "/embed", embedRequest{Texts: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Vectors) != len(texts) {
		return nil, fmt.Errorf("model server returned %d vectors for %d texts", len(resp.Vectors), len(texts))
	}

	vectors := make([][]float32, len(resp.Vectors))
	for i, v := range resp.Vectors {
		vec := make([]float32, len(v))
		for j, f := range v {
			vec[j] = float32(f)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// ExtractPhrases mines candidate aspect phrases from texts.
func (c *Client) ExtractPhrases(ctx context.Context, texts []string) ([][]string, error) {
	var resp extractResponse
	if err := c.post(ctx, "extract", "/extract", extractRequest{Texts: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Phrases) != len(texts) {
		return nil, fmt.Errorf("model server returned %d phrase lists for %d texts", len(resp.Phrases), len(texts))
	}
	return resp.Phrases, nil
}

// ClassifyPairs judges sentiment for (text, aspect) pairs.
func (c *Client) ClassifyPairs(ctx context.Context, pairs []sentiment.Pair) ([]sentiment.Prediction, error) {
	var resp classifyResponse
	if err := c.post(ctx, "classify", "/classify", classifyRequest{Pairs: pairs}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Predictions) != len(pairs) {
		return nil, fmt.Errorf("model server returned %d predictions for %d pairs", len(resp.Predictions), len(pairs))
	}
	return resp.Predictions, nil
}

// ScorePairs returns a relevance logit for each document against the query.
func (c *Client) ScorePairs(ctx context.Context, query string, documents []string) ([]float64, error) {
	var resp scoreResponse
	if err := c.post(ctx, "score", "/score", scoreRequest{Query: query, Documents: documents}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Scores) != len(documents) {
		return nil, fmt.Errorf("model server returned %d scores for %d documents", len(resp.Scores), len(documents))
	}
	return resp.Scores, nil
}

// Ping checks model server liveness.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("model server health check: %w", ErrUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model server health status %d: %w", resp.StatusCode, ErrUnavailable)
	}
	return nil
}

// post sends a JSON request through the rate limiter and circuit breaker
// and decodes the JSON response into out.
func (c *Client) post(ctx context.Context, operation, path string, in, out any) error {
	start := time.Now()
	err := c.doPost(ctx, path, in, out)
	metrics.ObserveInference(operation, time.Since(start), err)
	if err != nil {
		c.logger.Error().Err(err).Str("operation", operation).Msg("Model server request failed")
	}
	return err
}

func (c *Client) doPost(ctx context.Context, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if reqErr != nil {
			return nil, reqErr
		}
		req.Header.Set("Content-Type", "application/json")

		resp, doErr := c.httpc.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		defer resp.Body.Close()

		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, readErr
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncateBody(data))
		}
		return data, nil
	})
	if err != nil {
		return fmt.Errorf("%s: %v: %w", path, err, ErrUnavailable)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

// truncateBody keeps error bodies log-friendly.
func truncateBody(b []byte) string {
	const maxLen = 256
	if len(b) > maxLen {
		return string(b[:maxLen]) + "..."
	}
	return string(b)
}
