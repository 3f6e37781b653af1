// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/reviewlens/reviewlens/internal/analytics"
	"github.com/reviewlens/reviewlens/internal/catalog"
	"github.com/reviewlens/reviewlens/internal/feedback"
	"github.com/reviewlens/reviewlens/internal/inference"
	"github.com/reviewlens/reviewlens/internal/rank"
	"github.com/reviewlens/reviewlens/internal/sentiment"
)

// analyzeThreshold is the confidence floor for ad-hoc text analysis.
const analyzeThreshold = 0.6

// Recommender serves ranked product searches.
type Recommender interface {
	Recommend(ctx context.Context, req rank.Request) (*rank.Response, error)
}

// FeedbackService folds user feedback into the catalog.
type FeedbackService interface {
	Submit(ctx context.Context, itemID, text string) (feedback.Result, error)
}

// TextAnalyzer mines aspect judgments from free-form text.
type TextAnalyzer interface {
	Analyze(ctx context.Context, text string, threshold float64, maxAspects int) (sentiment.AspectMap, error)
}

// Handler holds the HTTP handlers and their dependencies.
type Handler struct {
	store       *catalog.Store
	recommender Recommender
	feedback    FeedbackService
	analyzer    TextAnalyzer
	startupErr  string
	logger      zerolog.Logger
}

// NewHandler creates the handler set. startupErr carries the diagnostic
// from a failed startup; when non-empty the service stays up but only
// serves status endpoints.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewHandler(store *catalog.Store, rec Recommender, fb FeedbackService, an TextAnalyzer, startupErr string, logger zerolog.Logger) *Handler {
	return &Handler{
		store:       store,
		recommender: rec,
		feedback:    fb,
		analyzer:    an,
		startupErr:  startupErr,
		logger:      logger.With().Str("component", "api").Logger(),
	}
}

// rootStatus is the payload of GET /.
type rootStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Root handles GET /. It always answers, even after a failed startup,
// so operators can read the failure diagnostic.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.startupErr != "" {
		rw.Success(rootStatus{
			Status:  "error",
			Message: "Server failed to start correctly",
			Detail:  h.startupErr,
		})
		return
	}
	rw.Success(rootStatus{
		Status:  "active",
		Message: "Product Recommender API is running",
	})
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.startupErr != "" {
		rw.Error(http.StatusServiceUnavailable, ErrCodeStartupFailed, "Server failed to start correctly")
		return
	}
	rw.Success(map[string]string{"status": "ok"})
}

// Search handles GET /api/v1/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	q := r.URL.Query()

	req := SearchRequest{
		Query:    q.Get("q"),
		Category: q.Get("category"),
		SortBy:   q.Get("sort_by"),
	}
	if raw := q.Get("top_n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			rw.BadRequest("top_n must be an integer")
			return
		}
		req.TopN = n
	}
	if raw := q.Get("min_sentiment"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			rw.BadRequest("min_sentiment must be a number")
			return
		}
		req.MinSentiment = &v
	}

	if details := validateRequest(&req); details != nil {
		rw.ValidationError("Invalid search parameters", details)
		return
	}

	resp, err := h.recommender.Recommend(r.Context(), rank.Request{
		Query:        req.Query,
		TopN:         req.TopN,
		Category:     req.Category,
		MinSentiment: req.MinSentiment,
		SortBy:       req.SortBy,
	})
	if err != nil {
		if errors.Is(err, inference.ErrUnavailable) {
			rw.ExternalServiceError("inference", err)
			return
		}
		h.logger.Error().Err(err).Str("query", req.Query).Msg("Search failed")
		rw.InternalError("Failed to generate recommendations")
		return
	}

	rw.Success(resp)
}

// SubmitFeedback handles POST /api/v1/feedback. All three feedback
// outcomes are 200 responses; the status field in the body tells them
// apart.
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("Invalid JSON body")
		return
	}
	if details := validateRequest(&req); details != nil {
		rw.ValidationError("Invalid feedback request", details)
		return
	}

	result, err := h.feedback.Submit(r.Context(), req.ProductID, req.Feedback)
	if err != nil {
		if errors.Is(err, inference.ErrUnavailable) {
			rw.ExternalServiceError("inference", err)
			return
		}
		h.logger.Error().Err(err).Str("product_id", req.ProductID).Msg("Feedback failed")
		rw.InternalError("Failed to process feedback")
		return
	}

	rw.Success(result)
}

// AnalyzeText handles POST /api/v1/analyze. It classifies the text
// without touching the catalog.
func (h *Handler) AnalyzeText(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("Invalid JSON body")
		return
	}
	if details := validateRequest(&req); details != nil {
		rw.ValidationError("Invalid analyze request", details)
		return
	}

	aspects, err := h.analyzer.Analyze(r.Context(), req.Text, analyzeThreshold, 0)
	if err != nil {
		if errors.Is(err, inference.ErrUnavailable) {
			rw.ExternalServiceError("inference", err)
			return
		}
		h.logger.Error().Err(err).Msg("Text analysis failed")
		rw.InternalError("Failed to analyze text")
		return
	}

	rw.Success(aspects.Rounded(2))
}

// Analytics handles GET /api/v1/analytics.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(analytics.Aggregate(h.store))
}

// Compare handles POST /api/v1/compare.
func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("Invalid JSON body")
		return
	}
	if details := validateRequest(&req); details != nil {
		rw.ValidationError("Invalid compare request", details)
		return
	}

	cmp, err := analytics.Compare(h.store, req.ProductIDs)
	if err != nil {
		// The bounds errors carry client-facing messages.
		rw.BadRequest(err.Error())
		return
	}

	rw.Success(cmp)
}
