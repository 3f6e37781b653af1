// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

// Package api request validation structs with go-playground/validator
// tags. Query parameters and JSON bodies are decoded into these before
// processing.
package api

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// SearchRequest holds the validated query parameters for GET /search.
type SearchRequest struct {
	Query        string   `validate:"required,min=1,max=500"`
	TopN         int      `validate:"min=0,max=100"`
	Category     string   `validate:"omitempty,max=100"`
	MinSentiment *float64 `validate:"omitempty,gte=-1,lte=1"`
	SortBy       string   `validate:"omitempty,oneof=relevance sentiment name"`
}

// FeedbackRequest is the JSON body for POST /feedback.
type FeedbackRequest struct {
	ProductID string `json:"product_id" validate:"required,min=1"`
	Feedback  string `json:"feedback"   validate:"required,min=1,max=5000"`
}

// AnalyzeRequest is the JSON body for POST /analyze.
type AnalyzeRequest struct {
	Text string `json:"text" validate:"required,min=1,max=5000"`
}

// CompareRequest is the JSON body for POST /compare.
type CompareRequest struct {
	ProductIDs []string `json:"product_ids" validate:"required,min=2,max=4,dive,min=1"`
}

// validateRequest validates a struct and flattens field errors into a
// details list suitable for the error envelope.
func validateRequest(v any) []string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}

	details := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, fmt.Sprintf("%s: failed %q validation", fe.Field(), fe.Tag()))
	}
	return details
}
