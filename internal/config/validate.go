// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

package config

import "fmt"

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateData(); err != nil {
		return err
	}
	if err := c.validateInference(); err != nil {
		return err
	}
	return c.validatePipeline()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive, got %s", c.Server.ShutdownTimeout)
	}
	return nil
}

func (c *Config) validateData() error {
	if c.Data.CatalogPath == "" {
		return fmt.Errorf("data.catalog_path is required")
	}
	if c.Data.CacheDir == "" {
		return fmt.Errorf("data.cache_dir is required")
	}
	if c.Data.VectorsPath == "" || c.Data.IndexPath == "" {
		return fmt.Errorf("data.vectors_path and data.index_path are required")
	}
	if c.Data.MaxRows < 0 {
		return fmt.Errorf("data.max_rows must not be negative, got %d", c.Data.MaxRows)
	}
	if c.Data.MinReviewChars < 0 {
		return fmt.Errorf("data.min_review_chars must not be negative, got %d", c.Data.MinReviewChars)
	}
	return nil
}

func (c *Config) validateInference() error {
	if c.Inference.BaseURL == "" {
		return fmt.Errorf("inference.base_url is required")
	}
	if c.Inference.Timeout <= 0 {
		return fmt.Errorf("inference.timeout must be positive, got %s", c.Inference.Timeout)
	}
	if c.Inference.RequestsPerSecond <= 0 {
		return fmt.Errorf("inference.requests_per_second must be positive, got %g", c.Inference.RequestsPerSecond)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Enrich.ChunkSize < 1 {
		return fmt.Errorf("enrich.chunk_size must be at least 1, got %d", c.Enrich.ChunkSize)
	}
	if c.Enrich.BatchSize < 1 {
		return fmt.Errorf("enrich.batch_size must be at least 1, got %d", c.Enrich.BatchSize)
	}
	if c.Rank.DefaultTopN < 1 {
		return fmt.Errorf("rank.default_top_n must be at least 1, got %d", c.Rank.DefaultTopN)
	}
	if c.Rank.MaxNeighbors < 1 {
		return fmt.Errorf("rank.max_neighbors must be at least 1, got %d", c.Rank.MaxNeighbors)
	}
	if c.Feedback.QueueCapacity < 1 {
		return fmt.Errorf("feedback.queue_capacity must be at least 1, got %d", c.Feedback.QueueCapacity)
	}
	return nil
}
