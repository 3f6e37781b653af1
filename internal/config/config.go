// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

// Package config loads and validates service configuration.
//
// Configuration is layered: struct defaults, then an optional YAML file,
// then environment variables (highest priority). See Load for the mapping
// between environment variables and config paths.
package config

import "time"

// Config is the root configuration for the ReviewLens service.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Data      DataConfig      `koanf:"data"`
	Inference InferenceConfig `koanf:"inference"`
	Enrich    EnrichConfig    `koanf:"enrich"`
	Rank      RankConfig      `koanf:"rank"`
	Feedback  FeedbackConfig  `koanf:"feedback"`
	API       APIConfig       `koanf:"api"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// DataConfig locates the catalog source and derived artifacts.
type DataConfig struct {
	// CatalogPath is the CSV file holding review-level catalog rows.
	CatalogPath string `koanf:"catalog_path"`

	// CacheDir is the Badger directory for processed-catalog snapshots.
	CacheDir string `koanf:"cache_dir"`

	// VectorsPath and IndexPath are the persisted embedding artifacts.
	VectorsPath string `koanf:"vectors_path"`
	IndexPath   string `koanf:"index_path"`

	// MaxRows truncates the dataset after filtering. Zero means unlimited.
	MaxRows int `koanf:"max_rows"`

	// MinReviewChars drops rows whose review text is shorter than this.
	MinReviewChars int `koanf:"min_review_chars"`

	// SchemaVersion participates in the processed-cache key so that format
	// changes invalidate stale snapshots.
	SchemaVersion int `koanf:"schema_version"`
}

// InferenceConfig controls the model-server HTTP client.
type InferenceConfig struct {
	BaseURL           string        `koanf:"base_url"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
}

// EnrichConfig controls the aspect enrichment pipeline.
type EnrichConfig struct {
	ChunkSize int `koanf:"chunk_size"`
	BatchSize int `koanf:"batch_size"`
}

// RankConfig controls the query ranker.
type RankConfig struct {
	DefaultTopN  int `koanf:"default_top_n"`
	MaxNeighbors int `koanf:"max_neighbors"`
}

// FeedbackConfig controls asynchronous feedback persistence.
type FeedbackConfig struct {
	QueueCapacity int `koanf:"queue_capacity"`
}

// APIConfig controls HTTP middleware behavior.
type APIConfig struct {
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
}

// defaultConfig returns the built-in defaults, the lowest config layer.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Data: DataConfig{
			CatalogPath:    "data/catalog.csv",
			CacheDir:       "data/cache",
			VectorsPath:    "data/embeddings.bin",
			IndexPath:      "data/index.bin",
			MaxRows:        0,
			MinReviewChars: 15,
			SchemaVersion:  1,
		},
		Inference: InferenceConfig{
			BaseURL:           "http://localhost:9090",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 20,
			Burst:             10,
		},
		Enrich: EnrichConfig{
			ChunkSize: 400,
			BatchSize: 16,
		},
		Rank: RankConfig{
			DefaultTopN:  10,
			MaxNeighbors: 50,
		},
		Feedback: FeedbackConfig{
			QueueCapacity: 64,
		},
		API: APIConfig{
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			RequestTimeout:    60 * time.Second,
		},
	}
}
