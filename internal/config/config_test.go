// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("expected default port 8000, got %d", cfg.Server.Port)
	}
	if cfg.Data.MinReviewChars != 15 {
		t.Errorf("expected default min_review_chars 15, got %d", cfg.Data.MinReviewChars)
	}
	if cfg.Rank.MaxNeighbors != 50 {
		t.Errorf("expected default max_neighbors 50, got %d", cfg.Rank.MaxNeighbors)
	}
	if cfg.Enrich.ChunkSize != 400 {
		t.Errorf("expected default chunk_size 400, got %d", cfg.Enrich.ChunkSize)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9001")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("INFERENCE_URL", "http://model:9090")
	t.Setenv("FEEDBACK_QUEUE_CAPACITY", "8")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9001 {
		t.Errorf("expected port 9001, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %q", cfg.Logging.Level)
	}
	if cfg.Inference.BaseURL != "http://model:9090" {
		t.Errorf("expected inference URL override, got %q", cfg.Inference.BaseURL)
	}
	if cfg.Feedback.QueueCapacity != 8 {
		t.Errorf("expected queue capacity 8, got %d", cfg.Feedback.QueueCapacity)
	}
	if cfg.API.RateLimitWindow != 30*time.Second {
		t.Errorf("expected 30s rate limit window, got %s", cfg.API.RateLimitWindow)
	}
}

func TestLoadUnmappedEnvIgnored(t *testing.T) {
	t.Setenv("PATH_INFO", "should-not-leak")

	if _, err := Load(); err != nil {
		t.Fatalf("Load() error with unmapped env var: %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 8443\ndata:\n  max_rows: 5000\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8443 {
		t.Errorf("expected port 8443 from file, got %d", cfg.Server.Port)
	}
	if cfg.Data.MaxRows != 5000 {
		t.Errorf("expected max_rows 5000 from file, got %d", cfg.Data.MaxRows)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"empty catalog path", func(c *Config) { c.Data.CatalogPath = "" }},
		{"negative max rows", func(c *Config) { c.Data.MaxRows = -1 }},
		{"zero inference timeout", func(c *Config) { c.Inference.Timeout = 0 }},
		{"zero chunk size", func(c *Config) { c.Enrich.ChunkSize = 0 }},
		{"zero queue capacity", func(c *Config) { c.Feedback.QueueCapacity = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
