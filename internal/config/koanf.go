// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "REVIEWLENS_CONFIG"

// DefaultConfigPaths are searched in order for a YAML config file.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config/config.yaml",
	"/etc/reviewlens/config.yaml",
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment variables, then validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: struct defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: optional config file
	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file that exists, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables return "" and are ignored, so unrelated environment
// noise cannot leak into the configuration.
func envTransformFunc(key string) string {
	envMappings := map[string]string{
		"http_host":               "server.host",
		"http_port":               "server.port",
		"server_read_timeout":     "server.read_timeout",
		"server_write_timeout":    "server.write_timeout",
		"server_shutdown_timeout": "server.shutdown_timeout",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		"catalog_path":        "data.catalog_path",
		"cache_dir":           "data.cache_dir",
		"vectors_path":        "data.vectors_path",
		"index_path":          "data.index_path",
		"max_rows":            "data.max_rows",
		"min_review_chars":    "data.min_review_chars",
		"data_schema_version": "data.schema_version",

		"inference_url":     "inference.base_url",
		"inference_timeout": "inference.timeout",
		"inference_rps":     "inference.requests_per_second",
		"inference_burst":   "inference.burst",

		"enrich_chunk_size": "enrich.chunk_size",
		"enrich_batch_size": "enrich.batch_size",

		"rank_default_top_n": "rank.default_top_n",
		"rank_max_neighbors": "rank.max_neighbors",

		"feedback_queue_capacity": "feedback.queue_capacity",

		"rate_limit_requests": "api.rate_limit_requests",
		"rate_limit_window":   "api.rate_limit_window",
		"request_timeout":     "api.request_timeout",
	}

	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
