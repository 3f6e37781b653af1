// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"disabled", zerolog.Disabled},
		{"WARN", zerolog.WarnLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestInitJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Info().Str("key", "value").Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"key":"value"`) {
		t.Errorf("expected structured field in output, got %q", out)
	}
	if !strings.Contains(out, `"message":"hello"`) {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestCtxAttachesRequestID(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	defer Init(DefaultConfig())

	ctx := WithRequestID(context.Background(), "req-123")
	logger := Ctx(ctx)
	logger.Info().Msg("handled")

	if !strings.Contains(buf.String(), `"request_id":"req-123"`) {
		t.Errorf("expected request_id field, got %q", buf.String())
	}
}

func TestRequestIDFromContextMissing(t *testing.T) {
	if id := RequestIDFromContext(context.Background()); id != "" {
		t.Errorf("expected empty request ID, got %q", id)
	}
}

func TestGenerateRequestIDUnique(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	if a == "" || a == b {
		t.Errorf("expected distinct non-empty IDs, got %q and %q", a, b)
	}
}

func TestWatermillAdapter(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewWatermillAdapter(NewTestLogger(&buf))

	adapter.Info("published", watermill.LogFields{"topic": "persist.cache"})

	out := buf.String()
	if !strings.Contains(out, `"topic":"persist.cache"`) {
		t.Errorf("expected topic field, got %q", out)
	}
	if !strings.Contains(out, "published") {
		t.Errorf("expected message, got %q", out)
	}
}

func TestWatermillAdapterWith(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewWatermillAdapter(NewTestLogger(&buf))

	child := adapter.With(watermill.LogFields{"subscriber": "durable"})
	child.Debug("received", nil)

	if !strings.Contains(buf.String(), `"subscriber":"durable"`) {
		t.Errorf("expected inherited field, got %q", buf.String())
	}
}

func TestSlogHandlerLevels(t *testing.T) {
	var buf bytes.Buffer
	handler := &SlogHandler{logger: NewTestLogger(&buf)}
	slogger := slog.New(handler)

	slogger.Warn("capacity reached", "depth", int64(64))

	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("expected warn level, got %q", out)
	}
	if !strings.Contains(out, `"depth":64`) {
		t.Errorf("expected depth attribute, got %q", out)
	}
}
