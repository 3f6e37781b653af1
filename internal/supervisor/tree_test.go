// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

// blockingService runs until its context is canceled.
type blockingService struct {
	started atomic.Int32
}

func (s *blockingService) Serve(ctx context.Context) error {
	s.started.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func quietSlog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTreeRunsAndStopsServices(t *testing.T) {
	tree := NewTree(quietSlog(), DefaultTreeConfig())

	persist := &blockingService{}
	api := &blockingService{}
	tree.AddPersistenceService(persist)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if persist.started.Load() > 0 && api.started.Load() > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if persist.started.Load() == 0 || api.started.Load() == 0 {
		t.Fatal("services did not start")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("tree stopped with %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop")
	}
}

func TestTreeConfigDefaults(t *testing.T) {
	tree := NewTree(quietSlog(), TreeConfig{})
	if tree.config.FailureThreshold != 5.0 || tree.config.FailureBackoff != 15*time.Second {
		t.Errorf("defaults not applied: %+v", tree.config)
	}
}
