// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

package feedback

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reviewlens/reviewlens/internal/catalog"
	"github.com/reviewlens/reviewlens/internal/logging"
	"github.com/reviewlens/reviewlens/internal/metrics"
	"github.com/reviewlens/reviewlens/internal/sentiment"
)

// Persistence topics. Each durable artifact has exactly one topic and one
// subscriber goroutine, so writes to the same artifact never interleave.
const (
	topicCacheSnapshot = "persist.cache"
	topicDurableMerge  = "persist.durable"

	artifactCache   = "cache"
	artifactDurable = "durable"
)

// cacheSnapshotJob asks the worker to snapshot the current store into the
// processed cache. The snapshot is taken at processing time, so coalesced
// or reordered jobs still converge on the latest state.
type cacheSnapshotJob struct {
	ItemID string `json:"item_id"`
}

// durableMergeJob carries the merged aspect map for one item into the
// durable catalog CSV.
type durableMergeJob struct {
	ItemID  string              `json:"item_id"`
	Aspects sentiment.AspectMap `json:"aspects"`
}

// Persister owns the bounded persistence queue. Enqueueing never blocks
// the feedback response path: when an artifact's queue is full the job is
// dropped with a warning, on the grounds that a later job persists a
// superset of the same state.
type Persister struct {
	bus         *gochannel.GoChannel
	store       *catalog.Store
	cache       *catalog.ProcessedCache
	cacheKey    string
	durablePath string
	capacity    int64

	cacheDepth   atomic.Int64
	durableDepth atomic.Int64

	logger zerolog.Logger
}

// NewPersister creates the persistence queue. cache may be nil and
// durablePath may be empty; the corresponding jobs become no-ops.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewPersister(store *catalog.Store, cache *catalog.ProcessedCache, cacheKey, durablePath string, capacity int, logger zerolog.Logger) *Persister {
	persisterLogger := logger.With().Str("component", "persister").Logger()
	bus := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: int64(capacity)},
		logging.NewWatermillAdapter(persisterLogger),
	)
	return &Persister{
		bus:         bus,
		store:       store,
		cache:       cache,
		cacheKey:    cacheKey,
		durablePath: durablePath,
		capacity:    int64(capacity),
		logger:      persisterLogger,
	}
}

// EnqueueCacheSnapshot schedules a processed-cache refresh.
func (p *Persister) EnqueueCacheSnapshot(itemID string) {
	p.enqueue(topicCacheSnapshot, artifactCache, &p.cacheDepth, cacheSnapshotJob{ItemID: itemID})
}

// EnqueueDurableMerge schedules a durable catalog update for one item.
func (p *Persister) EnqueueDurableMerge(itemID string, aspects sentiment.AspectMap) {
	p.enqueue(topicDurableMerge, artifactDurable, &p.durableDepth, durableMergeJob{ItemID: itemID, Aspects: aspects})
}

func (p *Persister) enqueue(topic, artifact string, depth *atomic.Int64, job any) {
	if depth.Load() >= p.capacity {
		metrics.PersistJobsDropped.WithLabelValues(artifact).Inc()
		p.logger.Warn().
			Str("artifact", artifact).
			Int64("capacity", p.capacity).
			Msg("Persistence queue full, dropping job")
		return
	}

	payload, err := json.Marshal(job)
	if err != nil {
		p.logger.Error().Err(err).Str("artifact", artifact).Msg("Failed to marshal persistence job")
		return
	}

	if err := p.bus.Publish(topic, message.NewMessage(uuid.NewString(), payload)); err != nil {
		p.logger.Error().Err(err).Str("artifact", artifact).Msg("Failed to enqueue persistence job")
		return
	}
	metrics.PersistQueueDepth.WithLabelValues(artifact).Set(float64(depth.Add(1)))
}

// Serve runs the persistence workers until ctx is canceled. It implements
// suture.Service.
func (p *Persister) Serve(ctx context.Context) error {
	cacheMsgs, err := p.bus.Subscribe(ctx, topicCacheSnapshot)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", topicCacheSnapshot, err)
	}
	durableMsgs, err := p.bus.Subscribe(ctx, topicDurableMerge)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", topicDurableMerge, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.consume(cacheMsgs, artifactCache, &p.cacheDepth, p.handleCacheSnapshot)
	}()
	go func() {
		defer wg.Done()
		p.consume(durableMsgs, artifactDurable, &p.durableDepth, p.handleDurableMerge)
	}()
	wg.Wait()

	return ctx.Err()
}

// Close shuts the underlying message bus down. Call once, after Serve has
// returned.
func (p *Persister) Close() error {
	return p.bus.Close()
}

// consume is the single-writer loop for one artifact. Handler failures are
// logged and counted, never retried: a later job carries newer state.
func (p *Persister) consume(msgs <-chan *message.Message, artifact string, depth *atomic.Int64, handle func([]byte) error) {
	for msg := range msgs {
		err := handle(msg.Payload)
		metrics.PersistQueueDepth.WithLabelValues(artifact).Set(float64(depth.Add(-1)))
		if err != nil {
			metrics.PersistJobs.WithLabelValues(artifact, "failure").Inc()
			p.logger.Error().Err(err).Str("artifact", artifact).Msg("Persistence job failed")
		} else {
			metrics.PersistJobs.WithLabelValues(artifact, "success").Inc()
		}
		msg.Ack()
	}
}

func (p *Persister) handleCacheSnapshot(payload []byte) error {
	var job cacheSnapshotJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("decode cache snapshot job: %w", err)
	}
	if p.cache == nil {
		return nil
	}
	if err := p.cache.Put(p.cacheKey, p.store.SnapshotRows()); err != nil {
		return fmt.Errorf("snapshot store for item %q: %w", job.ItemID, err)
	}
	p.logger.Debug().Str("item_id", job.ItemID).Msg("Processed cache refreshed")
	return nil
}

func (p *Persister) handleDurableMerge(payload []byte) error {
	var job durableMergeJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("decode durable merge job: %w", err)
	}
	if p.durablePath == "" {
		return nil
	}
	if err := catalog.MergeDurable(p.durablePath, job.ItemID, job.Aspects); err != nil {
		return fmt.Errorf("merge durable catalog: %w", err)
	}
	p.logger.Debug().Str("item_id", job.ItemID).Msg("Durable catalog updated")
	return nil
}
