// Copyright 2026 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
// This project is supported and financed by Scalytics, Inc. (www.scalytics.io).
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package chunkstore

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepGrace is how long a chunk without a manifest is presumed
// to belong to an in-flight put before the sweeper may reclaim it.
const DefaultSweepGrace = 10 * time.Minute

// Sweeper reclaims orphaned chunk records: chunks left behind by a put
// that crashed before its manifest write, or by a stale overwrite.
// Orphans are invisible to readers (nothing references them), so the
// sweep is pure garbage collection and never touches manifests.
type Sweeper struct {
	backend   interface {
		Delete(ctx context.Context, key string) error
		Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error
	}
	manifests *ManifestStore
	grace     time.Duration
	logger    *slog.Logger
}

// NewSweeper builds a sweeper over the same backend as the engine. A
// grace of zero selects DefaultSweepGrace; the grace window is what
// keeps the sweeper from racing puts that have written chunks but not
// yet the manifest.
func NewSweeper(e *Engine, grace time.Duration, logger *slog.Logger) *Sweeper {
	if grace <= 0 {
		grace = DefaultSweepGrace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		backend:   e.backend,
		manifests: e.manifests,
		grace:     grace,
		logger:    logger,
	}
}

// Sweep scans the chunk records of one stream (all streams when stream
// is empty) and deletes every orphan older than the grace window.
// Returns the number of records reclaimed.
func (s *Sweeper) Sweep(ctx context.Context, stream string) (int, error) {
	reclaimed := 0
	cutoff := time.Now().Add(-s.grace)

	// Chunks of one message are adjacent in scan order, so one
	// manifest lookup usually covers a run of keys.
	var (
		lastStream, lastEvent string
		lastManifest          *Manifest
		haveManifest          bool
	)

	err := s.backend.Scan(ctx, ChunkScanPrefix(stream), func(key string, value []byte) error {
		chunkStream, chunkEvent, index, ok := ParseChunkKey(key)
		if !ok {
			s.logger.Warn("unparseable chunk key, skipping", "key", key)
			return nil
		}

		rec, err := decodeChunkRecord(value)
		if err != nil {
			s.logger.Warn("undecodable chunk record, skipping", "key", key, "error", err)
			return nil
		}
		if rec.writtenAt.After(cutoff) {
			return nil // possibly an in-flight put
		}

		if !haveManifest || chunkStream != lastStream || chunkEvent != lastEvent {
			m, err := s.manifests.ReadManifest(ctx, chunkStream, chunkEvent)
			if err != nil {
				return err
			}
			lastStream, lastEvent, lastManifest, haveManifest = chunkStream, chunkEvent, m, true
		}

		// Live chunk: a manifest exists and counts this index.
		if lastManifest != nil && index < lastManifest.ChunkCount {
			return nil
		}

		if err := s.backend.Delete(ctx, key); err != nil {
			return err
		}
		reclaimed++
		sweeperReclaimed.Inc()
		return nil
	})
	if err != nil {
		return reclaimed, err
	}
	if reclaimed > 0 {
		s.logger.Info("sweep reclaimed orphaned chunks", "stream", stream, "chunks", reclaimed)
	}
	return reclaimed, nil
}

// Run sweeps all streams on the given interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx, ""); err != nil {
				s.logger.Warn("sweep failed", "error", err)
			}
		}
	}
}
