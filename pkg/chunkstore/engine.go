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

// Package chunkstore stores byte payloads of arbitrary size as a
// sequence of size-bounded records in a key/value backend with a hard
// per-record ceiling. Writes become visible atomically through the
// manifest: chunks first, manifest last on put; manifest first, chunks
// second on delete. A crash can only ever leave orphaned chunks (the
// sweeper reclaims those), never a manifest whose chunks are missing.
//
// Callers must not run concurrent puts or deletes against the same
// stream/event; concurrent gets, and any mix of operations across
// distinct messages, are safe.
package chunkstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/novatechflow/chunkstore/pkg/cache"
	"github.com/novatechflow/chunkstore/pkg/codec"
	"github.com/novatechflow/chunkstore/pkg/kv"
)

const (
	// DefaultMaxChunkSize leaves ChunkHeaderLen of headroom under the
	// 64 KiB ceiling of the reference backend.
	DefaultMaxChunkSize = 60 * 1024
	// DefaultMaxMessageSize bounds a single put.
	DefaultMaxMessageSize = 10 << 20
	// DefaultCompressionThreshold skips compression for payloads too
	// small to be worth the CPU.
	DefaultCompressionThreshold = 1024

	cleanupTimeout = 10 * time.Second
)

// Config is the engine's tuning surface. The zero value of a field
// selects its default; InlineThreshold genuinely defaults to zero, so
// only the empty payload is stored inline unless configured otherwise.
type Config struct {
	// MaxChunkSize is the largest chunk body. MaxChunkSize plus
	// ChunkHeaderLen must fit under the backend's value ceiling.
	MaxChunkSize int
	// MaxMessageSize is the largest payload a put accepts.
	MaxMessageSize int
	EnableCompression bool
	// CompressionThreshold is the smallest payload considered for
	// compression.
	CompressionThreshold int
	// InlineThreshold is the largest stored payload kept inline in the
	// manifest instead of chunk records.
	InlineThreshold int
	// CacheBytes sizes the reassembled-payload LRU. Zero disables it.
	CacheBytes int
}

func (c Config) withDefaults() Config {
	if c.MaxChunkSize == 0 {
		c.MaxChunkSize = DefaultMaxChunkSize
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.CompressionThreshold == 0 {
		c.CompressionThreshold = DefaultCompressionThreshold
	}
	return c
}

// Engine exposes put/get/delete/statistics over chunked large-object
// storage.
type Engine struct {
	backend   kv.Backend
	chunks    *ChunkStore
	manifests *ManifestStore
	payloads  *cache.PayloadCache
	cfg       Config
	logger    *slog.Logger
}

// NewEngine validates the configuration against the backend's ceiling
// and builds an engine.
func NewEngine(backend kv.Backend, cfg Config, logger *slog.Logger) (*Engine, error) {
	cfg = cfg.withDefaults()
	if cfg.MaxChunkSize <= 0 {
		return nil, fmt.Errorf("max chunk size %d must be positive", cfg.MaxChunkSize)
	}
	if ceiling := backend.MaxValueSize(); cfg.MaxChunkSize+ChunkHeaderLen > ceiling {
		return nil, fmt.Errorf("max chunk size %d plus %d-byte header exceeds backend ceiling %d: %w",
			cfg.MaxChunkSize, ChunkHeaderLen, ceiling, ErrChunkTooLarge)
	}
	if cfg.MaxMessageSize <= 0 {
		return nil, fmt.Errorf("max message size %d must be positive", cfg.MaxMessageSize)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		backend:   backend,
		chunks:    NewChunkStore(backend),
		manifests: NewManifestStore(backend),
		payloads:  cache.NewPayloadCache(cfg.CacheBytes),
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Put stores payload under stream/event. Chunks are written first and
// the manifest last, so a reader that observes the manifest is
// guaranteed every chunk exists. On any chunk-write failure, including
// a cancelled context, the chunks already written are cleaned up
// best-effort and no manifest is written.
func (e *Engine) Put(ctx context.Context, stream, event string, payload []byte) error {
	err := e.put(ctx, stream, event, payload)
	engineOps.WithLabelValues("put", resultLabel(err)).Inc()
	return err
}

func (e *Engine) put(ctx context.Context, stream, event string, payload []byte) error {
	if err := validateID("stream", stream); err != nil {
		return err
	}
	if err := validateID("event", event); err != nil {
		return err
	}
	if len(payload) > e.cfg.MaxMessageSize {
		return fmt.Errorf("put %s/%s: payload %d bytes over %d-byte maximum: %w",
			stream, event, len(payload), e.cfg.MaxMessageSize, ErrPayloadTooLarge)
	}

	checksum := codec.Sum(payload)

	stored := payload
	compressed := false
	if e.cfg.EnableCompression && len(payload) >= e.cfg.CompressionThreshold {
		shrunk, err := codec.Compress(payload)
		switch {
		case err == nil:
			stored = shrunk
			compressed = true
		case errors.Is(err, codec.ErrIncompressible):
			// Store raw; never persist an expansion.
		default:
			return fmt.Errorf("put %s/%s: %w", stream, event, err)
		}
	}

	manifest := &Manifest{
		Stream:     stream,
		Event:      event,
		TotalSize:  int64(len(payload)),
		StoredSize: int64(len(stored)),
		Compressed: compressed,
		Checksum:   checksum.String(),
		CreatedAt:  manifestTimestamp(time.Now()),
	}

	if len(stored) <= e.cfg.InlineThreshold {
		manifest.Inline = stored
		if err := e.manifests.WriteManifest(ctx, manifest); err != nil {
			return err
		}
		e.payloads.Invalidate(stream, event)
		e.recordWrite(manifest)
		return nil
	}

	ranges := Plan(len(stored), e.cfg.MaxChunkSize)
	manifest.ChunkCount = len(ranges)
	now := time.Now().UTC()
	for i, r := range ranges {
		isLast := i == len(ranges)-1
		if err := e.chunks.WriteChunk(ctx, stream, event, i, isLast, stored[r.Offset:r.Offset+r.Length], now); err != nil {
			e.cleanupChunks(stream, event, i)
			return err
		}
	}
	if err := e.manifests.WriteManifest(ctx, manifest); err != nil {
		e.cleanupChunks(stream, event, len(ranges))
		return err
	}
	e.payloads.Invalidate(stream, event)
	e.recordWrite(manifest)
	return nil
}

// cleanupChunks removes the first written chunks of a failed put. It
// runs on a fresh context because the caller's may already be
// cancelled; leftovers are tolerable garbage for the sweeper.
func (e *Engine) cleanupChunks(stream, event string, written int) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := e.chunks.DeleteChunks(ctx, stream, event, written); err != nil {
		e.logger.Warn("chunk cleanup after failed put incomplete",
			"stream", stream, "event", event, "chunks", written, "error", err)
	}
}

// Get returns the payload stored under stream/event. The second result
// is false when no manifest exists; that is a normal miss, not an
// error. Any integrity violation — missing chunks, undecodable
// records, checksum mismatch — is ErrCorruption, never a partial
// result.
func (e *Engine) Get(ctx context.Context, stream, event string) ([]byte, bool, error) {
	payload, found, err := e.get(ctx, stream, event)
	engineOps.WithLabelValues("get", resultLabel(err)).Inc()
	if err == nil && found {
		engineBytesRead.Add(float64(len(payload)))
	}
	return payload, found, err
}

func (e *Engine) get(ctx context.Context, stream, event string) ([]byte, bool, error) {
	if err := validateID("stream", stream); err != nil {
		return nil, false, err
	}
	if err := validateID("event", event); err != nil {
		return nil, false, err
	}

	if payload, ok := e.payloads.GetPayload(stream, event); ok {
		engineCacheHits.Inc()
		return payload, true, nil
	}
	engineCacheMisses.Inc()

	manifest, err := e.manifests.ReadManifest(ctx, stream, event)
	if err != nil {
		return nil, false, err
	}
	if manifest == nil {
		return nil, false, nil
	}

	stored, err := e.readStored(ctx, manifest)
	if err != nil {
		if errors.Is(err, ErrCorruption) {
			engineCorruption.Inc()
		}
		return nil, false, err
	}

	payload := stored
	// The manifest's own flag decides decompression; the engine's
	// compression setting is a write-side concern only.
	if manifest.Compressed {
		payload, err = codec.Decompress(stored, int(manifest.TotalSize))
		if err != nil {
			engineCorruption.Inc()
			return nil, false, fmt.Errorf("get %s/%s: %v: %w", stream, event, err, ErrCorruption)
		}
	}

	if int64(len(payload)) != manifest.TotalSize {
		engineCorruption.Inc()
		return nil, false, fmt.Errorf("get %s/%s: reassembled %d bytes, manifest claims %d: %w",
			stream, event, len(payload), manifest.TotalSize, ErrCorruption)
	}
	if codec.Sum(payload).String() != manifest.Checksum {
		engineCorruption.Inc()
		return nil, false, fmt.Errorf("get %s/%s: checksum mismatch: %w", stream, event, ErrCorruption)
	}

	e.payloads.SetPayload(stream, event, payload)
	return payload, true, nil
}

// readStored reassembles the stored (possibly compressed) bytes a
// manifest describes, either inline or from chunk records in index
// order.
func (e *Engine) readStored(ctx context.Context, m *Manifest) ([]byte, error) {
	if m.ChunkCount == 0 {
		if int64(len(m.Inline)) != m.StoredSize {
			return nil, fmt.Errorf("get %s/%s: inline payload %d bytes, manifest claims %d: %w",
				m.Stream, m.Event, len(m.Inline), m.StoredSize, ErrCorruption)
		}
		return m.Inline, nil
	}

	buf := bytes.NewBuffer(make([]byte, 0, m.StoredSize))
	for index := 0; index < m.ChunkCount; index++ {
		body, isLast, err := e.chunks.ReadChunk(ctx, m.Stream, m.Event, index)
		if err != nil {
			if errors.Is(err, ErrChunkMissing) {
				// The manifest promised a chunk that does not exist.
				return nil, fmt.Errorf("get %s/%s: %v: %w", m.Stream, m.Event, err, ErrCorruption)
			}
			return nil, err
		}
		if isLast != (index == m.ChunkCount-1) {
			return nil, fmt.Errorf("get %s/%s: chunk %d last-flag disagrees with chunk count %d: %w",
				m.Stream, m.Event, index, m.ChunkCount, ErrCorruption)
		}
		buf.Write(body)
	}
	return buf.Bytes(), nil
}

// Delete removes stream/event. The manifest goes first so no reader
// can observe it while chunks disappear underneath; a crash mid-delete
// leaves at worst orphaned chunks. Deleting an absent message is a
// no-op success, so the call is safe to retry.
func (e *Engine) Delete(ctx context.Context, stream, event string) error {
	err := e.delete(ctx, stream, event)
	engineOps.WithLabelValues("delete", resultLabel(err)).Inc()
	return err
}

func (e *Engine) delete(ctx context.Context, stream, event string) error {
	if err := validateID("stream", stream); err != nil {
		return err
	}
	if err := validateID("event", event); err != nil {
		return err
	}
	manifest, err := e.manifests.ReadManifest(ctx, stream, event)
	if err != nil {
		return err
	}
	if manifest == nil {
		return nil
	}
	if err := e.manifests.DeleteManifest(ctx, stream, event); err != nil {
		return err
	}
	e.payloads.Invalidate(stream, event)
	return e.chunks.DeleteChunks(ctx, stream, event, manifest.ChunkCount)
}

func (e *Engine) recordWrite(m *Manifest) {
	engineBytesWritten.Add(float64(m.StoredSize))
	if m.Compressed {
		engineCompressionSaved.Add(float64(m.TotalSize - m.StoredSize))
	}
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
