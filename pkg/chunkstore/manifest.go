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
	"encoding/json"
	"fmt"
	"time"

	"github.com/novatechflow/chunkstore/pkg/kv"
)

// Manifest is the metadata record describing how one logical message
// reassembles. It is the single source of truth for reads: a manifest
// that exists guarantees every chunk it counts already exists, because
// the engine writes it last and deletes it first.
type Manifest struct {
	Stream string `json:"stream"`
	Event  string `json:"event"`
	// TotalSize is the original, pre-compression payload length.
	TotalSize int64 `json:"total_size"`
	// StoredSize is the byte length actually persisted across chunks
	// (or inline). Never exceeds TotalSize.
	StoredSize int64 `json:"stored_size"`
	Compressed bool  `json:"compressed"`
	// Checksum is the hex BLAKE3 digest of the original payload.
	Checksum   string `json:"checksum"`
	ChunkCount int    `json:"chunk_count"`
	// Inline holds the stored bytes when ChunkCount is zero.
	Inline    []byte `json:"inline,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ManifestStore maps (stream, event) to manifest records in the backend.
type ManifestStore struct {
	backend kv.Backend
}

// NewManifestStore builds a manifest store over the given backend.
func NewManifestStore(backend kv.Backend) *ManifestStore {
	return &ManifestStore{backend: backend}
}

// WriteManifest persists a manifest record. The serialized record must
// fit under the backend ceiling; with deterministic chunk keys the
// manifest stays small regardless of message size, so hitting the
// ceiling here means an oversized inline payload.
func (s *ManifestStore) WriteManifest(ctx context.Context, m *Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest %s/%s: %w", m.Stream, m.Event, err)
	}
	if ceiling := s.backend.MaxValueSize(); len(data) > ceiling {
		return fmt.Errorf("manifest %s/%s: record %d bytes over %d-byte ceiling: %w",
			m.Stream, m.Event, len(data), ceiling, ErrChunkTooLarge)
	}
	if err := s.backend.Put(ctx, ManifestKey(m.Stream, m.Event), data); err != nil {
		return fmt.Errorf("write manifest %s/%s: %w", m.Stream, m.Event, err)
	}
	return nil
}

// ReadManifest loads a manifest. Absence is a normal miss, reported as
// a nil manifest with a nil error.
func (s *ManifestStore) ReadManifest(ctx context.Context, stream, event string) (*Manifest, error) {
	value, found, err := s.backend.Get(ctx, ManifestKey(stream, event))
	if err != nil {
		return nil, fmt.Errorf("read manifest %s/%s: %w", stream, event, err)
	}
	if !found {
		return nil, nil
	}
	var m Manifest
	if err := json.Unmarshal(value, &m); err != nil {
		return nil, fmt.Errorf("manifest %s/%s: %v: %w", stream, event, err, ErrCorruption)
	}
	return &m, nil
}

// DeleteManifest removes a manifest record. Absent manifests delete
// without error.
func (s *ManifestStore) DeleteManifest(ctx context.Context, stream, event string) error {
	if err := s.backend.Delete(ctx, ManifestKey(stream, event)); err != nil {
		return fmt.Errorf("delete manifest %s/%s: %w", stream, event, err)
	}
	return nil
}

// ListManifests streams every manifest under the stream prefix (all
// streams when stream is empty) through fn, backed by the backend's
// lazy prefix scan.
func (s *ManifestStore) ListManifests(ctx context.Context, stream string, fn func(*Manifest) error) error {
	return s.backend.Scan(ctx, ManifestScanPrefix(stream), func(key string, value []byte) error {
		var m Manifest
		if err := json.Unmarshal(value, &m); err != nil {
			return fmt.Errorf("manifest %s: %v: %w", key, err, ErrCorruption)
		}
		return fn(&m)
	})
}

// manifestTimestamp formats CreatedAt the way all state records in the
// backend carry timestamps.
func manifestTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
