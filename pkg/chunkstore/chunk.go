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
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/novatechflow/chunkstore/pkg/kv"
)

// Chunk record layout. Records are write-once; the header carries the
// index and last-chunk flag redundantly with the manifest for
// defensive validation on read, and the write timestamp so the orphan
// sweeper can distinguish crashed puts from in-flight ones.
//
//	0..3    magic "CHNK"
//	4..5    format version, uint16 big-endian
//	6       flags (bit 0: last chunk)
//	7       reserved
//	8..11   chunk index, uint32 big-endian
//	12..19  write time, unix milliseconds, int64 big-endian
//	20..23  body length, uint32 big-endian
//	24..    body
const (
	chunkMagic         = "CHNK"
	chunkFormatVersion = 1
	// ChunkHeaderLen is the fixed per-record overhead. MaxChunkSize
	// plus this must stay under the backend's value ceiling.
	ChunkHeaderLen = 24

	chunkFlagLast = 0x01
)

type chunkRecord struct {
	index     int
	isLast    bool
	writtenAt time.Time
	body      []byte
}

func encodeChunkRecord(rec chunkRecord) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, ChunkHeaderLen+len(rec.body)))
	buf.WriteString(chunkMagic)
	binary.Write(buf, binary.BigEndian, uint16(chunkFormatVersion))
	var flags uint8
	if rec.isLast {
		flags |= chunkFlagLast
	}
	buf.WriteByte(flags)
	buf.WriteByte(0)
	binary.Write(buf, binary.BigEndian, uint32(rec.index))
	binary.Write(buf, binary.BigEndian, rec.writtenAt.UnixMilli())
	binary.Write(buf, binary.BigEndian, uint32(len(rec.body)))
	buf.Write(rec.body)
	return buf.Bytes()
}

func decodeChunkRecord(value []byte) (chunkRecord, error) {
	var rec chunkRecord
	if len(value) < ChunkHeaderLen {
		return rec, fmt.Errorf("record %d bytes, shorter than header", len(value))
	}
	if string(value[:4]) != chunkMagic {
		return rec, fmt.Errorf("bad record magic %q", value[:4])
	}
	if version := binary.BigEndian.Uint16(value[4:6]); version != chunkFormatVersion {
		return rec, fmt.Errorf("unsupported record version %d", version)
	}
	rec.isLast = value[6]&chunkFlagLast != 0
	rec.index = int(binary.BigEndian.Uint32(value[8:12]))
	rec.writtenAt = time.UnixMilli(int64(binary.BigEndian.Uint64(value[12:20]))).UTC()
	bodyLen := int(binary.BigEndian.Uint32(value[20:24]))
	if len(value)-ChunkHeaderLen != bodyLen {
		return rec, fmt.Errorf("record body %d bytes, header claims %d", len(value)-ChunkHeaderLen, bodyLen)
	}
	rec.body = value[ChunkHeaderLen:]
	return rec, nil
}

// ChunkStore maps (stream, event, index) to size-bounded backend
// records and owns the per-record binary layout.
type ChunkStore struct {
	backend kv.Backend
}

// NewChunkStore builds a chunk store over the given backend.
func NewChunkStore(backend kv.Backend) *ChunkStore {
	return &ChunkStore{backend: backend}
}

// WriteChunk persists one chunk record. The record (header + body)
// must fit under the backend's value ceiling.
func (s *ChunkStore) WriteChunk(ctx context.Context, stream, event string, index int, isLast bool, body []byte, now time.Time) error {
	recordLen := ChunkHeaderLen + len(body)
	if ceiling := s.backend.MaxValueSize(); recordLen > ceiling {
		return fmt.Errorf("chunk %s/%s[%d]: record %d bytes over %d-byte ceiling: %w",
			stream, event, index, recordLen, ceiling, ErrChunkTooLarge)
	}
	record := encodeChunkRecord(chunkRecord{
		index:     index,
		isLast:    isLast,
		writtenAt: now,
		body:      body,
	})
	if err := s.backend.Put(ctx, ChunkKey(stream, event, index), record); err != nil {
		return fmt.Errorf("write chunk %s/%s[%d]: %w", stream, event, index, err)
	}
	return nil
}

// ReadChunk returns the body and last-chunk flag of one chunk record.
// An absent record is ErrChunkMissing — the caller decides whether
// that is corruption (it is, whenever a manifest promised the chunk).
// An undecodable record is ErrCorruption.
func (s *ChunkStore) ReadChunk(ctx context.Context, stream, event string, index int) ([]byte, bool, error) {
	value, found, err := s.backend.Get(ctx, ChunkKey(stream, event, index))
	if err != nil {
		return nil, false, fmt.Errorf("read chunk %s/%s[%d]: %w", stream, event, index, err)
	}
	if !found {
		return nil, false, fmt.Errorf("chunk %s/%s[%d]: %w", stream, event, index, ErrChunkMissing)
	}
	rec, err := decodeChunkRecord(value)
	if err != nil {
		return nil, false, fmt.Errorf("chunk %s/%s[%d]: %v: %w", stream, event, index, err, ErrCorruption)
	}
	if rec.index != index {
		return nil, false, fmt.Errorf("chunk %s/%s[%d]: record claims index %d: %w", stream, event, index, rec.index, ErrCorruption)
	}
	return rec.body, rec.isLast, nil
}

// DeleteChunks removes chunk records 0..chunkCount-1. Deleting an
// absent chunk is a no-op so the call is safe to retry after a partial
// failure. All indexes are attempted; the first error is returned.
func (s *ChunkStore) DeleteChunks(ctx context.Context, stream, event string, chunkCount int) error {
	var firstErr error
	for index := 0; index < chunkCount; index++ {
		if err := s.backend.Delete(ctx, ChunkKey(stream, event, index)); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("delete chunk %s/%s[%d]: %w", stream, event, index, err)
		}
	}
	return firstErr
}
