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
	"fmt"
	"strconv"
	"strings"
)

const (
	manifestPrefix = "/chunkstore/manifests"
	chunkPrefix    = "/chunkstore/chunks"
)

// ManifestKey returns the backend key for a message's manifest record.
func ManifestKey(stream, event string) string {
	return fmt.Sprintf("%s/%s/%s", manifestPrefix, stream, event)
}

// ManifestScanPrefix returns the backend prefix covering all manifests
// of a stream, or all streams when stream is empty.
func ManifestScanPrefix(stream string) string {
	if stream == "" {
		return manifestPrefix + "/"
	}
	return fmt.Sprintf("%s/%s/", manifestPrefix, stream)
}

// ChunkKey returns the backend key for one chunk record. The key is a
// deterministic function of (stream, event, index) so readers derive
// the full read set from the manifest's chunk count alone; manifests
// never carry a literal key list. The index is zero-padded so chunks
// of one message scan in index order.
func ChunkKey(stream, event string, index int) string {
	return fmt.Sprintf("%s/%s/%s/%08d", chunkPrefix, stream, event, index)
}

// ChunkScanPrefix returns the backend prefix covering all chunk
// records of a stream, or all streams when stream is empty.
func ChunkScanPrefix(stream string) string {
	if stream == "" {
		return chunkPrefix + "/"
	}
	return fmt.Sprintf("%s/%s/", chunkPrefix, stream)
}

// ParseChunkKey extracts stream, event, and index from a chunk key.
func ParseChunkKey(key string) (stream, event string, index int, ok bool) {
	prefix := chunkPrefix + "/"
	if !strings.HasPrefix(key, prefix) {
		return "", "", 0, false
	}
	parts := strings.Split(strings.TrimPrefix(key, prefix), "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", "", 0, false
	}
	idx, err := strconv.Atoi(parts[2])
	if err != nil || idx < 0 {
		return "", "", 0, false
	}
	return parts[0], parts[1], idx, true
}

// validateID rejects identifiers that would break the key scheme.
func validateID(kind, id string) error {
	if id == "" || strings.Contains(id, "/") {
		return fmt.Errorf("%s %q: %w", kind, id, ErrInvalidID)
	}
	return nil
}
