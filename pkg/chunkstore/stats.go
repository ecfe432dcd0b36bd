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

import "context"

// Statistics aggregates usage over a set of manifests. Entirely
// derived from a prefix scan; nothing here is stored state that could
// drift.
type Statistics struct {
	ManifestCount      int64 `json:"manifest_count"`
	TotalOriginalBytes int64 `json:"total_original_bytes"`
	TotalStoredBytes   int64 `json:"total_stored_bytes"`
	ChunkedCount       int64 `json:"chunked_count"`
	InlineCount        int64 `json:"inline_count"`
	CompressedCount    int64 `json:"compressed_count"`
}

// Statistics scans the manifests of one stream (or all streams when
// stream is empty) and aggregates counts and byte sums. Callers derive
// the compression ratio from the two byte sums.
func (e *Engine) Statistics(ctx context.Context, stream string) (*Statistics, error) {
	stats := &Statistics{}
	err := e.manifests.ListManifests(ctx, stream, func(m *Manifest) error {
		stats.ManifestCount++
		stats.TotalOriginalBytes += m.TotalSize
		stats.TotalStoredBytes += m.StoredSize
		if m.ChunkCount == 0 {
			stats.InlineCount++
		} else {
			stats.ChunkedCount++
		}
		if m.Compressed {
			stats.CompressedCount++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
