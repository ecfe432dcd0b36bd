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

// ChunkRange is one planned slice of a payload.
type ChunkRange struct {
	Offset int
	Length int
}

// Plan splits [0, payloadLen) into consecutive, gap-free ranges of at
// most maxChunkSize bytes each; only the last range may be shorter. A
// payloadLen of zero yields an empty plan — the payload is stored
// inline in the manifest and no chunk records exist.
func Plan(payloadLen, maxChunkSize int) []ChunkRange {
	if payloadLen <= 0 || maxChunkSize <= 0 {
		return nil
	}
	count := (payloadLen + maxChunkSize - 1) / maxChunkSize
	ranges := make([]ChunkRange, 0, count)
	for offset := 0; offset < payloadLen; offset += maxChunkSize {
		length := maxChunkSize
		if remaining := payloadLen - offset; remaining < length {
			length = remaining
		}
		ranges = append(ranges, ChunkRange{Offset: offset, Length: length})
	}
	return ranges
}
