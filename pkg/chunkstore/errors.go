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

import "errors"

var (
	// ErrPayloadTooLarge indicates a put exceeded MaxMessageSize. The
	// payload is rejected before anything is written.
	ErrPayloadTooLarge = errors.New("payload exceeds maximum message size")
	// ErrChunkTooLarge indicates a chunk record would exceed the
	// backend's per-value ceiling. This is a configuration fault:
	// MaxChunkSize must leave room for the record header.
	ErrChunkTooLarge = errors.New("chunk record exceeds backend ceiling")
	// ErrChunkMissing indicates a chunk record the manifest promised is
	// absent. It never escapes the engine raw; readers see ErrCorruption.
	ErrChunkMissing = errors.New("chunk record missing")
	// ErrCorruption indicates the stored payload failed integrity
	// verification: a checksum mismatch, an undecodable record, or a
	// manifest referencing chunks that do not exist.
	ErrCorruption = errors.New("stored payload failed integrity verification")
	// ErrInvalidID indicates a stream or event identifier is empty or
	// contains a path separator.
	ErrInvalidID = errors.New("invalid identifier")
)
