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

// Package kv abstracts the key/value store the chunk engine writes
// through. Every implementation provides atomic single-key put, get,
// and delete plus an ordered prefix scan, and enforces a hard
// per-value size ceiling.
package kv

import (
	"context"
	"errors"
)

// DefaultMaxValueBytes is the per-record ceiling of the reference
// deployment. Backends may be configured with a different ceiling but
// callers must never assume more than this without checking
// MaxValueSize.
const DefaultMaxValueBytes = 64 * 1024

// ErrValueTooLarge indicates a Put exceeded the backend's per-value ceiling.
var ErrValueTooLarge = errors.New("value exceeds backend size ceiling")

// Backend is the store the chunk engine persists records in. Each call
// is atomic on a single key and independently visible; there are no
// cross-key transactions, which is why the engine sequences its writes
// the way it does.
type Backend interface {
	// Put stores value under key, replacing any existing record.
	Put(ctx context.Context, key string, value []byte) error
	// Get returns the record for key. The second result is false when
	// the key is absent; absence is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Delete removes the record for key. Deleting an absent key succeeds.
	Delete(ctx context.Context, key string) error
	// Scan invokes fn for every record under prefix in ascending key
	// order. An error returned by fn stops the scan and is returned.
	Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error
	// MaxValueSize reports the largest value accepted for a single record.
	MaxValueSize() int
}
