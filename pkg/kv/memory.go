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

package kv

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryBackend is an in-memory Backend for development and tests. It
// enforces the same per-value ceiling as the reference deployment so
// oversized records fail the same way they would in production.
type MemoryBackend struct {
	mu       sync.Mutex
	data     map[string][]byte
	maxValue int
}

// NewMemoryBackend initializes an empty in-memory backend. A
// maxValueBytes of zero or less selects DefaultMaxValueBytes.
func NewMemoryBackend(maxValueBytes int) *MemoryBackend {
	if maxValueBytes <= 0 {
		maxValueBytes = DefaultMaxValueBytes
	}
	return &MemoryBackend{
		data:     make(map[string][]byte),
		maxValue: maxValueBytes,
	}
}

func (m *MemoryBackend) Put(ctx context.Context, key string, value []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if len(value) > m.maxValue {
		return fmt.Errorf("put %s: %d bytes over %d-byte ceiling: %w", key, len(value), m.maxValue, ErrValueTooLarge)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	default:
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryBackend) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	// Snapshot keys under the lock, then release it so fn can issue
	// backend calls without deadlocking.
	m.mu.Lock()
	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	m.mu.Unlock()
	sort.Strings(keys)

	for _, key := range keys {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		m.mu.Lock()
		value, ok := m.data[key]
		if ok {
			value = append([]byte(nil), value...)
		}
		m.mu.Unlock()
		if !ok {
			continue // deleted since the snapshot
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryBackend) MaxValueSize() int {
	return m.maxValue
}

// Len reports the number of stored records. Test helper.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}
