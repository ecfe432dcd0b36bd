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
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMemoryBackendPutGetDelete(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(0)

	if err := backend.Put(ctx, "/k/a", []byte("value")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	value, found, err := backend.Get(ctx, "/k/a")
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if !bytes.Equal(value, []byte("value")) {
		t.Fatalf("value mismatch: %q", value)
	}

	if err := backend.Delete(ctx, "/k/a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, err := backend.Get(ctx, "/k/a"); err != nil || found {
		t.Fatalf("Get after delete: found=%v err=%v", found, err)
	}
	// Deleting an absent key succeeds.
	if err := backend.Delete(ctx, "/k/a"); err != nil {
		t.Fatalf("repeat Delete: %v", err)
	}
}

func TestMemoryBackendEnforcesCeiling(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(16)

	if got := backend.MaxValueSize(); got != 16 {
		t.Fatalf("MaxValueSize %d, want 16", got)
	}
	if err := backend.Put(ctx, "/k/a", make([]byte, 17)); !errors.Is(err, ErrValueTooLarge) {
		t.Fatalf("expected ErrValueTooLarge, got %v", err)
	}
	if err := backend.Put(ctx, "/k/a", make([]byte, 16)); err != nil {
		t.Fatalf("Put at ceiling: %v", err)
	}
}

func TestMemoryBackendDefaultCeiling(t *testing.T) {
	if got := NewMemoryBackend(0).MaxValueSize(); got != DefaultMaxValueBytes {
		t.Fatalf("default ceiling %d, want %d", got, DefaultMaxValueBytes)
	}
}

func TestMemoryBackendScanOrderAndPrefix(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(0)

	for _, key := range []string{"/a/2", "/a/1", "/b/1", "/a/3"} {
		if err := backend.Put(ctx, key, []byte(key)); err != nil {
			t.Fatalf("Put %s: %v", key, err)
		}
	}

	var keys []string
	err := backend.Scan(ctx, "/a/", func(key string, value []byte) error {
		if string(value) != key {
			t.Fatalf("value mismatch for %s: %q", key, value)
		}
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := []string{"/a/1", "/a/2", "/a/3"}
	if len(keys) != len(want) {
		t.Fatalf("scanned %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("scan order %v, want %v", keys, want)
		}
	}
}

func TestMemoryBackendScanCallbackError(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(0)
	for i := 0; i < 5; i++ {
		if err := backend.Put(ctx, fmt.Sprintf("/k/%d", i), []byte("v")); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	boom := errors.New("boom")
	seen := 0
	err := backend.Scan(ctx, "/k/", func(string, []byte) error {
		seen++
		if seen == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if seen != 2 {
		t.Fatalf("scan continued after callback error: %d calls", seen)
	}
}

func TestMemoryBackendScanAllowsBackendCalls(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(0)
	for i := 0; i < 3; i++ {
		if err := backend.Put(ctx, fmt.Sprintf("/k/%d", i), []byte("v")); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	// Deleting from inside the callback must not deadlock.
	err := backend.Scan(ctx, "/k/", func(key string, _ []byte) error {
		return backend.Delete(ctx, key)
	})
	if err != nil {
		t.Fatalf("Scan with deletes: %v", err)
	}
	if backend.Len() != 0 {
		t.Fatalf("%d records left after scan-delete", backend.Len())
	}
}

func TestMemoryBackendHonorsContext(t *testing.T) {
	backend := NewMemoryBackend(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := backend.Put(ctx, "/k/a", []byte("v")); !errors.Is(err, context.Canceled) {
		t.Fatalf("Put with cancelled context: %v", err)
	}
	if _, _, err := backend.Get(ctx, "/k/a"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Get with cancelled context: %v", err)
	}
}
