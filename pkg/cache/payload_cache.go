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

package cache

import (
	"container/list"
	"fmt"
	"sync"
)

// PayloadCache provides an LRU cache keyed by stream/event storing
// reassembled payload bytes. A nil *PayloadCache is valid and caches
// nothing, so callers can leave caching disabled without branching.
type PayloadCache struct {
	mu       sync.Mutex
	capacity int
	size     int
	ll       *list.List
	items    map[string]*list.Element
}

type cacheEntry struct {
	key  string
	data []byte
}

// NewPayloadCache creates a cache with capacity in bytes. A capacity
// of zero or less returns nil (caching disabled).
func NewPayloadCache(capacityBytes int) *PayloadCache {
	if capacityBytes <= 0 {
		return nil
	}
	return &PayloadCache{
		capacity: capacityBytes,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

func makeKey(stream, event string) string {
	return fmt.Sprintf("%s/%s", stream, event)
}

// GetPayload returns a copy of the cached payload if present. The copy
// keeps callers from mutating cached bytes.
func (c *PayloadCache) GetPayload(stream, event string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[makeKey(stream, event)]; ok {
		c.ll.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		return append([]byte(nil), entry.data...), true
	}
	return nil, false
}

// SetPayload adds or updates a cache entry.
func (c *PayloadCache) SetPayload(stream, event string, data []byte) {
	if c == nil || len(data) > c.capacity {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := makeKey(stream, event)
	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*cacheEntry)
		c.size -= len(entry.data)
		entry.data = append(entry.data[:0], data...)
		c.size += len(entry.data)
		c.ll.MoveToFront(elem)
		c.evictIfNeeded()
		return
	}
	entry := &cacheEntry{
		key:  key,
		data: append([]byte(nil), data...),
	}
	elem := c.ll.PushFront(entry)
	c.items[key] = elem
	c.size += len(entry.data)
	c.evictIfNeeded()
}

// Invalidate drops the entry for stream/event if cached. Writers call
// this on every put and delete so readers never see stale bytes.
func (c *PayloadCache) Invalidate(stream, event string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := makeKey(stream, event)
	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*cacheEntry)
		delete(c.items, key)
		c.ll.Remove(elem)
		c.size -= len(entry.data)
	}
}

func (c *PayloadCache) evictIfNeeded() {
	for c.size > c.capacity && c.ll.Len() > 0 {
		elem := c.ll.Back()
		entry := elem.Value.(*cacheEntry)
		delete(c.items, entry.key)
		c.ll.Remove(elem)
		c.size -= len(entry.data)
	}
}
