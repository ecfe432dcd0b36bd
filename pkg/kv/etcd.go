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
	"errors"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// etcdScanPageSize bounds how many records a single range request
// returns. Scans resume from the last key seen, so a listing never
// holds one large response in memory and survives being restarted.
const etcdScanPageSize = 256

// EtcdConfig defines how we connect to etcd.
type EtcdConfig struct {
	Endpoints      []string
	Username       string
	Password       string
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	// MaxValueBytes overrides the per-record ceiling. Zero selects
	// DefaultMaxValueBytes, the ceiling of the reference deployment.
	MaxValueBytes int
}

// EtcdBackend stores records in etcd, one record per key.
type EtcdBackend struct {
	client         *clientv3.Client
	requestTimeout time.Duration
	maxValue       int
}

// NewEtcdBackend connects to etcd and returns a Backend over it.
func NewEtcdBackend(cfg EtcdConfig) (*EtcdBackend, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("etcd endpoints required")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 3 * time.Second
	}
	if cfg.MaxValueBytes <= 0 {
		cfg.MaxValueBytes = DefaultMaxValueBytes
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect etcd: %w", err)
	}
	return &EtcdBackend{
		client:         cli,
		requestTimeout: cfg.RequestTimeout,
		maxValue:       cfg.MaxValueBytes,
	}, nil
}

func (b *EtcdBackend) Put(ctx context.Context, key string, value []byte) error {
	if len(value) > b.maxValue {
		return fmt.Errorf("put %s: %d bytes over %d-byte ceiling: %w", key, len(value), b.maxValue, ErrValueTooLarge)
	}
	ctx, cancel := context.WithTimeout(ctx, b.requestTimeout)
	defer cancel()
	_, err := b.client.Put(ctx, key, string(value))
	return err
}

func (b *EtcdBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, b.requestTimeout)
	defer cancel()
	resp, err := b.client.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if len(resp.Kvs) == 0 {
		return nil, false, nil
	}
	return resp.Kvs[0].Value, true, nil
}

func (b *EtcdBackend) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, b.requestTimeout)
	defer cancel()
	_, err := b.client.Delete(ctx, key)
	return err
}

// Scan pages through the prefix range with bounded requests. Each page
// gets its own request timeout; the caller's context bounds the whole
// listing.
func (b *EtcdBackend) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	startKey := prefix
	rangeEnd := clientv3.GetPrefixRangeEnd(prefix)
	for {
		resp, err := b.scanPage(ctx, startKey, rangeEnd)
		if err != nil {
			return err
		}
		for _, kv := range resp.Kvs {
			if err := fn(string(kv.Key), kv.Value); err != nil {
				return err
			}
		}
		if !resp.More || len(resp.Kvs) == 0 {
			return nil
		}
		// Resume just past the last key of this page.
		startKey = string(resp.Kvs[len(resp.Kvs)-1].Key) + "\x00"
	}
}

func (b *EtcdBackend) scanPage(ctx context.Context, startKey, rangeEnd string) (*clientv3.GetResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, b.requestTimeout)
	defer cancel()
	return b.client.Get(ctx, startKey,
		clientv3.WithRange(rangeEnd),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend),
		clientv3.WithLimit(etcdScanPageSize),
	)
}

func (b *EtcdBackend) MaxValueSize() int {
	return b.maxValue
}

// Close releases the etcd client connection.
func (b *EtcdBackend) Close() error {
	return b.client.Close()
}
