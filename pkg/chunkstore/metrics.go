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
	"github.com/prometheus/client_golang/prometheus"
)

var (
	engineOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chunkstore_operations_total",
		Help: "Count of engine operations labeled by operation and result.",
	}, []string{"op", "result"})
	engineBytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chunkstore_bytes_written_total",
		Help: "Stored bytes written across chunk and inline records.",
	})
	engineBytesRead = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chunkstore_bytes_read_total",
		Help: "Original payload bytes returned to callers.",
	})
	engineCompressionSaved = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chunkstore_compression_saved_bytes_total",
		Help: "Bytes saved by compression (original minus stored).",
	})
	engineCorruption = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chunkstore_corruption_total",
		Help: "Reads that failed integrity verification.",
	})
	engineCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chunkstore_cache_hits_total",
		Help: "Gets served from the payload cache.",
	})
	engineCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chunkstore_cache_misses_total",
		Help: "Gets that had to read the backend.",
	})
	sweeperReclaimed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chunkstore_sweeper_reclaimed_total",
		Help: "Orphaned chunk records deleted by the sweeper.",
	})
)

func init() {
	prometheus.MustRegister(
		engineOps,
		engineBytesWritten,
		engineBytesRead,
		engineCompressionSaved,
		engineCorruption,
		engineCacheHits,
		engineCacheMisses,
		sweeperReclaimed,
	)
}
