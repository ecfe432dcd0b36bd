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

// chunkstored is example wiring around the chunk engine: it selects a
// backend from the environment, exposes the engine over a thin HTTP
// surface, serves prometheus metrics, and runs the orphan sweeper.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/novatechflow/chunkstore/pkg/chunkstore"
	"github.com/novatechflow/chunkstore/pkg/kv"
)

const (
	defaultDataAddr      = ":19180"
	defaultMetricsAddr   = ":19181"
	defaultS3Bucket      = "chunkstore"
	defaultS3Region      = "us-east-1"
	defaultEtcdEndpoints = "http://127.0.0.1:2379"
	defaultSweepInterval = 5 * time.Minute
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()

	backend, err := buildBackend(ctx, logger)
	if err != nil {
		logger.Error("backend init failed", "error", err)
		os.Exit(1)
	}

	cfg := chunkstore.Config{
		MaxChunkSize:         parseEnvInt("CHUNKSTORE_MAX_CHUNK_BYTES", chunkstore.DefaultMaxChunkSize),
		MaxMessageSize:       parseEnvInt("CHUNKSTORE_MAX_MESSAGE_BYTES", chunkstore.DefaultMaxMessageSize),
		EnableCompression:    parseEnvBool("CHUNKSTORE_COMPRESSION", true),
		CompressionThreshold: parseEnvInt("CHUNKSTORE_COMPRESSION_THRESHOLD", chunkstore.DefaultCompressionThreshold),
		InlineThreshold:      parseEnvInt("CHUNKSTORE_INLINE_THRESHOLD", 0),
		CacheBytes:           parseEnvInt("CHUNKSTORE_CACHE_BYTES", 32<<20),
	}
	engine, err := chunkstore.NewEngine(backend, cfg, logger)
	if err != nil {
		logger.Error("engine init failed", "error", err)
		os.Exit(1)
	}

	sweeper := chunkstore.NewSweeper(engine,
		parseEnvDuration("CHUNKSTORE_SWEEP_GRACE", chunkstore.DefaultSweepGrace), logger)
	go sweeper.Run(ctx, parseEnvDuration("CHUNKSTORE_SWEEP_INTERVAL", defaultSweepInterval))

	metricsAddr := envOrDefault("CHUNKSTORE_METRICS_ADDR", defaultMetricsAddr)
	startMetricsServer(ctx, metricsAddr, backend, logger)

	dataAddr := envOrDefault("CHUNKSTORE_HTTP_ADDR", defaultDataAddr)
	logger.Info("chunkstored starting", "data_addr", dataAddr, "metrics_addr", metricsAddr,
		"max_chunk_bytes", cfg.MaxChunkSize, "max_message_bytes", cfg.MaxMessageSize,
		"compression", cfg.EnableCompression)
	if err := serveData(ctx, dataAddr, engine, logger); err != nil {
		logger.Error("data server error", "error", err)
		os.Exit(1)
	}
}

func buildBackend(ctx context.Context, logger *slog.Logger) (kv.Backend, error) {
	switch strings.ToLower(envOrDefault("CHUNKSTORE_BACKEND", "memory")) {
	case "etcd":
		endpoints := strings.Split(envOrDefault("CHUNKSTORE_ETCD_ENDPOINTS", defaultEtcdEndpoints), ",")
		logger.Info("using etcd backend", "endpoints", endpoints)
		return kv.NewEtcdBackend(kv.EtcdConfig{
			Endpoints:     endpoints,
			Username:      os.Getenv("CHUNKSTORE_ETCD_USERNAME"),
			Password:      os.Getenv("CHUNKSTORE_ETCD_PASSWORD"),
			MaxValueBytes: parseEnvInt("CHUNKSTORE_BACKEND_CEILING", kv.DefaultMaxValueBytes),
		})
	case "s3":
		cfg := kv.S3Config{
			Bucket:          envOrDefault("CHUNKSTORE_S3_BUCKET", defaultS3Bucket),
			Region:          envOrDefault("CHUNKSTORE_S3_REGION", defaultS3Region),
			Endpoint:        os.Getenv("CHUNKSTORE_S3_ENDPOINT"),
			ForcePathStyle:  parseEnvBool("CHUNKSTORE_S3_PATH_STYLE", false),
			AccessKeyID:     os.Getenv("CHUNKSTORE_S3_ACCESS_KEY"),
			SecretAccessKey: os.Getenv("CHUNKSTORE_S3_SECRET_KEY"),
			SessionToken:    os.Getenv("CHUNKSTORE_S3_SESSION_TOKEN"),
			KMSKeyARN:       os.Getenv("CHUNKSTORE_S3_KMS_KEY_ARN"),
			MaxValueBytes:   parseEnvInt("CHUNKSTORE_BACKEND_CEILING", kv.DefaultMaxValueBytes),
		}
		logger.Info("using s3 backend", "bucket", cfg.Bucket, "region", cfg.Region, "endpoint", cfg.Endpoint)
		backend, err := kv.NewS3Backend(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := backend.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return backend, nil
	default:
		logger.Info("using in-memory backend")
		return kv.NewMemoryBackend(parseEnvInt("CHUNKSTORE_BACKEND_CEILING", kv.DefaultMaxValueBytes)), nil
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("CHUNKSTORE_LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	})
	return slog.New(handler).With("component", "chunkstored")
}

func envOrDefault(name, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(name)); val != "" {
		return val
	}
	return fallback
}

func parseEnvInt(name string, fallback int) int {
	if val := strings.TrimSpace(os.Getenv(name)); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseEnvBool(name string, fallback bool) bool {
	if val := strings.TrimSpace(os.Getenv(name)); val != "" {
		switch strings.ToLower(val) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func parseEnvDuration(name string, fallback time.Duration) time.Duration {
	if val := strings.TrimSpace(os.Getenv(name)); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}
