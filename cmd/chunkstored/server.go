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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/novatechflow/chunkstore/pkg/chunkstore"
	"github.com/novatechflow/chunkstore/pkg/kv"
)

type dataHandler struct {
	engine *chunkstore.Engine
	logger *slog.Logger
}

func newDataMux(engine *chunkstore.Engine, logger *slog.Logger) *http.ServeMux {
	h := &dataHandler{engine: engine, logger: logger}
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /v1/streams/{stream}/events/{event}", h.putEvent)
	mux.HandleFunc("GET /v1/streams/{stream}/events/{event}", h.getEvent)
	mux.HandleFunc("DELETE /v1/streams/{stream}/events/{event}", h.deleteEvent)
	mux.HandleFunc("GET /v1/streams/{stream}/stats", h.streamStats)
	mux.HandleFunc("GET /v1/stats", h.allStats)
	return mux
}

func (h *dataHandler) putEvent(w http.ResponseWriter, r *http.Request) {
	stream, event := r.PathValue("stream"), r.PathValue("event")
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.engine.Put(r.Context(), stream, event, payload); err != nil {
		h.writeError(w, "put", stream, event, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *dataHandler) getEvent(w http.ResponseWriter, r *http.Request) {
	stream, event := r.PathValue("stream"), r.PathValue("event")
	payload, found, err := h.engine.Get(r.Context(), stream, event)
	if err != nil {
		h.writeError(w, "get", stream, event, err)
		return
	}
	if !found {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(payload)
}

func (h *dataHandler) deleteEvent(w http.ResponseWriter, r *http.Request) {
	stream, event := r.PathValue("stream"), r.PathValue("event")
	if err := h.engine.Delete(r.Context(), stream, event); err != nil {
		h.writeError(w, "delete", stream, event, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *dataHandler) streamStats(w http.ResponseWriter, r *http.Request) {
	h.serveStats(w, r, r.PathValue("stream"))
}

func (h *dataHandler) allStats(w http.ResponseWriter, r *http.Request) {
	h.serveStats(w, r, "")
}

func (h *dataHandler) serveStats(w http.ResponseWriter, r *http.Request, stream string) {
	stats, err := h.engine.Statistics(r.Context(), stream)
	if err != nil {
		h.writeError(w, "statistics", stream, "", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

func (h *dataHandler) writeError(w http.ResponseWriter, op, stream, event string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, chunkstore.ErrPayloadTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, chunkstore.ErrInvalidID):
		status = http.StatusBadRequest
	case errors.Is(err, chunkstore.ErrCorruption):
		h.logger.Error("integrity violation", "op", op, "stream", stream, "event", event, "error", err)
	default:
		h.logger.Error("backend failure", "op", op, "stream", stream, "event", event, "error", err)
	}
	http.Error(w, err.Error(), status)
}

func serveData(ctx context.Context, addr string, engine *chunkstore.Engine, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: newDataMux(engine, logger),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func startMetricsServer(ctx context.Context, addr string, backend kv.Backend, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		probeCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if _, _, err := backend.Get(probeCtx, "/chunkstore/readyz-probe"); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "not ready: %v\n", err)
			return
		}
		fmt.Fprintln(w, "ready")
	})
	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
}
