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
	"net"
	"net/url"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"go.etcd.io/etcd/server/v3/embed"
)

func TestEtcdBackendPutGetDelete(t *testing.T) {
	e, endpoints := startEmbeddedEtcd(t)
	defer e.Close()

	backend := newTestEtcdBackend(t, endpoints, 0)
	defer backend.Close()
	ctx := context.Background()

	if err := backend.Put(ctx, "/test/a", []byte("value")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	value, found, err := backend.Get(ctx, "/test/a")
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if !bytes.Equal(value, []byte("value")) {
		t.Fatalf("value mismatch: %q", value)
	}

	if err := backend.Delete(ctx, "/test/a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, err := backend.Get(ctx, "/test/a"); err != nil || found {
		t.Fatalf("Get after delete: found=%v err=%v", found, err)
	}
	// Deleting an absent key succeeds.
	if err := backend.Delete(ctx, "/test/a"); err != nil {
		t.Fatalf("repeat Delete: %v", err)
	}
}

func TestEtcdBackendEnforcesCeiling(t *testing.T) {
	e, endpoints := startEmbeddedEtcd(t)
	defer e.Close()

	backend := newTestEtcdBackend(t, endpoints, 32)
	defer backend.Close()
	ctx := context.Background()

	if got := backend.MaxValueSize(); got != 32 {
		t.Fatalf("MaxValueSize %d, want 32", got)
	}
	if err := backend.Put(ctx, "/test/big", make([]byte, 33)); !errors.Is(err, ErrValueTooLarge) {
		t.Fatalf("expected ErrValueTooLarge, got %v", err)
	}
	if err := backend.Put(ctx, "/test/big", make([]byte, 32)); err != nil {
		t.Fatalf("Put at ceiling: %v", err)
	}
}

func TestEtcdBackendScanPagesThroughPrefix(t *testing.T) {
	e, endpoints := startEmbeddedEtcd(t)
	defer e.Close()

	backend := newTestEtcdBackend(t, endpoints, 0)
	defer backend.Close()
	ctx := context.Background()

	// More records than one scan page so the pagination path runs.
	count := etcdScanPageSize + 17
	for i := 0; i < count; i++ {
		key := fmt.Sprintf("/test/scan/%06d", i)
		if err := backend.Put(ctx, key, []byte(key)); err != nil {
			t.Fatalf("Put %s: %v", key, err)
		}
	}
	if err := backend.Put(ctx, "/test/other", []byte("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	seen := 0
	lastKey := ""
	err := backend.Scan(ctx, "/test/scan/", func(key string, value []byte) error {
		if key <= lastKey {
			t.Fatalf("scan out of order: %q after %q", key, lastKey)
		}
		if string(value) != key {
			t.Fatalf("value mismatch for %s: %q", key, value)
		}
		lastKey = key
		seen++
		return nil
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if seen != count {
		t.Fatalf("scanned %d records, want %d", seen, count)
	}
}

func TestEtcdBackendScanCallbackError(t *testing.T) {
	e, endpoints := startEmbeddedEtcd(t)
	defer e.Close()

	backend := newTestEtcdBackend(t, endpoints, 0)
	defer backend.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := backend.Put(ctx, fmt.Sprintf("/test/cb/%d", i), []byte("v")); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	boom := errors.New("boom")
	calls := 0
	err := backend.Scan(ctx, "/test/cb/", func(string, []byte) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("scan continued after callback error: %d calls", calls)
	}
}

func newTestEtcdBackend(t *testing.T, endpoints []string, maxValueBytes int) *EtcdBackend {
	t.Helper()
	backend, err := NewEtcdBackend(EtcdConfig{
		Endpoints:     endpoints,
		MaxValueBytes: maxValueBytes,
	})
	if err != nil {
		t.Fatalf("NewEtcdBackend: %v", err)
	}
	return backend
}

func startEmbeddedEtcd(t *testing.T) (*embed.Etcd, []string) {
	t.Helper()
	if err := ensureEtcdPortsFree(); err != nil {
		t.Skipf("skipping etcd backend tests: %v", err)
	}
	cfg := embed.NewConfig()
	cfg.Dir = t.TempDir()
	cfg.LogLevel = "error"
	cfg.Logger = "zap"
	setEtcdPorts(t, cfg, "33379", "33380")

	e, err := embed.StartEtcd(cfg)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping etcd backend tests: %v", err)
		}
		t.Fatalf("start embedded etcd: %v", err)
	}
	select {
	case <-e.Server.ReadyNotify():
	case <-time.After(10 * time.Second):
		e.Server.Stop()
		t.Fatalf("etcd server took too long to start")
	}

	clientURL := e.Clients[0].Addr().String()
	return e, []string{fmt.Sprintf("http://%s", clientURL)}
}

func ensureEtcdPortsFree() error {
	if err := killProcessesOnPort("33379"); err != nil {
		return err
	}
	if err := killProcessesOnPort("33380"); err != nil {
		return err
	}
	if err := portAvailable("127.0.0.1:33379"); err != nil {
		return err
	}
	if err := portAvailable("127.0.0.1:33380"); err != nil {
		return err
	}
	return nil
}

func setEtcdPorts(t *testing.T, cfg *embed.Config, clientPort, peerPort string) {
	t.Helper()
	clientURL, err := url.Parse("http://127.0.0.1:" + clientPort)
	if err != nil {
		t.Fatalf("parse client url: %v", err)
	}
	peerURL, err := url.Parse("http://127.0.0.1:" + peerPort)
	if err != nil {
		t.Fatalf("parse peer url: %v", err)
	}
	cfg.ListenClientUrls = []url.URL{*clientURL}
	cfg.AdvertiseClientUrls = []url.URL{*clientURL}
	cfg.ListenPeerUrls = []url.URL{*peerURL}
	cfg.AdvertisePeerUrls = []url.URL{*peerURL}
	cfg.Name = "default"
	cfg.InitialCluster = cfg.InitialClusterFromName(cfg.Name)
}

func killProcessesOnPort(port string) error {
	out, err := exec.Command("lsof", "-nP", "-iTCP:"+port, "-sTCP:LISTEN", "-t").Output()
	if err != nil {
		return nil
	}
	pids := strings.Fields(string(out))
	for _, pidStr := range pids {
		pid, convErr := strconv.Atoi(strings.TrimSpace(pidStr))
		if convErr != nil {
			continue
		}
		_ = syscall.Kill(pid, syscall.SIGTERM)
		time.Sleep(100 * time.Millisecond)
		if alive := syscall.Kill(pid, 0); alive == nil {
			_ = syscall.Kill(pid, syscall.SIGKILL)
		}
	}
	return nil
}

func portAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %s already in use", addr)
	}
	_ = ln.Close()
	return nil
}
