package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/ledgercore/internal/adapter/repository/memory"
	"github.com/iho/ledgercore/internal/infrastructure/config"
	"github.com/iho/ledgercore/internal/infrastructure/eventpublisher"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()

	t.Setenv("STORAGE_BACKEND", config.StorageBackendMemory)
	t.Setenv("OUTBOX_INTERVAL", "10ms")

	cfg, err := config.Parse()
	require.NoError(t, err)

	return cfg
}

func TestNewPublisherDefaultsToLog(t *testing.T) {
	cfg := memoryConfig(t)

	p, closeFn, err := newPublisher(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer closeFn()

	_, ok := p.(*eventpublisher.LogPublisher)
	assert.True(t, ok, "expected LogPublisher, got %T", p)
}

func TestNewAppMemoryBackend(t *testing.T) {
	cfg := memoryConfig(t)

	a, err := newApp(context.Background(), cfg, zerolog.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.router)
	assert.NotNil(t, a.relay)

	cfg.OutboxEnabled = false
	b, err := newApp(context.Background(), cfg, zerolog.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer b.Close()

	assert.Nil(t, b.relay)
}

func TestServeUntilCancelled(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.HTTPShutdownTimeout = time.Second

	a, err := newApp(context.Background(), cfg, zerolog.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.Close()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, zerolog.Nop(), a, listener) }()

	base := "http://" + listener.Addr().String()

	resp, err := http.Post(base+"/api/v1/accounts", "application/json", strings.NewReader(`{"id":"alice","currency":"USD"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Get(base + "/ready")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ready")

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestMemoryBackendDoesNotRetry(t *testing.T) {
	b := newMemoryBackend()

	_, ok := b.retrier.(memory.Retrier)
	assert.True(t, ok, "expected memory retrier, got %T", b.retrier)
}

func TestServeDrainsInFlightRequests(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.HTTPShutdownTimeout = 5 * time.Second

	started := make(chan struct{})
	release := make(chan struct{})

	a := &app{router: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release

		if err := r.Context().Err(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, zerolog.Nop(), a, listener) }()

	status := make(chan int, 1)
	go func() {
		resp, err := http.Post("http://"+listener.Addr().String()+"/api/v1/transfers", "application/json", strings.NewReader(`{}`))
		if err != nil {
			status <- 0
			return
		}
		resp.Body.Close()
		status <- resp.StatusCode
	}()

	<-started
	cancel()
	time.Sleep(50 * time.Millisecond)
	close(release)

	select {
	case code := <-status:
		assert.Equal(t, http.StatusCreated, code)
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight request did not complete")
	}

	assert.NoError(t, <-done)
}
