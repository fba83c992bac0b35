// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

package geolocate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

type mockProvider struct {
	mu    sync.Mutex
	lat   float64
	lon   float64
	err   error
	calls int32
	block chan struct{}
}

func (m *mockProvider) Locate(context.Context) (float64, float64, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lat, m.lon, m.err
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) callCount() int32 { return atomic.LoadInt32(&m.calls) }

func TestCacheRefreshAndTTL(t *testing.T) {
	p := &mockProvider{lat: 51.5, lon: -0.12}
	c := NewCache(p, 900*time.Second)

	current := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return current }

	lat, lon := c.Current(context.Background())
	if lat != 51.5 || lon != -0.12 {
		t.Fatalf("Current = (%v, %v), want provider value", lat, lon)
	}
	if p.callCount() != 1 {
		t.Fatalf("provider called %d times, want 1", p.callCount())
	}

	// Within the TTL the provider is not consulted again.
	current = current.Add(899 * time.Second)
	c.Current(context.Background())
	if p.callCount() != 1 {
		t.Errorf("provider re-queried inside TTL: %d calls", p.callCount())
	}

	// Past the TTL it is.
	current = current.Add(2 * time.Second)
	c.Current(context.Background())
	if p.callCount() != 2 {
		t.Errorf("provider not re-queried after TTL: %d calls", p.callCount())
	}
}

func TestCacheDefaultsToOrigin(t *testing.T) {
	p := &mockProvider{err: errors.New("provider down")}
	c := NewCache(p, time.Second)

	lat, lon := c.Current(context.Background())
	if lat != 0 || lon != 0 {
		t.Errorf("Current with no prior value = (%v, %v), want (0, 0)", lat, lon)
	}
}

func TestCacheKeepsLastGoodValueOnFailure(t *testing.T) {
	p := &mockProvider{lat: 40.71, lon: -74.0}
	c := NewCache(p, time.Second)

	current := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return current }

	c.Current(context.Background())

	p.mu.Lock()
	p.err = errors.New("provider down")
	p.mu.Unlock()

	current = current.Add(2 * time.Second)
	lat, lon := c.Current(context.Background())
	if lat != 40.71 || lon != -74.0 {
		t.Errorf("failure dropped the cached value: (%v, %v)", lat, lon)
	}
}

func TestCacheFailedAttemptIsDebounced(t *testing.T) {
	p := &mockProvider{err: errors.New("provider down")}
	c := NewCache(p, 900*time.Second)

	current := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return current }

	c.Current(context.Background())
	c.Current(context.Background())
	c.Current(context.Background())

	// A failed attempt still consumes the TTL slot; the provider is not
	// hammered once per screen while it is down.
	if p.callCount() != 1 {
		t.Errorf("provider called %d times inside TTL, want 1", p.callCount())
	}
}

func TestCacheSingleFlightRefresh(t *testing.T) {
	p := &mockProvider{lat: 1, lon: 2, block: make(chan struct{})}
	c := NewCache(p, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Current(context.Background())
		}()
	}

	// Give the racers time to pile up, then release the in-flight lookup.
	time.Sleep(50 * time.Millisecond)
	close(p.block)
	wg.Wait()

	if p.callCount() != 1 {
		t.Errorf("concurrent racers caused %d provider calls, want 1", p.callCount())
	}
}

func TestIPAPIProviderSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","lat":52.52,"lon":13.405}`))
	}))
	defer srv.Close()

	p := NewIPAPIProvider(srv.URL, 5*time.Second)
	lat, lon, err := p.Locate(context.Background())
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if lat != 52.52 || lon != 13.405 {
		t.Errorf("Locate = (%v, %v), want (52.52, 13.405)", lat, lon)
	}
}

func TestIPAPIProviderFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"fail","message":"private range"}`))
	}))
	defer srv.Close()

	p := NewIPAPIProvider(srv.URL, 5*time.Second)
	if _, _, err := p.Locate(context.Background()); err == nil {
		t.Error("expected error for fail status, got nil")
	}
}

func TestIPAPIProviderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewIPAPIProvider(srv.URL, 5*time.Second)
	if _, _, err := p.Locate(context.Background()); err == nil {
		t.Error("expected error for 429 response, got nil")
	}
}

func TestIPAPIProviderBreakerOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewIPAPIProvider(srv.URL, 5*time.Second)
	for i := 0; i < 3; i++ {
		_, _, _ = p.Locate(context.Background())
	}

	// The breaker is open now; the next call is rejected without a request.
	_, _, err := p.Locate(context.Background())
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected open-breaker rejection, got %v", err)
	}
}
