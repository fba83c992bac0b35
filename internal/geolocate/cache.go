// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

package geolocate

import (
	"context"
	"sync"
	"time"

	"github.com/kuomat/Traffic-Slice/internal/logging"
	"github.com/kuomat/Traffic-Slice/internal/metrics"
)

// Cache wraps a Provider with a TTL-bounded device location. Refreshes are
// debounced: concurrent callers racing past an expired TTL cause at most one
// provider call, with the racers observing either the stale or the fresh
// value. A provider failure keeps the last good value; before the first
// successful lookup the cache reports (0,0).
type Cache struct {
	provider Provider
	ttl      time.Duration

	mu          sync.Mutex
	lat, lon    float64
	fetchedAt   time.Time
	lastAttempt time.Time
	refreshing  bool

	// now is swapped in tests to control time.
	now func() time.Time
}

// NewCache builds a cache over provider with the given TTL.
func NewCache(provider Provider, ttl time.Duration) *Cache {
	return &Cache{provider: provider, ttl: ttl, now: time.Now}
}

// Current returns the device location, refreshing through the provider when
// the TTL has elapsed. Never fails; implements screener.DeviceLocator.
func (c *Cache) Current(ctx context.Context) (float64, float64) {
	c.mu.Lock()
	if c.refreshing || c.now().Sub(c.lastAttempt) < c.ttl {
		lat, lon := c.lat, c.lon
		c.mu.Unlock()
		return lat, lon
	}
	c.refreshing = true
	c.lastAttempt = c.now()
	c.mu.Unlock()

	lat, lon, err := c.provider.Locate(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshing = false
	if err != nil {
		metrics.ProviderFailures.WithLabelValues("geolocate").Inc()
		logging.Warn().
			Err(err).
			Str("provider", c.provider.Name()).
			Msg("device location refresh failed, keeping cached value")
		return c.lat, c.lon
	}

	c.lat, c.lon = lat, lon
	c.fetchedAt = c.now()
	logging.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Msg("device location refreshed")
	return c.lat, c.lon
}

// FetchedAt reports when the cached value was last successfully refreshed.
// Zero before the first successful lookup.
func (c *Cache) FetchedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchedAt
}
