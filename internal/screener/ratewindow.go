// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

package screener

import (
	"sync"
	"time"
)

// rateWindow tracks event times per application id inside a sliding window.
// Shared by the timestamp burst and location frequency screeners.
type rateWindow struct {
	mu     sync.Mutex
	window time.Duration
	events map[string][]time.Time

	// now is swapped in tests to control time.
	now func() time.Time
}

func newRateWindow(window time.Duration) *rateWindow {
	return &rateWindow{
		window: window,
		events: make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Observe prunes events older than the window for key, records the current
// event, and returns the resulting count. The prune, append and count happen
// under one lock so concurrent requests to the same host cannot under- or
// over-count.
func (w *rateWindow) Observe(key string) int {
	now := w.now()
	cutoff := now.Add(-w.window)

	w.mu.Lock()
	defer w.mu.Unlock()

	kept := w.events[key][:0]
	for _, ts := range w.events[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	w.events[key] = kept
	return len(kept)
}

// Count returns the in-window event count for key without recording a new
// event.
func (w *rateWindow) Count(key string) int {
	cutoff := w.now().Add(-w.window)

	w.mu.Lock()
	defer w.mu.Unlock()

	n := 0
	for _, ts := range w.events[key] {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}
