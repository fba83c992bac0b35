// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

package screener

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/kuomat/Traffic-Slice/internal/traffic"
)

// Unix timestamp plausibility bounds: 2000-01-01 through 2050-01-01. Bare
// digit runs outside these ranges are random numbers, not timestamps.
const (
	unixSecondsMin = 946684800
	unixSecondsMax = 2524608000
	unixMillisMin  = 946684800000
	unixMillisMax  = 2524608000000
)

// timestampPattern recognizes the common timestamp shapes: unix seconds and
// milliseconds, full datetimes (ISO 8601 or space-separated), date-only and
// time-only formats. The combined datetime alternative comes before the
// date and time shapes so "2024-03-05 19:32:28" counts as one timestamp,
// not two.
var timestampPattern = regexp.MustCompile(
	`\b\d{10}\b` +
		`|\b\d{13}\b` +
		`|\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?` +
		`|\d{4}-\d{2}-\d{2}` +
		`|\d{2}/\d{2}/\d{4}` +
		`|\d{2}-\d{2}-\d{4}` +
		`|\d{2}:\d{2}:\d{2}(?:\.\d+)?`,
)

// TimestampScreener flags applications that send bursts of timestamped
// requests, a fingerprinting and activity-tracking signal. Two independent
// measurements feed one finding: the number of timestamps in the current
// record, and the number of timestamp-bearing requests the application sent
// within the sliding window. Only the second crossing its threshold fires.
type TimestampScreener struct {
	setup     AlertSetup
	window    *rateWindow
	windowDur time.Duration
	threshold int
}

// NewTimestampScreener builds the screener with the given window length and
// request-count threshold.
func NewTimestampScreener(window time.Duration, threshold int) *TimestampScreener {
	return &TimestampScreener{
		setup: AlertSetup{
			AlertName: "Excessive Timestamps",
			Type:      AlertTypeTimestamp,
			Severity:  2,
		},
		window:    newRateWindow(window),
		windowDur: window,
		threshold: threshold,
	}
}

func (s *TimestampScreener) Name() string      { return "timestamp" }
func (s *TimestampScreener) Setup() AlertSetup { return s.setup }

func (s *TimestampScreener) Screen(_ context.Context, ev traffic.Evidence) *Finding {
	var found int
	for _, text := range ev.Strings {
		if text == "" {
			continue
		}
		found += countTimestamps(text)
	}
	if found == 0 {
		return nil
	}

	requests := s.window.Observe(appID(ev))
	if requests <= s.threshold {
		return nil
	}

	return newFinding(fmt.Sprintf(
		"Detected %d timestamps in request. "+
			"Application has sent %d timestamp-containing requests in the last %d seconds.",
		found, requests, int(s.windowDur.Seconds()),
	))
}

// appID identifies the sending application for rate tracking.
func appID(ev traffic.Evidence) string {
	if ev.Host == "" {
		return "unknown"
	}
	return ev.Host
}

// countTimestamps counts plausible timestamp occurrences in text.
func countTimestamps(text string) int {
	n := 0
	for _, match := range timestampPattern.FindAllString(text, -1) {
		if plausibleTimestamp(match) {
			n++
		}
	}
	return n
}

// plausibleTimestamp filters bare digit runs through the unix range bounds.
// Non-numeric shapes already encode a date or time and pass as-is.
func plausibleTimestamp(match string) bool {
	ts, err := strconv.ParseInt(match, 10, 64)
	if err != nil {
		return true
	}
	switch len(match) {
	case 10:
		return ts >= unixSecondsMin && ts <= unixSecondsMax
	case 13:
		return ts >= unixMillisMin && ts <= unixMillisMax
	default:
		return true
	}
}
