// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

package screener

import (
	"context"
	"time"

	"github.com/kuomat/Traffic-Slice/internal/logging"
	"github.com/kuomat/Traffic-Slice/internal/traffic"
)

// LocationFrequencyScreener throttles another screener's findings per
// application id. Location traffic is chatty: a navigation app legitimately
// hits a maps endpoint many times a minute, and without throttling every
// request raises its own alert. The wrapped screener still screens every
// record; only emission is suppressed once the per-application allowance
// inside the window is spent.
type LocationFrequencyScreener struct {
	inner     Screener
	window    *rateWindow
	maxAlerts int
}

// NewLocationFrequencyScreener wraps inner, allowing at most maxAlerts
// findings per application id within the window.
func NewLocationFrequencyScreener(inner Screener, window time.Duration, maxAlerts int) *LocationFrequencyScreener {
	if maxAlerts < 1 {
		maxAlerts = 1
	}
	return &LocationFrequencyScreener{
		inner:     inner,
		window:    newRateWindow(window),
		maxAlerts: maxAlerts,
	}
}

func (s *LocationFrequencyScreener) Name() string      { return s.inner.Name() + "_throttled" }
func (s *LocationFrequencyScreener) Setup() AlertSetup { return s.inner.Setup() }

func (s *LocationFrequencyScreener) Screen(ctx context.Context, ev traffic.Evidence) *Finding {
	finding := s.inner.Screen(ctx, ev)
	if finding == nil {
		return nil
	}

	if s.window.Observe(appID(ev)) > s.maxAlerts {
		logging.Debug().
			Str("screener", s.inner.Name()).
			Str("app_id", appID(ev)).
			Msg("location finding suppressed by frequency throttle")
		return nil
	}
	return finding
}
