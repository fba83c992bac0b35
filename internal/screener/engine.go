// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

package screener

import (
	"context"
	"time"

	"github.com/kuomat/Traffic-Slice/internal/logging"
	"github.com/kuomat/Traffic-Slice/internal/metrics"
	"github.com/kuomat/Traffic-Slice/internal/traffic"
)

// PersistedAlert is an alert after it has been written to the store. The
// broadcast path carries it to live websocket clients.
type PersistedAlert struct {
	ID        int64     `json:"id"`
	AlertName string    `json:"alert_name"`
	Type      AlertType `json:"type"`
	Severity  int       `json:"severity"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// FindingRecorder persists a finding together with the traffic unit that
// produced it. The alert row, the traffic row and the link between them are
// one unit of work: either all land or none do.
type FindingRecorder interface {
	RecordHTTPFinding(ctx context.Context, setup AlertSetup, f *Finding, ex *traffic.HTTPExchange) (int64, error)
	RecordTCPFinding(ctx context.Context, setup AlertSetup, f *Finding, msg *traffic.TCPMessage) (int64, error)
}

// Broadcaster pushes persisted alerts to live subscribers.
type Broadcaster interface {
	BroadcastAlert(alert PersistedAlert)
}

// Engine fans intercepted traffic out to every registered screener and
// persists the findings. Safe for concurrent use: the interception proxy
// delivers callbacks from independently progressing connections.
//
// Persistence failures are logged and counted but never stop intake; the
// screeners keep seeing traffic even when the store is down. Duplicate
// findings are persisted as-is: the alert log is an append-only record of
// everything observed, and deduplication is a reviewer-side concern.
type Engine struct {
	screeners   []Screener
	recorder    FindingRecorder
	broadcaster Broadcaster
}

// NewEngine builds an engine dispatching to the given screeners in order.
func NewEngine(recorder FindingRecorder, screeners ...Screener) *Engine {
	return &Engine{screeners: screeners, recorder: recorder}
}

// SetBroadcaster attaches a live alert broadcaster. Optional; without one,
// alerts are only persisted.
func (e *Engine) SetBroadcaster(b Broadcaster) {
	e.broadcaster = b
}

// Screeners returns the registered screeners in dispatch order.
func (e *Engine) Screeners() []Screener {
	return e.screeners
}

// OnHTTPExchange screens one intercepted HTTP exchange.
func (e *Engine) OnHTTPExchange(ctx context.Context, ex *traffic.HTTPExchange) {
	metrics.TrafficScreened.WithLabelValues("http").Inc()
	e.dispatch(ctx, traffic.FromHTTP(ex), func(ctx context.Context, setup AlertSetup, f *Finding) (int64, error) {
		return e.recorder.RecordHTTPFinding(ctx, setup, f, ex)
	})
}

// OnTCPMessage screens one intercepted TCP message.
func (e *Engine) OnTCPMessage(ctx context.Context, msg *traffic.TCPMessage) {
	metrics.TrafficScreened.WithLabelValues("tcp").Inc()
	e.dispatch(ctx, traffic.FromTCP(msg), func(ctx context.Context, setup AlertSetup, f *Finding) (int64, error) {
		return e.recorder.RecordTCPFinding(ctx, setup, f, msg)
	})
}

// dispatch extracts nothing itself; the evidence arrives pre-projected and
// every screener sees the same value.
func (e *Engine) dispatch(ctx context.Context, ev traffic.Evidence, record func(context.Context, AlertSetup, *Finding) (int64, error)) {
	start := time.Now()
	defer func() {
		metrics.ScreenDuration.Observe(time.Since(start).Seconds())
	}()

	for _, s := range e.screeners {
		finding := s.Screen(ctx, ev)
		if finding == nil {
			continue
		}

		setup := s.Setup()
		metrics.Findings.WithLabelValues(string(setup.Type)).Inc()
		logging.Info().
			Str("screener", s.Name()).
			Str("type", string(setup.Type)).
			Int("severity", setup.Severity).
			Str("host", ev.Host).
			Msg("finding produced")

		id, err := record(ctx, setup, finding)
		if err != nil {
			metrics.PersistenceErrors.Inc()
			logging.Error().
				Err(err).
				Str("screener", s.Name()).
				Msg("failed to persist finding, continuing")
			continue
		}

		if e.broadcaster != nil {
			e.broadcaster.BroadcastAlert(PersistedAlert{
				ID:        id,
				AlertName: setup.AlertName,
				Type:      setup.Type,
				Severity:  setup.Severity,
				Message:   finding.Message,
				CreatedAt: finding.ProducedAt,
			})
		}
	}
}
