// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

// Package metrics defines Prometheus collectors for the screening pipeline.
// All collectors register against the default registry via promauto and are
// exposed on /metrics by the API server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TrafficScreened counts traffic units fed through the engine, by kind
	// (http or tcp).
	TrafficScreened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trafficslice_traffic_screened_total",
			Help: "Total traffic units screened, by kind",
		},
		[]string{"kind"},
	)

	// Findings counts findings produced by screeners, by alert type.
	Findings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trafficslice_findings_total",
			Help: "Total findings produced, by alert type",
		},
		[]string{"type"},
	)

	// ScreenDuration observes wall time spent screening one traffic unit
	// through all screeners.
	ScreenDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trafficslice_screen_duration_seconds",
			Help:    "Time spent screening a single traffic unit",
			Buckets: prometheus.DefBuckets,
		},
	)

	// PersistenceErrors counts failed RecordFinding transactions. Findings
	// that fail to persist are lost; this counter is the only durable trace.
	PersistenceErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trafficslice_persistence_errors_total",
			Help: "Total finding persistence failures",
		},
	)

	// ProviderFailures counts external provider errors, by provider name
	// (geolocate, clipboard).
	ProviderFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trafficslice_provider_failures_total",
			Help: "Total external provider failures, by provider",
		},
		[]string{"provider"},
	)

	// WebsocketClients tracks currently connected alert stream clients.
	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trafficslice_websocket_clients",
			Help: "Currently connected websocket clients",
		},
	)
)
