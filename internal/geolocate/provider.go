// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

// Package geolocate resolves the monitoring device's own approximate
// location via IP-based lookup and caches it with a TTL. The location
// screener compares leaked coordinates against this position.
package geolocate

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/kuomat/Traffic-Slice/internal/logging"
)

// Provider resolves the device's current location. Implementations may fail;
// callers must keep a fallback.
type Provider interface {
	// Locate returns the device's latitude and longitude.
	Locate(ctx context.Context) (lat, lon float64, err error)

	// Name identifies the provider in logs and metrics.
	Name() string
}

// ipAPIResponse is the subset of the ip-api.com JSON payload we consume.
type ipAPIResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// IPAPIProvider resolves the device location through ip-api.com's free
// self-lookup endpoint (no API key). Lookups run behind a circuit breaker:
// once the endpoint starts failing, further calls are rejected immediately
// instead of burning the request timeout on every screen.
type IPAPIProvider struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[ipAPIResponse]
}

// NewIPAPIProvider builds a provider for the given endpoint URL with a
// bounded request timeout.
func NewIPAPIProvider(url string, timeout time.Duration) *IPAPIProvider {
	settings := gobreaker.Settings{
		Name:    "ip-api",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("geolocation circuit breaker state change")
		},
	}

	return &IPAPIProvider{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[ipAPIResponse](settings),
	}
}

func (p *IPAPIProvider) Name() string { return "ip-api" }

// Locate performs the self-lookup. The context bounds the request in
// addition to the client timeout.
func (p *IPAPIProvider) Locate(ctx context.Context) (float64, float64, error) {
	resp, err := p.breaker.Execute(func() (ipAPIResponse, error) {
		return p.lookup(ctx)
	})
	if err != nil {
		return 0, 0, err
	}
	return resp.Lat, resp.Lon, nil
}

func (p *IPAPIProvider) lookup(ctx context.Context) (ipAPIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return ipAPIResponse{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return ipAPIResponse{}, fmt.Errorf("geolocation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ipAPIResponse{}, fmt.Errorf("geolocation request returned status %d", resp.StatusCode)
	}

	var body ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ipAPIResponse{}, fmt.Errorf("failed to decode geolocation response: %w", err)
	}
	if body.Status != "success" {
		return ipAPIResponse{}, fmt.Errorf("geolocation lookup failed: %s", body.Message)
	}
	return body, nil
}
