// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

package services

import (
	"context"
)

// HubRunner is the run loop of the websocket hub.
type HubRunner interface {
	RunWithContext(ctx context.Context) error
}

// HubService runs the alert broadcast hub under supervision.
type HubService struct {
	hub HubRunner
}

// NewHubService wraps hub.
func NewHubService(hub HubRunner) *HubService {
	return &HubService{hub: hub}
}

// Serve implements suture.Service.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

func (s *HubService) String() string {
	return "websocket-hub"
}
