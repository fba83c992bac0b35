// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

// Package screener implements the data-loss screeners and the engine that
// dispatches intercepted traffic to them.
//
// A screener inspects one Evidence value and either produces a Finding or
// nil. Screeners never return errors: malformed input, provider failures and
// unparseable payloads all degrade to "no finding" so that a single bad
// record can never stall the intake path.
package screener

import (
	"context"
	"time"

	"github.com/kuomat/Traffic-Slice/internal/traffic"
)

// AlertType classifies what category of leak a screener detects.
type AlertType string

const (
	AlertTypeSecret    AlertType = "secret"
	AlertTypeMACAddr   AlertType = "mac_addr"
	AlertTypeFilename  AlertType = "filename"
	AlertTypeClipboard AlertType = "clipboard"
	AlertTypeLocation  AlertType = "location"
	AlertTypeTimestamp AlertType = "timestamp"
)

// Valid reports whether t is a known alert type.
func (t AlertType) Valid() bool {
	switch t {
	case AlertTypeSecret, AlertTypeMACAddr, AlertTypeFilename,
		AlertTypeClipboard, AlertTypeLocation, AlertTypeTimestamp:
		return true
	}
	return false
}

// Severity bounds for alerts. 1 is lowest, 5 is highest.
const (
	SeverityMin = 1
	SeverityMax = 5
)

// AlertSetup is the fixed identity of the alerts a screener raises. It is
// supplied at construction; screening logic never decides name, type or
// severity per finding.
type AlertSetup struct {
	AlertName string
	Type      AlertType
	Severity  int
}

// Finding is the result of a positive screen. It is ephemeral: the engine
// consumes it immediately and persists it as an alert.
type Finding struct {
	Message    string
	ProducedAt time.Time
}

func newFinding(message string) *Finding {
	return &Finding{Message: message, ProducedAt: time.Now()}
}

// Screener is the contract every detector implements.
//
// Screen returns nil when the evidence is clean. Implementations holding
// internal state (rate windows, cached device location) must be safe for
// concurrent calls.
type Screener interface {
	// Name identifies the screener in logs.
	Name() string

	// Setup returns the fixed alert identity for this screener's findings.
	Setup() AlertSetup

	// Screen inspects the evidence. The context bounds any external
	// provider calls the screener makes.
	Screen(ctx context.Context, ev traffic.Evidence) *Finding
}
