// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

package screener

import (
	"context"
	"strings"

	"github.com/kuomat/Traffic-Slice/internal/traffic"
)

// SecretKeyScreener detects known secret values leaking in traffic. It
// distinguishes the system-level and user-level key but its findings never
// contain the secret itself, so the alert store cannot re-leak it.
type SecretKeyScreener struct {
	setup     AlertSetup
	systemKey string
	userKey   string
}

// NewSecretKeyScreener builds a screener for the two configured secrets.
func NewSecretKeyScreener(systemKey, userKey string) *SecretKeyScreener {
	return &SecretKeyScreener{
		setup: AlertSetup{
			AlertName: "Environment Variable Leak",
			Type:      AlertTypeSecret,
			Severity:  5,
		},
		systemKey: systemKey,
		userKey:   userKey,
	}
}

func (s *SecretKeyScreener) Name() string      { return "secret_key" }
func (s *SecretKeyScreener) Setup() AlertSetup { return s.setup }

// Screen checks each evidence string for the known secrets, in order,
// short-circuiting on the first hit.
func (s *SecretKeyScreener) Screen(_ context.Context, ev traffic.Evidence) *Finding {
	for _, text := range ev.Strings {
		if text == "" {
			continue
		}
		if strings.Contains(text, s.systemKey) {
			return newFinding("Found system level secret key in traffic")
		}
		if strings.Contains(text, s.userKey) {
			return newFinding("Found user level secret key in traffic")
		}
	}
	return nil
}
