// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

package screener

import (
	"context"
	"fmt"
	"regexp"

	"github.com/kuomat/Traffic-Slice/internal/traffic"
)

// PatternScreener matches a single compiled regular expression against each
// evidence string. The finding reports the matched substring so a reviewer
// can see what leaked without pulling the full traffic record.
type PatternScreener struct {
	name    string
	setup   AlertSetup
	pattern *regexp.Regexp
}

// NewPatternScreener compiles pattern and builds a screener with the given
// alert identity.
func NewPatternScreener(name string, setup AlertSetup, pattern string) (*PatternScreener, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern for %s screener: %w", name, err)
	}
	return &PatternScreener{name: name, setup: setup, pattern: re}, nil
}

// NewMACAddressScreener builds the hardware-address instance.
func NewMACAddressScreener(pattern string) (*PatternScreener, error) {
	return NewPatternScreener("mac_address", AlertSetup{
		AlertName: "MAC Address Leak",
		Type:      AlertTypeMACAddr,
		Severity:  1,
	}, pattern)
}

// NewFilenameScreener builds the filename-extension instance.
func NewFilenameScreener(pattern string) (*PatternScreener, error) {
	return NewPatternScreener("filename", AlertSetup{
		AlertName: "File Name Leak",
		Type:      AlertTypeFilename,
		Severity:  2,
	}, pattern)
}

func (s *PatternScreener) Name() string      { return s.name }
func (s *PatternScreener) Setup() AlertSetup { return s.setup }

func (s *PatternScreener) Screen(_ context.Context, ev traffic.Evidence) *Finding {
	for _, text := range ev.Strings {
		if text == "" {
			continue
		}
		if match := s.pattern.FindString(text); match != "" {
			return newFinding(fmt.Sprintf(
				"Found '%s' matching pattern '%s' in traffic",
				match, s.pattern.String(),
			))
		}
	}
	return nil
}
