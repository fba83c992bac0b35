// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

package screener

import (
	"context"
	"strings"

	"github.com/kuomat/Traffic-Slice/internal/logging"
	"github.com/kuomat/Traffic-Slice/internal/metrics"
	"github.com/kuomat/Traffic-Slice/internal/traffic"
)

// clipboardPreviewLimit bounds how much clipboard content an alert message
// may carry. Longer content is truncated to 47 characters plus an ellipsis.
const clipboardPreviewLimit = 50

// ClipboardProvider reads the current clipboard text. Implementations must
// respect the context deadline and never block indefinitely.
type ClipboardProvider interface {
	ReadText(ctx context.Context) (string, error)
}

// ClipboardScreener detects the live clipboard content appearing inside
// intercepted traffic. The clipboard is read once per screening pass; a
// failed or empty read produces no finding.
type ClipboardScreener struct {
	setup    AlertSetup
	provider ClipboardProvider
}

// NewClipboardScreener builds a screener backed by the given provider.
func NewClipboardScreener(provider ClipboardProvider) *ClipboardScreener {
	return &ClipboardScreener{
		setup: AlertSetup{
			AlertName: "Clipboard Data Leak",
			Type:      AlertTypeClipboard,
			Severity:  4,
		},
		provider: provider,
	}
}

func (s *ClipboardScreener) Name() string      { return "clipboard" }
func (s *ClipboardScreener) Setup() AlertSetup { return s.setup }

func (s *ClipboardScreener) Screen(ctx context.Context, ev traffic.Evidence) *Finding {
	content, err := s.provider.ReadText(ctx)
	if err != nil {
		metrics.ProviderFailures.WithLabelValues("clipboard").Inc()
		logging.Debug().Err(err).Msg("clipboard read failed, skipping screen")
		return nil
	}
	if content == "" {
		return nil
	}

	for _, text := range ev.Strings {
		if text == "" {
			continue
		}
		if strings.Contains(text, content) {
			return newFinding(
				"Detected clipboard content in network traffic: '" +
					previewClipboard(content) + "'",
			)
		}
	}
	return nil
}

// previewClipboard truncates content for inclusion in an alert message.
// Truncation counts runes, not bytes, so multi-byte content is never split
// mid-character.
func previewClipboard(content string) string {
	runes := []rune(content)
	if len(runes) > clipboardPreviewLimit {
		return string(runes[:47]) + "..."
	}
	return content
}
