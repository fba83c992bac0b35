// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSlogBridgeWritesToZerolog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&slogBridge{logger: NewTestLogger(&buf)})

	logger.Info("service started", "service", "websocket-hub", "count", int64(3))

	out := buf.String()
	if !strings.Contains(out, `"message":"service started"`) {
		t.Errorf("output missing message: %s", out)
	}
	if !strings.Contains(out, `"service":"websocket-hub"`) {
		t.Errorf("output missing string attr: %s", out)
	}
	if !strings.Contains(out, `"count":3`) {
		t.Errorf("output missing int attr: %s", out)
	}
	if !strings.Contains(out, `"level":"info"`) {
		t.Errorf("output missing level: %s", out)
	}
}

func TestSlogBridgeGroupPrefixesKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&slogBridge{logger: NewTestLogger(&buf)})

	logger.WithGroup("supervisor").Warn("service failed", "name", "http-server")

	if !strings.Contains(buf.String(), `"supervisor.name":"http-server"`) {
		t.Errorf("group prefix missing: %s", buf.String())
	}
}

func TestSlogBridgeWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&slogBridge{logger: NewTestLogger(&buf)})

	logger.With("component", "tree").Error("restart budget exhausted")

	out := buf.String()
	if !strings.Contains(out, `"component":"tree"`) {
		t.Errorf("pre-set attr missing: %s", out)
	}
	if !strings.Contains(out, `"level":"error"`) {
		t.Errorf("level missing: %s", out)
	}
}

func TestSlogToZerologLevels(t *testing.T) {
	tests := []struct {
		slogLvl slog.Level
		want    zerolog.Level
	}{
		{slog.LevelDebug - 4, zerolog.TraceLevel},
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
		{slog.LevelError + 4, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := slogToZerolog(tt.slogLvl); got != tt.want {
			t.Errorf("slogToZerolog(%v) = %v, want %v", tt.slogLvl, got, tt.want)
		}
	}
}
