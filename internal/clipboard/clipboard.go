// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

// Package clipboard reads the OS clipboard for the clipboard screener.
//
// The default implementation shells out to the platform clipboard utility
// (xclip, pbpaste, powershell Get-Clipboard). Every read is bounded by a
// timeout so a hung utility can never stall a screening pass; errors are
// returned to the caller, which degrades to "no finding".
package clipboard

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"
)

// CommandProvider reads clipboard text by executing an external command.
// Implements screener.ClipboardProvider.
type CommandProvider struct {
	command []string
	timeout time.Duration
}

// NewCommandProvider builds a provider using the platform default clipboard
// utility.
func NewCommandProvider(timeout time.Duration) *CommandProvider {
	return &CommandProvider{command: platformCommand(), timeout: timeout}
}

// NewCustomCommandProvider builds a provider running the given command.
func NewCustomCommandProvider(command []string, timeout time.Duration) *CommandProvider {
	return &CommandProvider{command: command, timeout: timeout}
}

// platformCommand picks the clipboard read command for the current OS.
func platformCommand() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"pbpaste"}
	case "windows":
		return []string{"powershell", "-NoProfile", "-Command", "Get-Clipboard"}
	default:
		return []string{"xclip", "-selection", "clipboard", "-o"}
	}
}

// ReadText returns the current clipboard content. The read is bounded by
// both the caller's context and the provider timeout.
func (p *CommandProvider) ReadText(ctx context.Context) (string, error) {
	if len(p.command) == 0 {
		return "", fmt.Errorf("no clipboard command configured")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, p.command[0], p.command[1:]...).Output()
	if err != nil {
		return "", fmt.Errorf("clipboard read failed: %w", err)
	}
	return string(out), nil
}
