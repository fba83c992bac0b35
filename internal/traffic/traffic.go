// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

// Package traffic defines the captured traffic model and evidence extraction.
//
// The interception proxy hands the engine immutable traffic units: full HTTP
// exchanges and raw TCP messages. Screeners never see the units directly;
// they receive an Evidence value, a fixed-order projection of the searchable
// text plus the destination host.
package traffic

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Header is a single HTTP header as captured on the wire. Order and
// duplicates are preserved; http.Header would collapse both.
type Header struct {
	Name  string
	Value string
}

// HTTPExchange is one intercepted HTTP request/response pair. Immutable
// after capture.
type HTTPExchange struct {
	FlowID     string
	URL        string
	Method     string
	Headers    []Header
	BodyText   string
	Host       string
	CapturedAt time.Time
}

// TCPMessage is one intercepted raw TCP payload. Immutable after capture.
type TCPMessage struct {
	FlowID     string
	ClientHost string
	ClientPort int
	ServerHost string
	ServerPort int
	Payload    []byte
	FromClient bool
	CapturedAt time.Time
}

// NewFlowID returns a fresh capture identifier.
func NewFlowID() string {
	return uuid.NewString()
}

// Evidence is what screeners search. Strings holds the searchable text in a
// fixed order: body, URL, headers for HTTP; the payload for TCP. Host is the
// destination host and doubles as the application id for rate windows.
type Evidence struct {
	Strings []string
	Host    string
}

// FromHTTP projects an HTTP exchange into evidence. The body is searched
// first: it is where leaks actually appear, and most screeners short-circuit
// on the first match.
func FromHTTP(ex *HTTPExchange) Evidence {
	return Evidence{
		Strings: []string{ex.BodyText, ex.URL, formatHeaders(ex.Headers)},
		Host:    ex.Host,
	}
}

// FromTCP projects a TCP message into evidence. The payload is treated as
// text; binary payloads simply fail to match anything.
func FromTCP(msg *TCPMessage) Evidence {
	return Evidence{
		Strings: []string{string(msg.Payload)},
		Host:    fmt.Sprintf("%s:%d", msg.ServerHost, msg.ServerPort),
	}
}

// formatHeaders renders headers one per line, "Name: Value", preserving
// capture order.
func formatHeaders(headers []Header) string {
	if len(headers) == 0 {
		return ""
	}
	var b strings.Builder
	for i, h := range headers {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(h.Name)
		b.WriteString(": ")
		b.WriteString(h.Value)
	}
	return b.String()
}
