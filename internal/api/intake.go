// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/kuomat/Traffic-Slice/internal/traffic"
)

// TrafficIntake receives captured traffic units for screening.
type TrafficIntake interface {
	OnHTTPExchange(ctx context.Context, ex *traffic.HTTPExchange)
	OnTCPMessage(ctx context.Context, msg *traffic.TCPMessage)
}

// IntakeHandlers is the ingestion surface for the interception proxy. The
// proxy runs out of process and posts every captured unit here.
type IntakeHandlers struct {
	intake TrafficIntake
}

// NewIntakeHandlers creates intake handlers dispatching to the engine.
func NewIntakeHandlers(intake TrafficIntake) *IntakeHandlers {
	return &IntakeHandlers{intake: intake}
}

type headerPayload struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type httpExchangePayload struct {
	FlowID  string          `json:"flow_id"`
	URL     string          `json:"url"`
	Method  string          `json:"method"`
	Headers []headerPayload `json:"headers"`
	Body    string          `json:"body"`
	Host    string          `json:"host"`
}

type tcpMessagePayload struct {
	FlowID      string `json:"flow_id"`
	ClientHost  string `json:"client_host"`
	ClientPort  int    `json:"client_port"`
	ServerHost  string `json:"server_host"`
	ServerPort  int    `json:"server_port"`
	Payload     []byte `json:"payload"`
	PayloadText string `json:"payload_text"`
	FromClient  bool   `json:"from_client"`
}

// IngestHTTPExchange handles POST /api/v1/traffic/http. Screening runs
// synchronously; the proxy sees 202 once every screener has seen the unit.
func (h *IntakeHandlers) IngestHTTPExchange(w http.ResponseWriter, r *http.Request) {
	var payload httpExchangePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid traffic payload", err)
		return
	}
	if payload.URL == "" && payload.Host == "" {
		respondError(w, http.StatusBadRequest, "url or host is required", nil)
		return
	}

	ex := &traffic.HTTPExchange{
		FlowID:     payload.FlowID,
		URL:        payload.URL,
		Method:     payload.Method,
		BodyText:   payload.Body,
		Host:       payload.Host,
		CapturedAt: time.Now().UTC(),
	}
	if ex.FlowID == "" {
		ex.FlowID = traffic.NewFlowID()
	}
	for _, hdr := range payload.Headers {
		ex.Headers = append(ex.Headers, traffic.Header{Name: hdr.Name, Value: hdr.Value})
	}

	h.intake.OnHTTPExchange(r.Context(), ex)

	writeJSONStatus(w, http.StatusAccepted, map[string]string{"flow_id": ex.FlowID})
}

// IngestTCPMessage handles POST /api/v1/traffic/tcp. The payload may arrive
// base64-encoded ("payload") or as plain text ("payload_text").
func (h *IntakeHandlers) IngestTCPMessage(w http.ResponseWriter, r *http.Request) {
	var payload tcpMessagePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid traffic payload", err)
		return
	}
	if payload.ServerHost == "" {
		respondError(w, http.StatusBadRequest, "server_host is required", nil)
		return
	}

	content := payload.Payload
	if len(content) == 0 && payload.PayloadText != "" {
		content = []byte(payload.PayloadText)
	}

	msg := &traffic.TCPMessage{
		FlowID:     payload.FlowID,
		ClientHost: payload.ClientHost,
		ClientPort: payload.ClientPort,
		ServerHost: payload.ServerHost,
		ServerPort: payload.ServerPort,
		Payload:    content,
		FromClient: payload.FromClient,
		CapturedAt: time.Now().UTC(),
	}
	if msg.FlowID == "" {
		msg.FlowID = traffic.NewFlowID()
	}

	h.intake.OnTCPMessage(r.Context(), msg)

	writeJSONStatus(w, http.StatusAccepted, map[string]string{"flow_id": msg.FlowID})
}
