// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/kuomat/Traffic-Slice/internal/screener"
	"github.com/kuomat/Traffic-Slice/internal/store"
)

type mockAlertStore struct {
	alerts     []*store.Alert
	requests   map[int64][]*store.HTTPRequestRecord
	messages   map[int64][]*store.TCPMessageRecord
	lastFilter store.AlertFilter
	err        error
}

func (m *mockAlertStore) ListAlerts(_ context.Context, filter store.AlertFilter) ([]*store.Alert, error) {
	m.lastFilter = filter
	if m.err != nil {
		return nil, m.err
	}
	return m.alerts, nil
}

func (m *mockAlertStore) CountAlerts(_ context.Context, filter store.AlertFilter) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return int64(len(m.alerts)), nil
}

func (m *mockAlertStore) GetAlert(_ context.Context, id int64) (*store.Alert, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, a := range m.alerts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (m *mockAlertStore) HTTPRequestsForAlert(_ context.Context, alertID int64) ([]*store.HTTPRequestRecord, error) {
	return m.requests[alertID], nil
}

func (m *mockAlertStore) TCPMessagesForAlert(_ context.Context, alertID int64) ([]*store.TCPMessageRecord, error) {
	return m.messages[alertID], nil
}

func sampleAlert(id int64) *store.Alert {
	return &store.Alert{
		ID:                id,
		AlertName:         "Location Data Leak",
		Type:              screener.AlertTypeLocation,
		Severity:          3,
		Message:           "Coordinate pair detected in traffic",
		ApplicationFrom:   "UNKNOWN",
		DestinationDomain: "UNKNOWN",
		CreatedAt:         time.Now().UTC(),
	}
}

func newTestServer(m *mockAlertStore) *httptest.Server {
	return httptest.NewServer(NewRouter(NewHandlers(m), nil, nil))
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestListAlerts(t *testing.T) {
	m := &mockAlertStore{alerts: []*store.Alert{sampleAlert(1), sampleAlert(2)}}
	srv := newTestServer(m)
	defer srv.Close()

	var body struct {
		Alerts []store.Alert `json:"alerts"`
		Total  int64         `json:"total"`
		Limit  int           `json:"limit"`
	}
	status := getJSON(t, srv.URL+"/api/v1/alerts", &body)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(body.Alerts) != 2 || body.Total != 2 {
		t.Errorf("alerts = %d, total = %d", len(body.Alerts), body.Total)
	}
	if body.Limit != 100 {
		t.Errorf("default limit = %d, want 100", body.Limit)
	}
}

func TestListAlertsFilterParsing(t *testing.T) {
	m := &mockAlertStore{}
	srv := newTestServer(m)
	defer srv.Close()

	url := srv.URL + "/api/v1/alerts?type=secret&severity=5&limit=10&offset=20" +
		"&alert_name=Environment+Variable+Leak&message=system&order_by=severity&order_dir=ASC"
	if status := getJSON(t, url, nil); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}

	f := m.lastFilter
	if f.Type != screener.AlertTypeSecret || f.Severity != 5 {
		t.Errorf("type/severity = %q/%d", f.Type, f.Severity)
	}
	if f.Limit != 10 || f.Offset != 20 {
		t.Errorf("limit/offset = %d/%d", f.Limit, f.Offset)
	}
	if f.AlertName != "Environment Variable Leak" || f.MessageContains != "system" {
		t.Errorf("name/message = %q/%q", f.AlertName, f.MessageContains)
	}
	if f.OrderBy != "severity" || f.OrderDir != "ASC" {
		t.Errorf("ordering = %q %q", f.OrderBy, f.OrderDir)
	}
}

func TestListAlertsRejectsUnknownType(t *testing.T) {
	srv := newTestServer(&mockAlertStore{})
	defer srv.Close()

	if status := getJSON(t, srv.URL+"/api/v1/alerts?type=bogus", nil); status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestListAlertsStoreError(t *testing.T) {
	srv := newTestServer(&mockAlertStore{err: errors.New("db down")})
	defer srv.Close()

	if status := getJSON(t, srv.URL+"/api/v1/alerts", nil); status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", status)
	}
}

func TestGetAlertWithLinkedTraffic(t *testing.T) {
	m := &mockAlertStore{
		alerts: []*store.Alert{sampleAlert(7)},
		requests: map[int64][]*store.HTTPRequestRecord{
			7: {{ID: 3, URL: "https://example.com/upload", Method: "POST"}},
		},
	}
	srv := newTestServer(m)
	defer srv.Close()

	var body struct {
		Alert        store.Alert               `json:"alert"`
		HTTPRequests []store.HTTPRequestRecord `json:"http_requests"`
		TCPMessages  []store.TCPMessageRecord  `json:"tcp_messages"`
	}
	status := getJSON(t, srv.URL+"/api/v1/alerts/7", &body)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body.Alert.ID != 7 {
		t.Errorf("alert id = %d", body.Alert.ID)
	}
	if len(body.HTTPRequests) != 1 || body.HTTPRequests[0].URL != "https://example.com/upload" {
		t.Errorf("linked requests = %+v", body.HTTPRequests)
	}
	if body.TCPMessages == nil || len(body.TCPMessages) != 0 {
		t.Errorf("tcp messages = %+v, want empty array", body.TCPMessages)
	}
}

func TestGetAlertNotFound(t *testing.T) {
	srv := newTestServer(&mockAlertStore{})
	defer srv.Close()

	if status := getJSON(t, srv.URL+"/api/v1/alerts/999", nil); status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
}

func TestGetAlertInvalidID(t *testing.T) {
	srv := newTestServer(&mockAlertStore{})
	defer srv.Close()

	if status := getJSON(t, srv.URL+"/api/v1/alerts/abc", nil); status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestCountAlerts(t *testing.T) {
	m := &mockAlertStore{alerts: []*store.Alert{sampleAlert(1)}}
	srv := newTestServer(m)
	defer srv.Close()

	var body map[string]int64
	if status := getJSON(t, srv.URL+"/api/v1/alerts/count", &body); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body["count"] != 1 {
		t.Errorf("count = %d, want 1", body["count"])
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&mockAlertStore{})
	defer srv.Close()

	var body map[string]string
	if status := getJSON(t, srv.URL+"/api/v1/health", &body); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body["status"] != "ok" {
		t.Errorf("status body = %q", body["status"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&mockAlertStore{})
	defer srv.Close()

	if status := getJSON(t, srv.URL+"/metrics", nil); status != http.StatusOK {
		t.Errorf("metrics status = %d", status)
	}
}
