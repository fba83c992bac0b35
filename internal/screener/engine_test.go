// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

package screener

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kuomat/Traffic-Slice/internal/traffic"
)

type recordedFinding struct {
	setup   AlertSetup
	finding *Finding
	http    *traffic.HTTPExchange
	tcp     *traffic.TCPMessage
}

type mockRecorder struct {
	mu       sync.Mutex
	recorded []recordedFinding
	nextID   int64
	err      error
}

func (m *mockRecorder) RecordHTTPFinding(_ context.Context, setup AlertSetup, f *Finding, ex *traffic.HTTPExchange) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.recorded = append(m.recorded, recordedFinding{setup: setup, finding: f, http: ex})
	m.nextID++
	return m.nextID, nil
}

func (m *mockRecorder) RecordTCPFinding(_ context.Context, setup AlertSetup, f *Finding, msg *traffic.TCPMessage) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.recorded = append(m.recorded, recordedFinding{setup: setup, finding: f, tcp: msg})
	m.nextID++
	return m.nextID, nil
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recorded)
}

type mockBroadcaster struct {
	mu     sync.Mutex
	alerts []PersistedAlert
}

func (m *mockBroadcaster) BroadcastAlert(a PersistedAlert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, a)
}

func newTestEngine(recorder FindingRecorder) *Engine {
	secret := NewSecretKeyScreener(testSystemKey, testUserKey)
	mac, _ := NewMACAddressScreener(testMACPattern)
	return NewEngine(recorder, secret, mac)
}

func TestEngineRecordsHTTPFindings(t *testing.T) {
	rec := &mockRecorder{}
	e := newTestEngine(rec)

	ex := &traffic.HTTPExchange{
		FlowID:   traffic.NewFlowID(),
		URL:      "https://example.com/upload",
		Method:   "POST",
		Host:     "example.com",
		BodyText: "leak " + testSystemKey + " and 00:1A:2B:3C:4D:5E",
	}
	e.OnHTTPExchange(context.Background(), ex)

	if rec.count() != 2 {
		t.Fatalf("recorded %d findings, want 2 (secret + mac)", rec.count())
	}
	if rec.recorded[0].setup.Type != AlertTypeSecret {
		t.Errorf("first finding type = %q, want secret", rec.recorded[0].setup.Type)
	}
	if rec.recorded[1].setup.Type != AlertTypeMACAddr {
		t.Errorf("second finding type = %q, want mac_addr", rec.recorded[1].setup.Type)
	}
	if rec.recorded[0].http != ex {
		t.Error("finding not linked to the originating exchange")
	}
}

func TestEngineRecordsTCPFindings(t *testing.T) {
	rec := &mockRecorder{}
	e := newTestEngine(rec)

	msg := &traffic.TCPMessage{
		FlowID:     traffic.NewFlowID(),
		ServerHost: "198.51.100.7",
		ServerPort: 9000,
		Payload:    []byte("raw " + testUserKey),
	}
	e.OnTCPMessage(context.Background(), msg)

	if rec.count() != 1 {
		t.Fatalf("recorded %d findings, want 1", rec.count())
	}
	if rec.recorded[0].tcp != msg {
		t.Error("finding not linked to the originating message")
	}
}

func TestEngineCleanTraffic(t *testing.T) {
	rec := &mockRecorder{}
	e := newTestEngine(rec)

	e.OnHTTPExchange(context.Background(), &traffic.HTTPExchange{
		URL:      "https://example.com/",
		BodyText: "nothing sensitive",
		Host:     "example.com",
	})

	if rec.count() != 0 {
		t.Errorf("clean traffic produced %d findings", rec.count())
	}
}

func TestEngineContinuesPastStoreFailure(t *testing.T) {
	rec := &mockRecorder{err: errors.New("store down")}
	e := newTestEngine(rec)

	// Must not panic and must not stop the intake path.
	e.OnHTTPExchange(context.Background(), &traffic.HTTPExchange{
		BodyText: testSystemKey,
		Host:     "example.com",
	})

	// Store recovers; the next exchange persists normally.
	rec.mu.Lock()
	rec.err = nil
	rec.mu.Unlock()

	e.OnHTTPExchange(context.Background(), &traffic.HTTPExchange{
		BodyText: testSystemKey,
		Host:     "example.com",
	})
	if rec.count() != 1 {
		t.Errorf("recorded %d findings after recovery, want 1", rec.count())
	}
}

func TestEngineBroadcastsPersistedAlerts(t *testing.T) {
	rec := &mockRecorder{}
	bc := &mockBroadcaster{}
	e := newTestEngine(rec)
	e.SetBroadcaster(bc)

	e.OnHTTPExchange(context.Background(), &traffic.HTTPExchange{
		BodyText: testSystemKey,
		Host:     "example.com",
	})

	bc.mu.Lock()
	defer bc.mu.Unlock()
	if len(bc.alerts) != 1 {
		t.Fatalf("broadcast %d alerts, want 1", len(bc.alerts))
	}
	a := bc.alerts[0]
	if a.ID != 1 || a.Type != AlertTypeSecret || a.Severity != 5 {
		t.Errorf("broadcast alert = %+v", a)
	}
	if a.Message != "Found system level secret key in traffic" {
		t.Errorf("broadcast message = %q", a.Message)
	}
}

func TestEngineNoBroadcastOnStoreFailure(t *testing.T) {
	rec := &mockRecorder{err: errors.New("store down")}
	bc := &mockBroadcaster{}
	e := newTestEngine(rec)
	e.SetBroadcaster(bc)

	e.OnHTTPExchange(context.Background(), &traffic.HTTPExchange{
		BodyText: testSystemKey,
		Host:     "example.com",
	})

	bc.mu.Lock()
	defer bc.mu.Unlock()
	if len(bc.alerts) != 0 {
		t.Errorf("unpersisted finding was broadcast: %+v", bc.alerts)
	}
}

func TestEngineConcurrentDispatch(t *testing.T) {
	rec := &mockRecorder{}
	e := newTestEngine(rec)

	const goroutines = 16
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			e.OnHTTPExchange(context.Background(), &traffic.HTTPExchange{
				BodyText: testSystemKey,
				Host:     "example.com",
			})
		}()
	}
	wg.Wait()

	if rec.count() != goroutines {
		t.Errorf("recorded %d findings, want %d", rec.count(), goroutines)
	}
}
