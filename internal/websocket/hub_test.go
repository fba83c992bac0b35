// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kuomat/Traffic-Slice/internal/screener"
)

// startHub runs the hub in the background and returns a stop function.
func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("RunWithContext returned %v, want context.Canceled", err)
			}
		case <-time.After(time.Second):
			t.Error("hub did not stop after cancel")
		}
	})
	return hub, cancel
}

// register adds a connection-less client directly through the hub channel.
func register(t *testing.T, hub *Hub) *Client {
	t.Helper()
	client := &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		send: make(chan Message, 256),
	}
	select {
	case hub.Register <- client:
	case <-time.After(time.Second):
		t.Fatal("register timed out")
	}
	return client
}

func waitForClientCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client count = %d, want %d", hub.ClientCount(), want)
}

func TestHubBroadcastAlert(t *testing.T) {
	hub, _ := startHub(t)

	c1 := register(t, hub)
	c2 := register(t, hub)
	waitForClientCount(t, hub, 2)

	alert := screener.PersistedAlert{
		ID:        42,
		AlertName: "Location Data Leak",
		Type:      screener.AlertTypeLocation,
		Severity:  3,
		Message:   "Coordinate pair detected in traffic",
	}
	hub.BroadcastAlert(alert)

	for _, c := range []*Client{c1, c2} {
		select {
		case msg := <-c.send:
			if msg.Type != MessageTypeAlert {
				t.Errorf("message type = %q, want %q", msg.Type, MessageTypeAlert)
			}
			got, ok := msg.Data.(screener.PersistedAlert)
			if !ok {
				t.Fatalf("message data has type %T", msg.Data)
			}
			if got.ID != 42 || got.Type != screener.AlertTypeLocation {
				t.Errorf("delivered alert = %+v", got)
			}
		case <-time.After(time.Second):
			t.Fatal("client did not receive broadcast")
		}
	}
}

func TestHubUnregister(t *testing.T) {
	hub, _ := startHub(t)

	client := register(t, hub)
	waitForClientCount(t, hub, 1)

	hub.Unregister <- client
	waitForClientCount(t, hub, 0)

	// The send channel is closed on unregister.
	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("expected closed send channel")
		}
	case <-time.After(time.Second):
		t.Error("send channel not closed")
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub, _ := startHub(t)

	slow := &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		send: make(chan Message), // unbuffered and never read
	}
	hub.Register <- slow
	waitForClientCount(t, hub, 1)

	hub.BroadcastAlert(screener.PersistedAlert{ID: 1})
	waitForClientCount(t, hub, 0)
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()

	client := register(t, hub)
	waitForClientCount(t, hub, 1)

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithContext returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("client channel not closed on shutdown")
		}
	default:
		t.Error("client channel not closed on shutdown")
	}

	if hub.ClientCount() != 0 {
		t.Errorf("clients remain after shutdown: %d", hub.ClientCount())
	}
}

func TestBroadcastAlertNeverBlocks(t *testing.T) {
	// Hub not running: the queue fills and further broadcasts are dropped
	// instead of blocking the engine.
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.BroadcastAlert(screener.PersistedAlert{ID: int64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("BroadcastAlert blocked on full queue")
	}
}
