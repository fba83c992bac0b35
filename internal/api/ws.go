// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

package api

import (
	"net/http"

	gorillaws "github.com/gorilla/websocket"

	"github.com/kuomat/Traffic-Slice/internal/logging"
	"github.com/kuomat/Traffic-Slice/internal/websocket"
)

// upgrader accepts any origin: the API binds to loopback and the review
// frontend is served from a different port during development.
var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// websocketHandler upgrades GET /api/v1/ws and attaches the client to the
// alert broadcast hub.
func websocketHandler(hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Error().Err(err).Msg("websocket upgrade failed")
			return
		}

		client := websocket.NewClient(hub, conn)
		hub.Register <- client
		client.Start()
	}
}
