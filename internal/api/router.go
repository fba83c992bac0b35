// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kuomat/Traffic-Slice/internal/websocket"
)

// NewRouter assembles the HTTP API. intake and hub may be nil; the
// corresponding routes are simply not mounted.
func NewRouter(handlers *Handlers, intake *IntakeHandlers, hub *websocket.Hub) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.Health)
		r.Get("/alerts", handlers.ListAlerts)
		r.Get("/alerts/count", handlers.CountAlerts)
		r.Get("/alerts/{id}", handlers.GetAlert)

		if intake != nil {
			r.Post("/traffic/http", intake.IngestHTTPExchange)
			r.Post("/traffic/tcp", intake.IngestTCPMessage)
		}
		if hub != nil {
			r.Get("/ws", websocketHandler(hub))
		}
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
