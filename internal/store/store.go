// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

// Package store persists alerts and the traffic that produced them in
// DuckDB.
//
// The schema correlates alerts to traffic through join tables: an alert can
// reference many HTTP requests or TCP messages and vice versa, even though
// the current pipeline writes exactly one link per alert. Alerts are
// append-only; the store never deduplicates.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/kuomat/Traffic-Slice/internal/config"
	"github.com/kuomat/Traffic-Slice/internal/logging"
	"github.com/kuomat/Traffic-Slice/internal/screener"
)

// unknownSentinel marks attribution fields no collaborator filled in.
// Application attribution is a known limitation of the capture setup; the
// sentinel keeps the columns queryable.
const unknownSentinel = "UNKNOWN"

// Alert is a persisted finding.
type Alert struct {
	ID                int64              `json:"id"`
	AlertName         string             `json:"alert_name"`
	Type              screener.AlertType `json:"type"`
	Severity          int                `json:"severity"`
	Message           string             `json:"message"`
	ApplicationFrom   string             `json:"application_from"`
	DestinationDomain string             `json:"destination_domain"`
	CreatedAt         time.Time          `json:"created_at"`
}

// HTTPRequestRecord is a persisted HTTP exchange linked to an alert.
type HTTPRequestRecord struct {
	ID      int64  `json:"id"`
	FlowID  string `json:"flow_id"`
	URL     string `json:"url"`
	Method  string `json:"method"`
	Headers string `json:"headers"`
	Content string `json:"content"`
}

// TCPMessageRecord is a persisted TCP message linked to an alert.
type TCPMessageRecord struct {
	ID         int64  `json:"id"`
	FlowID     string `json:"flow_id"`
	ClientHost string `json:"client_host"`
	ClientPort int    `json:"client_port"`
	ServerHost string `json:"server_host"`
	ServerPort int    `json:"server_port"`
	Content    []byte `json:"content"`
	FromClient bool   `json:"from_client"`
}

// DuckDBStore is the DuckDB-backed alert store.
type DuckDBStore struct {
	db *sql.DB
}

// Open opens the DuckDB database described by cfg and returns a store over
// it. The schema is not created here; call InitSchema before use.
func Open(cfg config.DatabaseConfig) (*DuckDBStore, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, threads, cfg.MaxMemory)

	db, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewDuckDBStore(db), nil
}

// NewDuckDBStore wraps an existing connection. Used by tests with in-memory
// databases.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// schemaStatements creates sequences, tables and indexes. Every statement is
// idempotent; startup runs them unconditionally.
var schemaStatements = []string{
	`CREATE SEQUENCE IF NOT EXISTS alerts_id_seq`,
	`CREATE SEQUENCE IF NOT EXISTS http_requests_id_seq`,
	`CREATE SEQUENCE IF NOT EXISTS tcp_messages_id_seq`,

	`CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY DEFAULT nextval('alerts_id_seq'),
		alert_name VARCHAR NOT NULL,
		message VARCHAR NOT NULL,
		application_from VARCHAR NOT NULL DEFAULT 'UNKNOWN',
		destination_domain VARCHAR NOT NULL DEFAULT 'UNKNOWN',
		type VARCHAR NOT NULL,
		severity INTEGER NOT NULL CHECK (severity BETWEEN 1 AND 5),
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,

	`CREATE TABLE IF NOT EXISTS http_requests (
		id INTEGER PRIMARY KEY DEFAULT nextval('http_requests_id_seq'),
		flow_id VARCHAR NOT NULL,
		url VARCHAR NOT NULL,
		method VARCHAR NOT NULL,
		headers VARCHAR NOT NULL,
		request_content VARCHAR NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,

	`CREATE TABLE IF NOT EXISTS tcp_messages (
		id INTEGER PRIMARY KEY DEFAULT nextval('tcp_messages_id_seq'),
		flow_id VARCHAR NOT NULL,
		client_host VARCHAR NOT NULL,
		client_port INTEGER NOT NULL,
		server_host VARCHAR NOT NULL,
		server_port INTEGER NOT NULL,
		message_content BLOB,
		from_client BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,

	`CREATE TABLE IF NOT EXISTS alert_http_requests (
		alert_id INTEGER NOT NULL,
		http_request_id INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS alert_tcp_messages (
		alert_id INTEGER NOT NULL,
		tcp_message_id INTEGER NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_alerts_type ON alerts(type)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_severity ON alerts(severity)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_alert_http_requests_alert ON alert_http_requests(alert_id)`,
	`CREATE INDEX IF NOT EXISTS idx_alert_tcp_messages_alert ON alert_tcp_messages(alert_id)`,
}

// InitSchema creates the schema if it does not exist.
func (s *DuckDBStore) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	logging.Debug().Msg("alert store schema initialized")
	return nil
}

// Close flushes and closes the database.
func (s *DuckDBStore) Close() error {
	if _, err := s.db.Exec("CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("checkpoint before close failed")
	}
	return s.db.Close()
}
