// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kuomat/Traffic-Slice/internal/screener"
	"github.com/kuomat/Traffic-Slice/internal/traffic"
)

// RecordHTTPFinding persists a finding with its originating HTTP exchange.
// The alert row, the http_requests row and the link are one transaction.
// Implements screener.FindingRecorder.
func (s *DuckDBStore) RecordHTTPFinding(ctx context.Context, setup screener.AlertSetup, f *screener.Finding, ex *traffic.HTTPExchange) (int64, error) {
	var alertID int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		alertID, err = insertAlert(ctx, tx, setup, f)
		if err != nil {
			return err
		}

		requestID, err := insertHTTPRequest(ctx, tx, ex)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO alert_http_requests (alert_id, http_request_id) VALUES (?, ?)`,
			alertID, requestID)
		if err != nil {
			return fmt.Errorf("failed to link alert to http request: %w", err)
		}
		return nil
	})
	return alertID, err
}

// RecordTCPFinding persists a finding with its originating TCP message.
// Implements screener.FindingRecorder.
func (s *DuckDBStore) RecordTCPFinding(ctx context.Context, setup screener.AlertSetup, f *screener.Finding, msg *traffic.TCPMessage) (int64, error) {
	var alertID int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		alertID, err = insertAlert(ctx, tx, setup, f)
		if err != nil {
			return err
		}

		messageID, err := insertTCPMessage(ctx, tx, msg)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO alert_tcp_messages (alert_id, tcp_message_id) VALUES (?, ?)`,
			alertID, messageID)
		if err != nil {
			return fmt.Errorf("failed to link alert to tcp message: %w", err)
		}
		return nil
	})
	return alertID, err
}

// inTx runs fn inside a transaction, rolling back on error.
func (s *DuckDBStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// insertAlert writes one alert row and returns its generated id. DuckDB
// does not support LastInsertId with sequences, so RETURNING is used.
func insertAlert(ctx context.Context, tx *sql.Tx, setup screener.AlertSetup, f *screener.Finding) (int64, error) {
	query := `INSERT INTO alerts
		(alert_name, message, application_from, destination_domain, type, severity, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	var id int64
	err := tx.QueryRowContext(ctx, query,
		setup.AlertName,
		f.Message,
		unknownSentinel,
		unknownSentinel,
		string(setup.Type),
		setup.Severity,
		f.ProducedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert: %w", err)
	}
	return id, nil
}

func insertHTTPRequest(ctx context.Context, tx *sql.Tx, ex *traffic.HTTPExchange) (int64, error) {
	query := `INSERT INTO http_requests
		(flow_id, url, method, headers, request_content)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`

	var id int64
	err := tx.QueryRowContext(ctx, query,
		ex.FlowID,
		ex.URL,
		ex.Method,
		serializeHeaders(ex.Headers),
		ex.BodyText,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert http request: %w", err)
	}
	return id, nil
}

func insertTCPMessage(ctx context.Context, tx *sql.Tx, msg *traffic.TCPMessage) (int64, error) {
	query := `INSERT INTO tcp_messages
		(flow_id, client_host, client_port, server_host, server_port, message_content, from_client)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	var id int64
	err := tx.QueryRowContext(ctx, query,
		msg.FlowID,
		msg.ClientHost,
		msg.ClientPort,
		msg.ServerHost,
		msg.ServerPort,
		msg.Payload,
		msg.FromClient,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert tcp message: %w", err)
	}
	return id, nil
}

// serializeHeaders stores headers in the same one-per-line form screeners
// search, so the stored record matches what was screened.
func serializeHeaders(headers []traffic.Header) string {
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
