// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kuomat/Traffic-Slice/internal/screener"
)

// AlertFilter narrows alert queries. Zero values mean "no constraint";
// filters combine with AND.
type AlertFilter struct {
	AlertName         string
	MessageContains   string
	ApplicationFrom   string
	DestinationDomain string
	Type              screener.AlertType
	Severity          int

	Limit  int
	Offset int

	// OrderBy must name a whitelisted column; OrderDir is ASC or DESC.
	// Default ordering is created_at DESC.
	OrderBy  string
	OrderDir string
}

// validAlertOrderColumns whitelists ORDER BY targets. Anything else is
// rejected rather than interpolated into SQL.
var validAlertOrderColumns = map[string]bool{
	"id":         true,
	"alert_name": true,
	"type":       true,
	"severity":   true,
	"created_at": true,
}

const alertSelectColumns = `id, alert_name, message, application_from, destination_domain, type, severity, created_at`

// buildAlertWhere returns a WHERE clause with a "1=1" base for safe AND
// concatenation, plus the bound arguments.
func buildAlertWhere(filter AlertFilter) (string, []interface{}) {
	clause := "1=1"
	var args []interface{}

	if filter.AlertName != "" {
		clause += " AND alert_name = ?"
		args = append(args, filter.AlertName)
	}
	if filter.MessageContains != "" {
		clause += " AND message LIKE ?"
		args = append(args, "%"+filter.MessageContains+"%")
	}
	if filter.ApplicationFrom != "" {
		clause += " AND application_from = ?"
		args = append(args, filter.ApplicationFrom)
	}
	if filter.DestinationDomain != "" {
		clause += " AND destination_domain = ?"
		args = append(args, filter.DestinationDomain)
	}
	if filter.Type != "" {
		clause += " AND type = ?"
		args = append(args, string(filter.Type))
	}
	if filter.Severity > 0 {
		clause += " AND severity = ?"
		args = append(args, filter.Severity)
	}
	return clause, args
}

// applyOrdering validates and appends the ORDER BY clause.
func applyOrdering(query string, filter AlertFilter) (string, error) {
	column := filter.OrderBy
	if column == "" {
		column = "created_at"
	}
	if !validAlertOrderColumns[column] {
		return "", fmt.Errorf("invalid order column: %s", column)
	}

	dir := strings.ToUpper(filter.OrderDir)
	switch dir {
	case "":
		dir = "DESC"
	case "ASC", "DESC":
	default:
		return "", fmt.Errorf("invalid order direction: %s", filter.OrderDir)
	}
	return query + " ORDER BY " + column + " " + dir, nil
}

// applyPagination appends LIMIT/OFFSET when set.
func applyPagination(query string, filter AlertFilter, args []interface{}) (string, []interface{}) {
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}
	return query, args
}

// ListAlerts returns alerts matching the filter.
func (s *DuckDBStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]*Alert, error) {
	where, args := buildAlertWhere(filter)
	query := fmt.Sprintf("SELECT %s FROM alerts WHERE %s", alertSelectColumns, where)

	query, err := applyOrdering(query, filter)
	if err != nil {
		return nil, err
	}
	query, args = applyPagination(query, filter, args)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		alert := &Alert{}
		if err := scanAlert(rows, alert); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}

// CountAlerts returns the number of alerts matching the filter, ignoring
// pagination.
func (s *DuckDBStore) CountAlerts(ctx context.Context, filter AlertFilter) (int64, error) {
	where, args := buildAlertWhere(filter)
	query := "SELECT COUNT(*) FROM alerts WHERE " + where

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return count, nil
}

// GetAlert returns one alert by id, or nil without error when it does not
// exist.
func (s *DuckDBStore) GetAlert(ctx context.Context, id int64) (*Alert, error) {
	query := fmt.Sprintf("SELECT %s FROM alerts WHERE id = ?", alertSelectColumns)

	alert := &Alert{}
	err := scanAlert(s.db.QueryRowContext(ctx, query, id), alert)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return alert, nil
}

// HTTPRequestsForAlert returns the HTTP requests linked to an alert.
func (s *DuckDBStore) HTTPRequestsForAlert(ctx context.Context, alertID int64) ([]*HTTPRequestRecord, error) {
	query := `SELECT r.id, r.flow_id, r.url, r.method, r.headers, r.request_content
		FROM http_requests r
		JOIN alert_http_requests l ON l.http_request_id = r.id
		WHERE l.alert_id = ?
		ORDER BY r.id`

	rows, err := s.db.QueryContext(ctx, query, alertID)
	if err != nil {
		return nil, fmt.Errorf("failed to query linked http requests: %w", err)
	}
	defer rows.Close()

	var records []*HTTPRequestRecord
	for rows.Next() {
		rec := &HTTPRequestRecord{}
		if err := rows.Scan(&rec.ID, &rec.FlowID, &rec.URL, &rec.Method, &rec.Headers, &rec.Content); err != nil {
			return nil, fmt.Errorf("failed to scan http request: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// TCPMessagesForAlert returns the TCP messages linked to an alert.
func (s *DuckDBStore) TCPMessagesForAlert(ctx context.Context, alertID int64) ([]*TCPMessageRecord, error) {
	query := `SELECT m.id, m.flow_id, m.client_host, m.client_port, m.server_host, m.server_port, m.message_content, m.from_client
		FROM tcp_messages m
		JOIN alert_tcp_messages l ON l.tcp_message_id = m.id
		WHERE l.alert_id = ?
		ORDER BY m.id`

	rows, err := s.db.QueryContext(ctx, query, alertID)
	if err != nil {
		return nil, fmt.Errorf("failed to query linked tcp messages: %w", err)
	}
	defer rows.Close()

	var records []*TCPMessageRecord
	for rows.Next() {
		rec := &TCPMessageRecord{}
		err := rows.Scan(&rec.ID, &rec.FlowID, &rec.ClientHost, &rec.ClientPort,
			&rec.ServerHost, &rec.ServerPort, &rec.Content, &rec.FromClient)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tcp message: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// scanAlert reads one alert row from a row or rows scanner.
func scanAlert(scanner interface{ Scan(dest ...interface{}) error }, alert *Alert) error {
	var typ string
	err := scanner.Scan(
		&alert.ID,
		&alert.AlertName,
		&alert.Message,
		&alert.ApplicationFrom,
		&alert.DestinationDomain,
		&typ,
		&alert.Severity,
		&alert.CreatedAt,
	)
	if err != nil {
		return err
	}
	alert.Type = screener.AlertType(typ)
	return nil
}
