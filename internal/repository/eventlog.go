package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/streamforge/sidecar/internal/apperr"
	"github.com/streamforge/sidecar/internal/models"
)

// maxEventLogLimit is the hard cap applied to every EventLog list query,
// regardless of caller-requested limit.
const maxEventLogLimit = 1000

// defaultEventLogLimit is applied when the caller's filter does not set one.
const defaultEventLogLimit = 100

// CreateEventLog inserts a new EventLog row with a server-generated id.
func (r *Repository) CreateEventLog(ctx context.Context, e models.EventLog) (models.EventLog, error) {
	e.ID = newID()
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	metadata := "{}"
	if e.Metadata != nil {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return models.EventLog{}, fmt.Errorf("marshal event log metadata: %w: %v", apperr.Validation, err)
		}
		metadata = string(raw)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO event_logs (id, platform, event_type, username, display_name, amount, message, metadata, alert_fired, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Platform, e.EventType, e.Username, e.DisplayName, e.Amount, e.Message, metadata, e.AlertFired,
		e.Timestamp.UTC().Format(timeFormat),
	)
	if err != nil {
		return models.EventLog{}, fmt.Errorf("create event log: %w: %v", apperr.Internal, err)
	}
	return e, nil
}

// List returns EventLog rows matching filter, AND-composed, descending
// timestamp order. filter.Limit is clamped to [1, 1000], defaulting to 100
// when unset.
func (r *Repository) List(ctx context.Context, filter models.EventLogFilter) ([]models.EventLog, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultEventLogLimit
	}
	if limit > maxEventLogLimit {
		limit = maxEventLogLimit
	}

	where := "WHERE 1=1"
	var args []any

	if filter.EventType != "" {
		where += " AND event_type = ?"
		args = append(args, filter.EventType)
	}
	if filter.Platform != "" {
		where += " AND platform = ?"
		args = append(args, filter.Platform)
	}
	if filter.AlertFiredOnly {
		where += " AND alert_fired = 1"
	}
	if filter.Search != "" {
		where += " AND (username GLOB ? OR display_name GLOB ? OR message GLOB ?)"
		pattern := "*" + escapeGlob(filter.Search) + "*"
		args = append(args, pattern, pattern, pattern)
	}

	query := eventLogSelectColumns + ` FROM event_logs ` + where + ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	return r.queryEventLogs(ctx, query, args...)
}

// ListByRange returns EventLog rows with timestamp in the inclusive range
// [from, to], descending timestamp order.
func (r *Repository) ListByRange(ctx context.Context, from, to time.Time) ([]models.EventLog, error) {
	query := eventLogSelectColumns + ` FROM event_logs WHERE timestamp >= ? AND timestamp <= ? ORDER BY timestamp DESC`
	return r.queryEventLogs(ctx, query,
		from.UTC().Format(timeFormat),
		to.UTC().Format(timeFormat),
	)
}

// DeleteBefore removes rows with timestamp strictly older than cutoff,
// returning the number of rows removed.
func (r *Repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM event_logs WHERE timestamp < ?`, cutoff.UTC().Format(timeFormat))
	if err != nil {
		return 0, fmt.Errorf("prune event logs: %w: %v", apperr.Internal, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune event logs: %w: %v", apperr.Internal, err)
	}
	return n, nil
}

func (r *Repository) queryEventLogs(ctx context.Context, query string, args ...any) ([]models.EventLog, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query event logs: %w: %v", apperr.Internal, err)
	}
	defer rows.Close()

	var out []models.EventLog
	for rows.Next() {
		e, err := scanEventLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event log: %w: %v", apperr.Internal, err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query event logs: %w: %v", apperr.Internal, err)
	}
	return out, nil
}

const eventLogSelectColumns = `
	SELECT id, platform, event_type, username, display_name, amount, message, metadata, alert_fired, timestamp`

func scanEventLog(s scanner) (*models.EventLog, error) {
	var e models.EventLog
	var metadata, ts string
	err := s.Scan(&e.ID, &e.Platform, &e.EventType, &e.Username, &e.DisplayName, &e.Amount, &e.Message, &metadata, &e.AlertFired, &ts)
	if err != nil {
		return nil, err
	}
	e.Timestamp = parseTime(ts)
	if metadata != "" && metadata != "{}" {
		_ = json.Unmarshal([]byte(metadata), &e.Metadata)
	}
	return &e, nil
}

// escapeGlob escapes SQLite GLOB metacharacters so free-text search behaves
// as a literal, case-sensitive substring match rather than a pattern match.
func escapeGlob(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']':
			out = append(out, '[', r, ']')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
