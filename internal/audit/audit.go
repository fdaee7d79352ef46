// Package audit is the secondary, sqlite-backed audit trail: every
// admin-surface action (user/create, user/disable, permission grants,
// API-key issuance, clone import) is appended here for after-the-fact
// review. It sits outside the five KV partitions (spec §6.5 only
// mandates those for objects/refs/index/workspace/users) as a
// dedicated store better suited to ad-hoc querying than a KV bucket.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Entry is one recorded admin action.
type Entry struct {
	ID         int64     `json:"id"`
	Kind       string    `json:"kind"`
	CreatedAt  time.Time `json:"created_at"`
	Actor      string    `json:"actor"`
	TargetType string    `json:"target_type,omitempty"`
	TargetName string    `json:"target_name,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Log wraps a sqlite database holding the append-only audit_log table.
type Log struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite file at path and ensures
// the audit_log table exists.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	kind        TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	actor       TEXT NOT NULL,
	target_type TEXT,
	target_name TEXT,
	detail      TEXT
);`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: create schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Close closes the underlying database handle.
func (l *Log) Close() error {
	return l.db.Close()
}

// Record appends one audit entry.
func (l *Log) Record(ctx context.Context, kind, actor, targetType, targetName, detail string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO audit_log (kind, created_at, actor, target_type, target_name, detail) VALUES (?, ?, ?, ?, ?, ?)`,
		kind, time.Now().Unix(), actor, targetType, targetName, detail,
	)
	if err != nil {
		return fmt.Errorf("audit: record: %w", err)
	}
	return nil
}

// Recent returns the most recent limit entries, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, kind, created_at, actor, target_type, target_name, detail
		 FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		var targetType, targetName, detail sql.NullString
		if err := rows.Scan(&e.ID, &e.Kind, &ts, &e.Actor, &targetType, &targetName, &detail); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		e.CreatedAt = time.Unix(ts, 0).UTC()
		e.TargetType = targetType.String
		e.TargetName = targetName.String
		e.Detail = detail.String
		out = append(out, e)
	}
	return out, rows.Err()
}
