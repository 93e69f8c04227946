// Package eventlog records command invocations in a small SQLite database
// beside the global root. Logging is best effort: a broken event log never
// fails the command that triggered it.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"
)

// Event is one command invocation.
type Event struct {
	Timestamp   time.Time         `json:"timestamp"`
	Command     string            `json:"command"`
	Subcommand  string            `json:"subcommand,omitempty"`
	ProjectPath string            `json:"project_path,omitempty"`
	ResultCount int               `json:"result_count"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// UsageCount is an aggregated per-command invocation count.
type UsageCount struct {
	Command string `json:"command"`
	Count   int    `json:"count"`
}

// Logger appends to and reads the event log. A nil Logger is a no-op.
type Logger struct {
	db *sql.DB
}

// Open opens or creates the event log database. Callers treat a failed open
// as "no logging" rather than a fatal error.
func Open(path string) (*Logger, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)")
	if err != nil {
		return nil, err
	}
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp    TEXT NOT NULL,
		command      TEXT NOT NULL,
		subcommand   TEXT,
		project_path TEXT,
		result_count INTEGER NOT NULL DEFAULT 0,
		metadata     TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_events_command ON events(command);
	CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp DESC);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Logger{db: db}, nil
}

// Record appends an event, silently dropping it on any failure.
func (l *Logger) Record(ctx context.Context, e Event) {
	if l == nil || l.db == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	meta, _ := json.Marshal(e.Metadata)
	if e.Metadata == nil {
		meta = []byte("{}")
	}
	l.db.ExecContext(ctx,
		`INSERT INTO events (timestamp, command, subcommand, project_path, result_count, metadata)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Timestamp.UTC().Format(time.RFC3339), e.Command, e.Subcommand,
		e.ProjectPath, e.ResultCount, string(meta))
}

// Usage aggregates invocation counts per command since the given time,
// most used first.
func (l *Logger) Usage(ctx context.Context, since time.Time) ([]UsageCount, error) {
	if l == nil || l.db == nil {
		return nil, nil
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT command, COUNT(*) FROM events
		 WHERE timestamp >= ?
		 GROUP BY command ORDER BY COUNT(*) DESC, command`,
		since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []UsageCount
	for rows.Next() {
		var c UsageCount
		if err := rows.Scan(&c.Command, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// Recent returns the newest events, up to limit.
func (l *Logger) Recent(ctx context.Context, limit int) ([]Event, error) {
	if l == nil || l.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT timestamp, command, subcommand, project_path, result_count, metadata
		 FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var ts, meta string
		var sub, project sql.NullString
		if err := rows.Scan(&ts, &e.Command, &sub, &project, &e.ResultCount, &meta); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(time.RFC3339, ts)
		e.Subcommand = sub.String
		e.ProjectPath = project.String
		json.Unmarshal([]byte(meta), &e.Metadata)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close closes the log. Safe on nil.
func (l *Logger) Close() {
	if l != nil && l.db != nil {
		l.db.Close()
	}
}
