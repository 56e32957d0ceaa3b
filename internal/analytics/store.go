package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS requests (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id  TEXT NOT NULL,
	session_id  TEXT NOT NULL DEFAULT '',
	type        TEXT NOT NULL,
	priority    TEXT NOT NULL,
	edge_id     TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	success     INTEGER NOT NULL,
	metadata    TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_requests_created ON requests(created_at);

CREATE TABLE IF NOT EXISTS errors (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	code       TEXT NOT NULL,
	message    TEXT NOT NULL,
	context    TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_errors_created ON errors(created_at);
`

// Store is the relational analytics sink: one row per dispatched
// request, one row per captured error record.
type Store struct {
	db *sql.DB
}

// Open creates or opens the analytics database at path. WAL mode and a
// single writer connection, same discipline as the KV store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("analytics: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("analytics: connect database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("analytics: %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("analytics: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RequestRow is one dispatched-request analytics record.
type RequestRow struct {
	RequestID  string
	SessionID  string
	Type       string
	Priority   string
	EdgeID     string
	DurationMS int64
	Success    bool
	Metadata   string
	CreatedAt  time.Time
}

// ErrorRow is one captured error record.
type ErrorRow struct {
	Code      string
	Message   string
	Context   string
	CreatedAt time.Time
}

// InsertRequest appends one request row.
func (s *Store) InsertRequest(ctx context.Context, row RequestRow) error {
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO requests (request_id, session_id, type, priority, edge_id, duration_ms, success, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.RequestID, row.SessionID, row.Type, row.Priority, row.EdgeID,
		row.DurationMS, boolToInt(row.Success), row.Metadata, row.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("analytics: insert request row: %w", err)
	}
	return nil
}

// InsertError appends one error row.
func (s *Store) InsertError(ctx context.Context, row ErrorRow) error {
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO errors (code, message, context, created_at) VALUES (?, ?, ?, ?)`,
		row.Code, row.Message, row.Context, row.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("analytics: insert error row: %w", err)
	}
	return nil
}

// Summary aggregates request outcomes over a time window.
type Summary struct {
	TotalRequests int64            `json:"total_requests"`
	Succeeded     int64            `json:"succeeded"`
	Failed        int64            `json:"failed"`
	AvgDurationMS float64          `json:"avg_duration_ms"`
	ByType        map[string]int64 `json:"by_type"`
	ByPriority    map[string]int64 `json:"by_priority"`
	ErrorCount    int64            `json:"error_count"`
}

// Summarize aggregates rows created at or after since. A non-empty
// metric narrows the request rows to one request type.
func (s *Store) Summarize(ctx context.Context, since time.Time, metric string) (Summary, error) {
	summary := Summary{
		ByType:     make(map[string]int64),
		ByPriority: make(map[string]int64),
	}
	cutoff := since.UnixMilli()

	query := `SELECT COUNT(*), COALESCE(SUM(success), 0), COALESCE(AVG(duration_ms), 0)
		 FROM requests WHERE created_at >= ?`
	args := []any{cutoff}
	if metric != "" {
		query += " AND type = ?"
		args = append(args, metric)
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&summary.TotalRequests, &summary.Succeeded, &summary.AvgDurationMS,
	); err != nil {
		return Summary{}, fmt.Errorf("analytics: summarize totals: %w", err)
	}
	summary.Failed = summary.TotalRequests - summary.Succeeded

	if err := s.groupCounts(ctx, cutoff, metric, "type", summary.ByType); err != nil {
		return Summary{}, err
	}
	if err := s.groupCounts(ctx, cutoff, metric, "priority", summary.ByPriority); err != nil {
		return Summary{}, err
	}

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM errors WHERE created_at >= ?", cutoff,
	).Scan(&summary.ErrorCount); err != nil {
		return Summary{}, fmt.Errorf("analytics: summarize errors: %w", err)
	}
	return summary, nil
}

func (s *Store) groupCounts(ctx context.Context, cutoff int64, metric, column string, out map[string]int64) error {
	query := fmt.Sprintf("SELECT %s, COUNT(*) FROM requests WHERE created_at >= ?", column)
	args := []any{cutoff}
	if metric != "" {
		query += " AND type = ?"
		args = append(args, metric)
	}
	query += fmt.Sprintf(" GROUP BY %s", column)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("analytics: group by %s: %w", column, err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("analytics: scan %s row: %w", column, err)
		}
		out[key] = count
	}
	return rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
