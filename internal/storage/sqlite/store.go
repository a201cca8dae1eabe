// Package sqlite records advisory runs and their streamed narrative so past
// sessions can be replayed from the API and the CLI.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const (
	StatusStreaming = "streaming"
	StatusDone      = "done"
	StatusError     = "error"
)

// Store is the advisory run recorder.
type Store struct {
	db *sql.DB
}

// RunRecord is one advisory invocation.
type RunRecord struct {
	ID            string
	Symbol        string
	SimulatedDate string
	Status        string
}

// RunWithMeta adds storage metadata for listings.
type RunWithMeta struct {
	RunRecord
	RowID     int64
	CreatedAt string
	UpdatedAt string
}

// Chunk is one streamed narrative fragment, ordered by Seq within a run.
type Chunk struct {
	RunID   string
	Seq     int
	Content string
}

func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=3000;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", p, err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    symbol TEXT NOT NULL,
    simulated_date TEXT,
    status TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS run_chunks (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (run_id, seq)
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// CreateRun registers a new advisory run in the streaming state.
func (s *Store) CreateRun(ctx context.Context, run RunRecord) error {
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("run id is required")
	}
	if run.Status == "" {
		run.Status = StatusStreaming
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs (id, symbol, simulated_date, status)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    symbol=excluded.symbol,
    simulated_date=excluded.simulated_date,
    status=excluded.status,
    updated_at=CURRENT_TIMESTAMP
`, run.ID, run.Symbol, run.SimulatedDate, run.Status)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// AppendChunk stores one narrative fragment. Seq must increase
// monotonically per run; replays of the same seq are ignored.
func (s *Store) AppendChunk(ctx context.Context, chunk Chunk) error {
	if strings.TrimSpace(chunk.RunID) == "" {
		return fmt.Errorf("run id is required")
	}
	if chunk.Seq <= 0 {
		return fmt.Errorf("chunk seq must be positive")
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO run_chunks (run_id, seq, content)
VALUES (?, ?, ?)
ON CONFLICT(run_id, seq) DO NOTHING
`, chunk.RunID, chunk.Seq, chunk.Content)
	if err != nil {
		return fmt.Errorf("insert chunk: %w", err)
	}
	return nil
}

// FinishRun marks a run's terminal status.
func (s *Store) FinishRun(ctx context.Context, runID, status string) error {
	if strings.TrimSpace(runID) == "" {
		return nil
	}
	if status == "" {
		status = StatusDone
	}
	_, err := s.db.ExecContext(ctx, `
UPDATE runs
SET status = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`, status, runID)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return nil
}

// GetRun returns a run, or nil when unknown.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunWithMeta, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, fmt.Errorf("run id is required")
	}
	row := s.db.QueryRowContext(ctx, `
SELECT rowid, id, symbol, simulated_date, status, created_at, updated_at
FROM runs
WHERE id = ?
LIMIT 1
`, runID)

	var rec RunWithMeta
	if err := row.Scan(&rec.RowID, &rec.ID, &rec.Symbol, &rec.SimulatedDate, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &rec, nil
}

// ListRuns pages runs newest first. cursor is the rowid to continue below;
// 0 starts from the top.
func (s *Store) ListRuns(ctx context.Context, cursor int64, limit int) ([]RunWithMeta, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT rowid, id, symbol, simulated_date, status, created_at, updated_at
FROM runs
WHERE (? = 0 OR rowid < ?)
ORDER BY rowid DESC
LIMIT ?
`, cursor, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunWithMeta
	for rows.Next() {
		var rec RunWithMeta
		if err := rows.Scan(&rec.RowID, &rec.ID, &rec.Symbol, &rec.SimulatedDate, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs rows: %w", err)
	}
	return runs, nil
}

// Transcript returns the run's narrative joined in stream order.
func (s *Store) Transcript(ctx context.Context, runID string) (string, error) {
	if strings.TrimSpace(runID) == "" {
		return "", fmt.Errorf("run id is required")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT content
FROM run_chunks
WHERE run_id = ?
ORDER BY seq ASC
`, runID)
	if err != nil {
		return "", fmt.Errorf("load transcript: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return "", fmt.Errorf("scan chunk: %w", err)
		}
		b.WriteString(content)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("transcript rows: %w", err)
	}
	return b.String(), nil
}
