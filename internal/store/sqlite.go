package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gwlsn/fetchray/internal/jobs"
	_ "modernc.org/sqlite"
)

const schemaVersion = 1

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS history (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	title TEXT NOT NULL,
	format_id TEXT NOT NULL,
	audio_only INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error TEXT,
	filename TEXT,
	final_path TEXT,
	file_size INTEGER,
	downloaded_bytes INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	started_at TEXT,
	finished_at TEXT
);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL,
	applied_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS stats_metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_history_status ON history(status);
CREATE INDEX IF NOT EXISTS idx_history_finished_at ON history(finished_at);
`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	mu   sync.RWMutex // Protects concurrent access
	path string
}

// NewSQLiteStore creates a new SQLite-backed store.
// The database file is created if it doesn't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Create schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	// Check/set schema version
	var version int
	err = db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		// Fresh database, insert version
		_, err = db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("insert schema version: %w", err)
		}
	} else if err != nil {
		db.Close()
		return nil, fmt.Errorf("check schema version: %w", err)
	} else if version > schemaVersion {
		db.Close()
		return nil, fmt.Errorf("database schema v%d is newer than supported v%d", version, schemaVersion)
	}

	// Counters may be missing on a fresh or partially initialized database
	_, err = db.Exec(`
		INSERT OR IGNORE INTO stats_metadata (key, value) VALUES
			('session_bytes', '0'),
			('lifetime_bytes', '0'),
			('session_completed', '0'),
			('lifetime_completed', '0')
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init stats metadata: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

// RecordFinished stores a terminal job and bumps the counters for completed ones.
// Recording the same job twice replaces the earlier row without counting it again.
func (s *SQLiteStore) RecordFinished(job *jobs.Job) error {
	if !job.IsTerminal() {
		return fmt.Errorf("job %s is not finished (status: %s)", job.ID, job.State)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var existing int
	if err := tx.QueryRow("SELECT COUNT(*) FROM history WHERE id = ?", job.ID).Scan(&existing); err != nil {
		return err
	}

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO history (
			id, url, title, format_id, audio_only, status, error, filename, final_path,
			file_size, downloaded_bytes, created_at, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		job.ID, job.URL, job.Title, job.FormatID, boolToInt(job.AudioOnly),
		string(job.State), nullString(job.Error), nullString(job.Filename), nullString(job.FinalPath),
		nullInt64(job.FileSize), job.DownloadedBytes,
		formatTime(job.CreatedAt), formatTimePtr(job.StartedAt), formatTimePtr(job.FinishedAt),
	)
	if err != nil {
		return err
	}

	if existing == 0 && job.State == jobs.StateCompleted {
		// Increment both session and lifetime counters
		_, err = tx.Exec(`
			UPDATE stats_metadata
			SET value = CAST((CAST(value AS INTEGER) + ?) AS TEXT),
			    updated_at = datetime('now')
			WHERE key IN ('session_bytes', 'lifetime_bytes')
		`, job.FileSize)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			UPDATE stats_metadata
			SET value = CAST((CAST(value AS INTEGER) + 1) AS TEXT),
			    updated_at = datetime('now')
			WHERE key IN ('session_completed', 'lifetime_completed')
		`)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// History returns finished downloads, newest first.
func (s *SQLiteStore) History(limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, url, title, format_id, audio_only, status, error, filename, final_path,
			file_size, downloaded_bytes, created_at, started_at, finished_at
		FROM history ORDER BY finished_at DESC, created_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns per-status history counts and the byte counters.
func (s *SQLiteStore) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats Stats

	counters, err := s.countersLocked()
	if err != nil {
		return stats, err
	}
	stats.SessionBytes = counters["session_bytes"]
	stats.LifetimeBytes = counters["lifetime_bytes"]
	stats.SessionCompleted = counters["session_completed"]
	stats.LifetimeCompleted = counters["lifetime_completed"]

	// SUM over an empty table is NULL
	var completed, failed, stopped sql.NullInt64
	row := s.db.QueryRow(`
		SELECT
			COUNT(*) as total,
			SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) as completed,
			SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END) as failed,
			SUM(CASE WHEN status = 'stopped' THEN 1 ELSE 0 END) as stopped
		FROM history
	`)
	if err := row.Scan(&stats.Total, &completed, &failed, &stopped); err != nil {
		return stats, err
	}
	stats.Completed = int(completed.Int64)
	stats.Failed = int(failed.Int64)
	stats.Stopped = int(stopped.Int64)

	return stats, nil
}

func (s *SQLiteStore) countersLocked() (map[string]int64, error) {
	rows, err := s.db.Query(`SELECT key, value FROM stats_metadata`)
	if err != nil {
		return nil, fmt.Errorf("get counters: %w", err)
	}
	defer rows.Close()

	counters := make(map[string]int64)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		n, _ := strconv.ParseInt(value, 10, 64)
		counters[key] = n
	}
	return counters, rows.Err()
}

// ResetSession zeroes the session counters.
func (s *SQLiteStore) ResetSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE stats_metadata SET value = '0', updated_at = datetime('now')
		WHERE key IN ('session_bytes', 'session_completed')
	`)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Helper functions for scanning rows

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var e Entry
	var audioOnly int
	var status string
	var errStr, filename, finalPath sql.NullString
	var fileSize sql.NullInt64
	var createdAt, startedAt, finishedAt sql.NullString

	err := row.Scan(
		&e.ID, &e.URL, &e.Title, &e.FormatID, &audioOnly, &status,
		&errStr, &filename, &finalPath, &fileSize, &e.DownloadedBytes,
		&createdAt, &startedAt, &finishedAt,
	)
	if err != nil {
		return e, err
	}

	e.AudioOnly = audioOnly != 0
	e.Status = jobs.State(status)
	e.Error = errStr.String
	e.Filename = filename.String
	e.FinalPath = finalPath.String
	e.FileSize = fileSize.Int64
	e.CreatedAt = parseTime(createdAt.String)
	e.StartedAt = parseTime(startedAt.String)
	e.FinishedAt = parseTime(finishedAt.String)

	return e, nil
}

// Helper functions for SQL values

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(i int64) interface{} {
	if i == 0 {
		return nil
	}
	return i
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
