// Package state persists sync run history in a local sqlite database.
package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mirrorsync/internal/domain"
)

// Manager handles run-history persistence
type Manager struct {
	db *sql.DB
}

// RunRecord represents one completed sync run
type RunRecord struct {
	ID               int64
	StartTime        time.Time
	EndTime          time.Time
	Status           string // "success", "failed", "partial"
	Downloaded       int
	AlreadyPresent   int
	Excluded         int
	Failed           int
	BytesTransferred int64
	Unreachable      string // newline-separated unreachable subtree paths
}

// StatusFor derives the record status from a run summary: success when
// clean, partial when something still transferred, failed otherwise.
func StatusFor(s *domain.RunSummary) string {
	switch {
	case s.Ok():
		return "success"
	case s.Downloaded > 0 || s.AlreadyPresent > 0:
		return "partial"
	default:
		return "failed"
	}
}

// FromSummary builds a RunRecord from a run summary
func FromSummary(s *domain.RunSummary) RunRecord {
	var unreachable []string
	for _, sub := range s.Unreachable {
		unreachable = append(unreachable, sub.Path)
	}

	return RunRecord{
		StartTime:        s.StartTime,
		EndTime:          s.EndTime,
		Status:           StatusFor(s),
		Downloaded:       s.Downloaded,
		AlreadyPresent:   s.AlreadyPresent,
		Excluded:         s.Excluded,
		Failed:           s.Failed,
		BytesTransferred: s.BytesTransferred,
		Unreachable:      strings.Join(unreachable, "\n"),
	}
}

// NewManager opens (creating if necessary) the run-history database
// under dataDir
func NewManager(dataDir string) (*Manager, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "mirrorsync.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection avoids "database is locked" under concurrent use
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	manager := &Manager{db: db}
	if err := manager.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return manager, nil
}

func (m *Manager) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		downloaded INTEGER DEFAULT 0,
		already_present INTEGER DEFAULT 0,
		excluded INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		bytes_transferred INTEGER DEFAULT 0,
		unreachable TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_time ON runs(start_time DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`

	_, err := m.db.Exec(schema)
	return err
}

// SaveRun records a completed sync run
func (m *Manager) SaveRun(record RunRecord) error {
	if record.Status != "success" && record.Status != "failed" && record.Status != "partial" {
		return fmt.Errorf("invalid status: %s (must be 'success', 'failed', or 'partial')", record.Status)
	}

	query := `
		INSERT INTO runs (start_time, end_time, status, downloaded, already_present, excluded, failed, bytes_transferred, unreachable)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := m.db.Exec(query,
		record.StartTime,
		record.EndTime,
		record.Status,
		record.Downloaded,
		record.AlreadyPresent,
		record.Excluded,
		record.Failed,
		record.BytesTransferred,
		record.Unreachable,
	)
	if err != nil {
		return fmt.Errorf("failed to save run record: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT id, start_time, end_time, status, downloaded, already_present, excluded, failed, bytes_transferred, unreachable
	FROM runs
`

// History retrieves the most recent runs, newest first
func (m *Manager) History(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	rows, err := m.db.Query(selectColumns+`ORDER BY start_time DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		record, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// LastSuccess retrieves the most recent clean run, nil when none exists
func (m *Manager) LastSuccess() (*RunRecord, error) {
	row := m.db.QueryRow(selectColumns + `WHERE status = 'success' ORDER BY start_time DESC LIMIT 1`)

	record, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last success: %w", err)
	}
	return &record, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var record RunRecord
	var unreachable sql.NullString
	err := row.Scan(
		&record.ID,
		&record.StartTime,
		&record.EndTime,
		&record.Status,
		&record.Downloaded,
		&record.AlreadyPresent,
		&record.Excluded,
		&record.Failed,
		&record.BytesTransferred,
		&unreachable,
	)
	if err != nil {
		return record, err
	}
	record.Unreachable = unreachable.String
	return record, nil
}

// Close closes the database
func (m *Manager) Close() error {
	return m.db.Close()
}
