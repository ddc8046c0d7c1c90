// Package store keeps the completion status of reminders in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// stampLayout sorts lexically in time order for UTC values.
const stampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Stats summarizes the status table.
type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

// Entry is one completed reminder.
type Entry struct {
	ApplicationNo string    `json:"application_no"`
	FilePath      string    `json:"file_path"`
	Subject       string    `json:"subject"`
	Deadline      string    `json:"deadline"`
	CompletedAt   time.Time `json:"completed_at"`
}

// SQLiteStore is keyed by (application number, source path).
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

func Open(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, logger: logger, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS completion_status (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		application_no TEXT NOT NULL,
		file_path      TEXT NOT NULL,
		subject        TEXT NOT NULL DEFAULT '',
		deadline       TEXT NOT NULL DEFAULT '',
		completed      INTEGER NOT NULL DEFAULT 0,
		completed_at   TEXT,
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL,
		UNIQUE(application_no, file_path)
	);
	CREATE INDEX IF NOT EXISTS idx_status_application ON completion_status(application_no);
	CREATE INDEX IF NOT EXISTS idx_status_completed ON completion_status(completed);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) IsCompleted(ctx context.Context, applicationNo, filePath string) (bool, error) {
	var completed bool
	err := s.db.QueryRowContext(ctx,
		`SELECT completed FROM completion_status WHERE application_no = ? AND file_path = ?`,
		applicationNo, filePath,
	).Scan(&completed)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query completion: %w", err)
	}
	return completed, nil
}

// MarkCompleted inserts or updates the row and flags it completed.
func (s *SQLiteStore) MarkCompleted(ctx context.Context, applicationNo, filePath, subject, deadline string) (bool, error) {
	now := s.stamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO completion_status
			(application_no, file_path, subject, deadline, completed, completed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 1, ?, ?, ?)
		 ON CONFLICT(application_no, file_path) DO UPDATE SET
			subject = excluded.subject,
			deadline = excluded.deadline,
			completed = 1,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at`,
		applicationNo, filePath, subject, deadline, now, now, now,
	)
	if err != nil {
		return false, fmt.Errorf("mark completed: %w", err)
	}
	n, _ := res.RowsAffected()
	s.debug("reminder marked completed", "application_no", applicationNo, "path", filePath)
	return n > 0, nil
}

// MarkUncompleted clears the flag. It reports false when no row exists.
func (s *SQLiteStore) MarkUncompleted(ctx context.Context, applicationNo, filePath string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE completion_status
		 SET completed = 0, completed_at = NULL, updated_at = ?
		 WHERE application_no = ? AND file_path = ?`,
		s.stamp(), applicationNo, filePath,
	)
	if err != nil {
		return false, fmt.Errorf("mark uncompleted: %w", err)
	}
	n, _ := res.RowsAffected()
	s.debug("reminder marked uncompleted", "application_no", applicationNo, "path", filePath, "rows", n)
	return n > 0, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN completed = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN completed = 0 THEN 1 ELSE 0 END), 0)
		 FROM completion_status`,
	).Scan(&st.Total, &st.Completed, &st.Pending)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	return st, nil
}

// CompletedEntries lists completed rows, most recently completed first.
func (s *SQLiteStore) CompletedEntries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT application_no, file_path, subject, deadline, completed_at
		 FROM completion_status
		 WHERE completed = 1
		 ORDER BY completed_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query completed: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var completedAt sql.NullString
		if err := rows.Scan(&e.ApplicationNo, &e.FilePath, &e.Subject, &e.Deadline, &completedAt); err != nil {
			return nil, fmt.Errorf("scan completed: %w", err)
		}
		if completedAt.Valid {
			e.CompletedAt, _ = time.Parse(stampLayout, completedAt.String)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CleanupCompleted deletes completed rows created before now minus olderThan.
func (s *SQLiteStore) CleanupCompleted(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan).UTC().Format(stampLayout)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM completion_status WHERE created_at < ? AND completed = 1`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup completed: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SQLiteStore) stamp() string {
	return s.now().UTC().Format(stampLayout)
}

func (s *SQLiteStore) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
