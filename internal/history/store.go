// Package history records build runs in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Build is one recorded run of the build command.
type Build struct {
	ID            int64
	ProjectPath   string
	ProjectName   string
	Success       bool
	InstanceCount int
	Duration      time.Duration
	ErrorMessage  string
	Format        string
	OutputPath    string // empty for stdout
	Timestamp     time.Time
}

// Store manages the build history database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens the database at dbPath, creating it and applying
// migrations as needed. ":memory:" opens a private in-memory database.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return store, nil
}

// execWithRetry retries statements that fail with "database is locked",
// backing off exponentially.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordBuild inserts b and sets its ID. A zero Timestamp is set to now.
func (s *Store) RecordBuild(ctx context.Context, b *Build) error {
	if b.Timestamp.IsZero() {
		b.Timestamp = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
INSERT INTO builds (project_path, project_name, success, instance_count, duration_ms, error_message, format, output_path, timestamp)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ProjectPath, b.ProjectName, b.Success, b.InstanceCount, b.Duration.Milliseconds(),
		b.ErrorMessage, b.Format, b.OutputPath, b.Timestamp)
	if err != nil {
		return fmt.Errorf("insert build: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get build id: %w", err)
	}
	b.ID = id
	return nil
}

const selectBuilds = `
SELECT id, project_path, COALESCE(project_name, ''), success, COALESCE(instance_count, 0),
       COALESCE(duration_ms, 0), COALESCE(error_message, ''), COALESCE(format, ''),
       COALESCE(output_path, ''), timestamp
FROM builds`

// RecentBuilds returns up to limit builds, newest first.
func (s *Store) RecentBuilds(ctx context.Context, limit int) ([]*Build, error) {
	return s.queryBuilds(ctx, selectBuilds+` ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
}

// BuildsForProject returns up to limit builds of one project, newest first.
func (s *Store) BuildsForProject(ctx context.Context, projectPath string, limit int) ([]*Build, error) {
	return s.queryBuilds(ctx, selectBuilds+` WHERE project_path = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, projectPath, limit)
}

func (s *Store) queryBuilds(ctx context.Context, query string, args ...any) ([]*Build, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	var builds []*Build
	for rows.Next() {
		b := &Build{}
		var durationMs int64
		if err := rows.Scan(&b.ID, &b.ProjectPath, &b.ProjectName, &b.Success, &b.InstanceCount,
			&durationMs, &b.ErrorMessage, &b.Format, &b.OutputPath, &b.Timestamp); err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		b.Duration = time.Duration(durationMs) * time.Millisecond
		builds = append(builds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate builds: %w", err)
	}
	return builds, nil
}
