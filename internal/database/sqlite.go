// Package database implements the durable SQLite store backing the
// credential/settings key-value interface, the import-job history and the
// operation log.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fv-go/internal/database/migrations"
	"fv-go/internal/fv"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Store is the SQLite-backed durable store. Settings writes must be durable
// before Put returns (a lost credential would lock the user out for good),
// so the connection runs with synchronous=FULL.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the store at path. path may be ":memory:" for
// tests. The schema is not migrated automatically; call MigrateUp (fv init)
// or CheckMigrations.
func Open(path string) (*Store, error) {
	// The pragmas ride on the DSN so every pooled connection gets them,
	// not just the one an Exec would happen to land on.
	dsn := fmt.Sprintf("file:%s?_synchronous=FULL&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// An in-memory database exists per connection; a second pooled
	// connection would see an empty schema.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	return &Store{db: db, path: path}, nil
}

// CheckMigrations verifies the schema is at the latest version.
func (s *Store) CheckMigrations() error {
	return migrations.CheckStatus(s.db)
}

// MigrateUp brings the schema to the latest version.
func (s *Store) MigrateUp() error {
	return migrations.Up(s.db)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Key-value operations (fv.KeyValue)

// Put stores value under key, overwriting any prior value. The write is
// committed before Put returns.
func (s *Store) Put(key string, value []byte) error {
	_, err := s.db.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("writing setting %s: %w", key, err)
	}
	return nil
}

// Get returns the value stored under key, or fv.ErrKeyNotFound.
func (s *Store) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fv.ErrKeyNotFound
		}
		return nil, fmt.Errorf("reading setting %s: %w", key, err)
	}
	return value, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting setting %s: %w", key, err)
	}
	return nil
}

// Import job history (fv.JobRecorder)

// RecordImportJob persists a finished import job.
func (s *Store) RecordImportJob(job *fv.Job) error {
	_, err := s.db.Exec(
		`INSERT INTO import_jobs (id, target_dir, started_at, finished_at, total, success, failed, retained, cancelled)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.TargetDir, job.StartedAt, job.FinishedAt,
		job.Total, job.Success, job.Failed, job.Retained, job.Cancelled)
	if err != nil {
		return fmt.Errorf("recording import job: %w", err)
	}
	return nil
}

// ListImportJobs returns up to limit finished jobs, newest first.
func (s *Store) ListImportJobs(limit int) ([]*fv.Job, error) {
	rows, err := s.db.Query(
		`SELECT id, target_dir, started_at, finished_at, total, success, failed, retained, cancelled
		 FROM import_jobs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing import jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*fv.Job
	for rows.Next() {
		job := &fv.Job{}
		if err := rows.Scan(&job.ID, &job.TargetDir, &job.StartedAt, &job.FinishedAt,
			&job.Total, &job.Success, &job.Failed, &job.Retained, &job.Cancelled); err != nil {
			return nil, fmt.Errorf("scanning import job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Operation log

// OperationRecord is one logged CLI operation.
type OperationRecord struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string
	CreatedAt  time.Time
}

// RecordOperation appends one operation to the log and returns its ID.
func (s *Store) RecordOperation(operation, parameters, status string, at time.Time) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO operations (operation, parameters, status, created_at) VALUES (?, ?, ?, ?)",
		operation, parameters, status, at)
	if err != nil {
		return 0, fmt.Errorf("recording operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading operation id: %w", err)
	}
	return id, nil
}

// ListOperations returns up to limit operations, newest first.
func (s *Store) ListOperations(limit int) ([]*OperationRecord, error) {
	rows, err := s.db.Query(
		"SELECT id, operation, parameters, status, created_at FROM operations ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*OperationRecord
	for rows.Next() {
		op := &OperationRecord{}
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.Status, &op.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// Compile-time checks against the domain interfaces.
var (
	_ fv.KeyValue    = (*Store)(nil)
	_ fv.JobRecorder = (*Store)(nil)
)
