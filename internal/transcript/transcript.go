// Package transcript persists the host calls a guest made during a run.
package transcript

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caffeineduck/jpcguest/runner"
	"github.com/golang/glog"
	_ "modernc.org/sqlite"
)

// Entry is one recorded host call.
type Entry struct {
	Seq       int64
	RunID     string
	RequestID string
	Binding   string
	Method    string
	Payload   []byte
	Response  []byte
	Err       string
	At        time.Time
}

// Store owns the transcript database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Init applies pragmas and the schema.
func (s *Store) Init(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("nil store")
	}
	for _, stmt := range []string{
		"PRAGMA journal_mode = DELETE;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply pragma %q: %w", stmt, err)
		}
	}
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS calls (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			request_id TEXT NOT NULL,
			binding TEXT NOT NULL,
			method TEXT NOT NULL,
			payload BLOB,
			response BLOB,
			err TEXT NOT NULL DEFAULT '',
			at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_calls_run ON calls(run_id, seq);`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Record appends e and returns its sequence number. A zero At is stamped
// with the current time.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO calls(run_id, request_id, binding, method, payload, response, err, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?);
	`, e.RunID, e.RequestID, e.Binding, e.Method, e.Payload, e.Response, e.Err, e.At.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("record call: %w", err)
	}
	return res.LastInsertId()
}

// List returns the calls of runID in order. An empty runID lists every run.
func (s *Store) List(ctx context.Context, runID string) ([]Entry, error) {
	q := `SELECT seq, run_id, request_id, binding, method, payload, response, err, at FROM calls`
	var args []any
	if runID != "" {
		q += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	rows, err := s.db.QueryContext(ctx, q+` ORDER BY seq;`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			at int64
		)
		if err := rows.Scan(&e.Seq, &e.RunID, &e.RequestID, &e.Binding, &e.Method, &e.Payload, &e.Response, &e.Err, &at); err != nil {
			return nil, err
		}
		e.At = time.UnixMilli(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Recorder returns a HostFunc that records every call made through next
// under runID. Recording failures are logged and never fail the call.
func (s *Store) Recorder(runID string, next runner.HostFunc) runner.HostFunc {
	return func(ctx context.Context, binding, namespace, operation string, payload []byte) ([]byte, error) {
		out, callErr := next(ctx, binding, namespace, operation, payload)
		e := Entry{
			RunID:     runID,
			RequestID: binding,
			Binding:   namespace,
			Method:    operation,
			Payload:   payload,
			Response:  out,
		}
		if callErr != nil {
			e.Err = callErr.Error()
		}
		if _, err := s.Record(context.WithoutCancel(ctx), e); err != nil {
			glog.Warningf("transcript: %v", err)
		}
		return out, callErr
	}
}
