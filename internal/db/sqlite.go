// Package db persists battle history to SQLite. The battle log is an
// event-bus subscriber: it records battles, turns, and chat as they happen
// and is queried afterwards by the CLI and the HTTP API.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// store is the single SQLite connection behind the battle log. The pool is
// capped at one connection, so the API's history reads and event-handler
// inserts take turns on it; the mutex serialises the writers themselves
// since SQLite allows only one at a time.
type store struct {
	mu   sync.Mutex
	conn *sql.DB
}

// openStore creates the database file if needed, applies the pragmas and the
// given schema, and verifies the connection.
func openStore(path, schema string) (*store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating battle log directory: %w", err)
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening battle log %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("battle log unreachable: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying battle log schema: %w", err)
	}
	return &store{conn: conn}, nil
}

// Close closes the database connection.
func (s *store) Close() error {
	return s.conn.Close()
}

// Exec runs one write statement under the writer lock.
func (s *store) Exec(query string, args ...any) (sql.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Exec(query, args...)
}

// Query executes a read query returning rows.
func (s *store) Query(query string, args ...any) (*sql.Rows, error) {
	return s.conn.Query(query, args...)
}

// QueryRow executes a read query returning a single row.
func (s *store) QueryRow(query string, args ...any) *sql.Row {
	return s.conn.QueryRow(query, args...)
}
