// Package store provides sqlite-backed persistence for skills, deployments,
// projects, and the append-only audit tables (change events, sync history,
// backups). A Store holds no global state; tests open independent in-memory
// instances.
package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// sqlite driver
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound means the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store wraps a sqlite database holding all skillmgr state.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists. Pass ":memory:" for an ephemeral test instance.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewID returns a unique record id: a sortable timestamp plus a random
// suffix, the same construction the backup snapshots use for directory
// names.
func NewID() string {
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return time.Now().UTC().Format("20060102-150405") + "-" + hex.EncodeToString(buf[:])
}

// nullTime converts a nullable column value to *time.Time.
func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// asNullTime converts a *time.Time to its nullable column value.
func asNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
