// Package store implements the inventory record store on SQLite: a keyed
// document store where each collection is a set of JSON documents, plus the
// history of mutating operations run against it.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"invsnap/internal/inv"
	"invsnap/internal/store/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements inv.RecordStore using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewSQLiteStore opens the store at path and applies pending migrations.
// path can be a file path or ":memory:" for an in-memory store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, path: path, now: time.Now}, nil
}

// OpenConnection opens and configures a SQLite connection.
// An in-memory database exists per connection, so the pool is pinned to a
// single connection for ":memory:".
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// FetchAll returns every document of the collection ordered by id. Document
// timestamps come back in their stored epoch form and are turned into
// Temporals by the normalizer.
func (s *SQLiteStore) FetchAll(collection string) ([]inv.RawRecord, error) {
	rows, err := s.db.QueryContext(context.Background(),
		"SELECT id, fields FROM documents WHERE collection = ? ORDER BY id", collection)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", collection, err)
	}
	defer rows.Close()

	records := []inv.RawRecord{}
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		fields, err := decodeFields([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("decoding document %s/%s: %w", collection, id, err)
		}
		records = append(records, inv.RawRecord{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading collection %s: %w", collection, err)
	}
	return records, nil
}

// Put creates or replaces a document.
func (s *SQLiteStore) Put(collection string, id string, fields map[string]any) error {
	data, err := encodeFields(fields)
	if err != nil {
		return fmt.Errorf("encoding document %s/%s: %w", collection, id, err)
	}

	now := s.now().UTC()
	_, err = s.db.ExecContext(context.Background(), `
		INSERT INTO documents (collection, id, fields, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			fields = excluded.fields,
			updated_at = excluded.updated_at`,
		collection, id, string(data), now, now)
	if err != nil {
		return fmt.Errorf("writing document %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *SQLiteStore) Delete(collection string, id string) error {
	_, err := s.db.ExecContext(context.Background(),
		"DELETE FROM documents WHERE collection = ? AND id = ?", collection, id)
	if err != nil {
		return fmt.Errorf("deleting document %s/%s: %w", collection, id, err)
	}
	return nil
}

// Count returns the number of documents in a collection.
func (s *SQLiteStore) Count(collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM documents WHERE collection = ?", collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting collection %s: %w", collection, err)
	}
	return n, nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteStore) Path() string {
	return s.path
}

// CheckMigrations verifies the schema is up to date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func decodeFields(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

var _ inv.RecordStore = (*SQLiteStore)(nil)
