package store

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/snapetech/tubecache/internal/cache"
)

// SQLite keeps artifacts as blobs in a single database file. Publish is one
// transaction, so a reader sees the old state or the complete new row.
// Suited to audio-heavy caches and to deployments that want one file to back up.
type SQLite struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS artifacts (
	cache_key  TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	size       INTEGER NOT NULL,
	data       BLOB NOT NULL,
	created_at INTEGER NOT NULL
)`

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Exists(key cache.Key) bool {
	var n int
	err := s.db.QueryRow(`SELECT 1 FROM artifacts WHERE cache_key = ? AND size > 0`, key.String()).Scan(&n)
	return err == nil
}

func (s *SQLite) Open(key cache.Key) (*Artifact, error) {
	var (
		name    string
		data    []byte
		created int64
	)
	err := s.db.QueryRow(`SELECT name, data, created_at FROM artifacts WHERE cache_key = ?`, key.String()).
		Scan(&name, &data, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Artifact{
		ReadSeekCloser: nopCloser{bytes.NewReader(data)},
		Name:           name,
		Size:           int64(len(data)),
		ModTime:        time.Unix(created, 0),
	}, nil
}

func (s *SQLite) Publish(key cache.Key, srcPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("store: publish %s: %w", key, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("store: publish %s: empty artifact", key)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	_, err = tx.Exec(`INSERT OR REPLACE INTO artifacts (cache_key, name, size, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		key.String(), key.FileName(), len(data), data, time.Now().Unix())
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("store: insert %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit %s: %w", key, err)
	}
	os.Remove(srcPath)
	return nil
}

type nopCloser struct{ *bytes.Reader }

func (nopCloser) Close() error { return nil }
