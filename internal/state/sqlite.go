package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"harvester/internal/model"
)

// SQLite stores records in a single table keyed by nttNo.
// All methods are safe for concurrent use.
type SQLite struct {
	db *sql.DB
	mu sync.RWMutex
}

// OpenSQLite opens (or creates) the database at dbPath. ":memory:" opens a
// shared in-memory database.
func OpenSQLite(dbPath string) (*SQLite, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		connStr = "file::memory:?cache=shared"
	} else if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS processed (
		ntt_no TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		processed_at TEXT NOT NULL,
		hash TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, nttNo string) (*model.ProcessedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec := model.ProcessedRecord{NttNo: nttNo}
	err := s.db.QueryRowContext(ctx,
		`SELECT event_id, processed_at, hash FROM processed WHERE ntt_no = ?`, nttNo,
	).Scan(&rec.EventID, &rec.ProcessedAt, &rec.Hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query processed %s: %w", nttNo, err)
	}
	return &rec, nil
}

func (s *SQLite) Put(ctx context.Context, nttNo string, rec model.ProcessedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO processed (ntt_no, event_id, processed_at, hash) VALUES (?, ?, ?, ?)
	ON CONFLICT(ntt_no) DO UPDATE SET
		event_id = excluded.event_id,
		processed_at = excluded.processed_at,
		hash = excluded.hash`,
		nttNo, rec.EventID, rec.ProcessedAt, rec.Hash)
	if err != nil {
		return fmt.Errorf("upsert processed %s: %w", nttNo, err)
	}
	return nil
}

// Close closes the database. It waits for in-flight operations.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
