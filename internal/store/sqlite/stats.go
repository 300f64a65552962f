// Package sqlite implements the stats store on a local SQLite database.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/otpower88/grabbot/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// StatsStore persists stats in a kv table.
type StatsStore struct {
	db *sql.DB
}

// Open opens (and if necessary creates) the database at path.
func Open(path string) (*StatsStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create stats dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single-writer daemon; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &StatsStore{db: db}, nil
}

func (s *StatsStore) Load() (store.Stats, error) {
	total, err := s.getInt(store.KeyTotalAttempts)
	if err != nil {
		return store.Stats{}, err
	}
	success, err := s.getInt(store.KeySuccessCount)
	if err != nil {
		return store.Stats{}, err
	}
	return store.Stats{TotalAttempts: total, SuccessCount: success}, nil
}

func (s *StatsStore) Save(stats store.Stats) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for key, v := range map[string]int{
		store.KeyTotalAttempts: stats.TotalAttempts,
		store.KeySuccessCount:  stats.SuccessCount,
	} {
		if _, err := tx.Exec(upsert, key, strconv.Itoa(v)); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}
	return tx.Commit()
}

func (s *StatsStore) GetString(key, def string) string {
	var v string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if err != nil || v == "" {
		return def
	}
	return v
}

func (s *StatsStore) SetString(key, value string) error {
	_, err := s.db.Exec(upsert, key, value)
	return err
}

func (s *StatsStore) Close() error { return s.db.Close() }

const upsert = `INSERT INTO kv (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`

func (s *StatsStore) getInt(key string) (int, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("corrupt value for %s: %w", key, err)
	}
	return n, nil
}
