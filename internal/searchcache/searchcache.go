// Package searchcache persists successful search responses in SQLite so the
// most recent results for a query survive restarts and network loss.
package searchcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"fbaudio/internal/domain"
)

// Open initialises the cache database and applies the base schema.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("apply pragma %s: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	stmt := `CREATE TABLE IF NOT EXISTS searches (
        query TEXT PRIMARY KEY,
        fetched_at TIMESTAMP NOT NULL,
        payload TEXT NOT NULL
    );`
	if _, err := db.Exec(stmt); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Cache reads and writes cached search responses.
type Cache struct {
	db *sql.DB
}

func New(db *sql.DB) *Cache {
	return &Cache{db: db}
}

// Put stores the response for a query, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, query string, response domain.SearchResponse) error {
	payload, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("marshal search response: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `INSERT INTO searches (query, fetched_at, payload)
VALUES (?, ?, ?)
ON CONFLICT(query) DO UPDATE SET fetched_at=excluded.fetched_at, payload=excluded.payload`,
		query, time.Now().UTC(), string(payload))
	return err
}

// Get returns the cached response for a query, if any.
func (c *Cache) Get(ctx context.Context, query string) (domain.SearchResponse, bool, error) {
	var payload string
	err := c.db.QueryRowContext(ctx, "SELECT payload FROM searches WHERE query = ?", query).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SearchResponse{}, false, nil
		}
		return domain.SearchResponse{}, false, err
	}

	var response domain.SearchResponse
	if err := json.Unmarshal([]byte(payload), &response); err != nil {
		return domain.SearchResponse{}, false, fmt.Errorf("decode cached response: %w", err)
	}
	return response, true, nil
}

// RecentQueries lists cached queries, newest first.
func (c *Cache) RecentQueries(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := c.db.QueryContext(ctx, "SELECT query FROM searches ORDER BY fetched_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	queries := make([]string, 0, limit)
	for rows.Next() {
		var query string
		if err := rows.Scan(&query); err != nil {
			return nil, err
		}
		queries = append(queries, query)
	}
	return queries, rows.Err()
}
