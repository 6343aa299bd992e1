// Package store provides a SQLite-backed cache for raw upstream responses.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register sqlite driver
)

// Cache stores response bodies keyed by request URL.
// Aggregated results are never stored; every read is re-parsed and re-aggregated.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the cache database at the given path.
func Open(dbPath string) (*Cache, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Cache{db: db, now: time.Now}, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the body cached for url if it is younger than maxAge.
// A zero maxAge disables expiry.
func (c *Cache) Get(url string, maxAge time.Duration) ([]byte, bool, error) {
	var body []byte
	var fetchedAt int64
	err := c.db.QueryRow("SELECT body, fetched_at FROM responses WHERE url = ?", url).Scan(&body, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if maxAge > 0 && c.now().Sub(time.Unix(0, fetchedAt)) > maxAge {
		return nil, false, nil
	}
	return body, true, nil
}

// Put stores body for url, replacing any earlier entry.
func (c *Cache) Put(url, dataset string, body []byte) error {
	_, err := c.db.Exec(`INSERT OR REPLACE INTO responses (url, dataset, body, size_bytes, fetched_at)
		VALUES (?, ?, ?, ?, ?)`, url, dataset, body, len(body), c.now().UnixNano())
	return err
}

// Prune deletes entries older than maxAge and returns how many were removed.
func (c *Cache) Prune(maxAge time.Duration) (int64, error) {
	cutoff := c.now().Add(-maxAge).UnixNano()
	res, err := c.db.Exec("DELETE FROM responses WHERE fetched_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Clear deletes every entry.
func (c *Cache) Clear() error {
	_, err := c.db.Exec("DELETE FROM responses")
	return err
}

// DatasetStats is the per-dataset slice of Stats.
type DatasetStats struct {
	Dataset string
	Entries int
	Bytes   int64
}

// Stats summarizes the cache contents.
type Stats struct {
	Entries  int
	Bytes    int64
	Oldest   time.Time
	Newest   time.Time
	Datasets []DatasetStats
}

// Stats returns entry counts and sizes, overall and per dataset.
func (c *Cache) Stats() (Stats, error) {
	var st Stats
	var oldest, newest sql.NullInt64
	err := c.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(size_bytes), 0), MIN(fetched_at), MAX(fetched_at)
		FROM responses`).Scan(&st.Entries, &st.Bytes, &oldest, &newest)
	if err != nil {
		return st, err
	}
	if oldest.Valid {
		st.Oldest = time.Unix(0, oldest.Int64)
	}
	if newest.Valid {
		st.Newest = time.Unix(0, newest.Int64)
	}

	rows, err := c.db.Query(`SELECT dataset, COUNT(*), SUM(size_bytes)
		FROM responses GROUP BY dataset ORDER BY dataset`)
	if err != nil {
		return st, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var ds DatasetStats
		if err := rows.Scan(&ds.Dataset, &ds.Entries, &ds.Bytes); err != nil {
			return st, err
		}
		st.Datasets = append(st.Datasets, ds)
	}
	return st, rows.Err()
}
