// Package metacache is the persistent lookup cache for metadata enrichment.
// It records, per cluster key, the outcome of the one external lookup a
// cluster is ever allowed — positive matches and explicit "no match found"
// negatives alike — plus the per-language genre taxonomy and best-effort
// grouping metadata for observability.
//
// Negative records never expire automatically; a known miss stays a miss
// until the operator deletes the cache file.
package metacache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Record is the durable outcome of one cluster's metadata lookup.
type Record struct {
	ClusterKey string
	MediaType  string // "tv", "movie", or "" for a negative record
	TMDBID     int64
	Title      string
	PosterPath string
	Genre      string
	Negative   bool
	LastError  string
	UpdatedAt  time.Time
}

// Positive reports whether the record carries a usable match.
func (r *Record) Positive() bool {
	return r != nil && !r.Negative && r.TMDBID != 0 && (r.MediaType == "tv" || r.MediaType == "movie")
}

// Cache is a sqlite-backed key/value store. Safe for concurrent use by lookup
// workers: every write is a single atomic upsert, last-write-wins.
type Cache struct {
	db   *sql.DB
	path string
}

// Open creates or opens the cache database at path.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("metacache: create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("metacache: open sqlite db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			db.Close()
			return nil, fmt.Errorf("metacache: apply pragma %q: %w", pragma, execErr)
		}
	}
	c := &Cache{db: db, path: path}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS lookups (
			cluster_key TEXT PRIMARY KEY,
			media_type  TEXT NOT NULL DEFAULT '',
			tmdb_id     INTEGER NOT NULL DEFAULT 0,
			title       TEXT NOT NULL DEFAULT '',
			poster_path TEXT NOT NULL DEFAULT '',
			genre       TEXT NOT NULL DEFAULT '',
			negative    INTEGER NOT NULL DEFAULT 0,
			last_error  TEXT NOT NULL DEFAULT '',
			updated_at  INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS genres (
			lang       TEXT PRIMARY KEY,
			movie_json TEXT NOT NULL DEFAULT '{}',
			tv_json    TEXT NOT NULL DEFAULT '{}',
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cluster_meta (
			cluster_key  TEXT PRIMARY KEY,
			title_key    TEXT NOT NULL DEFAULT '',
			prefix       TEXT NOT NULL DEFAULT '',
			fingerprints TEXT NOT NULL DEFAULT '[]',
			samples      TEXT NOT NULL DEFAULT '[]',
			updated_at   INTEGER NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := c.db.Exec(s); err != nil {
			return fmt.Errorf("metacache: init schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get returns the record for key, or (nil, nil) when the key has never been
// attempted. A negative record is returned as a record, not as absence.
func (c *Cache) Get(ctx context.Context, key string) (*Record, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT media_type, tmdb_id, title, poster_path, genre, negative, last_error, updated_at
		   FROM lookups WHERE cluster_key = ?`, key)
	rec := &Record{ClusterKey: key}
	var negative int
	var updated int64
	err := row.Scan(&rec.MediaType, &rec.TMDBID, &rec.Title, &rec.PosterPath, &rec.Genre, &negative, &rec.LastError, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("metacache: get %q: %w", key, err)
	}
	rec.Negative = negative != 0
	rec.UpdatedAt = time.Unix(updated, 0)
	return rec, nil
}

// Put upserts the record for rec.ClusterKey. Idempotent, last-write-wins.
func (c *Cache) Put(ctx context.Context, rec *Record) error {
	if strings.TrimSpace(rec.ClusterKey) == "" {
		return fmt.Errorf("metacache: put: empty cluster key")
	}
	negative := 0
	if rec.Negative {
		negative = 1
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO lookups
			(cluster_key, media_type, tmdb_id, title, poster_path, genre, negative, last_error, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		rec.ClusterKey, rec.MediaType, rec.TMDBID, rec.Title, rec.PosterPath, rec.Genre, negative, rec.LastError, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("metacache: put %q: %w", rec.ClusterKey, err)
	}
	return nil
}

// GetGenres returns the cached genre taxonomy for lang. ok is false on a
// cache miss; the caller fetches from the metadata client and calls PutGenres.
func (c *Cache) GetGenres(ctx context.Context, lang string) (movie, tv map[int]string, ok bool, err error) {
	row := c.db.QueryRowContext(ctx, `SELECT movie_json, tv_json FROM genres WHERE lang = ?`, lang)
	var movieJSON, tvJSON string
	scanErr := row.Scan(&movieJSON, &tvJSON)
	if scanErr == sql.ErrNoRows {
		return nil, nil, false, nil
	}
	if scanErr != nil {
		return nil, nil, false, fmt.Errorf("metacache: get genres %q: %w", lang, scanErr)
	}
	movie, tv = map[int]string{}, map[int]string{}
	if err := json.Unmarshal([]byte(movieJSON), &movie); err != nil {
		return nil, nil, false, nil // corrupt row: treat as miss, next PutGenres repairs it
	}
	if err := json.Unmarshal([]byte(tvJSON), &tv); err != nil {
		return nil, nil, false, nil
	}
	return movie, tv, true, nil
}

// PutGenres persists the genre taxonomy for lang.
func (c *Cache) PutGenres(ctx context.Context, lang string, movie, tv map[int]string) error {
	movieJSON, err := json.Marshal(movie)
	if err != nil {
		return fmt.Errorf("metacache: marshal movie genres: %w", err)
	}
	tvJSON, err := json.Marshal(tv)
	if err != nil {
		return fmt.Errorf("metacache: marshal tv genres: %w", err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO genres (lang, movie_json, tv_json, updated_at) VALUES (?,?,?,?)`,
		lang, string(movieJSON), string(tvJSON), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("metacache: put genres %q: %w", lang, err)
	}
	return nil
}

// ClusterMeta is the best-effort observability record for one cluster.
type ClusterMeta struct {
	ClusterKey   string
	TitleKey     string
	Prefix       string
	Fingerprints []string
	Samples      []string // up to 8 raw member titles
}

// PutClusterMeta upserts grouping metadata. Callers treat failures as
// non-fatal: this table exists for debugging grouping decisions, not for
// correctness.
func (c *Cache) PutClusterMeta(ctx context.Context, meta *ClusterMeta) error {
	fps, err := json.Marshal(meta.Fingerprints)
	if err != nil {
		return fmt.Errorf("metacache: marshal fingerprints: %w", err)
	}
	samples, err := json.Marshal(meta.Samples)
	if err != nil {
		return fmt.Errorf("metacache: marshal samples: %w", err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cluster_meta (cluster_key, title_key, prefix, fingerprints, samples, updated_at)
		 VALUES (?,?,?,?,?,?)`,
		meta.ClusterKey, meta.TitleKey, meta.Prefix, string(fps), string(samples), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("metacache: put cluster meta %q: %w", meta.ClusterKey, err)
	}
	return nil
}
