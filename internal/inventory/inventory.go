// Package inventory is the persistent stream ledger. It remembers every URL
// the checker has seen together with its last probe outcome, so repeated runs
// only re-probe streams whose verdict has gone stale.
package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/snapetech/iptvcheckr/internal/playlist"
)

// Row is one stream's persisted state. Timestamps are zero when the stream
// has never been checked (or never succeeded).
type Row struct {
	URL         string
	Title       string
	GroupTitle  string
	TvgID       string
	TvgName     string
	TvgLogo     string
	LastChecked time.Time
	Status      playlist.ProbeStatus
	LastOK      time.Time
	FailCount   int
}

// Store wraps the sqlite inventory database.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time // test hook
}

// Open opens or creates the inventory database at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("inventory: create %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("inventory: open %s: %w", path, err)
	}
	// A single writer keeps the sqlite driver out of SQLITE_BUSY territory.
	db.SetMaxOpenConns(1)
	s := &Store{db: db, path: path, now: time.Now}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	pragmas := []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA synchronous=NORMAL`,
		`PRAGMA busy_timeout=5000`,
		`PRAGMA temp_store=MEMORY`,
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("inventory: %s: %w", p, err)
		}
	}
	schema := []string{
		`CREATE TABLE IF NOT EXISTS streams (
			url          TEXT PRIMARY KEY,
			title        TEXT NOT NULL DEFAULT '',
			group_title  TEXT NOT NULL DEFAULT '',
			tvg_id       TEXT NOT NULL DEFAULT '',
			tvg_name     TEXT NOT NULL DEFAULT '',
			tvg_logo     TEXT NOT NULL DEFAULT '',
			last_checked TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT '',
			last_ok      TEXT NOT NULL DEFAULT '',
			fail_count   INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_streams_status ON streams(status)`,
		`CREATE INDEX IF NOT EXISTS idx_streams_group ON streams(group_title)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("inventory: init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BulkUpsert records the current playlist snapshot: new URLs are inserted,
// known URLs get their descriptive fields refreshed while probe state
// (status, timestamps, fail count) is preserved. Duplicate URLs within the
// batch keep the first occurrence.
func (s *Store) BulkUpsert(ctx context.Context, entries []*playlist.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("inventory: begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO streams (url, title, group_title, tvg_id, tvg_name, tvg_logo)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			title       = excluded.title,
			group_title = excluded.group_title,
			tvg_id      = excluded.tvg_id,
			tvg_name    = excluded.tvg_name,
			tvg_logo    = excluded.tvg_logo`)
	if err != nil {
		return fmt.Errorf("inventory: prepare upsert: %w", err)
	}
	defer stmt.Close()

	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.URL == "" {
			continue
		}
		if _, dup := seen[e.URL]; dup {
			continue
		}
		seen[e.URL] = struct{}{}
		if _, err := stmt.ExecContext(ctx, e.URL, e.RawTitle, e.GroupLabel, e.TvgID, e.TvgName, e.TvgLogo); err != nil {
			return fmt.Errorf("inventory: upsert %s: %w", e.URL, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("inventory: commit upsert: %w", err)
	}
	return nil
}

// FetchAll returns the persisted state keyed by URL.
func (s *Store) FetchAll(ctx context.Context) (map[string]Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url, title, group_title, tvg_id, tvg_name, tvg_logo,
		       last_checked, status, last_ok, fail_count
		FROM streams`)
	if err != nil {
		return nil, fmt.Errorf("inventory: fetch streams: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Row)
	for rows.Next() {
		var r Row
		var checked, lastOK, status string
		if err := rows.Scan(&r.URL, &r.Title, &r.GroupTitle, &r.TvgID, &r.TvgName, &r.TvgLogo,
			&checked, &status, &lastOK, &r.FailCount); err != nil {
			return nil, fmt.Errorf("inventory: scan stream: %w", err)
		}
		r.Status = playlist.ProbeStatus(status)
		r.LastChecked = parseTime(checked)
		r.LastOK = parseTime(lastOK)
		out[r.URL] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inventory: fetch streams: %w", err)
	}
	return out, nil
}

// DueForProbe returns URLs whose verdict is missing or stale: never-checked
// streams, OK streams older than okWindow, and FAIL streams older than
// failWindow. limit <= 0 means no cap. Results are ordered never-checked
// first, then oldest check first, so a capped run drains the backlog fairly.
func (s *Store) DueForProbe(ctx context.Context, okWindow, failWindow time.Duration, limit int) ([]string, error) {
	now := s.now().UTC()
	okCutoff := formatTime(now.Add(-okWindow))
	failCutoff := formatTime(now.Add(-failWindow))

	q := `
		SELECT url FROM streams
		WHERE last_checked = '' OR status = ''
		   OR (status = 'OK'   AND last_checked < ?)
		   OR (status = 'FAIL' AND last_checked < ?)
		ORDER BY last_checked ASC, url ASC`
	args := []any{okCutoff, failCutoff}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("inventory: due query: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("inventory: scan due url: %w", err)
		}
		urls = append(urls, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inventory: due query: %w", err)
	}
	return urls, nil
}

// MarkResults records one probe round. OK streams reset their fail count and
// refresh last_ok; FAIL streams increment it. Both stamp last_checked.
func (s *Store) MarkResults(ctx context.Context, okURLs, failURLs []string) error {
	now := formatTime(s.now().UTC())
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("inventory: begin results: %w", err)
	}
	defer tx.Rollback()

	okStmt, err := tx.PrepareContext(ctx,
		`UPDATE streams SET status='OK', last_checked=?, last_ok=?, fail_count=0 WHERE url=?`)
	if err != nil {
		return fmt.Errorf("inventory: prepare ok update: %w", err)
	}
	defer okStmt.Close()
	for _, u := range okURLs {
		if _, err := okStmt.ExecContext(ctx, now, now, u); err != nil {
			return fmt.Errorf("inventory: mark ok %s: %w", u, err)
		}
	}

	failStmt, err := tx.PrepareContext(ctx,
		`UPDATE streams SET status='FAIL', last_checked=?, fail_count=fail_count+1 WHERE url=?`)
	if err != nil {
		return fmt.Errorf("inventory: prepare fail update: %w", err)
	}
	defer failStmt.Close()
	for _, u := range failURLs {
		if _, err := failStmt.ExecContext(ctx, now, u); err != nil {
			return fmt.Errorf("inventory: mark fail %s: %w", u, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("inventory: commit results: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
