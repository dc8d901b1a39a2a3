// Package history records every decision the pipeline makes so that
// pass-throughs and failed posts can be audited after the fact.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type DB struct {
	readDB  *sql.DB
	writeDB *sql.DB
}

func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	db := &DB{writeDB: writeDB}
	// schema must exist before a read-only handle can open the file
	if err := db.init(); err != nil {
		db.Close()
		return nil, err
	}

	readDB, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}
	db.readDB = readDB
	return db, nil
}

func (d *DB) init() error {
	_, err := d.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS decisions (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			link       TEXT NOT NULL,
			category   TEXT NOT NULL,
			source     TEXT NOT NULL DEFAULT '',
			title      TEXT NOT NULL DEFAULT '',
			outcome    TEXT NOT NULL,
			fallback   INTEGER NOT NULL DEFAULT 0,
			handled_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_decisions_handled_at ON decisions(handled_at DESC);
		CREATE INDEX IF NOT EXISTS idx_decisions_link ON decisions(link);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (d *DB) Close() error {
	var errs []error
	if d.readDB != nil {
		errs = append(errs, d.readDB.Close())
	}
	if d.writeDB != nil {
		errs = append(errs, d.writeDB.Close())
	}
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

func (d *DB) Record(e Entry) error {
	if e.HandledAt.IsZero() {
		e.HandledAt = time.Now()
	}
	_, err := d.writeDB.Exec(`
		INSERT INTO decisions (link, category, source, title, outcome, fallback, handled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.Link, e.Category, e.Source, e.Title, string(e.Outcome), e.Fallback, e.HandledAt.UTC())
	if err != nil {
		return fmt.Errorf("recording %s: %w", e.Link, err)
	}
	return nil
}

func (d *DB) Entries(opts QueryOpts) ([]Entry, error) {
	var (
		where []string
		args  []interface{}
	)
	if !opts.Since.IsZero() {
		where = append(where, "handled_at >= ?")
		args = append(args, opts.Since.UTC())
	}
	if opts.Category != "" {
		where = append(where, "category = ?")
		args = append(args, opts.Category)
	}

	query := "SELECT link, category, source, title, outcome, fallback, handled_at FROM decisions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY handled_at DESC, id DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := d.readDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying decisions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			outcome string
		)
		if err := rows.Scan(&e.Link, &e.Category, &e.Source, &e.Title, &outcome, &e.Fallback, &e.HandledAt); err != nil {
			return nil, fmt.Errorf("scanning decision: %w", err)
		}
		e.Outcome = Outcome(outcome)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Counts tallies outcomes since the given time.
func (d *DB) Counts(since time.Time) (map[Outcome]int, error) {
	rows, err := d.readDB.Query(`
		SELECT outcome, COUNT(*) FROM decisions WHERE handled_at >= ? GROUP BY outcome
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("counting decisions: %w", err)
	}
	defer rows.Close()

	counts := make(map[Outcome]int)
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[Outcome(outcome)] = n
	}
	return counts, rows.Err()
}

// Prune deletes decisions older than the retention period and returns the number removed.
func (d *DB) Prune(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UTC()
	res, err := d.writeDB.Exec("DELETE FROM decisions WHERE handled_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning decisions: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		d.writeDB.Exec("VACUUM")
	}
	return n, nil
}

// Stats returns the number of recorded decisions and the database file size.
func (d *DB) Stats(dbPath string) (int, int64, error) {
	var count int
	if err := d.readDB.QueryRow("SELECT COUNT(*) FROM decisions").Scan(&count); err != nil {
		return 0, 0, fmt.Errorf("counting decisions: %w", err)
	}
	info, err := os.Stat(dbPath)
	if err != nil {
		return count, 0, nil
	}
	return count, info.Size(), nil
}
