package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder journals fetch runs to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets ad-hoc readers query the journal while a scheduled run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fetch_events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			run_id     TEXT,
			ticker     TEXT NOT NULL,
			source     TEXT,
			rows       INTEGER,
			status     TEXT,
			error      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fetch_ticker_ts ON fetch_events(ticker, timestamp)`,

		`CREATE TABLE IF NOT EXISTS write_events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			run_id     TEXT,
			ticker     TEXT NOT NULL,
			path       TEXT,
			format     TEXT,
			rows       INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_write_ticker_ts ON write_events(ticker, timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordFetch(evt *FetchEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO fetch_events
		(timestamp, run_id, ticker, source, rows, status, error)
		VALUES (?,?,?,?,?,?,?)`,
		time.Now().Unix(), evt.RunID, evt.Ticker, evt.Source, evt.Rows, evt.Status, evt.Error,
	)
	return err
}

func (r *SQLiteRecorder) RecordWrite(evt *WriteEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO write_events
		(timestamp, run_id, ticker, path, format, rows)
		VALUES (?,?,?,?,?,?)`,
		time.Now().Unix(), evt.RunID, evt.Ticker, evt.Path, evt.Format, evt.Rows,
	)
	return err
}

// CountFetches returns how many fetch events were journaled for ticker.
func (r *SQLiteRecorder) CountFetches(ticker string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM fetch_events WHERE ticker = ?`, ticker).Scan(&n)
	return n, err
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
