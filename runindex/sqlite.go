// Package runindex keeps a queryable SQLite index of simulation runs, their
// stats windows and bookmarks. CSV and journal files remain the full record.
package runindex

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pthm-cable/acre/telemetry"
)

// Index is an open run index.
type Index struct {
	db *sql.DB
}

// Run is one indexed run.
type Run struct {
	ID              int64
	Seed            int64
	Label           string
	StartedAt       time.Time
	Ticks           int32
	FinalPopulation int
	Digest          string
}

// Window is one indexed stats window.
type Window struct {
	WindowEnd  int32
	Population int
	Births     int
	Deaths     int
	Digs       int
	GardenFood int
	HungerMean float64
}

// Open opens or creates the index at path.
func Open(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Index{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			seed INTEGER NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			ticks INTEGER NOT NULL DEFAULT 0,
			final_population INTEGER NOT NULL DEFAULT 0,
			digest TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS windows (
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			window_end INTEGER NOT NULL,
			population INTEGER NOT NULL,
			births INTEGER NOT NULL,
			deaths INTEGER NOT NULL,
			digs INTEGER NOT NULL,
			garden_food INTEGER NOT NULL,
			hunger_mean REAL NOT NULL,
			PRIMARY KEY (run_id, window_end)
		);`,
		`CREATE TABLE IF NOT EXISTS bookmarks (
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			tick INTEGER NOT NULL,
			type TEXT NOT NULL,
			description TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS bookmarks_run ON bookmarks(run_id, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (x *Index) Close() error {
	if x == nil {
		return nil
	}
	return x.db.Close()
}

// BeginRun inserts a new run and returns its ID.
func (x *Index) BeginRun(ctx context.Context, seed int64, label string, startedAt time.Time) (int64, error) {
	res, err := x.db.ExecContext(ctx,
		`INSERT INTO runs(seed, label, started_at) VALUES(?, ?, ?)`,
		seed, label, startedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("begin run: %w", err)
	}
	return res.LastInsertId()
}

// RecordWindow stores one stats window.
func (x *Index) RecordWindow(ctx context.Context, runID int64, s telemetry.WindowStats) error {
	_, err := x.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO windows(run_id, window_end, population, births, deaths, digs, garden_food, hunger_mean)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, s.WindowEndTick, s.Population, s.Births, s.Deaths, s.Digs, s.GardenFood, s.HungerMean)
	if err != nil {
		return fmt.Errorf("record window %d: %w", s.WindowEndTick, err)
	}
	return nil
}

// RecordBookmark stores one bookmark.
func (x *Index) RecordBookmark(ctx context.Context, runID int64, b telemetry.Bookmark) error {
	_, err := x.db.ExecContext(ctx,
		`INSERT INTO bookmarks(run_id, tick, type, description) VALUES(?, ?, ?, ?)`,
		runID, b.Tick, string(b.Type), b.Description)
	if err != nil {
		return fmt.Errorf("record bookmark: %w", err)
	}
	return nil
}

// FinishRun records the final state of a run.
func (x *Index) FinishRun(ctx context.Context, runID int64, sum telemetry.RunSummary) error {
	_, err := x.db.ExecContext(ctx,
		`UPDATE runs SET ticks = ?, final_population = ?, digest = ? WHERE id = ?`,
		sum.Ticks, sum.FinalPopulation, sum.Digest, runID)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", runID, err)
	}
	return nil
}

// Runs returns the most recent runs, newest first.
func (x *Index) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := x.db.QueryContext(ctx,
		`SELECT id, seed, label, started_at, ticks, final_population, digest
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started string
		if err := rows.Scan(&r.ID, &r.Seed, &r.Label, &started, &r.Ticks, &r.FinalPopulation, &r.Digest); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Windows returns the stats windows of a run in tick order.
func (x *Index) Windows(ctx context.Context, runID int64) ([]Window, error) {
	rows, err := x.db.QueryContext(ctx,
		`SELECT window_end, population, births, deaths, digs, garden_food, hunger_mean
		 FROM windows WHERE run_id = ? ORDER BY window_end`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Window
	for rows.Next() {
		var w Window
		if err := rows.Scan(&w.WindowEnd, &w.Population, &w.Births, &w.Deaths, &w.Digs, &w.GardenFood, &w.HungerMean); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Bookmarks returns the bookmarks of a run in tick order.
func (x *Index) Bookmarks(ctx context.Context, runID int64) ([]telemetry.Bookmark, error) {
	rows, err := x.db.QueryContext(ctx,
		`SELECT tick, type, description FROM bookmarks WHERE run_id = ? ORDER BY tick`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []telemetry.Bookmark
	for rows.Next() {
		var b telemetry.Bookmark
		var typ string
		if err := rows.Scan(&b.Tick, &typ, &b.Description); err != nil {
			return nil, err
		}
		b.Type = telemetry.BookmarkType(typ)
		out = append(out, b)
	}
	return out, rows.Err()
}
