// Package store indexes stored runs in SQLite so they can be listed and
// filtered without reading every run directory, and exports runs as JSON.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/san-kum/hybridsim/internal/storage"
)

// Index is the run history database. It is safe for concurrent use.
type Index struct {
	db *sql.DB
}

// Open opens (or creates) the index at path.
func Open(path string) (*Index, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	idx := &Index{db: db}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return idx, nil
}

func (x *Index) Close() error { return x.db.Close() }

func (x *Index) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		model       TEXT NOT NULL,
		solver      TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		final_time  REAL NOT NULL,
		steps       INTEGER NOT NULL,
		rejections  INTEGER NOT NULL,
		interrupted INTEGER NOT NULL DEFAULT 0,
		metrics     TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_runs_model ON runs(model, created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`
	_, err := x.db.Exec(schema)
	return err
}

// Run is one row of the index.
type Run struct {
	ID          string
	Model       string
	Solver      string
	CreatedAt   time.Time
	FinalTime   float64
	Steps       int
	Rejections  int
	Interrupted bool
	Metrics     map[string]float64
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Model  string
	Solver string
	Since  time.Time
	Limit  int
}

// Record adds a stored run, replacing any earlier row with the same id.
func (x *Index) Record(meta *storage.RunMetadata) error {
	metrics, err := json.Marshal(meta.Metrics)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	return retryOnContention(func() error {
		_, err := x.db.Exec(
			`INSERT INTO runs (id, model, solver, created_at, final_time, steps, rejections, interrupted, metrics)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   model = excluded.model, solver = excluded.solver, created_at = excluded.created_at,
			   final_time = excluded.final_time, steps = excluded.steps, rejections = excluded.rejections,
			   interrupted = excluded.interrupted, metrics = excluded.metrics`,
			meta.ID, meta.Model, meta.Solver, meta.Timestamp.UTC().Format(time.RFC3339Nano),
			meta.FinalTime, meta.Steps, meta.Rejections, boolToInt(meta.Interrupted), string(metrics),
		)
		return err
	})
}

// Get returns the indexed run with the given id, or storage.ErrNotFound.
func (x *Index) Get(id string) (*Run, error) {
	rows, err := x.db.Query(selectRuns+` WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return &runs[0], nil
}

// List returns matching runs, newest first.
func (x *Index) List(f Filter) ([]Run, error) {
	var (
		where []string
		args  []any
	)
	if f.Model != "" {
		where, args = append(where, "model = ?"), append(args, f.Model)
	}
	if f.Solver != "" {
		where, args = append(where, "solver = ?"), append(args, f.Solver)
	}
	if !f.Since.IsZero() {
		where, args = append(where, "created_at >= ?"), append(args, f.Since.UTC().Format(time.RFC3339Nano))
	}

	q := selectRuns
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := x.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	return scanRuns(rows)
}

// Count returns the number of indexed runs.
func (x *Index) Count() (int, error) {
	var n int
	err := x.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n)
	return n, err
}

func (x *Index) Delete(id string) error {
	return retryOnContention(func() error {
		_, err := x.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
		return err
	})
}

// Sync indexes every run in st that is not indexed yet and returns how many
// were added.
func (x *Index) Sync(st *storage.Store) (int, error) {
	runs, err := st.List()
	if err != nil {
		return 0, err
	}
	added := 0
	for i := range runs {
		if _, err := x.Get(runs[i].ID); err == nil {
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return added, err
		}
		if err := x.Record(&runs[i]); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

const selectRuns = `SELECT id, model, solver, created_at, final_time, steps, rejections, interrupted, metrics FROM runs`

func scanRuns(rows *sql.Rows) ([]Run, error) {
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		var (
			r           Run
			created     string
			interrupted int
			metrics     string
		)
		if err := rows.Scan(&r.ID, &r.Model, &r.Solver, &created, &r.FinalTime,
			&r.Steps, &r.Rejections, &interrupted, &metrics); err != nil {
			return nil, err
		}
		var err error
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("run %s: created_at: %w", r.ID, err)
		}
		r.Interrupted = interrupted != 0
		if err := json.Unmarshal([]byte(metrics), &r.Metrics); err != nil {
			return nil, fmt.Errorf("run %s: metrics: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
