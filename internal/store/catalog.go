package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/sparsenet/internal/constants"
)

// ErrNotFound is returned when a run id is not in the catalog.
var ErrNotFound = errors.New("store: run not found")

// Run is one catalogued simulation run.
type Run struct {
	ID        string    `json:"id"`
	Dir       string    `json:"dir"`
	CreatedAt time.Time `json:"created_at"`

	Neurons     int     `json:"neurons"`
	Populations []int   `json:"populations"`
	Duration    float64 `json:"duration"`
	FinalTime   float64 `json:"final_time"`
	Steps       int     `json:"steps"`
	Spikes      int     `json:"spikes"`

	ConnectivitySeed int64  `json:"connectivity_seed"`
	DynamicsSeed     int64  `json:"dynamics_seed"`
	ParamsHash       string `json:"params_hash"`
}

// Artifact is one file written by a run.
type Artifact struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Seq      int    `json:"seq"`
	Rows     int    `json:"rows"`
	Bytes    int64  `json:"bytes"`
	Checksum string `json:"checksum"`
}

// Catalog is a SQLite-backed index of runs. It is safe for concurrent use.
type Catalog struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) root/catalog.db.
func Open(ctx context.Context, root string) (*Catalog, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	dbPath := filepath.Join(root, constants.CatalogFile)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Catalog{db: db, path: dbPath}, nil
}

// Path returns the database file path.
func (c *Catalog) Path() string { return c.path }

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// AddRun records a run and its artifacts in one transaction. Re-adding a run
// id replaces the earlier entry.
func (c *Catalog) AddRun(ctx context.Context, run Run, artifacts []Artifact) error {
	pops, err := json.Marshal(run.Populations)
	if err != nil {
		return fmt.Errorf("failed to encode populations: %w", err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to replace run: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, dir, created_at, neurons, populations, duration, final_time,
			steps, spikes, connectivity_seed, dynamics_seed, params_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Dir, run.CreatedAt.UTC().Format(time.RFC3339Nano),
		run.Neurons, string(pops), run.Duration, run.FinalTime,
		run.Steps, run.Spikes, run.ConnectivitySeed, run.DynamicsSeed, run.ParamsHash,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO artifacts (run_id, name, kind, seq, rows, bytes, checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare artifact insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range artifacts {
		if _, err := stmt.ExecContext(ctx, run.ID, a.Name, a.Kind, a.Seq, a.Rows, a.Bytes, a.Checksum); err != nil {
			return fmt.Errorf("failed to insert artifact %s: %w", a.Name, err)
		}
	}

	return tx.Commit()
}

const runColumns = `id, dir, created_at, neurons, populations, duration, final_time,
	steps, spikes, connectivity_seed, dynamics_seed, params_hash`

// ListRuns returns all runs, newest first.
func (c *Catalog) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// GetRun returns a single run.
func (c *Catalog) GetRun(ctx context.Context, id string) (*Run, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return r, err
}

// FindByParams returns the runs that used the same parameter record.
func (c *Catalog) FindByParams(ctx context.Context, hash string) ([]Run, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE params_hash = ? ORDER BY created_at DESC, id`, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// Artifacts returns the artifacts of a run ordered by kind and sequence number.
func (c *Catalog) Artifacts(ctx context.Context, runID string) ([]Artifact, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT name, kind, seq, rows, bytes, checksum
		FROM artifacts WHERE run_id = ? ORDER BY kind, seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.Name, &a.Kind, &a.Seq, &a.Rows, &a.Bytes, &a.Checksum); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and, through the foreign key, its artifacts.
func (c *Catalog) DeleteRun(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		r         Run
		createdAt string
		pops      string
	)
	err := s.Scan(&r.ID, &r.Dir, &createdAt, &r.Neurons, &pops, &r.Duration, &r.FinalTime,
		&r.Steps, &r.Spikes, &r.ConnectivitySeed, &r.DynamicsSeed, &r.ParamsHash)
	if err != nil {
		return nil, err
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(pops), &r.Populations); err != nil {
		return nil, fmt.Errorf("failed to parse populations of %s: %w", r.ID, err)
	}
	return &r, nil
}
