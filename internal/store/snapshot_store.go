// Package store persists taxonomy snapshots in SQLite so classifications of
// successive ontology versions can be listed and compared.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"saturn/internal/logging"
	"saturn/internal/taxonomy"
)

// ErrRunNotFound is returned when a snapshot id is unknown.
var ErrRunNotFound = errors.New("snapshot not found")

// Run describes one stored snapshot.
type Run struct {
	ID          string
	CreatedAt   time.Time
	Label       string // free text, usually the ontology name
	Policy      string
	Status      string
	Conclusions int64
	Duration    time.Duration
	Classes     int
	Individuals int
}

// Snapshot is a stored taxonomy keyed by canonical names.
type Snapshot struct {
	Run     Run
	Members map[string][]string // canonical class -> equivalent classes
	Supers  map[string][]string // canonical class -> direct super canonicals
	Groups  map[string][]string // canonical individual -> same individuals
	Types   map[string][]string // canonical individual -> direct type canonicals
}

// SnapshotStore is a SQLite backed snapshot archive. It is safe for
// concurrent use.
type SnapshotStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Open opens (or creates) the snapshot database at path. ":memory:" opens a
// private in-memory database.
func Open(path string) (*SnapshotStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logging.StoreDebug("Failed to set %s: %v", pragma, err)
		}
	}

	s := &SnapshotStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logging.Store("Snapshot store ready at %s", path)
	return s, nil
}

func (s *SnapshotStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS taxonomy_runs (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		policy TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		conclusions INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		classes INTEGER NOT NULL DEFAULT 0,
		individuals INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON taxonomy_runs(created_at);

	CREATE TABLE IF NOT EXISTS taxonomy_members (
		run_id TEXT NOT NULL,
		node TEXT NOT NULL,
		name TEXT NOT NULL,
		PRIMARY KEY (run_id, name)
	);

	CREATE TABLE IF NOT EXISTS taxonomy_edges (
		run_id TEXT NOT NULL,
		sub TEXT NOT NULL,
		super TEXT NOT NULL,
		PRIMARY KEY (run_id, sub, super)
	);

	CREATE TABLE IF NOT EXISTS taxonomy_instances (
		run_id TEXT NOT NULL,
		grp TEXT NOT NULL,
		individual TEXT NOT NULL,
		PRIMARY KEY (run_id, individual)
	);

	CREATE TABLE IF NOT EXISTS taxonomy_types (
		run_id TEXT NOT NULL,
		grp TEXT NOT NULL,
		type TEXT NOT NULL,
		PRIMARY KEY (run_id, grp, type)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *SnapshotStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Save stores tax under a fresh run id. ID and CreatedAt of meta are filled
// in when empty.
func (s *SnapshotStore) Save(ctx context.Context, meta Run, tax *taxonomy.Taxonomy) (Run, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Save")
	defer timer.Stop()

	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}
	meta.Classes, meta.Individuals = 0, 0
	for _, n := range tax.Nodes() {
		meta.Classes += len(n.Members())
	}
	for _, i := range tax.Instances() {
		meta.Individuals += len(i.Members())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO taxonomy_runs
		(id, created_at, label, policy, status, conclusions, duration_ms, classes, individuals)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.ID, meta.CreatedAt.UnixMilli(), meta.Label, meta.Policy, meta.Status,
		meta.Conclusions, meta.Duration.Milliseconds(), meta.Classes, meta.Individuals); err != nil {
		return Run{}, fmt.Errorf("failed to insert run: %w", err)
	}

	for _, n := range tax.Nodes() {
		for _, m := range n.Members() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO taxonomy_members (run_id, node, name) VALUES (?, ?, ?)`,
				meta.ID, n.Canonical(), m); err != nil {
				return Run{}, fmt.Errorf("failed to insert member %s: %w", m, err)
			}
		}
		for _, sup := range n.DirectSupers() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO taxonomy_edges (run_id, sub, super) VALUES (?, ?, ?)`,
				meta.ID, n.Canonical(), sup.Canonical()); err != nil {
				return Run{}, fmt.Errorf("failed to insert edge %s: %w", n, err)
			}
		}
	}
	for _, i := range tax.Instances() {
		for _, m := range i.Members() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO taxonomy_instances (run_id, grp, individual) VALUES (?, ?, ?)`,
				meta.ID, i.Canonical(), m); err != nil {
				return Run{}, fmt.Errorf("failed to insert individual %s: %w", m, err)
			}
		}
		for _, typ := range i.DirectTypes() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO taxonomy_types (run_id, grp, type) VALUES (?, ?, ?)`,
				meta.ID, i.Canonical(), typ.Canonical()); err != nil {
				return Run{}, fmt.Errorf("failed to insert type of %s: %w", i.Canonical(), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("failed to commit snapshot: %w", err)
	}
	logging.Store("Saved snapshot %s (%d classes, %d individuals)", meta.ID, meta.Classes, meta.Individuals)
	return meta, nil
}

const runColumns = `id, created_at, label, policy, status, conclusions, duration_ms, classes, individuals`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (Run, error) {
	var r Run
	var created, durationMs int64
	if err := row.Scan(&r.ID, &created, &r.Label, &r.Policy, &r.Status,
		&r.Conclusions, &durationMs, &r.Classes, &r.Individuals); err != nil {
		return Run{}, err
	}
	r.CreatedAt = time.UnixMilli(created)
	r.Duration = time.Duration(durationMs) * time.Millisecond
	return r, nil
}

// Runs lists stored runs, newest first. A non-positive limit lists all.
func (s *SnapshotStore) Runs(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM taxonomy_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Latest returns the newest stored run.
func (s *SnapshotStore) Latest(ctx context.Context) (Run, error) {
	runs, err := s.Runs(ctx, 1)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, ErrRunNotFound
	}
	return runs[0], nil
}

// Load reads a stored snapshot.
func (s *SnapshotStore) Load(ctx context.Context, id string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM taxonomy_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	snap := &Snapshot{
		Run:     run,
		Members: make(map[string][]string),
		Supers:  make(map[string][]string),
		Groups:  make(map[string][]string),
		Types:   make(map[string][]string),
	}
	queries := []struct {
		query string
		into  map[string][]string
	}{
		{`SELECT node, name FROM taxonomy_members WHERE run_id = ?`, snap.Members},
		{`SELECT sub, super FROM taxonomy_edges WHERE run_id = ?`, snap.Supers},
		{`SELECT grp, individual FROM taxonomy_instances WHERE run_id = ?`, snap.Groups},
		{`SELECT grp, type FROM taxonomy_types WHERE run_id = ?`, snap.Types},
	}
	for _, q := range queries {
		if err := s.collect(ctx, q.query, id, q.into); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

func (s *SnapshotStore) collect(ctx context.Context, query, id string, into map[string][]string) error {
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to query snapshot: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		into[k] = append(into[k], v)
	}
	for _, vs := range into {
		sort.Strings(vs)
	}
	return rows.Err()
}

// Delete removes a run and its rows.
func (s *SnapshotStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.deleteRuns(ctx, []string{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// Prune keeps the newest keep runs and deletes the rest. It returns the
// number of runs removed.
func (s *SnapshotStore) Prune(ctx context.Context, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM taxonomy_runs ORDER BY created_at DESC, rowid DESC LIMIT -1 OFFSET ?`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to list runs: %w", err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan run id: %w", err)
		}
		stale = append(stale, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	n, err := s.deleteRuns(ctx, stale)
	if n > 0 {
		logging.Store("Pruned %d snapshots", n)
	}
	return n, err
}

func (s *SnapshotStore) deleteRuns(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	deleted := 0
	for _, id := range ids {
		for _, table := range []string{"taxonomy_members", "taxonomy_edges", "taxonomy_instances", "taxonomy_types"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, id); err != nil {
				return 0, fmt.Errorf("failed to delete from %s: %w", table, err)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM taxonomy_runs WHERE id = ?`, id)
		if err != nil {
			return 0, fmt.Errorf("failed to delete run: %w", err)
		}
		n, _ := res.RowsAffected()
		deleted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete: %w", err)
	}
	return deleted, nil
}
