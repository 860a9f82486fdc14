// Package history records per-build cache statistics in a SQLite database,
// supplementing the local cache's meta/*.json files with a queryable index
// across builds. It never participates in cache-correctness decisions.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const currentSchemaVersion = 1

// Store is a SQLite-backed append log of build runs and their per-task
// cache outcomes.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %s: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at INTEGER NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var version int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return fmt.Errorf("querying schema version: %w", err)
	}
	if version >= currentSchemaVersion {
		return nil
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS builds (
			build_id TEXT PRIMARY KEY,
			goal TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER,
			task_count INTEGER NOT NULL DEFAULT 0,
			cache_hits INTEGER NOT NULL DEFAULT 0,
			cache_misses INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS task_runs (
			build_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			state TEXT NOT NULL,
			cache_source TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (build_id, task_id),
			FOREIGN KEY (build_id) REFERENCES builds(build_id)
		);

		CREATE INDEX IF NOT EXISTS idx_task_runs_fingerprint ON task_runs(fingerprint);
	`); err != nil {
		return fmt.Errorf("applying schema v1: %w", err)
	}

	if _, err := s.db.Exec("INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
		currentSchemaVersion, time.Now().Unix()); err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}
	return nil
}

// BeginBuild records the start of a build invocation.
func (s *Store) BeginBuild(buildID, goal string) error {
	_, err := s.db.Exec(
		"INSERT INTO builds (build_id, goal, started_at) VALUES (?, ?, ?)",
		buildID, goal, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("recording build start: %w", err)
	}
	return nil
}

// RecordTask records one task's outcome within buildID.
func (s *Store) RecordTask(buildID, taskID, fingerprint, state, cacheSource string, durationMS int64) error {
	_, err := s.db.Exec(`
		INSERT INTO task_runs (build_id, task_id, fingerprint, state, cache_source, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`, buildID, taskID, fingerprint, state, cacheSource, durationMS)
	if err != nil {
		return fmt.Errorf("recording task run: %w", err)
	}

	column := "cache_misses"
	if cacheSource != "" {
		column = "cache_hits"
	}
	// #nosec G201 - column is one of two fixed string literals, not user input.
	query := fmt.Sprintf("UPDATE builds SET task_count = task_count + 1, %s = %s + 1 WHERE build_id = ?", column, column)
	if _, err := s.db.Exec(query, buildID); err != nil {
		return fmt.Errorf("updating build counters: %w", err)
	}
	return nil
}

// FinishBuild marks buildID complete.
func (s *Store) FinishBuild(buildID string, failed bool) error {
	failedInt := 0
	if failed {
		failedInt = 1
	}
	_, err := s.db.Exec(
		"UPDATE builds SET finished_at = ?, failed = ? WHERE build_id = ?",
		time.Now().Unix(), failedInt, buildID,
	)
	if err != nil {
		return fmt.Errorf("recording build finish: %w", err)
	}
	return nil
}

// Stats summarizes one build's cache performance.
type Stats struct {
	BuildID     string
	Goal        string
	TaskCount   int
	CacheHits   int
	CacheMisses int
	Failed      bool
}

// BuildStats returns the recorded stats for buildID.
func (s *Store) BuildStats(buildID string) (*Stats, error) {
	var st Stats
	var failed int
	err := s.db.QueryRow(
		"SELECT build_id, goal, task_count, cache_hits, cache_misses, failed FROM builds WHERE build_id = ?",
		buildID,
	).Scan(&st.BuildID, &st.Goal, &st.TaskCount, &st.CacheHits, &st.CacheMisses, &failed)
	if err != nil {
		return nil, fmt.Errorf("querying build stats: %w", err)
	}
	st.Failed = failed != 0
	return &st, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
