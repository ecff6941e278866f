package database

import (
	"database/sql"
	"fmt"
	"time"

	"imagematch/logging"
	"imagematch/types"

	_ "github.com/mattn/go-sqlite3"
)

// RunRecord summarises one completed matching run
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	TargetDir  string
	SearchDir  string
	Threshold  float64
	TopK       int
	Targets    int
	Processed  int
	Skipped    int
	Matches    int
	Truncated  bool

	// NotEvaluated counts corpus images left unevaluated by an early stop
	NotEvaluated int
}

// InitDatabase initializes and returns a database connection
func InitDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		target_dir TEXT NOT NULL,
		search_dir TEXT NOT NULL,
		threshold REAL NOT NULL,
		top_k INTEGER NOT NULL,
		targets INTEGER NOT NULL,
		processed INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		matches INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS matches (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		query_path TEXT NOT NULL,
		target_path TEXT NOT NULL,
		similarity REAL NOT NULL,
		PRIMARY KEY(run_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_matches_query ON matches(query_path);`

	if _, err = db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, err
	}

	// Databases created before truncation tracking lack these columns
	for _, col := range []struct{ name, ddl string }{
		{"truncated", "ALTER TABLE runs ADD COLUMN truncated INTEGER NOT NULL DEFAULT 0;"},
		{"not_evaluated", "ALTER TABLE runs ADD COLUMN not_evaluated INTEGER NOT NULL DEFAULT 0;"},
	} {
		if err := addColumnIfMissing(db, col.name, col.ddl); err != nil {
			db.Close()
			return nil, err
		}
	}

	return db, nil
}

func addColumnIfMissing(db *sql.DB, name, ddl string) error {
	var hasColumn bool
	err := db.QueryRow("SELECT COUNT(*) FROM pragma_table_info('runs') WHERE name=?", name).Scan(&hasColumn)
	if err != nil {
		return fmt.Errorf("error checking for %s column: %w", name, err)
	}
	if hasColumn {
		return nil
	}
	if _, err = db.Exec(ddl); err != nil {
		return fmt.Errorf("error adding %s column: %w", name, err)
	}
	logging.DebugLog("Added '%s' column to existing database schema", name)
	return nil
}

// StoreRun stores a run and its matches in one transaction
func StoreRun(db *sql.DB, run RunRecord, matches []types.MatchRecord) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("cannot begin transaction for run %s: %w", run.ID, err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (
			id, started_at, finished_at, target_dir, search_dir, threshold, top_k,
			targets, processed, skipped, matches, truncated, not_evaluated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.TargetDir,
		run.SearchDir,
		run.Threshold,
		run.TopK,
		run.Targets,
		run.Processed,
		run.Skipped,
		run.Matches,
		run.Truncated,
		run.NotEvaluated,
	)
	if err != nil {
		return fmt.Errorf("cannot insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO matches (run_id, seq, query_path, target_path, similarity)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("cannot prepare match statement: %w", err)
	}
	defer stmt.Close()

	for _, m := range matches {
		if _, err := stmt.Exec(run.ID, m.Seq, m.QueryPath, m.TargetPath, m.Similarity); err != nil {
			return fmt.Errorf("cannot insert match %d for %s: %w", m.Seq, m.QueryPath, err)
		}
	}

	return tx.Commit()
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func ListRuns(db *sql.DB, limit int) ([]RunRecord, error) {
	query := `SELECT id, started_at, finished_at, target_dir, search_dir, threshold, top_k,
		targets, processed, skipped, matches, truncated, not_evaluated
		FROM runs ORDER BY started_at DESC, id`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var r RunRecord
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.TargetDir, &r.SearchDir, &r.Threshold,
			&r.TopK, &r.Targets, &r.Processed, &r.Skipped, &r.Matches, &r.Truncated, &r.NotEvaluated); err != nil {
			return nil, fmt.Errorf("failed to read run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRunMatches returns the matches of one run in sequence order
func GetRunMatches(db *sql.DB, runID string) ([]types.MatchRecord, error) {
	rows, err := db.Query(`SELECT seq, query_path, target_path, similarity
		FROM matches WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for %s: %w", runID, err)
	}
	defer rows.Close()

	matches := []types.MatchRecord{}
	for rows.Next() {
		var m types.MatchRecord
		if err := rows.Scan(&m.Seq, &m.QueryPath, &m.TargetPath, &m.Similarity); err != nil {
			return nil, fmt.Errorf("failed to read match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// FindMatchesForQuery returns every recorded match for a corpus image
// across all runs, newest run first
func FindMatchesForQuery(db *sql.DB, queryPath string) ([]types.MatchRecord, error) {
	rows, err := db.Query(`SELECT m.seq, m.query_path, m.target_path, m.similarity
		FROM matches m JOIN runs r ON r.id = m.run_id
		WHERE m.query_path = ? ORDER BY r.started_at DESC, m.seq`, queryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for %s: %w", queryPath, err)
	}
	defer rows.Close()

	matches := []types.MatchRecord{}
	for rows.Next() {
		var m types.MatchRecord
		if err := rows.Scan(&m.Seq, &m.QueryPath, &m.TargetPath, &m.Similarity); err != nil {
			return nil, fmt.Errorf("failed to read match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
