// Package resultstore keeps the results of every run in a SQLite database, one row per case, so
// that results can be compared across runs.
package resultstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/libcatalog/catalog-test-harness/framework"
	"github.com/libcatalog/catalog-test-harness/framework/scenario"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL,
	passed      INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	errored     INTEGER NOT NULL,
	skipped     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS case_results (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	seq         INTEGER NOT NULL,
	environment TEXT NOT NULL,
	suite_path  TEXT NOT NULL,
	case_name   TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	detail      TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`

// Store is a scenario.TestLogger that writes the results of a run when the run ends. Each Store
// records exactly one run.
type Store struct {
	db      *sql.DB
	runID   uuid.UUID
	started time.Time
}

// Record is one stored case result.
type Record struct {
	Environment string
	SuitePath   string
	CaseName    string
	Outcome     string
	Duration    time.Duration
	Detail      string
}

// RunSummary describes one stored run.
type RunSummary struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Passed     int
	Failed     int
	Errored    int
	Skipped    int
}

// Open opens or creates a results database and starts a new run.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results database: %w", err)
	}
	// SQLite allows only one writer at a time.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=10000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create results schema: %w", err)
	}
	return &Store{db: db, runID: uuid.New(), started: time.Now()}, nil
}

// RunID identifies the run being recorded.
func (s *Store) RunID() string { return s.runID.String() }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) TestStarted(scenario.TestID)                                                 {}
func (s *Store) TestError(scenario.TestID, error)                                            {}
func (s *Store) TestFinished(scenario.TestID, scenario.TestResult, framework.CapturedOutput) {}
func (s *Store) TestSkipped(scenario.TestID, string)                                         {}

// EndLog writes the run and all of its case results in one transaction.
func (s *Store) EndLog(results scenario.Results) error {
	return s.save(context.Background(), results, time.Now())
}

func (s *Store) save(ctx context.Context, results scenario.Results, finished time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, passed, failed, errored, skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.RunID(), s.started.UTC(), finished.UTC(),
		results.Count(scenario.Passed), results.Count(scenario.Failed),
		results.Count(scenario.Errored), results.Count(scenario.Skipped),
	); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO case_results
		(run_id, seq, environment, suite_path, case_name, outcome, duration_ms, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()
	for i, r := range results.Tests {
		if _, err := stmt.ExecContext(ctx, s.RunID(), i,
			r.TestID.Environment(), r.TestID.SuitePath(), r.TestID.Name(),
			r.Outcome.String(), r.Duration.Milliseconds(), r.Detail,
		); err != nil {
			return fmt.Errorf("failed to record %s: %w", r.TestID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}
	return nil
}

// Runs lists the stored runs, most recent first.
func (s *Store) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, passed, failed, errored, skipped
		FROM runs ORDER BY started_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ret []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt,
			&r.Passed, &r.Failed, &r.Errored, &r.Skipped); err != nil {
			return nil, err
		}
		ret = append(ret, r)
	}
	return ret, rows.Err()
}

// Records returns the case results of a run in the order the cases ran.
func (s *Store) Records(ctx context.Context, runID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT environment, suite_path, case_name, outcome, duration_ms, detail
		FROM case_results WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ret []Record
	for rows.Next() {
		var r Record
		var ms int64
		if err := rows.Scan(&r.Environment, &r.SuitePath, &r.CaseName, &r.Outcome, &ms, &r.Detail); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		ret = append(ret, r)
	}
	return ret, rows.Err()
}
