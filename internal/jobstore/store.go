// Package jobstore manages the persistent job table backed by SQLite.
//
// The job table is the sole synchronization point between worker processes:
// claiming is a single UPDATE statement, so two workers racing for the same
// day cannot both win.
package jobstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS jobs (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    day        TEXT NOT NULL,
    pair       TEXT NOT NULL,
    jobtype    TEXT NOT NULL,
    state      TEXT NOT NULL DEFAULT 'T',
    claimed_by TEXT NOT NULL DEFAULT '',
    updated_at TEXT NOT NULL,
    UNIQUE (day, pair, jobtype)
);
CREATE INDEX IF NOT EXISTS idx_jobs_claim ON jobs (jobtype, state, day);
`

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the job database.
func Open(path string) (*Store, error) {
	// The _pragma DSN options apply to every connection in the pool;
	// a plain Exec("PRAGMA ...") only reaches the connection it runs on.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create jobs table: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// HasPending reports whether any Todo job of the given type remains.
func (s *Store) HasPending(ctx context.Context, jobType string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM jobs WHERE jobtype = ? AND state = ?`,
		jobType, StateTodo,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count pending jobs: %w", err)
	}
	return n > 0, nil
}

// ClaimNextDay atomically transitions all Todo jobs of the earliest pending
// day to InProgress on behalf of claimant and returns them. The claim is a
// single UPDATE statement, so at most one claimant wins a given (day, pair);
// losers receive an empty slice, which is not an error.
func (s *Store) ClaimNextDay(ctx context.Context, jobType, claimant string) ([]Job, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET state = ?, claimed_by = ?, updated_at = ?
         WHERE jobtype = ? AND state = ?
           AND day = (SELECT day FROM jobs WHERE jobtype = ? AND state = ?
                      ORDER BY day LIMIT 1)`,
		StateInProgress, claimant, now,
		jobType, StateTodo,
		jobType, StateTodo,
	)
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, day, pair, jobtype, state, claimed_by, updated_at
         FROM jobs WHERE jobtype = ? AND state = ? AND claimed_by = ?
         ORDER BY pair`,
		jobType, StateInProgress, claimant,
	)
	if err != nil {
		return nil, fmt.Errorf("load claimed jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Mark sets the state of a single job.
func (s *Store) Mark(ctx context.Context, job Job, state State) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET state = ?, updated_at = ? WHERE id = ?`,
		state, time.Now().UTC().Format(time.RFC3339Nano), job.ID,
	)
	if err != nil {
		return fmt.Errorf("mark job %d: %w", job.ID, err)
	}
	return nil
}

// MarkMany sets the state of all given jobs in one statement.
func (s *Store) MarkMany(ctx context.Context, jobs []Job, state State) error {
	if len(jobs) == 0 {
		return nil
	}

	placeholders := make([]string, len(jobs))
	args := make([]interface{}, 0, len(jobs)+2)
	args = append(args, state, time.Now().UTC().Format(time.RFC3339Nano))
	for i, job := range jobs {
		placeholders[i] = "?"
		args = append(args, job.ID)
	}

	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE jobs SET state = ?, updated_at = ? WHERE id IN (%s)`,
			strings.Join(placeholders, ",")),
		args...,
	)
	if err != nil {
		return fmt.Errorf("mark %d jobs: %w", len(jobs), err)
	}
	return nil
}

// Enqueue inserts a job, or resets its state if the (day, pair, type)
// combination already exists.
func (s *Store) Enqueue(ctx context.Context, day, pair, jobType string, state State) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (day, pair, jobtype, state, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT (day, pair, jobtype)
         DO UPDATE SET state = excluded.state, claimed_by = '', updated_at = excluded.updated_at`,
		day, pair, jobType, state, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("enqueue %s job %s %s: %w", jobType, day, pair, err)
	}
	return nil
}

// CountByState returns job counts per state for the given type.
func (s *Store) CountByState(ctx context.Context, jobType string) (map[State]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT state, COUNT(*) FROM jobs WHERE jobtype = ? GROUP BY state`,
		jobType,
	)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[State]int)
	for rows.Next() {
		var state State
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

// GetJobs returns all jobs of the given type and state.
func (s *Store) GetJobs(ctx context.Context, jobType string, state State) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, day, pair, jobtype, state, claimed_by, updated_at
         FROM jobs WHERE jobtype = ? AND state = ? ORDER BY day, pair`,
		jobType, state,
	)
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(rows *sql.Rows) (Job, error) {
	var job Job
	var updatedAt string
	if err := rows.Scan(&job.ID, &job.Day, &job.Pair, &job.Type, &job.State,
		&job.ClaimedBy, &updatedAt); err != nil {
		return Job{}, fmt.Errorf("scan job: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		job.UpdatedAt = t
	}
	return job, nil
}
