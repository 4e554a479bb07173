package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{
		cfg: cfg,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	// Open database with SQLite-specific connection parameters
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	// Verify connection and set PRAGMAs
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// Create database driver
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// Create migration instance
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// CommitTx commits a transaction
func (s *SQLiteStore) CommitTx(tx *sql.Tx) error {
	return tx.Commit()
}

// RollbackTx rolls back a transaction
func (s *SQLiteStore) RollbackTx(tx *sql.Tx) error {
	return tx.Rollback()
}

// SaveRun inserts a new run record
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO runs (id, mode, status, policy_count, started_at, completed_at, error, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.Mode,
		run.Status,
		run.PolicyCount,
		run.StartedAt,
		run.CompletedAt,
		run.Error,
		run.Metadata,
		run.CreatedAt,
		run.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT id, mode, status, policy_count, started_at, completed_at, error, metadata, created_at, updated_at
		FROM runs
		WHERE id = ?
	`

	run := &Run{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.Mode,
		&run.Status,
		&run.PolicyCount,
		&run.StartedAt,
		&run.CompletedAt,
		&run.Error,
		&run.Metadata,
		&run.CreatedAt,
		&run.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// LatestRun retrieves the most recently started run
func (s *SQLiteStore) LatestRun(ctx context.Context) (*Run, error) {
	query := `
		SELECT id, mode, status, policy_count, started_at, completed_at, error, metadata, created_at, updated_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT 1
	`

	run := &Run{}
	err := s.db.QueryRowContext(ctx, query).Scan(
		&run.ID,
		&run.Mode,
		&run.Status,
		&run.PolicyCount,
		&run.StartedAt,
		&run.CompletedAt,
		&run.Error,
		&run.Metadata,
		&run.CreatedAt,
		&run.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no runs recorded")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	return run, nil
}

// UpdateRunStatus updates the status of a run
func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, id string, status RunStatus, errMsg *string) error {
	query := `
		UPDATE runs
		SET status = ?, error = ?, completed_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	var completedAt *time.Time
	if status == RunStatusCompleted || status == RunStatusFailed || status == RunStatusCancelled {
		now := time.Now()
		completedAt = &now
	}

	result, err := s.db.ExecContext(ctx, query, status, errMsg, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

// ListRuns lists runs with pagination, most recent first
func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]*Run, error) {
	query := `
		SELECT id, mode, status, policy_count, started_at, completed_at, error, metadata, created_at, updated_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run := &Run{}
		err := rows.Scan(
			&run.ID,
			&run.Mode,
			&run.Status,
			&run.PolicyCount,
			&run.StartedAt,
			&run.CompletedAt,
			&run.Error,
			&run.Metadata,
			&run.CreatedAt,
			&run.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// DeleteRun deletes a run by ID
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	query := `DELETE FROM runs WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

// SavePolicyResult inserts a new policy result record
func (s *SQLiteStore) SavePolicyResult(ctx context.Context, result *PolicyResult) error {
	query := `
		INSERT INTO policy_results (
			id, run_id, policy_name, resource_type, status,
			matched, actions, duration_ms, error,
			started_at, completed_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		result.ID,
		result.RunID,
		result.PolicyName,
		result.ResourceType,
		result.Status,
		result.Matched,
		result.Actions,
		result.DurationMS,
		result.Error,
		result.StartedAt,
		result.CompletedAt,
		result.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save policy result: %w", err)
	}

	return nil
}

// ListPolicyResults lists all policy results for a run in execution order
func (s *SQLiteStore) ListPolicyResults(ctx context.Context, runID string) ([]*PolicyResult, error) {
	query := `
		SELECT id, run_id, policy_name, resource_type, status,
			   matched, actions, duration_ms, error,
			   started_at, completed_at, created_at
		FROM policy_results
		WHERE run_id = ?
		ORDER BY started_at ASC, policy_name ASC
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list policy results: %w", err)
	}
	defer rows.Close()

	results := []*PolicyResult{}
	for rows.Next() {
		result := &PolicyResult{}
		err := rows.Scan(
			&result.ID,
			&result.RunID,
			&result.PolicyName,
			&result.ResourceType,
			&result.Status,
			&result.Matched,
			&result.Actions,
			&result.DurationMS,
			&result.Error,
			&result.StartedAt,
			&result.CompletedAt,
			&result.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy result: %w", err)
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policy results: %w", err)
	}

	return results, nil
}

// SaveViolation appends a new violation record
func (s *SQLiteStore) SaveViolation(ctx context.Context, violation *Violation) error {
	query := `
		INSERT INTO violations (run_id, policy, keyword, schema_path, instance_path, message, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		violation.RunID,
		violation.Policy,
		violation.Keyword,
		violation.SchemaPath,
		violation.InstancePath,
		violation.Message,
		violation.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to save violation: %w", err)
	}

	// Get the auto-generated ID
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get violation ID: %w", err)
	}

	violation.ID = id
	return nil
}

// ListViolations retrieves violations with optional filters and pagination
func (s *SQLiteStore) ListViolations(ctx context.Context, runID *string, policy *string, limit, offset int) ([]*Violation, error) {
	query := `
		SELECT id, run_id, policy, keyword, schema_path, instance_path, message, timestamp
		FROM violations
		WHERE (? IS NULL OR run_id = ?)
		  AND (? IS NULL OR policy = ?)
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, runID, runID, policy, policy, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list violations: %w", err)
	}
	defer rows.Close()

	violations := []*Violation{}
	for rows.Next() {
		violation := &Violation{}
		err := rows.Scan(
			&violation.ID,
			&violation.RunID,
			&violation.Policy,
			&violation.Keyword,
			&violation.SchemaPath,
			&violation.InstancePath,
			&violation.Message,
			&violation.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		violations = append(violations, violation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating violations: %w", err)
	}

	return violations, nil
}

// PolicyMetrics aggregates policy results by policy name over [start, end).
// An empty name aggregates every policy.
func (s *SQLiteStore) PolicyMetrics(ctx context.Context, name string, start, end time.Time) ([]*PolicyMetrics, error) {
	query := `
		SELECT policy_name,
			   COUNT(*),
			   SUM(CASE WHEN status = 'succeeded' THEN 1 ELSE 0 END),
			   SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END),
			   SUM(CASE WHEN status = 'skipped' THEN 1 ELSE 0 END),
			   SUM(matched),
			   SUM(actions),
			   AVG(duration_ms)
		FROM policy_results
		WHERE (? = '' OR policy_name = ?)
		  AND datetime(started_at) >= datetime(?)
		  AND datetime(started_at) < datetime(?)
		GROUP BY policy_name
		ORDER BY policy_name ASC
	`

	// Format bounds to SQLite-compatible datetime strings
	startStr := start.UTC().Format("2006-01-02 15:04:05")
	endStr := end.UTC().Format("2006-01-02 15:04:05")

	rows, err := s.db.QueryContext(ctx, query, name, name, startStr, endStr)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate policy metrics: %w", err)
	}
	defer rows.Close()

	metrics := []*PolicyMetrics{}
	for rows.Next() {
		m := &PolicyMetrics{}
		err := rows.Scan(
			&m.PolicyName,
			&m.Runs,
			&m.Succeeded,
			&m.Failed,
			&m.Skipped,
			&m.TotalMatched,
			&m.TotalActions,
			&m.AvgDurationMS,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy metrics: %w", err)
		}
		metrics = append(metrics, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policy metrics: %w", err)
	}

	return metrics, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
