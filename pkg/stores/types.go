package stores

import (
	"context"
	"database/sql"
	"time"
)

// RunStatus represents the status of a policy run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// PolicyStatus represents the status of a single policy within a run
type PolicyStatus string

const (
	PolicyStatusPending   PolicyStatus = "pending"
	PolicyStatusSucceeded PolicyStatus = "succeeded"
	PolicyStatusFailed    PolicyStatus = "failed"
	PolicyStatusSkipped   PolicyStatus = "skipped"
)

// Run represents one execution of a policy set
type Run struct {
	ID          string     `json:"id"`
	Mode        string     `json:"mode"` // pull, dry-run
	Status      RunStatus  `json:"status"`
	PolicyCount int        `json:"policy_count"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	Metadata    string     `json:"metadata"` // JSON blob
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// PolicyResult represents the outcome of one policy within a run
type PolicyResult struct {
	ID           string       `json:"id"`
	RunID        string       `json:"run_id"`
	PolicyName   string       `json:"policy_name"`
	ResourceType string       `json:"resource_type"`
	Status       PolicyStatus `json:"status"`
	Matched      int          `json:"matched"`
	Actions      int          `json:"actions"`
	DurationMS   int64        `json:"duration_ms"`
	Error        *string      `json:"error,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Violation represents a recorded schema violation. Violations found
// outside a run (plain validation) carry a nil RunID.
type Violation struct {
	ID           int64     `json:"id"`
	RunID        *string   `json:"run_id,omitempty"`
	Policy       string    `json:"policy"`
	Keyword      string    `json:"keyword"`
	SchemaPath   string    `json:"schema_path"`
	InstancePath string    `json:"instance_path"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
}

// PolicyMetrics aggregates policy results over a time window
type PolicyMetrics struct {
	PolicyName    string  `json:"policy_name"`
	Runs          int     `json:"runs"`
	Succeeded     int     `json:"succeeded"`
	Failed        int     `json:"failed"`
	Skipped       int     `json:"skipped"`
	TotalMatched  int     `json:"total_matched"`
	TotalActions  int     `json:"total_actions"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Run operations
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	LatestRun(ctx context.Context) (*Run, error)
	UpdateRunStatus(ctx context.Context, id string, status RunStatus, err *string) error
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error

	// PolicyResult operations
	SavePolicyResult(ctx context.Context, result *PolicyResult) error
	ListPolicyResults(ctx context.Context, runID string) ([]*PolicyResult, error)

	// Violation operations
	SaveViolation(ctx context.Context, violation *Violation) error
	ListViolations(ctx context.Context, runID *string, policy *string, limit, offset int) ([]*Violation, error)

	// Aggregation
	PolicyMetrics(ctx context.Context, name string, start, end time.Time) ([]*PolicyMetrics, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
