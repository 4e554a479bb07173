package stores

import (
	"context"
	"os"
	"testing"
	"time"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	return store
}

// saveTestRun inserts a minimal run for tests that need a foreign key target
func saveTestRun(t *testing.T, store *SQLiteStore, id string, startedAt time.Time) *Run {
	t.Helper()

	run := &Run{
		ID:          id,
		Mode:        "pull",
		Status:      RunStatusRunning,
		PolicyCount: 1,
		StartedAt:   startedAt,
		Metadata:    `{}`,
		CreatedAt:   startedAt,
		UpdatedAt:   startedAt,
	}
	if err := store.SaveRun(context.Background(), run); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}
	return run
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	// Check that tables exist by querying them
	tables := []string{"runs", "policy_results", "violations"}
	for _, table := range tables {
		query := "SELECT COUNT(*) FROM " + table
		var count int
		err := store.db.QueryRowContext(ctx, query).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
}

// TestRunCRUD tests Run CRUD operations
func TestRunCRUD(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	// Create
	run := &Run{
		ID:          "run-001",
		Mode:        "dry-run",
		Status:      RunStatusPending,
		PolicyCount: 3,
		StartedAt:   now,
		Metadata:    `{"policy_glob":"*"}`,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}

	// Read
	retrieved, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}

	if retrieved.ID != run.ID {
		t.Errorf("expected ID %s, got %s", run.ID, retrieved.ID)
	}
	if retrieved.Mode != run.Mode {
		t.Errorf("expected Mode %s, got %s", run.Mode, retrieved.Mode)
	}
	if retrieved.Status != run.Status {
		t.Errorf("expected Status %s, got %s", run.Status, retrieved.Status)
	}
	if retrieved.PolicyCount != run.PolicyCount {
		t.Errorf("expected PolicyCount %d, got %d", run.PolicyCount, retrieved.PolicyCount)
	}

	// Update
	errMsg := "test error"
	if err := store.UpdateRunStatus(ctx, run.ID, RunStatusFailed, &errMsg); err != nil {
		t.Fatalf("failed to update run status: %v", err)
	}

	updated, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get updated run: %v", err)
	}

	if updated.Status != RunStatusFailed {
		t.Errorf("expected Status %s, got %s", RunStatusFailed, updated.Status)
	}
	if updated.Error == nil || *updated.Error != errMsg {
		t.Errorf("expected Error %s, got %v", errMsg, updated.Error)
	}
	if updated.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}

	// List
	runs, err := store.ListRuns(ctx, 10, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}

	if len(runs) != 1 {
		t.Errorf("expected 1 run, got %d", len(runs))
	}

	// Delete
	if err := store.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("failed to delete run: %v", err)
	}

	_, err = store.GetRun(ctx, run.ID)
	if err == nil {
		t.Error("expected error when getting deleted run")
	}
}

// TestLatestRun tests retrieval of the most recent run
func TestLatestRun(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	// Empty store
	_, err := store.LatestRun(ctx)
	if err == nil {
		t.Error("expected error when no runs are recorded")
	}

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	saveTestRun(t, store, "run-old", base)
	saveTestRun(t, store, "run-new", base.Add(2*time.Hour))

	latest, err := store.LatestRun(ctx)
	if err != nil {
		t.Fatalf("failed to get latest run: %v", err)
	}

	if latest.ID != "run-new" {
		t.Errorf("expected latest run run-new, got %s", latest.ID)
	}
}

// TestPolicyResultOperations tests PolicyResult operations
func TestPolicyResultOperations(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	run := saveTestRun(t, store, "run-002", now)

	// Save results in reverse start order to exercise the ordering
	results := []*PolicyResult{
		{
			ID:           "pr-002",
			RunID:        run.ID,
			PolicyName:   "s3-encrypt",
			ResourceType: "s3",
			Status:       PolicyStatusFailed,
			Matched:      0,
			DurationMS:   40,
			StartedAt:    now.Add(2 * time.Second),
			CreatedAt:    now.Add(2 * time.Second),
		},
		{
			ID:           "pr-001",
			RunID:        run.ID,
			PolicyName:   "ec2-stale-dev",
			ResourceType: "ec2",
			Status:       PolicyStatusSucceeded,
			Matched:      5,
			Actions:      2,
			DurationMS:   120,
			StartedAt:    now,
			CreatedAt:    now,
		},
	}

	for _, result := range results {
		if err := store.SavePolicyResult(ctx, result); err != nil {
			t.Fatalf("failed to save policy result: %v", err)
		}
	}

	// List by run, expect start order
	listed, err := store.ListPolicyResults(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to list policy results: %v", err)
	}

	if len(listed) != 2 {
		t.Fatalf("expected 2 policy results, got %d", len(listed))
	}
	if listed[0].PolicyName != "ec2-stale-dev" {
		t.Errorf("expected ec2-stale-dev first, got %s", listed[0].PolicyName)
	}
	if listed[0].Matched != 5 {
		t.Errorf("expected Matched 5, got %d", listed[0].Matched)
	}
	if listed[0].Actions != 2 {
		t.Errorf("expected Actions 2, got %d", listed[0].Actions)
	}
	if listed[1].Status != PolicyStatusFailed {
		t.Errorf("expected Status %s, got %s", PolicyStatusFailed, listed[1].Status)
	}

	// Unknown run yields an empty list
	empty, err := store.ListPolicyResults(ctx, "run-ghost")
	if err != nil {
		t.Fatalf("failed to list policy results for unknown run: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected 0 policy results, got %d", len(empty))
	}
}

// TestViolationOperations tests Violation operations
func TestViolationOperations(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()
	run := saveTestRun(t, store, "run-003", now)

	violations := []*Violation{
		{
			RunID:        &run.ID,
			Policy:       "ec2-stale-dev",
			Keyword:      "anyOf",
			SchemaPath:   "/properties/policies/items/anyOf",
			InstancePath: "/policies/0",
			Message:      "doesn't validate with any schema",
			Timestamp:    now,
		},
		{
			RunID:        &run.ID,
			Policy:       "bucket-tags",
			Keyword:      "enum",
			SchemaPath:   "/definitions/resources/s3/policy/allOf/1/properties/actions/items/anyOf/2/enum",
			InstancePath: "/policies/1/actions/0",
			Message:      "value must be one of the listed names",
			Timestamp:    now.Add(1 * time.Second),
		},
		{
			Policy:       "rds-retention",
			Keyword:      "minimum",
			SchemaPath:   "/definitions/resources/rds/actions/retention/properties/days/minimum",
			InstancePath: "/policies/0/actions/0/days",
			Message:      "must be >= 0",
			Timestamp:    now.Add(2 * time.Second),
		},
	}

	for _, violation := range violations {
		if err := store.SaveViolation(ctx, violation); err != nil {
			t.Fatalf("failed to save violation: %v", err)
		}
		if violation.ID == 0 {
			t.Error("expected violation ID to be set after insert")
		}
	}

	// Get all violations
	retrieved, err := store.ListViolations(ctx, nil, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list violations: %v", err)
	}

	if len(retrieved) != 3 {
		t.Errorf("expected 3 violations, got %d", len(retrieved))
	}

	// Filter by run
	filtered, err := store.ListViolations(ctx, &run.ID, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list run violations: %v", err)
	}

	if len(filtered) != 2 {
		t.Errorf("expected 2 run violations, got %d", len(filtered))
	}

	// Filter by policy
	policy := "rds-retention"
	policyFiltered, err := store.ListViolations(ctx, nil, &policy, 10, 0)
	if err != nil {
		t.Fatalf("failed to list policy violations: %v", err)
	}

	if len(policyFiltered) != 1 {
		t.Fatalf("expected 1 policy violation, got %d", len(policyFiltered))
	}
	if policyFiltered[0].Keyword != "minimum" {
		t.Errorf("expected keyword minimum, got %s", policyFiltered[0].Keyword)
	}
	if policyFiltered[0].RunID != nil {
		t.Errorf("expected nil RunID, got %v", *policyFiltered[0].RunID)
	}
}

// TestPolicyMetrics tests policy result aggregation over a time window
func TestPolicyMetrics(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	run := saveTestRun(t, store, "run-004", base)

	results := []*PolicyResult{
		{
			ID: "pm-001", RunID: run.ID, PolicyName: "ec2-stale-dev", ResourceType: "ec2",
			Status: PolicyStatusSucceeded, Matched: 5, Actions: 2, DurationMS: 100,
			StartedAt: base, CreatedAt: base,
		},
		{
			ID: "pm-002", RunID: run.ID, PolicyName: "ec2-stale-dev", ResourceType: "ec2",
			Status: PolicyStatusFailed, Matched: 0, Actions: 0, DurationMS: 50,
			StartedAt: base.Add(1 * time.Hour), CreatedAt: base.Add(1 * time.Hour),
		},
		{
			ID: "pm-003", RunID: run.ID, PolicyName: "s3-encrypt", ResourceType: "s3",
			Status: PolicyStatusSucceeded, Matched: 3, Actions: 3, DurationMS: 200,
			StartedAt: base.Add(2 * time.Hour), CreatedAt: base.Add(2 * time.Hour),
		},
		// Outside the queried window
		{
			ID: "pm-004", RunID: run.ID, PolicyName: "ec2-stale-dev", ResourceType: "ec2",
			Status: PolicyStatusSucceeded, Matched: 7, Actions: 1, DurationMS: 300,
			StartedAt: base.Add(72 * time.Hour), CreatedAt: base.Add(72 * time.Hour),
		},
	}

	for _, result := range results {
		if err := store.SavePolicyResult(ctx, result); err != nil {
			t.Fatalf("failed to save policy result: %v", err)
		}
	}

	start := base.Add(-1 * time.Minute)
	end := base.Add(24 * time.Hour)

	// Aggregate across every policy
	metrics, err := store.PolicyMetrics(ctx, "", start, end)
	if err != nil {
		t.Fatalf("failed to aggregate policy metrics: %v", err)
	}

	if len(metrics) != 2 {
		t.Fatalf("expected 2 aggregated policies, got %d", len(metrics))
	}

	ec2 := metrics[0]
	if ec2.PolicyName != "ec2-stale-dev" {
		t.Fatalf("expected ec2-stale-dev first, got %s", ec2.PolicyName)
	}
	if ec2.Runs != 2 {
		t.Errorf("expected 2 runs, got %d", ec2.Runs)
	}
	if ec2.Succeeded != 1 || ec2.Failed != 1 || ec2.Skipped != 0 {
		t.Errorf("expected 1/1/0 succeeded/failed/skipped, got %d/%d/%d",
			ec2.Succeeded, ec2.Failed, ec2.Skipped)
	}
	if ec2.TotalMatched != 5 {
		t.Errorf("expected TotalMatched 5, got %d", ec2.TotalMatched)
	}
	if ec2.TotalActions != 2 {
		t.Errorf("expected TotalActions 2, got %d", ec2.TotalActions)
	}
	if ec2.AvgDurationMS != 75 {
		t.Errorf("expected AvgDurationMS 75, got %v", ec2.AvgDurationMS)
	}

	s3 := metrics[1]
	if s3.PolicyName != "s3-encrypt" {
		t.Fatalf("expected s3-encrypt second, got %s", s3.PolicyName)
	}
	if s3.Runs != 1 || s3.TotalMatched != 3 {
		t.Errorf("expected 1 run with 3 matched, got %d/%d", s3.Runs, s3.TotalMatched)
	}

	// Aggregate one policy by exact name
	named, err := store.PolicyMetrics(ctx, "s3-encrypt", start, end)
	if err != nil {
		t.Fatalf("failed to aggregate named policy metrics: %v", err)
	}

	if len(named) != 1 {
		t.Fatalf("expected 1 aggregated policy, got %d", len(named))
	}
	if named[0].PolicyName != "s3-encrypt" {
		t.Errorf("expected s3-encrypt, got %s", named[0].PolicyName)
	}

	// Empty window
	empty, err := store.PolicyMetrics(ctx, "", base.Add(-48*time.Hour), base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("failed to aggregate empty window: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected 0 aggregated policies, got %d", len(empty))
	}
}

// TestTransactions tests transaction support
func TestTransactions(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	// Begin transaction
	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}

	query := `
		INSERT INTO runs (id, mode, status, policy_count, started_at, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query, "run-tx-001", "pull", "pending", 0, now, "{}", now, now)
	if err != nil {
		store.RollbackTx(tx)
		t.Fatalf("failed to insert run in transaction: %v", err)
	}

	// Rollback
	if err := store.RollbackTx(tx); err != nil {
		t.Fatalf("failed to rollback transaction: %v", err)
	}

	// Verify run was not created
	_, err = store.GetRun(ctx, "run-tx-001")
	if err == nil {
		t.Error("expected error when getting rolled back run")
	}

	// Begin new transaction and commit
	tx, err = store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("failed to begin second transaction: %v", err)
	}

	_, err = tx.ExecContext(ctx, query, "run-tx-001", "pull", "pending", 0, now, "{}", now, now)
	if err != nil {
		store.RollbackTx(tx)
		t.Fatalf("failed to insert run in second transaction: %v", err)
	}

	if err := store.CommitTx(tx); err != nil {
		t.Fatalf("failed to commit transaction: %v", err)
	}

	// Verify run was created
	retrieved, err := store.GetRun(ctx, "run-tx-001")
	if err != nil {
		t.Fatalf("failed to get committed run: %v", err)
	}

	if retrieved.ID != "run-tx-001" {
		t.Errorf("expected ID run-tx-001, got %s", retrieved.ID)
	}
}

// TestCascadeDelete tests foreign key cascading
func TestCascadeDelete(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()
	run := saveTestRun(t, store, "run-cascade-001", now)

	// Create policy result
	result := &PolicyResult{
		ID:           "pr-cascade-001",
		RunID:        run.ID,
		PolicyName:   "ec2-stale-dev",
		ResourceType: "ec2",
		Status:       PolicyStatusSucceeded,
		StartedAt:    now,
		CreatedAt:    now,
	}
	if err := store.SavePolicyResult(ctx, result); err != nil {
		t.Fatalf("failed to save policy result: %v", err)
	}

	// Create violation
	violation := &Violation{
		RunID:        &run.ID,
		Policy:       "ec2-stale-dev",
		Keyword:      "required",
		SchemaPath:   "/definitions/policy/required",
		InstancePath: "/policies/0",
		Message:      "missing properties: 'resource'",
		Timestamp:    now,
	}
	if err := store.SaveViolation(ctx, violation); err != nil {
		t.Fatalf("failed to save violation: %v", err)
	}

	// Delete run (should cascade to policy_results and violations)
	if err := store.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("failed to delete run: %v", err)
	}

	// Verify policy results were deleted
	results, err := store.ListPolicyResults(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to list policy results: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected 0 policy results after cascade delete, got %d", len(results))
	}

	// Verify violations were deleted
	violations, err := store.ListViolations(ctx, &run.ID, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list violations: %v", err)
	}
	if len(violations) != 0 {
		t.Errorf("expected 0 violations after cascade delete, got %d", len(violations))
	}
}

// TestMain sets up and tears down test environment
func TestMain(m *testing.M) {
	// Run tests
	code := m.Run()

	// Exit
	os.Exit(code)
}
