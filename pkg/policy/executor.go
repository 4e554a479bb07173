package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cloudwarden/cloudwarden/pkg/schema"
	"github.com/cloudwarden/cloudwarden/pkg/stores"
	"github.com/cloudwarden/cloudwarden/pkg/telemetry"
)

// Resource is one resource description returned by a provider. The
// executor treats resources as opaque documents; filters and actions
// give them meaning.
type Resource map[string]interface{}

// ResourceProvider supplies resource descriptions for policy
// execution. Real cloud providers live outside this module; the
// in-tree implementation is DryRunProvider.
type ResourceProvider interface {
	// Name identifies the provider in logs, metrics and traces.
	Name() string

	// Resources returns the resources of the given type, narrowed by
	// the policy's query clauses.
	Resources(ctx context.Context, resourceType string, query []map[string]interface{}) ([]Resource, error)
}

// DryRunProvider is a ResourceProvider backed by seeded fixtures. It
// never reaches a cloud API, which makes it the provider of choice for
// dry runs and tests.
type DryRunProvider struct {
	mu       sync.RWMutex
	fixtures map[string][]Resource
}

// NewDryRunProvider creates an empty dry-run provider.
func NewDryRunProvider() *DryRunProvider {
	return &DryRunProvider{fixtures: make(map[string][]Resource)}
}

// Name returns the provider name.
func (p *DryRunProvider) Name() string { return "dry-run" }

// Seed registers the resources returned for a resource type.
func (p *DryRunProvider) Seed(resourceType string, resources []Resource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fixtures[resourceType] = resources
}

// Resources returns the seeded resources for the type. Query clauses
// are accepted but not interpreted; a dry run reports what the
// provider holds.
func (p *DryRunProvider) Resources(ctx context.Context, resourceType string, query []map[string]interface{}) ([]Resource, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	resources := p.fixtures[resourceType]
	out := make([]Resource, len(resources))
	copy(out, resources)
	return out, nil
}

// RunOptions configure a policy run.
type RunOptions struct {
	// DryRun marks the run as a rehearsal. The run mode is recorded as
	// "dry-run" instead of "pull".
	DryRun bool

	// OutputDir receives per-run artifacts when set.
	OutputDir string
}

// Executor runs a policy collection and reports the outcome.
type Executor interface {
	Execute(ctx context.Context, collection *Collection, opts RunOptions) (*RunResult, error)
}

// ValidationError reports schema violations found before a run starts.
type ValidationError struct {
	// Violations are the specialized schema violations, in document
	// order.
	Violations []schema.Violation
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		return fmt.Sprintf("policy validation failed: %s", e.Violations[0].Error())
	}
	return fmt.Sprintf("policy validation failed: %d violations", len(e.Violations))
}

// DryRunExecutor validates a collection against the composed schema,
// resolves every referenced capability, and executes each policy
// against a ResourceProvider without taking actions. One policy
// failing does not abort the run; the failure is recorded and the run
// continues.
type DryRunExecutor struct {
	source   schema.Source
	doc      *schema.Document
	provider ResourceProvider
	store    stores.Store
	tel      *telemetry.Telemetry
	logger   zerolog.Logger
}

// NewDryRunExecutor creates an executor over the given capability
// source. The store receives the run record, per-policy results and
// any validation violations; telemetry may be nil.
func NewDryRunExecutor(logger zerolog.Logger, source schema.Source, provider ResourceProvider, store stores.Store, tel *telemetry.Telemetry) *DryRunExecutor {
	return &DryRunExecutor{
		source:   source,
		doc:      schema.NewBuilder(source, logger).Build(),
		provider: provider,
		store:    store,
		tel:      tel,
		logger:   logger.With().Str("component", "executor").Logger(),
	}
}

// Execute runs the collection. The error return is reserved for
// validation failures and infrastructure errors; policy failures are
// reported through the RunResult.
func (e *DryRunExecutor) Execute(ctx context.Context, collection *Collection, opts RunOptions) (*RunResult, error) {
	policies := collection.Policies()
	if len(policies) == 0 {
		return nil, fmt.Errorf("no policies to execute")
	}

	if e.tel != nil {
		ctx = e.tel.WithContext(ctx)
	}

	if err := e.validate(ctx, policies); err != nil {
		return nil, err
	}

	mode := "pull"
	if opts.DryRun {
		mode = "dry-run"
	}

	runID := uuid.New().String()
	startedAt := time.Now().UTC()

	runCtx := telemetry.WithRunContext(ctx, runID, mode, len(policies))

	run := &stores.Run{
		ID:          runID,
		Mode:        mode,
		Status:      stores.RunStatusRunning,
		PolicyCount: len(policies),
		StartedAt:   startedAt,
		Metadata:    "{}",
	}
	if err := e.store.SaveRun(runCtx, run); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	result := &RunResult{
		RunID:       runID,
		Mode:        mode,
		PolicyCount: len(policies),
		StartedAt:   startedAt,
	}

	for i := range policies {
		pr := e.executePolicy(runCtx, runID, &policies[i])
		result.Results = append(result.Results, pr)

		if err := e.savePolicyResult(runCtx, runID, &pr); err != nil {
			e.logger.Error().Err(err).
				Str("policy", pr.PolicyName).
				Msg("Failed to record policy result")
		}
	}

	status := stores.RunStatusCompleted
	result.Status = RunCompleted
	var runErr error
	var errMsg *string
	if failed := result.Failed(); failed > 0 {
		status = stores.RunStatusFailed
		result.Status = RunFailed
		runErr = fmt.Errorf("%d of %d policies failed", failed, len(policies))
		msg := runErr.Error()
		errMsg = &msg
	}
	result.CompletedAt = time.Now().UTC()

	if err := e.store.UpdateRunStatus(runCtx, runID, status, errMsg); err != nil {
		e.logger.Error().Err(err).
			Str("run_id", runID).
			Msg("Failed to record run status")
	}

	// The artifact is reporting output; a write failure does not fail
	// the run itself.
	if opts.OutputDir != "" {
		if err := writeRunArtifact(opts.OutputDir, result); err != nil {
			e.logger.Error().Err(err).
				Str("run_id", runID).
				Str("dir", opts.OutputDir).
				Msg("Failed to write run artifact")
		}
	}

	telemetry.EndRunContext(runCtx, runID, result.Status, runErr)

	return result, nil
}

// writeRunArtifact records the run result as JSON under dir, one file
// per run named by the run id.
func writeRunArtifact(dir string, result *RunResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, result.RunID+".json"), data, 0o644)
}

// validate checks the collection against the composed schema. Every
// violation is specialized, recorded and published before the error
// returns, so a failed run leaves a full account behind.
func (e *DryRunExecutor) validate(ctx context.Context, policies []Policy) error {
	doc, err := documentOf(policies)
	if err != nil {
		return err
	}

	violations, err := e.doc.Validate(doc)
	if err != nil {
		return fmt.Errorf("failed to validate policies: %w", err)
	}

	if e.tel != nil {
		e.tel.Metrics.RecordValidation(len(violations) == 0)
	}
	if len(violations) == 0 {
		return nil
	}

	specialized := make([]schema.Violation, 0, len(violations))
	for i := range violations {
		v := e.doc.Specialize(&violations[i])
		specialized = append(specialized, *v)

		e.logger.Error().
			Str("policy", v.Policy).
			Str("keyword", v.Keyword).
			Str("path", v.InstancePath).
			Msg(v.Message)

		if e.tel != nil {
			e.tel.Metrics.RecordViolations(v.Keyword, 1)
			_ = e.tel.Events.PublishPolicyViolation(v.Policy, v.InstancePath, v.Message)
		}

		record := &stores.Violation{
			Policy:       v.Policy,
			Keyword:      v.Keyword,
			SchemaPath:   v.SchemaPath,
			InstancePath: v.InstancePath,
			Message:      v.Message,
			Timestamp:    time.Now().UTC(),
		}
		if err := e.store.SaveViolation(ctx, record); err != nil {
			e.logger.Error().Err(err).
				Str("policy", v.Policy).
				Msg("Failed to record violation")
		}
	}

	return &ValidationError{Violations: specialized}
}

// executePolicy runs one policy and reports its result. Failures stay
// inside the result.
func (e *DryRunExecutor) executePolicy(ctx context.Context, runID string, p *Policy) PolicyResult {
	startedAt := time.Now().UTC()
	pctx := telemetry.WithPolicyContext(ctx, runID, p.Name, p.Resource)

	pr := PolicyResult{
		PolicyName:   p.Name,
		ResourceType: p.Resource,
		Status:       StatusSucceeded,
		StartedAt:    startedAt,
	}

	var execErr error

	switch {
	case p.ModeType() != "pull":
		pr.Status = StatusSkipped
		pr.Error = fmt.Sprintf("mode %q requires provisioned execution", p.ModeType())
		e.logger.Info().
			Str("policy", p.Name).
			Str("mode", p.ModeType()).
			Msg("Policy skipped")

	default:
		if err := e.resolveCapabilities(p); err != nil {
			pr.Status = StatusFailed
			pr.Error = err.Error()
			execErr = err
			break
		}

		var resources []Resource
		err := telemetry.RecordProviderOperation(pctx, e.provider.Name(), "list", func() error {
			var perr error
			resources, perr = e.provider.Resources(pctx, p.Resource, p.Query)
			return perr
		})
		if err != nil {
			pr.Status = StatusFailed
			pr.Error = err.Error()
			execErr = err
			break
		}

		pr.Matched = len(resources)
		if p.MaxResources > 0 && pr.Matched > p.MaxResources {
			pr.Status = StatusFailed
			execErr = fmt.Errorf("policy matched %d resources, max-resources is %d", pr.Matched, p.MaxResources)
			pr.Error = execErr.Error()
			break
		}
		if pr.Matched > 0 {
			pr.Actions = len(p.Actions)
		}
	}

	pr.CompletedAt = time.Now().UTC()
	pr.Duration = pr.CompletedAt.Sub(pr.StartedAt)

	telemetry.EndPolicyContext(pctx, runID, p.Name, p.Resource, string(pr.Status), pr.Matched, execErr)

	return pr
}

// resolveCapabilities checks that the policy's resource type and every
// named filter and action exist in the capability source.
func (e *DryRunExecutor) resolveCapabilities(p *Policy) error {
	types := e.source.ResourceTypes()
	i := sort.SearchStrings(types, p.Resource)
	if i >= len(types) || types[i] != p.Resource {
		return fmt.Errorf("unknown resource type: %s", p.Resource)
	}

	filters := e.source.Filters(p.Resource)
	for _, entry := range p.Filters {
		name, named := capabilityName(entry)
		if !named {
			// Bare key/value mappings are the value filter shorthand.
			continue
		}
		if _, ok := filters[name]; !ok {
			return fmt.Errorf("unknown filter %q for resource type %s", name, p.Resource)
		}
	}

	actions := e.source.Actions(p.Resource)
	for _, entry := range p.Actions {
		name, named := capabilityName(entry)
		if !named {
			return fmt.Errorf("action without a type for resource type %s", p.Resource)
		}
		if _, ok := actions[name]; !ok {
			return fmt.Errorf("unknown action %q for resource type %s", name, p.Resource)
		}
	}

	return nil
}

// capabilityName extracts the capability a filter or action entry
// names. A string entry names itself; a mapping names its type. The
// second return is false for entries that name nothing.
func capabilityName(entry interface{}) (string, bool) {
	switch v := entry.(type) {
	case string:
		return v, true
	case map[string]interface{}:
		if t, ok := v["type"].(string); ok {
			return t, true
		}
	}
	return "", false
}

// savePolicyResult persists one policy outcome under the run.
func (e *DryRunExecutor) savePolicyResult(ctx context.Context, runID string, pr *PolicyResult) error {
	record := &stores.PolicyResult{
		ID:           uuid.New().String(),
		RunID:        runID,
		PolicyName:   pr.PolicyName,
		ResourceType: pr.ResourceType,
		Status:       stores.PolicyStatus(pr.Status),
		Matched:      pr.Matched,
		Actions:      pr.Actions,
		DurationMS:   pr.Duration.Milliseconds(),
		StartedAt:    pr.StartedAt,
	}
	completed := pr.CompletedAt
	record.CompletedAt = &completed
	if pr.Error != "" {
		msg := pr.Error
		record.Error = &msg
	}
	return e.store.SavePolicyResult(ctx, record)
}

// documentOf rebuilds the validated document from the collection. The
// raw fragments parsed from files are used verbatim; policies built in
// code without a raw form are serialized through JSON.
func documentOf(policies []Policy) (map[string]interface{}, error) {
	items := make([]interface{}, 0, len(policies))
	for i := range policies {
		if policies[i].Raw != nil {
			items = append(items, policies[i].Raw)
			continue
		}
		data, err := json.Marshal(&policies[i])
		if err != nil {
			return nil, fmt.Errorf("failed to serialize policy %s: %w", policies[i].Name, err)
		}
		var m map[string]interface{}
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to serialize policy %s: %w", policies[i].Name, err)
		}
		items = append(items, m)
	}
	return map[string]interface{}{"policies": items}, nil
}
