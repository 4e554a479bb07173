package policy

import (
	"time"
)

// Status represents the outcome of executing one policy within a run.
type Status string

const (
	// StatusSucceeded means the policy executed without error.
	StatusSucceeded Status = "succeeded"

	// StatusFailed means the policy aborted with an error.
	StatusFailed Status = "failed"

	// StatusSkipped means the policy was not executable in this run,
	// for example because its mode requires provisioned execution.
	StatusSkipped Status = "skipped"
)

// Run status values reported on a RunResult.
const (
	// RunCompleted means every policy in the run succeeded or was
	// skipped.
	RunCompleted = "completed"

	// RunFailed means at least one policy in the run failed.
	RunFailed = "failed"
)

// Policy is one policy declaration from a configuration file. The
// typed fields mirror the shared policy envelope of the composed
// schema; Raw retains the original document fragment for validation.
type Policy struct {
	// Name is the unique name of the policy within a run.
	Name string `yaml:"name" json:"name"`

	// Resource is the resource type the policy targets.
	Resource string `yaml:"resource" json:"resource"`

	// Region restricts the policy to one region.
	Region string `yaml:"region,omitempty" json:"region,omitempty"`

	// Description provides a human-readable description.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Comment is a free-form annotation. Comments is its historical
	// spelling; both survive round-trips unchanged.
	Comment  string `yaml:"comment,omitempty" json:"comment,omitempty"`
	Comments string `yaml:"comments,omitempty" json:"comments,omitempty"`

	// Tags are labels for organizing policies.
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	// MaxResources aborts the policy when it matches more resources
	// than this. Zero means unlimited.
	MaxResources int `yaml:"max-resources,omitempty" json:"max-resources,omitempty"`

	// Mode declares how the policy executes. An absent mode means a
	// pull-mode policy driven by a local run.
	Mode map[string]interface{} `yaml:"mode,omitempty" json:"mode,omitempty"`

	// Filters narrow the matched resource set. Entries are either a
	// capability name, a typed mapping, or a bare key/value shorthand.
	Filters []interface{} `yaml:"filters,omitempty" json:"filters,omitempty"`

	// Actions apply to the matched resource set. Entries are either a
	// capability name or a typed mapping.
	Actions []interface{} `yaml:"actions,omitempty" json:"actions,omitempty"`

	// Query holds provider-side query clauses, one single-key mapping
	// per entry.
	Query []map[string]interface{} `yaml:"query,omitempty" json:"query,omitempty"`

	// Raw is the policy exactly as parsed from its file, before typed
	// decoding. Schema validation runs against this form.
	Raw map[string]interface{} `yaml:"-" json:"-"`
}

// ModeType returns the declared mode type, or "pull" when the policy
// declares no mode.
func (p *Policy) ModeType() string {
	if p.Mode == nil {
		return "pull"
	}
	if t, ok := p.Mode["type"].(string); ok && t != "" {
		return t
	}
	return "pull"
}

// File is one parsed policy configuration file.
type File struct {
	// Path is the file the document was loaded from.
	Path string `json:"path"`

	// Raw is the whole document as parsed, the form schema validation
	// consumes.
	Raw map[string]interface{} `json:"-"`

	// Policies are the typed policy declarations in document order.
	Policies []Policy `json:"policies"`
}

// Names returns the policy names in document order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Policies))
	for i := range f.Policies {
		names = append(names, f.Policies[i].Name)
	}
	return names
}

// PolicyResult is the outcome of executing one policy within a run.
type PolicyResult struct {
	// PolicyName is the name of the executed policy.
	PolicyName string `json:"policy_name"`

	// ResourceType is the resource type the policy targeted.
	ResourceType string `json:"resource_type"`

	// Status is the execution outcome.
	Status Status `json:"status"`

	// Matched is the number of resources the policy matched.
	Matched int `json:"matched"`

	// Actions is the number of actions that would apply to the matched
	// set. A dry run plans actions without taking them.
	Actions int `json:"actions"`

	// Duration is how long the policy took to execute.
	Duration time.Duration `json:"duration"`

	// Error describes why the policy failed or was skipped.
	Error string `json:"error,omitempty"`

	// StartedAt is when the policy began executing.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the policy finished.
	CompletedAt time.Time `json:"completed_at"`
}

// RunResult is the outcome of executing a policy collection.
type RunResult struct {
	// RunID is the unique identifier of the run.
	RunID string `json:"run_id"`

	// Mode is the run mode, "pull" or "dry-run".
	Mode string `json:"mode"`

	// Status is RunCompleted or RunFailed.
	Status string `json:"status"`

	// PolicyCount is the number of policies the run executed.
	PolicyCount int `json:"policy_count"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the run finished.
	CompletedAt time.Time `json:"completed_at"`

	// Results holds one entry per executed policy, in collection
	// order.
	Results []PolicyResult `json:"results"`
}

// Failed returns the number of policies that failed in the run.
func (r *RunResult) Failed() int {
	n := 0
	for i := range r.Results {
		if r.Results[i].Status == StatusFailed {
			n++
		}
	}
	return n
}

// Succeeded returns the number of policies that succeeded in the run.
func (r *RunResult) Succeeded() int {
	n := 0
	for i := range r.Results {
		if r.Results[i].Status == StatusSucceeded {
			n++
		}
	}
	return n
}
