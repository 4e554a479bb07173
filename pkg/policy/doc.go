// Package policy loads, filters and executes CloudWarden policies.
//
// This package implements the policy side of schema governance: parsing
// policy configuration files, selecting policies by name or resource
// type, and running them against a resource provider with full run
// accounting.
//
// # Architecture
//
// The package consists of four main components:
//
//  1. Loader - Loads policy files from files and directories
//  2. Collection - Orders and filters loaded policies
//  3. Executor - Validates and runs a collection, recording results
//  4. Types - Data structures for policies, files, and run results
//
// # Usage
//
// Loading policies:
//
//	loader := policy.NewLoader(logger)
//	files, err := loader.LoadFromPaths(ctx, []string{"/etc/warden/policies"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Selecting policies:
//
//	collection := policy.FromFiles(files)
//	collection, err = collection.FilterByName("ec2-*")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Executing a dry run:
//
//	executor := policy.NewDryRunExecutor(logger, source, provider, store, tel)
//	result, err := executor.Execute(ctx, collection, policy.RunOptions{DryRun: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, pr := range result.Results {
//	    fmt.Printf("%s: %s (%d matched)\n", pr.PolicyName, pr.Status, pr.Matched)
//	}
//
// # Policy Files
//
// A policy file is a YAML or JSON document holding a policies sequence:
//
//	policies:
//	  - name: ec2-stale-dev
//	    resource: ec2
//	    description: Stop development instances older than 30 days
//	    filters:
//	      - "tag:env": dev
//	      - type: instance-age
//	        days: 30
//	    actions:
//	      - stop
//
// The loader keeps both forms of each policy: the typed fields for
// execution and the raw mapping for schema validation, so validation
// always sees exactly what the file said.
//
// # Validation
//
// The executor validates the whole collection against the composed
// schema before the run starts. Violations are specialized down to the
// failing alternative, recorded in the store, and returned as a
// ValidationError; no policy executes when validation fails.
//
// # Execution Model
//
// Policies execute in collection order. Each policy resolves its
// resource type and every named filter and action against the
// capability source, then asks the provider for matching resources. A
// policy whose mode requires provisioned execution (periodic or
// event-driven modes) is skipped. A failing policy is recorded and the
// run continues; the run as a whole is marked failed when any policy
// failed.
//
// # Run Accounting
//
// Every run writes a run record, one result row per policy, and any
// validation violations to the store. Telemetry spans, metrics and
// events are published per run and per policy when a telemetry
// instance is attached.
//
// # Hot Reload
//
// The loader supports watching policy paths for changes and reloading
// automatically:
//
//	loader := policy.NewLoader(logger)
//	err = loader.Watch(ctx, paths, func(files []policy.File) error {
//	    collection = policy.FromFiles(files)
//	    return nil
//	})
//
// Reloads are debounced so that editors writing multiple events per
// save trigger a single reload.
package policy
