package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cloudwarden/cloudwarden/pkg/policy"
	"github.com/cloudwarden/cloudwarden/pkg/resource"
	"github.com/cloudwarden/cloudwarden/pkg/telemetry"
)

func newRunCommand() *cobra.Command {
	var (
		policyGlob   string
		resourceType string
		dryRun       bool
		outputDir    string
	)

	cmd := &cobra.Command{
		Use:   "run [CONFIG...]",
		Short: "Execute policies and record the results",
		Long: `Execute the policies of the given config files. The files are
validated first; a run only starts on a clean document set. Each policy
executes independently, so one failing policy does not stop the others.
Results are recorded in the run store for reporting.

Without config arguments the configured policy paths are used. With
watch enabled in the config the command keeps running and re-executes
when a policy file changes.`,
		Example: `  # Dry-run all policies in a file
  warden run --dryrun policies.yml

  # Execute only s3 policies matching a name glob
  warden run -p "s3-*" -t s3 policies.yml`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), args, policyGlob, resourceType, dryRun, outputDir, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&policyGlob, "policies", "p", "", "only run policies matching this name glob")
	cmd.Flags().StringVarP(&resourceType, "resource", "t", "", "only run policies targeting this resource type")
	cmd.Flags().BoolVarP(&dryRun, "dryrun", "d", false, "plan actions without taking them")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "s", "", "directory for per-run result artifacts")

	return cmd
}

func runRun(ctx context.Context, args []string, policyGlob, resourceType string, dryRun bool, outputDir string, w io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	paths := args
	if len(paths) == 0 {
		paths = cfg.Policies.Paths
	}
	if len(paths) == 0 {
		return usageErrorf("no config files specified")
	}
	if outputDir == "" {
		outputDir = cfg.Output.Dir
	}

	tel, err := telemetry.NewTelemetry(cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()
	if cfg.Telemetry.Metrics.Enabled {
		if err := tel.StartMetricsServer(); err != nil {
			log.Warn().Err(err).Msg("Metrics server not started")
		}
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	loader := policy.NewLoader(log.Logger)
	files, err := loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return err
	}

	provider := policy.NewDryRunProvider()
	opts := policy.RunOptions{DryRun: dryRun, OutputDir: outputDir}

	// Each execution gets a fresh executor so reloads see a schema
	// rebuilt from scratch.
	execute := func(files []policy.File) error {
		collection, err := filterCollection(policy.FromFiles(files), policyGlob, resourceType)
		if err != nil {
			return err
		}
		if collection.Len() == 0 {
			log.Warn().Msg("No policies matched the filters")
			return nil
		}

		executor := policy.NewDryRunExecutor(log.Logger, resource.Builtin(), provider, store, tel)
		result, err := executor.Execute(ctx, collection, opts)
		if err != nil {
			return err
		}
		if err := printRunResult(w, result, cfg.Output.Format); err != nil {
			return err
		}
		if failed := result.Failed(); failed > 0 {
			return invalidErrorf("%d of %d policies failed", failed, result.PolicyCount)
		}
		return nil
	}

	if !cfg.Policies.Watch {
		if err := execute(files); err != nil {
			var verr *policy.ValidationError
			if errors.As(err, &verr) {
				return &ExitError{Code: exitInvalid, Err: verr}
			}
			return err
		}
		return nil
	}

	// Watch mode: run now, then re-run whenever a policy file changes,
	// until the context is cancelled.
	if err := execute(files); err != nil {
		log.Error().Err(err).Msg("Run failed")
	}
	if err := loader.Watch(ctx, paths, execute); err != nil {
		return err
	}
	<-ctx.Done()
	return loader.StopWatching()
}

// filterCollection narrows a collection by the -p and -t flags.
func filterCollection(c *policy.Collection, nameGlob, resourceType string) (*policy.Collection, error) {
	if nameGlob != "" {
		var err error
		c, err = c.FilterByName(nameGlob)
		if err != nil {
			return nil, &ExitError{Code: exitUsage, Err: err}
		}
	}
	if resourceType != "" {
		c = c.FilterByResource(resourceType)
	}
	return c, nil
}

// printRunResult renders the run outcome in the configured format.
func printRunResult(w io.Writer, result *policy.RunResult, format string) error {
	if format == "json" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POLICY\tRESOURCE\tSTATUS\tMATCHED\tACTIONS\tDURATION")
	for i := range result.Results {
		r := &result.Results[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.PolicyName, r.ResourceType, r.Status, r.Matched, r.Actions,
			r.Duration.Round(time.Millisecond))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\nrun %s: %s (%d policies, %d failed)\n",
		result.RunID, result.Status, result.PolicyCount, result.Failed())
	return err
}
