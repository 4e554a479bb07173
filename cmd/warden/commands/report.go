package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/cloudwarden/cloudwarden/pkg/stores"
)

func newReportCommand() *cobra.Command {
	var (
		runID      string
		last       bool
		policyGlob string
		format     string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report recorded runs and per-policy results",
		Long: `Report on recorded runs. Without flags the most recent runs are
listed; --run-id or --last shows the per-policy results of one run.`,
		Example: `  # List recent runs
  warden report

  # Results of the latest run as JSON
  warden report --last --format json

  # Results of one run, filtered by policy name
  warden report --run-id 2f9f6da2-33b1-487e-9d2e-21e1fb97a35d -p "ec2-*"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context(), runID, last, policyGlob, format, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "report one run by id")
	cmd.Flags().BoolVar(&last, "last", false, "report the most recent run")
	cmd.Flags().StringVarP(&policyGlob, "policies", "p", "", "only report policies matching this name glob")
	cmd.Flags().StringVar(&format, "format", "", "output format (table|json), defaults to the configured format")

	return cmd
}

func runReport(ctx context.Context, runID string, last bool, policyGlob, format string, w io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if format == "" {
		format = cfg.Output.Format
	}
	if format != "table" && format != "json" {
		return usageErrorf("invalid format %q: valid choices are table and json", format)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if runID == "" && !last {
		runs, err := store.ListRuns(ctx, 20, 0)
		if err != nil {
			return err
		}
		return printRuns(w, runs, format)
	}

	var run *stores.Run
	if runID != "" {
		run, err = store.GetRun(ctx, runID)
	} else {
		run, err = store.LatestRun(ctx)
	}
	if err != nil {
		return err
	}

	results, err := store.ListPolicyResults(ctx, run.ID)
	if err != nil {
		return err
	}
	if policyGlob != "" {
		results, err = filterResults(results, policyGlob)
		if err != nil {
			return err
		}
	}

	return printResults(w, run, results, format)
}

// filterResults narrows policy results by a name glob.
func filterResults(results []*stores.PolicyResult, pattern string) ([]*stores.PolicyResult, error) {
	matched := []*stores.PolicyResult{}
	for _, r := range results {
		ok, err := doublestar.Match(pattern, r.PolicyName)
		if err != nil {
			return nil, usageErrorf("invalid policy filter %q: %v", pattern, err)
		}
		if ok {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

func printRuns(w io.Writer, runs []*stores.Run, format string) error {
	if format == "json" {
		data, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tMODE\tSTATUS\tPOLICIES\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.Mode, r.Status, r.PolicyCount, r.StartedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func printResults(w io.Writer, run *stores.Run, results []*stores.PolicyResult, format string) error {
	if format == "json" {
		data, err := json.MarshalIndent(map[string]interface{}{
			"run":     run,
			"results": results,
		}, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	fmt.Fprintf(w, "run %s: %s, %s, %d policies\n\n", run.ID, run.Mode, run.Status, run.PolicyCount)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POLICY\tRESOURCE\tSTATUS\tMATCHED\tACTIONS\tDURATION\tERROR")
	for _, r := range results {
		errMsg := ""
		if r.Error != nil {
			errMsg = *r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%dms\t%s\n",
			r.PolicyName, r.ResourceType, r.Status, r.Matched, r.Actions, r.DurationMS, errMsg)
	}
	return tw.Flush()
}
