package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/cloudwarden/cloudwarden/pkg/stores"
)

func newMetricsCommand() *cobra.Command {
	var (
		startStr   string
		endStr     string
		days       int
		policyGlob string
	)

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Aggregate per-policy execution metrics",
		Long: `Aggregate recorded policy results over a time window.

The window is the last --days days, or an explicit --start/--end pair
in RFC 3339 format. --start and --end must be given together.`,
		Example: `  # Metrics for the last 14 days
  warden metrics

  # Metrics for one week, ec2 policies only
  warden metrics -p "ec2-*" \
    --start 2026-08-01T00:00:00Z --end 2026-08-08T00:00:00Z`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMetrics(cmd.Context(), startStr, endStr, days, policyGlob, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&startStr, "start", "", "window start (RFC 3339)")
	cmd.Flags().StringVar(&endStr, "end", "", "window end (RFC 3339)")
	cmd.Flags().IntVar(&days, "days", 14, "window length in days, counting back from now")
	cmd.Flags().StringVarP(&policyGlob, "policies", "p", "", "only aggregate policies matching this name glob")

	return cmd
}

func runMetrics(ctx context.Context, startStr, endStr string, days int, policyGlob string, w io.Writer) error {
	if (startStr == "") != (endStr == "") {
		return usageErrorf("--start and --end must be specified together")
	}

	var start, end time.Time
	if startStr != "" {
		var err error
		start, err = time.Parse(time.RFC3339, startStr)
		if err != nil {
			return usageErrorf("invalid --start %q: %v", startStr, err)
		}
		end, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			return usageErrorf("invalid --end %q: %v", endStr, err)
		}
	} else {
		end = time.Now().UTC()
		start = end.AddDate(0, 0, -days)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	metrics, err := store.PolicyMetrics(ctx, "", start, end)
	if err != nil {
		return err
	}
	if policyGlob != "" {
		metrics, err = filterMetrics(metrics, policyGlob)
		if err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(metricsByPolicy(metrics), "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// filterMetrics narrows metric rows by a policy name glob.
func filterMetrics(metrics []*stores.PolicyMetrics, pattern string) ([]*stores.PolicyMetrics, error) {
	matched := []*stores.PolicyMetrics{}
	for _, m := range metrics {
		ok, err := doublestar.Match(pattern, m.PolicyName)
		if err != nil {
			return nil, usageErrorf("invalid policy filter %q: %v", pattern, err)
		}
		if ok {
			matched = append(matched, m)
		}
	}
	return matched, nil
}

// metricsByPolicy keys the metric rows by policy name, the shape
// downstream reports consume.
func metricsByPolicy(metrics []*stores.PolicyMetrics) map[string]*stores.PolicyMetrics {
	out := make(map[string]*stores.PolicyMetrics, len(metrics))
	for _, m := range metrics {
		out[m.PolicyName] = m
	}
	return out
}
