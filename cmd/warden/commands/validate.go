package commands

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cloudwarden/cloudwarden/pkg/policy"
	"github.com/cloudwarden/cloudwarden/pkg/resource"
	"github.com/cloudwarden/cloudwarden/pkg/schema"
)

func newValidateCommand() *cobra.Command {
	var legacyConfig string

	cmd := &cobra.Command{
		Use:   "validate CONFIG [CONFIG...]",
		Short: "Validate policy configuration files",
		Long: `Validate policy configuration files against the composed schema.

Violations are narrowed to the failing policy entry before they are
reported, so a bad filter surfaces as one error at the offending line
instead of every alternative the schema knows. Policy names share one
namespace across all files validated together.`,
		Example: `  # Validate one file
  warden validate policies.yml

  # Validate several files as one namespace
  warden validate base.yml prod.yml`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configs := append([]string(nil), args...)
			if legacyConfig != "" {
				configs = append(configs, legacyConfig)
			}
			if len(configs) == 0 {
				return usageErrorf("no config files specified")
			}
			return runValidate(cmd.Context(), configs)
		},
	}

	cmd.Flags().StringVarP(&legacyConfig, "config", "c", "", "policy config file (legacy; pass configs as arguments)")

	return cmd
}

// runValidate validates each config file and reports per-file outcomes.
func runValidate(ctx context.Context, configs []string) error {
	reports, err := validateFiles(ctx, resource.Builtin(), configs)
	if err != nil {
		return err
	}

	invalid := 0
	for _, r := range reports {
		if len(r.Violations) == 0 {
			log.Info().Str("config", r.Path).Msg("Configuration valid")
			continue
		}
		invalid++
		log.Error().Str("config", r.Path).Msg("Configuration invalid")
		for i := range r.Violations {
			v := &r.Violations[i]
			log.Error().
				Str("policy", v.Policy).
				Str("path", v.InstancePath).
				Msg(v.Message)
		}
	}

	if invalid > 0 {
		return invalidErrorf("%d of %d config files invalid", invalid, len(reports))
	}
	return nil
}

// fileReport is the validation outcome for one config file.
type fileReport struct {
	Path       string
	Violations []schema.Violation
}

// validateFiles checks the config files against the schema composed
// from source. Violations come back specialized. Policy names share one
// namespace across the whole call, so a name reused in a later file is
// a duplicate even when both files are individually well formed.
func validateFiles(ctx context.Context, source schema.Source, configs []string) ([]fileReport, error) {
	doc := schema.NewBuilder(source, log.Logger).Build()
	if err := doc.Compile(); err != nil {
		return nil, fmt.Errorf("schema failed self-check: %w", err)
	}

	loader := policy.NewLoader(log.Logger)
	used := make(map[string]bool)
	reports := make([]fileReport, 0, len(configs))

	for _, path := range configs {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("invalid path for config %q: %w", path, err)
		}
		file, err := loader.LoadFile(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config %q: %w", path, err)
		}

		violations, err := doc.Validate(file.Raw)
		if err != nil {
			return nil, fmt.Errorf("failed to validate config %q: %w", path, err)
		}
		for i := range violations {
			violations[i] = *doc.Specialize(&violations[i])
		}

		if dupes := claimNames(file.Raw, used); len(dupes) > 0 {
			violations = append(violations, schema.Violation{
				Policy:       dupes[0],
				Keyword:      schema.KeywordDuplicate,
				InstancePath: "/policies",
				Message: fmt.Sprintf(
					"only one policy with a given name allowed, duplicates: %s",
					strings.Join(dupes, ", ")),
			})
		}

		reports = append(reports, fileReport{Path: path, Violations: violations})
	}

	return reports, nil
}

// claimNames marks the document's policy names as taken and returns the
// names an earlier document already claimed, sorted.
func claimNames(raw map[string]interface{}, used map[string]bool) []string {
	items, _ := raw["policies"].([]interface{})
	names := make(map[string]bool)
	var dupes []string
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		name, ok := m["name"].(string)
		if !ok || name == "" {
			continue
		}
		if used[name] && !names[name] {
			dupes = append(dupes, name)
		}
		names[name] = true
	}
	for name := range names {
		used[name] = true
	}
	sort.Strings(dupes)
	return dupes
}
