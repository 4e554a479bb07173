package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cloudwarden/cloudwarden/pkg/resource"
	"github.com/cloudwarden/cloudwarden/pkg/schema"
)

func newSchemaCommand() *cobra.Command {
	var (
		jsonOut bool
		summary bool
	)

	cmd := &cobra.Command{
		Use:   "schema [SELECTOR]",
		Short: "Browse resource types and their capabilities",
		Long: `Browse the policy vocabulary: resource types, their filters and
actions, and per-capability documentation.

A selector drills down in the format RESOURCE.CATEGORY.ITEM:

  warden schema                      list resource types
  warden schema ec2                  filters and actions of ec2
  warden schema ec2.actions          the ec2 action names
  warden schema ec2.actions.stop     documentation for one action

--json prints the composed schema document instead; with a selector the
document is restricted to the selected resource type.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			selector := ""
			if len(args) > 0 {
				selector = args[0]
			}
			return runSchema(selector, jsonOut, summary, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the composed schema document as JSON")
	cmd.Flags().BoolVar(&summary, "summary", false, "print capability counts instead of the listing")

	return cmd
}

func runSchema(selector string, jsonOut, summary bool, w io.Writer) error {
	source := resource.Builtin()

	if jsonOut {
		return dumpSchemaJSON(source, selector, w)
	}

	vocab := schema.BuildVocabulary(source)

	if summary {
		s := vocab.Summarize()
		fmt.Fprintf(w, "resource count: %d\n", s.Resources)
		fmt.Fprintf(w, "action count: %d (common: %d)\n", s.UniqueActions, s.CommonActions)
		fmt.Fprintf(w, "filter count: %d (common: %d)\n", s.UniqueFilters, s.CommonFilters)
		return nil
	}

	if selector == "" {
		out, err := yaml.Marshal(map[string][]string{"resources": vocab.Resources()})
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	}

	described, err := vocab.Describe(selector)
	if err != nil {
		return &ExitError{Code: exitUsage, Err: err}
	}

	// Item selectors resolve to the capability's doc string.
	if doc, ok := described.(string); ok {
		if strings.TrimSpace(doc) == "" {
			fmt.Fprintln(w, "No help is available for this item.")
			return nil
		}
		fmt.Fprintln(w, doc)
		return nil
	}

	out, err := yaml.Marshal(described)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// dumpSchemaJSON prints the composed schema document, indented. A
// selector restricts the document to its resource component.
func dumpSchemaJSON(source schema.Source, selector string, w io.Writer) error {
	var types []string
	if selector != "" {
		name := strings.ToLower(strings.SplitN(selector, ".", 2)[0])
		if _, ok := schema.BuildVocabulary(source)[name]; !ok {
			return usageErrorf("%s is not a valid resource", name)
		}
		types = []string{name}
	}

	doc := schema.NewBuilder(source, log.Logger).Build(types...)
	raw, err := doc.JSON()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err = w.Write(buf.Bytes())
	return err
}
