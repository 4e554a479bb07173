package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/cloudwarden/cloudwarden/pkg/resource"
	"github.com/cloudwarden/cloudwarden/pkg/schema"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

func writeConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func singlePolicy(name string) string {
	return fmt.Sprintf("policies:\n  - name: %s\n    resource: ec2\n", name)
}

func TestValidateFilesValid(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "ok.yml", singlePolicy("keep-tagged"))

	reports, err := validateFiles(context.Background(), resource.Builtin(), []string{path})
	if err != nil {
		t.Fatalf("validateFiles: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(reports))
	}
	if len(reports[0].Violations) != 0 {
		t.Fatalf("expected no violations, got %+v", reports[0].Violations)
	}
}

func TestValidateFilesDuplicateAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	first := writeConfigFile(t, dir, "first.yml", singlePolicy("foo"))
	second := writeConfigFile(t, dir, "second.yml", singlePolicy("foo"))

	reports, err := validateFiles(context.Background(), resource.Builtin(), []string{first, second})
	if err != nil {
		t.Fatalf("validateFiles: %v", err)
	}
	if len(reports[0].Violations) != 0 {
		t.Fatalf("first file should be clean, got %+v", reports[0].Violations)
	}

	var dupes []schema.Violation
	for _, v := range reports[1].Violations {
		if v.Keyword == schema.KeywordDuplicate {
			dupes = append(dupes, v)
		}
	}
	if len(dupes) != 1 {
		t.Fatalf("expected exactly one duplicate violation, got %d: %+v",
			len(dupes), reports[1].Violations)
	}
	if !strings.Contains(dupes[0].Message, "foo") {
		t.Fatalf("duplicate message should name the policy: %s", dupes[0].Message)
	}
}

func TestValidateFilesSpecializesViolation(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "bad.yml", `policies:
  - name: bad-action
    resource: s3
    actions:
      - untag
`)

	reports, err := validateFiles(context.Background(), resource.Builtin(), []string{path})
	if err != nil {
		t.Fatalf("validateFiles: %v", err)
	}
	if len(reports[0].Violations) == 0 {
		t.Fatal("expected violations for unknown action")
	}
	v := reports[0].Violations[0]
	if v.Policy != "bad-action" {
		t.Errorf("violation should name the policy, got %q", v.Policy)
	}
	if !strings.HasPrefix(v.InstancePath, "/policies/0/actions") {
		t.Errorf("violation should point into the failing entry, got %q", v.InstancePath)
	}
}

func TestValidateFilesMissingPath(t *testing.T) {
	_, err := validateFiles(context.Background(), resource.Builtin(),
		[]string{"/nonexistent/policies.yml"})
	if err == nil {
		t.Fatal("expected error for missing config path")
	}
	if !strings.Contains(err.Error(), "invalid path for config") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunValidateInvalidExitCode(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "bad.yml", `policies:
  - name: Bad_Name
    resource: ec2
`)

	err := runValidate(context.Background(), []string{path})
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.Code != exitInvalid {
		t.Fatalf("expected exit code %d, got %d", exitInvalid, exitErr.Code)
	}
}

func TestValidateCommandNoConfigs(t *testing.T) {
	cmd := newValidateCommand()
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.Code != exitUsage {
		t.Fatalf("expected exit code %d, got %d", exitUsage, exitErr.Code)
	}
}

func TestValidateCommandLegacyConfigFlag(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "ok.yml", singlePolicy("keep-tagged"))

	cmd := newValidateCommand()
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"-c", path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("legacy -c should validate the file: %v", err)
	}
}
