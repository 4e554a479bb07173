package schema

import (
	"strings"
	"testing"
)

// cleanDocument exercises object filters, the boolean combinators, the
// key=value and bare-name shortcuts, an execution mode and vars.
func cleanDocument() map[string]any {
	return map[string]any{
		"vars": map[string]any{"owner": "platform"},
		"policies": []any{
			map[string]any{
				"name":     "app-tag-hygiene",
				"resource": "app",
				"filters": []any{
					map[string]any{"type": "health", "status": "failed"},
					map[string]any{"and": []any{
						map[string]any{"type": "value", "key": "region", "value": "us-east-1"},
						map[string]any{"env": "prod"},
					}},
					"health",
				},
				"actions": []any{
					map[string]any{"type": "tag", "key": "owner", "value": "platform"},
					"stop",
				},
			},
			map[string]any{
				"name":     "db-periodic-clean",
				"resource": "db",
				"mode":     map[string]any{"type": "periodic"},
				"actions":  []any{"delete"},
			},
		},
	}
}

func TestValidateCleanDocument(t *testing.T) {
	doc := buildFixture(t)
	violations, err := doc.Validate(cleanDocument())
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("Expected no violations, got %v", violations)
	}
}

func TestValidateEmptyPolicies(t *testing.T) {
	doc := buildFixture(t)
	violations, err := doc.Validate(map[string]any{"policies": []any{}})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("Expected an empty policies list to validate, got %v", violations)
	}
}

func TestValidateMissingPolicies(t *testing.T) {
	doc := buildFixture(t)
	violations, err := doc.Validate(map[string]any{})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("Expected 1 violation, got %v", violations)
	}
	if violations[0].Keyword != "required" {
		t.Errorf("Expected required violation, got %q", violations[0].Keyword)
	}
	if violations[0].Policy != "unknown" {
		t.Errorf("Expected unknown policy attribution, got %q", violations[0].Policy)
	}
}

func TestValidateTopLevelAdditionalProperty(t *testing.T) {
	doc := buildFixture(t)
	violations, err := doc.Validate(map[string]any{
		"policies": []any{},
		"plocies":  []any{},
	})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(violations) != 1 || violations[0].Keyword != "additionalProperties" {
		t.Fatalf("Expected additionalProperties violation, got %v", violations)
	}
}

func TestValidateDuplicateNames(t *testing.T) {
	doc := buildFixture(t)

	tests := []struct {
		name     string
		policies []any
		want     string
	}{
		{
			name: "single duplicate",
			policies: []any{
				map[string]any{"name": "foo", "resource": "app"},
				map[string]any{"name": "foo", "resource": "db"},
			},
			want: "only one policy with a given name allowed, duplicates: foo",
		},
		{
			name: "multiple duplicates sorted",
			policies: []any{
				map[string]any{"name": "foo", "resource": "app"},
				map[string]any{"name": "bar", "resource": "db"},
				map[string]any{"name": "foo", "resource": "db"},
				map[string]any{"name": "bar", "resource": "app"},
			},
			want: "only one policy with a given name allowed, duplicates: bar, foo",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations, err := doc.Validate(map[string]any{"policies": tt.policies})
			if err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if len(violations) != 1 {
				t.Fatalf("Expected exactly 1 violation, got %v", violations)
			}
			v := violations[0]
			if v.Keyword != KeywordDuplicate {
				t.Errorf("Expected duplicate keyword, got %q", v.Keyword)
			}
			if v.Message != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, v.Message)
			}
			if v.Policy != "bar" && v.Policy != "foo" {
				t.Errorf("Expected duplicate name attribution, got %q", v.Policy)
			}
		})
	}
}

func TestValidateStructureBeforeDuplicates(t *testing.T) {
	doc := buildFixture(t)
	violations, err := doc.Validate(map[string]any{
		"policies": []any{
			map[string]any{"name": "foo", "resource": "app"},
			map[string]any{"name": "foo"}, // duplicate and missing resource
		},
	})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(violations) == 0 {
		t.Fatal("Expected structural violations")
	}
	for _, v := range violations {
		if v.Keyword == KeywordDuplicate {
			t.Error("Duplicate check must not run on structurally broken documents")
		}
	}
}

func TestValidateBrokenPoliciesInOrder(t *testing.T) {
	doc := buildFixture(t)
	violations, err := doc.Validate(map[string]any{
		"policies": []any{
			map[string]any{"name": "first"},
			map[string]any{"name": "second"},
		},
	})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(violations) != 2 {
		t.Fatalf("Expected one violation per broken policy, got %v", violations)
	}
	if violations[0].InstancePath != "/policies/0" || violations[1].InstancePath != "/policies/1" {
		t.Errorf("Violations out of order: %q, %q",
			violations[0].InstancePath, violations[1].InstancePath)
	}
	if violations[0].Policy != "first" || violations[1].Policy != "second" {
		t.Errorf("Unexpected policy attribution: %q, %q",
			violations[0].Policy, violations[1].Policy)
	}
}

func TestValidateUnserializableInput(t *testing.T) {
	doc := buildFixture(t)
	if _, err := doc.Validate(map[string]any{"policies": func() {}}); err == nil {
		t.Fatal("Expected an error for unserializable input")
	}
}

func TestValidatePackageLevel(t *testing.T) {
	violations, err := Validate(cleanDocument(), newFixtureSource())
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("Expected no violations, got %v", violations)
	}
}

func TestViolationError(t *testing.T) {
	v := &Violation{InstancePath: "/policies/0", Message: "missing properties 'resource'"}
	if got := v.Error(); !strings.Contains(got, "/policies/0") ||
		!strings.Contains(got, "missing properties") {
		t.Errorf("Unexpected error string: %q", got)
	}
	bare := &Violation{Message: "top-level failure"}
	if got := bare.Error(); got != "top-level failure" {
		t.Errorf("Unexpected error string: %q", got)
	}
}
