package schema

import (
	"reflect"
	"strings"
	"testing"
)

func TestBuildVocabulary(t *testing.T) {
	vocab := BuildVocabulary(newFixtureSource())

	if got := vocab.Resources(); !reflect.DeepEqual(got, []string{"app", "db"}) {
		t.Fatalf("Unexpected resources: %v", got)
	}

	app := vocab["app"]
	if !reflect.DeepEqual(app.Actions, []string{"mark", "stop", "tag"}) {
		t.Errorf("Unexpected app actions: %v", app.Actions)
	}
	if !reflect.DeepEqual(app.Filters, []string{"and", "event", "health", "or", "value"}) {
		t.Errorf("Unexpected app filters: %v", app.Filters)
	}

	// Aliases share the implementation, so they share the doc.
	if app.Docs.Actions["tag"] != app.Docs.Actions["mark"] || app.Docs.Actions["tag"] == "" {
		t.Errorf("Expected tag and mark to share docs, got %q / %q",
			app.Docs.Actions["tag"], app.Docs.Actions["mark"])
	}
	if doc := vocab["db"].Docs.Actions["delete"]; doc != "" {
		t.Errorf("Expected delete to be undocumented, got %q", doc)
	}
}

func TestDescribe(t *testing.T) {
	vocab := BuildVocabulary(newFixtureSource())

	t.Run("resource", func(t *testing.T) {
		out, err := vocab.Describe("app")
		if err != nil {
			t.Fatalf("Describe failed: %v", err)
		}
		inner := out.(map[string]any)["app"].(map[string]any)
		if !reflect.DeepEqual(inner["actions"], []string{"mark", "stop", "tag"}) {
			t.Errorf("Unexpected actions: %v", inner["actions"])
		}
		if _, ok := inner["filters"]; !ok {
			t.Error("Expected filters in resource description")
		}
	})

	t.Run("category case-insensitive", func(t *testing.T) {
		out, err := vocab.Describe("APP.Actions")
		if err != nil {
			t.Fatalf("Describe failed: %v", err)
		}
		inner := out.(map[string]any)["app"].(map[string]any)
		if !reflect.DeepEqual(inner["actions"], []string{"mark", "stop", "tag"}) {
			t.Errorf("Unexpected actions: %v", inner["actions"])
		}
	})

	t.Run("item doc", func(t *testing.T) {
		out, err := vocab.Describe("app.filters.health")
		if err != nil {
			t.Fatalf("Describe failed: %v", err)
		}
		if out != "Match resources by reported health status." {
			t.Errorf("Unexpected doc: %v", out)
		}
	})

	t.Run("undocumented item", func(t *testing.T) {
		out, err := vocab.Describe("db.actions.delete")
		if err != nil {
			t.Fatalf("Describe failed: %v", err)
		}
		if out != "" {
			t.Errorf("Expected empty doc, got %v", out)
		}
	})

	errTests := []struct {
		selector string
		want     string
	}{
		{"ghost", "not a valid resource"},
		{"app.widgets", "valid choices are 'actions' and 'filters'"},
		{"app.actions.ghost", "not in the actions list"},
		{"app.actions.stop.extra", "at most 3 components"},
	}
	for _, tt := range errTests {
		t.Run(tt.selector, func(t *testing.T) {
			_, err := vocab.Describe(tt.selector)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	vocab := BuildVocabulary(newFixtureSource())
	s := vocab.Summarize()

	if s.Resources != 2 {
		t.Errorf("Expected 2 resources, got %d", s.Resources)
	}
	// No action exists under both types.
	if s.CommonActions != 0 || s.UniqueActions != 4 {
		t.Errorf("Unexpected action counts: common %d, unique %d",
			s.CommonActions, s.UniqueActions)
	}
	// and/or/value are everywhere; event and health belong to app only.
	if s.CommonFilters != 3 || s.UniqueFilters != 2 {
		t.Errorf("Unexpected filter counts: common %d, unique %d",
			s.CommonFilters, s.UniqueFilters)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Vocabulary{}.Summarize()
	if s.Resources != 0 || s.CommonActions != 0 || s.UniqueFilters != 0 {
		t.Errorf("Unexpected empty summary: %+v", s)
	}
}
