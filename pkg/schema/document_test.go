package schema

import (
	"bytes"
	"testing"
)

func TestNodeAt(t *testing.T) {
	doc := buildFixture(t)

	tests := []struct {
		path string
		kind Kind
		alts int
	}{
		{"/properties/vars", KindObject, 0},
		{"/properties/policies", KindArray, 0},
		{"/properties/policies/items/anyOf", KindAnyOf, 2},
		{"/properties/policies/items/anyOf/0", KindRef, 0},
		{"/properties/policies/items/anyOf/0/$ref", KindAllOf, 2},
		{"/properties/policies/items/anyOf/0/$ref/allOf/0/$ref", KindObject, 0},
		{"/properties/policies/items/anyOf/0/$ref/allOf/1/properties/actions/items/anyOf", KindAnyOf, 3},
		{"/properties/policies/items/anyOf/0/$ref/allOf/1/properties/filters/items/anyOf/0/$ref", KindArray, 0},
		{"/definitions/policy", KindObject, 0},
		{"/definitions/policy/properties/name", KindLeaf, 0},
		{"/definitions/resources/app/actions/mark", KindObject, 0},
		{"/definitions/resources/app/actions/tag", KindRef, 0},
		{"/definitions/resources/app/actions/tag/$ref", KindObject, 0},
		{"/definitions/resources/app/filters/and", KindArray, 0},
		{"/definitions/resources/app/filters/value/$ref", KindObject, 0},
		{"#/definitions/filters/valuekv", KindObject, 0},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			n, ok := doc.NodeAt(tt.path)
			if !ok {
				t.Fatalf("NodeAt(%q) not found", tt.path)
			}
			if n.Kind != tt.kind {
				t.Errorf("Expected kind %d, got %d", tt.kind, n.Kind)
			}
			if tt.alts != 0 && len(n.Alts) != tt.alts {
				t.Errorf("Expected %d alternatives, got %d", tt.alts, len(n.Alts))
			}
		})
	}
}

func TestNodeAtDereferencesAlias(t *testing.T) {
	doc := buildFixture(t)

	canon, ok := doc.NodeAt("/definitions/resources/app/actions/mark")
	if !ok {
		t.Fatal("canonical action not found")
	}
	via, ok := doc.NodeAt("/definitions/resources/app/actions/tag/$ref")
	if !ok {
		t.Fatal("alias deref failed")
	}
	if _, ok := via.Properties["key"]; !ok {
		t.Error("Expected dereferenced action to expose the key property")
	}
	if len(via.Properties) != len(canon.Properties) {
		t.Errorf("Alias resolved to a different node: %d vs %d properties",
			len(via.Properties), len(canon.Properties))
	}
}

func TestNodeAtMisses(t *testing.T) {
	doc := buildFixture(t)

	misses := []string{
		"",
		"/",
		"/unknown",
		"/properties",
		"/properties/ghost",
		"/properties/policies/items/anyOf/9",
		"/properties/policies/items/anyOf/-1",
		"/definitions/resources/ghost/policy",
		"/definitions/resources/app/actions/tag/properties/key",
		"/definitions/policy/required",
	}
	for _, path := range misses {
		if n, ok := doc.NodeAt(path); ok {
			t.Errorf("NodeAt(%q) unexpectedly resolved to kind %d", path, n.Kind)
		}
	}
}

func TestJSONStable(t *testing.T) {
	doc := NewBuilder(newFixtureSource(), testLogger()).Build()

	first, err := doc.JSON()
	if err != nil {
		t.Fatalf("JSON failed: %v", err)
	}
	// Callers get a copy; scribbling on it must not poison the cache.
	first[0] = '!'

	second, err := doc.JSON()
	if err != nil {
		t.Fatalf("JSON failed: %v", err)
	}
	if second[0] != '{' {
		t.Fatal("Cached document bytes were mutated through the returned slice")
	}

	fresh, err := NewBuilder(newFixtureSource(), testLogger()).Build().JSON()
	if err != nil {
		t.Fatalf("JSON failed: %v", err)
	}
	if !bytes.Equal(second, fresh) {
		t.Error("Identical sources produced different documents")
	}
}

func TestDocumentID(t *testing.T) {
	doc := NewBuilder(newFixtureSource(), testLogger()).Build()
	if doc.ID() != DocumentID {
		t.Errorf("Expected %q, got %q", DocumentID, doc.ID())
	}
}
