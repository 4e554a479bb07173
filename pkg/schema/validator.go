package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// KeywordDuplicate marks the out-of-schema duplicate-policy-name check.
// It never appears in structural violations.
const KeywordDuplicate = "duplicate"

// Violation is one schema violation in a policy document. Violations
// are data: a failed validation returns them, it does not raise them.
type Violation struct {
	// Policy is the name of the policy the violation occurred in, or
	// "unknown" when the failing instance carries no name.
	Policy string

	// Keyword is the draft-4 keyword that failed ("anyOf", "required",
	// "pattern", ...), or KeywordDuplicate for duplicate policy names.
	// Nested causes may instead carry a structural location (a $ref hop
	// or a union alternative, where Keyword is empty); such carriers
	// aggregate the real failures in Causes.
	Keyword string

	// SchemaPath locates the failed keyword within the schema document,
	// including the $ref hops taken to reach it.
	SchemaPath string

	// AbsoluteSchemaPath locates the failed keyword within the
	// definition that declared it, so a failure inside a referenced
	// fragment names the fragment rather than the reference chain.
	AbsoluteSchemaPath string

	// InstancePath locates the offending value within the validated
	// document.
	InstancePath string

	// Message is the human-readable description of the failure.
	Message string

	// Instance is the offending value itself, decoded from the
	// document.
	Instance any

	// Causes holds the nested sub-violations. For a failed anyOf/oneOf
	// there is one cause per failed alternative, in alternative order.
	Causes []*Violation
}

// Error implements the error interface.
func (v *Violation) Error() string {
	if v.InstancePath == "" {
		return v.Message
	}
	return fmt.Sprintf("%s: %s", v.InstancePath, v.Message)
}

// Validate checks a policy document against the compiled schema.
//
// Structural violations are returned first; when the document is
// structurally clean, policy names are checked for uniqueness and any
// duplicates reported as the sole violation. The error return is
// reserved for internal failures (uncompilable schema, unserializable
// input), never for document content.
func (d *Document) Validate(data any) ([]Violation, error) {
	if err := d.Compile(); err != nil {
		return nil, err
	}
	doc, err := normalize(data)
	if err != nil {
		return nil, fmt.Errorf("normalize policy document: %w", err)
	}

	err = d.compiled.Validate(doc)
	if err == nil {
		return d.checkUniqueNames(doc), nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, fmt.Errorf("validate policy document: %w", err)
	}
	return flatten(convert(ve, doc), nil), nil
}

// Validate builds the schema from the given registry source, compiles
// it, and validates the document against it in one shot. Callers doing
// repeated validation should build and reuse a Document instead.
func Validate(data any, src Source) ([]Violation, error) {
	doc := NewBuilder(src, zerolog.Nop()).Build()
	return doc.Validate(data)
}

// checkUniqueNames reports duplicated policy names. It only runs on
// structurally valid documents, where the policies sequence is known to
// be well-formed.
func (d *Document) checkUniqueNames(doc any) []Violation {
	top, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	policies, ok := top["policies"].([]any)
	if !ok {
		return nil
	}
	counts := map[string]int{}
	for _, p := range policies {
		m, ok := p.(map[string]any)
		if !ok {
			continue
		}
		if name, ok := m["name"].(string); ok {
			counts[name]++
		}
	}
	var dupes []string
	for name, n := range counts {
		if n > 1 {
			dupes = append(dupes, name)
		}
	}
	if len(dupes) == 0 {
		return nil
	}
	sort.Strings(dupes)
	return []Violation{{
		Policy:       dupes[0],
		Keyword:      KeywordDuplicate,
		InstancePath: "/policies",
		Message: fmt.Sprintf(
			"only one policy with a given name allowed, duplicates: %s",
			strings.Join(dupes, ", ")),
	}}
}

// normalize round-trips a value through JSON so validation always sees
// the generic representation regardless of how the document was loaded.
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// convert maps the validator's error tree onto Violations, resolving
// each error's instance value and policy attribution.
func convert(ve *jsonschema.ValidationError, doc any) *Violation {
	v := &Violation{
		Keyword:            keywordOf(ve.KeywordLocation),
		SchemaPath:         ve.KeywordLocation,
		AbsoluteSchemaPath: ve.AbsoluteKeywordLocation,
		InstancePath:       ve.InstanceLocation,
		Message:            ve.Message,
		Policy:             "unknown",
	}
	if inst, ok := instanceAt(doc, ve.InstanceLocation); ok {
		v.Instance = inst
		if m, ok := inst.(map[string]any); ok {
			if name, ok := m["name"].(string); ok {
				v.Policy = name
			}
		}
	}
	for _, cause := range ve.Causes {
		v.Causes = append(v.Causes, convert(cause, doc))
	}
	return v
}

// flatten expands carrier violations into a flat, ordered list of real
// keyword failures. The validator interposes synthetic nodes while
// bubbling sub-errors (the document root, multi-failure subschemas,
// structural keywords like $ref and allOf); those are transparent
// here, while union failures stay intact because their causes are the
// specializer's input.
func flatten(v *Violation, out []Violation) []Violation {
	if isCarrier(v) {
		for _, c := range v.Causes {
			out = flatten(c, out)
		}
		return out
	}
	return append(out, *v)
}

// isCarrier reports whether a violation merely carries sub-failures
// through schema structure instead of being a failure of its own. Only
// union keywords legitimately own their causes.
func isCarrier(v *Violation) bool {
	if len(v.Causes) == 0 {
		return false
	}
	return v.Keyword != "anyOf" && v.Keyword != "oneOf"
}

// keywordOf extracts the failed keyword from a keyword location. A
// numeric trailing segment means the location addresses a union
// alternative rather than a keyword; such violations are grouping
// nodes.
func keywordOf(loc string) string {
	segs := pointerSegments(loc)
	if len(segs) == 0 {
		return ""
	}
	last := segs[len(segs)-1]
	if isIndex(last) {
		return ""
	}
	return last
}

// instanceAt resolves a JSON pointer within a decoded document.
func instanceAt(doc any, ptr string) (any, bool) {
	cur := doc
	for _, seg := range pointerSegments(ptr) {
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, ok := altIndex(seg, len(c))
			if !ok {
				return nil, false
			}
			cur = c[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}
