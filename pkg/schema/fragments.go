package schema

const (
	// DocumentID is the canonical identifier of the generated schema
	// document.
	DocumentID = "http://schema.cloudwarden.io/v0/warden.json"

	// metaSchemaID identifies the draft-4 meta-schema every generated
	// document is checked against before use.
	metaSchemaID = "http://json-schema.org/draft-04/schema#"

	// policyNamePattern constrains policy names to hyphenated
	// alphanumeric words. Every hyphen-separated segment must contain
	// at least one letter, and the name must start with one.
	policyNamePattern = "^[A-Za-z][A-Za-z0-9]*(-[A-Za-z0-9]*[A-Za-z][A-Za-z0-9]*)*$"
)

// comparisonOps are the operators accepted by the generic value and age
// filters.
var comparisonOps = []string{
	"eq", "equal",
	"ne", "not-equal",
	"gt", "greater-than",
	"ge", "gte",
	"lt", "less-than",
	"le", "lte",
	"glob", "regex",
	"in", "ni", "not-in",
	"contains",
}

// valueTypes are the coercions the value filter applies to the
// extracted value before comparison.
var valueTypes = []string{
	"age", "integer", "expiration", "normalize",
	"size", "cidr", "cidr_size", "swap",
}

// ComparisonOps returns the operator names accepted by the generic
// value and age filters, for capability fragments that reuse them.
func ComparisonOps() []string {
	return append([]string(nil), comparisonOps...)
}

// ValueFilterSchema returns the shared generic value-filter fragment.
// Every resource type's "value" filter resolves to this definition.
func ValueFilterSchema() Node {
	return filterCore("value")
}

// EventFilterSchema returns the shared event-filter fragment. It keys
// into the triggering event payload instead of the resource.
func EventFilterSchema() Node {
	return filterCore("event")
}

// filterCore is the common shape of the value and event filters.
func filterCore(typeName string) Node {
	f := false
	n := Object(map[string]Node{
		"type": Enum(typeName),
		"key":  String(),
		"value": OneOf(
			Typed("array"),
			Typed("string"),
			Typed("boolean"),
			Typed("number"),
			Typed("null"),
		),
		"value_type": EnumStrings(valueTypes),
		"default":    Typed("object"),
		"op":         EnumStrings(comparisonOps),
	}, "type")
	n.AdditionalProperties = &f
	return n
}

// AgeFilterSchema returns the shared age-filter fragment, matching
// resources by creation age in days.
func AgeFilterSchema() Node {
	f := false
	zero := 0.0
	n := Object(map[string]Node{
		"type": Enum("age"),
		"op":   EnumStrings(comparisonOps),
		"days": {Kind: KindLeaf, Type: "number", Minimum: &zero},
	}, "type")
	n.AdditionalProperties = &f
	return n
}

// valueKVSchema is the single key=value shortcut form of the value
// filter: exactly one property, any name, any value.
func valueKVSchema() Node {
	return Node{Kind: KindObject, MinProperties: 1, MaxProperties: 1}
}

// policyEnvelope is the shared policy shape every resource-specific
// policy definition narrows. The filters and actions properties are
// intentionally loose here; each resource type pins them to its own
// capability references through an allOf overlay.
func policyEnvelope() Node {
	f := false
	return Node{
		Kind:                 KindObject,
		Required:             []string{"name", "resource"},
		AdditionalProperties: &f,
		Properties: map[string]Node{
			"name":          Pattern(policyNamePattern),
			"region":        String(),
			"resource":      String(),
			"max-resources": Integer(),
			"comment":       String(),
			"comments":      String(),
			"description":   String(),
			"tags":          Array(String()),
			"mode":          Ref("#/definitions/policy-mode"),
			"actions":       {Kind: KindArray},
			"filters":       {Kind: KindArray},
			"query":         Array(Node{Kind: KindObject, MinProperties: 1, MaxProperties: 1}),
		},
	}
}

// policyModeSchema describes the execution mode block: how a policy is
// triggered rather than what it matches.
func policyModeSchema() Node {
	return Object(map[string]Node{
		"type": Enum(
			"cloudtrail",
			"ec2-instance-state",
			"asg-instance-state",
			"config-rule",
			"periodic",
		),
		"events": Array(OneOf(
			String(),
			Object(map[string]Node{
				"source": String(),
				"ids":    String(),
				"event":  String(),
			}, "event", "source", "ids"),
		)),
	}, "type")
}

// sharedFilterDefs assembles the definitions.filters group.
func sharedFilterDefs() Node {
	return Group(map[string]Node{
		"value":   ValueFilterSchema(),
		"event":   EventFilterSchema(),
		"age":     AgeFilterSchema(),
		"valuekv": valueKVSchema(),
	})
}
