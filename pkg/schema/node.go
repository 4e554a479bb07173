package schema

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Kind discriminates the variants of a schema Node.
type Kind uint8

const (
	// KindLeaf is a scalar constraint node (primitive type, pattern,
	// numeric bounds). The zero Node is a KindLeaf with no constraints,
	// which serializes to the empty schema {} and accepts any value.
	KindLeaf Kind = iota

	// KindGroup is a plain container of named child nodes. It is not a
	// schema itself; the definitions tree is built from groups.
	KindGroup

	// KindObject constrains mappings.
	KindObject

	// KindArray constrains sequences.
	KindArray

	// KindRef is a JSON reference to another definition in the same
	// document.
	KindRef

	// KindEnum accepts a fixed set of values.
	KindEnum

	// KindAnyOf accepts values matching at least one alternative.
	KindAnyOf

	// KindOneOf accepts values matching exactly one alternative.
	KindOneOf

	// KindAllOf accepts values matching every alternative.
	KindAllOf
)

// Node is one vertex of a draft-4 schema document.
//
// Node is a tagged union: Kind selects the variant, and only the fields
// belonging to that variant are serialized. Capability providers author
// their fragments as Nodes, the Builder composes them into a Document,
// and the error specializer walks the same tree when narrowing union
// failures.
type Node struct {
	Kind Kind

	// Ref is the reference target of a KindRef node, for example
	// "#/definitions/filters/value".
	Ref string

	// Alts holds the alternatives of KindAnyOf, KindOneOf and KindAllOf
	// nodes, in order.
	Alts []Node

	// Enum holds the accepted values of a KindEnum node.
	Enum []any

	// Properties holds the named children of KindObject and KindGroup
	// nodes.
	Properties map[string]Node

	// Required lists the mandatory property names of a KindObject node.
	Required []string

	// AdditionalProperties, when non-nil, emits the draft-4
	// additionalProperties keyword on a KindObject node.
	AdditionalProperties *bool

	// MinProperties and MaxProperties bound a KindObject node's size
	// when positive.
	MinProperties int
	MaxProperties int

	// Untyped suppresses the "type" keyword on a KindObject node so it
	// can serve as a bare property overlay inside an allOf.
	Untyped bool

	// Items constrains the elements of a KindArray node.
	Items *Node

	// AdditionalItems, when non-nil, emits the draft-4 additionalItems
	// keyword on a KindArray node.
	AdditionalItems *bool

	// Type is the primitive type name of a KindLeaf node ("string",
	// "integer", "number", "boolean", "array", "object", "null").
	// Empty means unconstrained.
	Type string

	// Pattern is a regular expression applied to string values of a
	// KindLeaf node.
	Pattern string

	// Minimum, when non-nil, bounds numeric values of a KindLeaf node.
	Minimum *float64
}

// Ref returns a node referencing another definition by JSON pointer.
func Ref(target string) Node { return Node{Kind: KindRef, Ref: target} }

// AnyOf returns a union node accepting any matching alternative.
func AnyOf(alts ...Node) Node { return Node{Kind: KindAnyOf, Alts: alts} }

// OneOf returns a union node accepting exactly one matching alternative.
func OneOf(alts ...Node) Node { return Node{Kind: KindOneOf, Alts: alts} }

// AllOf returns an intersection node requiring every alternative.
func AllOf(alts ...Node) Node { return Node{Kind: KindAllOf, Alts: alts} }

// Enum returns a node accepting exactly the given values.
func Enum(values ...any) Node { return Node{Kind: KindEnum, Enum: values} }

// EnumStrings returns an enum node over string values.
func EnumStrings(values []string) Node {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return Node{Kind: KindEnum, Enum: vs}
}

// Object returns a typed object node with the given properties and
// required names.
func Object(props map[string]Node, required ...string) Node {
	return Node{Kind: KindObject, Properties: props, Required: required}
}

// Props returns an object fragment carrying only property constraints,
// for use as an overlay alternative inside an allOf.
func Props(props map[string]Node) Node {
	return Node{Kind: KindObject, Properties: props, Untyped: true}
}

// Group returns a plain container for the definitions tree.
func Group(children map[string]Node) Node {
	return Node{Kind: KindGroup, Properties: children}
}

// Array returns an array node whose items match the given schema.
func Array(items Node) Node { return Node{Kind: KindArray, Items: &items} }

// Typed returns a leaf node constraining only the primitive type.
func Typed(name string) Node { return Node{Kind: KindLeaf, Type: name} }

// String returns a string leaf node.
func String() Node { return Typed("string") }

// Integer returns an integer leaf node.
func Integer() Node { return Typed("integer") }

// Number returns a numeric leaf node.
func Number() Node { return Typed("number") }

// Boolean returns a boolean leaf node.
func Boolean() Node { return Typed("boolean") }

// Pattern returns a string leaf constrained by a regular expression.
func Pattern(expr string) Node {
	return Node{Kind: KindLeaf, Type: "string", Pattern: expr}
}

// Any returns the empty schema, which accepts every value.
func Any() Node { return Node{} }

// MarshalJSON serializes the node as draft-4 JSON. Maps marshal with
// sorted keys, so identical trees produce identical bytes.
func (n Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.lower())
}

// lower converts the node to the generic JSON form.
func (n Node) lower() any {
	switch n.Kind {
	case KindGroup:
		m := make(map[string]any, len(n.Properties))
		for k, v := range n.Properties {
			m[k] = v.lower()
		}
		return m
	case KindObject:
		m := map[string]any{}
		if !n.Untyped {
			m["type"] = "object"
		}
		if len(n.Properties) > 0 {
			props := make(map[string]any, len(n.Properties))
			for k, v := range n.Properties {
				props[k] = v.lower()
			}
			m["properties"] = props
		}
		if len(n.Required) > 0 {
			m["required"] = n.Required
		}
		if n.AdditionalProperties != nil {
			m["additionalProperties"] = *n.AdditionalProperties
		}
		if n.MinProperties > 0 {
			m["minProperties"] = n.MinProperties
		}
		if n.MaxProperties > 0 {
			m["maxProperties"] = n.MaxProperties
		}
		return m
	case KindArray:
		m := map[string]any{"type": "array"}
		if n.Items != nil {
			m["items"] = n.Items.lower()
		}
		if n.AdditionalItems != nil {
			m["additionalItems"] = *n.AdditionalItems
		}
		return m
	case KindRef:
		return map[string]any{"$ref": n.Ref}
	case KindEnum:
		return map[string]any{"enum": n.Enum}
	case KindAnyOf, KindOneOf, KindAllOf:
		alts := make([]any, len(n.Alts))
		for i, a := range n.Alts {
			alts[i] = a.lower()
		}
		return map[string]any{n.combinator(): alts}
	default:
		m := map[string]any{}
		if n.Type != "" {
			m["type"] = n.Type
		}
		if n.Pattern != "" {
			m["pattern"] = n.Pattern
		}
		if n.Minimum != nil {
			m["minimum"] = *n.Minimum
		}
		return m
	}
}

// combinator returns the draft-4 keyword of a union node.
func (n Node) combinator() string {
	switch n.Kind {
	case KindAnyOf:
		return "anyOf"
	case KindOneOf:
		return "oneOf"
	case KindAllOf:
		return "allOf"
	}
	return ""
}

// pointerSegments splits a JSON pointer into its unescaped segments. A
// leading "#/" or "/" is accepted; an empty pointer yields nil.
func pointerSegments(ptr string) []string {
	ptr = strings.TrimPrefix(ptr, "#")
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return nil
	}
	segs := strings.Split(ptr, "/")
	for i, s := range segs {
		s = strings.ReplaceAll(s, "~1", "/")
		segs[i] = strings.ReplaceAll(s, "~0", "~")
	}
	return segs
}

// isIndex reports whether a pointer segment is a numeric array index.
func isIndex(seg string) bool {
	_, err := strconv.Atoi(seg)
	return err == nil
}
