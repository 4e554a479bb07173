package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Document is the composite policy schema produced by a Builder.
//
// A Document is immutable after Build. Serialization and compilation
// are memoized, so a single Document can be shared by concurrent
// validators without locking.
type Document struct {
	id       string
	defs     Node
	vars     Node
	policies Node

	marshalOnce sync.Once
	raw         []byte
	marshalErr  error

	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
}

// ID returns the document's canonical identifier.
func (d *Document) ID() string { return d.id }

// MarshalJSON serializes the full document. Output is deterministic:
// identical registry contents yield identical bytes.
func (d *Document) MarshalJSON() ([]byte, error) {
	f := false
	return json.Marshal(map[string]any{
		"$schema":              metaSchemaID,
		"id":                   d.id,
		"definitions":          d.defs.lower(),
		"type":                 "object",
		"required":             []string{"policies"},
		"additionalProperties": f,
		"properties": map[string]any{
			"vars":     d.vars.lower(),
			"policies": d.policies.lower(),
		},
	})
}

// JSON returns the serialized document, marshaling at most once.
func (d *Document) JSON() ([]byte, error) {
	d.marshalOnce.Do(func() {
		d.raw, d.marshalErr = json.Marshal(d)
	})
	if d.marshalErr != nil {
		return nil, d.marshalErr
	}
	out := make([]byte, len(d.raw))
	copy(out, d.raw)
	return out, nil
}

// Compile checks the document against the draft-4 meta-schema and
// prepares it for validation. Errors indicate registry or composition
// defects, never user mistakes; callers should treat them as fatal.
// Compile runs at most once; later calls return the memoized result.
func (d *Document) Compile() error {
	d.compileOnce.Do(func() {
		d.compiled, d.compileErr = d.compile()
	})
	return d.compileErr
}

func (d *Document) compile() (*jsonschema.Schema, error) {
	raw, err := d.JSON()
	if err != nil {
		return nil, fmt.Errorf("marshal schema document: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("reparse schema document: %w", err)
	}
	meta, err := jsonschema.NewCompiler().Compile(metaSchemaID)
	if err != nil {
		return nil, fmt.Errorf("compile draft-4 meta-schema: %w", err)
	}
	if err := meta.Validate(doc); err != nil {
		return nil, fmt.Errorf("schema document failed draft-4 self-check: %w", err)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft4
	if err := c.AddResource(d.id, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("register schema document: %w", err)
	}
	compiled, err := c.Compile(d.id)
	if err != nil {
		return nil, fmt.Errorf("compile schema document: %w", err)
	}
	return compiled, nil
}

// NodeAt resolves a schema path (a keyword location such as
// "/properties/policies/items/anyOf/3/$ref/allOf/1") to the node it
// addresses, following $ref hops through the definitions tree.
func (d *Document) NodeAt(path string) (Node, bool) {
	segs := pointerSegments(path)
	if len(segs) == 0 {
		return Node{}, false
	}
	switch segs[0] {
	case "definitions":
		return d.walk(d.defs, segs[1:])
	case "properties":
		if len(segs) < 2 {
			return Node{}, false
		}
		switch segs[1] {
		case "policies":
			return d.walk(d.policies, segs[2:])
		case "vars":
			return d.walk(d.vars, segs[2:])
		}
	}
	return Node{}, false
}

// walk advances through the node tree one pointer segment at a time.
// Union keywords ("anyOf") position on the union node itself; a numeric
// segment then selects the alternative. A "$ref" segment dereferences
// without consuming further input.
func (d *Document) walk(cur Node, segs []string) (Node, bool) {
	for i := 0; i < len(segs); i++ {
		seg := segs[i]
		switch cur.Kind {
		case KindGroup:
			child, ok := cur.Properties[seg]
			if !ok {
				return Node{}, false
			}
			cur = child
		case KindObject:
			if seg != "properties" || i+1 >= len(segs) {
				return Node{}, false
			}
			i++
			child, ok := cur.Properties[segs[i]]
			if !ok {
				return Node{}, false
			}
			cur = child
		case KindArray:
			if seg != "items" || cur.Items == nil {
				return Node{}, false
			}
			cur = *cur.Items
		case KindRef:
			if seg != "$ref" {
				return Node{}, false
			}
			target, ok := d.resolveRef(cur.Ref)
			if !ok {
				return Node{}, false
			}
			cur = target
		case KindAnyOf, KindOneOf, KindAllOf:
			if seg == cur.combinator() {
				continue
			}
			idx, ok := altIndex(seg, len(cur.Alts))
			if !ok {
				return Node{}, false
			}
			cur = cur.Alts[idx]
		default:
			return Node{}, false
		}
	}
	return cur, true
}

// resolveRef dereferences an intra-document "#/..." reference.
func (d *Document) resolveRef(ref string) (Node, bool) {
	if !strings.HasPrefix(ref, "#/") {
		return Node{}, false
	}
	return d.NodeAt(ref[1:])
}

func altIndex(seg string, n int) (int, bool) {
	idx, err := strconv.Atoi(seg)
	if err != nil || idx < 0 || idx >= n {
		return 0, false
	}
	return idx, true
}
