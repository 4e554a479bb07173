// Package schema composes and enforces the policy document schema for
// CloudWarden.
//
// This package implements the governance core: it walks the capability
// registries, composes one draft-4 schema document with shared,
// reference-linked definitions, validates policy documents against it,
// and narrows ambiguous union failures to actionable field-level
// diagnostics.
//
// # Architecture
//
// The package consists of five main components:
//
//  1. Node - A tagged-union representation of draft-4 schema trees
//  2. Builder - Composes the schema document from a registry Source
//  3. Document - The immutable build artifact; compiles and validates
//  4. Specializer - Narrows anyOf/oneOf failures to their real cause
//  5. Vocabulary - Browsable capability inventory for help surfaces
//
// # Usage
//
// Building and compiling a schema:
//
//	builder := schema.NewBuilder(registries, logger)
//	doc := builder.Build()
//	if err := doc.Compile(); err != nil {
//	    log.Fatal(err) // registry or composition defect
//	}
//
// Validating a policy document:
//
//	violations, err := doc.Validate(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if len(violations) > 0 {
//	    best := doc.Specialize(&violations[0])
//	    fmt.Printf("policy %s: %s\n", violations[0].Policy, best.Message)
//	}
//
// Browsing capabilities:
//
//	vocab := schema.BuildVocabulary(registries)
//	out, err := vocab.Describe("ec2.actions.stop")
//
// # Composition Rules
//
// Each resource type contributes a definitions subtree holding its
// action fragments, filter fragments, and a composed policy schema. The
// composed policy is the intersection of the shared policy envelope and
// a type-specific overlay pinning the resource name and narrowing the
// filters/actions arrays to that type's capability references.
//
// Three rules keep the document small and self-consistent:
//
//  1. Aliases collapse: each distinct implementation's fragment is
//     emitted once, with every alias name linked to it by reference.
//  2. Generic filters share: the value, event and age filters resolve
//     to single shared fragments instead of per-type copies.
//  3. Boolean combinators nest: the "and" and "or" filters accept a
//     sequence whose items match any of the type's other filters or
//     the key=value shortcut, reusing one alternatives list.
//
// # Validation Order
//
// Structural checks run first. Only when a document is structurally
// clean does the duplicate-policy-name check run; duplicate reports on
// top of structurally broken input are noise. Violations are data, not
// panics: the error return of Validate is reserved for internal
// failures such as an uncompilable schema.
//
// # Determinism
//
// Build output is a pure function of registry contents. Re-building
// from identical registries yields byte-identical JSON, which makes
// schema documents safe to cache and diff.
package schema
