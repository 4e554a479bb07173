package schema

// Provider supplies the schema fragment and documentation for one
// registered capability (a filter or an action).
//
// Provider values are compared by identity when the builder collapses
// aliases: two registry entries backed by the same Provider value are
// treated as aliases of one capability. Implementations are therefore
// expected to be comparable; pointer receivers satisfy this naturally.
type Provider interface {
	// Schema returns the capability's schema fragment.
	Schema() Node

	// Doc returns the capability's human-readable documentation, or the
	// empty string when none exists.
	Doc() string
}

// Source is a read-only snapshot of capability registries, the input to
// schema composition and vocabulary introspection.
//
// ResourceTypes establishes the document order: implementations must
// return the same sorted slice for identical registry contents so that
// composed documents are byte-identical across runs.
type Source interface {
	// ResourceTypes returns all registered resource type names, sorted.
	ResourceTypes() []string

	// Actions returns the action registry of one resource type, keyed
	// by registered name. Aliases appear as multiple keys sharing one
	// Provider value.
	Actions(resourceType string) map[string]Provider

	// Filters returns the filter registry of one resource type, with
	// the same aliasing convention as Actions.
	Filters(resourceType string) map[string]Provider

	// Overlay returns extra per-type policy properties to merge into
	// the resource's policy overlay, or nil. Injected properties must
	// also exist on the shared policy envelope, otherwise the
	// envelope's additionalProperties constraint rejects them.
	Overlay(resourceType string) map[string]Node
}
