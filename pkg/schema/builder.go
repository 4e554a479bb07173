package schema

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// Builder composes the policy schema document from a capability
// registry snapshot. A Builder is cheap; construct one per Build.
type Builder struct {
	src    Source
	logger zerolog.Logger
}

// NewBuilder returns a Builder over the given registry source.
func NewBuilder(src Source, logger zerolog.Logger) *Builder {
	return &Builder{
		src:    src,
		logger: logger.With().Str("component", "schema-builder").Logger(),
	}
}

// Build composes the schema document. When resource type names are
// given only those types contribute; unknown names are silently
// skipped. Build never fails: structural defects in the registries
// surface later, when the document is compiled.
func (b *Builder) Build(types ...string) *Document {
	keep := map[string]bool{}
	for _, t := range types {
		keep[t] = true
	}

	resourceDefs := map[string]Node{}
	var refs []Node
	included := 0
	for _, t := range b.src.ResourceTypes() {
		if len(keep) > 0 && !keep[t] {
			continue
		}
		refs = append(refs, b.processResource(t, resourceDefs))
		included++
	}

	f := false
	doc := &Document{
		id: DocumentID,
		defs: Group(map[string]Node{
			"resources":   Group(resourceDefs),
			"filters":     sharedFilterDefs(),
			"policy":      policyEnvelope(),
			"policy-mode": policyModeSchema(),
		}),
		vars: Node{Kind: KindObject},
		policies: Node{
			Kind:            KindArray,
			AdditionalItems: &f,
			Items:           &Node{Kind: KindAnyOf, Alts: refs},
		},
	}
	b.logger.Debug().Int("resources", included).Msg("Schema document composed")
	return doc
}

// processResource renders one resource type into the definitions tree
// and returns the reference to its policy definition.
func (b *Builder) processResource(typeName string, resourceDefs map[string]Node) Node {
	actionDefs, actionRefs := b.renderActions(typeName)
	filterDefs, filterRefs := b.renderFilters(typeName)

	overlayProps := map[string]Node{
		"resource": Enum(typeName),
		"filters": {
			Kind:  KindArray,
			Items: &Node{Kind: KindAnyOf, Alts: filterRefs},
		},
		"actions": {
			Kind:  KindArray,
			Items: &Node{Kind: KindAnyOf, Alts: actionRefs},
		},
	}
	for name, extra := range b.src.Overlay(typeName) {
		overlayProps[name] = extra
	}

	resourceDefs[typeName] = Group(map[string]Node{
		"actions": Group(actionDefs),
		"filters": Group(filterDefs),
		"policy": AllOf(
			Ref("#/definitions/policy"),
			Props(overlayProps),
		),
	})
	return Ref(refPolicy(typeName))
}

// renderActions emits one definition per distinct action implementation
// plus a reference entry for each alias, and returns the alternatives
// allowed in a policy's actions array.
func (b *Builder) renderActions(typeName string) (map[string]Node, []Node) {
	actions := b.src.Actions(typeName)
	names := sortedKeys(actions)

	defs := make(map[string]Node, len(names))
	refs := make([]Node, 0, len(names)+1)
	canonical := map[Provider]string{}
	for _, name := range names {
		p := actions[name]
		if canon, ok := canonical[p]; ok {
			defs[name] = Ref(refAction(typeName, canon))
			continue
		}
		canonical[p] = name
		defs[name] = p.Schema()
		refs = append(refs, Ref(refAction(typeName, name)))
	}

	// Bare action names are shorthand for the action with defaults.
	refs = append(refs, EnumStrings(names))
	return defs, refs
}

// renderFilters emits the filter definitions of one resource type. The
// generic value and event filters resolve to the shared fragments, and
// the boolean combinators accept every distinct filter of this type
// plus the key=value shortcut.
func (b *Builder) renderFilters(typeName string) (map[string]Node, []Node) {
	filters := b.src.Filters(typeName)
	names := sortedKeys(filters)

	// One nested-alternatives slice, shared by "and" and "or".
	nested := make([]Node, 0, len(names)+1)
	seen := map[Provider]bool{}
	for _, name := range names {
		p := filters[name]
		if seen[p] {
			continue
		}
		seen[p] = true
		nested = append(nested, Ref(refFilter(typeName, name)))
	}
	nested = append(nested, Ref("#/definitions/filters/valuekv"))

	defs := make(map[string]Node, len(names))
	refs := make([]Node, 0, len(names)+2)
	canonical := map[Provider]string{}
	for _, name := range names {
		p := filters[name]
		if canon, ok := canonical[p]; ok {
			defs[name] = Ref(refFilter(typeName, canon))
			continue
		}
		canonical[p] = name
		switch name {
		case "value":
			defs[name] = Ref("#/definitions/filters/value")
			defs["valuekv"] = Ref("#/definitions/filters/valuekv")
		case "event":
			defs[name] = Ref("#/definitions/filters/event")
		case "and", "or":
			defs[name] = Node{
				Kind:  KindArray,
				Items: &Node{Kind: KindAnyOf, Alts: nested},
			}
		default:
			defs[name] = p.Schema()
		}
		refs = append(refs, Ref(refFilter(typeName, name)))
	}

	refs = append(refs, Ref("#/definitions/filters/valuekv"))
	refs = append(refs, EnumStrings(names))
	return defs, refs
}

func refAction(typeName, name string) string {
	return fmt.Sprintf("#/definitions/resources/%s/actions/%s", typeName, name)
}

func refFilter(typeName, name string) string {
	return fmt.Sprintf("#/definitions/resources/%s/filters/%s", typeName, name)
}

func refPolicy(typeName string) string {
	return fmt.Sprintf("#/definitions/resources/%s/policy", typeName)
}

func sortedKeys(m map[string]Provider) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
