package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Vocabulary maps resource type names to their capability inventory.
// It is a pure read over the registries; no schema composition happens
// here.
type Vocabulary map[string]ResourceVocabulary

// ResourceVocabulary lists one resource type's capabilities and their
// documentation.
type ResourceVocabulary struct {
	// Filters and Actions hold the registered names, sorted, aliases
	// included.
	Filters []string
	Actions []string

	// Docs holds per-capability documentation strings.
	Docs CapabilityDocs
}

// CapabilityDocs holds documentation keyed by capability name. Entries
// exist for every registered name; undocumented capabilities map to the
// empty string.
type CapabilityDocs struct {
	Filters map[string]string
	Actions map[string]string
}

// BuildVocabulary assembles the browsable capability inventory from a
// registry source.
func BuildVocabulary(src Source) Vocabulary {
	v := Vocabulary{}
	for _, t := range src.ResourceTypes() {
		docs := CapabilityDocs{
			Filters: map[string]string{},
			Actions: map[string]string{},
		}
		var actions, filters []string
		for name, p := range src.Actions(t) {
			actions = append(actions, name)
			docs.Actions[name] = p.Doc()
		}
		for name, p := range src.Filters(t) {
			filters = append(filters, name)
			docs.Filters[name] = p.Doc()
		}
		sort.Strings(actions)
		sort.Strings(filters)
		v[t] = ResourceVocabulary{Filters: filters, Actions: actions, Docs: docs}
	}
	return v
}

// Resources returns the vocabulary's resource type names, sorted.
func (v Vocabulary) Resources() []string {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe resolves a RESOURCE.CATEGORY.ITEM selector against the
// vocabulary. Resource and category selectors return a mapping ready
// for serialization; item selectors return the capability's doc string.
// Selector components are case-insensitive.
func (v Vocabulary) Describe(selector string) (any, error) {
	parts := strings.Split(selector, ".")
	if len(parts) > 3 {
		return nil, fmt.Errorf(
			"invalid selector %q: at most 3 components in the format RESOURCE.CATEGORY.ITEM",
			selector)
	}

	resource := strings.ToLower(parts[0])
	rv, ok := v[resource]
	if !ok {
		return nil, fmt.Errorf("%s is not a valid resource", resource)
	}
	if len(parts) == 1 {
		return map[string]any{resource: map[string]any{
			"filters": rv.Filters,
			"actions": rv.Actions,
		}}, nil
	}

	category := strings.ToLower(parts[1])
	var names []string
	var docs map[string]string
	switch category {
	case "actions":
		names, docs = rv.Actions, rv.Docs.Actions
	case "filters":
		names, docs = rv.Filters, rv.Docs.Filters
	default:
		return nil, fmt.Errorf(
			"valid choices are 'actions' and 'filters', you supplied %q", category)
	}
	if len(parts) == 2 {
		return map[string]any{resource: map[string]any{category: names}}, nil
	}

	item := strings.ToLower(parts[2])
	doc, ok := docs[item]
	if !ok {
		return nil, fmt.Errorf(
			"%s is not in the %s list for resource %s", item, category, resource)
	}
	return doc, nil
}

// Summary aggregates capability counts across the vocabulary.
// Capabilities registered under every resource type count as common;
// the unique counts exclude them.
type Summary struct {
	Resources     int
	CommonActions int
	UniqueActions int
	CommonFilters int
	UniqueFilters int
}

// Summarize folds the vocabulary into counts.
func (v Vocabulary) Summarize() Summary {
	s := Summary{Resources: len(v)}
	if len(v) == 0 {
		return s
	}

	commonActions := intersectAll(v, func(rv ResourceVocabulary) []string { return rv.Actions })
	commonFilters := intersectAll(v, func(rv ResourceVocabulary) []string { return rv.Filters })
	s.CommonActions = len(commonActions)
	s.CommonFilters = len(commonFilters)

	for _, rv := range v {
		for _, a := range rv.Actions {
			if !commonActions[a] {
				s.UniqueActions++
			}
		}
		for _, f := range rv.Filters {
			if !commonFilters[f] {
				s.UniqueFilters++
			}
		}
	}
	return s
}

// intersectAll computes the set of names present under every resource
// type.
func intersectAll(v Vocabulary, pick func(ResourceVocabulary) []string) map[string]bool {
	counts := map[string]int{}
	for _, rv := range v {
		for _, name := range pick(rv) {
			counts[name]++
		}
	}
	common := map[string]bool{}
	for name, n := range counts {
		if n == len(v) {
			common[name] = true
		}
	}
	return common
}
