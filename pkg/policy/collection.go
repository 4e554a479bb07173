package policy

import (
	"fmt"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Collection is an ordered set of policies. Order follows the source
// documents, so iterating a collection is deterministic for identical
// inputs.
type Collection struct {
	policies []Policy
}

// NewCollection creates a collection over the given policies, keeping
// their order.
func NewCollection(policies []Policy) *Collection {
	c := &Collection{policies: make([]Policy, len(policies))}
	copy(c.policies, policies)
	return c
}

// FromFiles creates a collection from parsed policy files, in file
// order then document order.
func FromFiles(files []File) *Collection {
	var policies []Policy
	for i := range files {
		policies = append(policies, files[i].Policies...)
	}
	return &Collection{policies: policies}
}

// Len returns the number of policies in the collection.
func (c *Collection) Len() int {
	return len(c.policies)
}

// Policies returns the policies in collection order.
func (c *Collection) Policies() []Policy {
	out := make([]Policy, len(c.policies))
	copy(out, c.policies)
	return out
}

// Names returns the policy names in collection order.
func (c *Collection) Names() []string {
	names := make([]string, 0, len(c.policies))
	for i := range c.policies {
		names = append(names, c.policies[i].Name)
	}
	return names
}

// ResourceTypes returns the distinct resource types targeted by the
// collection, sorted.
func (c *Collection) ResourceTypes() []string {
	seen := make(map[string]bool)
	var types []string
	for i := range c.policies {
		if t := c.policies[i].Resource; !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}
	sort.Strings(types)
	return types
}

// FilterByName returns the policies whose names match the glob
// pattern. Matching follows shell glob semantics: * matches any
// sequence, ? one character, [seq] a character class.
func (c *Collection) FilterByName(pattern string) (*Collection, error) {
	var matched []Policy
	for i := range c.policies {
		ok, err := doublestar.Match(pattern, c.policies[i].Name)
		if err != nil {
			return nil, fmt.Errorf("invalid policy filter %q: %w", pattern, err)
		}
		if ok {
			matched = append(matched, c.policies[i])
		}
	}
	return &Collection{policies: matched}, nil
}

// FilterByResource returns the policies targeting the given resource
// type.
func (c *Collection) FilterByResource(resourceType string) *Collection {
	var matched []Policy
	for i := range c.policies {
		if c.policies[i].Resource == resourceType {
			matched = append(matched, c.policies[i])
		}
	}
	return &Collection{policies: matched}
}
