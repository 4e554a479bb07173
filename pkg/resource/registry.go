package resource

import (
	"sort"
	"sync"

	"github.com/cloudwarden/cloudwarden/pkg/schema"
)

// Capability is a static filter or action implementation: a schema
// fragment plus its documentation. Registering one Capability value
// under several names declares aliases; the schema builder collapses
// them by identity.
type Capability struct {
	fragment schema.Node
	doc      string
}

// NewCapability creates a capability from a schema fragment and an
// optional documentation string.
func NewCapability(fragment schema.Node, doc string) *Capability {
	return &Capability{fragment: fragment, doc: doc}
}

// Schema returns the capability's schema fragment.
func (c *Capability) Schema() schema.Node { return c.fragment }

// Doc returns the capability's documentation, or "" when undocumented.
func (c *Capability) Doc() string { return c.doc }

// Registry holds the capability registrations of one resource type.
type Registry struct {
	// mu protects the registration maps.
	mu sync.RWMutex

	// actions and filters map registered name to implementation.
	// Aliases appear as several names sharing one implementation.
	actions map[string]schema.Provider
	filters map[string]schema.Provider

	// overlay holds extra policy properties this type injects into its
	// composed policy schema.
	overlay map[string]schema.Node
}

// NewRegistry creates an empty per-type registry.
func NewRegistry() *Registry {
	return &Registry{
		actions: make(map[string]schema.Provider),
		filters: make(map[string]schema.Provider),
		overlay: make(map[string]schema.Node),
	}
}

// RegisterAction registers an action under a name and any aliases.
// Later registrations of the same name replace earlier ones.
func (r *Registry) RegisterAction(name string, p schema.Provider, aliases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.actions[name] = p
	for _, alias := range aliases {
		r.actions[alias] = p
	}
}

// RegisterFilter registers a filter under a name and any aliases.
// Later registrations of the same name replace earlier ones.
func (r *Registry) RegisterFilter(name string, p schema.Provider, aliases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.filters[name] = p
	for _, alias := range aliases {
		r.filters[alias] = p
	}
}

// SetOverlay declares an extra policy property for this type. The
// property must also exist on the shared policy envelope.
func (r *Registry) SetOverlay(name string, n schema.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.overlay[name] = n
}

// Actions returns a copy of the action registrations.
func (r *Registry) Actions() map[string]schema.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return copyProviders(r.actions)
}

// Filters returns a copy of the filter registrations.
func (r *Registry) Filters() map[string]schema.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return copyProviders(r.filters)
}

// Overlay returns a copy of the overlay properties, or nil when the
// type declares none.
func (r *Registry) Overlay() map[string]schema.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.overlay) == 0 {
		return nil
	}
	out := make(map[string]schema.Node, len(r.overlay))
	for k, v := range r.overlay {
		out[k] = v
	}
	return out
}

// Registries is a capability catalog covering every resource type. It
// implements schema.Source, so it can feed schema composition and
// vocabulary introspection directly. Multiple independent catalogs may
// coexist; there is no process-wide registry state.
type Registries struct {
	// mu protects the type map.
	mu sync.RWMutex

	// types maps resource type name to its registry.
	types map[string]*Registry
}

// Interface check.
var _ schema.Source = (*Registries)(nil)

// NewRegistries creates an empty catalog.
func NewRegistries() *Registries {
	return &Registries{types: make(map[string]*Registry)}
}

// Type returns the registry of a resource type, creating it on first
// use.
func (r *Registries) Type(name string) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.types[name]
	if !ok {
		reg = NewRegistry()
		r.types[name] = reg
	}
	return reg
}

// Lookup returns the registry of a resource type without creating it.
func (r *Registries) Lookup(name string) (*Registry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.types[name]
	return reg, ok
}

// ResourceTypes returns all registered type names, sorted.
func (r *Registries) ResourceTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Actions returns the action registrations of a resource type, or nil
// for unknown types.
func (r *Registries) Actions(resourceType string) map[string]schema.Provider {
	reg, ok := r.Lookup(resourceType)
	if !ok {
		return nil
	}
	return reg.Actions()
}

// Filters returns the filter registrations of a resource type, or nil
// for unknown types.
func (r *Registries) Filters(resourceType string) map[string]schema.Provider {
	reg, ok := r.Lookup(resourceType)
	if !ok {
		return nil
	}
	return reg.Filters()
}

// Overlay returns the overlay properties of a resource type, or nil.
func (r *Registries) Overlay(resourceType string) map[string]schema.Node {
	reg, ok := r.Lookup(resourceType)
	if !ok {
		return nil
	}
	return reg.Overlay()
}

func copyProviders(m map[string]schema.Provider) map[string]schema.Provider {
	out := make(map[string]schema.Provider, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
