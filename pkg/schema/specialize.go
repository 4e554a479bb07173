package schema

import (
	"strconv"
	"strings"
)

// Specialize narrows an ambiguous union violation to its most specific
// underlying cause.
//
// Union keywords report only that no alternative matched, which is
// useless once schemas nest: the interesting failure is inside the
// alternative the author intended. Specialize recovers that branch
// using the same discriminators a human reader would: the policy's
// resource field against the per-type policy references, and a
// capability's type field against the filter/action references.
//
// Specialization is best effort. When no discriminator identifies the
// intended alternative, or the schema walk fails, the violation is
// returned unchanged; Specialize never fails. Policy attribution flows
// down from the enclosing violation, since the narrowed failure's own
// instance is usually an unnamed fragment.
func (d *Document) Specialize(v *Violation) *Violation {
	sv, ok := d.specialize(v)
	if !ok {
		return v
	}
	if sv.Policy == "unknown" && v.Policy != "unknown" {
		named := *sv
		named.Policy = v.Policy
		return &named
	}
	return sv
}

// specialize reports the narrowed violation. ok is false when a lookup
// failed and the caller should fall back to the violation it already
// holds.
func (d *Document) specialize(v *Violation) (*Violation, bool) {
	// Carriers aggregate independent sub-failures of one subschema; the
	// first is the one a flat error scan would surface.
	if isCarrier(v) {
		return d.specialize(v.Causes[0])
	}
	if v.Keyword != "anyOf" && v.Keyword != "oneOf" {
		return v, true
	}

	inst, ok := v.Instance.(map[string]any)
	if !ok {
		return v, true
	}
	alts, ok := d.alternativesAt(v.SchemaPath)
	if !ok {
		return nil, false
	}

	if r, ok := inst["resource"].(string); ok {
		found := -1
		for i, alt := range alts {
			if alt.Kind == KindRef && refNamesResource(alt.Ref, r) {
				found = i
			}
		}
		if found >= 0 {
			// The cause whose schema path selects the matched
			// alternative. Alternative indices sit at a fixed offset for
			// the top-level policy union.
			cause, ok := causeForAlternative(v.Causes, found)
			if !ok {
				return nil, false
			}
			return d.specialize(cause)
		}
	}

	if t, ok := inst["type"].(string); ok {
		found := -1
		for i, alt := range alts {
			if alt.Kind == KindRef && strings.HasSuffix(alt.Ref, t) {
				found = i
			}
		}
		if found >= 0 {
			vidx, ok := alternativeOffset(v.Causes)
			if !ok {
				return nil, false
			}
			want := strconv.Itoa(found)
			for _, c := range v.Causes {
				segs := pointerSegments(c.SchemaPath)
				if vidx < len(segs) && segs[vidx] == want {
					return firstConcrete(c), true
				}
			}
		}
	}

	return v, true
}

// firstConcrete descends carriers to the first real keyword failure
// they aggregate.
func firstConcrete(v *Violation) *Violation {
	for isCarrier(v) {
		v = v.Causes[0]
	}
	return v
}

// alternativesAt returns the alternative list of the union node the
// schema path addresses.
func (d *Document) alternativesAt(path string) ([]Node, bool) {
	n, ok := d.NodeAt(path)
	if !ok {
		return nil, false
	}
	if n.Kind != KindAnyOf && n.Kind != KindOneOf {
		return nil, false
	}
	return n.Alts, true
}

// refNamesResource reports whether a reference addresses the given
// resource type. The type name is the second-to-last path segment of a
// per-type policy reference; comparison covers the trailing segments so
// "ec2" never matches "ec2-snapshot".
func refNamesResource(ref, resource string) bool {
	parts := strings.Split(ref, "/")
	n := len(parts)
	if n >= 3 {
		head := strings.Join(parts[:n-2], "/")
		return head == resource || parts[n-2] == resource || parts[n-1] == resource
	}
	for _, p := range parts {
		if p == resource {
			return true
		}
	}
	return false
}

// causeForAlternative selects the cause whose schema path picks the
// given alternative of the top-level policy union, where the
// alternative index is the fifth path segment.
func causeForAlternative(causes []*Violation, alt int) (*Violation, bool) {
	want := strconv.Itoa(alt)
	for _, c := range causes {
		segs := pointerSegments(c.SchemaPath)
		if len(segs) > 4 && segs[4] == want {
			return c, true
		}
	}
	return nil, false
}

// alternativeOffset derives, from the first cause's schema path, the
// segment position holding the alternative index of the innermost
// union. All causes of one union failure share the path prefix up to
// that union, so the offset applies to every sibling cause.
func alternativeOffset(causes []*Violation) (int, bool) {
	if len(causes) == 0 {
		return 0, false
	}
	segs := pointerSegments(causes[0].SchemaPath)
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i] == "oneOf" {
			return i + 1, true
		}
	}
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i] == "anyOf" {
			return i + 1, true
		}
	}
	return 0, false
}
