package resource

import (
	"github.com/cloudwarden/cloudwarden/pkg/schema"
)

// Builtin returns the built-in capability catalog. Every call builds a
// fresh, independent catalog, so callers may extend or shrink their
// copy without affecting others.
func Builtin() *Registries {
	r := NewRegistries()

	// The generic filters are shared across types: within each type's
	// registry the builder links them to the global fragments by name,
	// and reusing one implementation keeps vocabulary docs consistent.
	value := NewCapability(schema.ValueFilterSchema(),
		"Match resources by comparing a field against a value.")
	event := NewCapability(schema.EventFilterSchema(),
		"Match on a field of the event that triggered the policy.")

	registerEC2(r.Type("ec2"), value, event)
	registerASG(r.Type("asg"), value, event)
	registerS3(r.Type("s3"), value, event)
	registerEBS(r.Type("ebs"), value)
	registerEBSSnapshot(r.Type("ebs-snapshot"), value)
	registerRDS(r.Type("rds"), value, event)
	return r
}

func registerEC2(r *Registry, value, event *Capability) {
	r.RegisterFilter("value", value)
	r.RegisterFilter("event", event)
	registerBooleanFilters(r)

	r.RegisterFilter("tag-count", NewCapability(
		typeSchema([]string{"tag-count"}, map[string]schema.Node{
			"count": minZero(schema.Integer()),
			"op":    schema.EnumStrings(schema.ComparisonOps()),
		}),
		"Match instances by the number of user tags, default threshold 8."))
	r.RegisterFilter("instance-age", NewCapability(
		typeSchema([]string{"instance-age"}, map[string]schema.Node{
			"days": minZero(schema.Number()),
			"op":   schema.EnumStrings(schema.ComparisonOps()),
		}),
		"Match instances launched at least a given number of days ago."))
	r.RegisterFilter("offhour", NewCapability(
		typeSchema([]string{"offhour"}, map[string]schema.Node{
			"offhour":    schema.Integer(),
			"default_tz": schema.String(),
			"tag":        schema.String(),
			"weekends":   schema.Boolean(),
		}),
		"Match instances eligible for off-hours shutdown."))
	r.RegisterFilter("onhour", NewCapability(
		typeSchema([]string{"onhour"}, map[string]schema.Node{
			"onhour":     schema.Integer(),
			"default_tz": schema.String(),
			"tag":        schema.String(),
			"weekends":   schema.Boolean(),
		}),
		"Match instances eligible for on-hours startup."))

	registerTagActions(r)
	registerMarkForOp(r, "stop", "terminate", "snapshot")
	r.RegisterAction("start", NewCapability(
		typeSchema([]string{"start"}, nil),
		"Start stopped instances."))
	r.RegisterAction("stop", NewCapability(
		typeSchema([]string{"stop"}, nil),
		"Stop running instances."))
	r.RegisterAction("terminate", NewCapability(
		typeSchema([]string{"terminate"}, map[string]schema.Node{
			"force": schema.Boolean(),
		}),
		"Terminate instances, optionally disabling termination protection."))
	r.RegisterAction("snapshot", NewCapability(
		typeSchema([]string{"snapshot"}, map[string]schema.Node{
			"copy-tags": schema.Array(schema.String()),
		}),
		"Snapshot the volumes attached to matched instances."))
	registerNotify(r)

	// Server-side instance queries are an ec2 extension. The envelope
	// carries the structural constraint; the overlay advertises the
	// capability on this type's composed definition.
	r.SetOverlay("query", schema.Any())
}

func registerASG(r *Registry, value, event *Capability) {
	r.RegisterFilter("value", value)
	r.RegisterFilter("event", event)
	registerBooleanFilters(r)

	r.RegisterFilter("capacity-delta", NewCapability(
		typeSchema([]string{"capacity-delta"}, nil), ""))

	r.RegisterAction("suspend", NewCapability(
		typeSchema([]string{"suspend"}, nil),
		"Suspend scaling processes and stop group instances."))
	r.RegisterAction("resume", NewCapability(
		typeSchema([]string{"resume"}, map[string]schema.Node{
			"delay": minZero(schema.Number()),
		}),
		"Resume suspended scaling processes and instances."))
	r.RegisterAction("delete", NewCapability(
		typeSchema([]string{"delete"}, map[string]schema.Node{
			"force": schema.Boolean(),
		}),
		"Delete the scaling group, forcing instance termination when set."))
	registerMarkForOp(r, "suspend", "resume", "delete")
	registerNotify(r)
}

func registerS3(r *Registry, value, event *Capability) {
	r.RegisterFilter("value", value)
	r.RegisterFilter("event", event)
	registerBooleanFilters(r)

	r.RegisterFilter("s3-encryption-missing", NewCapability(
		typeSchema([]string{"s3-encryption-missing"}, nil),
		"Match buckets whose policy lacks mandatory encryption statements."))
	r.RegisterFilter("global-grants", NewCapability(
		typeSchema([]string{"global-grants"}, map[string]schema.Node{
			"allow_website": schema.Boolean(),
		}),
		"Match buckets granting access to all users."))

	// Deliberately no remove-tag family here: bucket tag hygiene is
	// handled through replacement, so only additive tagging exists.
	r.RegisterAction("tag", NewCapability(
		typeSchema([]string{"tag", "mark"}, map[string]schema.Node{
			"key":   schema.String(),
			"value": schema.String(),
			"tags":  schema.Typed("object"),
		}),
		"Apply tags to matched buckets."), "mark")
	r.RegisterAction("encrypt-keys", NewCapability(
		typeSchema([]string{"encrypt-keys"}, map[string]schema.Node{
			"report-only": schema.Boolean(),
			"glacier":     schema.Boolean(),
		}),
		"Encrypt every unencrypted key in matched buckets."))
	r.RegisterAction("attach-encrypt", NewCapability(
		typeSchema([]string{"attach-encrypt"}, nil),
		"Attach an encrypt-on-write function to matched buckets."))
	r.RegisterAction("encryption-policy", NewCapability(
		typeSchema([]string{"encryption-policy"}, nil),
		"Attach a bucket policy statement denying unencrypted uploads."))
	r.RegisterAction("no-op", NewCapability(
		typeSchema([]string{"no-op"}, nil),
		"Do nothing; useful when a policy only needs to report matches."))
	registerMarkForOp(r, "encryption-policy")
	registerNotify(r)
}

func registerEBS(r *Registry, value *Capability) {
	r.RegisterFilter("value", value)
	registerBooleanFilters(r)

	r.RegisterAction("delete", NewCapability(
		typeSchema([]string{"delete"}, nil),
		"Delete matched volumes."))
	r.RegisterAction("snapshot", NewCapability(
		typeSchema([]string{"snapshot"}, nil),
		"Snapshot matched volumes."))
	r.RegisterAction("encrypt-instance-volumes", NewCapability(
		typeSchema([]string{"encrypt-instance-volumes"}, map[string]schema.Node{
			"key": schema.String(),
		}, "key"),
		"Replace matched instance volumes with encrypted copies."))
	registerNotify(r)
}

func registerEBSSnapshot(r *Registry, value *Capability) {
	r.RegisterFilter("value", value)
	registerBooleanFilters(r)

	// Snapshot age matches the shared age fragment shape exactly; the
	// definition is still emitted per type like any other fragment.
	r.RegisterFilter("age", NewCapability(schema.AgeFilterSchema(),
		"Match snapshots older than a given number of days."))

	r.RegisterAction("delete", NewCapability(
		typeSchema([]string{"delete"}, map[string]schema.Node{
			"skip-ami-snapshots": schema.Boolean(),
		}),
		"Delete matched snapshots."))
	r.RegisterAction("copy", NewCapability(
		typeSchema([]string{"copy"}, map[string]schema.Node{
			"target_region": schema.String(),
			"target_key":    schema.String(),
			"encrypted":     schema.Boolean(),
		}, "target_region"), ""))
	registerNotify(r)
}

func registerRDS(r *Registry, value, event *Capability) {
	r.RegisterFilter("value", value)
	r.RegisterFilter("event", event)
	registerBooleanFilters(r)

	r.RegisterFilter("default-vpc", NewCapability(
		typeSchema([]string{"default-vpc"}, nil),
		"Match database instances placed in the default VPC."))

	registerTagActions(r)
	registerMarkForOp(r, "delete", "snapshot")
	r.RegisterAction("delete", NewCapability(
		typeSchema([]string{"delete"}, map[string]schema.Node{
			"skip-snapshot": schema.Boolean(),
		}),
		"Delete matched database instances, snapshotting first by default."))
	r.RegisterAction("snapshot", NewCapability(
		typeSchema([]string{"snapshot"}, nil),
		"Snapshot matched database instances."))
	r.RegisterAction("retention", NewCapability(
		typeSchema([]string{"retention"}, map[string]schema.Node{
			"days": minZero(schema.Number()),
		}, "days"),
		"Enforce a minimum backup retention window."))
	registerNotify(r)
}

// registerBooleanFilters adds the and/or combinators. Each gets its own
// implementation so names never collapse as aliases of one another; the
// composed item alternatives come from the builder, not the fragment.
func registerBooleanFilters(r *Registry) {
	r.RegisterFilter("and", NewCapability(schema.Typed("array"),
		"Combine nested filters so every one must match."))
	r.RegisterFilter("or", NewCapability(schema.Typed("array"),
		"Combine nested filters so at least one must match."))
}

// registerTagActions adds the tag action family with its aliases: tag
// doubles as mark, and remove-tag as unmark and untag.
func registerTagActions(r *Registry) {
	r.RegisterAction("tag", NewCapability(
		typeSchema([]string{"tag", "mark"}, map[string]schema.Node{
			"key":   schema.String(),
			"value": schema.String(),
			"tags":  schema.Typed("object"),
		}),
		"Apply tags to matched resources."), "mark")
	r.RegisterAction("remove-tag", NewCapability(
		typeSchema([]string{"remove-tag", "unmark", "untag"}, map[string]schema.Node{
			"tags": schema.Array(schema.String()),
		}),
		"Remove tags from matched resources."), "unmark", "untag")
}

// registerMarkForOp adds the delayed-operation marker restricted to the
// operations the resource type supports.
func registerMarkForOp(r *Registry, ops ...string) {
	r.RegisterAction("mark-for-op", NewCapability(
		typeSchema([]string{"mark-for-op"}, map[string]schema.Node{
			"tag":  schema.String(),
			"msg":  schema.String(),
			"days": minZero(schema.Number()),
			"op":   schema.EnumStrings(ops),
		}),
		"Tag resources for a follow-up operation after a delay."))
}

// registerNotify adds the notify action shared by every resource type.
func registerNotify(r *Registry) {
	r.RegisterAction("notify", NewCapability(
		typeSchema([]string{"notify"}, map[string]schema.Node{
			"to":        schema.Array(schema.String()),
			"subject":   schema.String(),
			"template":  schema.String(),
			"transport": schema.Typed("object"),
		}, "to"),
		"Send matched resources to recipients over a message transport."))
}

// typeSchema builds the conventional capability fragment: a closed
// object whose type property names the capability, plus any extra
// required properties.
func typeSchema(typeNames []string, props map[string]schema.Node, required ...string) schema.Node {
	f := false
	all := make(map[string]schema.Node, len(props)+1)
	all["type"] = schema.EnumStrings(typeNames)
	for k, v := range props {
		all[k] = v
	}
	n := schema.Object(all, append([]string{"type"}, required...)...)
	n.AdditionalProperties = &f
	return n
}

// minZero constrains a numeric leaf to non-negative values.
func minZero(n schema.Node) schema.Node {
	zero := 0.0
	n.Minimum = &zero
	return n
}
