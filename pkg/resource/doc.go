// Package resource holds the capability catalog: which resource types
// exist and which filters and actions each supports.
//
// A Registries value implements schema.Source, feeding both schema
// composition and vocabulary introspection. Catalogs are explicit
// values rather than package globals, so tests and embedders can build
// independent catalogs without interference:
//
//	catalog := resource.Builtin()
//	catalog.Type("ec2").RegisterFilter("custom", myFilter)
//	doc := schema.NewBuilder(catalog, logger).Build()
//
// # Aliases
//
// Registering one capability under several names declares aliases. The
// schema builder detects aliases by comparing implementations, emits
// the fragment once under the alphabetically first name, and links
// every other name to it by reference.
//
// # Built-in Catalog
//
// Builtin covers the governed resource types (ec2, asg, s3, ebs,
// ebs-snapshot, rds) with their tagging, lifecycle and notification
// actions plus the generic value/event filters and per-type matchers.
// It is a starting point: callers extend their copy at startup and
// rebuild the schema afterwards.
package resource
