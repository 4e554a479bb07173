// Package config provides the warden application configuration.
//
// # Overview
//
// The config package defines the configuration tree shared by every
// warden command: policy document locations, the run-history store,
// output rendering, and the telemetry sub-configuration. Configuration
// is loaded from a YAML file and merged over built-in defaults, so a
// partial file only overrides what it names.
//
// # Usage Example
//
//	cfg, err := config.Load("/etc/warden/warden.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Or start from the defaults:
//
//	cfg := config.DefaultConfig()
//	cfg.Policies.Paths = []string{"./policies"}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Configuration Structure
//
// A full configuration file looks like:
//
//	policies:
//	  paths:
//	    - /etc/warden/policies
//	  watch: false
//	store:
//	  path: /var/lib/warden/warden.db
//	output:
//	  format: table
//	telemetry:
//	  service_name: cloudwarden
//	  service_version: "1.0.0"
//	  logging:
//	    level: info
//	    format: json
//
// # Validation
//
// Validate checks struct tags via go-playground/validator and defers to
// the telemetry package for its own subtree. Unknown YAML keys are
// rejected at load time so typos fail loudly instead of silently
// keeping a default.
package config
