// Package telemetry provides comprehensive observability instrumentation for CloudWarden.
//
// The telemetry package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing into a unified system
// for monitoring and debugging CloudWarden operations.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with multiple exporters
//  3. Metrics Collection - Prometheus metrics for operational insights
//  4. Event Publishing - Async event system for audit and notifications
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "cloudwarden"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context propagation:
//
//	logger := tel.Logger.NewComponentLogger("executor")
//	logger = logger.WithRunID("run-123").WithPolicy("ec2-stale-dev")
//	logger.Info("Evaluating policy")
//	logger.WithError(err).Error("Policy evaluation failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into request flow and performance:
//
//	ctx, span := tel.Tracer.Start(ctx, "operation.name")
//	defer span.End()
//
//	// Add attributes
//	span.SetAttributes(
//	    attribute.String("policy.name", policyName),
//	    attribute.String("resource.type", resourceType),
//	)
//
//	// Record events
//	span.AddEvent("validation.complete")
//
//	// Record errors
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported exporters: OTLP (production), Stdout (development)
//
// # Metrics
//
// Prometheus metrics track system behavior and performance:
//
//	// Record run execution
//	tel.Metrics.RecordRunStarted("pull")
//	tel.Metrics.RecordRunCompleted("succeeded", duration)
//
//	// Record policy execution
//	tel.Metrics.RecordPolicyExecution("ec2", "succeeded", duration)
//	tel.Metrics.RecordResourcesMatched("ec2", matched)
//
//	// Record schema activity
//	tel.Metrics.RecordSchemaBuild(duration)
//	tel.Metrics.RecordValidation(valid)
//	tel.Metrics.RecordViolations("additionalProperties", count)
//
//	// Record errors
//	tel.Metrics.RecordError("provider")
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics)
//
// # Event Publishing
//
// The event system provides async publishing with buffering and filtering:
//
//	// Publish events
//	tel.Events.PublishRunStarted(runID, mode, policyCount)
//	tel.Events.PublishPolicyEvaluated(runID, policy, resourceType, status, matched, duration)
//	tel.Events.PublishSchemaBuilt(resourceCount, duration)
//
//	// Subscribe to events
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel("warning"))
//
// Event filters: FilterByLevel, FilterByType, FilterByRunID, FilterByPolicy
//
// # Context Helpers
//
// High-level helpers simplify common instrumentation patterns:
//
//	// Instrument an operation
//	ic := telemetry.StartOperation(ctx, "schema.build",
//	    attribute.Int("resource.count", count))
//	defer ic.End(err)
//
//	ic.Logger.Info("Composing schema document")
//
//	// Run context
//	ctx = telemetry.WithRunContext(ctx, runID, mode, policyCount)
//	defer telemetry.EndRunContext(ctx, runID, status, err)
//
//	// Policy context
//	ctx = telemetry.WithPolicyContext(ctx, runID, policyName, resourceType)
//	defer telemetry.EndPolicyContext(ctx, runID, policyName, resourceType, status, matched, err)
//
//	// Provider operation
//	err := telemetry.RecordProviderOperation(ctx, "static", "query", func() error {
//	    return provider.Query(ctx, resourceType)
//	})
//
// # Configuration
//
// The package provides pre-configured setups for different environments:
//
//	// Development (verbose logging, stdout traces, full sampling)
//	cfg := telemetry.DevelopmentConfig()
//
//	// Production (JSON logs, OTLP traces, 10% sampling)
//	cfg := telemetry.ProductionConfig()
//
//	// Custom configuration
//	cfg := &telemetry.Config{
//	    ServiceName: "cloudwarden",
//	    ServiceVersion: "1.0.0",
//	    Environment: "staging",
//	    Logging: telemetry.LoggingConfig{
//	        Level: "info",
//	        Format: "json",
//	    },
//	    Tracing: telemetry.TracingConfig{
//	        Enabled: true,
//	        Exporter: "otlp",
//	        Endpoint: "otel-collector:4317",
//	        SamplingRate: 0.1,
//	    },
//	    Metrics: telemetry.MetricsConfig{
//	        Enabled: true,
//	        ListenAddress: ":9090",
//	    },
//	}
//
// # Performance Considerations
//
// The telemetry system is designed for minimal overhead:
//
//  - Structured logging uses zerolog's zero-allocation approach
//  - Tracing uses sampling to reduce data volume in production
//  - Metrics use Prometheus's efficient storage format
//  - Events are buffered and batched to reduce I/O
//  - All operations are non-blocking when possible
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending data:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("Telemetry shutdown error: %v", err)
//	}
//
// This ensures:
//  - All buffered events are published
//  - All pending traces are exported
//  - Metrics are finalized
//
// # Integration with the Policy Engine
//
// The engine components automatically integrate with telemetry when available:
//
//  1. Run execution: Automatic run-level tracing and metrics
//  2. Policies: Per-policy tracing with resource type context
//  3. Providers: Provider call tracking and error classification
//  4. Schema: Build and validation timing, violation counts by keyword
//  5. Store: Per-operation write and query timing
//
// # Exporters
//
// Tracing supports multiple exporters:
//
//  - "stdout": Print traces to stdout (development)
//  - "otlp": Export via OTLP/gRPC (production, works with collectors)
//  - "none": Generate traces but don't export (testing)
//
// Configure via TracingConfig.Exporter and TracingConfig.Endpoint
//
// # Common Metrics
//
// Key metrics exposed:
//
//  - cloudwarden_schema_builds_total
//  - cloudwarden_schema_build_duration_seconds
//  - cloudwarden_documents_validated_total{result}
//  - cloudwarden_violations_total{keyword}
//  - cloudwarden_runs_started_total{mode}
//  - cloudwarden_runs_completed_total{status}
//  - cloudwarden_run_duration_seconds{status}
//  - cloudwarden_policies_executed_total{status}
//  - cloudwarden_policy_duration_seconds{resource_type}
//  - cloudwarden_resources_matched_total{resource_type}
//  - cloudwarden_provider_calls_total{provider,operation}
//  - cloudwarden_store_operation_duration_seconds{operation}
//  - cloudwarden_errors_by_class_total{class}
//  - cloudwarden_active_runs
//
// # Best Practices
//
//  1. Always use context to propagate telemetry
//  2. Use component-specific loggers for clarity
//  3. Add meaningful attributes to spans
//  4. Record both success and failure metrics
//  5. Use appropriate log levels
//  6. Filter events to avoid overwhelming subscribers
//  7. Monitor telemetry overhead in production
//  8. Configure sampling for high-volume systems
//  9. Always call defer span.End() after starting a span
//  10. Shut down gracefully to avoid data loss
//
// # Security Considerations
//
//  - Never log sensitive data (credentials, keys, tokens)
//  - Sanitize resource identifiers if they contain PII
//  - Use secure connections (TLS) for trace exporters in production
//  - Limit metrics endpoint access via network policies
//  - Consider event data before adding to audit logs
//
package telemetry
