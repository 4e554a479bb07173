package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwarden/cloudwarden/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	// Create configuration
	cfg := telemetry.DefaultConfig()
	cfg.ServiceName = "cloudwarden"
	cfg.ServiceVersion = "1.0.0"

	// Initialize telemetry
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	// Start metrics server (non-blocking)
	if err := tel.StartMetricsServer(); err != nil {
		panic(err)
	}

	// Add telemetry to context
	ctx := tel.WithContext(context.Background())

	// Use telemetry
	logger := telemetry.FromContext(ctx)
	logger.Info("Application started")

	// Output can vary, so we don't specify output for this example
}

// Example_structuredLogging demonstrates structured logging features.
func Example_structuredLogging() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific logger
	logger := tel.Logger.NewComponentLogger("executor")

	// Add context fields
	logger = logger.WithFields(map[string]interface{}{
		"run_id": "run-123",
		"policy": "ec2-stale-dev",
	})

	// Log at different levels
	logger.Debug("Loading policy documents")
	logger.Info("Policy matched resources")
	logger.Warn("Policy matched no resources")

	// Log with error
	err := fmt.Errorf("provider timeout")
	logger.WithError(err).Error("Failed to query resources")

	// Output varies, no output specified
}

// Example_distributedTracing demonstrates distributed tracing usage.
func Example_distributedTracing() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Tracing.Exporter = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start a span
	ctx, span := tel.Tracer.Start(ctx, "run.execute")
	defer span.End()

	// Add attributes
	span.SetAttributes(
		attribute.String("run.id", "run-789"),
		attribute.Int("run.policies", 5),
	)

	// Add event
	span.AddEvent("validation.complete")

	// Nested span
	ctx, childSpan := tel.Tracer.Start(ctx, "policy.execute")
	defer childSpan.End()

	childSpan.SetAttributes(
		attribute.String("policy.name", "ec2-stale-dev"),
		attribute.String("resource.type", "ec2"),
	)

	// Simulate work
	time.Sleep(10 * time.Millisecond)

	// Record success
	telemetry.RecordSuccess(childSpan)

	// Output varies, no output specified
}

// Example_metricsCollection demonstrates metrics collection.
func Example_metricsCollection() {
	cfg := telemetry.DefaultConfig()
	cfg.Metrics.Enabled = true

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Record run metrics
	tel.Metrics.RecordRunStarted("pull")

	// Simulate run execution
	start := time.Now()
	time.Sleep(50 * time.Millisecond)
	duration := time.Since(start)

	tel.Metrics.RecordRunCompleted("succeeded", duration)

	// Record policy metrics
	tel.Metrics.RecordPolicyExecution(
		"ec2",               // resource type
		"succeeded",         // status
		25*time.Millisecond, // duration
	)
	tel.Metrics.RecordResourcesMatched("ec2", 10)

	// Record schema metrics
	tel.Metrics.RecordSchemaBuild(5 * time.Millisecond)
	tel.Metrics.RecordValidation(true)
	tel.Metrics.RecordViolations("enum", 2)

	// Record provider and store metrics
	tel.Metrics.RecordProviderCall("static", "query", 15*time.Millisecond)
	tel.Metrics.RecordStoreOperation("save_run", 3*time.Millisecond)

	// Record error metrics
	tel.Metrics.RecordError("provider")

	fmt.Println("Metrics recorded successfully")
	// Output: Metrics recorded successfully
}

// Example_eventPublishing demonstrates event publishing and subscription.
func Example_eventPublishing() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false // Synchronous delivery

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe to events
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
	}, nil) // No filter, receive all events

	// Publish events
	tel.Events.PublishRunStarted("run-123", "pull", 2)
	tel.Events.PublishPolicyEvaluated("run-123", "ec2-stale-dev", "ec2", "succeeded", 3, 25*time.Millisecond)
	tel.Events.PublishSchemaBuilt(6, 10*time.Millisecond)

	// Output:
	// Event: run.started - Run run-123 started in pull mode with 2 policies
	// Event: policy.evaluated - Policy ec2-stale-dev evaluated: succeeded (3 resources)
	// Event: schema.built - Schema document composed for 6 resource types
}

// Example_runInstrumentation demonstrates instrumenting a complete run.
func Example_runInstrumentation() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start run context
	runID := "run-123"
	ctx = telemetry.WithRunContext(ctx, runID, "pull", 1)

	// Execute run (simulated)
	executeRun(ctx, runID)

	// End run context
	telemetry.EndRunContext(ctx, runID, "succeeded", nil)

	fmt.Println("Run instrumentation complete")
	// Output: Run instrumentation complete
}

func executeRun(ctx context.Context, runID string) {
	// Simulate policy evaluation
	policyName := "ec2-stale-dev"
	resourceType := "ec2"

	ctx = telemetry.WithPolicyContext(ctx, runID, policyName, resourceType)

	// Get logger from context
	logger := telemetry.FromContext(ctx)
	logger.Info("Evaluating policy")

	// Simulate work
	time.Sleep(10 * time.Millisecond)

	// End policy context
	telemetry.EndPolicyContext(ctx, runID, policyName, resourceType, "succeeded", 3, nil)
}

// Example_providerInstrumentation demonstrates instrumenting provider calls.
func Example_providerInstrumentation() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Add provider context
	ctx = telemetry.WithProviderContext(ctx, "static")

	// Record provider operation
	err := telemetry.RecordProviderOperation(ctx, "static", "query", func() error {
		// Simulate provider work
		time.Sleep(15 * time.Millisecond)
		return nil
	})

	if err == nil {
		fmt.Println("Provider operation completed successfully")
	}

	// Output: Provider operation completed successfully
}

// Example_instrumentedOperation demonstrates using the InstrumentedContext helper.
func Example_instrumentedOperation() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start instrumented operation
	ic := telemetry.StartOperation(ctx, "schema.validate",
		attribute.String("policy.path", "policies/dev.yml"),
	)
	defer ic.End(nil)

	// Use the instrumented context
	ic.Logger.Info("Validating policy document")

	// Simulate validation
	time.Sleep(5 * time.Millisecond)

	ic.Logger.Debug("Policy document validation complete")

	fmt.Println("Operation instrumentation complete")
	// Output: Operation instrumentation complete
}

// Example_eventFiltering demonstrates event filtering.
func Example_eventFiltering() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe with level filter (only warnings and errors)
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Important event: %s\n", event.Type)
	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))

	// Subscribe with type filter (only schema violations)
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Violation: %s\n", event.Policy)
	}, telemetry.FilterByType(telemetry.EventTypePolicyViolation))

	// Publish various events
	tel.Events.PublishRunStarted("run-123", "pull", 1)                                  // Info - filtered by level filter
	tel.Events.PublishPolicyViolation("ec2-stale-dev", "/policies/0", "not permitted") // Error - passes both filters
	tel.Events.PublishRunFailed("run-123", "store unavailable")                         // Error - passes level filter

	// Output:
	// Important event: policy.violation
	// Violation: ec2-stale-dev
	// Important event: run.failed
}

// Example_productionConfiguration demonstrates production-ready configuration.
func Example_productionConfiguration() {
	cfg := telemetry.ProductionConfig()

	// Customize for your environment
	cfg.ServiceName = "cloudwarden"
	cfg.ServiceVersion = "1.2.3"
	cfg.Environment = "production"

	// Configure OTLP exporter
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.Endpoint = "otel-collector.monitoring.svc.cluster.local:4317"
	cfg.Tracing.SamplingRate = 0.1 // 10% sampling
	cfg.Tracing.Insecure = false   // Use TLS in production

	// Configure metrics
	cfg.Metrics.ListenAddress = ":9090"
	cfg.Metrics.Namespace = "cloudwarden"

	// Configure events
	cfg.Events.BufferSize = 10000
	cfg.Events.FlushInterval = 5 * time.Second

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	fmt.Println("Production configuration validated")
	// Output: Production configuration validated
}

// Example_errorRecording demonstrates error recording with proper classification.
func Example_errorRecording() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start a span
	ctx, span := tel.Tracer.Start(ctx, "provider.query")
	defer span.End()

	// Simulate an error
	err := fmt.Errorf("connection timeout")

	if err != nil {
		// Record error on span
		telemetry.RecordError(span, err)

		// Record error metric with classification
		tel.Metrics.RecordError("provider")

		// Log error
		logger := telemetry.FromContext(ctx)
		logger.WithError(err).Error("Operation failed")
	}

	fmt.Println("Error recording complete")
	// Output: Error recording complete
}

// Example_multipleComponents demonstrates telemetry in a multi-component system.
func Example_multipleComponents() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific loggers
	builderLogger := tel.Logger.NewComponentLogger("schema-builder")
	loaderLogger := tel.Logger.NewComponentLogger("loader")
	executorLogger := tel.Logger.NewComponentLogger("executor")

	builderLogger.Info("Schema document composed")
	loaderLogger.Info("Policy files loaded")
	executorLogger.Info("Run started")

	fmt.Println("Multi-component logging complete")
	// Output: Multi-component logging complete
}
