package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the warden engine.
type Metrics struct {
	config MetricsConfig

	// Schema metrics
	schemaBuilds        prometheus.Counter
	schemaBuildDuration prometheus.Histogram

	// Validation metrics
	documentsValidated *prometheus.CounterVec
	violations         *prometheus.CounterVec

	// Run metrics
	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	// Policy metrics
	policiesExecuted *prometheus.CounterVec
	policyDuration   *prometheus.HistogramVec
	resourcesMatched *prometheus.CounterVec

	// Provider metrics
	providerCalls    *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	providerErrors   *prometheus.CounterVec

	// Store metrics
	storeDuration *prometheus.HistogramVec

	// Error metrics
	errorsByClass *prometheus.CounterVec

	// System metrics
	activeRuns prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	// Create a new registry
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		// Schema metrics
		schemaBuilds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schema_builds_total",
				Help:      "Total number of schema documents composed",
			},
		),
		schemaBuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "schema_build_duration_seconds",
				Help:      "Duration of schema composition in seconds",
				Buckets:   buckets,
			},
		),

		// Validation metrics
		documentsValidated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_validated_total",
				Help:      "Total number of policy documents validated",
			},
			[]string{"result"},
		),
		violations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "violations_total",
				Help:      "Total number of schema violations by failed keyword",
			},
			[]string{"keyword"},
		),

		// Run metrics
		runsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of policy runs started",
			},
			[]string{"mode"},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of policy runs completed",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of policy run execution in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		// Policy metrics
		policiesExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policies_executed_total",
				Help:      "Total number of policies executed",
			},
			[]string{"status"},
		),
		policyDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "policy_duration_seconds",
				Help:      "Duration of single policy execution in seconds",
				Buckets:   buckets,
			},
			[]string{"resource_type"},
		),
		resourcesMatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resources_matched_total",
				Help:      "Total number of resources matched by policies",
			},
			[]string{"resource_type"},
		),

		// Provider metrics
		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_calls_total",
				Help:      "Total number of resource provider calls",
			},
			[]string{"provider", "operation"},
		),
		providerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_call_duration_seconds",
				Help:      "Duration of resource provider calls in seconds",
				Buckets:   buckets,
			},
			[]string{"provider", "operation"},
		),
		providerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_errors_total",
				Help:      "Total number of resource provider errors",
			},
			[]string{"provider", "operation"},
		),

		// Store metrics
		storeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Duration of run-history store operations in seconds",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),

		// Error metrics
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),

		// System metrics
		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_runs",
				Help:      "Current number of active policy runs",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.schemaBuilds,
		m.schemaBuildDuration,
		m.documentsValidated,
		m.violations,
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.policiesExecuted,
		m.policyDuration,
		m.resourcesMatched,
		m.providerCalls,
		m.providerDuration,
		m.providerErrors,
		m.storeDuration,
		m.errorsByClass,
		m.activeRuns,
	)

	return m, nil
}

// Schema Metrics

// RecordSchemaBuild records one schema composition with its duration.
func (m *Metrics) RecordSchemaBuild(duration time.Duration) {
	if m.schemaBuilds == nil {
		return
	}
	m.schemaBuilds.Inc()
	m.schemaBuildDuration.Observe(duration.Seconds())
}

// Validation Metrics

// RecordValidation records a validated document and its outcome.
func (m *Metrics) RecordValidation(valid bool) {
	if m.documentsValidated == nil {
		return
	}
	result := "valid"
	if !valid {
		result = "invalid"
	}
	m.documentsValidated.WithLabelValues(result).Inc()
}

// RecordViolations records schema violations grouped by failed keyword.
func (m *Metrics) RecordViolations(keyword string, count int) {
	if m.violations == nil {
		return
	}
	m.violations.WithLabelValues(keyword).Add(float64(count))
}

// Run Metrics

// RecordRunStarted increments the counter for started runs.
func (m *Metrics) RecordRunStarted(mode string) {
	if m.runsStarted == nil {
		return
	}
	m.runsStarted.WithLabelValues(mode).Inc()
	m.activeRuns.Inc()
}

// RecordRunCompleted records a completed run with its status and duration.
func (m *Metrics) RecordRunCompleted(status string, duration time.Duration) {
	if m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeRuns.Dec()
}

// Policy Metrics

// RecordPolicyExecution records the execution of a single policy.
func (m *Metrics) RecordPolicyExecution(resourceType, status string, duration time.Duration) {
	if m.policiesExecuted == nil {
		return
	}
	m.policiesExecuted.WithLabelValues(status).Inc()
	m.policyDuration.WithLabelValues(resourceType).Observe(duration.Seconds())
}

// RecordResourcesMatched adds to the matched-resources counter.
func (m *Metrics) RecordResourcesMatched(resourceType string, count int) {
	if m.resourcesMatched == nil {
		return
	}
	m.resourcesMatched.WithLabelValues(resourceType).Add(float64(count))
}

// Provider Metrics

// RecordProviderCall records a resource provider call with its duration.
func (m *Metrics) RecordProviderCall(provider, operation string, duration time.Duration) {
	if m.providerCalls == nil {
		return
	}
	m.providerCalls.WithLabelValues(provider, operation).Inc()
	m.providerDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// RecordProviderError records a resource provider error.
func (m *Metrics) RecordProviderError(provider, operation string) {
	if m.providerErrors == nil {
		return
	}
	m.providerErrors.WithLabelValues(provider, operation).Inc()
}

// Store Metrics

// RecordStoreOperation records a run-history store operation duration.
func (m *Metrics) RecordStoreOperation(operation string, duration time.Duration) {
	if m.storeDuration == nil {
		return
	}
	m.storeDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// Error Metrics

// RecordError records an error by class.
func (m *Metrics) RecordError(errorClass string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
