package telemetry

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config contains the telemetry configuration for the warden engine.
type Config struct {
	// ServiceName is the name of the service for telemetry identification.
	ServiceName string `yaml:"service_name" validate:"required"`

	// ServiceVersion is the version of the service.
	ServiceVersion string `yaml:"service_version" validate:"required"`

	// Environment specifies the deployment environment (dev, staging, prod).
	Environment string `yaml:"environment"`

	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Events contains event publishing configuration.
	Events EventsConfig `yaml:"events"`

	// ResourceAttributes are additional resource attributes for telemetry.
	ResourceAttributes map[string]string `yaml:"resource_attributes"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error, fatal).
	Level string `yaml:"level" validate:"required,oneof=trace debug info warn error fatal"`

	// Format specifies the log format (console, json).
	Format string `yaml:"format" validate:"required,oneof=console json"`

	// Output specifies where logs are written (stdout, stderr, file path).
	Output string `yaml:"output"`

	// EnableCaller adds file:line caller information to logs.
	EnableCaller bool `yaml:"enable_caller"`

	// EnableSampling enables log sampling for high-frequency logs.
	EnableSampling bool `yaml:"enable_sampling"`

	// SamplingInitial is the number of messages logged per second initially.
	SamplingInitial int `yaml:"sampling_initial"`

	// SamplingThereafter logs every Nth message after the initial sample.
	SamplingThereafter int `yaml:"sampling_thereafter"`

	// TimeFormat specifies the timestamp format (unix, rfc3339, etc.).
	TimeFormat string `yaml:"time_format"`
}

// TracingConfig configures distributed tracing.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	Enabled bool `yaml:"enabled"`

	// Exporter specifies the trace exporter (otlp, stdout, none).
	Exporter string `yaml:"exporter" validate:"omitempty,oneof=otlp stdout none"`

	// Endpoint is the exporter endpoint (e.g., "localhost:4317" for OTLP).
	Endpoint string `yaml:"endpoint"`

	// SamplingRate is the trace sampling rate (0.0 to 1.0).
	SamplingRate float64 `yaml:"sampling_rate" validate:"gte=0,lte=1"`

	// MaxExportBatchSize is the maximum batch size for export.
	MaxExportBatchSize int `yaml:"max_export_batch_size"`

	// ExportTimeout is the timeout for trace export.
	ExportTimeout time.Duration `yaml:"export_timeout"`

	// Headers are additional headers for the OTLP exporter.
	Headers map[string]string `yaml:"headers"`

	// Insecure disables TLS for the exporter connection.
	Insecure bool `yaml:"insecure"`
}

// MetricsConfig configures metrics collection.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the address for the metrics HTTP endpoint.
	ListenAddress string `yaml:"listen_address"`

	// Path is the HTTP path for metrics (default: /metrics).
	Path string `yaml:"path"`

	// Namespace is the metrics namespace prefix.
	Namespace string `yaml:"namespace"`

	// DefaultHistogramBuckets are the default latency buckets in seconds.
	DefaultHistogramBuckets []float64 `yaml:"default_histogram_buckets"`
}

// EventsConfig configures the event publishing system.
type EventsConfig struct {
	// Enabled controls whether event publishing is active.
	Enabled bool `yaml:"enabled"`

	// BufferSize is the size of the event buffer.
	BufferSize int `yaml:"buffer_size"`

	// FlushInterval is how often to flush buffered events.
	FlushInterval time.Duration `yaml:"flush_interval"`

	// MaxBatchSize is the maximum number of events to publish in one batch.
	MaxBatchSize int `yaml:"max_batch_size"`

	// EnableAsync enables asynchronous event publishing.
	EnableAsync bool `yaml:"enable_async"`
}

// DefaultConfig returns a default telemetry configuration.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "cloudwarden",
		ServiceVersion: "dev",
		Environment:    "development",
		Logging: LoggingConfig{
			Level:              "info",
			Format:             "console",
			Output:             "stderr",
			EnableCaller:       false,
			EnableSampling:     false,
			SamplingInitial:    100,
			SamplingThereafter: 100,
			TimeFormat:         "rfc3339",
		},
		Tracing: TracingConfig{
			Enabled:            false,
			Exporter:           "stdout",
			Endpoint:           "",
			SamplingRate:       1.0,
			MaxExportBatchSize: 512,
			ExportTimeout:      30 * time.Second,
			Headers:            make(map[string]string),
			Insecure:           true,
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			ListenAddress: ":9090",
			Path:          "/metrics",
			Namespace:     "cloudwarden",
			DefaultHistogramBuckets: []float64{
				0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0,
			},
		},
		Events: EventsConfig{
			Enabled:       true,
			BufferSize:    1000,
			FlushInterval: 5 * time.Second,
			MaxBatchSize:  100,
			EnableAsync:   false,
		},
		ResourceAttributes: make(map[string]string),
	}
}

// ProductionConfig returns a production-optimized telemetry configuration.
func ProductionConfig() *Config {
	cfg := DefaultConfig()
	cfg.Environment = "production"
	cfg.Logging.Format = "json"
	cfg.Logging.EnableSampling = true
	cfg.Logging.TimeFormat = "unix"
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.SamplingRate = 0.1
	cfg.Tracing.Insecure = false
	cfg.Metrics.Enabled = true
	cfg.Events.EnableAsync = true
	return cfg
}

// DevelopmentConfig returns a development-optimized telemetry configuration.
func DevelopmentConfig() *Config {
	cfg := DefaultConfig()
	cfg.Environment = "development"
	cfg.Logging.Level = "debug"
	cfg.Logging.EnableCaller = true
	cfg.Tracing.Exporter = "stdout"
	cfg.Tracing.SamplingRate = 1.0
	return cfg
}

// validate checks struct tags; conditional requirements that the tags
// cannot express are checked by hand in Validate.
var validate = validator.New()

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("telemetry config: %w", err)
	}

	if c.Tracing.Enabled && c.Tracing.Exporter == "" {
		return fmt.Errorf("trace exporter is required when tracing is enabled")
	}

	if c.Metrics.Enabled && c.Metrics.ListenAddress == "" {
		return fmt.Errorf("metrics listen address is required when metrics are enabled")
	}

	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return fmt.Errorf("event buffer size must be positive, got: %d", c.Events.BufferSize)
	}

	return nil
}
