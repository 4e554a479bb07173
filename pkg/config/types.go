package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cloudwarden/cloudwarden/pkg/telemetry"
)

// Config is the warden application configuration. It is loaded from a
// YAML file and shared read-only by every command.
type Config struct {
	// Policies configures where policy documents are loaded from.
	Policies PoliciesConfig `yaml:"policies"`

	// Store configures the run-history store.
	Store StoreConfig `yaml:"store"`

	// Output configures report rendering.
	Output OutputConfig `yaml:"output"`

	// Telemetry configures logging, tracing, metrics and events.
	Telemetry *telemetry.Config `yaml:"telemetry"`
}

// PoliciesConfig configures policy document loading.
type PoliciesConfig struct {
	// Paths are files and directories searched for policy documents
	// when a command is given none. Directories are walked recursively
	// for .yml, .yaml and .json files.
	Paths []string `yaml:"paths"`

	// Watch reloads policies when a watched file changes. Every reload
	// rebuilds the schema document from scratch and swaps it in whole.
	Watch bool `yaml:"watch"`
}

// StoreConfig configures run-history persistence.
type StoreConfig struct {
	// Path is the SQLite database file. ":memory:" keeps history for
	// the process lifetime only.
	Path string `yaml:"path" validate:"required"`

	// MaxOpenConns and MaxIdleConns bound the connection pool. Zero
	// selects the store defaults.
	MaxOpenConns int `yaml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int `yaml:"max_idle_conns" validate:"gte=0"`

	// ConnMaxLifetime recycles pooled connections after this long.
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// OutputConfig configures how run and report output is rendered.
type OutputConfig struct {
	// Format selects the report rendering (table, json).
	Format string `yaml:"format" validate:"required,oneof=table json"`

	// Dir receives per-run artifacts when set.
	Dir string `yaml:"dir"`
}

// DefaultConfig returns the configuration used when no config file is
// given.
func DefaultConfig() *Config {
	return &Config{
		Policies: PoliciesConfig{
			Paths: []string{"policies"},
			Watch: false,
		},
		Store: StoreConfig{
			Path:            "warden.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Output: OutputConfig{
			Format: "table",
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// validate checks struct tags; cross-field requirements the tags cannot
// express are checked by hand in Validate.
var validate = validator.New()

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("warden config: %w", err)
	}

	if c.Telemetry != nil {
		if err := c.Telemetry.Validate(); err != nil {
			return err
		}
	}

	return nil
}
