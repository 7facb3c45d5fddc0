// =============================================================================
// PO Reconcile - Configuration Module
// =============================================================================
//
// This module loads and validates the main application configuration from a
// YAML file. Defaults are applied before validation so a minimal config file
// only needs the API connection settings.
//
// Secrets (the API token) are never placed in the YAML file; they come from
// the environment (see cmd/root.go, which loads .env via godotenv).
//
// =============================================================================

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mkardell/po-reconcile/internal/errs"
	"github.com/mkardell/po-reconcile/internal/types"
)

// =============================================================================
// DURATION
// =============================================================================

// Duration is a time.Duration that unmarshals from YAML strings like "2s"
// or "500ms" (yaml.v3 has no native duration support).
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to the standard library type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the full run configuration.
type Config struct {
	// =========================================================================
	// EXTERNAL SYSTEM SETTINGS
	// =========================================================================

	// API contains the connection settings for the order-management system.
	API APIConfig `yaml:"api"`

	// =========================================================================
	// FILE LOCATIONS
	// =========================================================================

	// CacheDB is the path to the local sqlite reference cache.
	// Default: "./data/refcache.db"
	CacheDB string `yaml:"cache_db"`

	// MappingFile is the path to the account-number -> item-name mapping
	// exported by the finance team. JSON or YAML.
	// Default: "./mapping.json"
	MappingFile string `yaml:"mapping_file"`

	// CodeListFile is the tabular work list of order transaction codes
	// (one code per row, header row first). CSV or XLSX.
	// Default: "./codes.csv"
	CodeListFile string `yaml:"code_list_file"`

	// ReportDir is where run reports are written.
	// Default: "./reports"
	ReportDir string `yaml:"report_dir"`

	// ArchiveDir is where processed code lists are moved after a live run.
	// Default: "./archive"
	ArchiveDir string `yaml:"archive_dir"`

	// =========================================================================
	// RECONCILIATION SETTINGS
	// =========================================================================

	// Environment selects the cache partition and excluded-item policy:
	// "production" or "sandbox". Default: "production"
	Environment types.Environment `yaml:"environment"`

	// ExcludedItemNumber is the catalog item number that must never be
	// selected as a conversion target (a placeholder item the finance team
	// keeps for unmapped charges).
	ExcludedItemNumber string `yaml:"excluded_item_number"`

	// OrderDelay is the fixed pause inserted between orders to respect
	// external rate limits. Default: 1s
	OrderDelay Duration `yaml:"order_delay"`

	// RetryAttempts bounds retries of transient fetch failures.
	// Default: 3
	RetryAttempts uint `yaml:"retry_attempts"`

	// RetryInitialInterval is the first backoff delay; subsequent delays
	// grow exponentially. Default: 500ms
	RetryInitialInterval Duration `yaml:"retry_initial_interval"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls verbosity: "trace", "debug", "info", "warn", "error".
	// Default: "info". Overridden by the --log-level and -v flags.
	LogLevel string `yaml:"log_level"`
}

// APIConfig holds the connection settings for the external system.
type APIConfig struct {
	// BaseURL is the REST endpoint root, e.g.
	// "https://<account>.example-erp.com/services/rest".
	BaseURL string `yaml:"base_url"`

	// AccountID is the tenant account identifier.
	AccountID string `yaml:"account_id"`

	// TokenEnv names the environment variable holding the API token.
	// Default: "PO_RECONCILE_TOKEN"
	TokenEnv string `yaml:"token_env"`

	// Timeout is the per-request HTTP timeout. Default: 30s
	Timeout Duration `yaml:"timeout"`
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads, defaults and validates the configuration at path.
// Any failure is an errs.ErrConfig: the run must not start on a bad config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.NewConfigError(path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errs.NewConfigError(path, fmt.Errorf("invalid YAML: %w", err))
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, errs.NewConfigError(path, err)
	}

	return cfg, nil
}

// applyDefaults fills zero-valued fields with their documented defaults.
func (c *Config) applyDefaults() {
	if c.CacheDB == "" {
		c.CacheDB = "./data/refcache.db"
	}
	if c.MappingFile == "" {
		c.MappingFile = "./mapping.json"
	}
	if c.CodeListFile == "" {
		c.CodeListFile = "./codes.csv"
	}
	if c.ReportDir == "" {
		c.ReportDir = "./reports"
	}
	if c.ArchiveDir == "" {
		c.ArchiveDir = "./archive"
	}
	if c.Environment == "" {
		c.Environment = types.EnvProduction
	}
	if c.OrderDelay == 0 {
		c.OrderDelay = Duration(time.Second)
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
	if c.RetryInitialInterval == 0 {
		c.RetryInitialInterval = Duration(500 * time.Millisecond)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.API.TokenEnv == "" {
		c.API.TokenEnv = "PO_RECONCILE_TOKEN"
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = Duration(30 * time.Second)
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if !c.Environment.Valid() {
		return fmt.Errorf("environment must be %q or %q, got %q",
			types.EnvProduction, types.EnvSandbox, c.Environment)
	}
	if c.OrderDelay < 0 {
		return fmt.Errorf("order_delay must not be negative")
	}
	return nil
}

// Token resolves the API token from the configured environment variable.
func (c *Config) Token() string {
	return os.Getenv(c.API.TokenEnv)
}
