package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Configuration validation constants
const (
	MinPort         = 1     // Minimum valid port number
	MaxPort         = 65535 // Maximum valid port number
	MinLookbackDays = 1     // Minimum reporting lookback window

	// Default values
	DefaultBaseCurrency     = "EUR"
	DefaultLookbackDays     = 7
	DefaultFxLookbackDays   = 90
	DefaultAnomalyThreshold = 0.3
	DefaultHighCostFloor    = 500.0
	DefaultMediumCostFloor  = 200.0
	DefaultHTTPPort         = 8080
	DefaultLogLevel         = "info"
	DefaultDatabasePath     = "ledger.db"
	DefaultCollectInterval  = 86400 // once a day, in seconds
	DefaultAPITimeout       = 30    // provider API timeout in seconds
)

// DefaultRequiredTags is the baseline governance tag set applied when
// the configuration does not override it.
var DefaultRequiredTags = []string{"owner", "cost_center", "environment"}

// AWSConfig configures the AWS Cost Explorer fetcher.
type AWSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Region     string `yaml:"region"`
	Metric     string `yaml:"metric"` // UnblendedCost, AmortizedCost, ...
	SamplePath string `yaml:"sample_path"`
}

// AzureSubscription identifies one Azure subscription to collect.
type AzureSubscription struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// AzureConfig configures the Azure Cost Management fetcher.
type AzureConfig struct {
	Enabled       bool                `yaml:"enabled"`
	Subscriptions []AzureSubscription `yaml:"subscriptions"`
	SamplePath    string              `yaml:"sample_path"`
}

// GCPConfig configures the GCP billing-export fetcher.
type GCPConfig struct {
	Enabled            bool   `yaml:"enabled"`
	ProjectID          string `yaml:"project_id"`
	ExportURL          string `yaml:"export_url"`
	ServiceAccountJSON string `yaml:"service_account_json"` // path to key file
	SamplePath         string `yaml:"sample_path"`
}

// ProvidersConfig groups per-provider fetcher settings.
type ProvidersConfig struct {
	AWS   AWSConfig   `yaml:"aws"`
	Azure AzureConfig `yaml:"azure"`
	GCP   GCPConfig   `yaml:"gcp"`
}

// SeverityConfig holds the cost floors used when classifying anomaly
// signals.
type SeverityConfig struct {
	HighCostFloor   float64 `yaml:"high_cost_floor"`
	MediumCostFloor float64 `yaml:"medium_cost_floor"`
}

// Config represents the application configuration
type Config struct {
	BaseCurrency     string         `yaml:"base_currency"`
	LookbackDays     int            `yaml:"lookback_days"`
	FxLookbackDays   int            `yaml:"fx_lookback_days"`
	AnomalyThreshold float64        `yaml:"anomaly_threshold"`
	Severity         SeverityConfig `yaml:"severity"`

	RequiredTags         []string            `yaml:"required_tags"`
	ProviderRequiredTags map[string][]string `yaml:"provider_required_tags"`

	Providers ProvidersConfig `yaml:"providers"`

	DatabasePath    string `yaml:"database_path"`
	HTTPPort        int    `yaml:"http_port"`
	LogLevel        string `yaml:"log_level"`
	CollectInterval int    `yaml:"collect_interval"` // seconds
	APITimeout      int    `yaml:"api_timeout"`      // provider API timeout in seconds
	ParallelFetch   bool   `yaml:"parallel_fetch"`
	SlackWebhookURL string `yaml:"slack_webhook_url"`
}

// Load loads configuration from a YAML file and applies environment variable overrides
func Load(path string) (*Config, error) {
	// Read YAML file
	// #nosec G304 -- Config file path is provided by administrator via CLI flag, not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply defaults
	applyDefaults(&cfg)

	// Override with environment variables
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment variable error: %w", err)
	}

	// Validate
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every field at its default value,
// for running without a config file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// RequiredTagsFor resolves the required-tag set for a provider: the
// per-provider override when present, otherwise the global set.
func (c *Config) RequiredTagsFor(provider string) []string {
	if tags, ok := c.ProviderRequiredTags[provider]; ok && len(tags) > 0 {
		return tags
	}
	return c.RequiredTags
}

// EnabledProviders lists the providers a collection run may select from.
func (c *Config) EnabledProviders() []string {
	var providers []string
	if c.Providers.AWS.Enabled {
		providers = append(providers, "aws")
	}
	if c.Providers.Azure.Enabled {
		providers = append(providers, "azure")
	}
	if c.Providers.GCP.Enabled {
		providers = append(providers, "gcp")
	}
	return providers
}

// applyDefaults sets default values for configuration
func applyDefaults(cfg *Config) {
	if cfg.BaseCurrency == "" {
		cfg.BaseCurrency = DefaultBaseCurrency
	}
	if cfg.LookbackDays == 0 {
		cfg.LookbackDays = DefaultLookbackDays
	}
	if cfg.FxLookbackDays == 0 {
		cfg.FxLookbackDays = DefaultFxLookbackDays
	}
	if cfg.AnomalyThreshold == 0 {
		cfg.AnomalyThreshold = DefaultAnomalyThreshold
	}
	if cfg.Severity.HighCostFloor == 0 {
		cfg.Severity.HighCostFloor = DefaultHighCostFloor
	}
	if cfg.Severity.MediumCostFloor == 0 {
		cfg.Severity.MediumCostFloor = DefaultMediumCostFloor
	}
	if len(cfg.RequiredTags) == 0 {
		cfg.RequiredTags = append([]string(nil), DefaultRequiredTags...)
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = DefaultDatabasePath
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = DefaultHTTPPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.CollectInterval == 0 {
		cfg.CollectInterval = DefaultCollectInterval
	}
	if cfg.APITimeout == 0 {
		cfg.APITimeout = DefaultAPITimeout
	}
	if cfg.Providers.AWS.Metric == "" {
		cfg.Providers.AWS.Metric = "UnblendedCost"
	}
	if cfg.Providers.AWS.Region == "" {
		cfg.Providers.AWS.Region = "us-east-1"
	}
}

// applyEnvOverrides applies environment variable overrides to configuration
func applyEnvOverrides(cfg *Config) error {
	// Override base currency
	if val := os.Getenv("COST_LEDGER_BASE_CURRENCY"); val != "" {
		cfg.BaseCurrency = val
	}

	// Override reporting lookback window
	if val := os.Getenv("COST_LEDGER_LOOKBACK_DAYS"); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid COST_LEDGER_LOOKBACK_DAYS: must be an integer, got %q", val)
		}
		cfg.LookbackDays = i
	}

	// Override anomaly threshold
	if val := os.Getenv("COST_LEDGER_ANOMALY_THRESHOLD"); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid COST_LEDGER_ANOMALY_THRESHOLD: must be a number, got %q", val)
		}
		cfg.AnomalyThreshold = f
	}

	// Override HTTP port
	if val := os.Getenv("COST_LEDGER_HTTP_PORT"); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid COST_LEDGER_HTTP_PORT: must be an integer, got %q", val)
		}
		cfg.HTTPPort = i
	}

	// Override log level
	if val := os.Getenv("COST_LEDGER_LOG_LEVEL"); val != "" {
		cfg.LogLevel = val
	}

	// Override database path
	if val := os.Getenv("COST_LEDGER_DATABASE_PATH"); val != "" {
		cfg.DatabasePath = val
	}

	// Override Slack webhook
	if val := os.Getenv("COST_LEDGER_SLACK_WEBHOOK_URL"); val != "" {
		cfg.SlackWebhookURL = val
	}

	// Override the global required tags (comma-separated)
	// Example: COST_LEDGER_REQUIRED_TAGS="owner,team"
	if val := os.Getenv("COST_LEDGER_REQUIRED_TAGS"); val != "" {
		if tags := splitTags(val); len(tags) > 0 {
			cfg.RequiredTags = tags
		}
	}

	// Per-provider required-tag overrides
	// Example: COST_LEDGER_REQUIRED_TAGS_AWS="owner,team"
	for _, provider := range []string{"aws", "azure", "gcp"} {
		if val := os.Getenv("COST_LEDGER_REQUIRED_TAGS_" + strings.ToUpper(provider)); val != "" {
			if tags := splitTags(val); len(tags) > 0 {
				if cfg.ProviderRequiredTags == nil {
					cfg.ProviderRequiredTags = map[string][]string{}
				}
				cfg.ProviderRequiredTags[provider] = tags
			}
		}
	}

	return nil
}

func splitTags(val string) []string {
	var tags []string
	for _, tag := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.BaseCurrency == "" {
		return fmt.Errorf("base_currency must not be empty")
	}

	if cfg.LookbackDays < MinLookbackDays {
		return fmt.Errorf("lookback_days must be at least %d, got %d", MinLookbackDays, cfg.LookbackDays)
	}

	if cfg.AnomalyThreshold <= 0 {
		return fmt.Errorf("anomaly_threshold must be positive, got %v", cfg.AnomalyThreshold)
	}

	if cfg.Severity.HighCostFloor < cfg.Severity.MediumCostFloor {
		return fmt.Errorf("severity.high_cost_floor (%v) must not be below severity.medium_cost_floor (%v)",
			cfg.Severity.HighCostFloor, cfg.Severity.MediumCostFloor)
	}

	if len(cfg.RequiredTags) == 0 {
		return fmt.Errorf("required_tags must not be empty")
	}

	if cfg.HTTPPort < MinPort || cfg.HTTPPort > MaxPort {
		return fmt.Errorf("http_port must be between %d and %d", MinPort, MaxPort)
	}

	if cfg.CollectInterval <= 0 {
		return fmt.Errorf("collect_interval must be positive, got %d", cfg.CollectInterval)
	}

	// Validate API timeout
	if cfg.APITimeout <= 0 {
		return fmt.Errorf("api_timeout must be positive, got %d", cfg.APITimeout)
	}

	if cfg.APITimeout > 300 {
		return fmt.Errorf("api_timeout should not exceed 300 seconds (5 minutes), got %d", cfg.APITimeout)
	}

	// An enabled Azure provider needs either live subscriptions or a sample file
	if cfg.Providers.Azure.Enabled && len(cfg.Providers.Azure.Subscriptions) == 0 && cfg.Providers.Azure.SamplePath == "" {
		return fmt.Errorf("azure provider enabled but no subscriptions or sample_path configured")
	}
	for i, sub := range cfg.Providers.Azure.Subscriptions {
		if sub.ID == "" {
			return fmt.Errorf("azure subscription at index %d has empty ID", i)
		}
	}

	return nil
}
