package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig_Success(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
base_currency: "USD"
lookback_days: 14
anomaly_threshold: 0.5

required_tags:
  - owner
  - team

providers:
  aws:
    enabled: true
    region: "eu-west-1"
  azure:
    enabled: true
    subscriptions:
      - id: "test-sub-1"
        name: "test-subscription"

http_port: 8080
log_level: "info"
database_path: "/tmp/test-ledger.db"
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}

	// Load config
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	// Verify parsed values
	if cfg.BaseCurrency != "USD" {
		t.Errorf("BaseCurrency = %v, want USD", cfg.BaseCurrency)
	}
	if cfg.LookbackDays != 14 {
		t.Errorf("LookbackDays = %v, want 14", cfg.LookbackDays)
	}
	if cfg.AnomalyThreshold != 0.5 {
		t.Errorf("AnomalyThreshold = %v, want 0.5", cfg.AnomalyThreshold)
	}
	if len(cfg.RequiredTags) != 2 {
		t.Errorf("Expected 2 required tags, got %d", len(cfg.RequiredTags))
	}
	if !cfg.Providers.AWS.Enabled {
		t.Error("Providers.AWS.Enabled = false, want true")
	}
	if cfg.Providers.AWS.Region != "eu-west-1" {
		t.Errorf("Providers.AWS.Region = %v, want eu-west-1", cfg.Providers.AWS.Region)
	}
	if len(cfg.Providers.Azure.Subscriptions) != 1 {
		t.Fatalf("Expected 1 azure subscription, got %d", len(cfg.Providers.Azure.Subscriptions))
	}
	if cfg.Providers.Azure.Subscriptions[0].ID != "test-sub-1" {
		t.Errorf("Subscription ID = %v, want test-sub-1", cfg.Providers.Azure.Subscriptions[0].ID)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("HTTPPort = %v, want 8080", cfg.HTTPPort)
	}
}

func TestLoad_ApplyDefaults_Success(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Minimal config with missing optional fields
	configContent := `
providers:
  aws:
    enabled: true
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	// Verify defaults
	tests := []struct {
		name string
		got  interface{}
		want interface{}
		desc string
	}{
		{"BaseCurrency", cfg.BaseCurrency, "EUR", "default base currency"},
		{"LookbackDays", cfg.LookbackDays, 7, "default lookback days"},
		{"FxLookbackDays", cfg.FxLookbackDays, 90, "default FX lookback days"},
		{"AnomalyThreshold", cfg.AnomalyThreshold, 0.3, "default anomaly threshold"},
		{"HighCostFloor", cfg.Severity.HighCostFloor, 500.0, "default high cost floor"},
		{"MediumCostFloor", cfg.Severity.MediumCostFloor, 200.0, "default medium cost floor"},
		{"HTTPPort", cfg.HTTPPort, 8080, "default HTTP port"},
		{"LogLevel", cfg.LogLevel, "info", "default log level"},
		{"DatabasePath", cfg.DatabasePath, "ledger.db", "default database path"},
		{"AWSMetric", cfg.Providers.AWS.Metric, "UnblendedCost", "default AWS metric"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s: got %v, want %v", tt.desc, tt.got, tt.want)
			}
		})
	}

	// Required tags default to the governance baseline
	wantTags := []string{"owner", "cost_center", "environment"}
	if len(cfg.RequiredTags) != len(wantTags) {
		t.Fatalf("RequiredTags = %v, want %v", cfg.RequiredTags, wantTags)
	}
	for i, tag := range wantTags {
		if cfg.RequiredTags[i] != tag {
			t.Errorf("RequiredTags[%d] = %v, want %v", i, cfg.RequiredTags[i], tag)
		}
	}
}

func TestLoad_EnvOverrides_Success(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
base_currency: "EUR"
lookback_days: 7
http_port: 8080
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}

	// Set environment variables
	os.Setenv("COST_LEDGER_BASE_CURRENCY", "USD")
	os.Setenv("COST_LEDGER_LOOKBACK_DAYS", "30")
	os.Setenv("COST_LEDGER_HTTP_PORT", "9090")
	os.Setenv("COST_LEDGER_LOG_LEVEL", "debug")
	defer func() {
		os.Unsetenv("COST_LEDGER_BASE_CURRENCY")
		os.Unsetenv("COST_LEDGER_LOOKBACK_DAYS")
		os.Unsetenv("COST_LEDGER_HTTP_PORT")
		os.Unsetenv("COST_LEDGER_LOG_LEVEL")
	}()

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	// Verify env overrides
	if cfg.BaseCurrency != "USD" {
		t.Errorf("BaseCurrency = %v, want USD (env override)", cfg.BaseCurrency)
	}
	if cfg.LookbackDays != 30 {
		t.Errorf("LookbackDays = %v, want 30 (env override)", cfg.LookbackDays)
	}
	if cfg.HTTPPort != 9090 {
		t.Errorf("HTTPPort = %v, want 9090 (env override)", cfg.HTTPPort)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %v, want debug (env override)", cfg.LogLevel)
	}
}

func TestLoad_RequiredTagsEnvOverride_Success(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
required_tags:
  - original
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}

	// Override global and per-provider tag sets via env vars
	os.Setenv("COST_LEDGER_REQUIRED_TAGS", "owner, team ,budget_code")
	os.Setenv("COST_LEDGER_REQUIRED_TAGS_GCP", "owner")
	defer func() {
		os.Unsetenv("COST_LEDGER_REQUIRED_TAGS")
		os.Unsetenv("COST_LEDGER_REQUIRED_TAGS_GCP")
	}()

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	want := []string{"owner", "team", "budget_code"}
	if len(cfg.RequiredTags) != len(want) {
		t.Fatalf("RequiredTags = %v, want %v", cfg.RequiredTags, want)
	}
	for i, tag := range want {
		if cfg.RequiredTags[i] != tag {
			t.Errorf("RequiredTags[%d] = %v, want %v", i, cfg.RequiredTags[i], tag)
		}
	}

	// Per-provider resolution: gcp overridden, others fall back to global
	gcpTags := cfg.RequiredTagsFor("gcp")
	if len(gcpTags) != 1 || gcpTags[0] != "owner" {
		t.Errorf("RequiredTagsFor(gcp) = %v, want [owner]", gcpTags)
	}
	awsTags := cfg.RequiredTagsFor("aws")
	if len(awsTags) != 3 {
		t.Errorf("RequiredTagsFor(aws) = %v, want global set", awsTags)
	}
}

func TestValidate_InvalidHTTPPort_Error(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"port too low", 0},
		{"port too high", 70000},
		{"negative port", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.HTTPPort = tt.port

			err := validate(cfg)
			if err == nil {
				t.Errorf("validate() error = nil, want error for port %d", tt.port)
			}
		})
	}
}

func TestValidate_LookbackDaysTooLow_Error(t *testing.T) {
	cfg := Default()
	cfg.LookbackDays = 0

	err := validate(cfg)
	if err == nil {
		t.Error("validate() error = nil, want error for lookback_days < 1")
	}
}

func TestValidate_NegativeAnomalyThreshold_Error(t *testing.T) {
	cfg := Default()
	cfg.AnomalyThreshold = -0.1

	err := validate(cfg)
	if err == nil {
		t.Error("validate() error = nil, want error for negative anomaly_threshold")
	}
}

func TestValidate_SeverityFloorsInverted_Error(t *testing.T) {
	cfg := Default()
	cfg.Severity.HighCostFloor = 100
	cfg.Severity.MediumCostFloor = 200

	err := validate(cfg)
	if err == nil {
		t.Error("validate() error = nil, want error when high floor below medium floor")
	}
}

func TestValidate_AzureEnabledWithoutSubscriptions_Error(t *testing.T) {
	cfg := Default()
	cfg.Providers.Azure.Enabled = true

	err := validate(cfg)
	if err == nil {
		t.Error("validate() error = nil, want error for azure without subscriptions or sample_path")
	}

	// A sample_path satisfies the requirement
	cfg.Providers.Azure.SamplePath = "testdata/azure.json"
	if err := validate(cfg); err != nil {
		t.Errorf("validate() error = %v, want nil with sample_path set", err)
	}
}

func TestValidate_EmptySubscriptionID_Error(t *testing.T) {
	cfg := Default()
	cfg.Providers.Azure.Enabled = true
	cfg.Providers.Azure.Subscriptions = []AzureSubscription{
		{ID: "valid-sub", Name: "test"},
		{ID: "", Name: "invalid"},
	}

	err := validate(cfg)
	if err == nil {
		t.Error("validate() error = nil, want error for empty subscription ID")
	}
}

func TestLoad_MissingFile_Error(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() error = nil, want error for missing file")
	}
}

func TestLoad_MalformedYAML_Error(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Invalid YAML - incorrect indentation and structure
	configContent := `
providers:
  aws:
    enabled: true
    invalid_nested:
- this: is
  : malformed
    yaml: [[[
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() error = nil, want error for malformed YAML")
	}
}
