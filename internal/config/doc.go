// Package config provides configuration management for the cost ledger.
//
// This package handles loading configuration from YAML files, applying
// environment variable overrides, setting defaults, and validating the
// configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (highest priority)
//  2. YAML configuration file
//  3. Default values (lowest priority)
//
// Supported environment variables:
//   - COST_LEDGER_BASE_CURRENCY: Reporting currency (ISO 4217 code)
//   - COST_LEDGER_LOOKBACK_DAYS: Default reporting window in days (minimum: 1)
//   - COST_LEDGER_ANOMALY_THRESHOLD: Day-over-day ratio that flags an anomaly
//   - COST_LEDGER_HTTP_PORT: HTTP server port (1-65535)
//   - COST_LEDGER_LOG_LEVEL: Log level (debug, info, warn, error)
//   - COST_LEDGER_DATABASE_PATH: Path to the SQLite database file
//   - COST_LEDGER_SLACK_WEBHOOK_URL: Webhook for anomaly notifications
//   - COST_LEDGER_REQUIRED_TAGS: Comma-separated global required-tag set
//   - COST_LEDGER_REQUIRED_TAGS_<PROVIDER>: Per-provider required-tag override
//
// Example configuration file (config.yaml):
//
//	base_currency: "EUR"
//	lookback_days: 7
//	anomaly_threshold: 0.3
//
//	required_tags:
//	  - owner
//	  - cost_center
//	  - environment
//
//	provider_required_tags:
//	  gcp:
//	    - owner
//
//	providers:
//	  aws:
//	    enabled: true
//	    region: "eu-west-1"
//	  azure:
//	    enabled: true
//	    subscriptions:
//	      - id: "sub-123"
//	        name: "Production"
//
//	database_path: "ledger.db"
//	http_port: 8080
//	log_level: "info"
//
// Example usage:
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//		log.Fatalf("Failed to load config: %v", err)
//	}
//
//	fmt.Printf("Base currency: %s\n", cfg.BaseCurrency)
package config
