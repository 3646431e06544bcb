package providers

import (
	"context"
	"fmt"

	"github.com/uccc/cloud-cost-ledger/internal/collector"
	"github.com/uccc/cloud-cost-ledger/internal/config"
	"github.com/uccc/cloud-cost-ledger/internal/logger"
)

// Build assembles one fetcher per enabled provider. A configured
// sample_path takes precedence over live credentials so the system can
// run without any cloud access.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) ([]collector.Fetcher, error) {
	var fetchers []collector.Fetcher

	if cfg.Providers.AWS.Enabled {
		if path := cfg.Providers.AWS.SamplePath; path != "" {
			fetchers = append(fetchers, NewSampleFetcher("aws", path))
		} else {
			f, err := NewAWSFetcher(ctx, cfg, log)
			if err != nil {
				return nil, fmt.Errorf("aws fetcher: %w", err)
			}
			fetchers = append(fetchers, f)
		}
	}

	if cfg.Providers.Azure.Enabled {
		if path := cfg.Providers.Azure.SamplePath; path != "" {
			fetchers = append(fetchers, NewSampleFetcher("azure", path))
		} else {
			f, err := NewAzureFetcher(cfg, log)
			if err != nil {
				return nil, fmt.Errorf("azure fetcher: %w", err)
			}
			fetchers = append(fetchers, f)
		}
	}

	if cfg.Providers.GCP.Enabled {
		if path := cfg.Providers.GCP.SamplePath; path != "" {
			fetchers = append(fetchers, NewSampleFetcher("gcp", path))
		} else {
			f, err := NewGCPFetcher(ctx, cfg, log)
			if err != nil {
				return nil, fmt.Errorf("gcp fetcher: %w", err)
			}
			fetchers = append(fetchers, f)
		}
	}

	if len(fetchers) == 0 {
		return nil, fmt.Errorf("no providers enabled in configuration")
	}

	return fetchers, nil
}
