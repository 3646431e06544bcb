package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/uccc/cloud-cost-ledger/internal/config"
	"github.com/uccc/cloud-cost-ledger/internal/ledger"
	"github.com/uccc/cloud-cost-ledger/internal/logger"
)

// maxExportBytes caps how much of a billing export we read into memory.
const maxExportBytes = 64 << 20 // 64 MiB

// GCPFetcher retrieves cost rows from a GCP billing export endpoint
// that serves normalized JSON rows, optionally authenticated with a
// service account.
type GCPFetcher struct {
	cfg        *config.Config
	logger     *logger.Logger
	httpClient *http.Client
}

// NewGCPFetcher creates a billing-export fetcher. When a service
// account key file is configured, requests carry OAuth2 credentials
// with the cloud-platform read-only scope.
func NewGCPFetcher(ctx context.Context, cfg *config.Config, log *logger.Logger) (*GCPFetcher, error) {
	timeout := time.Duration(cfg.APITimeout) * time.Second
	httpClient := &http.Client{Timeout: timeout}

	if keyPath := cfg.Providers.GCP.ServiceAccountJSON; keyPath != "" {
		// #nosec G304 -- Key file path comes from the operator's config file
		keyData, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read GCP service account key: %w", err)
		}

		creds, err := google.CredentialsFromJSON(ctx, keyData,
			"https://www.googleapis.com/auth/cloud-platform.read-only")
		if err != nil {
			return nil, fmt.Errorf("failed to parse GCP credentials: %w", err)
		}

		httpClient = oauth2.NewClient(ctx, creds.TokenSource)
		httpClient.Timeout = timeout
	}

	return &GCPFetcher{
		cfg:        cfg,
		logger:     log,
		httpClient: httpClient,
	}, nil
}

// Name returns the canonical provider name.
func (f *GCPFetcher) Name() string { return "gcp" }

// Fetch downloads and decodes the export endpoint.
func (f *GCPFetcher) Fetch(ctx context.Context) ([]ledger.RawRecord, error) {
	url := f.cfg.Providers.GCP.ExportURL
	if url == "" {
		return nil, fmt.Errorf("gcp export_url not configured")
	}

	f.logger.Debug("Fetching GCP billing export", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create export request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch billing export: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("billing export returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxExportBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read billing export: %w", err)
	}

	var raws []ledger.RawRecord
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("failed to parse billing export: %w", err)
	}

	for i := range raws {
		if raws[i].Provider == "" {
			raws[i].Provider = "gcp"
		}
		if raws[i].AccountID == "" {
			raws[i].AccountID = f.cfg.Providers.GCP.ProjectID
		}
	}

	return raws, nil
}
