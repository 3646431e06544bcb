package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/uccc/cloud-cost-ledger/internal/ledger"
)

// SampleFetcher reads raw records from a JSON file. It stands in for a
// live provider when credentials are unavailable, for demos and tests.
type SampleFetcher struct {
	name string
	path string
}

// NewSampleFetcher creates a fetcher that serves the given provider
// name from a JSON file containing an array of raw records.
func NewSampleFetcher(name, path string) *SampleFetcher {
	return &SampleFetcher{name: name, path: path}
}

// Name returns the provider name this sample file stands in for.
func (f *SampleFetcher) Name() string { return f.name }

// Fetch loads and decodes the sample file.
func (f *SampleFetcher) Fetch(ctx context.Context) ([]ledger.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// #nosec G304 -- Sample path comes from the operator's config file
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sample file: %w", err)
	}

	var raws []ledger.RawRecord
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("failed to parse sample file %s: %w", f.path, err)
	}

	// The file may omit the provider field; stamp it with ours
	for i := range raws {
		if raws[i].Provider == "" {
			raws[i].Provider = f.name
		}
	}

	return raws, nil
}
