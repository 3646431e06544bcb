package fx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/uccc/cloud-cost-ledger/internal/logger"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<gesmes:Envelope xmlns:gesmes="http://www.gesmes.org/xml/2002-08-01" xmlns="http://www.ecb.int/vocabulary/2002-08-01/eurofxref">
  <gesmes:subject>Reference rates</gesmes:subject>
  <Cube>
    <Cube time="2025-03-03">
      <Cube currency="USD" rate="1.0841"/>
      <Cube currency="GBP" rate="0.8271"/>
    </Cube>
    <Cube time="2025-03-02">
      <Cube currency="USD" rate="1.0833"/>
    </Cube>
  </Cube>
</gesmes:Envelope>`

func TestParseECBFeed(t *testing.T) {
	rates, err := parseECBFeed([]byte(sampleFeed), "")
	if err != nil {
		t.Fatalf("parseECBFeed() error = %v, want nil", err)
	}

	// 3 quoted rates + one synthesized EUR self-rate per day.
	if len(rates) != 5 {
		t.Fatalf("Expected 5 rates, got %d", len(rates))
	}

	byID := map[string]float64{}
	for _, rate := range rates {
		byID[rate.ID] = rate.Rate
	}
	if byID["2025-03-03_USD"] != 1.0841 {
		t.Errorf("USD rate = %v, want 1.0841", byID["2025-03-03_USD"])
	}
	if byID["2025-03-03_EUR"] != 1.0 {
		t.Errorf("EUR self-rate = %v, want 1.0", byID["2025-03-03_EUR"])
	}
	if byID["2025-03-02_EUR"] != 1.0 {
		t.Errorf("EUR self-rate = %v, want 1.0", byID["2025-03-02_EUR"])
	}
}

func TestParseECBFeed_CutoffFiltersOldDays(t *testing.T) {
	rates, err := parseECBFeed([]byte(sampleFeed), "2025-03-03")
	if err != nil {
		t.Fatalf("parseECBFeed() error = %v, want nil", err)
	}
	for _, rate := range rates {
		if rate.Date < "2025-03-03" {
			t.Errorf("rate %s predates cutoff", rate.ID)
		}
	}
}

func TestFetchRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	client := NewECBClient(logger.New("error"))
	client.url = srv.URL

	rates, err := client.FetchRates(context.Background(), 0)
	if err != nil {
		t.Fatalf("FetchRates() error = %v, want nil", err)
	}
	if len(rates) != 5 {
		t.Errorf("Expected 5 rates, got %d", len(rates))
	}
}

func TestFetchRates_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewECBClient(logger.New("error"))
	client.url = srv.URL

	if _, err := client.FetchRates(context.Background(), 0); err == nil {
		t.Error("FetchRates() should fail on non-200 responses")
	}
}
