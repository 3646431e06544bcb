package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/uccc/cloud-cost-ledger/internal/analytics"
	"github.com/uccc/cloud-cost-ledger/internal/clock"
	"github.com/uccc/cloud-cost-ledger/internal/collector"
	"github.com/uccc/cloud-cost-ledger/internal/config"
	"github.com/uccc/cloud-cost-ledger/internal/fx"
	"github.com/uccc/cloud-cost-ledger/internal/ledger"
	"github.com/uccc/cloud-cost-ledger/internal/logger"
)

// testLogger creates a logger for testing (error level to suppress test output)
func testLogger() *logger.Logger {
	return logger.New("error")
}

// fakeSource serves fixed records to the aggregator
type fakeSource struct {
	records []ledger.CostRecord
}

func (f *fakeSource) QueryRange(ctx context.Context, from, to string) ([]ledger.CostRecord, error) {
	var out []ledger.CostRecord
	for _, r := range f.records {
		if r.Date >= from && r.Date <= to {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSource) Freshness(ctx context.Context) ([]ledger.ProviderFreshness, error) {
	return []ledger.ProviderFreshness{{Provider: "aws", LastEntryDate: "2025-03-07"}}, nil
}

// noRates reports every currency as missing, so conversion falls back
// to the raw cost
type noRates struct{}

func (noRates) LatestRateAtOrBefore(ctx context.Context, currency, date string) (ledger.FxRate, bool, error) {
	return ledger.FxRate{}, false, nil
}

type fetcherStub struct{}

func (fetcherStub) Name() string { return "aws" }
func (fetcherStub) Fetch(ctx context.Context) ([]ledger.RawRecord, error) {
	return []ledger.RawRecord{{
		Date: "2025-03-07", Provider: "aws", AccountID: "acct", Service: "EC2",
		Cost: 1, Currency: "EUR",
	}}, nil
}

type sinkStub struct{}

func (sinkStub) UpsertRecords(ctx context.Context, records []ledger.CostRecord) error { return nil }

func testRecord(date, provider, service string, cost float64, tags map[string]string) ledger.CostRecord {
	return ledger.CostRecord{
		ID:        ledger.CostID(date, provider, "acct-1", service, "eu-west-1", "EUR"),
		Date:      date,
		Provider:  provider,
		AccountID: "acct-1",
		Service:   service,
		Region:    "eu-west-1",
		Cost:      cost,
		Currency:  "EUR",
		Tags:      tags,
	}
}

func newTestServer() *Server {
	source := &fakeSource{records: []ledger.CostRecord{
		testRecord("2025-03-06", "aws", "EC2", 100, map[string]string{"owner": "platform", "cost_center": "42", "environment": "prod"}),
		testRecord("2025-03-07", "aws", "S3", 25, map[string]string{"owner": "platform"}),
		testRecord("2025-03-07", "azure", "VM", 60, nil),
	}}
	agg := analytics.NewAggregator(source, fx.NewConverter("EUR", noRates{}))
	orch := collector.NewOrchestrator(sinkStub{}, []collector.Fetcher{fetcherStub{}}, nil, testLogger())

	s := NewServer(config.Default(), agg, orch, testLogger())
	return s.WithClock(clock.NewFakeClock(time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)))
}

func doRequest(t *testing.T, s *Server, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer()

	if rec := doRequest(t, s, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodGet, "/ready", ""); rec.Code != http.StatusOK {
		t.Errorf("GET /ready = %d, want 200", rec.Code)
	}
}

func TestTotal_DefaultWindow(t *testing.T) {
	s := newTestServer()

	rec := doRequest(t, s, http.MethodGet, "/api/v1/costs/total", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /costs/total = %d, want 200", rec.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if resp["total"] != 185.0 {
		t.Errorf("total = %v, want 185", resp["total"])
	}
	if resp["currency"] != "EUR" {
		t.Errorf("currency = %v, want EUR", resp["currency"])
	}
	// Default window: 7 lookback days ending today
	if resp["from"] != "2025-03-01" || resp["to"] != "2025-03-07" {
		t.Errorf("window = %v..%v, want 2025-03-01..2025-03-07", resp["from"], resp["to"])
	}
}

func TestTotal_InvalidWindow(t *testing.T) {
	s := newTestServer()

	rec := doRequest(t, s, http.MethodGet, "/api/v1/costs/total?from=not-a-date", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("GET with bad from = %d, want 400", rec.Code)
	}
}

func TestGroupedByProvider(t *testing.T) {
	s := newTestServer()

	rec := doRequest(t, s, http.MethodGet, "/api/v1/costs/by-provider", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /costs/by-provider = %d, want 200", rec.Code)
	}

	var rows []analytics.GroupTotal
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	// Ordered by total descending
	if rows[0].Key != "aws" || rows[0].TotalCost != 125 {
		t.Errorf("rows[0] = %+v, want aws/125", rows[0])
	}
}

func TestTagHygiene(t *testing.T) {
	s := newTestServer()

	rec := doRequest(t, s, http.MethodGet, "/api/v1/tag-hygiene", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /tag-hygiene = %d, want 200", rec.Code)
	}

	var report analytics.HygieneReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if report.Coverage.TotalCost != 185 {
		t.Errorf("TotalCost = %v, want 185", report.Coverage.TotalCost)
	}
	if report.Coverage.FullyTaggedCost != 100 {
		t.Errorf("FullyTaggedCost = %v, want 100", report.Coverage.FullyTaggedCost)
	}
	if report.Coverage.UntaggedCost != 60 {
		t.Errorf("UntaggedCost = %v, want 60", report.Coverage.UntaggedCost)
	}
}

func TestCollectAndPollRun(t *testing.T) {
	s := newTestServer()

	rec := doRequest(t, s, http.MethodPost, "/api/v1/collect", `{"providers": ["aws"]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("POST /collect = %d, want 202", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	runID := resp["run_id"]
	if runID == "" {
		t.Fatal("run_id missing from response")
	}

	// Poll until the run settles
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = doRequest(t, s, http.MethodGet, "/api/v1/runs/"+runID, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("GET /runs/%s = %d, want 200", runID, rec.Code)
		}
		var snap collector.RunSnapshot
		if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
			t.Fatalf("response is not JSON: %v", err)
		}
		if snap.State == collector.RunStateSuccess || snap.State == collector.RunStateError {
			if snap.State != collector.RunStateSuccess {
				t.Errorf("run state = %v, want success", snap.State)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("run %s did not settle", runID)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCollect_UnknownProvider(t *testing.T) {
	s := newTestServer()

	rec := doRequest(t, s, http.MethodPost, "/api/v1/collect", `{"providers": ["oracle"]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("POST /collect unknown provider = %d, want 400", rec.Code)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestServer()

	rec := doRequest(t, s, http.MethodGet, "/api/v1/runs/no-such-run", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /runs/no-such-run = %d, want 404", rec.Code)
	}
}

func TestExportCSV(t *testing.T) {
	s := newTestServer()

	rec := doRequest(t, s, http.MethodGet, "/api/v1/export/costs.csv", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /export/costs.csv = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %v, want text/csv", ct)
	}

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 4 { // header + 3 records
		t.Fatalf("CSV lines = %d, want 4", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,date,provider") {
		t.Errorf("header = %v, want id,date,provider,...", lines[0])
	}
	if !strings.Contains(rec.Body.String(), "cost_center=42;environment=prod;owner=platform") {
		t.Error("CSV missing flattened sorted tags")
	}
}

func TestSnapshot(t *testing.T) {
	s := newTestServer()

	rec := doRequest(t, s, http.MethodGet, "/api/v1/snapshot", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /snapshot = %d, want 200", rec.Code)
	}

	var snap analytics.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if snap.Total != 185 {
		t.Errorf("Total = %v, want 185", snap.Total)
	}
	if len(snap.TagCoverage) != 2 {
		t.Errorf("TagCoverage providers = %d, want 2", len(snap.TagCoverage))
	}
}
