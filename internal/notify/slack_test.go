package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/uccc/cloud-cost-ledger/internal/analytics"
	"github.com/uccc/cloud-cost-ledger/internal/logger"
)

func testSignals() []analytics.Signal {
	return []analytics.Signal{
		{
			Severity:      analytics.SeverityHigh,
			Provider:      "aws",
			EntityType:    "service",
			EntityID:      "EC2",
			ImpactCost:    612.50,
			ImpactPct:     1.2,
			Timeframe:     analytics.Timeframe{Start: "2025-03-01", End: "2025-03-07", CompareStart: "2025-02-22", CompareEnd: "2025-02-28"},
			RootCauseHint: "Service cost spike vs previous period",
		},
	}
}

func TestSlackNotifier_NotifySignals(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Errorf("payload is not JSON: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, "EUR", logger.New("error"))
	if err := n.NotifySignals(context.Background(), testSignals()); err != nil {
		t.Fatalf("NotifySignals() error = %v, want nil", err)
	}

	text := gotBody["text"]
	for _, want := range []string{"HIGH", "aws", "EC2", "EUR", "+612.50"} {
		if !strings.Contains(text, want) {
			t.Errorf("message %q missing %q", text, want)
		}
	}
}

func TestSlackNotifier_EmptySignalsSendsNothing(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, "EUR", logger.New("error"))
	if err := n.NotifySignals(context.Background(), nil); err != nil {
		t.Fatalf("NotifySignals() error = %v, want nil", err)
	}
	if called {
		t.Error("webhook was called for an empty signal list")
	}
}

func TestSlackNotifier_WebhookFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no_service", http.StatusNotFound)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, "EUR", logger.New("error"))
	if err := n.NotifySignals(context.Background(), testSignals()); err == nil {
		t.Error("NotifySignals() error = nil, want error for non-200 response")
	}
}
