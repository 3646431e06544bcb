package providers

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"

	"github.com/uccc/cloud-cost-ledger/internal/clock"
	"github.com/uccc/cloud-cost-ledger/internal/config"
	"github.com/uccc/cloud-cost-ledger/internal/logger"
)

// mockCostExplorer serves scripted pages in order
type mockCostExplorer struct {
	pages []*costexplorer.GetCostAndUsageOutput
	calls int

	lastInput *costexplorer.GetCostAndUsageInput
}

func (m *mockCostExplorer) GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error) {
	m.lastInput = params
	page := m.pages[m.calls]
	m.calls++
	return page, nil
}

func awsGroup(service, account, amount, unit string) types.Group {
	return types.Group{
		Keys: []string{service, account},
		Metrics: map[string]types.MetricValue{
			"UnblendedCost": {Amount: aws.String(amount), Unit: aws.String(unit)},
		},
	}
}

func awsResult(date string, groups ...types.Group) types.ResultByTime {
	return types.ResultByTime{
		TimePeriod: &types.DateInterval{Start: aws.String(date), End: aws.String(date)},
		Groups:     groups,
	}
}

func newTestAWSFetcher(mock *mockCostExplorer) *AWSFetcher {
	cfg := config.Default()
	return &AWSFetcher{
		client: mock,
		cfg:    cfg,
		logger: logger.New("error"),
		clock:  clock.NewFakeClock(time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC)),
	}
}

func TestAWSFetcher_Fetch(t *testing.T) {
	mock := &mockCostExplorer{
		pages: []*costexplorer.GetCostAndUsageOutput{
			{
				ResultsByTime: []types.ResultByTime{
					awsResult("2025-03-01",
						awsGroup("Amazon Elastic Compute Cloud - Compute", "111122223333", "120.50", "USD"),
						awsGroup("Amazon Simple Storage Service", "111122223333", "14.25", "USD"),
					),
				},
			},
		},
	}
	fetcher := newTestAWSFetcher(mock)

	records, err := fetcher.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v, want nil", err)
	}
	if len(records) != 2 {
		t.Fatalf("Fetch() returned %d records, want 2", len(records))
	}

	r := records[0]
	if r.Provider != "aws" {
		t.Errorf("Provider = %v, want aws", r.Provider)
	}
	if r.Date != "2025-03-01" {
		t.Errorf("Date = %v, want 2025-03-01", r.Date)
	}
	if r.AccountID != "111122223333" {
		t.Errorf("AccountID = %v, want 111122223333", r.AccountID)
	}
	if r.Cost != 120.50 {
		t.Errorf("Cost = %v, want 120.50", r.Cost)
	}
	if r.Currency != "USD" {
		t.Errorf("Currency = %v, want USD", r.Currency)
	}

	// Window: lookback days ending today (Cost Explorer end is exclusive)
	if got := aws.ToString(mock.lastInput.TimePeriod.End); got != "2025-03-08" {
		t.Errorf("TimePeriod.End = %v, want 2025-03-08", got)
	}
	if got := aws.ToString(mock.lastInput.TimePeriod.Start); got != "2025-03-01" {
		t.Errorf("TimePeriod.Start = %v, want 2025-03-01", got)
	}
}

func TestAWSFetcher_Pagination(t *testing.T) {
	mock := &mockCostExplorer{
		pages: []*costexplorer.GetCostAndUsageOutput{
			{
				ResultsByTime: []types.ResultByTime{
					awsResult("2025-03-01", awsGroup("Amazon EC2", "111122223333", "10", "USD")),
				},
				NextPageToken: aws.String("page-2"),
			},
			{
				ResultsByTime: []types.ResultByTime{
					awsResult("2025-03-02", awsGroup("Amazon EC2", "111122223333", "12", "USD")),
				},
			},
		},
	}
	fetcher := newTestAWSFetcher(mock)

	records, err := fetcher.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v, want nil", err)
	}
	if mock.calls != 2 {
		t.Errorf("GetCostAndUsage calls = %d, want 2", mock.calls)
	}
	if len(records) != 2 {
		t.Errorf("Fetch() returned %d records, want 2 across pages", len(records))
	}
}

func TestAWSFetcher_SkipsUnparsableAmounts(t *testing.T) {
	mock := &mockCostExplorer{
		pages: []*costexplorer.GetCostAndUsageOutput{
			{
				ResultsByTime: []types.ResultByTime{
					awsResult("2025-03-01",
						awsGroup("Amazon EC2", "111122223333", "not-a-number", "USD"),
						awsGroup("Amazon S3", "111122223333", "5.00", "USD"),
					),
				},
			},
		},
	}
	fetcher := newTestAWSFetcher(mock)

	records, err := fetcher.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v, want nil", err)
	}
	if len(records) != 1 {
		t.Fatalf("Fetch() returned %d records, want 1 (bad amount skipped)", len(records))
	}
	if records[0].Service != "Amazon S3" {
		t.Errorf("Service = %v, want Amazon S3", records[0].Service)
	}
}
