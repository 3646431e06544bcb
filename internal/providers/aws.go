package providers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"

	"github.com/uccc/cloud-cost-ledger/internal/clock"
	"github.com/uccc/cloud-cost-ledger/internal/config"
	"github.com/uccc/cloud-cost-ledger/internal/ledger"
	"github.com/uccc/cloud-cost-ledger/internal/logger"
)

// costExplorerAPI is the slice of the Cost Explorer client we use.
type costExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

// AWSFetcher retrieves daily cost rows from the AWS Cost Explorer API,
// grouped by service and linked account.
type AWSFetcher struct {
	client costExplorerAPI
	cfg    *config.Config
	logger *logger.Logger
	clock  clock.Clock
}

// NewAWSFetcher creates a Cost Explorer fetcher using the default AWS
// credential chain.
func NewAWSFetcher(ctx context.Context, cfg *config.Config, log *logger.Logger) (*AWSFetcher, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Providers.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return &AWSFetcher{
		client: costexplorer.NewFromConfig(awsCfg),
		cfg:    cfg,
		logger: log,
		clock:  clock.RealClock{},
	}, nil
}

// Name returns the canonical provider name.
func (f *AWSFetcher) Name() string { return "aws" }

// Fetch retrieves the configured lookback window page by page. Cost
// Explorer treats the end date as exclusive, so the window ends today
// to include yesterday's final figures.
func (f *AWSFetcher) Fetch(ctx context.Context) ([]ledger.RawRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(f.cfg.APITimeout)*time.Second)
	defer cancel()

	end := f.clock.Now().UTC().Format("2006-01-02")
	start := f.clock.Now().UTC().AddDate(0, 0, -f.cfg.LookbackDays).Format("2006-01-02")
	metric := f.cfg.Providers.AWS.Metric

	f.logger.Debug("Querying AWS Cost Explorer",
		"start_date", start,
		"end_date", end,
		"metric", metric)

	var (
		records   []ledger.RawRecord
		nextToken *string
	)

	for {
		out, err := f.client.GetCostAndUsage(ctx, &costexplorer.GetCostAndUsageInput{
			TimePeriod: &types.DateInterval{
				Start: aws.String(start),
				End:   aws.String(end),
			},
			Granularity: types.GranularityDaily,
			Metrics:     []string{metric},
			GroupBy: []types.GroupDefinition{
				{Type: types.GroupDefinitionTypeDimension, Key: aws.String("SERVICE")},
				{Type: types.GroupDefinitionTypeDimension, Key: aws.String("LINKED_ACCOUNT")},
			},
			NextPageToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("cost explorer query failed for %s to %s: %w", start, end, err)
		}

		records = append(records, f.parsePage(out, metric)...)

		if out.NextPageToken == nil || *out.NextPageToken == "" {
			break
		}
		nextToken = out.NextPageToken
	}

	return records, nil
}

func (f *AWSFetcher) parsePage(out *costexplorer.GetCostAndUsageOutput, metric string) []ledger.RawRecord {
	var records []ledger.RawRecord

	for _, result := range out.ResultsByTime {
		if result.TimePeriod == nil || result.TimePeriod.Start == nil {
			continue
		}
		date := *result.TimePeriod.Start

		for _, group := range result.Groups {
			if len(group.Keys) < 2 {
				continue
			}
			service := group.Keys[0]
			account := group.Keys[1]

			mv, ok := group.Metrics[metric]
			if !ok || mv.Amount == nil {
				continue
			}
			cost, err := strconv.ParseFloat(*mv.Amount, 64)
			if err != nil {
				f.logger.Warn("Skipping unparsable cost amount",
					"date", date,
					"service", service,
					"amount", *mv.Amount)
				continue
			}

			currency := "USD"
			if mv.Unit != nil && *mv.Unit != "" {
				currency = *mv.Unit
			}

			records = append(records, ledger.RawRecord{
				Date:      date,
				Provider:  "aws",
				AccountID: account,
				Service:   service,
				Region:    f.cfg.Providers.AWS.Region,
				Cost:      cost,
				Currency:  currency,
			})
		}
	}

	return records
}
