package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/costmanagement/armcostmanagement"
	"github.com/cenkalti/backoff/v4"

	"github.com/uccc/cloud-cost-ledger/internal/clock"
	"github.com/uccc/cloud-cost-ledger/internal/config"
	"github.com/uccc/cloud-cost-ledger/internal/ledger"
	"github.com/uccc/cloud-cost-ledger/internal/logger"
)

// Azure API retry constants
const (
	// MaxRetryElapsedTime is the maximum time to spend retrying a failed API call
	MaxRetryElapsedTime = 2 * time.Minute

	// InitialRetryInterval is the initial backoff interval for retries
	InitialRetryInterval = 1 * time.Second

	// MaxRetryInterval is the maximum backoff interval between retries
	MaxRetryInterval = 30 * time.Second
)

// AzureFetcher retrieves cost rows from the Azure Cost Management API
// for every configured subscription.
type AzureFetcher struct {
	client *armcostmanagement.QueryClient
	cfg    *config.Config
	logger *logger.Logger
	clock  clock.Clock
}

// NewAzureFetcher creates an Azure Cost Management fetcher using the
// default credential chain.
func NewAzureFetcher(cfg *config.Config, log *logger.Logger) (*AzureFetcher, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	client, err := armcostmanagement.NewQueryClient(cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cost management client: %w", err)
	}

	return &AzureFetcher{
		client: client,
		cfg:    cfg,
		logger: log,
		clock:  clock.RealClock{},
	}, nil
}

// Name returns the canonical provider name.
func (f *AzureFetcher) Name() string { return "azure" }

// Fetch retrieves cost rows for all configured subscriptions. It
// returns partial data when only some subscriptions fail and errors
// only when every subscription fails.
func (f *AzureFetcher) Fetch(ctx context.Context) ([]ledger.RawRecord, error) {
	var (
		allRecords []ledger.RawRecord
		errs       []error
	)

	for _, sub := range f.cfg.Providers.Azure.Subscriptions {
		records, err := f.fetchSubscription(ctx, sub)
		if err != nil {
			f.logger.Warn("Failed to query subscription, continuing with others",
				"subscription_name", sub.Name,
				"subscription_id", sub.ID,
				"error", err)
			errs = append(errs, fmt.Errorf("subscription %s: %w", sub.Name, err))
			continue
		}
		allRecords = append(allRecords, records...)
	}

	if len(errs) > 0 && len(allRecords) == 0 {
		return nil, fmt.Errorf("all %d subscriptions failed (check Azure credentials and permissions): %v",
			len(f.cfg.Providers.Azure.Subscriptions), errs)
	}

	if len(errs) > 0 {
		f.logger.Warn("Some subscriptions failed, returning partial data",
			"failed_count", len(errs),
			"total_subscriptions", len(f.cfg.Providers.Azure.Subscriptions),
			"records_returned", len(allRecords))
	}

	return allRecords, nil
}

// fetchSubscription queries costs for a single subscription with retry logic
func (f *AzureFetcher) fetchSubscription(ctx context.Context, sub config.AzureSubscription) ([]ledger.RawRecord, error) {
	var result []ledger.RawRecord

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = InitialRetryInterval
	bo.MaxInterval = MaxRetryInterval
	bo.MaxElapsedTime = MaxRetryElapsedTime

	operation := func() error {
		records, err := f.fetchSubscriptionInternal(ctx, sub)
		if err != nil {
			f.logger.Debug("Azure API call failed, will retry",
				"subscription_name", sub.Name,
				"subscription_id", sub.ID,
				"error", err)
			return err
		}
		result = records
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("subscription %s (ID: %s) failed after retries: %w", sub.Name, sub.ID, err)
	}

	return result, nil
}

// fetchSubscriptionInternal performs the actual API call without retry logic
func (f *AzureFetcher) fetchSubscriptionInternal(ctx context.Context, sub config.AzureSubscription) ([]ledger.RawRecord, error) {
	apiTimeout := time.Duration(f.cfg.APITimeout) * time.Second
	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()

	// Query the configured lookback window ending yesterday: today's
	// figures are still accumulating and would skew day-over-day deltas.
	endDate := f.clock.Now().AddDate(0, 0, -1)
	startDate := endDate.AddDate(0, 0, -(f.cfg.LookbackDays - 1))

	// Truncate to beginning of day in UTC
	startDate = time.Date(startDate.Year(), startDate.Month(), startDate.Day(), 0, 0, 0, 0, time.UTC)
	endDate = time.Date(endDate.Year(), endDate.Month(), endDate.Day(), 0, 0, 0, 0, time.UTC)

	f.logger.Debug("Querying Azure Cost Management API",
		"subscription", sub.Name,
		"start_date", startDate.Format("2006-01-02"),
		"end_date", endDate.Format("2006-01-02"))

	scope := fmt.Sprintf("/subscriptions/%s", sub.ID)
	queryType := armcostmanagement.ExportTypeActualCost
	timeframe := armcostmanagement.TimeframeTypeCustom
	granularity := armcostmanagement.GranularityTypeDaily
	serviceNameType := armcostmanagement.QueryColumnTypeDimension
	serviceName := "ServiceName"
	locationName := "ResourceLocation"

	aggregation := map[string]*armcostmanagement.QueryAggregation{
		"totalCost": {
			Name:     stringPtr("Cost"),
			Function: functionPtr(armcostmanagement.FunctionTypeSum),
		},
	}

	queryDef := armcostmanagement.QueryDefinition{
		Type:      &queryType,
		Timeframe: &timeframe,
		TimePeriod: &armcostmanagement.QueryTimePeriod{
			From: &startDate,
			To:   &endDate,
		},
		Dataset: &armcostmanagement.QueryDataset{
			Granularity: &granularity,
			Aggregation: aggregation,
			Grouping: []*armcostmanagement.QueryGrouping{
				{Type: &serviceNameType, Name: &serviceName},
				{Type: &serviceNameType, Name: &locationName},
			},
		},
	}

	resp, err := f.client.Usage(ctx, scope, queryDef, nil)
	if err != nil {
		return nil, fmt.Errorf("cost query failed for date range %s to %s: %w",
			startDate.Format("2006-01-02"), endDate.Format("2006-01-02"), err)
	}

	return parseAzureResponse(resp.QueryResult, sub), nil
}

// parseAzureResponse converts an Azure query result into raw records
func parseAzureResponse(result armcostmanagement.QueryResult, sub config.AzureSubscription) []ledger.RawRecord {
	var records []ledger.RawRecord

	if result.Properties == nil || result.Properties.Rows == nil {
		return records
	}

	columnMap := buildColumnMap(result.Properties.Columns)

	costIdx, hasCost := columnMap["Cost"]
	dateIdx, hasDate := columnMap["UsageDate"]
	if !hasCost || !hasDate {
		return records
	}

	for _, row := range result.Properties.Rows {
		if len(row) <= costIdx || len(row) <= dateIdx {
			continue
		}

		service := getStringFromRow(row, columnMap, "ServiceName")
		if service == "" {
			service = getStringFromRow(row, columnMap, "MeterCategory")
		}
		if service == "" {
			service = "Unknown"
		}

		currency := getStringFromRow(row, columnMap, "Currency")
		if currency == "" {
			currency = "EUR"
		}

		records = append(records, ledger.RawRecord{
			Date:        parseDate(row[dateIdx]),
			Provider:    "azure",
			AccountID:   sub.ID,
			AccountName: sub.Name,
			Service:     service,
			Region:      getStringFromRow(row, columnMap, "ResourceLocation"),
			Cost:        parseCost(row[costIdx]),
			Currency:    currency,
		})
	}

	return records
}

// buildColumnMap creates a map of column names to their indices
func buildColumnMap(columns []*armcostmanagement.QueryColumn) map[string]int {
	columnMap := make(map[string]int)
	for i, col := range columns {
		if col.Name != nil {
			columnMap[*col.Name] = i
		}
	}
	return columnMap
}

// getStringFromRow extracts a string value from a row by column name
func getStringFromRow(row []interface{}, columnMap map[string]int, columnName string) string {
	if idx, ok := columnMap[columnName]; ok && len(row) > idx {
		value := fmt.Sprintf("%v", row[idx])
		if value != "" && value != "<nil>" {
			return value
		}
	}
	return ""
}

// parseCost extracts and converts cost value to float64
func parseCost(value interface{}) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0.0
	}
}

// parseDate normalizes Azure's numeric YYYYMMDD usage dates to YYYY-MM-DD
func parseDate(value interface{}) string {
	var dateVal string
	switch v := value.(type) {
	case int, int64:
		dateVal = fmt.Sprintf("%d", v)
	case float64:
		dateVal = fmt.Sprintf("%.0f", v)
	case string:
		dateVal = v
	default:
		dateVal = fmt.Sprintf("%v", v)
	}

	var digits strings.Builder
	for _, ch := range dateVal {
		if ch >= '0' && ch <= '9' {
			digits.WriteRune(ch)
		}
	}

	dateDigits := digits.String()
	if len(dateDigits) >= 8 {
		return fmt.Sprintf("%s-%s-%s", dateDigits[0:4], dateDigits[4:6], dateDigits[6:8])
	}
	return dateDigits
}

func stringPtr(s string) *string {
	return &s
}

func functionPtr(f armcostmanagement.FunctionType) *armcostmanagement.FunctionType {
	return &f
}
