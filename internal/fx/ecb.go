package fx

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/uccc/cloud-cost-ledger/internal/clock"
	"github.com/uccc/cloud-cost-ledger/internal/ledger"
	"github.com/uccc/cloud-cost-ledger/internal/logger"
)

// ECBHistURL is the European Central Bank historical reference-rate feed.
// Rates are quoted against EUR.
const ECBHistURL = "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-hist.xml"

// DefaultFeedTimeout bounds one fetch of the historical feed.
const DefaultFeedTimeout = 20 * time.Second

// ECBClient fetches daily reference rates from the ECB feed.
type ECBClient struct {
	url        string
	httpClient *http.Client
	logger     *logger.Logger
	clock      clock.Clock
}

// NewECBClient creates an ECB feed client with the default endpoint.
func NewECBClient(log *logger.Logger) *ECBClient {
	return &ECBClient{
		url:        ECBHistURL,
		httpClient: &http.Client{Timeout: DefaultFeedTimeout},
		logger:     log,
		clock:      clock.RealClock{},
	}
}

// envelope mirrors the ECB eurofxref XML structure:
// Envelope > Cube > Cube[time] > Cube[currency, rate].
type envelope struct {
	XMLName xml.Name  `xml:"Envelope"`
	Days    []dayCube `xml:"Cube>Cube"`
}

type dayCube struct {
	Time  string     `xml:"time,attr"`
	Rates []rateCube `xml:"Cube"`
}

type rateCube struct {
	Currency string  `xml:"currency,attr"`
	Rate     float64 `xml:"rate,attr"`
}

// FetchRates downloads the historical feed and returns one FxRate per
// (day, currency), limited to the lookback window when lookbackDays > 0.
// Each day also carries a synthesized EUR self-rate of 1.0 so the base
// currency resolves through the same lookup path as every other currency.
func (c *ECBClient) FetchRates(ctx context.Context, lookbackDays int) ([]ledger.FxRate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build ECB feed request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ECB feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ECB feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read ECB feed: %w", err)
	}

	rates, err := parseECBFeed(body, c.cutoff(lookbackDays))
	if err != nil {
		return nil, err
	}

	c.logger.Info("Fetched ECB reference rates",
		"rate_count", len(rates),
		"lookback_days", lookbackDays)
	return rates, nil
}

func (c *ECBClient) cutoff(lookbackDays int) string {
	if lookbackDays <= 0 {
		return ""
	}
	return ledger.FormatDay(c.clock.Now().AddDate(0, 0, -lookbackDays))
}

func parseECBFeed(body []byte, cutoff string) ([]ledger.FxRate, error) {
	var env envelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse ECB feed: %w", err)
	}

	var rates []ledger.FxRate
	for _, day := range env.Days {
		if _, err := ledger.ParseDay(day.Time); err != nil {
			continue
		}
		if cutoff != "" && day.Time < cutoff {
			continue
		}
		for _, rate := range day.Rates {
			rates = append(rates, ledger.FxRate{
				ID:           ledger.RateID(day.Time, rate.Currency),
				Date:         day.Time,
				BaseCurrency: "EUR",
				Currency:     rate.Currency,
				Rate:         rate.Rate,
			})
		}
		rates = append(rates, ledger.FxRate{
			ID:           ledger.RateID(day.Time, "EUR"),
			Date:         day.Time,
			BaseCurrency: "EUR",
			Currency:     "EUR",
			Rate:         1.0,
		})
	}
	return rates, nil
}
