package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/uccc/cloud-cost-ledger/internal/analytics"
	"github.com/uccc/cloud-cost-ledger/internal/logger"
)

// Notifier delivers anomaly signals to an external channel.
type Notifier interface {
	NotifySignals(ctx context.Context, signals []analytics.Signal) error
}

// SlackNotifier posts signal summaries to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	baseCur    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewSlackNotifier creates a notifier for the given webhook URL.
func NewSlackNotifier(webhookURL, baseCurrency string, log *logger.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		baseCur:    baseCurrency,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     log,
	}
}

// NotifySignals posts one message summarizing the given signals. An
// empty signal list sends nothing.
func (n *SlackNotifier) NotifySignals(ctx context.Context, signals []analytics.Signal) error {
	if len(signals) == 0 {
		return nil
	}

	payload, err := json.Marshal(map[string]string{"text": n.formatSignals(signals)})
	if err != nil {
		return fmt.Errorf("failed to encode slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}

	n.logger.Info("Posted anomaly notification", "signal_count", len(signals))
	return nil
}

// formatSignals renders the signals as a Slack message in the order
// they arrive (highest impact first).
func (n *SlackNotifier) formatSignals(signals []analytics.Signal) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":rotating_light: *%d cost anomal%s detected (%s to %s)*\n",
		len(signals), pluralY(len(signals)),
		signals[0].Timeframe.Start, signals[0].Timeframe.End)

	for _, s := range signals {
		fmt.Fprintf(&b, ":chart_with_upwards_trend: [%s] %s/%s `%s`: %+.2f %s (%+.0f%%) - %s\n",
			strings.ToUpper(string(s.Severity)), s.Provider, s.EntityType, s.EntityID,
			s.ImpactCost, n.baseCur, s.ImpactPct*100, s.RootCauseHint)
	}

	return b.String()
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

// NoopNotifier discards all notifications. Used when no webhook is
// configured.
type NoopNotifier struct{}

// NotifySignals does nothing.
func (NoopNotifier) NotifySignals(ctx context.Context, signals []analytics.Signal) error {
	return nil
}
