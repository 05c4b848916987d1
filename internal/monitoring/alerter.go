package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertDegradedRate    AlertType = "degraded_rate"
	AlertBudgetNearLimit AlertType = "budget_near_limit"
	AlertBudgetExhausted AlertType = "budget_exhausted"
)

// minFinishedForRate keeps a handful of early failures from paging anyone.
const minFinishedForRate = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	// Check degraded resolution rate.
	finished := snap.RunsDone + snap.RunsDegraded
	if a.cfg.DegradedRateThreshold > 0 && finished >= minFinishedForRate && snap.DegradedRate > a.cfg.DegradedRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertDegradedRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Degraded rate %.1f%% exceeds threshold %.1f%% (%d degraded / %d finished in last %dh)",
				snap.DegradedRate*100, a.cfg.DegradedRateThreshold*100,
				snap.RunsDegraded, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"degraded_rate":  snap.DegradedRate,
				"threshold":      a.cfg.DegradedRateThreshold,
				"degraded":       snap.RunsDegraded,
				"finished":       finished,
				"avg_confidence": snap.AvgConfidence,
			},
			Timestamp: now,
		})
	}

	// Check provider budgets.
	for _, b := range snap.Budgets {
		if b.MonthlyLimit <= 0 {
			continue
		}
		used := float64(b.Calls) / float64(b.MonthlyLimit)
		details := map[string]any{
			"provider":      b.Provider,
			"month_key":     b.MonthKey,
			"calls":         b.Calls,
			"monthly_limit": b.MonthlyLimit,
		}
		switch {
		case b.Remaining() == 0:
			alerts = append(alerts, Alert{
				Type:      AlertBudgetExhausted,
				Severity:  "high",
				Message:   fmt.Sprintf("Provider %s has spent its %d-call budget for %s", b.Provider, b.MonthlyLimit, b.MonthKey),
				Details:   details,
				Timestamp: now,
			})
		case a.cfg.BudgetWarnRatio > 0 && used >= a.cfg.BudgetWarnRatio:
			alerts = append(alerts, Alert{
				Type:     AlertBudgetNearLimit,
				Severity: "medium",
				Message: fmt.Sprintf(
					"Provider %s used %.1f%% of its %d-call budget for %s",
					b.Provider, used*100, b.MonthlyLimit, b.MonthKey,
				),
				Details:   details,
				Timestamp: now,
			})
		}
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
