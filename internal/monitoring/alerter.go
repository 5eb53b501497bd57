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

	"github.com/sells-group/contact-sync/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertFailureRate       AlertType = "failure_rate"
	AlertLedgerSaveFailure AlertType = "ledger_save_failure"
	AlertAuditSinkFailure  AlertType = "audit_sink_failure"
)

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
	if cfg.MinAttempts <= 0 {
		cfg.MinAttempts = 5
	}
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func window(snap *MetricsSnapshot) string {
	if snap.LookbackHours > 0 {
		return fmt.Sprintf("in last %dh", snap.LookbackHours)
	}
	return "in this batch"
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	if snap == nil {
		return nil
	}
	var alerts []Alert
	now := time.Now().UTC()

	if snap.Attempts >= a.cfg.MinAttempts && snap.FailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Contact failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d attempted %s)",
				snap.FailRate*100, a.cfg.FailureRateThreshold*100,
				snap.Failures, snap.Attempts, window(snap),
			),
			Details: map[string]any{
				"failure_rate":       snap.FailRate,
				"threshold":          a.cfg.FailureRateThreshold,
				"lookup_errors":      snap.LookupErrors,
				"crm_write_failures": snap.CRMWriteFailures,
				"delivery_failures":  snap.DeliveryFailures,
			},
			Timestamp: now,
		})
	}

	// A lost ledger save means the next batch redelivers contacts.
	if snap.LedgerSaveFailures > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertLedgerSaveFailure,
			Severity: "high",
			Message: fmt.Sprintf(
				"Processed-contact ledger failed to save %d time(s) %s",
				snap.LedgerSaveFailures, window(snap),
			),
			Details: map[string]any{
				"failed_saves": snap.LedgerSaveFailures,
				"delivered":    snap.Delivered,
			},
			Timestamp: now,
		})
	}

	if snap.AuditSinkFailures > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertAuditSinkFailure,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d audit record(s) could not be written %s",
				snap.AuditSinkFailures, window(snap),
			),
			Details: map[string]any{
				"dropped_records": snap.AuditSinkFailures,
			},
			Timestamp: now,
		})
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
