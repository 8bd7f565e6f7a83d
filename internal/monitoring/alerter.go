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

	"github.com/blocktrace/blocktrace/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertScoreChange        AlertType = "esg_score_change"
	AlertScoreNew           AlertType = "esg_score_new"
	AlertBackendUnavailable AlertType = "backend_unavailable"
)

// DefaultChangeThreshold is the score movement that raises an alert.
const DefaultChangeThreshold = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	ProductID string         `json:"product_id,omitempty"`
	OldScore  *int           `json:"old_score,omitempty"`
	NewScore  *int           `json:"new_score,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter compares consecutive snapshots and delivers alerts to a webhook.
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

func (a *Alerter) threshold() int {
	if a.cfg.ChangeThreshold > 0 {
		return a.cfg.ChangeThreshold
	}
	return DefaultChangeThreshold
}

func intPtr(v int) *int { return &v }

// Evaluate returns one alert per product whose score moved by at least the
// threshold since prev, and one per product absent from prev. A nil prev is
// the baseline and raises nothing.
func (a *Alerter) Evaluate(prev, cur *Snapshot) []Alert {
	if prev == nil || cur == nil {
		return nil
	}

	var alerts []Alert
	for _, id := range cur.ProductIDs() {
		newScore := int(cur.Scores[id].SustainabilityScore)
		old, seen := prev.Scores[id]
		if !seen {
			alerts = append(alerts, Alert{
				Type:      AlertScoreNew,
				Severity:  "info",
				ProductID: id,
				NewScore:  intPtr(newScore),
				Message:   fmt.Sprintf("New ESG score for %s: %d", id, newScore),
				Timestamp: cur.CollectedAt,
			})
			continue
		}

		oldScore := int(old.SustainabilityScore)
		delta := newScore - oldScore
		if abs(delta) < a.threshold() {
			continue
		}

		severity := "medium"
		if delta < 0 {
			severity = "high"
		}
		details := map[string]any{
			"delta":          delta,
			"threshold":      a.threshold(),
			"trigger_reason": "automated_recalculation",
		}
		if oldScore > 0 {
			details["change_pct"] = delta * 100 / oldScore
		}
		alerts = append(alerts, Alert{
			Type:      AlertScoreChange,
			Severity:  severity,
			ProductID: id,
			OldScore:  intPtr(oldScore),
			NewScore:  intPtr(newScore),
			Message:   fmt.Sprintf("ESG score changed for %s: %d -> %d", id, oldScore, newScore),
			Details:   details,
			Timestamp: cur.CollectedAt,
		})
	}
	return alerts
}

// Unavailable builds the alert for a failed collection.
func (a *Alerter) Unavailable(err error, at time.Time) Alert {
	return Alert{
		Type:      AlertBackendUnavailable,
		Severity:  "high",
		Message:   "ESG backend unreachable: " + err.Error(),
		Timestamp: at.UTC(),
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
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
				zap.String("product_id", alert.ProductID),
				zap.Error(err),
			)
			continue
		}
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
