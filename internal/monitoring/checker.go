package monitoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/blocktrace/blocktrace/internal/config"
	"github.com/blocktrace/blocktrace/internal/model"
)

// maxHistory bounds the alerts kept for Updates.
const maxHistory = 100

// Checker runs periodic ESG checks in the background.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig

	mu      sync.Mutex
	last    *Snapshot
	down    bool
	history []Alert
}

// NewChecker creates a background ESG checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Run checks once immediately, then on every interval. It blocks until ctx
// is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting esg checker",
		zap.Duration("interval", interval),
		zap.Int("threshold", c.alerter.threshold()),
	)

	c.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("esg checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check collects a snapshot, compares it with the previous one and sends
// the resulting alerts. The first successful check only records a baseline.
func (c *Checker) Check(ctx context.Context) []Alert {
	log := zap.L().With(zap.String("component", "monitoring.checker"))

	snap, err := c.collector.Collect(ctx)
	if err != nil {
		log.Error("monitoring: failed to collect scores", zap.Error(err))
		if !model.IsConnectionUnavailable(err) {
			return nil
		}
		c.mu.Lock()
		first := !c.down
		c.down = true
		c.mu.Unlock()
		if !first {
			return nil
		}
		alerts := []Alert{c.alerter.Unavailable(err, time.Now())}
		c.record(alerts)
		c.alerter.SendAlerts(ctx, alerts)
		return alerts
	}

	c.mu.Lock()
	prev := c.last
	c.last = snap
	c.down = false
	c.mu.Unlock()

	alerts := c.alerter.Evaluate(prev, snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: no score changes", zap.Int("products", len(snap.Scores)))
		return nil
	}

	c.record(alerts)
	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: esg check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
	return alerts
}

func (c *Checker) record(alerts []Alert) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, alerts...)
	if over := len(c.history) - maxHistory; over > 0 {
		c.history = append([]Alert(nil), c.history[over:]...)
	}
}

// Updates returns the recent alerts, oldest first.
func (c *Checker) Updates() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Alert(nil), c.history...)
}

// Last returns the most recent snapshot, or nil before the first check.
func (c *Checker) Last() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
