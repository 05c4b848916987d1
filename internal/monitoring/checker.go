package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/config"
)

// Checker runs periodic alert checks in the background. An alert is sent
// once when it starts firing and again only after it has cleared.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig

	mu     sync.Mutex
	latest *MetricsSnapshot
	firing map[string]bool
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
		firing:    make(map[string]bool),
	}
}

// Latest returns the most recent snapshot, or nil before the first check.
func (c *Checker) Latest() *MetricsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}

// Run checks once immediately, then on every tick. It blocks until ctx is
// cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting alert checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if ctx.Err() == nil {
		c.check(ctx, log)
	}
	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

func alertKey(a Alert) string {
	if p, ok := a.Details["provider"]; ok {
		return fmt.Sprintf("%s/%v", a.Type, p)
	}
	return string(a.Type)
}

func (c *Checker) check(ctx context.Context, log *zap.Logger) int {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("monitoring: failed to collect metrics", zap.Error(err))
		return 0
	}

	alerts := c.alerter.Evaluate(snap)

	c.mu.Lock()
	c.latest = snap
	active := make(map[string]bool, len(alerts))
	var fresh []Alert
	for _, a := range alerts {
		key := alertKey(a)
		active[key] = true
		if !c.firing[key] {
			fresh = append(fresh, a)
		}
	}
	c.firing = active
	c.mu.Unlock()

	if len(fresh) == 0 {
		log.Debug("monitoring: no new alerts",
			zap.Int("runs", snap.RunsTotal),
			zap.Int("still_firing", len(alerts)),
		)
		return 0
	}

	sent := c.alerter.SendAlerts(ctx, fresh)
	log.Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(fresh)),
		zap.Int("alerts_sent", sent),
	)
	return len(fresh)
}
