package manager

import (
	"sync"
	"time"

	"github.com/cuemby/beacon/pkg/metrics"
)

// MetricsCollector collects metrics from the manager
type MetricsCollector struct {
	manager  *Manager
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(mgr *Manager) *MetricsCollector {
	return &MetricsCollector{
		manager:  mgr,
		interval: 15 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *MetricsCollector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *MetricsCollector) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

func (c *MetricsCollector) collect() {
	c.collectRegistryMetrics()
	c.collectRaftMetrics()
}

func (c *MetricsCollector) collectRegistryMetrics() {
	alerts, subscriptions, err := c.manager.Counts()
	if err != nil {
		c.manager.logger.Warn().Err(err).Msg("Failed to count registry entries")
		return
	}

	metrics.AlertsTotal.Set(float64(alerts))
	metrics.SubscriptionsTotal.Set(float64(subscriptions))
}

func (c *MetricsCollector) collectRaftMetrics() {
	if c.manager.IsLeader() {
		metrics.RaftLeader.Set(1)
	} else {
		metrics.RaftLeader.Set(0)
	}

	stats := c.manager.GetRaftStats()
	if stats == nil {
		return
	}
	if lastIndex, ok := stats["last_log_index"].(uint64); ok {
		metrics.RaftLogIndex.Set(float64(lastIndex))
	}
	if appliedIndex, ok := stats["applied_index"].(uint64); ok {
		metrics.RaftAppliedIndex.Set(float64(appliedIndex))
	}
	if peers, ok := stats["peers"].(uint64); ok {
		metrics.RaftPeers.Set(float64(peers))
	}
}
