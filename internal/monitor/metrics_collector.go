package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/t77yq/cpm-analyzer/internal/model"
)

// ServiceMetrics is the snapshot published on each collection tick
type ServiceMetrics struct {
	Timestamp         time.Time  `json:"timestamp"`
	CPUUsage          float64    `json:"cpu_usage"`
	MemoryUsage       float64    `json:"memory_usage"`
	AnalysesCompleted int64      `json:"analyses_completed"`
	TotalDelayDays    int64      `json:"total_delay_days"`
	NonConvergedCount int64      `json:"non_converged_count"`
	LastAnalysisAt    *time.Time `json:"last_analysis_at,omitempty"`
}

// MetricsCollector collects system metrics and analysis throughput counters
type MetricsCollector struct {
	logger   *zap.Logger
	js       nats.JetStreamContext
	interval time.Duration
	mu       sync.Mutex
	counters ServiceMetrics
	stop     chan struct{}
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(js nats.JetStreamContext, interval time.Duration, logger *zap.Logger) *MetricsCollector {
	return &MetricsCollector{
		logger:   logger.Named("metrics-collector"),
		js:       js,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start starts the metrics collector
func (c *MetricsCollector) Start(ctx context.Context) error {
	c.logger.Info("Starting metrics collector")

	// Track completed analyses
	if _, err := c.js.Subscribe("analysis.result", c.handleAnalysisResult); err != nil {
		return fmt.Errorf("failed to subscribe to analysis results: %w", err)
	}

	go c.collectLoop(ctx)

	return nil
}

// Stop stops the metrics collector
func (c *MetricsCollector) Stop() {
	c.logger.Info("Stopping metrics collector")
	close(c.stop)
}

// handleAnalysisResult updates throughput counters from a completed analysis
func (c *MetricsCollector) handleAnalysisResult(msg *nats.Msg) {
	var result model.AnalysisResult
	if err := json.Unmarshal(msg.Data, &result); err != nil {
		c.logger.Error("Failed to unmarshal analysis result", zap.Error(err))
		return
	}

	c.mu.Lock()
	c.counters.AnalysesCompleted++
	c.counters.TotalDelayDays += int64(result.Delay.TotalDelayDays)
	if !result.Delay.Converged {
		c.counters.NonConvergedCount++
	}
	now := result.CompletedAt
	c.counters.LastAnalysisAt = &now
	c.mu.Unlock()
}

// collectLoop runs the metrics collection loop
func (c *MetricsCollector) collectLoop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			if err := c.publishMetrics(); err != nil {
				c.logger.Error("Failed to publish metrics", zap.Error(err))
			}
		}
	}
}

// publishMetrics samples system usage and publishes the snapshot
func (c *MetricsCollector) publishMetrics() error {
	metrics := c.snapshot()
	metrics.Timestamp = time.Now()

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		metrics.CPUUsage = percentages[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		metrics.MemoryUsage = vm.UsedPercent
	}

	data, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if _, err := c.js.Publish("metrics.system", data); err != nil {
		return fmt.Errorf("failed to publish metrics: %w", err)
	}
	return nil
}

// snapshot copies the counters under lock
func (c *MetricsCollector) snapshot() ServiceMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters
}
