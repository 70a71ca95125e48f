package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/t77yq/cpm-analyzer/internal/model"
)

// AlertManager evaluates threshold rules against completed analyses and
// publishes alerts when a project's delay or cost exposure exceeds them
type AlertManager struct {
	logger *zap.Logger
	js     nats.JetStreamContext
	rules  sync.Map
	sub    *nats.Subscription
}

// NewAlertManager creates a new alert manager
func NewAlertManager(logger *zap.Logger, js nats.JetStreamContext) *AlertManager {
	return &AlertManager{
		logger: logger.Named("alert-manager"),
		js:     js,
	}
}

// Start starts the alert manager
func (m *AlertManager) Start(ctx context.Context) error {
	stream, err := m.js.StreamInfo("ALERTS")
	if err != nil && err != nats.ErrStreamNotFound {
		return fmt.Errorf("failed to get stream info: %w", err)
	}

	if stream == nil {
		_, err = m.js.AddStream(&nats.StreamConfig{
			Name:     "ALERTS",
			Subjects: []string{"alert.*"},
			Storage:  nats.FileStorage,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	sub, err := m.js.Subscribe("analysis.result", m.handleAnalysisResult)
	if err != nil {
		return fmt.Errorf("failed to subscribe to analysis results: %w", err)
	}
	m.sub = sub

	m.logger.Info("Alert manager started")
	return nil
}

// Stop stops the alert manager
func (m *AlertManager) Stop() {
	if m.sub != nil {
		m.sub.Unsubscribe()
	}
}

// AddRule adds a new alert rule
func (m *AlertManager) AddRule(rule *model.AlertRule) error {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = rule.CreatedAt
	m.rules.Store(rule.ID, rule)
	return nil
}

// GetRule returns a rule by ID
func (m *AlertManager) GetRule(id string) (*model.AlertRule, error) {
	value, ok := m.rules.Load(id)
	if !ok {
		return nil, fmt.Errorf("rule not found: %s", id)
	}
	return value.(*model.AlertRule), nil
}

// UpdateRule updates an existing alert rule
func (m *AlertManager) UpdateRule(rule *model.AlertRule) error {
	if _, ok := m.rules.Load(rule.ID); !ok {
		return fmt.Errorf("rule not found: %s", rule.ID)
	}
	rule.UpdatedAt = time.Now()
	m.rules.Store(rule.ID, rule)
	return nil
}

// DeleteRule deletes an alert rule
func (m *AlertManager) DeleteRule(id string) error {
	if _, ok := m.rules.Load(id); !ok {
		return fmt.Errorf("rule not found: %s", id)
	}
	m.rules.Delete(id)
	return nil
}

// handleAnalysisResult evaluates every rule against a completed analysis
func (m *AlertManager) handleAnalysisResult(msg *nats.Msg) {
	var result model.AnalysisResult
	if err := json.Unmarshal(msg.Data, &result); err != nil {
		m.logger.Error("Failed to unmarshal analysis result", zap.Error(err))
		return
	}

	m.rules.Range(func(key, value interface{}) bool {
		rule := value.(*model.AlertRule)
		if rule.Silenced {
			return true
		}

		switch rule.Type {
		case model.AlertTypeDelayThreshold:
			if float64(result.Delay.TotalDelayDays) > rule.Threshold {
				m.createAlert(rule, &result, map[string]interface{}{
					"delay_days": result.Delay.TotalDelayDays,
					"threshold":  rule.Threshold,
				})
			}
		case model.AlertTypeCostThreshold:
			if result.Cost.Total > rule.Threshold {
				m.createAlert(rule, &result, map[string]interface{}{
					"total_cost": result.Cost.Total,
					"threshold":  rule.Threshold,
				})
			}
		}
		return true
	})
}

// createAlert creates and publishes a new alert
func (m *AlertManager) createAlert(rule *model.AlertRule, result *model.AnalysisResult, data map[string]interface{}) {
	alert := &model.Alert{
		ID:         uuid.New().String(),
		RuleID:     rule.ID,
		AnalysisID: result.ID,
		Type:       rule.Type,
		Severity:   rule.Severity,
		Message:    fmt.Sprintf("Alert triggered for rule %s on project %s", rule.Name, result.Project),
		Data:       data,
		CreatedAt:  time.Now(),
	}

	alertData, err := json.Marshal(alert)
	if err != nil {
		m.logger.Error("Failed to marshal alert", zap.Error(err))
		return
	}

	if _, err := m.js.Publish("alert."+string(alert.Type), alertData); err != nil {
		m.logger.Error("Failed to publish alert", zap.Error(err))
		return
	}

	m.logger.Info("Alert created",
		zap.String("id", alert.ID),
		zap.String("rule_id", alert.RuleID),
		zap.String("analysis_id", alert.AnalysisID),
		zap.String("type", string(alert.Type)),
		zap.String("severity", string(alert.Severity)))
}
