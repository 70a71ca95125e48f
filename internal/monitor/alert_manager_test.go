package monitor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/t77yq/cpm-analyzer/internal/model"
	"github.com/t77yq/cpm-analyzer/internal/testutil"
)

func publishResult(t *testing.T, js nats.JetStreamContext, result *model.AnalysisResult) {
	t.Helper()
	data, err := json.Marshal(result)
	require.NoError(t, err)
	_, err = js.Publish("analysis.result", data)
	require.NoError(t, err)
}

func delayedResult(id string, delayDays int, totalCost float64) *model.AnalysisResult {
	return &model.AnalysisResult{
		ID:      id,
		Project: "river-bridge",
		Delay: model.DelayAnalysis{
			TotalDelayDays: delayDays,
			Converged:      true,
		},
		Cost: model.CostSummary{
			DelayDays: delayDays,
			Total:     totalCost,
		},
		CompletedAt: time.Now(),
	}
}

// alertsFor replays the alert stream and keeps the alerts raised for one
// analysis, so subtests stay isolated from each other's publishes
func alertsFor(t *testing.T, js nats.JetStreamContext, subject, analysisID string) []model.Alert {
	t.Helper()
	messages, err := testutil.ConsumeMessages(js, subject, 2*time.Second)
	require.NoError(t, err)

	var alerts []model.Alert
	for _, data := range messages {
		var alert model.Alert
		require.NoError(t, json.Unmarshal(data, &alert))
		if alert.AnalysisID == analysisID {
			alerts = append(alerts, alert)
		}
	}
	return alerts
}

func TestAlertManager(t *testing.T) {
	js, cleanup := testutil.SetupJetStream(t)
	defer cleanup()

	_, err := js.AddStream(&nats.StreamConfig{
		Name:     "ANALYSES",
		Subjects: []string{"analysis.*"},
		Storage:  nats.FileStorage,
	})
	require.NoError(t, err)

	manager := NewAlertManager(zaptest.NewLogger(t), js)
	require.NoError(t, manager.Start(context.Background()))
	defer manager.Stop()

	t.Run("Rule Lifecycle", func(t *testing.T) {
		rule := &model.AlertRule{
			Name:      "delay-over-five",
			Type:      model.AlertTypeDelayThreshold,
			Threshold: 5,
			Severity:  model.AlertSeverityWarning,
		}
		require.NoError(t, manager.AddRule(rule))
		require.NotEmpty(t, rule.ID)

		got, err := manager.GetRule(rule.ID)
		require.NoError(t, err)
		assert.Equal(t, "delay-over-five", got.Name)

		rule.Threshold = 7
		require.NoError(t, manager.UpdateRule(rule))

		require.NoError(t, manager.DeleteRule(rule.ID))
		_, err = manager.GetRule(rule.ID)
		assert.Error(t, err)
		assert.Error(t, manager.DeleteRule(rule.ID))
	})

	t.Run("Delay Threshold Fires", func(t *testing.T) {
		rule := &model.AlertRule{
			Name:      "delay-over-five",
			Type:      model.AlertTypeDelayThreshold,
			Threshold: 5,
			Severity:  model.AlertSeverityWarning,
		}
		require.NoError(t, manager.AddRule(rule))
		defer manager.DeleteRule(rule.ID)

		publishResult(t, js, delayedResult("analysis-1", 12, 1_000_000))

		alerts := alertsFor(t, js, "alert.delay_threshold", "analysis-1")
		require.Len(t, alerts, 1)
		assert.Equal(t, rule.ID, alerts[0].RuleID)
		assert.Equal(t, model.AlertTypeDelayThreshold, alerts[0].Type)
		assert.Equal(t, model.AlertSeverityWarning, alerts[0].Severity)
		assert.EqualValues(t, 12, alerts[0].Data["delay_days"])
	})

	t.Run("Below Threshold Stays Quiet", func(t *testing.T) {
		rule := &model.AlertRule{
			Name:      "delay-over-twenty",
			Type:      model.AlertTypeDelayThreshold,
			Threshold: 20,
			Severity:  model.AlertSeverityError,
		}
		require.NoError(t, manager.AddRule(rule))
		defer manager.DeleteRule(rule.ID)

		publishResult(t, js, delayedResult("analysis-2", 3, 1_000_000))

		assert.Empty(t, alertsFor(t, js, "alert.delay_threshold", "analysis-2"))
	})

	t.Run("Cost Threshold Fires", func(t *testing.T) {
		rule := &model.AlertRule{
			Name:      "cost-over-ten-million",
			Type:      model.AlertTypeCostThreshold,
			Threshold: 10_000_000,
			Severity:  model.AlertSeverityCritical,
		}
		require.NoError(t, manager.AddRule(rule))
		defer manager.DeleteRule(rule.ID)

		publishResult(t, js, delayedResult("analysis-3", 15, 22_500_000))

		alerts := alertsFor(t, js, "alert.cost_threshold", "analysis-3")
		require.Len(t, alerts, 1)
		assert.Equal(t, model.AlertTypeCostThreshold, alerts[0].Type)
		assert.EqualValues(t, 22_500_000, alerts[0].Data["total_cost"])
	})

	t.Run("Silenced Rule Does Not Fire", func(t *testing.T) {
		rule := &model.AlertRule{
			Name:      "silenced",
			Type:      model.AlertTypeDelayThreshold,
			Threshold: 1,
			Severity:  model.AlertSeverityInfo,
			Silenced:  true,
		}
		require.NoError(t, manager.AddRule(rule))
		defer manager.DeleteRule(rule.ID)

		publishResult(t, js, delayedResult("analysis-4", 30, 1_000_000))

		assert.Empty(t, alertsFor(t, js, "alert.delay_threshold", "analysis-4"))
	})
}
