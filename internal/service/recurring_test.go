package service

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

func TestRecurringScheduler(t *testing.T) {
	js, cleanup := testutil.SetupJetStream(t)
	defer cleanup()

	// Triggered runs publish into the analysis stream
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     analysisStreamName,
		Subjects: []string{"analysis.*"},
		Storage:  nats.FileStorage,
	})
	require.NoError(t, err)

	scheduler := NewRecurringScheduler(js, zaptest.NewLogger(t))
	require.NoError(t, scheduler.Start(context.Background()))
	defer scheduler.Stop()

	t.Run("Add And Get", func(t *testing.T) {
		schedule := &model.RecurringAnalysis{
			Name:       "weekly-refresh",
			Expression: "0 0 6 * * 1",
			Request:    *testRequest(),
		}
		require.NoError(t, scheduler.AddSchedule(context.Background(), schedule))
		require.NotEmpty(t, schedule.ID)
		require.NotNil(t, schedule.NextRunTime)

		got, err := scheduler.GetSchedule(schedule.ID)
		require.NoError(t, err)
		assert.Equal(t, "weekly-refresh", got.Name)
		assert.Equal(t, model.AnalysisStatusPending, got.Status)
	})

	t.Run("Invalid Expression", func(t *testing.T) {
		schedule := &model.RecurringAnalysis{
			Name:       "broken",
			Expression: "not a cron line",
			Request:    *testRequest(),
		}
		err := scheduler.AddSchedule(context.Background(), schedule)
		assert.Error(t, err)
	})

	t.Run("Remove", func(t *testing.T) {
		schedule := &model.RecurringAnalysis{
			Name:       "short-lived",
			Expression: "0 0 6 * * 1",
			Request:    *testRequest(),
		}
		require.NoError(t, scheduler.AddSchedule(context.Background(), schedule))
		require.NoError(t, scheduler.RemoveSchedule(schedule.ID))

		_, err := scheduler.GetSchedule(schedule.ID)
		assert.Error(t, err)
		assert.Error(t, scheduler.RemoveSchedule(schedule.ID))
	})

	t.Run("Triggers Analysis Requests", func(t *testing.T) {
		schedule := &model.RecurringAnalysis{
			Name:       "every-second",
			Expression: "* * * * * *",
			Request:    *testRequest(),
		}
		require.NoError(t, scheduler.AddSchedule(context.Background(), schedule))
		defer scheduler.RemoveSchedule(schedule.ID)

		messages, err := testutil.ConsumeMessages(js, analysisRequestSubject, 3*time.Second)
		require.NoError(t, err)
		require.NotEmpty(t, messages)

		seen := make(map[string]struct{})
		for _, data := range messages {
			var req model.AnalysisRequest
			require.NoError(t, json.Unmarshal(data, &req))
			assert.Equal(t, "river-bridge", req.Project)
			require.NotEmpty(t, req.ID)
			seen[req.ID] = struct{}{}
		}
		assert.Len(t, seen, len(messages), "each run carries a fresh analysis id")

		got, err := scheduler.GetSchedule(schedule.ID)
		require.NoError(t, err)
		assert.NotNil(t, got.LastRunTime)
	})

	t.Run("Add Via Command Subject", func(t *testing.T) {
		schedule := &model.RecurringAnalysis{
			ID:         "cmd-schedule",
			Name:       "from-the-wire",
			Expression: "0 30 5 * * *",
			Request:    *testRequest(),
		}
		data, err := json.Marshal(schedule)
		require.NoError(t, err)

		_, err = js.Publish(recurringAddSubject, data)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			_, err := scheduler.GetSchedule("cmd-schedule")
			return err == nil
		}, 3*time.Second, 100*time.Millisecond)
	})
}
