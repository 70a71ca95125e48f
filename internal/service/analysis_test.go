package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/t77yq/cpm-analyzer/internal/analyzer"
	"github.com/t77yq/cpm-analyzer/internal/calendar"
	"github.com/t77yq/cpm-analyzer/internal/model"
	"github.com/t77yq/cpm-analyzer/internal/storage"
	"github.com/t77yq/cpm-analyzer/internal/testutil"
	"github.com/t77yq/cpm-analyzer/internal/weather"
)

func testRequest() *model.AnalysisRequest {
	return &model.AnalysisRequest{
		Project:   "river-bridge",
		StartDate: time.Date(2025, 12, 4, 0, 0, 0, 0, time.UTC),
		Policy:    model.WeekPolicyFiveDay,
		Contract: model.ContractTerms{
			ContractAmount:     1_000_000_000,
			LDRatePerDay:       0.0005,
			IndirectCostPerDay: 1_000_000,
		},
		Tasks: []model.Task{
			{ID: "A", Name: "Excavation", Duration: 5},
			{ID: "B", Name: "Foundation", Duration: 10, Predecessors: []model.PrecedenceLink{
				{PredecessorID: "A", Kind: model.RelationFinishStart},
			}},
		},
	}
}

func waitForResult(t *testing.T, s *AnalysisService, id string, timeout time.Duration) *model.AnalysisResult {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if result, err := s.GetResult(id); err == nil {
			return result
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for analysis %s", id)
	return nil
}

func TestAnalysisService(t *testing.T) {
	js, cleanup := testutil.SetupJetStream(t)
	defer cleanup()

	logger := zaptest.NewLogger(t)
	provider := calendar.NewStandardProvider(calendar.NewStaticHolidaySource())
	a := analyzer.New(provider, weather.NewStubForecast("Seoul"), logger)

	history, err := storage.NewSQLiteAnalysisHistory(logger, filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer history.Close()

	service, err := NewAnalysisService(js, a, history, logger)
	require.NoError(t, err)

	t.Run("Setup", func(t *testing.T) {
		stream, err := js.StreamInfo(analysisStreamName)
		require.NoError(t, err)
		assert.Equal(t, analysisStreamName, stream.Config.Name)
		assert.Equal(t, []string{"analysis.*"}, stream.Config.Subjects)
	})

	t.Run("Submit And Complete", func(t *testing.T) {
		id, err := service.Submit(context.Background(), testRequest())
		require.NoError(t, err)
		require.NotEmpty(t, id)

		result := waitForResult(t, service, id, 5*time.Second)
		assert.Equal(t, id, result.ID)
		assert.Equal(t, "river-bridge", result.Project)
		assert.Equal(t, 15, result.Schedule.ProjectDuration)
		assert.True(t, result.Delay.Converged)
	})

	t.Run("Result Is Persisted", func(t *testing.T) {
		id, err := service.Submit(context.Background(), testRequest())
		require.NoError(t, err)
		waitForResult(t, service, id, 5*time.Second)

		// History update races the in-memory cache by a hair
		var record *storage.AnalysisRecord
		deadline := time.Now().Add(3 * time.Second)
		for time.Now().Before(deadline) {
			record, err = history.Get(context.Background(), id)
			require.NoError(t, err)
			if record != nil && record.Status == model.AnalysisStatusCompleted {
				break
			}
			time.Sleep(100 * time.Millisecond)
		}
		require.NotNil(t, record)
		assert.Equal(t, model.AnalysisStatusCompleted, record.Status)

		var stored model.AnalysisResult
		require.NoError(t, json.Unmarshal(record.Result, &stored))
		assert.Equal(t, id, stored.ID)
	})

	t.Run("Failed Analysis Is Reported", func(t *testing.T) {
		req := testRequest()
		req.Tasks = []model.Task{
			{ID: "A", Duration: 1, Predecessors: []model.PrecedenceLink{
				{PredecessorID: "B", Kind: model.RelationFinishStart},
			}},
			{ID: "B", Duration: 1, Predecessors: []model.PrecedenceLink{
				{PredecessorID: "A", Kind: model.RelationFinishStart},
			}},
		}

		id, err := service.Submit(context.Background(), req)
		require.NoError(t, err)

		var record *storage.AnalysisRecord
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			record, err = history.Get(context.Background(), id)
			require.NoError(t, err)
			if record != nil && record.Status == model.AnalysisStatusFailed {
				break
			}
			time.Sleep(100 * time.Millisecond)
		}
		require.NotNil(t, record)
		assert.Equal(t, model.AnalysisStatusFailed, record.Status)
		assert.Contains(t, record.Error, "cycle")

		_, err = service.GetResult(id)
		assert.Error(t, err, "no result for a failed analysis")
	})

	t.Run("Unknown Result", func(t *testing.T) {
		_, err := service.GetResult("missing")
		assert.Error(t, err)
	})
}
