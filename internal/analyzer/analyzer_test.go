package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/t77yq/cpm-analyzer/internal/calendar"
	"github.com/t77yq/cpm-analyzer/internal/cost"
	"github.com/t77yq/cpm-analyzer/internal/cpm"
	"github.com/t77yq/cpm-analyzer/internal/model"
	"github.com/t77yq/cpm-analyzer/internal/weather"
)

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	provider := calendar.NewStandardProvider(calendar.NewStaticHolidaySource())
	return New(provider, weather.NewStubForecast("Seoul"), zaptest.NewLogger(t))
}

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
			{ID: "A", Name: "Excavation", Duration: 5, WorkType: "earthwork"},
			{ID: "B", Name: "Foundation", Duration: 10, WorkType: "concrete", Predecessors: []model.PrecedenceLink{
				{PredecessorID: "A", Kind: model.RelationFinishStart},
			}},
			{ID: "C", Name: "Structure", Duration: 10, WorkType: "steel", Predecessors: []model.PrecedenceLink{
				{PredecessorID: "B", Kind: model.RelationFinishStart},
			}},
		},
	}
}

func TestAnalyze(t *testing.T) {
	a := newTestAnalyzer(t)
	ctx := context.Background()

	t.Run("Full Pipeline", func(t *testing.T) {
		req := testRequest()
		result, err := a.Analyze(ctx, req)
		require.NoError(t, err)

		assert.NotEmpty(t, result.ID)
		assert.Equal(t, "river-bridge", result.Project)
		assert.Equal(t, 25, result.Schedule.ProjectDuration)
		assert.Equal(t, []string{"A", "B", "C"}, result.Schedule.CriticalPath)

		assert.True(t, result.Delay.Converged)
		assert.GreaterOrEqual(t, result.Delay.TotalDelayDays, result.Delay.CalendarDelayDays)
		assert.Equal(t, 25+result.Delay.TotalDelayDays, result.Delay.NewProjectDuration)

		if result.Delay.TotalDelayDays > 0 {
			assert.Greater(t, result.Cost.Total, 0.0)
			assert.InDelta(t,
				result.Cost.IndirectCost+result.Cost.LiquidatedDamages,
				result.Cost.Total, 0.01)
		}
		assert.False(t, result.CompletedAt.IsZero())
	})

	t.Run("Request ID Preserved", func(t *testing.T) {
		req := testRequest()
		req.ID = "fixed-id"
		result, err := a.Analyze(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "fixed-id", result.ID)
	})

	t.Run("Empty Task List", func(t *testing.T) {
		req := testRequest()
		req.Tasks = nil
		result, err := a.Analyze(ctx, req)
		require.NoError(t, err)

		assert.Zero(t, result.Schedule.ProjectDuration)
		assert.Empty(t, result.Schedule.CriticalPath)
		assert.Zero(t, result.Delay.TotalDelayDays)
		assert.Zero(t, result.Cost.Total)
	})

	t.Run("Invalid Contract Terms", func(t *testing.T) {
		req := testRequest()
		req.Contract.LDRatePerDay = -1
		_, err := a.Analyze(ctx, req)
		assert.ErrorIs(t, err, cost.ErrInvalidContractTerms)
	})

	t.Run("Cyclic Graph Surfaces Engine Error", func(t *testing.T) {
		req := testRequest()
		req.Tasks = []model.Task{
			{ID: "A", Duration: 1, Predecessors: []model.PrecedenceLink{
				{PredecessorID: "B", Kind: model.RelationFinishStart},
			}},
			{ID: "B", Duration: 1, Predecessors: []model.PrecedenceLink{
				{PredecessorID: "A", Kind: model.RelationFinishStart},
			}},
		}
		_, err := a.Analyze(ctx, req)
		assert.ErrorIs(t, err, cpm.ErrCycleDetected)
	})
}
