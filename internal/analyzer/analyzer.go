package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/t77yq/cpm-analyzer/internal/calendar"
	"github.com/t77yq/cpm-analyzer/internal/cost"
	"github.com/t77yq/cpm-analyzer/internal/cpm"
	"github.com/t77yq/cpm-analyzer/internal/delay"
	"github.com/t77yq/cpm-analyzer/internal/model"
	"github.com/t77yq/cpm-analyzer/internal/weather"
)

// Analyzer runs the full pipeline for one request: CPM schedule, delay
// convergence against calendar and weather, then cost
type Analyzer struct {
	logger   *zap.Logger
	calendar calendar.Provider
	forecast weather.ForecastSource
}

// New creates an analyzer with the given providers
func New(calendarProvider calendar.Provider, forecastSource weather.ForecastSource, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		logger:   logger.Named("analyzer"),
		calendar: calendarProvider,
		forecast: forecastSource,
	}
}

// Analyze computes schedule, delay, and cost for the request. The request id
// is assigned if empty. An empty task list yields an empty result, not an
// error.
func (a *Analyzer) Analyze(ctx context.Context, req *model.AnalysisRequest) (*model.AnalysisResult, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	policy := req.Policy
	if policy == "" {
		policy = model.WeekPolicyFiveDay
	}

	if err := cost.ValidateContractTerms(req.Contract); err != nil {
		return nil, err
	}

	startDate := model.DateOnly(req.StartDate)
	result := &model.AnalysisResult{
		ID:      req.ID,
		Project: req.Project,
	}

	if len(req.Tasks) == 0 {
		result.Schedule = model.CPMResult{StartDate: startDate, CriticalPath: []string{}}
		result.Delay = model.DelayAnalysis{NewEndDate: startDate, Converged: true}
		result.Cost = model.CostSummary{}
		result.CompletedAt = time.Now()
		return result, nil
	}

	schedule, err := cpm.ComputeSchedule(req.Tasks, startDate)
	if err != nil {
		return nil, fmt.Errorf("schedule computation failed: %w", err)
	}

	forecast, err := a.forecast.Forecast(ctx, startDate, schedule.EndDate())
	if err != nil {
		return nil, fmt.Errorf("forecast lookup failed: %w", err)
	}

	delayAnalysis, err := delay.SimulateDelay(ctx, schedule, startDate, forecast, a.calendar, policy)
	if err != nil {
		return nil, fmt.Errorf("delay simulation failed: %w", err)
	}

	costSummary := cost.ComputeCost(delayAnalysis.TotalDelayDays, req.Contract)

	result.Schedule = *schedule
	result.Delay = *delayAnalysis
	result.Cost = *costSummary
	result.CompletedAt = time.Now()

	a.logger.Info("Analysis completed",
		zap.String("analysis_id", req.ID),
		zap.String("project", req.Project),
		zap.Int("project_duration", schedule.ProjectDuration),
		zap.Int("delay_days", delayAnalysis.TotalDelayDays),
		zap.Bool("converged", delayAnalysis.Converged),
		zap.Float64("total_cost", costSummary.Total))

	return result, nil
}
