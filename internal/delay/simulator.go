package delay

import (
	"context"
	"fmt"
	"time"

	"github.com/t77yq/cpm-analyzer/internal/calendar"
	"github.com/t77yq/cpm-analyzer/internal/model"
)

// maxIterations bounds the fixed-point loop. Monotonic growth over a bounded
// calendar converges well inside this in practice.
const maxIterations = 10

// SimulateDelay computes a self-consistent total delay for an ideal schedule
// by overlaying non-working days and adverse-weather days.
//
// The project end date depends on the delay and the delay depends on the
// calendar window examined, so the end date is found by fixed-point
// iteration: recompute the non-working set for the candidate window until the
// implied end date stops moving. The weather-bad set is fixed by the caller's
// forecast horizon and is not recomputed per iteration.
//
// A zero-duration schedule short-circuits to an all-zero analysis without
// touching the provider. Provider failures abort the simulation.
func SimulateDelay(ctx context.Context, ideal *model.CPMResult, startDate time.Time, forecast *model.WeatherWindow, provider calendar.Provider, policy model.WeekPolicy) (*model.DelayAnalysis, error) {
	startDate = model.DateOnly(startDate)

	if ideal.ProjectDuration <= 0 {
		return &model.DelayAnalysis{
			NewProjectDuration: 0,
			NewEndDate:         startDate,
			Converged:          true,
		}, nil
	}

	badDates := forecast.UnsuitableDates()
	badSet := make(map[time.Time]struct{}, len(badDates))
	for _, d := range badDates {
		badSet[d] = struct{}{}
	}

	analysis := &model.DelayAnalysis{
		WeatherBadDates:  badDates,
		WeatherDelayDays: len(badDates),
	}

	candidateEnd := startDate.AddDate(0, 0, ideal.ProjectDuration-1)
	for i := 0; i < maxIterations; i++ {
		analysis.Iterations = i + 1

		cal, err := provider.NonWorkingDays(ctx, startDate, candidateEnd, policy)
		if err != nil {
			return nil, fmt.Errorf("calendar lookup failed: %w", err)
		}

		overlap := 0
		for _, d := range cal.Dates {
			if _, bad := badSet[model.DateOnly(d)]; bad {
				overlap++
			}
		}

		analysis.CalendarDelayDays = len(cal.Dates)
		analysis.WeatherOverlapDays = overlap
		analysis.TotalDelayDays = analysis.CalendarDelayDays + analysis.WeatherDelayDays - overlap
		analysis.NewProjectDuration = ideal.ProjectDuration + analysis.TotalDelayDays
		newEnd := startDate.AddDate(0, 0, analysis.NewProjectDuration-1)

		if newEnd.Equal(candidateEnd) {
			analysis.Converged = true
			break
		}
		candidateEnd = newEnd
	}
	analysis.NewEndDate = candidateEnd

	analysis.Rows = delayRows(forecast, ideal.CriticalPath)
	return analysis, nil
}

// delayRows emits one record per weather-bad date in forecast order. Delay
// attribution is coarse: every critical task is considered affected. Each row
// owns its task list so mutating one row never touches another or the input.
func delayRows(forecast *model.WeatherWindow, criticalPath []string) []model.DelayRow {
	var rows []model.DelayRow
	cumulative := 0
	for _, day := range forecast.Days {
		if day.Suitable {
			continue
		}
		cumulative++
		reason := day.Reason
		if reason == "" {
			reason = day.Condition
		}
		rows = append(rows, model.DelayRow{
			Date:       model.DateOnly(day.Date),
			Reason:     reason,
			Affected:   append([]string(nil), criticalPath...),
			DayDelay:   1,
			Cumulative: cumulative,
		})
	}
	return rows
}
