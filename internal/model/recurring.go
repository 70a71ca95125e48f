package model

import (
	"time"
)

// RecurringAnalysis re-runs a saved analysis request on a cron expression,
// so a project's delay exposure is refreshed as forecasts roll forward
type RecurringAnalysis struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Expression  string          `json:"expression"`
	Request     AnalysisRequest `json:"request"`
	Status      AnalysisStatus  `json:"status"`
	LastRunTime *time.Time      `json:"last_run_time,omitempty"`
	NextRunTime *time.Time      `json:"next_run_time,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
