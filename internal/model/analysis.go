package model

import (
	"time"
)

// AnalysisStatus represents the lifecycle state of an analysis request
type AnalysisStatus string

const (
	AnalysisStatusPending   AnalysisStatus = "pending"
	AnalysisStatusRunning   AnalysisStatus = "running"
	AnalysisStatusCompleted AnalysisStatus = "completed"
	AnalysisStatusFailed    AnalysisStatus = "failed"
)

// AnalysisRequest is one schedule risk analysis to perform
type AnalysisRequest struct {
	ID        string        `json:"id"`
	Project   string        `json:"project"`
	Tasks     []Task        `json:"tasks"`
	StartDate time.Time     `json:"start_date"`
	Policy    WeekPolicy    `json:"calendar_policy"`
	Contract  ContractTerms `json:"contract"`
	Location  string        `json:"location,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// AnalysisResult bundles the full pipeline output for one request
type AnalysisResult struct {
	ID          string        `json:"id"`
	Project     string        `json:"project"`
	Schedule    CPMResult     `json:"schedule"`
	Delay       DelayAnalysis `json:"delay"`
	Cost        CostSummary   `json:"cost"`
	CompletedAt time.Time     `json:"completed_at"`
}
