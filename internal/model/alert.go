package model

import "time"

// AlertSeverity represents the severity level of an alert
type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityError    AlertSeverity = "error"
	AlertSeverityCritical AlertSeverity = "critical"
)

// AlertType represents the type of alert
type AlertType string

const (
	AlertTypeDelayThreshold AlertType = "delay_threshold"
	AlertTypeCostThreshold  AlertType = "cost_threshold"
)

// AlertRule defines a threshold rule evaluated against analysis results.
// Threshold is in delay days for delay rules, in currency for cost rules.
type AlertRule struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Type      AlertType     `json:"type"`
	Threshold float64       `json:"threshold"`
	Severity  AlertSeverity `json:"severity"`
	Silenced  bool          `json:"silenced"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Alert represents an alert event raised from an analysis result
type Alert struct {
	ID         string                 `json:"id"`
	RuleID     string                 `json:"rule_id"`
	AnalysisID string                 `json:"analysis_id"`
	Type       AlertType              `json:"type"`
	Severity   AlertSeverity          `json:"severity"`
	Message    string                 `json:"message"`
	Data       map[string]interface{} `json:"data,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}
