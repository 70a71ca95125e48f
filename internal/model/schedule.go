package model

import (
	"time"
)

// ScheduleEntry holds the computed timings for a single task.
// EF - ES == Duration and LF - LS == Duration always hold. TotalFloat may be
// negative for infeasible lag structures; it is reported as-is, never clamped.
type ScheduleEntry struct {
	TaskID     string `json:"task_id"`
	Name       string `json:"name"`
	Duration   int    `json:"duration"`
	WorkType   string `json:"work_type,omitempty"`
	ES         int    `json:"es"`
	EF         int    `json:"ef"`
	LS         int    `json:"ls"`
	LF         int    `json:"lf"`
	TotalFloat int    `json:"tf"`
	Critical   bool   `json:"is_critical"`
}

// CPMResult is the output of a critical path computation
type CPMResult struct {
	StartDate       time.Time       `json:"start_date"`
	Entries         []ScheduleEntry `json:"entries"`
	CriticalPath    []string        `json:"critical_path"`
	ProjectDuration int             `json:"project_duration"`
}

// Entry returns the schedule entry for the given task id, or nil
func (r *CPMResult) Entry(taskID string) *ScheduleEntry {
	for i := range r.Entries {
		if r.Entries[i].TaskID == taskID {
			return &r.Entries[i]
		}
	}
	return nil
}

// EndDate returns the last working date of the ideal schedule.
// For a zero-duration project it equals the start date.
func (r *CPMResult) EndDate() time.Time {
	if r.ProjectDuration <= 0 {
		return r.StartDate
	}
	return r.StartDate.AddDate(0, 0, r.ProjectDuration-1)
}
