package model

import (
	"time"
)

// RelationKind represents the type of a precedence relation between two tasks
type RelationKind string

const (
	RelationFinishStart  RelationKind = "FS"
	RelationStartStart   RelationKind = "SS"
	RelationFinishFinish RelationKind = "FF"
	RelationStartFinish  RelationKind = "SF"
)

// Valid reports whether k is one of the four supported relation kinds
func (k RelationKind) Valid() bool {
	switch k {
	case RelationFinishStart, RelationStartStart, RelationFinishFinish, RelationStartFinish:
		return true
	}
	return false
}

// PrecedenceLink references a predecessor task. Lag may be negative (lead time).
type PrecedenceLink struct {
	PredecessorID string       `json:"predecessor_id"`
	Kind          RelationKind `json:"kind"`
	Lag           int          `json:"lag"`
}

// Task represents a single WBS item. Duration is in whole working days.
type Task struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Duration     int              `json:"duration"`
	WorkType     string           `json:"work_type,omitempty"`
	Predecessors []PrecedenceLink `json:"predecessors,omitempty"`
}

// WeekPolicy represents the work-week policy used to resolve non-working days
type WeekPolicy string

const (
	WeekPolicyFiveDay  WeekPolicy = "5d"
	WeekPolicySixDay   WeekPolicy = "6d"
	WeekPolicySevenDay WeekPolicy = "7d"
)

// DateOnly normalizes t to midnight UTC so dates compare by calendar day
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
