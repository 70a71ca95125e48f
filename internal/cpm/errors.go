package cpm

import "errors"

var (
	// ErrDuplicateTaskID is returned when two tasks share the same id
	ErrDuplicateTaskID = errors.New("duplicate task id")

	// ErrInvalidPrecedenceKind is returned for an unknown relation kind
	ErrInvalidPrecedenceKind = errors.New("invalid precedence relation kind")

	// ErrCycleDetected is returned when the task graph contains a cycle
	ErrCycleDetected = errors.New("cycle detected in task graph")
)
