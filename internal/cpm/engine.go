package cpm

import (
	"fmt"
	"sort"
	"time"

	"github.com/t77yq/cpm-analyzer/internal/model"
)

// successorLink pairs a successor task index with the precedence link that
// points back at the current task.
type successorLink struct {
	index int
	link  model.PrecedenceLink
}

// ComputeSchedule performs critical path method analysis over a task set.
// Precedence links referencing unknown task ids contribute no constraint.
// An empty task set yields a zero-duration result, not an error.
func ComputeSchedule(tasks []model.Task, startDate time.Time) (*model.CPMResult, error) {
	result := &model.CPMResult{
		StartDate:    model.DateOnly(startDate),
		CriticalPath: []string{},
	}
	if len(tasks) == 0 {
		return result, nil
	}

	index := make(map[string]int, len(tasks))
	for i, t := range tasks {
		if _, exists := index[t.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTaskID, t.ID)
		}
		index[t.ID] = i
		for _, link := range t.Predecessors {
			if !link.Kind.Valid() {
				return nil, fmt.Errorf("%w: %q on task %s", ErrInvalidPrecedenceKind, link.Kind, t.ID)
			}
		}
	}

	// Adjacency over resolved predecessors only. A self-loop counts as an
	// edge and is caught as a cycle below.
	succs := make([][]successorLink, len(tasks))
	inDegree := make([]int, len(tasks))
	for i, t := range tasks {
		for _, link := range t.Predecessors {
			pred, ok := index[link.PredecessorID]
			if !ok {
				continue
			}
			succs[pred] = append(succs[pred], successorLink{index: i, link: link})
			inDegree[i]++
		}
	}

	order, err := topoSort(tasks, succs, inDegree)
	if err != nil {
		return nil, err
	}

	es := make([]int, len(tasks))
	ef := make([]int, len(tasks))
	for _, i := range order {
		start := 0
		for _, link := range tasks[i].Predecessors {
			pred, ok := index[link.PredecessorID]
			if !ok {
				continue
			}
			var bound int
			switch link.Kind {
			case model.RelationFinishStart:
				bound = ef[pred] + link.Lag
			case model.RelationStartStart:
				bound = es[pred] + link.Lag
			case model.RelationFinishFinish:
				bound = ef[pred] - tasks[i].Duration + link.Lag
			case model.RelationStartFinish:
				bound = es[pred] - tasks[i].Duration + link.Lag
			}
			if bound > start {
				start = bound
			}
		}
		es[i] = start
		ef[i] = start + tasks[i].Duration
	}

	projectEnd := 0
	for i := range tasks {
		if ef[i] > projectEnd {
			projectEnd = ef[i]
		}
	}
	result.ProjectDuration = projectEnd

	// Backward pass. The bound for each successor link mirrors the forward
	// pass, expressed against the successor's early start.
	lf := make([]int, len(tasks))
	ls := make([]int, len(tasks))
	for i := range tasks {
		if len(succs[i]) == 0 {
			lf[i] = projectEnd
		} else {
			min := projectEnd
			first := true
			for _, s := range succs[i] {
				var bound int
				switch s.link.Kind {
				case model.RelationFinishStart, model.RelationStartStart:
					bound = es[s.index] - s.link.Lag
				case model.RelationFinishFinish, model.RelationStartFinish:
					bound = es[s.index] + tasks[s.index].Duration - s.link.Lag
				}
				if first || bound < min {
					min = bound
					first = false
				}
			}
			lf[i] = min
		}
		ls[i] = lf[i] - tasks[i].Duration
	}

	result.Entries = make([]model.ScheduleEntry, len(tasks))
	for i, t := range tasks {
		tf := ls[i] - es[i]
		result.Entries[i] = model.ScheduleEntry{
			TaskID:     t.ID,
			Name:       t.Name,
			Duration:   t.Duration,
			WorkType:   t.WorkType,
			ES:         es[i],
			EF:         ef[i],
			LS:         ls[i],
			LF:         lf[i],
			TotalFloat: tf,
			Critical:   tf == 0,
		}
	}

	result.CriticalPath = criticalPath(tasks, index, succs, es, ls)
	return result, nil
}

// topoSort runs Kahn's algorithm. Residual unprocessed tasks after the sort
// are exactly the cycle members and are named in the returned error.
func topoSort(tasks []model.Task, succs [][]successorLink, inDegree []int) ([]int, error) {
	degree := make([]int, len(inDegree))
	copy(degree, inDegree)

	var queue []int
	for i := range tasks {
		if degree[i] == 0 {
			queue = append(queue, i)
		}
	}

	var order []int
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, s := range succs[node] {
			degree[s.index]--
			if degree[s.index] == 0 {
				queue = append(queue, s.index)
			}
		}
	}

	if len(order) != len(tasks) {
		processed := make(map[int]bool, len(order))
		for _, i := range order {
			processed[i] = true
		}
		var cycle []string
		for i := range tasks {
			if !processed[i] {
				cycle = append(cycle, tasks[i].ID)
			}
		}
		return nil, fmt.Errorf("%w: tasks %v", ErrCycleDetected, cycle)
	}
	return order, nil
}

// criticalPath walks the zero-float tasks from the earliest-starting one,
// following critical predecessor->successor links. A disconnected critical
// subgraph yields only the component reachable from the earliest task.
func criticalPath(tasks []model.Task, index map[string]int, succs [][]successorLink, es, ls []int) []string {
	var critical []int
	for i := range tasks {
		if ls[i]-es[i] == 0 {
			critical = append(critical, i)
		}
	}
	if len(critical) == 0 {
		return []string{}
	}
	sort.SliceStable(critical, func(a, b int) bool {
		return es[critical[a]] < es[critical[b]]
	})

	isCritical := make(map[int]bool, len(critical))
	for _, i := range critical {
		isCritical[i] = true
	}

	path := []string{}
	visited := make(map[int]bool, len(critical))
	var walk func(i int)
	walk = func(i int) {
		if visited[i] {
			return
		}
		visited[i] = true
		path = append(path, tasks[i].ID)

		// Successors ordered by early start so the path reads chronologically.
		next := make([]successorLink, len(succs[i]))
		copy(next, succs[i])
		sort.SliceStable(next, func(a, b int) bool {
			return es[next[a].index] < es[next[b].index]
		})
		for _, s := range next {
			if isCritical[s.index] && !visited[s.index] {
				walk(s.index)
			}
		}
	}
	walk(critical[0])
	return path
}
