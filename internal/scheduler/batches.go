package scheduler

import (
	"errors"
	"fmt"
)

// ErrCyclicDependency is returned by CreateBatches when FailOnCycle is set
// and the task set contains a dependency cycle.
var ErrCyclicDependency = errors.New("cyclic task dependencies")

// CreateBatches levels tasks so that every task lands on the shallowest
// level consistent with all of its dependencies, then chunks each level
// into batches of at most BatchSize. Level N tasks never start before every
// level N-1 task has reached a terminal state because batches execute
// strictly in order.
//
// Levelling is an iterative work list over in-degree counters rather than
// recursion, so arbitrarily deep graphs cannot exhaust the stack. A
// dependency naming a task outside the set counts as already satisfied.
// Tasks caught in a cycle never become ready: with FailOnCycle they abort
// batching, otherwise they are left unbatched for the caller to skip.
func (s *Scheduler) CreateBatches(tasks []*UpdateTask) ([]*UpdateBatch, error) {
	levels, leftover := levelTasks(tasks)
	if len(leftover) > 0 && s.cfg.FailOnCycle {
		return nil, fmt.Errorf("%w: %d tasks unreachable", ErrCyclicDependency, len(leftover))
	}

	var batches []*UpdateBatch
	for levelIdx, level := range levels {
		for start := 0; start < len(level); start += s.cfg.BatchSize {
			end := min(start+s.cfg.BatchSize, len(level))
			batches = append(batches, &UpdateBatch{
				ID:               fmt.Sprintf("level-%d-batch-%d", levelIdx, len(batches)),
				Tasks:            level[start:end],
				CanRunInParallel: s.cfg.MaxParallelism > 1,
			})
		}
	}
	return batches, nil
}

// levelTasks assigns every reachable task to a dependency level using an
// explicit queue of ready nodes and decremented in-degree counters.
// Input order (priority order) is preserved within each level.
func levelTasks(tasks []*UpdateTask) (levels [][]*UpdateTask, leftover []*UpdateTask) {
	inSet := make(map[string]*UpdateTask, len(tasks))
	for _, task := range tasks {
		inSet[task.ID] = task
	}

	indegree := make(map[string]int, len(tasks))
	dependents := make(map[string][]*UpdateTask, len(tasks))
	for _, task := range tasks {
		for _, dep := range task.Dependencies {
			if _, ok := inSet[dep]; !ok {
				continue // unknown dependency, treated as satisfied
			}
			indegree[task.ID]++
			dependents[dep] = append(dependents[dep], task)
		}
	}

	current := make([]*UpdateTask, 0, len(tasks))
	for _, task := range tasks {
		if indegree[task.ID] == 0 {
			current = append(current, task)
		}
	}

	levelled := make(map[string]bool, len(tasks))
	for len(current) > 0 {
		levels = append(levels, current)
		var next []*UpdateTask
		for _, task := range current {
			levelled[task.ID] = true
			for _, dependent := range dependents[task.ID] {
				indegree[dependent.ID]--
				if indegree[dependent.ID] == 0 {
					next = append(next, dependent)
				}
			}
		}
		current = next
	}

	for _, task := range tasks {
		if !levelled[task.ID] {
			leftover = append(leftover, task)
		}
	}
	return levels, leftover
}
