package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// estimatePerChange converts an impact analyzer's change estimate into a
// rough regeneration time used for reporting only.
const estimatePerChange = 2 * time.Second

// Scheduler turns affected-page descriptors into dependency-ordered,
// bounded-parallelism batches of regeneration tasks and executes them with
// retry and timeout semantics. A single coordinating Scheduler handles one
// run at a time; progress flows through an explicit subscriber list rather
// than any global emitter.
type Scheduler struct {
	cfg Config

	mu        sync.Mutex
	listeners []Listener
}

// New creates a scheduler, filling unset config fields with defaults.
func New(cfg Config) *Scheduler {
	return &Scheduler{cfg: cfg.normalized()}
}

// Subscribe registers a progress listener for subsequent runs.
func (s *Scheduler) Subscribe(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Scheduler) emit(ev Event) {
	s.mu.Lock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// CreateTasks builds pending tasks from affected pages, sorted by ascending
// numeric priority (critical first). Dependencies are resolved from page
// IDs to task IDs via the configured DependencyResolver; a dependency on a
// page outside this run is dropped.
func (s *Scheduler) CreateTasks(pages []AffectedPage) []*UpdateTask {
	tasks := make([]*UpdateTask, 0, len(pages))
	taskByPage := make(map[string]*UpdateTask, len(pages))

	for _, page := range pages {
		task := &UpdateTask{
			ID:            uuid.NewString(),
			PageID:        page.PageID,
			Priority:      ParsePriority(page.Priority),
			EstimatedTime: time.Duration(page.EstimatedChanges) * estimatePerChange,
			Status:        StatusPending,
			CreatedAt:     time.Now(),
		}
		tasks = append(tasks, task)
		taskByPage[page.PageID] = task
	}

	if s.cfg.DependencyResolver != nil {
		for _, task := range tasks {
			for _, depPage := range s.cfg.DependencyResolver(task.PageID) {
				if dep, ok := taskByPage[depPage]; ok && dep != task {
					task.Dependencies = append(task.Dependencies, dep.ID)
				}
			}
		}
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Priority < tasks[j].Priority
	})
	return tasks
}

// UpdatePagesParallel composes CreateTasks, CreateBatches and
// ExecuteBatches. Tasks that could not be levelled (dependency cycles under
// the permissive policy) are reported as skipped; the result partition
// always covers every input page.
func (s *Scheduler) UpdatePagesParallel(ctx context.Context, pages []AffectedPage, fn UpdateFunc) (*Result, error) {
	start := time.Now()
	tasks := s.CreateTasks(pages)

	batches, err := s.CreateBatches(tasks)
	if err != nil {
		return nil, err
	}

	res := s.ExecuteBatches(ctx, batches, fn)

	batched := make(map[string]bool)
	for _, batch := range batches {
		for _, task := range batch.Tasks {
			batched[task.ID] = true
		}
	}
	for _, task := range tasks {
		if !batched[task.ID] {
			res.SkippedPages = append(res.SkippedPages, task.PageID)
		}
	}
	res.TotalPages = len(tasks)
	res.TotalTime = time.Since(start)
	return res, nil
}
