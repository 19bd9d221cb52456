package scheduler

import (
	"context"
	"time"
)

// Priority orders regeneration work; lower runs first.
type Priority int

const (
	PriorityCritical Priority = 1
	PriorityHigh     Priority = 2
	PriorityNormal   Priority = 3
	PriorityLow      Priority = 4
)

// ParsePriority maps the impact analyzer's priority labels onto numeric
// priorities. Unknown labels fall back to normal.
func ParsePriority(label string) Priority {
	switch label {
	case "critical":
		return PriorityCritical
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// TaskStatus is the per-task state machine: pending -> running ->
// {completed | failed}, terminal once completed or failed.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// AffectedPage describes one artifact whose content depends on source that
// changed. Produced by the impact analyzer; consumed only as this shape.
type AffectedPage struct {
	PageID           string `json:"page_id"`
	Priority         string `json:"priority"` // critical | high | normal | low
	EstimatedChanges int    `json:"estimated_changes"`
}

// UpdateTask is one unit of regeneration work. The scheduler owns the task
// for the duration of a run.
type UpdateTask struct {
	ID            string        `json:"id"`
	PageID        string        `json:"page_id"`
	Priority      Priority      `json:"priority"`
	Dependencies  []string      `json:"dependencies,omitempty"` // task IDs
	EstimatedTime time.Duration `json:"estimated_time"`
	Status        TaskStatus    `json:"status"`
	Error         string        `json:"error,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	StartedAt     time.Time     `json:"started_at,omitzero"`
	CompletedAt   time.Time     `json:"completed_at,omitzero"`
}

// UpdateBatch is a set of tasks eligible to run at one dependency level.
type UpdateBatch struct {
	ID               string        `json:"id"`
	Tasks            []*UpdateTask `json:"tasks"`
	CanRunInParallel bool          `json:"can_run_in_parallel"`
}

// Result aggregates one scheduler run. TotalPages always equals
// len(CompletedPages) + len(FailedPages) + len(SkippedPages).
type Result struct {
	TotalPages     int           `json:"total_pages"`
	CompletedPages []string      `json:"completed_pages"`
	FailedPages    []string      `json:"failed_pages"`
	SkippedPages   []string      `json:"skipped_pages"`
	TotalTime      time.Duration `json:"total_time"`
	Parallelism    int           `json:"parallelism"`
	Batches        int           `json:"batches"`
}

// UpdateFunc regenerates one page. It is the only integration point with
// content generation; the ctx carries the per-attempt deadline and a
// cooperative implementation may honor it, but nothing forcibly aborts a
// running invocation after a timeout.
type UpdateFunc func(ctx context.Context, pageID string) error

// Config tunes one scheduler run.
type Config struct {
	MaxParallelism int
	BatchSize      int
	Timeout        time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration

	// FailOnCycle makes CreateBatches reject cyclic dependency sets with
	// ErrCyclicDependency. The default reproduces the permissive behavior:
	// tasks stuck in a cycle are never levelled and end up skipped.
	FailOnCycle bool

	// DependencyResolver maps a page to the page IDs it depends on.
	// Optional; without it CreateTasks produces independent tasks.
	DependencyResolver func(pageID string) []string
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxParallelism: 4,
		BatchSize:      10,
		Timeout:        30 * time.Second,
		RetryAttempts:  2,
		RetryDelay:     time.Second,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.MaxParallelism <= 0 {
		c.MaxParallelism = def.MaxParallelism
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.RetryAttempts < 0 {
		c.RetryAttempts = def.RetryAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = def.RetryDelay
	}
	return c
}

// EventType tags a progress notification.
type EventType string

const (
	EventBatchStarted  EventType = "batch_started"
	EventBatchFinished EventType = "batch_finished"
	EventTaskStarted   EventType = "task_started"
	EventTaskRetrying  EventType = "task_retrying"
	EventTaskCompleted EventType = "task_completed"
	EventTaskFailed    EventType = "task_failed"
)

// Event is delivered to subscribed listeners as a run progresses. Listeners
// may be invoked concurrently from worker goroutines.
type Event struct {
	Type    EventType
	Task    *UpdateTask // nil for batch events
	Batch   int         // batch index within the run
	Attempt int         // 1-based attempt number for retry events
	Err     error
}

// Listener receives progress events.
type Listener func(Event)
