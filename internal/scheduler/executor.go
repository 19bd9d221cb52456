package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// ExecuteBatches runs batches strictly in sequence, waiting for every task
// in a batch to settle before the next batch begins. Within a parallel
// batch tasks run concurrently under the configured parallelism bound and
// may complete in any order. A task failure never aborts its siblings and
// never blocks later batches from attempting to run; partial failure is the
// normal, expected outcome, surfaced only through the result.
func (s *Scheduler) ExecuteBatches(ctx context.Context, batches []*UpdateBatch, fn UpdateFunc) *Result {
	start := time.Now()
	res := &Result{
		CompletedPages: []string{},
		FailedPages:    []string{},
		SkippedPages:   []string{},
		Parallelism:    s.cfg.MaxParallelism,
		Batches:        len(batches),
	}

	for batchIdx, batch := range batches {
		s.emit(Event{Type: EventBatchStarted, Batch: batchIdx})

		if batch.CanRunInParallel {
			p := pool.New().WithMaxGoroutines(s.cfg.MaxParallelism)
			for _, task := range batch.Tasks {
				task := task
				p.Go(func() {
					s.runTask(ctx, task, batchIdx, fn)
				})
			}
			p.Wait()
		} else {
			for _, task := range batch.Tasks {
				s.runTask(ctx, task, batchIdx, fn)
			}
		}

		for _, task := range batch.Tasks {
			res.TotalPages++
			if task.Status == StatusCompleted {
				res.CompletedPages = append(res.CompletedPages, task.PageID)
			} else {
				res.FailedPages = append(res.FailedPages, task.PageID)
			}
		}
		s.emit(Event{Type: EventBatchFinished, Batch: batchIdx})
	}

	res.TotalTime = time.Since(start)
	return res
}

// runTask drives one task to a terminal state: up to RetryAttempts retries
// after the first attempt, with linear backoff RetryDelay × attempt between
// attempts. Every attempt is bounded by the configured timeout.
func (s *Scheduler) runTask(ctx context.Context, task *UpdateTask, batchIdx int, fn UpdateFunc) {
	task.Status = StatusRunning
	task.StartedAt = time.Now()
	s.emit(Event{Type: EventTaskStarted, Task: task, Batch: batchIdx})

	var lastErr error
	for attempt := 0; attempt <= s.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			s.emit(Event{Type: EventTaskRetrying, Task: task, Batch: batchIdx, Attempt: attempt + 1, Err: lastErr})
			select {
			case <-time.After(time.Duration(attempt) * s.cfg.RetryDelay):
			case <-ctx.Done():
			}
		}

		lastErr = s.attempt(ctx, task.PageID, fn)
		if lastErr == nil {
			task.Status = StatusCompleted
			task.CompletedAt = time.Now()
			s.emit(Event{Type: EventTaskCompleted, Task: task, Batch: batchIdx, Attempt: attempt + 1})
			return
		}
	}

	task.Status = StatusFailed
	task.Error = lastErr.Error()
	task.CompletedAt = time.Now()
	s.emit(Event{Type: EventTaskFailed, Task: task, Batch: batchIdx, Err: lastErr})
}

// attempt invokes updateFn once under the per-attempt deadline. On timeout
// the scheduler stops waiting and treats the attempt as failed; the
// invocation itself is not forcibly aborted and may keep running in the
// background, though the deadline ctx lets cooperative implementations
// stop early.
func (s *Scheduler) attempt(ctx context.Context, pageID string, fn UpdateFunc) error {
	attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(attemptCtx, pageID)
	}()

	select {
	case err := <-done:
		return err
	case <-attemptCtx.Done():
		return fmt.Errorf("update of %s timed out after %v: %w", pageID, s.cfg.Timeout, attemptCtx.Err())
	}
}
