package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 2 * time.Second
	cfg.RetryDelay = 5 * time.Millisecond
	return cfg
}

func pendingTask(id string, priority Priority, deps ...string) *UpdateTask {
	return &UpdateTask{ID: id, PageID: "page-" + id, Priority: priority, Dependencies: deps, Status: StatusPending}
}

func TestCreateTasks_SortsByPriorityAndResolvesDependencies(t *testing.T) {
	cfg := testConfig()
	cfg.DependencyResolver = func(pageID string) []string {
		if pageID == "child" {
			return []string{"parent", "outside-run"}
		}
		return nil
	}
	s := New(cfg)

	tasks := s.CreateTasks([]AffectedPage{
		{PageID: "child", Priority: "low", EstimatedChanges: 3},
		{PageID: "parent", Priority: "critical", EstimatedChanges: 1},
		{PageID: "other", Priority: "high"},
	})

	require.Len(t, tasks, 3)
	assert.Equal(t, "parent", tasks[0].PageID)
	assert.Equal(t, "other", tasks[1].PageID)
	assert.Equal(t, "child", tasks[2].PageID)

	for _, task := range tasks {
		assert.Equal(t, StatusPending, task.Status)
	}

	child := tasks[2]
	require.Len(t, child.Dependencies, 1, "dependency outside the run is dropped")
	assert.Equal(t, tasks[0].ID, child.Dependencies[0])
	assert.Equal(t, 3*estimatePerChange, child.EstimatedTime)
}

func TestCreateBatches_DependentsLandInLaterBatches(t *testing.T) {
	s := New(testConfig())
	a := pendingTask("a", PriorityNormal)
	b := pendingTask("b", PriorityNormal, "a")
	c := pendingTask("c", PriorityNormal, "b")
	d := pendingTask("d", PriorityNormal, "a")

	batches, err := s.CreateBatches([]*UpdateTask{a, b, c, d})
	require.NoError(t, err)

	batchIndex := map[string]int{}
	for i, batch := range batches {
		for _, task := range batch.Tasks {
			batchIndex[task.ID] = i
		}
	}
	require.Len(t, batchIndex, 4)
	assert.Greater(t, batchIndex["b"], batchIndex["a"])
	assert.Greater(t, batchIndex["c"], batchIndex["b"])
	assert.Greater(t, batchIndex["d"], batchIndex["a"])
}

func TestCreateBatches_ChunksByBatchSize(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 2
	s := New(cfg)

	var tasks []*UpdateTask
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		tasks = append(tasks, pendingTask(id, PriorityNormal))
	}

	batches, err := s.CreateBatches(tasks)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0].Tasks, 2)
	assert.Len(t, batches[1].Tasks, 2)
	assert.Len(t, batches[2].Tasks, 1)
	for _, batch := range batches {
		assert.True(t, batch.CanRunInParallel)
	}
}

func TestCreateBatches_CyclePolicies(t *testing.T) {
	a := pendingTask("a", PriorityNormal, "b")
	b := pendingTask("b", PriorityNormal, "a")
	free := pendingTask("free", PriorityNormal)

	permissive := New(testConfig())
	batches, err := permissive.CreateBatches([]*UpdateTask{a, b, free})
	require.NoError(t, err)
	require.Len(t, batches, 1, "cyclic tasks stay unbatched")
	assert.Equal(t, "free", batches[0].Tasks[0].ID)

	strictCfg := testConfig()
	strictCfg.FailOnCycle = true
	_, err = New(strictCfg).CreateBatches([]*UpdateTask{a, b, free})
	assert.ErrorIs(t, err, ErrCyclicDependency)
}

func TestExecuteBatches_ThreeIndependentTasksOneBatch(t *testing.T) {
	s := New(testConfig())
	pages := []AffectedPage{
		{PageID: "p1", Priority: "normal"},
		{PageID: "p2", Priority: "normal"},
		{PageID: "p3", Priority: "normal"},
	}

	var calls atomic.Int32
	res, err := s.UpdatePagesParallel(context.Background(), pages, func(ctx context.Context, pageID string) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Batches)
	assert.Equal(t, 3, res.TotalPages)
	assert.Len(t, res.CompletedPages, 3)
	assert.Empty(t, res.FailedPages)
	assert.Empty(t, res.SkippedPages)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExecuteBatches_RetryUntilSuccess(t *testing.T) {
	cfg := testConfig()
	cfg.RetryAttempts = 2
	s := New(cfg)

	var calls atomic.Int32
	res, err := s.UpdatePagesParallel(context.Background(), []AffectedPage{{PageID: "flaky"}}, func(ctx context.Context, pageID string) error {
		if calls.Add(1) <= 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"flaky"}, res.CompletedPages)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExecuteBatches_PermanentFailureAfterAllAttempts(t *testing.T) {
	cfg := testConfig()
	cfg.RetryAttempts = 2
	s := New(cfg)

	var calls atomic.Int32
	tasks := s.CreateTasks([]AffectedPage{{PageID: "doomed"}})
	batches, err := s.CreateBatches(tasks)
	require.NoError(t, err)

	res := s.ExecuteBatches(context.Background(), batches, func(ctx context.Context, pageID string) error {
		calls.Add(1)
		return errors.New("permanent")
	})

	assert.Equal(t, int32(3), calls.Load(), "retryAttempts+1 attempts total")
	assert.Equal(t, []string{"doomed"}, res.FailedPages)
	require.Len(t, tasks, 1)
	assert.Equal(t, StatusFailed, tasks[0].Status)
	assert.Contains(t, tasks[0].Error, "permanent")
}

func TestExecuteBatches_TimeoutCountsAsFailedAttempt(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	cfg.RetryAttempts = 1
	s := New(cfg)

	var calls atomic.Int32
	res, err := s.UpdatePagesParallel(context.Background(), []AffectedPage{{PageID: "slow"}}, func(ctx context.Context, pageID string) error {
		if calls.Add(1) == 1 {
			time.Sleep(200 * time.Millisecond) // ignores ctx, keeps running past the deadline
			return nil
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"slow"}, res.CompletedPages, "timed-out attempt is retried like any failure")
	assert.Equal(t, int32(2), calls.Load())
}

func TestExecuteBatches_FailureDoesNotBlockDependents(t *testing.T) {
	cfg := testConfig()
	cfg.RetryAttempts = 0
	cfg.DependencyResolver = func(pageID string) []string {
		if pageID == "dependent" {
			return []string{"broken"}
		}
		return nil
	}
	s := New(cfg)

	var order []string
	var mu sync.Mutex
	res, err := s.UpdatePagesParallel(context.Background(), []AffectedPage{
		{PageID: "broken"},
		{PageID: "dependent"},
	}, func(ctx context.Context, pageID string) error {
		mu.Lock()
		order = append(order, pageID)
		mu.Unlock()
		if pageID == "broken" {
			return errors.New("boom")
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"broken", "dependent"}, order, "dependents still run after a predecessor fails")
	assert.Equal(t, []string{"dependent"}, res.CompletedPages)
	assert.Equal(t, []string{"broken"}, res.FailedPages)
	assert.Equal(t, 2, res.Batches)
}

func TestExecuteBatches_ParallelismBound(t *testing.T) {
	cfg := testConfig()
	cfg.MaxParallelism = 2
	s := New(cfg)

	var inFlight, peak atomic.Int32
	pages := make([]AffectedPage, 8)
	for i := range pages {
		pages[i] = AffectedPage{PageID: string(rune('a' + i))}
	}

	_, err := s.UpdatePagesParallel(context.Background(), pages, func(ctx context.Context, pageID string) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestUpdatePagesParallel_CyclicTasksReportedSkipped(t *testing.T) {
	cfg := testConfig()
	cfg.DependencyResolver = func(pageID string) []string {
		switch pageID {
		case "x":
			return []string{"y"}
		case "y":
			return []string{"x"}
		}
		return nil
	}
	s := New(cfg)

	res, err := s.UpdatePagesParallel(context.Background(), []AffectedPage{
		{PageID: "x"}, {PageID: "y"}, {PageID: "free"},
	}, func(ctx context.Context, pageID string) error {
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalPages)
	assert.Equal(t, []string{"free"}, res.CompletedPages)
	assert.ElementsMatch(t, []string{"x", "y"}, res.SkippedPages)
	assert.Equal(t, res.TotalPages, len(res.CompletedPages)+len(res.FailedPages)+len(res.SkippedPages))
}

func TestSubscribe_ReceivesTerminalTaskEvents(t *testing.T) {
	s := New(testConfig())

	var mu sync.Mutex
	counts := map[EventType]int{}
	s.Subscribe(func(ev Event) {
		mu.Lock()
		counts[ev.Type]++
		mu.Unlock()
	})

	_, err := s.UpdatePagesParallel(context.Background(), []AffectedPage{{PageID: "p1"}, {PageID: "p2"}}, func(ctx context.Context, pageID string) error {
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, counts[EventBatchStarted])
	assert.Equal(t, 1, counts[EventBatchFinished])
	assert.Equal(t, 2, counts[EventTaskStarted])
	assert.Equal(t, 2, counts[EventTaskCompleted])
}
