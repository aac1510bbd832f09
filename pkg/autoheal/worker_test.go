package autoheal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intelogroup/clixen/pkg/models"
	"github.com/intelogroup/clixen/pkg/nodetypes"
	"github.com/intelogroup/clixen/pkg/persistence"
	"github.com/intelogroup/clixen/pkg/persistence/file"
	"github.com/intelogroup/clixen/pkg/validation"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testChain(t *testing.T) *validation.Chain {
	t.Helper()

	chain, err := validation.NewChain(nodetypes.NewRegistry(), testLogger())
	require.NoError(t, err)

	return chain
}

// fixableWorkflow is valid except for its missing name and positions, both of
// which the auto-fixer can repair.
func fixableWorkflow(t *testing.T, store persistence.Persistence) *models.Workflow {
	t.Helper()

	workflow := &models.Workflow{
		ID:     uuid.NewString(),
		UserID: "user-1",
		Name:   "Needs Healing",
		Status: models.WorkflowStatusFailed,
		Definition: &models.WorkflowDefinition{
			Nodes: []*models.Node{
				{ID: "trigger", Name: "Start", Type: "manual-trigger", TypeVersion: 1},
				{ID: "step", Name: "Do Work", Type: "no-op", TypeVersion: 1},
			},
			Connections: map[string][][]models.Connection{
				"trigger": {{{Node: "step", Index: 0}}},
			},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	require.NoError(t, store.WorkflowRepository().Save(t.Context(), workflow))

	return workflow
}

func jobFor(workflow *models.Workflow) *models.AutoHealJob {
	return &models.AutoHealJob{
		ID:         uuid.NewString(),
		WorkflowID: workflow.ID,
		UserID:     workflow.UserID,
		Layer:      models.LayerStructure,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestMemoryQueue_RoundTrip(t *testing.T) {
	queue := NewMemoryQueue()
	defer func() {
		_ = queue.Close()
	}()

	job := &models.AutoHealJob{ID: "job-1", WorkflowID: "wf-1"}
	require.NoError(t, queue.Enqueue(t.Context(), job))

	delivery, err := queue.Dequeue(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "job-1", delivery.Job.ID)
	assert.NoError(t, queue.Ack(t.Context(), delivery))
}

func TestMemoryQueue_DequeueHonorsContext(t *testing.T) {
	queue := NewMemoryQueue()
	defer func() {
		_ = queue.Close()
	}()

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	_, err := queue.Dequeue(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryQueue_ClosedQueueRejectsEnqueue(t *testing.T) {
	queue := NewMemoryQueue()
	require.NoError(t, queue.Close())

	err := queue.Enqueue(t.Context(), &models.AutoHealJob{ID: "late"})
	require.ErrorIs(t, err, ErrQueueClosed)
}

func TestMemoryQueue_CloseUnblocksPendingEnqueue(t *testing.T) {
	queue := NewMemoryQueue()

	for i := 0; i < defaultMemoryQueueDepth; i++ {
		require.NoError(t, queue.Enqueue(t.Context(), &models.AutoHealJob{ID: uuid.NewString()}))
	}

	// The buffer is full, so this send blocks until Close signals shutdown.
	blocked := make(chan error, 1)

	go func() {
		blocked <- queue.Enqueue(context.Background(), &models.AutoHealJob{ID: "overflow"})
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, queue.Close())

	select {
	case err := <-blocked:
		require.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked enqueue was not released by Close")
	}
}

func TestMemoryQueue_Depth(t *testing.T) {
	queue := NewMemoryQueue()
	defer func() {
		_ = queue.Close()
	}()

	depth, err := queue.Depth(t.Context())
	require.NoError(t, err)
	assert.Zero(t, depth)

	require.NoError(t, queue.Enqueue(t.Context(), &models.AutoHealJob{ID: "job-1"}))
	require.NoError(t, queue.Enqueue(t.Context(), &models.AutoHealJob{ID: "job-2"}))

	depth, err = queue.Depth(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth)
}

// brokenQueue fails every Dequeue, standing in for an unreachable Redis.
type brokenQueue struct {
	dequeues atomic.Int64
}

func (q *brokenQueue) Enqueue(context.Context, *models.AutoHealJob) error { return nil }

func (q *brokenQueue) Dequeue(context.Context) (*Delivery, error) {
	q.dequeues.Add(1)

	return nil, errors.New("connection refused")
}

func (q *brokenQueue) Ack(context.Context, *Delivery) error { return nil }

func (q *brokenQueue) Depth(context.Context) (int64, error) { return 0, nil }

func (q *brokenQueue) Close() error { return nil }

func TestWorker_FailingDequeueIsPaced(t *testing.T) {
	queue := &brokenQueue{}

	worker := NewWorker(WorkerConfig{
		Queue:       queue,
		Persistence: file.NewPersistence(t.TempDir()),
		Chain:       testChain(t),
		Logger:      testLogger(),
		Workers:     1,
	})

	ctx, cancel := context.WithCancel(t.Context())
	worker.Start(ctx)

	time.Sleep(250 * time.Millisecond)
	cancel()
	worker.Wait()

	// A persistent queue failure must wait dequeueRetryDelay between
	// attempts instead of spinning; 250ms allows at most two.
	assert.LessOrEqual(t, queue.dequeues.Load(), int64(2))
	assert.GreaterOrEqual(t, queue.dequeues.Load(), int64(1))
}

func TestWorker_HealsFixableWorkflow(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	queue := NewMemoryQueue()
	workflow := fixableWorkflow(t, store)

	worker := NewWorker(WorkerConfig{
		Queue:       queue,
		Persistence: store,
		Chain:       testChain(t),
		Logger:      testLogger(),
		Workers:     1,
	})

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	worker.Start(ctx)

	require.NoError(t, queue.Enqueue(ctx, jobFor(workflow)))

	require.Eventually(t, func() bool {
		healed, err := store.WorkflowRepository().GetByIDForUser(ctx, workflow.ID, "user-1")
		if err != nil {
			return false
		}

		return healed.Definition.Name != "" && healed.Status == models.WorkflowStatusDraft
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	worker.Wait()

	healed, err := store.WorkflowRepository().GetByIDForUser(t.Context(), workflow.ID, "user-1")
	require.NoError(t, err)

	for _, node := range healed.Definition.Nodes {
		assert.True(t, node.HasValidPosition())
	}
}

func TestWorker_DropsJobForMissingWorkflow(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	queue := NewMemoryQueue()

	worker := NewWorker(WorkerConfig{
		Queue:       queue,
		Persistence: store,
		Chain:       testChain(t),
		Logger:      testLogger(),
		Workers:     1,
	})

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	worker.Start(ctx)

	job := &models.AutoHealJob{
		ID:         uuid.NewString(),
		WorkflowID: "gone",
		UserID:     "user-1",
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, queue.Enqueue(ctx, job))

	// The job is consumed and dropped without panicking or re-enqueueing.
	require.Eventually(t, func() bool {
		select {
		case queued, ok := <-queue.jobs:
			if ok {
				queue.jobs <- queued
			}

			return false
		default:
			return true
		}
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	worker.Wait()
}

func TestWorker_ExhaustsRetryBudget(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	queue := NewMemoryQueue()

	// Missing credentials cannot be auto-fixed, so healing never converges.
	workflow := fixableWorkflow(t, store)
	workflow.Definition.Nodes = append(workflow.Definition.Nodes, &models.Node{
		ID: "notify", Name: "Notify", Type: "slack", TypeVersion: 1,
	})
	require.NoError(t, store.WorkflowRepository().Save(t.Context(), workflow))

	worker := NewWorker(WorkerConfig{
		Queue:       queue,
		Persistence: store,
		Chain:       testChain(t),
		Logger:      testLogger(),
		Workers:     1,
		MaxRetries:  1,
	})

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	worker.Start(ctx)

	job := jobFor(workflow)
	job.RetryCount = 1
	require.NoError(t, queue.Enqueue(ctx, job))

	// Budget already spent: the job is dropped instead of re-enqueued.
	require.Eventually(t, func() bool {
		select {
		case queued, ok := <-queue.jobs:
			if ok {
				queue.jobs <- queued
			}

			return false
		default:
			return true
		}
	}, 5*time.Second, 20*time.Millisecond)

	stored, err := store.WorkflowRepository().GetByIDForUser(t.Context(), workflow.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusFailed, stored.Status)

	cancel()
	worker.Wait()
}

func TestBackoffIsBoundedAndExponential(t *testing.T) {
	assert.Equal(t, time.Second, backoff(0))
	assert.Equal(t, 2*time.Second, backoff(1))
	assert.Equal(t, 4*time.Second, backoff(2))
	assert.Equal(t, 30*time.Second, backoff(5))
	assert.Equal(t, 30*time.Second, backoff(40))
}
