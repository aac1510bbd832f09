package autoheal

import (
	"context"
	"sync"

	"github.com/intelogroup/clixen/pkg/models"
)

const defaultMemoryQueueDepth = 256

// MemoryQueue is a channel-backed queue for single-process deployments and
// tests. Jobs are lost on restart.
type MemoryQueue struct {
	jobs   chan *models.AutoHealJob
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		jobs: make(chan *models.AutoHealJob, defaultMemoryQueueDepth),
		done: make(chan struct{}),
	}
}

// Enqueue delivers the job or fails once the queue is closed. The jobs
// channel is never closed; shutdown is signalled through done, so a sender
// blocked on a full buffer cannot race a concurrent Close into a panic.
func (q *MemoryQueue) Enqueue(ctx context.Context, job *models.AutoHealJob) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.jobs <- job:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	select {
	case job := <-q.jobs:
		return &Delivery{Job: job, Token: job.ID}, nil
	case <-q.done:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ack is a no-op: channel delivery already removed the job.
func (q *MemoryQueue) Ack(_ context.Context, _ *Delivery) error {
	return nil
}

// Depth returns the number of jobs waiting in the buffer.
func (q *MemoryQueue) Depth(_ context.Context) (int64, error) {
	return int64(len(q.jobs)), nil
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.done)
	}

	return nil
}
