// Package autoheal queues failed-but-fixable validations for background
// repair and re-validation.
package autoheal

import (
	"context"
	"errors"

	"github.com/intelogroup/clixen/pkg/models"
)

// ErrQueueClosed is returned by queue operations after Close.
var ErrQueueClosed = errors.New("autoheal queue closed")

// Delivery is a dequeued job plus the token needed to acknowledge it.
type Delivery struct {
	Job *models.AutoHealJob

	// Token identifies the delivery to the backing queue. Opaque to
	// consumers.
	Token string
}

// Queue transports auto-heal jobs from the orchestrator to the healer
// workers. Implementations deliver each job at least once; Ack marks the
// delivery consumed.
type Queue interface {
	Enqueue(ctx context.Context, job *models.AutoHealJob) error

	// Dequeue blocks until a job is available or ctx is done.
	Dequeue(ctx context.Context) (*Delivery, error)

	Ack(ctx context.Context, delivery *Delivery) error

	// Depth reports the number of jobs waiting in the queue.
	Depth(ctx context.Context) (int64, error)

	Close() error
}
