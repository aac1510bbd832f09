package autoheal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/intelogroup/clixen/pkg/eventbus"
	"github.com/intelogroup/clixen/pkg/events"
	"github.com/intelogroup/clixen/pkg/metrics"
	"github.com/intelogroup/clixen/pkg/models"
	"github.com/intelogroup/clixen/pkg/otelhelper"
	"github.com/intelogroup/clixen/pkg/persistence"
	"github.com/intelogroup/clixen/pkg/quality"
	"github.com/intelogroup/clixen/pkg/validation"
)

const (
	// DefaultMaxRetries bounds repair attempts per workflow; exceeding it
	// surfaces a permanent failure instead of retrying silently.
	DefaultMaxRetries = 3

	DefaultWorkerCount = 2

	backoffBase = time.Second
	backoffCap  = 30 * time.Second

	// dequeueRetryDelay paces the consume loop when the queue itself is
	// failing, so a Redis outage does not spin the workers hot.
	dequeueRetryDelay = time.Second
)

// WorkerConfig carries the worker pool's dependencies. Publisher, Metrics and
// Tracer are optional.
type WorkerConfig struct {
	Queue       Queue
	Persistence persistence.Persistence
	Chain       *validation.Chain
	Publisher   eventbus.EventPublisher
	Metrics     *metrics.Metrics
	Tracer      trace.Tracer
	Logger      *slog.Logger

	Workers    int
	MaxRetries int
}

// Worker consumes auto-heal jobs, applies automatic fixes and re-validates
// the repaired definition. Each worker handles one job at a time.
type Worker struct {
	queue      Queue
	store      persistence.Persistence
	chain      *validation.Chain
	publisher  eventbus.EventPublisher
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	logger     *slog.Logger
	workers    int
	maxRetries int

	wg sync.WaitGroup
}

func NewWorker(cfg WorkerConfig) *Worker {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("autoheal")
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkerCount
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	return &Worker{
		queue:      cfg.Queue,
		store:      cfg.Persistence,
		chain:      cfg.Chain,
		publisher:  cfg.Publisher,
		metrics:    cfg.Metrics,
		tracer:     tracer,
		logger:     cfg.Logger.With("module", "autoheal"),
		workers:    workers,
		maxRetries: maxRetries,
	}
}

// Start launches the worker pool. Workers run until ctx is cancelled or the
// queue closes; Wait blocks until they drain.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)

		go func(id int) {
			defer w.wg.Done()
			w.run(ctx, id)
		}(i)
	}
}

func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, id int) {
	logger := w.logger.With("worker", id)
	logger.InfoContext(ctx, "autoheal worker started")

	for {
		delivery, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, ErrQueueClosed) {
				logger.InfoContext(ctx, "autoheal worker stopping")

				return
			}

			logger.ErrorContext(ctx, "failed to dequeue autoheal job", "error", err)

			select {
			case <-time.After(dequeueRetryDelay):
			case <-ctx.Done():
				return
			}

			continue
		}

		w.process(ctx, logger, delivery)
	}
}

// process repairs one job. The delivery is always acked; a still-broken
// definition is re-enqueued as a fresh job with an incremented retry count.
func (w *Worker) process(ctx context.Context, logger *slog.Logger, delivery *Delivery) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "autoheal.process",
		attribute.String(otelhelper.WorkflowIDKey, delivery.Job.WorkflowID),
		attribute.String(otelhelper.UserIDKey, delivery.Job.UserID),
	)
	defer span.End()

	defer func() {
		if err := w.queue.Ack(ctx, delivery); err != nil {
			logger.ErrorContext(ctx, "failed to ack autoheal job", "job_id", delivery.Job.ID, "error", err)
		}
	}()

	job := delivery.Job

	workflow, err := w.store.WorkflowRepository().GetByIDForUser(ctx, job.WorkflowID, job.UserID)
	if err != nil {
		logger.WarnContext(ctx, "dropping autoheal job for missing workflow",
			"job_id", job.ID, "workflow_id", job.WorkflowID, "error", err)
		w.countOutcome("dropped")

		return
	}

	fixed, fixes, err := quality.AutoFix(workflow.Definition)
	if err != nil {
		logger.ErrorContext(ctx, "autofix failed", "job_id", job.ID, "error", err)
		w.fail(ctx, job, "autofix failed: "+err.Error())

		return
	}

	result := w.chain.Validate(ctx, fixed)
	if result.HasBlocking() {
		w.retryOrFail(ctx, logger, job, result)

		return
	}

	workflow.Definition = fixed
	workflow.Status = models.WorkflowStatusDraft
	workflow.UpdatedAt = time.Now().UTC()

	if err := w.store.WorkflowRepository().Save(ctx, workflow); err != nil {
		logger.ErrorContext(ctx, "failed to persist healed workflow", "job_id", job.ID, "error", err)
		w.fail(ctx, job, "failed to persist healed workflow")

		return
	}

	logger.InfoContext(ctx, "workflow healed",
		"job_id", job.ID,
		"workflow_id", job.WorkflowID,
		"fixes_applied", len(fixes),
	)
	w.countOutcome("succeeded")

	w.publish(ctx, job.WorkflowID, events.AutoHealSucceeded{
		BaseEvent:    w.baseEvent(events.AutoHealSucceededEvent, job),
		JobID:        job.ID,
		FixesApplied: len(fixes),
	})
}

// retryOrFail re-enqueues a still-broken job with exponential backoff until
// the retry budget runs out.
func (w *Worker) retryOrFail(ctx context.Context, logger *slog.Logger, job *models.AutoHealJob, result *models.ValidationResult) {
	if job.RetryCount >= w.maxRetries {
		logger.WarnContext(ctx, "autoheal retry budget exhausted",
			"job_id", job.ID, "workflow_id", job.WorkflowID, "retries", job.RetryCount)
		w.fail(ctx, job, "still invalid after repair attempts")

		return
	}

	select {
	case <-time.After(backoff(job.RetryCount)):
	case <-ctx.Done():
		return
	}

	retry := &models.AutoHealJob{
		ID:           uuid.NewString(),
		WorkflowID:   job.WorkflowID,
		UserID:       job.UserID,
		DeploymentID: job.DeploymentID,
		Layer:        validation.FailedLayer(result),
		Errors:       result.FixableErrors(),
		RetryCount:   job.RetryCount + 1,
		CreatedAt:    time.Now().UTC(),
	}

	if err := w.queue.Enqueue(ctx, retry); err != nil {
		logger.ErrorContext(ctx, "failed to re-enqueue autoheal job", "job_id", job.ID, "error", err)
		w.fail(ctx, job, "failed to re-enqueue for retry")

		return
	}

	w.countOutcome("retried")
}

func (w *Worker) fail(ctx context.Context, job *models.AutoHealJob, reason string) {
	w.countOutcome("failed")

	w.publish(ctx, job.WorkflowID, events.AutoHealFailed{
		BaseEvent:  w.baseEvent(events.AutoHealFailedEvent, job),
		JobID:      job.ID,
		RetryCount: job.RetryCount,
		Reason:     reason,
	})
}

func (w *Worker) publish(ctx context.Context, key string, event eventbus.Event) {
	if w.publisher == nil {
		return
	}

	if err := w.publisher.Publish(ctx, key, event); err != nil {
		w.logger.WarnContext(ctx, "failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func (w *Worker) baseEvent(eventType events.EventType, job *models.AutoHealJob) events.BaseEvent {
	return events.BaseEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: job.WorkflowID,
		UserID:     job.UserID,
	}
}

func (w *Worker) countOutcome(outcome string) {
	if w.metrics == nil {
		return
	}

	w.metrics.AutoHealJobsTotal.WithLabelValues(outcome).Inc()
}

func backoff(retryCount int) time.Duration {
	d := backoffBase << retryCount
	if d > backoffCap || d <= 0 {
		return backoffCap
	}

	return d
}
