// Package deployment drives validated workflow definitions through the
// deploy state machine and keeps the persisted audit trail consistent with
// the execution engine.
package deployment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/intelogroup/clixen/pkg/autoheal"
	"github.com/intelogroup/clixen/pkg/engine"
	"github.com/intelogroup/clixen/pkg/eventbus"
	"github.com/intelogroup/clixen/pkg/events"
	"github.com/intelogroup/clixen/pkg/metrics"
	"github.com/intelogroup/clixen/pkg/models"
	"github.com/intelogroup/clixen/pkg/otelhelper"
	"github.com/intelogroup/clixen/pkg/persistence"
	"github.com/intelogroup/clixen/pkg/validation"
)

const (
	// testModeDelay simulates engine latency for dry runs.
	testModeDelay = 100 * time.Millisecond

	webhookTriggerType = "webhook-trigger"

	recentDeploymentWindow = 24 * time.Hour

	engineProbeTimeout = 5 * time.Second
)

// EngineClient is the slice of the engine API the orchestrator needs.
type EngineClient interface {
	CreateWorkflow(ctx context.Context, payload *engine.DeployPayload) (*engine.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error
	Health(ctx context.Context) error
	BaseURL() string
}

// Config carries the orchestrator's dependencies. Publisher, Queue, Metrics
// and Tracer are optional; everything else is required.
type Config struct {
	Persistence persistence.Persistence
	Chain       *validation.Chain
	Engine      EngineClient
	Publisher   eventbus.EventPublisher
	Queue       autoheal.Queue
	Metrics     *metrics.Metrics
	Tracer      trace.Tracer
	Logger      *slog.Logger
}

// Orchestrator owns all deployment record transitions. A keyed mutex per
// deployment id gives single-writer semantics on each record; the lock is
// never held across the engine call.
type Orchestrator struct {
	store     persistence.Persistence
	chain     *validation.Chain
	engine    EngineClient
	publisher eventbus.EventPublisher
	queue     autoheal.Queue
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	logger    *slog.Logger
	locks     *keyedMutex
}

func NewOrchestrator(cfg Config) *Orchestrator {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("deployment")
	}

	return &Orchestrator{
		store:     cfg.Persistence,
		chain:     cfg.Chain,
		engine:    cfg.Engine,
		publisher: cfg.Publisher,
		queue:     cfg.Queue,
		metrics:   cfg.Metrics,
		tracer:    tracer,
		logger:    cfg.Logger.With("module", "deployment"),
		locks:     newKeyedMutex(),
	}
}

// Deploy runs the full pipeline for one workflow: ownership-scoped fetch,
// fail-fast validation, engine call (or test-mode simulation) and record
// bookkeeping. Validation failures come back inside the Result; the error
// return is reserved for system failures.
func (o *Orchestrator) Deploy(ctx context.Context, userID, workflowID string, opts Options) (*Result, error) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "deployment.deploy",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.UserIDKey, userID),
		attribute.Bool(otelhelper.TestModeKey, opts.TestMode),
	)
	defer span.End()

	started := time.Now()

	workflow, err := o.store.WorkflowRepository().GetByIDForUser(ctx, workflowID, userID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	record := &models.DeploymentRecord{
		ID:         uuid.NewString(),
		UserID:     userID,
		WorkflowID: workflowID,
		Status:     models.DeploymentStatusPending,
		TestMode:   opts.TestMode,
		CreatedAt:  time.Now().UTC(),
	}

	span.SetAttributes(attribute.String(otelhelper.DeploymentIDKey, record.ID))

	if err := o.store.DeploymentRepository().Save(ctx, record); err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to create deployment record: %w", err)
	}

	o.publish(ctx, workflowID, events.DeploymentStarted{
		BaseEvent:    o.baseEvent(events.DeploymentStartedEvent, workflowID, userID),
		DeploymentID: record.ID,
		TestMode:     opts.TestMode,
	})

	if err := o.transition(ctx, record, models.DeploymentStatusValidating, nil); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	validationResult := o.chain.Validate(ctx, workflow.Definition)
	o.countValidation(validation.FailedLayer(validationResult))

	if validationResult.HasBlocking() {
		result, err := o.failValidation(ctx, record, workflow, validationResult, opts)
		o.observeDeployment(models.DeploymentStatusFailed, started)

		return result, err
	}

	if err := o.transition(ctx, record, models.DeploymentStatusDeploying, nil); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	engineWorkflow, deployErr := o.pushToEngine(ctx, workflow, opts)
	if deployErr != nil {
		result, err := o.failDeploy(ctx, record, workflow, deployErr, opts)
		o.observeDeployment(models.DeploymentStatusFailed, started)
		otelhelper.SetError(span, deployErr)

		return result, err
	}

	deploymentURL, webhookURL := o.deriveURLs(workflow, engineWorkflow.ID, opts.TestMode)

	err = o.transition(ctx, record, models.DeploymentStatusDeployed, func(r *models.DeploymentRecord) {
		r.EngineWorkflowID = engineWorkflow.ID
		r.DeploymentURL = deploymentURL
		r.WebhookURL = webhookURL
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if err := o.store.WorkflowRepository().UpdateStatus(ctx, workflowID, models.WorkflowStatusDeployed, engineWorkflow.ID); err != nil {
		o.logger.ErrorContext(ctx, "deployed to engine but failed to update workflow status",
			"workflow_id", workflowID, "error", err)
	}

	o.publish(ctx, workflowID, events.DeploymentCompleted{
		BaseEvent:        o.baseEvent(events.DeploymentCompletedEvent, workflowID, userID),
		DeploymentID:     record.ID,
		EngineWorkflowID: engineWorkflow.ID,
		DeploymentURL:    deploymentURL,
	})

	o.observeDeployment(models.DeploymentStatusDeployed, started)
	o.logger.InfoContext(ctx, "workflow deployed",
		"workflow_id", workflowID,
		"deployment_id", record.ID,
		"engine_workflow_id", engineWorkflow.ID,
		"test_mode", opts.TestMode,
	)

	return resultFromRecord(record), nil
}

// Rollback reverts the most recent deployed record for the workflow the
// record belongs to. The engine delete is best-effort: the local record is
// marked rolled back even when the engine is unreachable, so local state
// follows user intent.
func (o *Orchestrator) Rollback(ctx context.Context, userID, deploymentID, reason string) (*RollbackResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "deployment.rollback",
		attribute.String(otelhelper.DeploymentIDKey, deploymentID),
		attribute.String(otelhelper.UserIDKey, userID),
	)
	defer span.End()

	record, err := o.store.DeploymentRepository().GetByID(ctx, deploymentID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if record.UserID != userID {
		return nil, persistence.ErrDeploymentNotFound
	}

	target, err := o.store.DeploymentRepository().LatestDeployed(ctx, record.WorkflowID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to find deployed record: %w", err)
	}

	if target == nil {
		return &RollbackResult{
			Success: false,
			Message: "no deployed record exists for this workflow",
		}, nil
	}

	return o.rollbackRecord(ctx, target, reason)
}

// GetStatus returns the persisted state of one deployment record.
func (o *Orchestrator) GetStatus(ctx context.Context, deploymentID string) (*Result, error) {
	record, err := o.store.DeploymentRepository().GetByID(ctx, deploymentID)
	if err != nil {
		return nil, err
	}

	return resultFromRecord(record), nil
}

// Health probes the engine and the store independently and reports a
// composite status with coarse counts.
func (o *Orchestrator) Health(ctx context.Context) *HealthCheckResult {
	result := &HealthCheckResult{
		CheckedAt: time.Now().UTC(),
	}

	probeCtx, cancel := context.WithTimeout(ctx, engineProbeTimeout)
	defer cancel()

	if err := o.engine.Health(probeCtx); err != nil {
		o.logger.WarnContext(ctx, "engine health probe failed", "error", err)
	} else {
		result.EngineHealthy = true
	}

	if err := o.store.HealthCheck(ctx); err != nil {
		o.logger.WarnContext(ctx, "store health probe failed", "error", err)
	} else {
		result.StoreHealthy = true
	}

	result.Healthy = result.EngineHealthy && result.StoreHealthy

	if o.metrics != nil {
		healthy := 0.0
		if result.EngineHealthy {
			healthy = 1.0
		}

		o.metrics.EngineHealthy.Set(healthy)
	}

	if o.metrics != nil && o.queue != nil {
		if depth, err := o.queue.Depth(ctx); err == nil {
			o.metrics.AutoHealQueueDepth.Set(float64(depth))
		}
	}

	if result.StoreHealthy {
		if count, err := o.store.WorkflowRepository().CountByStatus(ctx, models.WorkflowStatusDeployed); err == nil {
			result.ActiveWorkflows = count
		}

		if count, err := o.store.DeploymentRepository().CountSince(ctx, time.Now().Add(-recentDeploymentWindow)); err == nil {
			result.RecentDeployments = count
		}
	}

	return result
}

func (o *Orchestrator) pushToEngine(ctx context.Context, workflow *models.Workflow, opts Options) (*engine.Workflow, error) {
	if opts.TestMode {
		select {
		case <-time.After(testModeDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		return &engine.Workflow{
			ID:     "test-" + uuid.NewString(),
			Active: opts.Activate,
		}, nil
	}

	payload := &engine.DeployPayload{
		Name:        workflow.Definition.Name,
		Nodes:       workflow.Definition.Nodes,
		Connections: workflow.Definition.Connections,
		Settings:    workflow.Definition.Settings,
		Active:      opts.Activate,
	}

	return o.engine.CreateWorkflow(ctx, payload)
}

// failValidation records a blocking validation result, optionally rolls back
// the previous deployment and queues an auto-heal job when the errors are
// fixable.
func (o *Orchestrator) failValidation(ctx context.Context, record *models.DeploymentRecord, workflow *models.Workflow, validationResult *models.ValidationResult, opts Options) (*Result, error) {
	layer := validation.FailedLayer(validationResult)

	err := o.transition(ctx, record, models.DeploymentStatusFailed, func(r *models.DeploymentRecord) {
		r.ErrorLayer = layer
		r.Errors = validationResult.Errors
	})
	if err != nil {
		return nil, err
	}

	// The previous deployment may still be live on the engine; keep its id.
	if err := o.store.WorkflowRepository().UpdateStatus(ctx, workflow.ID, models.WorkflowStatusFailed, workflow.EngineWorkflowID); err != nil {
		o.logger.ErrorContext(ctx, "failed to update workflow status", "workflow_id", workflow.ID, "error", err)
	}

	o.publish(ctx, workflow.ID, events.DeploymentFailed{
		BaseEvent:    o.baseEvent(events.DeploymentFailedEvent, workflow.ID, record.UserID),
		DeploymentID: record.ID,
		Layer:        layer,
		Errors:       validationResult.Errors,
	})

	fixable := validationResult.FixableErrors()
	if len(fixable) > 0 {
		o.enqueueAutoHeal(ctx, record, layer, fixable)
	}

	result := resultFromRecord(record)

	if opts.RollbackOnFailure && len(fixable) > 0 {
		result.RolledBack = o.rollbackPrevious(ctx, record, "validation failed")
	}

	return result, nil
}

// failDeploy records an engine failure as a system error, never as a
// validation issue.
func (o *Orchestrator) failDeploy(ctx context.Context, record *models.DeploymentRecord, workflow *models.Workflow, deployErr error, opts Options) (*Result, error) {
	o.logger.ErrorContext(ctx, "engine deploy failed",
		"workflow_id", workflow.ID,
		"deployment_id", record.ID,
		"error", deployErr,
	)

	err := o.transition(ctx, record, models.DeploymentStatusFailed, func(r *models.DeploymentRecord) {
		r.ErrorMessage = deployErr.Error()
	})
	if err != nil {
		return nil, err
	}

	// The previous deployment may still be live on the engine; keep its id.
	if err := o.store.WorkflowRepository().UpdateStatus(ctx, workflow.ID, models.WorkflowStatusFailed, workflow.EngineWorkflowID); err != nil {
		o.logger.ErrorContext(ctx, "failed to update workflow status", "workflow_id", workflow.ID, "error", err)
	}

	o.publish(ctx, workflow.ID, events.DeploymentFailed{
		BaseEvent:    o.baseEvent(events.DeploymentFailedEvent, workflow.ID, record.UserID),
		DeploymentID: record.ID,
		Message:      deployErr.Error(),
	})

	result := resultFromRecord(record)

	if opts.RollbackOnFailure {
		result.RolledBack = o.rollbackPrevious(ctx, record, "engine deploy failed")
	}

	return result, nil
}

// rollbackPrevious reverts the previous deployed record for the same
// workflow after a failed attempt. Reported as a flag, never an error: the
// deploy already failed.
func (o *Orchestrator) rollbackPrevious(ctx context.Context, failed *models.DeploymentRecord, reason string) bool {
	previous, err := o.store.DeploymentRepository().LatestDeployed(ctx, failed.WorkflowID)
	if err != nil || previous == nil {
		return false
	}

	rollback, err := o.rollbackRecord(ctx, previous, reason)
	if err != nil {
		o.logger.ErrorContext(ctx, "automatic rollback failed",
			"workflow_id", failed.WorkflowID, "deployment_id", previous.ID, "error", err)

		return false
	}

	return rollback.Success
}

func (o *Orchestrator) rollbackRecord(ctx context.Context, record *models.DeploymentRecord, reason string) (*RollbackResult, error) {
	if record.EngineWorkflowID != "" && !record.TestMode {
		if err := o.engine.DeleteWorkflow(ctx, record.EngineWorkflowID); err != nil {
			o.logger.WarnContext(ctx, "engine delete failed during rollback, marking rolled back anyway",
				"deployment_id", record.ID,
				"engine_workflow_id", record.EngineWorkflowID,
				"error", err,
			)
		}
	}

	err := o.transition(ctx, record, models.DeploymentStatusRolledBack, func(r *models.DeploymentRecord) {
		r.ErrorMessage = reason
	})
	if err != nil {
		return nil, err
	}

	if err := o.store.WorkflowRepository().UpdateStatus(ctx, record.WorkflowID, models.WorkflowStatusDraft, ""); err != nil {
		o.logger.ErrorContext(ctx, "failed to reset workflow status after rollback",
			"workflow_id", record.WorkflowID, "error", err)
	}

	o.publish(ctx, record.WorkflowID, events.DeploymentRolledBack{
		BaseEvent:    o.baseEvent(events.DeploymentRolledBackEvent, record.WorkflowID, record.UserID),
		DeploymentID: record.ID,
		Reason:       reason,
	})

	if o.metrics != nil {
		o.metrics.DeploymentsTotal.WithLabelValues(string(models.DeploymentStatusRolledBack)).Inc()
	}

	o.logger.InfoContext(ctx, "deployment rolled back",
		"deployment_id", record.ID, "workflow_id", record.WorkflowID, "reason", reason)

	return &RollbackResult{
		Success:      true,
		Message:      "deployment rolled back",
		DeploymentID: record.ID,
	}, nil
}

func (o *Orchestrator) enqueueAutoHeal(ctx context.Context, record *models.DeploymentRecord, layer models.Layer, fixable []models.ValidationError) {
	if o.queue == nil {
		return
	}

	job := &models.AutoHealJob{
		ID:           uuid.NewString(),
		WorkflowID:   record.WorkflowID,
		UserID:       record.UserID,
		DeploymentID: record.ID,
		Layer:        layer,
		Errors:       fixable,
		CreatedAt:    time.Now().UTC(),
	}

	if err := o.queue.Enqueue(ctx, job); err != nil {
		o.logger.ErrorContext(ctx, "failed to enqueue autoheal job",
			"workflow_id", record.WorkflowID, "error", err)

		return
	}

	o.publish(ctx, record.WorkflowID, events.AutoHealRequested{
		BaseEvent: o.baseEvent(events.AutoHealRequestedEvent, record.WorkflowID, record.UserID),
		JobID:     job.ID,
	})
}

// transition moves a record to its next state under the per-id lock. The
// mutate hook runs inside the critical section so a concurrent rollback and
// deploy against the same id can never produce a mixed record.
func (o *Orchestrator) transition(ctx context.Context, record *models.DeploymentRecord, next models.DeploymentStatus, mutate func(*models.DeploymentRecord)) error {
	o.locks.lock(record.ID)
	defer o.locks.unlock(record.ID)

	if !transitionAllowed(record.Status, next) {
		return fmt.Errorf("invalid deployment transition %s -> %s", record.Status, next)
	}

	record.Status = next

	if mutate != nil {
		mutate(record)
	}

	if record.Terminal() {
		now := time.Now().UTC()
		record.CompletedAt = &now
	}

	if err := o.store.DeploymentRepository().Save(ctx, record); err != nil {
		return fmt.Errorf("failed to persist deployment record: %w", err)
	}

	return nil
}

func transitionAllowed(from, to models.DeploymentStatus) bool {
	switch from {
	case models.DeploymentStatusPending:
		return to == models.DeploymentStatusValidating
	case models.DeploymentStatusValidating:
		return to == models.DeploymentStatusDeploying || to == models.DeploymentStatusFailed
	case models.DeploymentStatusDeploying:
		return to == models.DeploymentStatusDeployed || to == models.DeploymentStatusFailed
	case models.DeploymentStatusDeployed:
		return to == models.DeploymentStatusRolledBack
	case models.DeploymentStatusFailed:
		return to == models.DeploymentStatusRolledBack
	default:
		return false
	}
}

// deriveURLs builds the user-facing deployment URL and, when an enabled
// webhook trigger exists, the webhook URL. Test-mode ids resolve to no URLs.
func (o *Orchestrator) deriveURLs(workflow *models.Workflow, engineWorkflowID string, testMode bool) (string, string) {
	if testMode {
		return "", ""
	}

	base := o.engine.BaseURL()
	deploymentURL := base + "/workflow/" + engineWorkflowID

	for _, node := range workflow.Definition.Nodes {
		if node.Disabled || node.Type != webhookTriggerType {
			continue
		}

		path := node.StringParameter("path")
		if path == "" {
			path = workflow.ID
		}

		return deploymentURL, base + "/webhook/" + path
	}

	return deploymentURL, ""
}

func (o *Orchestrator) publish(ctx context.Context, key string, event eventbus.Event) {
	if o.publisher == nil {
		return
	}

	if err := o.publisher.Publish(ctx, key, event); err != nil {
		o.logger.WarnContext(ctx, "failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func (o *Orchestrator) baseEvent(eventType events.EventType, workflowID, userID string) events.BaseEvent {
	return events.BaseEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		UserID:     userID,
	}
}

func (o *Orchestrator) countValidation(layer models.Layer) {
	if o.metrics == nil {
		return
	}

	label := string(layer)
	if label == "" {
		label = "none"
	}

	o.metrics.ValidationsTotal.WithLabelValues(label).Inc()
}

func (o *Orchestrator) observeDeployment(status models.DeploymentStatus, started time.Time) {
	if o.metrics == nil {
		return
	}

	o.metrics.DeploymentsTotal.WithLabelValues(string(status)).Inc()
	o.metrics.DeploymentDuration.Observe(time.Since(started).Seconds())
}
