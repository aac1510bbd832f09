// Package persistence provides the storage abstraction for workflows and
// deployment records.
package persistence

import (
	"context"
	"time"

	"github.com/intelogroup/clixen/pkg/models"
)

// Persistence is the composite storage contract the orchestrator depends on.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	DeploymentRepository() DeploymentRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores user-owned workflows.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error

	// GetByIDForUser fetches a workflow scoped to its owner. A workflow
	// owned by another user yields ErrWorkflowNotFound, never a distinct
	// error, so existence is not leaked.
	GetByIDForUser(ctx context.Context, id, userID string) (*models.Workflow, error)

	// UpdateStatus records the deployment outcome on the owning workflow.
	UpdateStatus(ctx context.Context, id string, status models.WorkflowStatus, engineWorkflowID string) error

	CountByStatus(ctx context.Context, status models.WorkflowStatus) (int, error)
}

// DeploymentRepository stores the append-only deployment audit trail.
type DeploymentRepository interface {
	Save(ctx context.Context, record *models.DeploymentRecord) error
	GetByID(ctx context.Context, id string) (*models.DeploymentRecord, error)

	// LatestDeployed returns the most recent record in the deployed state
	// for the workflow, or nil when none exists.
	LatestDeployed(ctx context.Context, workflowID string) (*models.DeploymentRecord, error)

	CountSince(ctx context.Context, since time.Time) (int, error)
}
