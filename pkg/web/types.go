// Package web provides the HTTP API for workflow validation and deployment.
package web

import "github.com/intelogroup/clixen/pkg/models"

// CreateWorkflowRequest is the request body for storing a new workflow.
type CreateWorkflowRequest struct {
	Name       string                     `json:"name"       validate:"required,min=1,max=255"`
	Definition *models.WorkflowDefinition `json:"definition" validate:"required"`
}

// ValidateRequest runs the fail-fast validation chain over a definition.
type ValidateRequest struct {
	Definition *models.WorkflowDefinition `json:"definition" validate:"required"`
}

// AssessRequest runs the quality pipeline. Stages limits the pass to the
// named stages; empty means all seven.
type AssessRequest struct {
	Definition *models.WorkflowDefinition `json:"definition" validate:"required"`
	Stages     []string                   `json:"stages,omitempty"`
}

// AutoFixRequest applies automatic fixes to a definition.
type AutoFixRequest struct {
	Definition *models.WorkflowDefinition `json:"definition" validate:"required"`
}

// AutoFixResponse carries the repaired definition plus one entry per applied
// fix.
type AutoFixResponse struct {
	Definition *models.WorkflowDefinition `json:"definition"`
	Fixes      []models.AutoFixResult     `json:"fixes"`
}

// DeployRequest starts a deployment for a stored workflow.
type DeployRequest struct {
	WorkflowID        string `json:"workflow_id"         validate:"required"`
	Activate          bool   `json:"activate"`
	TestMode          bool   `json:"test_mode"`
	RollbackOnFailure bool   `json:"rollback_on_failure"`
}

// RollbackRequest reverts the latest deployed record for the deployment's
// workflow.
type RollbackRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}
