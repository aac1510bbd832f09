package models

import "time"

// DeploymentStatus is the state of a deployment record in the orchestrator's
// state machine.
type DeploymentStatus string

const (
	DeploymentStatusPending    DeploymentStatus = "pending"
	DeploymentStatusValidating DeploymentStatus = "validating"
	DeploymentStatusDeploying  DeploymentStatus = "deploying"
	DeploymentStatusDeployed   DeploymentStatus = "deployed"
	DeploymentStatusFailed     DeploymentStatus = "failed"
	DeploymentStatusRolledBack DeploymentStatus = "rolled_back"
)

// DeploymentRecord tracks one attempt to push a workflow definition to the
// execution engine. Records are append-only: superseded by new records, never
// deleted, so the audit trail survives rollbacks.
type DeploymentRecord struct {
	ID               string            `json:"id"`
	UserID           string            `json:"user_id"`
	WorkflowID       string            `json:"workflow_id"`
	Status           DeploymentStatus  `json:"status"`
	EngineWorkflowID string            `json:"engine_workflow_id,omitempty"`
	ErrorLayer       Layer             `json:"error_layer,omitempty"`
	Errors           []ValidationError `json:"errors,omitempty"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	DeploymentURL    string            `json:"deployment_url,omitempty"`
	WebhookURL       string            `json:"webhook_url,omitempty"`
	RetryCount       int               `json:"retry_count"`
	TestMode         bool              `json:"test_mode"`
	CreatedAt        time.Time         `json:"created_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
}

// Terminal reports whether the record has reached a final state.
func (r *DeploymentRecord) Terminal() bool {
	switch r.Status {
	case DeploymentStatusDeployed, DeploymentStatusFailed, DeploymentStatusRolledBack:
		return true
	default:
		return false
	}
}
