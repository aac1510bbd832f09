package deployment

import (
	"time"

	"github.com/intelogroup/clixen/pkg/models"
)

// Options controls a single deploy attempt.
type Options struct {
	// Activate asks the engine to activate the workflow on creation.
	Activate bool

	// TestMode simulates the engine call with a fixed delay and a synthetic
	// engine workflow id. The live engine is never contacted.
	TestMode bool

	// RollbackOnFailure rolls back the previous deployed record for the same
	// workflow when this attempt fails.
	RollbackOnFailure bool
}

// Result is the caller-facing view of a deployment attempt or status query.
// Validation failures live in Errors; they are outcomes, not Go errors.
type Result struct {
	DeploymentID     string                   `json:"deployment_id"`
	WorkflowID       string                   `json:"workflow_id"`
	UserID           string                   `json:"user_id"`
	Status           models.DeploymentStatus  `json:"status"`
	EngineWorkflowID string                   `json:"engine_workflow_id,omitempty"`
	DeploymentURL    string                   `json:"deployment_url,omitempty"`
	WebhookURL       string                   `json:"webhook_url,omitempty"`
	ErrorLayer       models.Layer             `json:"error_layer,omitempty"`
	Errors           []models.ValidationError `json:"errors,omitempty"`
	Message          string                   `json:"message,omitempty"`
	TestMode         bool                     `json:"test_mode"`
	RolledBack       bool                     `json:"rolled_back,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
	CompletedAt      *time.Time               `json:"completed_at,omitempty"`
}

// RollbackResult reports a rollback attempt. A missing prior deployment is a
// Success=false outcome, not an error.
type RollbackResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DeploymentID string `json:"deployment_id,omitempty"`
}

// HealthCheckResult is the composite health of the engine and the store plus
// coarse operational counts.
type HealthCheckResult struct {
	Healthy           bool      `json:"healthy"`
	EngineHealthy     bool      `json:"engine_healthy"`
	StoreHealthy      bool      `json:"store_healthy"`
	ActiveWorkflows   int       `json:"active_workflows"`
	RecentDeployments int       `json:"recent_deployments"`
	CheckedAt         time.Time `json:"checked_at"`
}

func resultFromRecord(record *models.DeploymentRecord) *Result {
	return &Result{
		DeploymentID:     record.ID,
		WorkflowID:       record.WorkflowID,
		UserID:           record.UserID,
		Status:           record.Status,
		EngineWorkflowID: record.EngineWorkflowID,
		DeploymentURL:    record.DeploymentURL,
		WebhookURL:       record.WebhookURL,
		ErrorLayer:       record.ErrorLayer,
		Errors:           record.Errors,
		Message:          record.ErrorMessage,
		TestMode:         record.TestMode,
		CreatedAt:        record.CreatedAt,
		CompletedAt:      record.CompletedAt,
	}
}
