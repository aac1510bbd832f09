package models

import "time"

// AutoHealJob is a unit of repair work queued after a failed, fixable
// validation. Jobs are consumed exactly once per delivery and discarded after
// success or after the retry budget is exhausted.
type AutoHealJob struct {
	ID           string            `json:"id"`
	WorkflowID   string            `json:"workflow_id"`
	UserID       string            `json:"user_id"`
	DeploymentID string            `json:"deployment_id,omitempty"`
	Layer        Layer             `json:"layer"`
	Errors       []ValidationError `json:"errors"`
	RetryCount   int               `json:"retry_count"`
	CreatedAt    time.Time         `json:"created_at"`
}
