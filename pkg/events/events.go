// Package events defines the lifecycle notifications published by the
// deployment orchestrator and the auto-heal worker.
package events

import (
	"time"

	"github.com/intelogroup/clixen/pkg/models"
)

type EventType string

// Topic carries all deployment and auto-heal lifecycle events.
const Topic = "clixen.deployments"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	DeploymentStartedEvent    EventType = "deployment.started"
	DeploymentCompletedEvent  EventType = "deployment.completed"
	DeploymentFailedEvent     EventType = "deployment.failed"
	DeploymentRolledBackEvent EventType = "deployment.rolled_back"

	AutoHealRequestedEvent EventType = "autoheal.requested"
	AutoHealSucceededEvent EventType = "autoheal.succeeded"
	AutoHealFailedEvent    EventType = "autoheal.failed"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
	UserID     string    `json:"user_id,omitempty"`
}

type DeploymentStarted struct {
	BaseEvent

	DeploymentID string `json:"deployment_id"`
	TestMode     bool   `json:"test_mode"`
}

func (e DeploymentStarted) GetType() EventType { return DeploymentStartedEvent }

type DeploymentCompleted struct {
	BaseEvent

	DeploymentID     string `json:"deployment_id"`
	EngineWorkflowID string `json:"engine_workflow_id"`
	DeploymentURL    string `json:"deployment_url,omitempty"`
}

func (e DeploymentCompleted) GetType() EventType { return DeploymentCompletedEvent }

type DeploymentFailed struct {
	BaseEvent

	DeploymentID string                   `json:"deployment_id"`
	Layer        models.Layer             `json:"layer,omitempty"`
	Errors       []models.ValidationError `json:"errors,omitempty"`
	Message      string                   `json:"message,omitempty"`
}

func (e DeploymentFailed) GetType() EventType { return DeploymentFailedEvent }

type DeploymentRolledBack struct {
	BaseEvent

	DeploymentID string `json:"deployment_id"`
	Reason       string `json:"reason,omitempty"`
}

func (e DeploymentRolledBack) GetType() EventType { return DeploymentRolledBackEvent }

type AutoHealRequested struct {
	BaseEvent

	JobID      string `json:"job_id"`
	RetryCount int    `json:"retry_count"`
}

func (e AutoHealRequested) GetType() EventType { return AutoHealRequestedEvent }

type AutoHealSucceeded struct {
	BaseEvent

	JobID        string `json:"job_id"`
	FixesApplied int    `json:"fixes_applied"`
}

func (e AutoHealSucceeded) GetType() EventType { return AutoHealSucceededEvent }

// AutoHealFailed is published when a job exhausts its retry budget; the
// failure must surface to the user instead of retrying silently.
type AutoHealFailed struct {
	BaseEvent

	JobID      string `json:"job_id"`
	RetryCount int    `json:"retry_count"`
	Reason     string `json:"reason,omitempty"`
}

func (e AutoHealFailed) GetType() EventType { return AutoHealFailedEvent }
