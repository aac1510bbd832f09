// Package models defines the core domain models for workflow validation and deployment.
package models

import (
	"encoding/json"
	"time"
)

// WorkflowStatus represents the lifecycle state of a stored workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, not deployed
	WorkflowStatusDeployed WorkflowStatus = "deployed" // Live on the execution engine
	WorkflowStatusFailed   WorkflowStatus = "failed"   // Last deployment attempt failed
)

// Workflow is the user-scoped entity that owns a workflow definition.
type Workflow struct {
	ID               string              `json:"id"`
	UserID           string              `json:"user_id"                validate:"required"`
	Name             string              `json:"name"                   validate:"required,min=1,max=255"`
	Status           WorkflowStatus      `json:"status"`
	Definition       *WorkflowDefinition `json:"definition"`
	EngineWorkflowID string              `json:"engine_workflow_id,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// Connection is a directed edge from one node's output to another node's input.
type Connection struct {
	Node  string `json:"node"  validate:"required"` // Target node id
	Index int    `json:"index"`                     // Target input index
}

// WorkflowDefinition is the graph of nodes and connections handed to the
// execution engine. Connections map a source node id to its ordered output
// groups; each group lists the targets wired to that output.
type WorkflowDefinition struct {
	Name        string                    `json:"name"                 validate:"max=255"`
	Active      bool                      `json:"active"`
	Nodes       []*Node                   `json:"nodes"`
	Connections map[string][][]Connection `json:"connections"`
	Settings    map[string]any            `json:"settings,omitempty"`
	StaticData  map[string]any            `json:"staticData,omitempty"`
	Tags        []string                  `json:"tags,omitempty"`
}

// NodeByID returns the node with the given id, or nil if none exists.
func (d *WorkflowDefinition) NodeByID(id string) *Node {
	for _, node := range d.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// NodeIDSet returns the set of node ids present in the definition.
func (d *WorkflowDefinition) NodeIDSet() map[string]struct{} {
	ids := make(map[string]struct{}, len(d.Nodes))
	for _, node := range d.Nodes {
		ids[node.ID] = struct{}{}
	}

	return ids
}

// ConnectionCount returns the total number of edges in the definition.
func (d *WorkflowDefinition) ConnectionCount() int {
	count := 0

	for _, groups := range d.Connections {
		for _, group := range groups {
			count += len(group)
		}
	}

	return count
}

// Clone returns a deep copy of the definition. Auto-fix operates on clones so
// the caller's definition is never mutated.
func (d *WorkflowDefinition) Clone() (*WorkflowDefinition, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}

	clone := &WorkflowDefinition{}
	if err := json.Unmarshal(data, clone); err != nil {
		return nil, err
	}

	return clone, nil
}
