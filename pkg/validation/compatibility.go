package validation

import (
	"fmt"

	"github.com/intelogroup/clixen/pkg/models"
	"github.com/intelogroup/clixen/pkg/nodetypes"
)

// CompatibilityValidator checks a definition against the target execution
// engine's capabilities: supported node types, resolvable connection graph,
// required credentials and the graph-level invariants (no cycles, all nodes
// reachable from a trigger).
type CompatibilityValidator struct {
	registry *nodetypes.Registry
}

// NewCompatibilityValidator creates a compatibility validator backed by the
// given node type registry.
func NewCompatibilityValidator(registry *nodetypes.Registry) *CompatibilityValidator {
	return &CompatibilityValidator{registry: registry}
}

// Validate reports every engine-compatibility violation in the definition.
func (v *CompatibilityValidator) Validate(def *models.WorkflowDefinition) []models.ValidationError {
	issues := make([]models.ValidationError, 0)

	issues = append(issues, v.validateNodeTypes(def)...)
	issues = append(issues, v.validateConnections(def)...)
	issues = append(issues, v.validateGraph(def)...)

	return issues
}

func (v *CompatibilityValidator) validateNodeTypes(def *models.WorkflowDefinition) []models.ValidationError {
	issues := make([]models.ValidationError, 0)

	for _, node := range def.Nodes {
		descriptor, known := v.registry.Lookup(node.Type)
		if !known {
			issues = append(issues, models.ValidationError{
				Layer:    models.LayerCompatibility,
				Code:     CodeUnsupportedType,
				Message:  fmt.Sprintf("node %q uses type %q which the execution engine does not support", node.ID, node.Type),
				NodeID:   node.ID,
				Severity: models.SeverityCritical,
			})

			continue
		}

		// Missing credentials require user action and are never auto-fixable.
		if descriptor.RequiresCredentials && len(node.Credentials) == 0 && !node.Disabled {
			issues = append(issues, models.ValidationError{
				Layer:      models.LayerCompatibility,
				Code:       CodeMissingCredentials,
				Message:    fmt.Sprintf("node %q of type %q requires stored credentials", node.ID, node.Type),
				NodeID:     node.ID,
				Severity:   models.SeverityHigh,
				Fixable:    false,
				Suggestion: "connect a credential in the editor before deploying",
			})
		}
	}

	return issues
}

// validateConnections reports exactly one error per connection reference that
// does not resolve to an existing node.
func (v *CompatibilityValidator) validateConnections(def *models.WorkflowDefinition) []models.ValidationError {
	issues := make([]models.ValidationError, 0)
	ids := def.NodeIDSet()

	for source, groups := range def.Connections {
		if _, ok := ids[source]; !ok {
			issues = append(issues, models.ValidationError{
				Layer:    models.LayerCompatibility,
				Code:     CodeUnknownNodeRef,
				Message:  fmt.Sprintf("connection source %q does not exist in the workflow", source),
				NodeID:   source,
				Severity: models.SeverityCritical,
			})
		}

		for _, group := range groups {
			for _, conn := range group {
				if _, ok := ids[conn.Node]; ok {
					continue
				}

				issues = append(issues, models.ValidationError{
					Layer:    models.LayerCompatibility,
					Code:     CodeUnknownNodeRef,
					Message:  fmt.Sprintf("connection from %q targets unknown node %q", source, conn.Node),
					NodeID:   conn.Node,
					Severity: models.SeverityCritical,
				})
			}
		}
	}

	return issues
}

// validateGraph runs the authoritative cycle and reachability analysis,
// seeded from enabled trigger nodes. Cycles block deployment; unreachable
// nodes are only warned about.
func (v *CompatibilityValidator) validateGraph(def *models.WorkflowDefinition) []models.ValidationError {
	issues := make([]models.ValidationError, 0)

	if hit := DetectCycle(def); hit != "" {
		issues = append(issues, models.ValidationError{
			Layer:      models.LayerCompatibility,
			Code:       CodeCircularDependency,
			Message:    fmt.Sprintf("connection graph contains a cycle through node %q", hit),
			NodeID:     hit,
			Severity:   models.SeverityCritical,
			Suggestion: "remove the connection that closes the loop",
		})
	}

	seeds := make([]string, 0)

	for _, node := range def.Nodes {
		descriptor, known := v.registry.Lookup(node.Type)
		if known && descriptor.IsTrigger() && !node.Disabled {
			seeds = append(seeds, node.ID)
		}
	}

	if len(seeds) == 0 {
		issues = append(issues, models.ValidationError{
			Layer:      models.LayerCompatibility,
			Code:       CodeNoTriggerNode,
			Message:    "workflow has no enabled trigger node",
			Severity:   models.SeverityCritical,
			Suggestion: "add a trigger node so the engine can start the workflow",
		})

		return issues
	}

	reached := reachableFrom(def, seeds)

	for _, node := range def.Nodes {
		if node.Disabled {
			continue
		}

		if _, ok := reached[node.ID]; !ok {
			issues = append(issues, models.ValidationError{
				Layer:      models.LayerCompatibility,
				Code:       CodeUnreachableNode,
				Message:    fmt.Sprintf("node %q is never reached from a trigger", node.ID),
				NodeID:     node.ID,
				Severity:   models.SeverityMedium,
				Suggestion: "connect the node or disable it",
			})
		}
	}

	return issues
}
