package validation

import (
	"fmt"
	"regexp"

	"github.com/intelogroup/clixen/pkg/models"
)

// workflowNamePattern is the character set allowed in workflow and node names.
var workflowNamePattern = regexp.MustCompile(`^[a-zA-Z0-9 _()-]+$`)

// BusinessValidator enforces domain invariants that go beyond raw shape.
type BusinessValidator struct{}

// NewBusinessValidator creates a business-rule validator.
func NewBusinessValidator() *BusinessValidator {
	return &BusinessValidator{}
}

// Validate checks cross-field invariants: node id uniqueness, name rules and
// the deployable node-count ceiling. Performance observations are attached as
// non-blocking warnings.
func (v *BusinessValidator) Validate(def *models.WorkflowDefinition) []models.ValidationError {
	issues := make([]models.ValidationError, 0)

	issues = append(issues, v.validateName(def)...)
	issues = append(issues, v.validateNodeIDs(def)...)

	if len(def.Nodes) > MaxNodesBusiness {
		issues = append(issues, models.ValidationError{
			Layer:      models.LayerBusiness,
			Code:       CodeTooManyNodes,
			Message:    fmt.Sprintf("workflow has %d nodes, maximum is %d", len(def.Nodes), MaxNodesBusiness),
			Severity:   models.SeverityCritical,
			Suggestion: "split the workflow into smaller workflows",
		})
	}

	issues = append(issues, v.performanceWarnings(def)...)

	return issues
}

func (v *BusinessValidator) validateName(def *models.WorkflowDefinition) []models.ValidationError {
	issues := make([]models.ValidationError, 0)

	if len(def.Name) > MaxNameLength {
		issues = append(issues, models.ValidationError{
			Layer:    models.LayerBusiness,
			Code:     CodeNameTooLong,
			Message:  fmt.Sprintf("workflow name exceeds %d characters", MaxNameLength),
			Severity: models.SeverityHigh,
		})
	}

	if def.Name != "" && !workflowNamePattern.MatchString(def.Name) {
		issues = append(issues, models.ValidationError{
			Layer:      models.LayerBusiness,
			Code:       CodeInvalidNameChars,
			Message:    "workflow name contains unsupported characters",
			Severity:   models.SeverityHigh,
			Suggestion: "use letters, numbers, spaces, dashes, underscores and parentheses",
		})
	}

	return issues
}

// validateNodeIDs rejects duplicate node ids. Duplicates are fixable by
// renaming, never by merging the colliding nodes.
func (v *BusinessValidator) validateNodeIDs(def *models.WorkflowDefinition) []models.ValidationError {
	issues := make([]models.ValidationError, 0)
	seen := make(map[string]struct{}, len(def.Nodes))

	for _, node := range def.Nodes {
		if node.ID == "" {
			continue
		}

		if _, dup := seen[node.ID]; dup {
			issues = append(issues, models.ValidationError{
				Layer:      models.LayerBusiness,
				Code:       CodeDuplicateNodeID,
				Message:    fmt.Sprintf("node id %q is used more than once", node.ID),
				NodeID:     node.ID,
				Severity:   models.SeverityCritical,
				Fixable:    true,
				Suggestion: "rename the duplicate node",
			})

			continue
		}

		seen[node.ID] = struct{}{}
	}

	return issues
}

func (v *BusinessValidator) performanceWarnings(def *models.WorkflowDefinition) []models.ValidationError {
	issues := make([]models.ValidationError, 0)

	if len(def.Nodes) > LargeNodeCount {
		issues = append(issues, models.ValidationError{
			Layer:      models.LayerBusiness,
			Code:       CodeLargeWorkflow,
			Message:    fmt.Sprintf("workflow has %d nodes and may be slow to execute", len(def.Nodes)),
			Severity:   models.SeverityMedium,
			Suggestion: "consider splitting into smaller workflows",
		})
	}

	if count := def.ConnectionCount(); count > LargeConnectionCount {
		issues = append(issues, models.ValidationError{
			Layer:    models.LayerBusiness,
			Code:     CodeManyConnections,
			Message:  fmt.Sprintf("workflow has %d connections and may be hard to maintain", count),
			Severity: models.SeverityMedium,
		})
	}

	return issues
}
