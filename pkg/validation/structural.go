package validation

import (
	"encoding/json"
	"fmt"

	"github.com/intelogroup/clixen/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// workflowSchema is the wire-shape contract a definition must satisfy before
// any business semantics are considered. Optional containers accept null as
// well as absence: Go zero values serialize nil maps and slices as null, and
// a node without parameters or a workflow without connections is legal.
// Presence rules for positions live in validateNodes, not here.
const workflowSchema = `{
	"type": "object",
	"required": ["nodes", "connections"],
	"properties": {
		"name": {"type": "string", "maxLength": 255},
		"active": {"type": "boolean"},
		"nodes": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "name", "type"],
				"properties": {
					"id": {"type": "string"},
					"name": {"type": "string"},
					"type": {"type": "string"},
					"typeVersion": {"type": "number"},
					"position": {
						"type": ["array", "null"],
						"items": {"type": "number"},
						"minItems": 2,
						"maxItems": 2
					},
					"parameters": {"type": ["object", "null"]},
					"credentials": {"type": ["object", "null"]},
					"disabled": {"type": "boolean"}
				}
			}
		},
		"connections": {"type": ["object", "null"]},
		"settings": {"type": "object"},
		"staticData": {"type": "object"},
		"tags": {"type": "array", "items": {"type": "string"}}
	}
}`

// StructuralValidator enforces the raw shape of a workflow definition.
type StructuralValidator struct {
	schema *gojsonschema.Schema
}

// NewStructuralValidator compiles the embedded workflow schema.
func NewStructuralValidator() (*StructuralValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(workflowSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile workflow schema: %w", err)
	}

	return &StructuralValidator{schema: schema}, nil
}

// Validate checks the definition against the schema plus arity constraints the
// schema cannot express. All structural violations block downstream layers.
func (v *StructuralValidator) Validate(def *models.WorkflowDefinition) []models.ValidationError {
	issues := make([]models.ValidationError, 0)

	if len(def.Nodes) == 0 {
		issues = append(issues, models.ValidationError{
			Layer:    models.LayerStructure,
			Code:     CodeEmptyWorkflow,
			Message:  "workflow must contain at least one node",
			Severity: models.SeverityCritical,
		})

		return issues
	}

	if len(def.Nodes) > MaxNodesHard {
		issues = append(issues, models.ValidationError{
			Layer:    models.LayerStructure,
			Code:     CodeTooManyNodesHard,
			Message:  fmt.Sprintf("workflow has %d nodes, hard maximum is %d", len(def.Nodes), MaxNodesHard),
			Severity: models.SeverityCritical,
		})

		return issues
	}

	issues = append(issues, v.validateSchema(def)...)
	issues = append(issues, v.validateNodes(def)...)

	if def.Name == "" {
		issues = append(issues, models.ValidationError{
			Layer:      models.LayerStructure,
			Code:       CodeMissingName,
			Message:    "workflow name is required",
			Severity:   models.SeverityHigh,
			Fixable:    true,
			Suggestion: "a name can be generated automatically",
		})
	}

	return issues
}

func (v *StructuralValidator) validateSchema(def *models.WorkflowDefinition) []models.ValidationError {
	issues := make([]models.ValidationError, 0)

	document, err := json.Marshal(def)
	if err != nil {
		issues = append(issues, models.ValidationError{
			Layer:    models.LayerStructure,
			Code:     CodeSchemaViolation,
			Message:  "definition is not serializable: " + err.Error(),
			Severity: models.SeverityCritical,
		})

		return issues
	}

	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		issues = append(issues, models.ValidationError{
			Layer:    models.LayerStructure,
			Code:     CodeSchemaViolation,
			Message:  "schema validation failed: " + err.Error(),
			Severity: models.SeverityCritical,
		})

		return issues
	}

	for _, desc := range result.Errors() {
		issues = append(issues, models.ValidationError{
			Layer:    models.LayerStructure,
			Code:     CodeSchemaViolation,
			Message:  desc.String(),
			Path:     desc.Field(),
			Severity: models.SeverityCritical,
		})
	}

	return issues
}

// validateNodes enforces per-node presence rules the schema reports too
// coarsely: enabled nodes need id, name, type and a usable position.
func (v *StructuralValidator) validateNodes(def *models.WorkflowDefinition) []models.ValidationError {
	issues := make([]models.ValidationError, 0)

	for i, node := range def.Nodes {
		if node.Disabled {
			continue
		}

		for field, value := range map[string]string{"id": node.ID, "name": node.Name, "type": node.Type} {
			if value != "" {
				continue
			}

			issues = append(issues, models.ValidationError{
				Layer:    models.LayerStructure,
				Code:     CodeNodeMissingField,
				Message:  fmt.Sprintf("node at index %d is missing required field %q", i, field),
				NodeID:   node.ID,
				Path:     fmt.Sprintf("nodes[%d].%s", i, field),
				Severity: models.SeverityCritical,
				Fixable:  field != "type",
			})
		}

		if !node.HasValidPosition() {
			issues = append(issues, models.ValidationError{
				Layer:      models.LayerStructure,
				Code:       CodeNodeInvalidPos,
				Message:    fmt.Sprintf("node %q has no valid [x, y] position", node.ID),
				NodeID:     node.ID,
				Path:       fmt.Sprintf("nodes[%d].position", i),
				Severity:   models.SeverityHigh,
				Fixable:    true,
				Suggestion: "a default canvas position can be generated",
			})
		}
	}

	return issues
}
