package quality

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/intelogroup/clixen/pkg/models"
)

// Default canvas layout for generated node positions.
const (
	positionBaseX = 240
	positionStepX = 220
	positionY     = 300
)

// AutoFix repairs the fixable categories of a definition: a missing workflow
// name, missing or duplicated node ids and names, and missing positions. The
// caller's definition is never mutated; fixes are applied to a deep copy.
// AutoFix is idempotent: running it on its own output applies nothing.
//
// Unfixable categories (missing credentials, unknown node types, business
// rule violations) are left untouched.
func AutoFix(def *models.WorkflowDefinition) (*models.WorkflowDefinition, []models.AutoFixResult, error) {
	fixed, err := def.Clone()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to copy definition: %w", err)
	}

	applied := make([]models.AutoFixResult, 0)

	if fixed.Name == "" {
		fixed.Name = "Untitled Workflow " + uuid.New().String()[:8]
		applied = append(applied, models.AutoFixResult{
			Code:        CodeMissingName,
			Description: fmt.Sprintf("generated workflow name %q", fixed.Name),
		})
	}

	applied = append(applied, fixNodeIdentifiers(fixed)...)
	applied = append(applied, fixPositions(fixed)...)

	return fixed, applied, nil
}

// fixNodeIdentifiers generates ids and names for nodes missing them and
// renames the second and later occurrences of a duplicated id.
func fixNodeIdentifiers(def *models.WorkflowDefinition) []models.AutoFixResult {
	applied := make([]models.AutoFixResult, 0)
	seen := make(map[string]struct{}, len(def.Nodes))

	for i, node := range def.Nodes {
		if node.ID == "" {
			node.ID = uuid.New().String()
			applied = append(applied, models.AutoFixResult{
				Code:        CodeNodeIncomplete,
				NodeIDs:     []string{node.ID},
				Description: fmt.Sprintf("generated id for node at index %d", i),
			})
		} else if _, dup := seen[node.ID]; dup {
			previous := node.ID
			node.ID = previous + "-" + uuid.New().String()[:8]
			applied = append(applied, models.AutoFixResult{
				Code:        CodeDuplicateNodeID,
				NodeIDs:     []string{node.ID},
				Description: fmt.Sprintf("renamed duplicate node id %q to %q", previous, node.ID),
			})
		}

		seen[node.ID] = struct{}{}

		if node.Name == "" {
			node.Name = fmt.Sprintf("Node %d", i+1)
			applied = append(applied, models.AutoFixResult{
				Code:        CodeNodeIncomplete,
				NodeIDs:     []string{node.ID},
				Description: fmt.Sprintf("generated name %q for node %q", node.Name, node.ID),
			})
		}
	}

	return applied
}

func fixPositions(def *models.WorkflowDefinition) []models.AutoFixResult {
	fixedIDs := make([]string, 0)

	for i, node := range def.Nodes {
		if node.HasValidPosition() {
			continue
		}

		node.Position = []float64{float64(positionBaseX + positionStepX*i), positionY}
		fixedIDs = append(fixedIDs, node.ID)
	}

	if len(fixedIDs) == 0 {
		return nil
	}

	return []models.AutoFixResult{{
		Code:        CodeNodeBadPosition,
		NodeIDs:     fixedIDs,
		Description: fmt.Sprintf("generated canvas positions for %d nodes", len(fixedIDs)),
	}}
}
