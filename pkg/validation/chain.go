package validation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/intelogroup/clixen/pkg/models"
	"github.com/intelogroup/clixen/pkg/nodetypes"
)

// Chain runs the structural, business and compatibility validators in strict
// sequence. A layer runs only when the previous layer produced no blocking
// errors: structural corruption makes the later checks meaningless.
type Chain struct {
	structural    *StructuralValidator
	business      *BusinessValidator
	compatibility *CompatibilityValidator
	logger        *slog.Logger
}

// NewChain builds the fail-fast validation chain.
func NewChain(registry *nodetypes.Registry, logger *slog.Logger) (*Chain, error) {
	structural, err := NewStructuralValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to build structural validator: %w", err)
	}

	return &Chain{
		structural:    structural,
		business:      NewBusinessValidator(),
		compatibility: NewCompatibilityValidator(registry),
		logger:        logger.With("module", "validation"),
	}, nil
}

// Validate runs the chain over a definition and returns the aggregated result.
func (c *Chain) Validate(ctx context.Context, def *models.WorkflowDefinition) *models.ValidationResult {
	result := models.NewValidationResult()

	for _, issue := range c.structural.Validate(def) {
		result.Add(issue)
	}

	if result.HasBlocking() {
		c.logger.DebugContext(ctx, "validation stopped at structural layer", "errors", len(result.Errors))

		return result
	}

	for _, issue := range c.business.Validate(def) {
		result.Add(issue)
	}

	if result.HasBlocking() {
		c.logger.DebugContext(ctx, "validation stopped at business layer", "errors", len(result.Errors))

		return result
	}

	for _, issue := range c.compatibility.Validate(def) {
		result.Add(issue)
	}

	c.logger.DebugContext(ctx, "validation chain completed",
		"valid", result.Valid,
		"errors", len(result.Errors),
		"warnings", len(result.Warnings),
	)

	return result
}

// FailedLayer returns the layer of the first blocking error in a result, or
// "" when the result is valid.
func FailedLayer(result *models.ValidationResult) models.Layer {
	for _, issue := range result.Errors {
		if issue.Blocking() {
			return issue.Layer
		}
	}

	return ""
}
