package validation

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intelogroup/clixen/pkg/models"
	"github.com/intelogroup/clixen/pkg/nodetypes"
)

func testChain(t *testing.T) *Chain {
	t.Helper()

	chain, err := NewChain(nodetypes.NewRegistry(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	return chain
}

func validDefinition() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		Name:   "Order Sync",
		Active: true,
		Nodes: []*models.Node{
			{
				ID:          "trigger",
				Name:        "Start",
				Type:        "manual-trigger",
				TypeVersion: 1,
				Position:    []float64{240, 300},
				Parameters:  map[string]any{},
			},
			{
				ID:          "fetch",
				Name:        "Fetch Orders",
				Type:        "http-call",
				TypeVersion: 1,
				Position:    []float64{460, 300},
				Parameters:  map[string]any{"url": "https://api.example.com/orders"},
			},
		},
		Connections: map[string][][]models.Connection{
			"trigger": {{{Node: "fetch", Index: 0}}},
		},
	}
}

func codes(issues []models.ValidationError) []string {
	out := make([]string, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issue.Code)
	}

	return out
}

func TestChain_ValidDefinition(t *testing.T) {
	chain := testChain(t)

	result := chain.Validate(t.Context(), validDefinition())

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Equal(t, models.Layer(""), FailedLayer(result))
}

func TestChain_NodeWithoutParameters(t *testing.T) {
	chain := testChain(t)

	// A nil Parameters map serializes as null; the schema must treat that
	// the same as an absent or empty object.
	def := validDefinition()
	def.Nodes[0].Parameters = nil

	result := chain.Validate(t.Context(), def)

	assert.True(t, result.Valid)
	assert.NotContains(t, codes(result.Errors), CodeSchemaViolation)
	assert.Empty(t, result.Errors)
}

func TestChain_SingleNodeWithoutConnections(t *testing.T) {
	chain := testChain(t)

	def := &models.WorkflowDefinition{
		Name: "Ping",
		Nodes: []*models.Node{
			{
				ID:          "trigger",
				Name:        "Start",
				Type:        "manual-trigger",
				TypeVersion: 1,
				Position:    []float64{240, 300},
			},
		},
	}

	result := chain.Validate(t.Context(), def)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestChain_EmptyWorkflow(t *testing.T) {
	chain := testChain(t)

	result := chain.Validate(t.Context(), &models.WorkflowDefinition{Name: "Empty"})

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, CodeEmptyWorkflow, result.Errors[0].Code)
	assert.Equal(t, models.LayerStructure, FailedLayer(result))
}

func TestChain_MissingNameIsFixable(t *testing.T) {
	chain := testChain(t)

	def := validDefinition()
	def.Name = ""

	result := chain.Validate(t.Context(), def)

	assert.False(t, result.Valid)
	assert.Contains(t, codes(result.Errors), CodeMissingName)
	assert.NotEmpty(t, result.FixableErrors())
	assert.Equal(t, models.LayerStructure, FailedLayer(result))
}

func TestChain_DuplicateNodeIDBlocksCompatibility(t *testing.T) {
	chain := testChain(t)

	def := validDefinition()
	// The duplicated node also carries an unsupported type. The chain must
	// stop at the business layer, so the type is never reported.
	def.Nodes = append(def.Nodes, &models.Node{
		ID:          "fetch",
		Name:        "Shadow",
		Type:        "bogus-type",
		TypeVersion: 1,
		Position:    []float64{680, 300},
	})

	result := chain.Validate(t.Context(), def)

	assert.False(t, result.Valid)
	assert.Contains(t, codes(result.Errors), CodeDuplicateNodeID)
	assert.NotContains(t, codes(result.Errors), CodeUnsupportedType)
	assert.Equal(t, models.LayerBusiness, FailedLayer(result))

	fixable := result.FixableErrors()
	require.Len(t, fixable, 1)
	assert.Equal(t, CodeDuplicateNodeID, fixable[0].Code)
}

func TestChain_SixtyNodesBlocksAtBusiness(t *testing.T) {
	chain := testChain(t)

	def := &models.WorkflowDefinition{
		Name:        "Big",
		Nodes:       make([]*models.Node, 0, 60),
		Connections: map[string][][]models.Connection{},
	}

	for i := 0; i < 60; i++ {
		def.Nodes = append(def.Nodes, &models.Node{
			ID:          fmt.Sprintf("node-%d", i),
			Name:        fmt.Sprintf("Step %d", i),
			Type:        "no-op",
			TypeVersion: 1,
			Position:    []float64{float64(240 + 220*i), 300},
		})
	}

	result := chain.Validate(t.Context(), def)

	assert.False(t, result.Valid)
	assert.Contains(t, codes(result.Errors), CodeTooManyNodes)
	// Compatibility never ran, so the missing trigger is not reported.
	assert.NotContains(t, codes(result.Errors), CodeNoTriggerNode)
	assert.Equal(t, models.LayerBusiness, FailedLayer(result))
}

func TestChain_InvalidNameCharacters(t *testing.T) {
	chain := testChain(t)

	def := validDefinition()
	def.Name = "bad/name!"

	result := chain.Validate(t.Context(), def)

	assert.False(t, result.Valid)
	assert.Contains(t, codes(result.Errors), CodeInvalidNameChars)
}

func TestCompatibility_UnknownConnectionRefs(t *testing.T) {
	chain := testChain(t)

	def := validDefinition()
	def.Connections["ghost"] = [][]models.Connection{{{Node: "missing", Index: 0}}}

	result := chain.Validate(t.Context(), def)

	assert.False(t, result.Valid)

	refErrors := 0

	for _, issue := range result.Errors {
		if issue.Code == CodeUnknownNodeRef {
			refErrors++
		}
	}

	// One error for the unknown source, one for the unknown target.
	assert.Equal(t, 2, refErrors)
}

func TestCompatibility_CycleIsCritical(t *testing.T) {
	chain := testChain(t)

	def := validDefinition()
	def.Nodes = append(def.Nodes, &models.Node{
		ID:          "loop",
		Name:        "Loop Back",
		Type:        "no-op",
		TypeVersion: 1,
		Position:    []float64{680, 300},
	})
	def.Connections["fetch"] = [][]models.Connection{{{Node: "loop", Index: 0}}}
	def.Connections["loop"] = [][]models.Connection{{{Node: "fetch", Index: 0}}}

	result := chain.Validate(t.Context(), def)

	assert.False(t, result.Valid)
	assert.Contains(t, codes(result.Errors), CodeCircularDependency)
}

func TestCompatibility_UnreachableNodeIsWarning(t *testing.T) {
	chain := testChain(t)

	def := validDefinition()
	def.Nodes = append(def.Nodes, &models.Node{
		ID:          "island",
		Name:        "Island",
		Type:        "no-op",
		TypeVersion: 1,
		Position:    []float64{680, 500},
	})

	result := chain.Validate(t.Context(), def)

	assert.True(t, result.Valid)
	assert.Contains(t, codes(result.Warnings), CodeUnreachableNode)
}

func TestCompatibility_NoTriggerNode(t *testing.T) {
	chain := testChain(t)

	def := validDefinition()
	def.Nodes = def.Nodes[1:]
	delete(def.Connections, "trigger")

	result := chain.Validate(t.Context(), def)

	assert.False(t, result.Valid)
	assert.Contains(t, codes(result.Errors), CodeNoTriggerNode)
}

func TestCompatibility_MissingCredentialsNotFixable(t *testing.T) {
	chain := testChain(t)

	def := validDefinition()
	def.Nodes = append(def.Nodes, &models.Node{
		ID:          "notify",
		Name:        "Notify Team",
		Type:        "slack",
		TypeVersion: 1,
		Position:    []float64{680, 300},
	})
	def.Connections["fetch"] = [][]models.Connection{{{Node: "notify", Index: 0}}}

	result := chain.Validate(t.Context(), def)

	assert.False(t, result.Valid)
	assert.Contains(t, codes(result.Errors), CodeMissingCredentials)

	for _, issue := range result.Errors {
		if issue.Code == CodeMissingCredentials {
			assert.False(t, issue.Fixable)
		}
	}
}

func TestCompatibility_UnsupportedNodeType(t *testing.T) {
	chain := testChain(t)

	def := validDefinition()
	def.Nodes[1].Type = "quantum-annealer"

	result := chain.Validate(t.Context(), def)

	assert.False(t, result.Valid)
	assert.Contains(t, codes(result.Errors), CodeUnsupportedType)
}
