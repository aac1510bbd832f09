// Package validation implements the structural, business and compatibility
// validation layers that gate workflow deployment. The layers run fail-fast:
// each one executes only when the previous produced no blocking errors.
package validation

// Limits applied by the structural and business layers.
const (
	// MaxNodesHard is the structural ceiling; definitions above it are
	// rejected outright.
	MaxNodesHard = 200

	// MaxNodesBusiness is the business-rule ceiling for a deployable
	// workflow.
	MaxNodesBusiness = 50

	// LargeNodeCount and LargeConnectionCount trigger non-blocking
	// performance warnings.
	LargeNodeCount       = 30
	LargeConnectionCount = 50

	// MaxNameLength bounds workflow and node names.
	MaxNameLength = 255
)

// Error codes produced by the validation layers.
const (
	CodeSchemaViolation    = "SCHEMA_VIOLATION"
	CodeEmptyWorkflow      = "EMPTY_WORKFLOW"
	CodeTooManyNodesHard   = "TOO_MANY_NODES_HARD"
	CodeMissingName        = "MISSING_WORKFLOW_NAME"
	CodeNodeMissingField   = "NODE_MISSING_FIELD"
	CodeNodeInvalidPos     = "NODE_INVALID_POSITION"
	CodeDuplicateNodeID    = "DUPLICATE_NODE_ID"
	CodeNameTooLong        = "NAME_TOO_LONG"
	CodeInvalidNameChars   = "INVALID_NAME_CHARACTERS"
	CodeTooManyNodes       = "TOO_MANY_NODES"
	CodeLargeWorkflow      = "LARGE_WORKFLOW"
	CodeManyConnections    = "MANY_CONNECTIONS"
	CodeUnknownNodeRef     = "CONNECTION_UNKNOWN_NODE"
	CodeUnsupportedType    = "UNSUPPORTED_NODE_TYPE"
	CodeMissingCredentials = "MISSING_CREDENTIALS"
	CodeCircularDependency = "CIRCULAR_DEPENDENCY"
	CodeUnreachableNode    = "UNREACHABLE_NODE"
	CodeNoTriggerNode      = "NO_TRIGGER_NODE"
)
