package quality

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/intelogroup/clixen/pkg/models"
	"github.com/intelogroup/clixen/pkg/nodetypes"
	"github.com/intelogroup/clixen/pkg/validation"
)

const (
	// Stage issue codes.
	CodeEmptyWorkflow       = "EMPTY_WORKFLOW"
	CodeMissingName         = "MISSING_WORKFLOW_NAME"
	CodeNodeIncomplete      = "NODE_INCOMPLETE"
	CodeNodeBadPosition     = "NODE_BAD_POSITION"
	CodeDuplicateNodeID     = "DUPLICATE_NODE_ID"
	CodeDanglingConnection  = "DANGLING_CONNECTION"
	CodeSelfConnection      = "SELF_CONNECTION"
	CodeCircularDependency  = "CIRCULAR_DEPENDENCY"
	CodeInvalidExpression   = "INVALID_EXPRESSION"
	CodeConditionalNoBranch = "CONDITIONAL_NO_BRANCH"
	CodeHeavyWorkflow       = "HEAVY_WORKFLOW"
	CodeManyOutboundCalls   = "MANY_OUTBOUND_CALLS"
	CodeSecretInParameters  = "SECRET_IN_PARAMETERS"
	CodeTriggerNoAuth       = "TRIGGER_NO_AUTH"
	CodeInsecureURL         = "INSECURE_URL"
	CodeDefaultNodeName     = "DEFAULT_NODE_NAME"
	CodeNoTags              = "NO_TAGS"
	CodeDisabledNodes       = "DISABLED_NODES"
)

var secretMarkers = []string{"password", "token", "secret", "apikey", "api_key"}

func qualityIssue(code, message, nodeID string, severity models.Severity) models.ValidationError {
	return models.ValidationError{
		Layer:    models.LayerQuality,
		Code:     code,
		Message:  message,
		NodeID:   nodeID,
		Severity: severity,
	}
}

func (v *Validator) checkStructure(def *models.WorkflowDefinition) []models.ValidationError {
	issues := make([]models.ValidationError, 0)

	if len(def.Nodes) == 0 {
		issues = append(issues, qualityIssue(CodeEmptyWorkflow,
			"workflow contains no nodes", "", models.SeverityCritical))

		return issues
	}

	if def.Name == "" {
		issue := qualityIssue(CodeMissingName, "workflow has no name", "", models.SeverityHigh)
		issue.Fixable = true
		issues = append(issues, issue)
	}

	return issues
}

func (v *Validator) checkNodes(def *models.WorkflowDefinition) []models.ValidationError {
	issues := make([]models.ValidationError, 0)
	seen := make(map[string]struct{}, len(def.Nodes))

	for _, node := range def.Nodes {
		if node.ID == "" || node.Name == "" {
			issue := qualityIssue(CodeNodeIncomplete,
				fmt.Sprintf("node %q is missing an id or name", node.Name), node.ID, models.SeverityCritical)
			issue.Fixable = true
			issues = append(issues, issue)
		}

		if node.Type == "" {
			issues = append(issues, qualityIssue(CodeNodeIncomplete,
				"node has no type", node.ID, models.SeverityCritical))
		}

		if !node.HasValidPosition() {
			issue := qualityIssue(CodeNodeBadPosition,
				fmt.Sprintf("node %q has no canvas position", node.ID), node.ID, models.SeverityMedium)
			issue.Fixable = true
			issues = append(issues, issue)
		}

		if node.ID != "" {
			if _, dup := seen[node.ID]; dup {
				issue := qualityIssue(CodeDuplicateNodeID,
					fmt.Sprintf("node id %q is duplicated", node.ID), node.ID, models.SeverityCritical)
				issue.Fixable = true
				issues = append(issues, issue)
			}

			seen[node.ID] = struct{}{}
		}
	}

	return issues
}

func (v *Validator) checkConnections(def *models.WorkflowDefinition) []models.ValidationError {
	issues := make([]models.ValidationError, 0)
	ids := def.NodeIDSet()

	for source, groups := range def.Connections {
		if _, ok := ids[source]; !ok {
			issues = append(issues, qualityIssue(CodeDanglingConnection,
				fmt.Sprintf("connections reference unknown source node %q", source), source, models.SeverityCritical))
		}

		for _, group := range groups {
			for _, conn := range group {
				if _, ok := ids[conn.Node]; !ok {
					issues = append(issues, qualityIssue(CodeDanglingConnection,
						fmt.Sprintf("connection from %q targets unknown node %q", source, conn.Node),
						conn.Node, models.SeverityCritical))
				}

				if conn.Node == source {
					issues = append(issues, qualityIssue(CodeSelfConnection,
						fmt.Sprintf("node %q connects to itself", source), source, models.SeverityMedium))
				}
			}
		}
	}

	if hit := validation.DetectCycle(def); hit != "" {
		issues = append(issues, qualityIssue(CodeCircularDependency,
			fmt.Sprintf("node %q participates in a connection cycle", hit),
			hit, models.SeverityCritical))
	}

	return issues
}

// checkLogic compiles the boolean expressions carried by conditional nodes.
// An expression that does not compile can never route items.
func (v *Validator) checkLogic(def *models.WorkflowDefinition) []models.ValidationError {
	issues := make([]models.ValidationError, 0)

	for _, node := range def.Nodes {
		descriptor, known := v.registry.Lookup(node.Type)
		if !known || descriptor.Kind != nodetypes.KindConditional || node.Disabled {
			continue
		}

		condition := node.StringParameter("condition")
		if condition == "" {
			condition = node.StringParameter("expression")
		}

		if condition == "" {
			// Switch nodes route by rules instead of a single expression.
			if node.Type == "conditional" {
				issues = append(issues, qualityIssue(CodeConditionalNoBranch,
					fmt.Sprintf("conditional node %q has no condition expression", node.ID),
					node.ID, models.SeverityHigh))
			}

			continue
		}

		if _, err := expr.Compile(condition, expr.AllowUndefinedVariables()); err != nil {
			issues = append(issues, qualityIssue(CodeInvalidExpression,
				fmt.Sprintf("conditional node %q has an invalid expression: %v", node.ID, err),
				node.ID, models.SeverityHigh))
		}
	}

	return issues
}

func (v *Validator) checkPerformance(def *models.WorkflowDefinition) []models.ValidationError {
	issues := make([]models.ValidationError, 0)

	if len(def.Nodes) > 25 {
		issues = append(issues, qualityIssue(CodeHeavyWorkflow,
			fmt.Sprintf("workflow has %d nodes and may execute slowly", len(def.Nodes)),
			"", models.SeverityMedium))
	}

	outbound := 0

	for _, node := range def.Nodes {
		if descriptor, known := v.registry.Lookup(node.Type); known && descriptor.MakesOutboundCalls && !node.Disabled {
			outbound++
		}
	}

	if outbound > 10 {
		issues = append(issues, qualityIssue(CodeManyOutboundCalls,
			fmt.Sprintf("workflow makes %d outbound calls per run", outbound),
			"", models.SeverityMedium))
	}

	return issues
}

// checkSecurity flags secret-looking parameter values, unauthenticated
// triggers and cleartext outbound URLs. Secret detection is heuristic and
// never blocks on its own.
func (v *Validator) checkSecurity(def *models.WorkflowDefinition) []models.ValidationError {
	issues := make([]models.ValidationError, 0)

	for _, node := range def.Nodes {
		if node.Disabled {
			continue
		}

		if containsSecretMarker(node.Parameters) {
			issue := qualityIssue(CodeSecretInParameters,
				fmt.Sprintf("node %q appears to embed a secret in its parameters", node.ID),
				node.ID, models.SeverityMedium)
			issue.Suggestion = "move the value into a stored credential"
			issues = append(issues, issue)
		}

		descriptor, known := v.registry.Lookup(node.Type)
		if !known {
			continue
		}

		if descriptor.IsTrigger() && descriptor.ExpectsAuth && node.StringParameter("authentication") == "" {
			issues = append(issues, qualityIssue(CodeTriggerNoAuth,
				fmt.Sprintf("trigger node %q accepts unauthenticated requests", node.ID),
				node.ID, models.SeverityMedium))
		}

		if descriptor.MakesOutboundCalls {
			if target := node.StringParameter("url"); insecureRemoteURL(target) {
				issues = append(issues, qualityIssue(CodeInsecureURL,
					fmt.Sprintf("node %q calls %q without TLS", node.ID, target),
					node.ID, models.SeverityHigh))
			}
		}
	}

	return issues
}

func (v *Validator) checkBestPractices(def *models.WorkflowDefinition) []models.ValidationError {
	issues := make([]models.ValidationError, 0)

	if len(def.Tags) == 0 {
		issues = append(issues, qualityIssue(CodeNoTags,
			"workflow has no tags", "", models.SeverityLow))
	}

	disabled := 0

	for _, node := range def.Nodes {
		if node.Disabled {
			disabled++
		}

		if strings.HasPrefix(node.Name, "Node ") || node.Name == node.Type {
			issues = append(issues, qualityIssue(CodeDefaultNodeName,
				fmt.Sprintf("node %q still has a generated name", node.ID),
				node.ID, models.SeverityLow))
		}
	}

	if disabled > 0 {
		issues = append(issues, qualityIssue(CodeDisabledNodes,
			fmt.Sprintf("workflow carries %d disabled nodes", disabled),
			"", models.SeverityLow))
	}

	return issues
}

func containsSecretMarker(value any) bool {
	switch v := value.(type) {
	case string:
		lowered := strings.ToLower(v)
		for _, marker := range secretMarkers {
			if strings.Contains(lowered, marker) {
				return true
			}
		}
	case map[string]any:
		for key, nested := range v {
			if containsSecretMarker(key) || containsSecretMarker(nested) {
				return true
			}
		}
	case []any:
		for _, item := range v {
			if containsSecretMarker(item) {
				return true
			}
		}
	}

	return false
}

// insecureRemoteURL reports whether the target is a cleartext http URL to a
// non-local host.
func insecureRemoteURL(target string) bool {
	if target == "" {
		return false
	}

	parsed, err := url.Parse(target)
	if err != nil || parsed.Scheme != "http" {
		return false
	}

	host := parsed.Hostname()

	return host != "localhost" && host != "127.0.0.1" && host != "::1"
}
