// Package nodetypes defines the closed set of node capabilities the execution
// engine supports and the registry used to resolve node type strings.
package nodetypes

import (
	"fmt"
	"sync"
)

// Kind is the capability class of a node type.
type Kind int

const (
	KindTrigger Kind = iota
	KindAction
	KindConditional
	KindTransform
	KindUtility
)

var kindNames = map[Kind]string{
	KindTrigger:     "trigger",
	KindAction:      "action",
	KindConditional: "conditional",
	KindTransform:   "transform",
	KindUtility:     "utility",
}

func (k Kind) String() string {
	name, ok := kindNames[k]
	if !ok {
		return "unknown"
	}

	return name
}

// Descriptor describes one node type the engine can execute.
type Descriptor struct {
	Type                string // Wire identifier, e.g. "http-call"
	Kind                Kind
	RequiresCredentials bool // Stored credentials must be referenced on the node
	ExpectsAuth         bool // Triggers only: an authentication parameter is expected
	MakesOutboundCalls  bool // Node reaches external hosts over the network
	Description         string
}

// IsTrigger reports whether the descriptor is an entry point into a workflow.
func (d Descriptor) IsTrigger() bool {
	return d.Kind == KindTrigger
}

// Registry is the extension point for node types. Lookups are concurrency-safe;
// unknown type strings fail compatibility validation instead of silently
// passing.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
}

// NewRegistry returns a registry pre-populated with the engine's built-in node
// types.
func NewRegistry() *Registry {
	r := &Registry{
		descriptors: make(map[string]Descriptor),
	}

	for _, d := range builtins {
		r.descriptors[d.Type] = d
	}

	return r
}

// Register adds a node type descriptor. Registering an already known type is
// rejected so built-ins cannot be silently shadowed.
func (r *Registry) Register(d Descriptor) error {
	if d.Type == "" {
		return fmt.Errorf("node type identifier is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.descriptors[d.Type]; exists {
		return fmt.Errorf("node type %q is already registered", d.Type)
	}

	r.descriptors[d.Type] = d

	return nil
}

// Lookup resolves a node type string to its descriptor.
func (r *Registry) Lookup(nodeType string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.descriptors[nodeType]

	return d, ok
}

// Supported reports whether the engine knows the given node type.
func (r *Registry) Supported(nodeType string) bool {
	_, ok := r.Lookup(nodeType)

	return ok
}

// TriggerTypes returns the type identifiers of all registered trigger nodes.
func (r *Registry) TriggerTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0)

	for _, d := range r.descriptors {
		if d.IsTrigger() {
			types = append(types, d.Type)
		}
	}

	return types
}

var builtins = []Descriptor{
	{Type: "webhook-trigger", Kind: KindTrigger, ExpectsAuth: true, Description: "Starts a workflow from an inbound HTTP request"},
	{Type: "schedule-trigger", Kind: KindTrigger, Description: "Starts a workflow on a cron schedule"},
	{Type: "manual-trigger", Kind: KindTrigger, Description: "Starts a workflow from the editor"},
	{Type: "http-call", Kind: KindAction, MakesOutboundCalls: true, Description: "Performs an HTTP request"},
	{Type: "conditional", Kind: KindConditional, Description: "Routes items by a boolean expression"},
	{Type: "switch", Kind: KindConditional, Description: "Routes items across multiple outputs"},
	{Type: "merge", Kind: KindUtility, Description: "Joins multiple input branches"},
	{Type: "transform", Kind: KindTransform, Description: "Reshapes item data"},
	{Type: "set-fields", Kind: KindTransform, Description: "Sets static fields on items"},
	{Type: "no-op", Kind: KindUtility, Description: "Passes items through unchanged"},
	{Type: "slack", Kind: KindAction, RequiresCredentials: true, MakesOutboundCalls: true, Description: "Sends Slack messages"},
	{Type: "gmail", Kind: KindAction, RequiresCredentials: true, MakesOutboundCalls: true, Description: "Sends email through Gmail"},
	{Type: "postgres-query", Kind: KindAction, RequiresCredentials: true, Description: "Runs a SQL query"},
	{Type: "openai-completion", Kind: KindAction, RequiresCredentials: true, MakesOutboundCalls: true, Description: "Calls a language model"},
}
