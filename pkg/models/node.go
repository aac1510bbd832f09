package models

// Node represents a typed unit of work inside a workflow definition.
type Node struct {
	ID          string         `json:"id"          validate:"required"`
	Name        string         `json:"name"        validate:"required,min=1"`
	Type        string         `json:"type"        validate:"required"`
	TypeVersion float64        `json:"typeVersion"`
	Position    []float64      `json:"position"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Credentials map[string]any `json:"credentials,omitempty"`
	Disabled    bool           `json:"disabled,omitempty"`
}

// HasValidPosition reports whether the node carries a usable [x, y] position.
func (n *Node) HasValidPosition() bool {
	return len(n.Position) == 2
}

// StringParameter returns the named parameter as a string, or "" when absent
// or of another type.
func (n *Node) StringParameter(key string) string {
	value, ok := n.Parameters[key].(string)
	if !ok {
		return ""
	}

	return value
}
