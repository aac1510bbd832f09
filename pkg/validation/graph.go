package validation

import "github.com/intelogroup/clixen/pkg/models"

// adjacency builds the directed edge map of a definition, keyed by source node
// id. Edges pointing at unknown nodes are skipped; the compatibility layer
// reports those separately.
func adjacency(def *models.WorkflowDefinition) map[string][]string {
	ids := def.NodeIDSet()
	edges := make(map[string][]string, len(def.Connections))

	for source, groups := range def.Connections {
		if _, ok := ids[source]; !ok {
			continue
		}

		for _, group := range groups {
			for _, conn := range group {
				if _, ok := ids[conn.Node]; !ok {
					continue
				}

				edges[source] = append(edges[source], conn.Node)
			}
		}
	}

	return edges
}

// DetectCycle runs a depth-first search over the connection graph and returns
// one node that participates in a cycle, or "" when the graph is acyclic. It
// is the single cycle check; the quality connections stage reuses it so both
// surfaces agree on the same graph.
func DetectCycle(def *models.WorkflowDefinition) string {
	edges := adjacency(def)

	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)

	state := make(map[string]int, len(def.Nodes))

	var visit func(id string) string

	visit = func(id string) string {
		state[id] = inStack

		for _, next := range edges[id] {
			switch state[next] {
			case inStack:
				return next
			case unvisited:
				if hit := visit(next); hit != "" {
					return hit
				}
			}
		}

		state[id] = done

		return ""
	}

	for _, node := range def.Nodes {
		if state[node.ID] == unvisited {
			if hit := visit(node.ID); hit != "" {
				return hit
			}
		}
	}

	return ""
}

// reachableFrom runs a breadth-first traversal from the given seed node ids
// and returns the set of reachable node ids, seeds included.
func reachableFrom(def *models.WorkflowDefinition, seeds []string) map[string]struct{} {
	edges := adjacency(def)
	reached := make(map[string]struct{}, len(seeds))
	queue := make([]string, 0, len(seeds))

	for _, seed := range seeds {
		if _, ok := reached[seed]; ok {
			continue
		}

		reached[seed] = struct{}{}
		queue = append(queue, seed)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range edges[current] {
			if _, ok := reached[next]; ok {
				continue
			}

			reached[next] = struct{}{}
			queue = append(queue, next)
		}
	}

	return reached
}
