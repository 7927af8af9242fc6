package engine

import (
	"errors"
	"strings"

	"axon/internal/workflow"
)

// ErrCycle is returned when the executable subgraph cannot be topologically
// ordered.
var ErrCycle = errors.New("cycle detected")

// topologicalOrder partitions the document into executable nodes and tool
// providers, then runs Kahn's algorithm over the data edges. Ties are broken
// by document insertion order, then natural enqueue order.
func topologicalOrder(doc *workflow.Document) ([]string, error) {
	executable := make([]string, 0, len(doc.Nodes))
	isExecutable := make(map[string]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		if strings.HasPrefix(n.Data.Type, "tool-") {
			continue
		}
		executable = append(executable, n.ID)
		isExecutable[n.ID] = true
	}

	inDegree := make(map[string]int, len(executable))
	adjacency := make(map[string][]string, len(executable))
	for _, id := range executable {
		inDegree[id] = 0
	}
	for _, e := range doc.Edges {
		if e.IsToolAttachment() {
			continue
		}
		if !isExecutable[e.Source] || !isExecutable[e.Target] {
			continue
		}
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
		inDegree[e.Target]++
	}

	queue := make([]string, 0, len(executable))
	for _, id := range executable {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(executable))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range adjacency[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(executable) {
		return nil, ErrCycle
	}
	return order, nil
}
