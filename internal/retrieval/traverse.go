package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/causalmem/cmem/internal/store"
)

// TraversedNode is a node discovered by graph traversal, tagged with
// the edge type and depth of its first discovery.
type TraversedNode struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Timestamp float64        `json:"timestamp"`
	Source    string         `json:"source"`
	EdgeType  store.EdgeType `json:"edge_type"`
	Depth     int            `json:"depth"`
}

// Traverse expands breadth-first from the seed ids up to maxDepth hops,
// optionally restricted to a subset of edge types. Seeds themselves are
// never emitted. A node reachable along multiple paths is emitted once,
// tagged with its first discovery; the store returns outgoing adjacency
// before incoming at each level, which keeps the ordering deterministic.
// Edges whose neighbor cannot be resolved to a node are skipped.
func (e *Engine) Traverse(ctx context.Context, seedIDs []string, maxDepth int, edgeTypes []store.EdgeType) ([]TraversedNode, error) {
	visited := make(map[string]bool, len(seedIDs))
	frontier := make([]string, 0, len(seedIDs))
	for _, id := range seedIDs {
		visited[id] = true
		frontier = append(frontier, id)
	}

	var results []TraversedNode
	for depth := 1; depth <= maxDepth; depth++ {
		if len(frontier) == 0 {
			break
		}

		neighbors, err := e.store.Neighbors(ctx, frontier, edgeTypes)
		if err != nil {
			return nil, fmt.Errorf("traverse depth %d: %w", depth, err)
		}

		var nextFrontier []string
		for _, n := range neighbors {
			if visited[n.ID] {
				continue
			}
			visited[n.ID] = true
			nextFrontier = append(nextFrontier, n.ID)

			node, err := e.store.GetNode(ctx, n.ID)
			if errors.Is(err, store.ErrNotFound) {
				// Dangling edge; the id still expands the frontier.
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("traverse depth %d: %w", depth, err)
			}
			results = append(results, TraversedNode{
				ID:        node.ID,
				Text:      node.Text,
				Timestamp: node.Timestamp,
				Source:    node.Source,
				EdgeType:  n.Type,
				Depth:     depth,
			})
		}
		frontier = nextFrontier
	}
	return results, nil
}
