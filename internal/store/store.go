// Package store defines the Store interface for persisting and querying
// the causal memory graph: timestamped text nodes connected by typed
// directed edges.
package store

import (
	"context"
	"errors"
)

// EdgeType classifies a directed edge between two memory nodes.
type EdgeType string

const (
	// EdgeCausality encodes "src causally precedes or produces dst".
	EdgeCausality EdgeType = "causality"
	// EdgeAssociation is a symmetric relation, always written as a pair
	// of edges (src->dst and dst->src).
	EdgeAssociation EdgeType = "association"
	// EdgeSimilarity links nodes whose embeddings score close to each
	// other. Produced by edge derivation, never by AddNode.
	EdgeSimilarity EdgeType = "similarity"
)

// Valid reports whether t is one of the three enumerated edge types.
func (t EdgeType) Valid() bool {
	switch t {
	case EdgeCausality, EdgeAssociation, EdgeSimilarity:
		return true
	}
	return false
}

var (
	// ErrNotFound is returned by point lookups of missing node ids.
	// Callers treat it as absent, not fatal.
	ErrNotFound = errors.New("node not found")

	// ErrInvalidEdgeType is returned when an edge write names a type
	// outside the enumerated set.
	ErrInvalidEdgeType = errors.New("invalid edge type")
)

// Node is a persisted memory unit. The embedding is deliberately absent
// here; it is fetched separately via EmbeddedNodes so point lookups stay
// cheap.
type Node struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Timestamp float64 `json:"timestamp"`
	Source    string  `json:"source"`
	CreatedAt float64 `json:"created_at"`
}

// Edge is a directed, typed relation between two nodes.
type Edge struct {
	ID        int64    `json:"id"`
	Src       string   `json:"src"`
	Dst       string   `json:"dst"`
	Type      EdgeType `json:"edge_type"`
	Weight    float64  `json:"weight"`
	CreatedAt float64  `json:"created_at"`
}

// AddNodeRequest carries everything one AddNode call persists: the node
// itself plus the causal and associative edges declared alongside it.
type AddNodeRequest struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
	ID        string    `json:"id,omitempty"`
	Source    string    `json:"source,omitempty"`
	Timestamp float64   `json:"timestamp,omitempty"`

	// CausedBy inserts causality edges (that_id -> new_id).
	CausedBy []string `json:"caused_by,omitempty"`
	// Causes inserts causality edges (new_id -> that_id).
	Causes []string `json:"causes,omitempty"`
	// Associations inserts a symmetric pair of association edges per id.
	Associations []string `json:"associations,omitempty"`
}

// EmbeddedNode is one row of the similarity scan: a node that carries a
// vector, in stable store iteration order.
type EmbeddedNode struct {
	ID        string
	Text      string
	Embedding []float32
	Timestamp float64
	Source    string
}

// Neighbor is one adjacency hit from Neighbors, annotated with the edge
// that produced it.
type Neighbor struct {
	ID     string
	Type   EdgeType
	Weight float64
}

// Stats summarizes store contents.
type Stats struct {
	Nodes     int              `json:"nodes"`
	Edges     int              `json:"edges"`
	EdgeTypes map[EdgeType]int `json:"edge_types"`
}

// Store persists the causal memory graph. Implementations must be safe
// for concurrent use from multiple goroutines within one process; the
// contract beyond that is last-write-wins on node replacement and
// append-only edge insertion.
type Store interface {
	// AddNode persists the node (replacing any existing node with the
	// same id) together with its declared edges, atomically. A missing
	// id is generated. Returns the node id.
	AddNode(ctx context.Context, req AddNodeRequest) (string, error)

	// GetNode returns the node fields excluding the embedding, or
	// ErrNotFound.
	GetNode(ctx context.Context, id string) (*Node, error)

	// AddEdge inserts a single directed edge. Used by edge derivation;
	// AddNode covers the declared-edge fan-out itself.
	AddEdge(ctx context.Context, src, dst string, t EdgeType, weight float64) error

	// Neighbors returns adjacency for the given ids, both directions,
	// optionally restricted to a subset of edge types. Outgoing rows
	// (src in ids) are returned before incoming rows (dst in ids) so
	// traversal stays deterministic.
	Neighbors(ctx context.Context, ids []string, edgeTypes []EdgeType) ([]Neighbor, error)

	// EmbeddedNodes returns every node carrying a vector, in stable
	// insertion order. Full-scan input for the similarity ranker.
	EmbeddedNodes(ctx context.Context) ([]EmbeddedNode, error)

	// AllNodes returns every node regardless of embedding, in stable
	// insertion order. Scan input for keyword search.
	AllNodes(ctx context.Context) ([]Node, error)

	// AllEdges returns every edge in insertion order.
	AllEdges(ctx context.Context) ([]Edge, error)

	// Stats counts nodes and edges, broken down by edge type.
	Stats(ctx context.Context) (Stats, error)

	Close() error
}
