// Package edges derives similarity edges between memory nodes from
// their embeddings. AddNode only ever writes causality and association
// edges; this all-pairs pass is what populates the third edge type.
package edges

import (
	"context"
	"fmt"

	"github.com/causalmem/cmem/internal/store"
	"github.com/causalmem/cmem/internal/vecmath"
)

// DeriveConfig bounds which pairs get connected.
type DeriveConfig struct {
	// Threshold is the minimum cosine similarity to propose an edge.
	Threshold float64 `yaml:"threshold"`
	// UpperBound excludes near-duplicates: pairs at or above it are
	// assumed to be the same memory and left unlinked.
	UpperBound float64 `yaml:"upper_bound"`
	// DryRun proposes edges without writing them.
	DryRun bool `yaml:"-"`
}

// DefaultDeriveConfig links pairs scoring in [0.5, 0.95).
func DefaultDeriveConfig() DeriveConfig {
	return DeriveConfig{Threshold: 0.5, UpperBound: 0.95}
}

// ProposedEdge is one candidate similarity link.
type ProposedEdge struct {
	Src   string  `json:"src"`
	Dst   string  `json:"dst"`
	Score float64 `json:"score"`
}

// DeriveResult reports one derivation run.
type DeriveResult struct {
	Nodes         int            `json:"nodes"`
	PairsCompared int            `json:"pairs_compared"`
	ProposedEdges []ProposedEdge `json:"proposed_edges"`
	CreatedEdges  int            `json:"created_edges"`
	SkippedExist  int            `json:"skipped_existing"`
	Histogram     [10]int        `json:"score_histogram"`
}

// Derive compares every pair of embedding-bearing nodes and inserts a
// symmetric pair of similarity edges (weight = score) for pairs scoring
// within [Threshold, UpperBound). Pairs already connected by a
// similarity edge in either direction are skipped.
func Derive(ctx context.Context, s store.Store, cfg DeriveConfig) (*DeriveResult, error) {
	nodes, err := s.EmbeddedNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load embedded nodes: %w", err)
	}

	result := &DeriveResult{Nodes: len(nodes)}
	if len(nodes) < 2 {
		return result, nil
	}

	existing, err := existingSimilarityPairs(ctx, s)
	if err != nil {
		return nil, err
	}

	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			a, b := &nodes[i], &nodes[j]
			result.PairsCompared++

			score := vecmath.CosineSimilarity(a.Embedding, b.Embedding)

			bucket := int(score * 10)
			if bucket < 0 {
				bucket = 0
			}
			if bucket >= 10 {
				bucket = 9
			}
			result.Histogram[bucket]++

			if score < cfg.Threshold || score >= cfg.UpperBound {
				continue
			}
			if existing[pairKey(a.ID, b.ID)] {
				result.SkippedExist++
				continue
			}
			existing[pairKey(a.ID, b.ID)] = true
			existing[pairKey(b.ID, a.ID)] = true
			result.ProposedEdges = append(result.ProposedEdges, ProposedEdge{Src: a.ID, Dst: b.ID, Score: score})
		}
	}

	if cfg.DryRun {
		return result, nil
	}

	for _, pe := range result.ProposedEdges {
		// Both directions, mirroring how association pairs are stored.
		if err := s.AddEdge(ctx, pe.Src, pe.Dst, store.EdgeSimilarity, pe.Score); err != nil {
			return result, fmt.Errorf("add similarity edge %s -> %s: %w", pe.Src, pe.Dst, err)
		}
		if err := s.AddEdge(ctx, pe.Dst, pe.Src, store.EdgeSimilarity, pe.Score); err != nil {
			return result, fmt.Errorf("add similarity edge %s -> %s: %w", pe.Dst, pe.Src, err)
		}
		result.CreatedEdges += 2
	}

	return result, nil
}

// pairKey joins two ids with a NUL byte, which cannot appear in an id,
// so ids containing separator-like characters never collide.
func pairKey(a, b string) string {
	return a + "\x00" + b
}

// existingSimilarityPairs indexes current similarity edges in both
// directions so reruns stay idempotent.
func existingSimilarityPairs(ctx context.Context, s store.Store) (map[string]bool, error) {
	edges, err := s.AllEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("load existing edges: %w", err)
	}
	pairs := make(map[string]bool)
	for _, e := range edges {
		if e.Type != store.EdgeSimilarity {
			continue
		}
		pairs[pairKey(e.Src, e.Dst)] = true
		pairs[pairKey(e.Dst, e.Src)] = true
	}
	return pairs, nil
}
