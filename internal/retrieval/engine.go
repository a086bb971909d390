// Package retrieval implements the search strategies over the causal
// memory graph: exact similarity ranking, bounded graph traversal, the
// confidence-gated multi-hop orchestration that combines them, and a
// lexical keyword fallback for embedding-less nodes.
package retrieval

import (
	"errors"

	"github.com/causalmem/cmem/internal/store"
)

var (
	// ErrEmptyEmbedding is returned when a search is given an empty
	// query vector.
	ErrEmptyEmbedding = errors.New("query embedding is empty")

	// ErrEmptyQuery is returned when keyword search is given a query
	// with no terms.
	ErrEmptyQuery = errors.New("keyword query is empty")
)

// Config holds the retrieval tunables. The confidence weights and seed
// count are workload heuristics, not invariants, so they are exposed
// here rather than hard-coded.
type Config struct {
	// Confidence is a weighted sum of the top similarity score, the
	// mean score, and the result-count ratio.
	ConfidenceTopWeight   float64 `yaml:"confidence_top_weight"`
	ConfidenceMeanWeight  float64 `yaml:"confidence_mean_weight"`
	ConfidenceCountWeight float64 `yaml:"confidence_count_weight"`

	// TraversalSeeds is how many top similarity hits seed graph
	// traversal when confidence falls below the threshold.
	TraversalSeeds int `yaml:"traversal_seeds"`
}

// DefaultConfig returns the reference tuning.
func DefaultConfig() Config {
	return Config{
		ConfidenceTopWeight:   0.5,
		ConfidenceMeanWeight:  0.3,
		ConfidenceCountWeight: 0.2,
		TraversalSeeds:        3,
	}
}

// Engine runs searches against a single store instance.
type Engine struct {
	store store.Store
	cfg   Config
}

// NewEngine creates an Engine over s. A zero-valued cfg falls back to
// DefaultConfig.
func NewEngine(s store.Store, cfg Config) *Engine {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	return &Engine{store: s, cfg: cfg}
}

// SearchResult is one ranked hit. EdgeType and Depth are set only on
// hits discovered by graph traversal.
type SearchResult struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
	Timestamp float64 `json:"timestamp"`
	Source    string  `json:"source"`

	EdgeType store.EdgeType `json:"edge_type,omitempty"`
	Depth    int            `json:"depth,omitempty"`
}

// MultiHopResult is the orchestrated response: similarity hits first,
// traversal hits appended in discovery order, plus diagnostic counters.
type MultiHopResult struct {
	Results         []SearchResult `json:"results"`
	Confidence      float64        `json:"confidence"`
	SimilarityCount int            `json:"similarity_count"`
	TraversalCount  int            `json:"traversal_count"`
}
