// Package mcp exposes the causal memory graph over the Model Context
// Protocol, so AI tools can add and search memories via stdio JSON-RPC.
// Embedding vectors are always supplied by the caller; this server
// never computes them.
package mcp

import (
	"context"
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/causalmem/cmem/internal/config"
	"github.com/causalmem/cmem/internal/retrieval"
	"github.com/causalmem/cmem/internal/store"
)

// Config holds server identity and data location.
type Config struct {
	Name    string
	Version string
	Root    string
}

// Server wires the store and retrieval engine to MCP tools.
type Server struct {
	server *mcp.Server
	store  *store.SQLiteStore
	engine *retrieval.Engine
	cfg    config.Config
	root   string
}

// NewServer opens the store under root (creating .cmem if needed) and
// registers the memory tools.
func NewServer(c *Config) (*Server, error) {
	cmemDir := store.LocalCmemPath(c.Root)
	if err := os.MkdirAll(cmemDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create .cmem directory: %w", err)
	}

	cfg, err := config.Load(c.Root)
	if err != nil {
		return nil, err
	}

	st, err := store.NewSQLiteStore(store.DBPath(c.Root))
	if err != nil {
		return nil, err
	}

	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{Name: c.Name, Version: c.Version}, nil),
		store:  st,
		engine: retrieval.NewEngine(st, cfg.Retrieval),
		cfg:    cfg,
		root:   c.Root,
	}
	s.registerTools()
	return s, nil
}

type addInput struct {
	Text         string    `json:"text" jsonschema:"the memory text to store"`
	Embedding    []float64 `json:"embedding,omitempty" jsonschema:"optional embedding vector for the text"`
	ID           string    `json:"id,omitempty" jsonschema:"optional node id, generated when omitted"`
	Source       string    `json:"source,omitempty" jsonschema:"provenance tag"`
	Timestamp    float64   `json:"timestamp,omitempty" jsonschema:"event time as unix seconds"`
	CausedBy     []string  `json:"caused_by,omitempty" jsonschema:"ids of nodes that causally precede this one"`
	Causes       []string  `json:"causes,omitempty" jsonschema:"ids of nodes this one causally produces"`
	Associations []string  `json:"associations,omitempty" jsonschema:"ids to link symmetrically"`
}

type addOutput struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type searchInput struct {
	Embedding           []float64 `json:"embedding" jsonschema:"query embedding vector"`
	TopK                int       `json:"topk,omitempty" jsonschema:"number of similarity results to request"`
	SimilarityThreshold *float64  `json:"similarity_threshold,omitempty" jsonschema:"confidence below this escalates to graph traversal, 0 disables escalation"`
	MaxDepth            int       `json:"max_depth,omitempty" jsonschema:"maximum traversal depth"`
}

type keywordInput struct {
	Keywords string `json:"keywords" jsonschema:"whitespace-separated terms, all must match"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of results"`
}

type keywordOutput struct {
	Results []retrieval.SearchResult `json:"results"`
	Count   int                      `json:"count"`
}

type statsInput struct{}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "memory_add",
		Description: "Store a memory node, optionally linking it to existing nodes with causal or associative edges.",
	}, s.handleAdd)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "memory_search",
		Description: "Multi-hop search: similarity ranking with confidence-gated graph traversal.",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "memory_keyword",
		Description: "Keyword search over all memory text, including nodes without embeddings.",
	}, s.handleKeyword)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "memory_stats",
		Description: "Count stored nodes and edges by type.",
	}, s.handleStats)
}

func (s *Server) handleAdd(ctx context.Context, req *mcp.CallToolRequest, in addInput) (*mcp.CallToolResult, addOutput, error) {
	id, err := s.store.AddNode(ctx, store.AddNodeRequest{
		Text:         in.Text,
		Embedding:    toFloat32(in.Embedding),
		ID:           in.ID,
		Source:       in.Source,
		Timestamp:    in.Timestamp,
		CausedBy:     in.CausedBy,
		Causes:       in.Causes,
		Associations: in.Associations,
	})
	if err != nil {
		return nil, addOutput{}, err
	}
	return nil, addOutput{ID: id, Status: "ok"}, nil
}

func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest, in searchInput) (*mcp.CallToolResult, *retrieval.MultiHopResult, error) {
	topK := in.TopK
	if topK <= 0 {
		topK = s.cfg.Search.TopK
	}
	// Explicit zero disables escalation; only an omitted threshold
	// falls back to config.
	threshold := s.cfg.Search.SimilarityThreshold
	if in.SimilarityThreshold != nil {
		threshold = *in.SimilarityThreshold
	}
	maxDepth := in.MaxDepth
	if maxDepth <= 0 {
		maxDepth = s.cfg.Search.MaxDepth
	}

	result, err := s.engine.MultiHopSearch(ctx, toFloat32(in.Embedding), topK, threshold, maxDepth)
	if err != nil {
		return nil, nil, err
	}
	return nil, result, nil
}

func (s *Server) handleKeyword(ctx context.Context, req *mcp.CallToolRequest, in keywordInput) (*mcp.CallToolResult, keywordOutput, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = s.cfg.Search.KeywordLimit
	}
	results, err := s.engine.KeywordSearch(ctx, in.Keywords, limit)
	if err != nil {
		return nil, keywordOutput{}, err
	}
	return nil, keywordOutput{Results: results, Count: len(results)}, nil
}

func (s *Server) handleStats(ctx context.Context, req *mcp.CallToolRequest, in statsInput) (*mcp.CallToolResult, store.Stats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, store.Stats{}, err
	}
	return nil, stats, nil
}

// Run serves MCP over stdio until the client disconnects or ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Close releases the underlying store.
func (s *Server) Close() error {
	return s.store.Close()
}

func toFloat32(v []float64) []float32 {
	if len(v) == 0 {
		return nil
	}
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
