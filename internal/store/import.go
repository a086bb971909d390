package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ImportResult reports what an import run did.
type ImportResult struct {
	NodesAdded   int `json:"nodes_added"`
	NodesSkipped int `json:"nodes_skipped"`
	EdgesAdded   int `json:"edges_added"`
	EdgesSkipped int `json:"edges_skipped"`
}

// ImportJSONL restores a snapshot written by ExportJSONL into the store.
// It is idempotent: nodes whose ID already exists are skipped rather than
// replaced, and edges already present with the same src, dst, and type
// are not duplicated.
func (s *SQLiteStore) ImportJSONL(ctx context.Context, dir string) (*ImportResult, error) {
	result := &ImportResult{}

	if err := s.importNodes(ctx, filepath.Join(dir, "nodes.jsonl"), result); err != nil {
		return nil, err
	}
	if err := s.importEdges(ctx, filepath.Join(dir, "edges.jsonl"), result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *SQLiteStore) importNodes(ctx context.Context, path string, result *ImportResult) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open nodes file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var n exportedNode
		if err := json.Unmarshal(scanner.Bytes(), &n); err != nil {
			return fmt.Errorf("malformed node line: %w", err)
		}

		if _, err := s.GetNode(ctx, n.ID); err == nil {
			result.NodesSkipped++
			continue
		}

		_, err := s.AddNode(ctx, AddNodeRequest{
			ID:        n.ID,
			Text:      n.Text,
			Embedding: decodeEmbedding(n.Embedding),
			Source:    n.Source,
			Timestamp: n.Timestamp,
		})
		if err != nil {
			return fmt.Errorf("failed to import node %s: %w", n.ID, err)
		}
		result.NodesAdded++
	}
	return scanner.Err()
}

func (s *SQLiteStore) importEdges(ctx context.Context, path string, result *ImportResult) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open edges file: %w", err)
	}
	defer f.Close()

	existing, err := s.existingEdgeSet(ctx)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Edge
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return fmt.Errorf("malformed edge line: %w", err)
		}

		key := e.Src + "\x00" + e.Dst + "\x00" + string(e.Type)
		if existing[key] {
			result.EdgesSkipped++
			continue
		}

		if err := s.AddEdge(ctx, e.Src, e.Dst, e.Type, e.Weight); err != nil {
			return fmt.Errorf("failed to import edge %s->%s: %w", e.Src, e.Dst, err)
		}
		existing[key] = true
		result.EdgesAdded++
	}
	return scanner.Err()
}

func (s *SQLiteStore) existingEdgeSet(ctx context.Context) (map[string]bool, error) {
	edges, err := s.AllEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing edges: %w", err)
	}
	set := make(map[string]bool, len(edges))
	for _, e := range edges {
		set[e.Src+"\x00"+e.Dst+"\x00"+string(e.Type)] = true
	}
	return set, nil
}
