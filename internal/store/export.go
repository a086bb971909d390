package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// exportedNode is the JSONL row for one node. The embedding travels as
// base64 float32 bytes so a snapshot can be re-imported losslessly.
type exportedNode struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Embedding []byte  `json:"embedding,omitempty"`
	Timestamp float64 `json:"timestamp"`
	Source    string  `json:"source,omitempty"`
	CreatedAt float64 `json:"created_at"`
}

// ExportJSONL writes nodes.jsonl and edges.jsonl snapshots of the store
// into dir, creating it if needed. Existing files are overwritten.
func (s *SQLiteStore) ExportJSONL(ctx context.Context, dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := s.exportNodes(ctx, filepath.Join(dir, "nodes.jsonl")); err != nil {
		return err
	}
	return s.exportEdges(ctx, filepath.Join(dir, "edges.jsonl"))
}

func (s *SQLiteStore) exportNodes(ctx context.Context, path string) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, embedding, timestamp, source, created_at FROM nodes ORDER BY rowid
	`)
	if err != nil {
		return fmt.Errorf("failed to query nodes for export: %w", err)
	}
	defer rows.Close()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create nodes file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	for rows.Next() {
		var n exportedNode
		var ts, createdAt sql.NullFloat64
		var source sql.NullString
		if err := rows.Scan(&n.ID, &n.Text, &n.Embedding, &ts, &source, &createdAt); err != nil {
			return fmt.Errorf("failed to scan node for export: %w", err)
		}
		n.Timestamp = ts.Float64
		n.Source = source.String
		n.CreatedAt = createdAt.Float64
		if err := encoder.Encode(n); err != nil {
			return fmt.Errorf("failed to encode node: %w", err)
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) exportEdges(ctx context.Context, path string) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, src, dst, edge_type, weight, created_at FROM edges ORDER BY id
	`)
	if err != nil {
		return fmt.Errorf("failed to query edges for export: %w", err)
	}
	defer rows.Close()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create edges file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	for rows.Next() {
		var e Edge
		var typ string
		var weight, createdAt sql.NullFloat64
		if err := rows.Scan(&e.ID, &e.Src, &e.Dst, &typ, &weight, &createdAt); err != nil {
			return fmt.Errorf("failed to scan edge for export: %w", err)
		}
		e.Type = EdgeType(typ)
		e.Weight = weight.Float64
		e.CreatedAt = createdAt.Float64
		if err := encoder.Encode(e); err != nil {
			return fmt.Errorf("failed to encode edge: %w", err)
		}
	}
	return rows.Err()
}
