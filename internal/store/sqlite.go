package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore implements Store using SQLite for persistence.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	embedding BLOB,
	timestamp REAL,
	source TEXT DEFAULT '',
	created_at REAL
);
CREATE TABLE IF NOT EXISTS edges (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	src TEXT NOT NULL,
	dst TEXT NOT NULL,
	edge_type TEXT NOT NULL CHECK(edge_type IN ('causality','association','similarity')),
	weight REAL DEFAULT 1.0,
	created_at REAL
);
CREATE INDEX IF NOT EXISTS idx_edges_src ON edges(src);
CREATE INDEX IF NOT EXISTS idx_edges_dst ON edges(dst);
CREATE INDEX IF NOT EXISTS idx_edges_type ON edges(edge_type);
`

// NewSQLiteStore opens (or creates) the database at dbPath and ensures
// the schema exists. Edges carry no foreign-key enforcement: a dangling
// src/dst is tolerated at write time and skipped at read time.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// newNodeID generates a short random node id: the first 12 hex characters
// of a random UUID. Collisions are negligible for practical workloads.
func newNodeID() string {
	u := uuid.New()
	return strings.ReplaceAll(u.String(), "-", "")[:12]
}

// AddNode persists the node and its declared edges in one transaction.
// Empty text is allowed; only edge writes validate their type.
func (s *SQLiteStore) AddNode(ctx context.Context, req AddNodeRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := req.ID
	if id == "" {
		id = newNodeID()
	}
	ts := req.Timestamp
	if ts == 0 {
		ts = float64(time.Now().UnixNano()) / 1e9
	}
	now := float64(time.Now().UnixNano()) / 1e9

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin add node: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO nodes (id, text, embedding, timestamp, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, req.Text, encodeEmbedding(req.Embedding), ts, req.Source, now)
	if err != nil {
		return "", fmt.Errorf("failed to insert node: %w", err)
	}

	insertEdge := func(src, dst string, t EdgeType) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO edges (src, dst, edge_type, weight, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, src, dst, string(t), 1.0, now)
		if err != nil {
			return fmt.Errorf("failed to insert %s edge %s -> %s: %w", t, src, dst, err)
		}
		return nil
	}

	for _, srcID := range req.CausedBy {
		if err := insertEdge(srcID, id, EdgeCausality); err != nil {
			return "", err
		}
	}
	for _, dstID := range req.Causes {
		if err := insertEdge(id, dstID, EdgeCausality); err != nil {
			return "", err
		}
	}
	// Associations are symmetric by construction: both directions are
	// written so traversal from either endpoint finds the other.
	for _, assocID := range req.Associations {
		if err := insertEdge(id, assocID, EdgeAssociation); err != nil {
			return "", err
		}
		if err := insertEdge(assocID, id, EdgeAssociation); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit add node: %w", err)
	}
	return id, nil
}

// GetNode returns the node fields excluding the embedding.
func (s *SQLiteStore) GetNode(ctx context.Context, id string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getNodeUnlocked(ctx, id)
}

func (s *SQLiteStore) getNodeUnlocked(ctx context.Context, id string) (*Node, error) {
	var n Node
	var ts, createdAt sql.NullFloat64
	var source sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, text, timestamp, source, created_at FROM nodes WHERE id = ?
	`, id).Scan(&n.ID, &n.Text, &ts, &source, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node %s: %w", id, err)
	}
	n.Timestamp = ts.Float64
	n.Source = source.String
	n.CreatedAt = createdAt.Float64
	return &n, nil
}

// AddEdge inserts a single directed edge after validating its type.
func (s *SQLiteStore) AddEdge(ctx context.Context, src, dst string, t EdgeType, weight float64) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidEdgeType, t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := float64(time.Now().UnixNano()) / 1e9
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO edges (src, dst, edge_type, weight, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, src, dst, string(t), weight, now)
	if err != nil {
		return fmt.Errorf("failed to add edge %s -> %s: %w", src, dst, err)
	}
	return nil
}

// Neighbors returns adjacency for ids in both directions, outgoing rows
// first, each direction ordered by edge insertion order.
func (s *SQLiteStore) Neighbors(ctx context.Context, ids []string, edgeTypes []EdgeType) ([]Neighbor, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	for _, t := range edgeTypes {
		if !t.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidEdgeType, t)
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idPlaceholders := placeholders(len(ids))
	typeFilter := ""
	if len(edgeTypes) > 0 {
		typeFilter = " AND edge_type IN (" + placeholders(len(edgeTypes)) + ")"
	}

	var neighbors []Neighbor
	// Outgoing before incoming keeps first-discovery-wins traversal
	// deterministic.
	for _, cols := range [][2]string{{"src", "dst"}, {"dst", "src"}} {
		// Placeholder-only clauses; no user input reaches the SQL text.
		query := fmt.Sprintf(
			`SELECT %s, edge_type, weight FROM edges WHERE %s IN (%s)%s ORDER BY id`,
			cols[1], cols[0], idPlaceholders, typeFilter)

		args := make([]interface{}, 0, len(ids)+len(edgeTypes))
		for _, id := range ids {
			args = append(args, id)
		}
		for _, t := range edgeTypes {
			args = append(args, string(t))
		}

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query neighbors: %w", err)
		}
		for rows.Next() {
			var n Neighbor
			var typ string
			var weight sql.NullFloat64
			if err := rows.Scan(&n.ID, &typ, &weight); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan neighbor: %w", err)
			}
			n.Type = EdgeType(typ)
			n.Weight = weight.Float64
			neighbors = append(neighbors, n)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to iterate neighbors: %w", err)
		}
		rows.Close()
	}

	return neighbors, nil
}

// EmbeddedNodes returns every vector-bearing node in insertion order.
func (s *SQLiteStore) EmbeddedNodes(ctx context.Context) ([]EmbeddedNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, embedding, timestamp, source FROM nodes
		WHERE embedding IS NOT NULL ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query embedded nodes: %w", err)
	}
	defer rows.Close()

	var nodes []EmbeddedNode
	for rows.Next() {
		var n EmbeddedNode
		var blob []byte
		var ts sql.NullFloat64
		var source sql.NullString
		if err := rows.Scan(&n.ID, &n.Text, &blob, &ts, &source); err != nil {
			return nil, fmt.Errorf("failed to scan embedded node: %w", err)
		}
		n.Embedding = decodeEmbedding(blob)
		n.Timestamp = ts.Float64
		n.Source = source.String
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate embedded nodes: %w", err)
	}
	return nodes, nil
}

// AllNodes returns every node in insertion order, embeddings excluded.
func (s *SQLiteStore) AllNodes(ctx context.Context) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, timestamp, source, created_at FROM nodes ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var n Node
		var ts, createdAt sql.NullFloat64
		var source sql.NullString
		if err := rows.Scan(&n.ID, &n.Text, &ts, &source, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		n.Timestamp = ts.Float64
		n.Source = source.String
		n.CreatedAt = createdAt.Float64
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate nodes: %w", err)
	}
	return nodes, nil
}

// AllEdges returns every edge in insertion order.
func (s *SQLiteStore) AllEdges(ctx context.Context) ([]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, src, dst, edge_type, weight, created_at FROM edges ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		var typ string
		var weight, createdAt sql.NullFloat64
		if err := rows.Scan(&e.ID, &e.Src, &e.Dst, &typ, &weight, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		e.Type = EdgeType(typ)
		e.Weight = weight.Float64
		e.CreatedAt = createdAt.Float64
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate edges: %w", err)
	}
	return edges, nil
}

// Stats counts nodes and edges, broken down by edge type.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{EdgeTypes: make(map[EdgeType]int)}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&st.Nodes); err != nil {
		return Stats{}, fmt.Errorf("failed to count nodes: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM edges`).Scan(&st.Edges); err != nil {
		return Stats{}, fmt.Errorf("failed to count edges: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT edge_type, COUNT(*) FROM edges GROUP BY edge_type`)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count edge types: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var typ string
		var count int
		if err := rows.Scan(&typ, &count); err != nil {
			return Stats{}, fmt.Errorf("failed to scan edge type count: %w", err)
		}
		st.EdgeTypes[EdgeType(typ)] = count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("failed to iterate edge type counts: %w", err)
	}

	return st, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// encodeEmbedding packs a vector as little-endian float32 bytes, the
// layout the original migration data uses. Nil in, nil out.
func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return b
}

func decodeEmbedding(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
