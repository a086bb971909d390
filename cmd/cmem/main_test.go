package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// newTestRootCmd creates a root command with persistent flags for testing subcommands
func newTestRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use: "cmem",
	}
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().Bool("global", false, "Use the global ~/.cmem store")
	return rootCmd
}

func runCommand(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(cmd)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	return rootCmd.Execute()
}

func TestNewVersionCmd(t *testing.T) {
	cmd := newVersionCmd()
	if cmd.Use != "version" {
		t.Errorf("Use = %q, want %q", cmd.Use, "version")
	}
}

func TestNewAddCmd(t *testing.T) {
	cmd := newAddCmd()
	if !strings.HasPrefix(cmd.Use, "add") {
		t.Errorf("Use = %q, want prefix %q", cmd.Use, "add")
	}

	for _, name := range []string{"id", "source", "timestamp", "embedding", "caused-by", "causes", "assoc"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("missing --%s flag", name)
		}
	}
}

func TestNewSearchCmd(t *testing.T) {
	cmd := newSearchCmd()
	if cmd.Use != "search" {
		t.Errorf("Use = %q, want %q", cmd.Use, "search")
	}

	for _, name := range []string{"embedding", "topk", "threshold", "max-depth"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("missing --%s flag", name)
		}
	}
}

func TestInitCmdCreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	if err := runCommand(t, newInitCmd(), "init", "--root", tmpDir); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	cmemDir := filepath.Join(tmpDir, ".cmem")
	if _, err := os.Stat(cmemDir); os.IsNotExist(err) {
		t.Error(".cmem directory not created")
	}
	if _, err := os.Stat(filepath.Join(cmemDir, "memory.db")); os.IsNotExist(err) {
		t.Error("memory.db not created")
	}
	if _, err := os.Stat(filepath.Join(cmemDir, "config.yaml")); os.IsNotExist(err) {
		t.Error("config.yaml not created")
	}
	if _, err := os.Stat(filepath.Join(cmemDir, ".gitignore")); os.IsNotExist(err) {
		t.Error(".gitignore not created")
	}
}

func TestInitCmdPreservesConfig(t *testing.T) {
	tmpDir := t.TempDir()

	if err := runCommand(t, newInitCmd(), "init", "--root", tmpDir); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	configPath := filepath.Join(tmpDir, ".cmem", "config.yaml")
	custom := []byte("search:\n  topk: 9\n")
	if err := os.WriteFile(configPath, custom, 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if err := runCommand(t, newInitCmd(), "init", "--root", tmpDir); err != nil {
		t.Fatalf("second init failed: %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	if !bytes.Equal(data, custom) {
		t.Error("re-running init overwrote config.yaml")
	}
}

func TestAddCmdRequiresInit(t *testing.T) {
	tmpDir := t.TempDir()

	err := runCommand(t, newAddCmd(), "add", "deploy failed", "--root", tmpDir)
	if err == nil {
		t.Fatal("expected error when .cmem not initialized")
	}
	if !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("expected 'not initialized' error, got: %v", err)
	}
}

func TestAddCmdStoresMemory(t *testing.T) {
	tmpDir := t.TempDir()

	if err := runCommand(t, newInitCmd(), "init", "--root", tmpDir); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	err := runCommand(t, newAddCmd(),
		"add", "deploy failed",
		"--id", "deploy-1",
		"--source", "ops",
		"--timestamp", "1700000000",
		"--root", tmpDir,
	)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	s, err := openStore(tmpDir)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()

	node, err := s.GetNode(context.Background(), "deploy-1")
	if err != nil {
		t.Fatalf("failed to get node: %v", err)
	}
	if node.Text != "deploy failed" {
		t.Errorf("Text = %q, want %q", node.Text, "deploy failed")
	}
	if node.Source != "ops" {
		t.Errorf("Source = %q, want %q", node.Source, "ops")
	}
	if node.Timestamp != 1700000000 {
		t.Errorf("Timestamp = %v, want 1700000000", node.Timestamp)
	}
}

func TestAddCmdCausalLink(t *testing.T) {
	tmpDir := t.TempDir()

	if err := runCommand(t, newInitCmd(), "init", "--root", tmpDir); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	if err := runCommand(t, newAddCmd(), "add", "disk filled up", "--id", "cause-1", "--root", tmpDir); err != nil {
		t.Fatalf("add cause failed: %v", err)
	}
	if err := runCommand(t, newAddCmd(), "add", "database crashed", "--id", "effect-1", "--caused-by", "cause-1", "--root", tmpDir); err != nil {
		t.Fatalf("add effect failed: %v", err)
	}

	s, err := openStore(tmpDir)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("failed to read stats: %v", err)
	}
	if stats.Nodes != 2 {
		t.Errorf("Nodes = %d, want 2", stats.Nodes)
	}
	if stats.Edges != 1 {
		t.Errorf("Edges = %d, want 1", stats.Edges)
	}
}

func TestSearchCmdReturnsResults(t *testing.T) {
	tmpDir := t.TempDir()

	if err := runCommand(t, newInitCmd(), "init", "--root", tmpDir); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := runCommand(t, newAddCmd(), "add", "disk alert fired", "--embedding", "1.0,0.0", "--root", tmpDir); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if err := runCommand(t, newSearchCmd(), "search", "--embedding", "1.0,0.0", "--root", tmpDir); err != nil {
		t.Fatalf("search failed: %v", err)
	}
}

func TestSearchCmdZeroThresholdSkipsTraversal(t *testing.T) {
	tmpDir := t.TempDir()

	if err := runCommand(t, newInitCmd(), "init", "--root", tmpDir); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := runCommand(t, newAddCmd(), "add", "cause", "--id", "x", "--embedding", "0.1,1.0", "--root", tmpDir); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := runCommand(t, newAddCmd(), "add", "effect", "--id", "y", "--caused-by", "x", "--root", tmpDir); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// The weak similarity hit escalates under the configured 0.5
	// threshold, but an explicit --threshold 0 must not.
	byDefault := searchJSON(t, "search", "--embedding", "1.0,0.0", "--json", "--root", tmpDir)
	if byDefault.TraversalCount != 1 {
		t.Fatalf("expected 1 traversal hit with default threshold, got %d", byDefault.TraversalCount)
	}

	explicit := searchJSON(t, "search", "--embedding", "1.0,0.0", "--threshold", "0", "--json", "--root", tmpDir)
	if explicit.TraversalCount != 0 {
		t.Errorf("expected no traversal with --threshold 0, got %d", explicit.TraversalCount)
	}
	if explicit.SimilarityCount != 1 {
		t.Errorf("expected 1 similarity hit, got %d", explicit.SimilarityCount)
	}
}

// searchJSON runs the search command with stdout captured and decodes
// the JSON response.
func searchJSON(t *testing.T, args ...string) (out struct {
	SimilarityCount int `json:"similarity_count"`
	TraversalCount  int `json:"traversal_count"`
}) {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w
	runErr := runCommand(t, newSearchCmd(), args...)
	w.Close()
	os.Stdout = old

	if runErr != nil {
		t.Fatalf("search failed: %v", runErr)
	}
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		t.Fatalf("failed to decode JSON output: %v", err)
	}
	return out
}

func TestKeywordCmdFindsMatch(t *testing.T) {
	tmpDir := t.TempDir()

	if err := runCommand(t, newInitCmd(), "init", "--root", tmpDir); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := runCommand(t, newAddCmd(), "add", "database connection timeout", "--root", tmpDir); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if err := runCommand(t, newKeywordCmd(), "keyword", "database timeout", "--root", tmpDir); err != nil {
		t.Fatalf("keyword failed: %v", err)
	}
}

func TestExportCmdWritesSnapshot(t *testing.T) {
	tmpDir := t.TempDir()

	if err := runCommand(t, newInitCmd(), "init", "--root", tmpDir); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := runCommand(t, newAddCmd(), "add", "deploy failed", "--root", tmpDir); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	outDir := filepath.Join(tmpDir, "snapshot")
	if err := runCommand(t, newExportCmd(), "export", "--out", outDir, "--root", tmpDir); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(outDir, "nodes.jsonl")); os.IsNotExist(err) {
		t.Error("nodes.jsonl not created")
	}
	if _, err := os.Stat(filepath.Join(outDir, "edges.jsonl")); os.IsNotExist(err) {
		t.Error("edges.jsonl not created")
	}
}

func TestImportCmdMergesSnapshot(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()

	if err := runCommand(t, newInitCmd(), "init", "--root", srcDir); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := runCommand(t, newAddCmd(), "add", "deploy failed", "--id", "d1", "--root", srcDir); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	outDir := filepath.Join(srcDir, "snapshot")
	if err := runCommand(t, newExportCmd(), "export", "--out", outDir, "--root", srcDir); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	if err := runCommand(t, newInitCmd(), "init", "--root", dstDir); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := runCommand(t, newImportCmd(), "import", outDir, "--root", dstDir); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	s, err := openStore(dstDir)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()

	node, err := s.GetNode(context.Background(), "d1")
	if err != nil {
		t.Fatalf("failed to get imported node: %v", err)
	}
	if node.Text != "deploy failed" {
		t.Errorf("Text = %q, want %q", node.Text, "deploy failed")
	}
}

func TestStatsCmdEmptyStore(t *testing.T) {
	tmpDir := t.TempDir()

	if err := runCommand(t, newInitCmd(), "init", "--root", tmpDir); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	if err := runCommand(t, newStatsCmd(), "stats", "--root", tmpDir); err != nil {
		t.Fatalf("stats failed: %v", err)
	}
}

func TestDeriveEdgesCmdDryRun(t *testing.T) {
	tmpDir := t.TempDir()

	if err := runCommand(t, newInitCmd(), "init", "--root", tmpDir); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := runCommand(t, newAddCmd(), "add", "first", "--id", "n1", "--embedding", "1.0,0.1", "--root", tmpDir); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := runCommand(t, newAddCmd(), "add", "second", "--id", "n2", "--embedding", "0.9,0.2", "--root", tmpDir); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if err := runCommand(t, newDeriveEdgesCmd(), "derive-edges", "--dry-run", "--root", tmpDir); err != nil {
		t.Fatalf("derive-edges failed: %v", err)
	}

	s, err := openStore(tmpDir)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("failed to read stats: %v", err)
	}
	if stats.Edges != 0 {
		t.Errorf("dry run created %d edges, want 0", stats.Edges)
	}
}

func TestAddCmdJSONOutput(t *testing.T) {
	tmpDir := t.TempDir()

	if err := runCommand(t, newInitCmd(), "init", "--root", tmpDir); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	// The handlers write to os.Stdout directly, so capture it.
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w
	runErr := runCommand(t, newAddCmd(), "add", "deploy failed", "--json", "--root", tmpDir)
	w.Close()
	os.Stdout = old

	if runErr != nil {
		t.Fatalf("add failed: %v", runErr)
	}

	var out struct {
		Status string `json:"status"`
		ID     string `json:"id"`
	}
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		t.Fatalf("failed to decode JSON output: %v", err)
	}
	if out.Status != "added" {
		t.Errorf("status = %q, want %q", out.Status, "added")
	}
	if len(out.ID) != 12 {
		t.Errorf("id length = %d, want 12", len(out.ID))
	}
}
