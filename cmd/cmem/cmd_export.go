package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the graph as JSONL snapshots",
		Long: `Write nodes.jsonl and edges.jsonl snapshots of the memory graph.

Embeddings are included as base64-encoded float32 bytes, so a snapshot
captures everything needed to rebuild the database.

Example:
  cmem export --out ./backup`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(cmd)
			if err != nil {
				return err
			}
			jsonOut, _ := cmd.Flags().GetBool("json")
			out, _ := cmd.Flags().GetString("out")

			s, err := openStore(root)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.ExportJSONL(context.Background(), out); err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]string{
					"status": "exported",
					"path":   out,
				})
			}

			fmt.Printf("Exported graph to %s\n", out)
			return nil
		},
	}

	cmd.Flags().String("out", "cmem-export", "Directory to write the snapshot files into")

	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Import a JSONL snapshot into the graph",
		Long: `Restore memories and edges from a snapshot written by 'cmem export'.

Imports are idempotent: memories whose ID already exists and edges already
present are skipped, so a snapshot can be merged into a non-empty graph.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(cmd)
			if err != nil {
				return err
			}
			jsonOut, _ := cmd.Flags().GetBool("json")

			s, err := openStore(root)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.ImportJSONL(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(result)
			}

			fmt.Printf("Imported from %s\n", args[0])
			fmt.Printf("  Nodes: %d added, %d skipped\n", result.NodesAdded, result.NodesSkipped)
			fmt.Printf("  Edges: %d added, %d skipped\n", result.EdgesAdded, result.EdgesSkipped)
			return nil
		},
	}
}
