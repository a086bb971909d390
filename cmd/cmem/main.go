package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/causalmem/cmem/internal/config"
	"github.com/causalmem/cmem/internal/store"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "cmem",
		Short: "Causal memory graph - timestamped memories with typed relations",
		Long: `cmem stores timestamped text memories as a graph of typed, directed
edges (causality, association, similarity) in an embedded SQLite database.

Memories carry optional embedding vectors; retrieval combines exact cosine
similarity search with bounded graph traversal when similarity alone is
not confident enough, and falls back to keyword matching when no embedding
is available.`,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().Bool("global", false, "Use the global ~/.cmem store instead of the project one")

	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newAddCmd(),
		newGetCmd(),
		newSearchCmd(),
		newKeywordCmd(),
		newStatsCmd(),
		newDeriveEdgesCmd(),
		newExportCmd(),
		newImportCmd(),
		newMCPServerCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]string{"version": version})
			} else {
				fmt.Printf("cmem version %s\n", version)
			}
		},
	}
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a causal memory graph in the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(cmd)
			if err != nil {
				return err
			}
			cmemDir := store.LocalCmemPath(root)

			if err := os.MkdirAll(cmemDir, 0755); err != nil {
				return fmt.Errorf("failed to create .cmem directory: %w", err)
			}
			if err := store.EnsureGitignore(cmemDir); err != nil {
				return fmt.Errorf("failed to write .gitignore: %w", err)
			}

			// Write the reference config only when none exists, so re-running
			// init never clobbers tuning.
			if _, err := os.Stat(filepath.Join(cmemDir, config.FileName)); os.IsNotExist(err) {
				if err := config.Write(root, config.Default()); err != nil {
					return fmt.Errorf("failed to write config.yaml: %w", err)
				}
			}

			// Opening the store creates the database and schema.
			s, err := store.NewSQLiteStore(store.DBPath(root))
			if err != nil {
				return fmt.Errorf("failed to create database: %w", err)
			}
			if err := s.Close(); err != nil {
				return fmt.Errorf("failed to close database: %w", err)
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]string{
					"status": "initialized",
					"path":   cmemDir,
				})
			} else {
				fmt.Printf("Initialized .cmem/ in %s\n", root)
			}

			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show node and edge counts",
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

			stats, err := s.Stats(context.Background())
			if err != nil {
				return fmt.Errorf("failed to read stats: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(stats)
			}

			fmt.Printf("Nodes: %d\n", stats.Nodes)
			fmt.Printf("Edges: %d\n", stats.Edges)
			for _, t := range []store.EdgeType{store.EdgeCausality, store.EdgeAssociation, store.EdgeSimilarity} {
				if n := stats.EdgeTypes[t]; n > 0 {
					fmt.Printf("  %s: %d\n", t, n)
				}
			}
			return nil
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a single memory by ID",
		Args:  cobra.ExactArgs(1),
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

			node, err := s.GetNode(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get node: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(node)
			}
			printNode(*node)
			return nil
		},
	}
}

func printNode(n store.Node) {
	fmt.Printf("ID:        %s\n", n.ID)
	fmt.Printf("Text:      %s\n", n.Text)
	fmt.Printf("Timestamp: %.3f\n", n.Timestamp)
	if n.Source != "" {
		fmt.Printf("Source:    %s\n", n.Source)
	}
}

// resolveRoot picks the directory whose .cmem store a command operates
// on: the user's home directory with --global, the --root flag otherwise.
func resolveRoot(cmd *cobra.Command) (string, error) {
	if global, _ := cmd.Flags().GetBool("global"); global {
		cmemDir, err := store.GlobalCmemPath()
		if err != nil {
			return "", err
		}
		return filepath.Dir(cmemDir), nil
	}
	root, _ := cmd.Flags().GetString("root")
	return root, nil
}

// openStore opens the SQLite store under root, failing with a hint when
// the directory has not been initialized.
func openStore(root string) (*store.SQLiteStore, error) {
	cmemDir := store.LocalCmemPath(root)
	if _, err := os.Stat(cmemDir); os.IsNotExist(err) {
		return nil, fmt.Errorf(".cmem not initialized. Run 'cmem init' first")
	}
	s, err := store.NewSQLiteStore(store.DBPath(root))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return s, nil
}
